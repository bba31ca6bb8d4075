package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fastpoint/fastpoint"
)

var (
	queryCollection string
	queryLimit      int
	queryImagePath  string
)

var queryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Search the store",
	Long: `Query embeds the given text (or image, with --image) and searches the
collection. With a sparse model configured, text queries run as hybrid
searches with rank fusion.

Examples:
  fastpoint query "connection pooling"
  fastpoint query --image ./photo.jpg`,
	Args: cobra.MaximumNArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVarP(&queryCollection, "collection", "c", "", "target collection (default from config)")
	queryCmd.Flags().IntVarP(&queryLimit, "limit", "n", 0, "maximum results (default from config)")
	queryCmd.Flags().StringVar(&queryImagePath, "image", "", "query by image path instead of text")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	var q fastpoint.Query
	switch {
	case queryImagePath != "" && len(args) > 0:
		return fmt.Errorf("provide either query text or --image, not both")
	case queryImagePath != "":
		q = fastpoint.Image(queryImagePath)
	case len(args) > 0 && args[0] != "":
		q = fastpoint.Text(args[0])
	default:
		return fmt.Errorf("provide query text or --image")
	}

	var c cliContext
	if err := c.openSession(cmd); err != nil {
		return err
	}
	defer c.close()

	collection := queryCollection
	if collection == "" {
		collection = cfg.Store.Collection
	}
	limit := queryLimit
	if limit <= 0 {
		limit = cfg.Query.Limit
	}

	results, err := c.session.Query(cmd.Context(), collection, q, fastpoint.QueryOptions{Limit: limit})
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("No results.")
		return nil
	}

	for i, r := range results {
		fmt.Printf("%2d. %s (score %.4f)\n", i+1, r.ID, r.Score)
		if path, ok := r.Metadata["path"].(string); ok {
			fmt.Printf("    path: %s\n", path)
		}
		if r.Document != "" {
			fmt.Printf("    %s\n", snippet(r.Document, 160))
		}
		if r.ImagePath != "" {
			fmt.Printf("    image: %s\n", r.ImagePath)
		}
	}
	return nil
}

// snippet returns the first n characters of s on one line.
func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > n {
		s = s[:n] + "..."
	}
	return s
}
