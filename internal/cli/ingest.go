package cli

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/fastpoint/fastpoint"
)

var ingestCollection string

var ingestCmd = &cobra.Command{
	Use:   "ingest [path]",
	Short: "Embed matching files into the store",
	Long: `Ingest embeds the text files under the given directory (default: the
root directory) that match the configured include patterns and upserts them
into the collection.

Examples:
  fastpoint ingest .                # Ingest the current directory
  fastpoint ingest /path/to/notes   # Ingest a specific directory`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestCollection, "collection", "c", "", "target collection (default from config)")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	path := rootDir
	if len(args) > 0 {
		var err error
		path, err = filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	files, err := collectFiles(path, cfg.Ingest.Includes, cfg.Ingest.Excludes)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Println("No matching files found.")
		return nil
	}

	var c cliContext
	if err := c.openSession(cmd); err != nil {
		return err
	}
	defer c.close()

	collection := ingestCollection
	if collection == "" {
		collection = cfg.Store.Collection
	}

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetDescription("Ingesting"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	var total int
	batch := cfg.Ingest.BatchSize
	if batch <= 0 {
		batch = 32
	}
	for start := 0; start < len(files); start += batch {
		end := min(start+batch, len(files))
		chunk := files[start:end]

		documents := make([]string, 0, len(chunk))
		metadata := make([]map[string]any, 0, len(chunk))
		for _, file := range chunk {
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("reading %s: %w", file, err)
			}
			rel, err := filepath.Rel(path, file)
			if err != nil {
				rel = file
			}
			documents = append(documents, string(data))
			metadata = append(metadata, map[string]any{"path": rel})
		}

		ids, err := c.session.Add(cmd.Context(), collection, fastpoint.AddOptions{
			Documents: documents,
			Metadata:  metadata,
			BatchSize: batch,
			Parallel:  cfg.Ingest.Parallel,
		})
		if err != nil {
			return fmt.Errorf("ingesting batch: %w", err)
		}
		total += len(ids)
		bar.Add(len(chunk))
	}
	bar.Finish()

	fmt.Printf("Ingested %d documents into %q.\n", total, collection)
	return nil
}

// collectFiles walks root and returns the files matching any include
// pattern and no exclude pattern, in walk order.
func collectFiles(root string, includes, excludes []string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		for _, pattern := range excludes {
			if ok, _ := doublestar.Match(pattern, rel); ok {
				return nil
			}
		}
		for _, pattern := range includes {
			if ok, _ := doublestar.Match(pattern, rel); ok {
				files = append(files, path)
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}
	return files, nil
}
