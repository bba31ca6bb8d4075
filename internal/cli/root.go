// Package cli implements the fastpoint command line interface.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fastpoint/fastpoint"
	"github.com/fastpoint/fastpoint/config"
	"github.com/fastpoint/fastpoint/embed"
	"github.com/fastpoint/fastpoint/store/localstore"
)

var (
	cfgFile string
	cfg     *config.Config
	rootDir string
)

var rootCmd = &cobra.Command{
	Use:   "fastpoint",
	Short: "Embed documents into a local vector store and search it",
	Long: `fastpoint ingests local files through embedding models into a vector
store and retrieves them by dense, hybrid, or image similarity.

Example usage:
  fastpoint ingest ./docs              # Embed and store matching files
  fastpoint query "how does auth work" # Search the store`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./fastpoint.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "root directory (default is current directory)")
}

func newLogger() *fastpoint.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Logging.Level)); err != nil {
		level = slog.LevelInfo
	}
	if cfg.Logging.Format == "json" {
		return fastpoint.NewJSONLogger(level)
	}
	return fastpoint.NewTextLogger(level)
}

// openSession builds a session over the configured store and backend. The
// caller must Close the returned store.
func (c *cliContext) openSession(cmd *cobra.Command) error {
	storePath := cfg.Store.Path
	if storePath != "" {
		if !filepath.IsAbs(storePath) {
			storePath = filepath.Join(rootDir, storePath)
		}
		if err := os.MkdirAll(filepath.Dir(storePath), 0o755); err != nil {
			return fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	st, err := localstore.Open(storePath)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}

	var backend embed.Backend
	if cfg.Remote.Enabled {
		backend = embed.NewRemoteBackend(embed.RemoteConfig{
			BaseURL:           cfg.Remote.BaseURL,
			APIKey:            os.Getenv(cfg.Remote.APIKeyEnv),
			RequestsPerSecond: cfg.Remote.RequestsPerSecond,
		})
	} else {
		backend = embed.NewHashBackend()
	}

	session := fastpoint.New(st,
		fastpoint.WithRegistry(embed.NewRegistry(backend)),
		fastpoint.WithLogger(newLogger()),
		fastpoint.WithFusionK(cfg.Query.FusionK),
	)

	ctx := cmd.Context()
	var modelOpts []embed.Option
	if cfg.Models.CacheDir != "" {
		modelOpts = append(modelOpts, embed.WithCacheDir(cfg.Models.CacheDir))
	}
	if cfg.Models.Threads > 0 {
		modelOpts = append(modelOpts, embed.WithThreads(cfg.Models.Threads))
	}
	if cfg.Models.Dense != "" {
		if err := session.SetModel(ctx, cfg.Models.Dense, modelOpts...); err != nil {
			st.Close()
			return err
		}
	}
	if cfg.Models.Sparse != "" {
		if err := session.SetSparseModel(ctx, cfg.Models.Sparse, modelOpts...); err != nil {
			st.Close()
			return err
		}
	}
	if cfg.Models.Image != "" {
		if err := session.SetImageModel(ctx, cfg.Models.Image, modelOpts...); err != nil {
			st.Close()
			return err
		}
	}

	c.store = st
	c.session = session
	return nil
}

type cliContext struct {
	store   *localstore.LocalStore
	session *fastpoint.Session
}

func (c *cliContext) close() {
	if c.store != nil {
		c.store.Close()
	}
}
