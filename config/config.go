// Package config holds the YAML configuration of the fastpoint CLI.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the fastpoint CLI.
type Config struct {
	Store   StoreConfig   `yaml:"store"`
	Models  ModelsConfig  `yaml:"models"`
	Remote  RemoteConfig  `yaml:"remote"`
	Ingest  IngestConfig  `yaml:"ingest"`
	Query   QueryConfig   `yaml:"query"`
	Logging LoggingConfig `yaml:"logging"`
}

// StoreConfig locates the local vector store.
type StoreConfig struct {
	// Path is the bbolt database file. Empty keeps everything in memory.
	Path string `yaml:"path"`
	// Collection is the default collection name.
	Collection string `yaml:"collection"`
}

// ModelsConfig selects the session's embedding models.
type ModelsConfig struct {
	Dense    string `yaml:"dense"`
	Sparse   string `yaml:"sparse"`
	Image    string `yaml:"image"`
	CacheDir string `yaml:"cache_dir"`
	Threads  int    `yaml:"threads"`
}

// RemoteConfig configures the OpenAI-compatible remote embedding backend.
// When disabled the deterministic local backend is used.
type RemoteConfig struct {
	Enabled           bool    `yaml:"enabled"`
	BaseURL           string  `yaml:"base_url"`
	APIKeyEnv         string  `yaml:"api_key_env"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// IngestConfig holds file selection and batching for ingestion.
type IngestConfig struct {
	Includes  []string `yaml:"includes"`
	Excludes  []string `yaml:"excludes"`
	BatchSize int      `yaml:"batch_size"`
	Parallel  int      `yaml:"parallel"`
}

// QueryConfig holds retrieval defaults.
type QueryConfig struct {
	Limit   int `yaml:"limit"`
	FusionK int `yaml:"fusion_k"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Path:       filepath.Join(".fastpoint", "store.db"),
			Collection: "documents",
		},
		Models: ModelsConfig{
			Dense: "BAAI/bge-small-en",
		},
		Remote: RemoteConfig{
			Enabled:           false,
			BaseURL:           "https://api.openai.com/v1",
			APIKeyEnv:         "OPENAI_API_KEY",
			RequestsPerSecond: 5,
		},
		Ingest: IngestConfig{
			Includes:  []string{"**/*.md", "**/*.txt"},
			Excludes:  []string{"**/node_modules/**", "**/vendor/**", "**/.git/**"},
			BatchSize: 32,
		},
		Query: QueryConfig{
			Limit:   10,
			FusionK: 60,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file, falling back to defaults when
// the file does not exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromDir loads configuration from a directory, looking for
// fastpoint.yaml and then .fastpoint/config.yaml.
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "fastpoint.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}
	path = filepath.Join(dir, ".fastpoint", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}
	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
