package internal

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type EmbedderConfig struct {
	Backend   string `yaml:"backend"` // "hash" or "http"
	BaseURL   string `yaml:"base_url,omitempty"`
	Model     string `yaml:"model,omitempty"`
	Dimension int    `yaml:"dimension"`
	BatchSize int    `yaml:"batch_size"`
}

type ScorerConfig struct {
	Backend string `yaml:"backend"` // "lexical" or "http"
	BaseURL string `yaml:"base_url,omitempty"`
	Model   string `yaml:"model,omitempty"`
}

type CacheConfig struct {
	Enabled bool     `yaml:"enabled"`
	S3      S3Config `yaml:"s3,omitempty"`
}

type SearchConfig struct {
	CandidatePool int `yaml:"candidate_pool"`
	DefaultTopK   int `yaml:"default_top_k"`
	MaxTopK       int `yaml:"max_top_k"`
}

type IndexConfig struct {
	Trees int `yaml:"trees"`
}

type Config struct {
	DataDir  string         `yaml:"data_dir,omitempty"`
	Embedder EmbedderConfig `yaml:"embedder"`
	Scorer   ScorerConfig   `yaml:"scorer"`
	Cache    CacheConfig    `yaml:"cache,omitempty"`
	Search   SearchConfig   `yaml:"search"`
	Index    IndexConfig    `yaml:"index"`
}

func DefaultConfig() *Config {
	return &Config{
		Embedder: EmbedderConfig{
			Backend:   "hash",
			Dimension: 256,
			BatchSize: 32,
		},
		Scorer: ScorerConfig{
			Backend: "lexical",
		},
		Search: SearchConfig{
			CandidatePool: 200,
			DefaultTopK:   10,
			MaxTopK:       50,
		},
		Index: IndexConfig{
			Trees: 10,
		},
	}
}

// ResolveDataDir applies the home-relative default when the config
// does not name a data directory.
func (c *Config) ResolveDataDir() string {
	if c.DataDir != "" {
		return c.DataDir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".dupfind")
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
