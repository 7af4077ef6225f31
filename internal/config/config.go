// Package config provides configuration loading and structs for the sitesearch server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Crawler    CrawlerConfig    `yaml:"crawler"`
	Search     SearchConfig     `yaml:"search"`
	Morphology MorphologyConfig `yaml:"morphology"`
	Sites      []SiteConfig     `yaml:"sites"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds the database location.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// CrawlerConfig holds fetch and scheduling settings for crawl runs.
type CrawlerConfig struct {
	UserAgent       string        `yaml:"user_agent"`
	Referrer        string        `yaml:"referrer"`
	Workers         int           `yaml:"workers"`
	PolitenessDelay time.Duration `yaml:"politeness_delay"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	StopTimeout     time.Duration `yaml:"stop_timeout"`
}

// SearchConfig holds query and snippet settings.
type SearchConfig struct {
	DefaultLimit       int `yaml:"default_limit"`
	MaxLimit           int `yaml:"max_limit"`
	FrequencyThreshold int `yaml:"frequency_threshold"`
	SnippetLength      int `yaml:"snippet_length"`
}

// MorphologyConfig selects the lemma dictionary. An empty DictionaryPath
// falls back to the built-in stemmer.
type MorphologyConfig struct {
	DictionaryPath string `yaml:"dictionary_path"`
	CacheSize      int    `yaml:"cache_size"`
}

// SiteConfig is one crawl target.
type SiteConfig struct {
	URL  string `yaml:"url" json:"url"`
	Name string `yaml:"name" json:"name"`
}

// Load reads and parses the config file at path, expands paths, applies defaults
// and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	if cfg.Morphology.DictionaryPath != "" {
		cfg.Morphology.DictionaryPath = expandPath(cfg.Morphology.DictionaryPath, configDir)
	}
	for i := range cfg.Sites {
		cfg.Sites[i].URL = NormalizeSiteURL(cfg.Sites[i].URL)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// NormalizeSiteURL trims whitespace and trailing slashes so that
// "https://example.com/" and "https://example.com" name the same site.
func NormalizeSiteURL(raw string) string {
	return strings.TrimRight(strings.TrimSpace(raw), "/")
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
