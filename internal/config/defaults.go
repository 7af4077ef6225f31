package config

import (
	"runtime"
	"time"
)

const (
	DefaultUserAgent = "Mozilla/5.0 (compatible; SitesearchBot/1.0)"
	DefaultReferrer  = "https://www.google.com"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/sitesearch/data/db/search.db"
	}
	if cfg.Crawler.UserAgent == "" {
		cfg.Crawler.UserAgent = DefaultUserAgent
	}
	if cfg.Crawler.Referrer == "" {
		cfg.Crawler.Referrer = DefaultReferrer
	}
	if cfg.Crawler.Workers == 0 {
		cfg.Crawler.Workers = runtime.NumCPU() * 2
	}
	if cfg.Crawler.PolitenessDelay == 0 {
		cfg.Crawler.PolitenessDelay = 500 * time.Millisecond
	}
	if cfg.Crawler.RequestTimeout == 0 {
		cfg.Crawler.RequestTimeout = 10 * time.Second
	}
	if cfg.Crawler.MaxBodyBytes == 0 {
		cfg.Crawler.MaxBodyBytes = 5 * 1024 * 1024
	}
	if cfg.Crawler.StopTimeout == 0 {
		cfg.Crawler.StopTimeout = 3 * time.Second
	}
	if cfg.Search.DefaultLimit == 0 {
		cfg.Search.DefaultLimit = 20
	}
	if cfg.Search.MaxLimit == 0 {
		cfg.Search.MaxLimit = 100
	}
	if cfg.Search.FrequencyThreshold == 0 {
		cfg.Search.FrequencyThreshold = 2000
	}
	if cfg.Search.SnippetLength == 0 {
		cfg.Search.SnippetLength = 240
	}
	if cfg.Morphology.CacheSize == 0 {
		cfg.Morphology.CacheSize = 10000
	}
	for i := range cfg.Sites {
		if cfg.Sites[i].Name == "" {
			cfg.Sites[i].Name = cfg.Sites[i].URL
		}
	}
}
