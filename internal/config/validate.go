package config

import (
	"fmt"
	"net/url"

	"github.com/hashicorp/go-multierror"
)

// Validate reports every problem found in cfg, not just the first one.
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		result = multierror.Append(result, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.Crawler.Workers < 1 {
		result = multierror.Append(result, fmt.Errorf("crawler.workers must be positive: %d", c.Crawler.Workers))
	}
	if c.Crawler.PolitenessDelay < 0 {
		result = multierror.Append(result, fmt.Errorf("crawler.politeness_delay must not be negative"))
	}
	if c.Crawler.RequestTimeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("crawler.request_timeout must be positive"))
	}
	if c.Search.MaxLimit < c.Search.DefaultLimit {
		result = multierror.Append(result, fmt.Errorf("search.max_limit (%d) is below search.default_limit (%d)",
			c.Search.MaxLimit, c.Search.DefaultLimit))
	}
	if c.Search.SnippetLength < 6 {
		result = multierror.Append(result, fmt.Errorf("search.snippet_length too small: %d", c.Search.SnippetLength))
	}
	if err := ValidateSites(c.Sites); err != nil {
		result = multierror.Append(result, err)
	}

	return result.ErrorOrNil()
}

// ValidateSites checks that every site has an absolute http(s) URL and that no URL repeats.
func ValidateSites(sites []SiteConfig) error {
	var result *multierror.Error
	seen := make(map[string]bool, len(sites))
	for i, s := range sites {
		u, err := url.Parse(s.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			result = multierror.Append(result, fmt.Errorf("sites[%d]: invalid url %q", i, s.URL))
			continue
		}
		key := NormalizeSiteURL(s.URL)
		if seen[key] {
			result = multierror.Append(result, fmt.Errorf("sites[%d]: duplicate url %q", i, s.URL))
		}
		seen[key] = true
	}
	return result.ErrorOrNil()
}
