package config

import (
	"strings"
	"sync"
)

// SiteRegistry holds the current list of configured sites. The config watcher
// swaps the list in place; readers always get a copy.
type SiteRegistry struct {
	mu    sync.RWMutex
	sites []SiteConfig
}

// NewSiteRegistry returns a registry seeded with sites.
func NewSiteRegistry(sites []SiteConfig) *SiteRegistry {
	r := &SiteRegistry{}
	r.Replace(sites)
	return r
}

// Sites returns a copy of the configured sites in configuration order.
func (r *SiteRegistry) Sites() []SiteConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]SiteConfig(nil), r.sites...)
}

// Replace swaps the site list. URLs are normalized on the way in.
func (r *SiteRegistry) Replace(sites []SiteConfig) {
	next := make([]SiteConfig, len(sites))
	for i, s := range sites {
		next[i] = SiteConfig{URL: NormalizeSiteURL(s.URL), Name: s.Name}
		if next[i].Name == "" {
			next[i].Name = next[i].URL
		}
	}
	r.mu.Lock()
	r.sites = next
	r.mu.Unlock()
}

// Lookup returns the site whose URL equals siteURL after normalization.
func (r *SiteRegistry) Lookup(siteURL string) (SiteConfig, bool) {
	key := NormalizeSiteURL(siteURL)
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sites {
		if s.URL == key {
			return s, true
		}
	}
	return SiteConfig{}, false
}

// Owner returns the configured site that pageURL belongs to. A page belongs to a
// site when it equals the site URL or continues it with a path. Query strings and
// fragments are never part of a page path.
func (r *SiteRegistry) Owner(pageURL string) (SiteConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sites {
		if !strings.HasPrefix(pageURL, s.URL) {
			continue
		}
		rest := pageURL[len(s.URL):]
		if strings.ContainsAny(rest, "?#") {
			return SiteConfig{}, false
		}
		if rest == "" || rest[0] == '/' {
			return s, true
		}
	}
	return SiteConfig{}, false
}
