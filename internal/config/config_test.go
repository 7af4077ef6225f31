package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "test.db"
crawler:
  politeness_delay: 250ms
  request_timeout: 3s
sites:
  - url: "https://example.com/"
    name: "Example"
  - url: "https://docs.example.org"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Crawler.PolitenessDelay != 250*time.Millisecond {
		t.Errorf("politeness_delay: got %v", cfg.Crawler.PolitenessDelay)
	}
	if cfg.Crawler.RequestTimeout != 3*time.Second {
		t.Errorf("request_timeout: got %v", cfg.Crawler.RequestTimeout)
	}
	if len(cfg.Sites) != 2 {
		t.Fatalf("expected 2 sites, got %d", len(cfg.Sites))
	}
	if cfg.Sites[0].URL != "https://example.com" {
		t.Errorf("trailing slash should be stripped: %q", cfg.Sites[0].URL)
	}
	if cfg.Sites[1].Name != "https://docs.example.org" {
		t.Errorf("name should default to url: %q", cfg.Sites[1].Name)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_defaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("debug: true\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true when set in config")
	}
	if cfg.Crawler.PolitenessDelay != 500*time.Millisecond {
		t.Errorf("politeness_delay default: got %v", cfg.Crawler.PolitenessDelay)
	}
	if cfg.Crawler.StopTimeout != 3*time.Second {
		t.Errorf("stop_timeout default: got %v", cfg.Crawler.StopTimeout)
	}
	if cfg.Search.FrequencyThreshold != 2000 {
		t.Errorf("frequency_threshold default: got %d", cfg.Search.FrequencyThreshold)
	}
	if cfg.Search.SnippetLength != 240 {
		t.Errorf("snippet_length default: got %d", cfg.Search.SnippetLength)
	}
	if cfg.Crawler.Workers < 1 {
		t.Errorf("workers default: got %d", cfg.Crawler.Workers)
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
storage:
  database_path: "./data/db/search.db"
morphology:
  dictionary_path: "./dict/ru.tsv"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	wantDB := filepath.Join(dir, "data", "db", "search.db")
	if cfg.Storage.DatabasePath != wantDB {
		t.Errorf("database_path: got %q, want %q", cfg.Storage.DatabasePath, wantDB)
	}
	wantDict := filepath.Join(dir, "dict", "ru.tsv")
	if cfg.Morphology.DictionaryPath != wantDict {
		t.Errorf("dictionary_path: got %q, want %q", cfg.Morphology.DictionaryPath, wantDict)
	}
}

func TestLoad_missingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_invalidReportsAllProblems(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 70000
sites:
  - url: "ftp://example.com"
  - url: "https://a.example.com"
  - url: "https://a.example.com/"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	for _, want := range []string{"server.port", "invalid url", "duplicate url"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q should mention %q", msg, want)
		}
	}
}

func TestSiteRegistry(t *testing.T) {
	r := NewSiteRegistry([]SiteConfig{
		{URL: "https://example.com/", Name: "Example"},
		{URL: "https://blog.example.com"},
	})

	if s, ok := r.Lookup("https://example.com/"); !ok || s.Name != "Example" {
		t.Errorf("lookup with trailing slash: got %+v, %v", s, ok)
	}
	if _, ok := r.Lookup("https://other.com"); ok {
		t.Error("unknown site should not be found")
	}

	tests := []struct {
		url  string
		want string
		ok   bool
	}{
		{"https://example.com", "https://example.com", true},
		{"https://example.com/news/1", "https://example.com", true},
		{"https://example.com?page=2", "", false},
		{"https://example.com/news?page=2", "", false},
		{"https://example.com/news#top", "", false},
		{"https://example.com.evil.org/", "", false},
		{"https://blog.example.com/post", "https://blog.example.com", true},
		{"http://example.com/", "", false},
	}
	for _, tt := range tests {
		s, ok := r.Owner(tt.url)
		if ok != tt.ok || s.URL != tt.want {
			t.Errorf("Owner(%q) = %q, %v; want %q, %v", tt.url, s.URL, ok, tt.want, tt.ok)
		}
	}

	sites := r.Sites()
	sites[0].Name = "mutated"
	if s, _ := r.Lookup("https://example.com"); s.Name != "Example" {
		t.Error("Sites should return a copy")
	}

	r.Replace([]SiteConfig{{URL: "https://new.example.com"}})
	if len(r.Sites()) != 1 {
		t.Errorf("expected 1 site after replace, got %d", len(r.Sites()))
	}
}
