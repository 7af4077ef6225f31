package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/sitesearch/internal/config"
)

const testDebounce = 50 * time.Millisecond

func writeConfig(t *testing.T, path string, sites ...string) {
	t.Helper()
	content := "storage:\n  database_path: \"" + filepath.Join(filepath.Dir(path), "db.sqlite") + "\"\nsites:\n"
	for _, s := range sites {
		content += fmt.Sprintf("  - url: %q\n", s)
	}
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
}

type reloads struct {
	mu   sync.Mutex
	cfgs []*config.Config
}

func (r *reloads) record(cfg *config.Config) {
	r.mu.Lock()
	r.cfgs = append(r.cfgs, cfg)
	r.mu.Unlock()
}

func (r *reloads) last() (*config.Config, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.cfgs) == 0 {
		return nil, 0
	}
	return r.cfgs[len(r.cfgs)-1], len(r.cfgs)
}

func TestWatcher_reloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "https://a.com")

	var got reloads
	w := NewWatcher(path, got.record, WithDebounce(testDebounce))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	writeConfig(t, path, "https://a.com", "https://b.com/")
	time.Sleep(400 * time.Millisecond)

	cfg, n := got.last()
	if n < 1 {
		t.Fatal("expected a reload")
	}
	if len(cfg.Sites) != 2 || cfg.Sites[1].URL != "https://b.com" {
		t.Errorf("sites: %+v", cfg.Sites)
	}
}

func TestWatcher_invalidConfigKeepsPrevious(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "https://a.com")

	registry := config.NewSiteRegistry([]config.SiteConfig{{URL: "https://a.com", Name: "A"}})
	w := NewWatcher(path, SitesReloader(registry, zap.NewNop()), WithDebounce(testDebounce))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	writeConfig(t, path, "ftp://bad", "https://a.com")
	time.Sleep(400 * time.Millisecond)

	sites := registry.Sites()
	if len(sites) != 1 || sites[0].URL != "https://a.com" {
		t.Errorf("registry should be unchanged: %+v", sites)
	}

	writeConfig(t, path, "https://c.com")
	time.Sleep(400 * time.Millisecond)
	if _, ok := registry.Lookup("https://c.com"); !ok {
		t.Errorf("registry should hold the new site: %+v", registry.Sites())
	}
}

func TestWatcher_ignoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, "https://a.com")

	var got reloads
	w := NewWatcher(path, got.record, WithDebounce(testDebounce))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)
	if _, n := got.last(); n != 0 {
		t.Errorf("unexpected reloads: %d", n)
	}
}

func TestWatcher_debouncesBursts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "https://a.com")

	var got reloads
	w := NewWatcher(path, got.record, WithDebounce(200*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	for i := 0; i < 5; i++ {
		writeConfig(t, path, fmt.Sprintf("https://s%d.com", i))
		time.Sleep(20 * time.Millisecond)
	}
	time.Sleep(600 * time.Millisecond)

	cfg, n := got.last()
	if n != 1 {
		t.Errorf("expected one reload, got %d", n)
	}
	if cfg != nil && (len(cfg.Sites) != 1 || cfg.Sites[0].URL != "https://s4.com") {
		t.Errorf("last version should win: %+v", cfg.Sites)
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "https://a.com")
	w := NewWatcher(path, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	w.Stop()
	w.Stop()
}
