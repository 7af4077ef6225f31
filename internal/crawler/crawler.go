// Package crawler walks configured sites and feeds their pages to the indexer.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/sitesearch/internal/config"
	"github.com/hyperjump/sitesearch/internal/indexer"
	"github.com/hyperjump/sitesearch/internal/models"
	"github.com/hyperjump/sitesearch/internal/storage"
)

// StopMessage is the lastError of every site after a user stop.
const StopMessage = "Индексация остановлена пользователем"

// Crawler runs crawl runs over the configured sites and single-page re-indexing.
type Crawler struct {
	storage storage.Storage
	indexer *indexer.Indexer
	fetcher Fetcher
	sites   *config.SiteRegistry
	cfg     config.CrawlerConfig
	clock   clock.Clock
	logger  *zap.Logger

	mu      sync.Mutex
	current *run
	singles sync.WaitGroup
}

// run is one full crawl. Cancelling ctx stops every site tree of the run.
type run struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	pool   *pool
	trees  []*siteTree
	done   chan struct{}
}

func (r *run) finished() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Crawler) { c.logger = l }
}

// WithClock sets the clock used for the politeness delay and stop timeout.
func WithClock(clk clock.Clock) Option {
	return func(c *Crawler) { c.clock = clk }
}

// New creates a crawler.
func New(store storage.Storage, idx *indexer.Indexer, fetcher Fetcher, sites *config.SiteRegistry, cfg config.CrawlerConfig, opts ...Option) *Crawler {
	c := &Crawler{
		storage: store,
		indexer: idx,
		fetcher: fetcher,
		sites:   sites,
		cfg:     cfg,
		clock:   clock.WallClock,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsIndexing reports whether a crawl run is in progress.
func (c *Crawler) IsIndexing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil && !c.current.finished()
}

// Start wipes the corpus and crawls every configured site in the background.
func (c *Crawler) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil && !c.current.finished() {
		return models.ErrAlreadyRunning
	}

	if err := c.storage.WipeCorpus(ctx); err != nil {
		return fmt.Errorf("failed to clear corpus: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	r := &run{
		id:     uuid.NewString(),
		ctx:    runCtx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	for _, sc := range c.sites.Sites() {
		site, err := c.storage.UpsertSite(ctx, sc.URL, sc.Name, models.StatusIndexing)
		if err != nil {
			cancel()
			return err
		}
		r.trees = append(r.trees, newSiteTree(site))
	}

	r.pool = newPool(c.cfg.Workers)
	for _, t := range r.trees {
		c.spawn(r, t, "/")
	}
	c.current = r
	c.logger.Info("crawl started", zap.String("run", r.id), zap.Int("sites", len(r.trees)))

	go c.await(r)
	return nil
}

// await joins every site tree, finalizes site statuses and releases the pool.
func (c *Crawler) await(r *run) {
	var g errgroup.Group
	for _, t := range r.trees {
		t := t
		g.Go(func() error {
			t.pending.Wait()
			return c.finishSite(r, t)
		})
	}
	if err := g.Wait(); err != nil {
		c.logger.Error("crawl finished with errors", zap.String("run", r.id), zap.Error(err))
	}
	r.pool.Close()
	r.pool.Wait()
	r.cancel()
	close(r.done)
	c.logger.Info("crawl finished", zap.String("run", r.id))
}

func (c *Crawler) finishSite(r *run, t *siteTree) error {
	if r.ctx.Err() != nil {
		return nil
	}
	ok, err := c.storage.FinishSite(r.ctx, t.site.ID)
	if err != nil {
		return fmt.Errorf("failed to finish site %s: %w", t.site.URL, err)
	}
	c.logger.Info("site crawled",
		zap.String("site", t.site.URL), zap.Int64("pages", t.visited.Load()), zap.Bool("indexed", ok))
	return nil
}

// Stop cancels the running crawl, waits up to the stop timeout for in-flight
// units and marks every site FAILED.
func (c *Crawler) Stop(ctx context.Context) error {
	c.mu.Lock()
	r := c.current
	c.mu.Unlock()
	if r == nil || r.finished() {
		return models.ErrNotRunning
	}

	r.cancel()
	select {
	case <-r.done:
	case <-c.clock.After(c.cfg.StopTimeout):
		c.logger.Warn("crawl did not drain before stop timeout", zap.String("run", r.id))
	case <-ctx.Done():
	}

	if err := c.storage.FailAllSites(context.WithoutCancel(ctx), StopMessage); err != nil {
		return fmt.Errorf("failed to mark sites stopped: %w", err)
	}
	c.logger.Info("crawl stopped", zap.String("run", r.id))
	return nil
}

// Wait blocks until the current run and all single-page jobs have finished.
func (c *Crawler) Wait() {
	c.mu.Lock()
	r := c.current
	c.mu.Unlock()
	if r != nil {
		<-r.done
	}
	c.singles.Wait()
}

// SiteProgress is a snapshot of one site tree.
type SiteProgress struct {
	URL     string `json:"url"`
	Visited int64  `json:"visited"`
	Pending int64  `json:"pending"`
}

// Progress returns per-site counters of the current or last run.
func (c *Crawler) Progress() []SiteProgress {
	c.mu.Lock()
	r := c.current
	c.mu.Unlock()
	if r == nil {
		return nil
	}
	out := make([]SiteProgress, 0, len(r.trees))
	for _, t := range r.trees {
		out = append(out, SiteProgress{URL: t.site.URL, Visited: t.visited.Load(), Pending: t.outstanding.Load()})
	}
	return out
}

// IndexPage re-indexes a single page of a configured site in the background.
// The URL must belong to a configured site and must not answer 404.
func (c *Crawler) IndexPage(ctx context.Context, rawURL string) error {
	rawURL = strings.TrimSpace(rawURL)
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return models.ErrOutOfScope
	}
	// Crawled pages never carry a query or fragment; neither do re-indexed ones.
	if u.RawQuery != "" || u.ForceQuery || u.Fragment != "" {
		return models.ErrOutOfScope
	}
	sc, ok := c.sites.Owner(rawURL)
	if !ok {
		return models.ErrOutOfScope
	}
	code, err := c.fetcher.Probe(ctx, rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrOutOfScope, err)
	}
	if code == 404 {
		return models.ErrOutOfScope
	}

	site, err := c.storage.GetSiteByURL(ctx, sc.URL)
	if errors.Is(err, models.ErrNotFound) {
		site, err = c.storage.UpsertSite(ctx, sc.URL, sc.Name, models.StatusIndexed)
	}
	if err != nil {
		return err
	}

	path := rawURL[len(sc.URL):]
	if path == "" {
		path = "/"
	}
	jobCtx := context.WithoutCancel(ctx)
	c.singles.Add(1)
	go func() {
		defer c.singles.Done()
		doc, err := c.fetcher.Fetch(jobCtx, rawURL)
		if err != nil {
			c.failSite(nil, site, rawURL, err)
			return
		}
		if _, err := c.indexer.IndexPage(jobCtx, site, path, doc.Code, doc.Content); err != nil {
			c.failSite(nil, site, rawURL, err)
			return
		}
		c.logger.Info("page re-indexed", zap.String("url", rawURL), zap.Int("code", doc.Code))
	}()
	return nil
}
