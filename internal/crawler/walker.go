package crawler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/hyperjump/sitesearch/internal/models"
)

// siteTree is the crawl state of one site within a run: the set of paths
// already claimed by some unit and the number of units not yet finished.
type siteTree struct {
	site *models.Site

	mu      sync.Mutex
	claimed map[string]bool

	pending     sync.WaitGroup
	outstanding atomic.Int64
	visited     atomic.Int64
}

func newSiteTree(site *models.Site) *siteTree {
	return &siteTree{site: site, claimed: make(map[string]bool)}
}

// claim reserves path for one unit. It reports false if another unit has it.
func (t *siteTree) claim(path string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.claimed[path] {
		return false
	}
	t.claimed[path] = true
	return true
}

// spawn claims path and queues a unit for it on the run's pool.
func (c *Crawler) spawn(r *run, t *siteTree, path string) {
	if !t.claim(path) {
		return
	}
	t.pending.Add(1)
	t.outstanding.Add(1)
	if !r.pool.Submit(func() { c.visit(r, t, path) }) {
		t.outstanding.Add(-1)
		t.pending.Done()
	}
}

// visit is one crawl unit: skip, fetch, index, then fork children. The run
// context is checked before the fetch and before forking.
func (c *Crawler) visit(r *run, t *siteTree, path string) {
	defer t.pending.Done()
	defer t.outstanding.Add(-1)

	ctx := r.ctx
	if ctx.Err() != nil {
		return
	}
	pageURL := t.site.URL + path

	exists, err := c.storage.PageExists(ctx, t.site.ID, path)
	if err != nil {
		c.failSite(r, t.site, pageURL, err)
		return
	}
	if exists {
		return
	}

	if c.cfg.PolitenessDelay > 0 {
		select {
		case <-c.clock.After(c.cfg.PolitenessDelay):
		case <-ctx.Done():
			return
		}
	}
	if ctx.Err() != nil {
		return
	}

	// A started unit finishes its page: a stop must not leave a stored page
	// without its index. The request timeout still bounds the fetch.
	pageCtx := context.WithoutCancel(ctx)
	doc, err := c.fetcher.Fetch(pageCtx, pageURL)
	if err != nil {
		c.failSite(r, t.site, pageURL, err)
		return
	}
	if _, err := c.indexer.IndexPage(pageCtx, t.site, path, doc.Code, doc.Content); err != nil {
		c.failSite(r, t.site, pageURL, err)
		return
	}
	t.visited.Add(1)
	c.logger.Debug("page crawled",
		zap.String("run", r.id), zap.String("url", pageURL), zap.Int("code", doc.Code))

	if ctx.Err() != nil {
		return
	}
	for _, child := range ChildPaths(t.site.URL, doc.Links) {
		c.spawn(r, t, child)
	}
}

// PageErrorMessage is the lastError recorded for a site when one of its pages fails.
func PageErrorMessage(pageURL string, err error) string {
	return fmt.Sprintf("Произошла ошибка при парсинге страницы: %s Сообщение ошибки: %v", pageURL, err)
}

// failSite records a unit failure on its site. Failures caused by cancellation
// are ignored so the stop message stays in place.
func (c *Crawler) failSite(r *run, site *models.Site, pageURL string, err error) {
	if r != nil && r.ctx.Err() != nil {
		return
	}
	c.logger.Warn("page failed", zap.String("url", pageURL), zap.Error(err))
	msg := PageErrorMessage(pageURL, err)
	if serr := c.storage.SetSiteStatus(context.Background(), site.ID, models.StatusFailed, msg); serr != nil {
		c.logger.Error("failed to record site failure", zap.String("site", site.URL), zap.Error(serr))
	}
}
