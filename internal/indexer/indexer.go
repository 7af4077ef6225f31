// Package indexer stores fetched pages and builds their lemma index.
package indexer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/sitesearch/internal/models"
	"github.com/hyperjump/sitesearch/internal/morph"
	"github.com/hyperjump/sitesearch/internal/storage"
)

// Indexer writes pages, lemmas and index entries to storage.
type Indexer struct {
	storage storage.Storage
	morph   *morph.Engine
	logger  *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// NewIndexer creates an indexer with the given dependencies.
func NewIndexer(store storage.Storage, engine *morph.Engine, opts ...IndexerOption) *Indexer {
	idx := &Indexer{
		storage: store,
		morph:   engine,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// IndexPage records a fetched page of site. The page row is created or overwritten
// in place; lemmas and index entries are written only for status codes below 400,
// and a page that now fails loses whatever index it had.
func (idx *Indexer) IndexPage(ctx context.Context, site *models.Site, path string, code int, content string) (*models.Page, error) {
	if path == "" {
		path = "/"
	}
	if err := idx.storage.TouchSite(ctx, site.ID); err != nil {
		return nil, fmt.Errorf("failed to touch site: %w", err)
	}

	page := &models.Page{SiteID: site.ID, Path: path, Code: code, Content: content}
	if err := idx.storage.UpsertPage(ctx, page); err != nil {
		return nil, err
	}

	if !page.Indexable() {
		if err := idx.storage.DeletePageIndex(ctx, page.ID); err != nil {
			return nil, fmt.Errorf("failed to clear index of page %s: %w", path, err)
		}
		idx.logger.Debug("page stored without index",
			zap.String("site", site.URL), zap.String("path", path), zap.Int("code", code))
		return page, nil
	}

	counts := idx.morph.Lemmas(PlainText(content))
	if err := idx.storage.SavePageLemmas(ctx, page.ID, counts); err != nil {
		return nil, fmt.Errorf("failed to index page %s: %w", path, err)
	}
	idx.logger.Debug("page indexed",
		zap.String("site", site.URL), zap.String("path", path), zap.Int("lemmas", len(counts)))
	return page, nil
}
