// Package storage defines the persistence gateway for sites, pages, lemmas and the inverted index.
package storage

import (
	"context"

	"github.com/hyperjump/sitesearch/internal/models"
)

// Storage defines corpus persistence operations. Every write that touches a
// lemma frequency is atomic at the storage level so concurrent crawl units can
// share one Storage without external locking.
type Storage interface {
	// Site operations
	UpsertSite(ctx context.Context, url, name string, status models.SiteStatus) (*models.Site, error)
	GetSiteByURL(ctx context.Context, url string) (*models.Site, error)
	ListSites(ctx context.Context) ([]*models.Site, error)
	SetSiteStatus(ctx context.Context, siteID int64, status models.SiteStatus, lastError string) error
	// FinishSite moves a site from INDEXING to INDEXED. It reports false when
	// the site was in any other state.
	FinishSite(ctx context.Context, siteID int64) (bool, error)
	FailAllSites(ctx context.Context, lastError string) error
	TouchSite(ctx context.Context, siteID int64) error
	WipeCorpus(ctx context.Context) error

	// Page operations
	UpsertPage(ctx context.Context, page *models.Page) error
	PageExists(ctx context.Context, siteID int64, path string) (bool, error)
	GetPage(ctx context.Context, id int64) (*models.Page, error)

	// Lemma and index operations
	IncrementLemma(ctx context.Context, text string) (*models.Lemma, error)
	FindLemmas(ctx context.Context, texts []string) (map[string]*models.Lemma, error)
	UpsertIndex(ctx context.Context, entry *models.IndexEntry) error
	SavePageLemmas(ctx context.Context, pageID int64, counts map[string]int) error
	DeletePageIndex(ctx context.Context, pageID int64) error

	// Retrieval
	FindPagesByLemma(ctx context.Context, lemmaID int64, siteIDs []int64, within []int64) ([]int64, error)
	SumRanks(ctx context.Context, pageIDs []int64, lemmaIDs []int64) (map[int64]int, error)

	// Stats. A zero siteID counts the whole corpus.
	CountPages(ctx context.Context, siteID int64) (int, error)
	CountLemmas(ctx context.Context, siteID int64) (int, error)

	Close() error
}
