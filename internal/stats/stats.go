// Package stats reports corpus and per-site crawl statistics.
package stats

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/sitesearch/internal/config"
	"github.com/hyperjump/sitesearch/internal/models"
	"github.com/hyperjump/sitesearch/internal/storage"
)

// IndexingState reports whether a crawl is running.
type IndexingState interface {
	IsIndexing() bool
}

// Service builds statistics reports.
type Service struct {
	storage storage.Storage
	sites   *config.SiteRegistry
	state   IndexingState
}

// NewService creates a statistics service.
func NewService(store storage.Storage, sites *config.SiteRegistry, state IndexingState) *Service {
	return &Service{storage: store, sites: sites, state: state}
}

// Statistics returns totals and one entry per configured site. Configured sites
// without a stored row are created with status INDEXED.
func (s *Service) Statistics(ctx context.Context) (*models.Statistics, error) {
	configured := s.sites.Sites()
	out := &models.Statistics{
		Total: models.TotalStatistics{
			Sites:    len(configured),
			Indexing: s.state != nil && s.state.IsIndexing(),
		},
		Detailed: make([]models.DetailedStatistics, 0, len(configured)),
	}

	for _, sc := range configured {
		site, err := s.storage.GetSiteByURL(ctx, sc.URL)
		if errors.Is(err, models.ErrNotFound) {
			site, err = s.storage.UpsertSite(ctx, sc.URL, sc.Name, models.StatusIndexed)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load site %s: %w", sc.URL, err)
		}
		pages, err := s.storage.CountPages(ctx, site.ID)
		if err != nil {
			return nil, err
		}
		lemmas, err := s.storage.CountLemmas(ctx, site.ID)
		if err != nil {
			return nil, err
		}
		out.Detailed = append(out.Detailed, models.DetailedStatistics{
			URL:        site.URL,
			Name:       site.Name,
			Status:     site.Status,
			StatusTime: site.StatusTime.UnixMilli(),
			Error:      site.LastError,
			Pages:      pages,
			Lemmas:     lemmas,
		})
		out.Total.Pages += pages
	}

	total, err := s.storage.CountLemmas(ctx, 0)
	if err != nil {
		return nil, err
	}
	out.Total.Lemmas = total
	return out, nil
}
