// Package search answers queries against the lemma index with ranked, highlighted results.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/sitesearch/internal/config"
	"github.com/hyperjump/sitesearch/internal/models"
	"github.com/hyperjump/sitesearch/internal/morph"
	"github.com/hyperjump/sitesearch/internal/storage"
)

// Engine performs lemma retrieval, ranking and snippet generation.
type Engine struct {
	storage storage.Storage
	morph   *morph.Engine
	sites   *config.SiteRegistry
	config  config.SearchConfig
	logger  *zap.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates a search engine.
func NewEngine(store storage.Storage, m *morph.Engine, sites *config.SiteRegistry, cfg config.SearchConfig, opts ...EngineOption) *Engine {
	e := &Engine{
		storage: store,
		morph:   m,
		sites:   sites,
		config:  cfg,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type scoredPage struct {
	id        int64
	relevance float64
}

// Search runs query and returns one page of results. Count in the response is
// the total number of matching pages.
func (e *Engine) Search(ctx context.Context, query *models.SearchQuery) (*models.SearchResponse, error) {
	start := time.Now()
	if err := query.Validate(e.config.DefaultLimit, e.config.MaxLimit); err != nil {
		return nil, err
	}

	siteIDs, known, err := e.siteFilter(ctx, query.Site)
	if err != nil {
		return nil, err
	}

	texts := e.morph.LemmaSet(query.Query)
	if len(texts) == 0 {
		return nil, models.ErrEmptyQuery
	}
	found, err := e.storage.FindLemmas(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to load lemmas: %w", err)
	}
	lemmas := make([]*models.Lemma, 0, len(texts))
	for _, text := range texts {
		l, ok := found[text]
		if !ok {
			return nil, fmt.Errorf("%w (%s)", models.ErrLemmaNotIndexed, text)
		}
		lemmas = append(lemmas, l)
	}
	sort.SliceStable(lemmas, func(i, j int) bool { return lemmas[i].Frequency < lemmas[j].Frequency })

	var retrieval []*models.Lemma
	for _, l := range lemmas {
		if l.Frequency <= e.config.FrequencyThreshold {
			retrieval = append(retrieval, l)
		}
	}
	if len(retrieval) == 0 {
		return nil, models.ErrTooCommon
	}

	resp := &models.SearchResponse{Result: true, Data: []*models.SearchResult{}}
	if !known {
		resp.QueryTime = time.Since(start).Milliseconds()
		return resp, nil
	}

	candidates, err := e.intersect(ctx, retrieval, siteIDs)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		resp.QueryTime = time.Since(start).Milliseconds()
		return resp, nil
	}

	lemmaIDs := make([]int64, len(lemmas))
	for i, l := range lemmas {
		lemmaIDs[i] = l.ID
	}
	scored, err := e.score(ctx, candidates, lemmaIDs)
	if err != nil {
		return nil, err
	}
	resp.Count = len(scored)

	window := paginate(scored, query.Offset, query.Limit)
	queryLemmas := make(map[string]bool, len(lemmas))
	for _, l := range lemmas {
		queryLemmas[l.Text] = true
	}
	results, err := e.buildResults(ctx, window, queryLemmas)
	if err != nil {
		return nil, err
	}
	resp.Data = results
	resp.QueryTime = time.Since(start).Milliseconds()

	e.logger.Debug("search completed",
		zap.String("query", query.Query),
		zap.Strings("lemmas", texts),
		zap.Int("count", resp.Count),
		zap.Int64("query_time_ms", resp.QueryTime))
	return resp, nil
}

// siteFilter resolves the optional site filter. known is false when the site
// is configured but has never been crawled.
func (e *Engine) siteFilter(ctx context.Context, site string) (ids []int64, known bool, err error) {
	if site == "" {
		return nil, true, nil
	}
	sc, ok := e.sites.Lookup(site)
	if !ok {
		return nil, false, models.ErrUnknownSite
	}
	s, err := e.storage.GetSiteByURL(ctx, sc.URL)
	if errors.Is(err, models.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []int64{s.ID}, true, nil
}

// intersect seeds candidates from the rarest lemma and narrows them with each
// following posting list. lemmas must be sorted by ascending frequency.
func (e *Engine) intersect(ctx context.Context, lemmas []*models.Lemma, siteIDs []int64) ([]int64, error) {
	var candidates []int64
	for _, l := range lemmas {
		ids, err := e.storage.FindPagesByLemma(ctx, l.ID, siteIDs, candidates)
		if err != nil {
			return nil, fmt.Errorf("failed to load pages for %q: %w", l.Text, err)
		}
		if len(ids) == 0 {
			return nil, nil
		}
		candidates = ids
	}
	return candidates, nil
}

// score computes relevance as the rank sum of a page divided by the best rank
// sum among candidates, sorted best first with page id breaking ties.
func (e *Engine) score(ctx context.Context, pageIDs, lemmaIDs []int64) ([]scoredPage, error) {
	sums, err := e.storage.SumRanks(ctx, pageIDs, lemmaIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to rank pages: %w", err)
	}
	maxSum := 0
	for _, s := range sums {
		if s > maxSum {
			maxSum = s
		}
	}
	scored := make([]scoredPage, 0, len(pageIDs))
	for _, id := range pageIDs {
		rel := 0.0
		if maxSum > 0 {
			rel = float64(sums[id]) / float64(maxSum)
		}
		scored = append(scored, scoredPage{id: id, relevance: rel})
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].relevance != scored[j].relevance {
			return scored[i].relevance > scored[j].relevance
		}
		return scored[i].id < scored[j].id
	})
	return scored, nil
}

func paginate(scored []scoredPage, offset, limit int) []scoredPage {
	if offset >= len(scored) {
		return nil
	}
	end := offset + limit
	if end > len(scored) {
		end = len(scored)
	}
	return scored[offset:end]
}

func (e *Engine) buildResults(ctx context.Context, window []scoredPage, queryLemmas map[string]bool) ([]*models.SearchResult, error) {
	if len(window) == 0 {
		return []*models.SearchResult{}, nil
	}
	sites, err := e.storage.ListSites(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*models.Site, len(sites))
	for _, s := range sites {
		byID[s.ID] = s
	}

	results := make([]*models.SearchResult, 0, len(window))
	for _, sp := range window {
		page, err := e.storage.GetPage(ctx, sp.id)
		if err != nil {
			return nil, err
		}
		text := SnippetText(page.Content)
		match := FormMatcher(e.morph.LemmaForms(text), queryLemmas)
		result := &models.SearchResult{
			URI:       page.Path,
			Title:     Title(page.Content),
			Snippet:   snippetOf(text, match, e.config.SnippetLength),
			Relevance: sp.relevance,
		}
		if site, ok := byID[page.SiteID]; ok {
			result.Site = site.URL
			result.SiteName = site.Name
		}
		if result.Title == "" {
			result.Title = page.Path
		}
		results = append(results, result)
	}
	return results, nil
}
