package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/sitesearch/internal/config"
	"github.com/hyperjump/sitesearch/internal/crawler"
	"github.com/hyperjump/sitesearch/internal/indexer"
	"github.com/hyperjump/sitesearch/internal/models"
	"github.com/hyperjump/sitesearch/internal/morph"
	"github.com/hyperjump/sitesearch/internal/search"
	"github.com/hyperjump/sitesearch/internal/stats"
	"github.com/hyperjump/sitesearch/internal/storage"
)

const siteURL = "https://a.com"

type mockCrawl struct {
	running bool
	indexed []string
	pageErr error
}

func (m *mockCrawl) Start(context.Context) error {
	if m.running {
		return models.ErrAlreadyRunning
	}
	m.running = true
	return nil
}

func (m *mockCrawl) Stop(context.Context) error {
	if !m.running {
		return models.ErrNotRunning
	}
	m.running = false
	return nil
}

func (m *mockCrawl) IndexPage(_ context.Context, rawURL string) error {
	if m.pageErr != nil {
		return m.pageErr
	}
	m.indexed = append(m.indexed, rawURL)
	return nil
}

func (m *mockCrawl) Progress() []crawler.SiteProgress {
	if !m.running {
		return nil
	}
	return []crawler.SiteProgress{{URL: siteURL, Visited: 3, Pending: 1}}
}

func (m *mockCrawl) IsIndexing() bool { return m.running }

func newTestServer(t *testing.T) (*Server, *mockCrawl) {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "db.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	dict, err := morph.LoadFileDictionary(strings.NewReader("кот\tкот\tС\nкота\tкот\tС\nпес\tпес\tС\nслон\tслон\tС\n"))
	if err != nil {
		t.Fatal(err)
	}
	m := morph.NewEngine(dict, 100)
	sites := config.NewSiteRegistry([]config.SiteConfig{{URL: siteURL, Name: "A"}})

	ctx := context.Background()
	site, err := store.UpsertSite(ctx, siteURL, "A", models.StatusIndexed)
	if err != nil {
		t.Fatal(err)
	}
	idx := indexer.NewIndexer(store, m)
	for i, body := range []string{"<title>Один</title><p>Кот и кот.</p>", "<p>Кота видели.</p>", "<p>Пес.</p>"} {
		if _, err := idx.IndexPage(ctx, site, fmt.Sprintf("/%d", i), 200, body); err != nil {
			t.Fatal(err)
		}
	}

	searchCfg := config.SearchConfig{DefaultLimit: 20, MaxLimit: 100, FrequencyThreshold: 2000, SnippetLength: 240}
	crawl := &mockCrawl{}
	srv := NewServer(
		search.NewEngine(store, m, sites, searchCfg),
		crawl,
		stats.NewService(store, sites, crawl),
		&config.ServerConfig{Host: "localhost", Port: 8080},
		zap.NewNop(),
	)
	return srv, crawl
}

func do(t *testing.T, h http.Handler, method, target string, body url.Values) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != nil {
		r = httptest.NewRequest(method, target, strings.NewReader(body.Encode()))
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func TestHandleStartStopIndexing(t *testing.T) {
	srv, crawl := newTestServer(t)
	h := srv.Handler()

	w := do(t, h, http.MethodGet, "/api/startIndexing", nil)
	var ok resultResponse
	decode(t, w, &ok)
	if w.Code != http.StatusOK || !ok.Result || !crawl.running {
		t.Fatalf("start: code=%d body=%+v", w.Code, ok)
	}

	w = do(t, h, http.MethodGet, "/api/startIndexing", nil)
	var fail resultResponse
	decode(t, w, &fail)
	if w.Code != http.StatusBadRequest || fail.Result || fail.Error != models.ErrAlreadyRunning.Error() {
		t.Errorf("second start: code=%d body=%+v", w.Code, fail)
	}

	w = do(t, h, http.MethodGet, "/api/stopIndexing", nil)
	if w.Code != http.StatusOK || crawl.running {
		t.Errorf("stop: code=%d running=%v", w.Code, crawl.running)
	}

	w = do(t, h, http.MethodGet, "/api/stopIndexing", nil)
	fail = resultResponse{}
	decode(t, w, &fail)
	if w.Code != http.StatusBadRequest || fail.Error != models.ErrNotRunning.Error() {
		t.Errorf("second stop: code=%d body=%+v", w.Code, fail)
	}
}

func TestHandleIndexPage(t *testing.T) {
	srv, crawl := newTestServer(t)
	h := srv.Handler()

	w := do(t, h, http.MethodPost, "/api/indexPage", url.Values{"url": {siteURL + "/news"}})
	if w.Code != http.StatusOK {
		t.Fatalf("code: %d body=%s", w.Code, w.Body.String())
	}
	if len(crawl.indexed) != 1 || crawl.indexed[0] != siteURL+"/news" {
		t.Errorf("indexed: %v", crawl.indexed)
	}

	w = do(t, h, http.MethodPost, "/api/indexPage", url.Values{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing url: code %d", w.Code)
	}

	crawl.pageErr = models.ErrOutOfScope
	w = do(t, h, http.MethodPost, "/api/indexPage", url.Values{"url": {"https://other.com/"}})
	var fail resultResponse
	decode(t, w, &fail)
	if w.Code != http.StatusBadRequest || fail.Result || fail.Error != models.ErrOutOfScope.Error() {
		t.Errorf("out of scope: code=%d body=%+v", w.Code, fail)
	}
}

func TestHandleSearch(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	w := do(t, h, http.MethodGet, "/api/search?query="+url.QueryEscape("кот"), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("code: %d body=%s", w.Code, w.Body.String())
	}
	var resp models.SearchResponse
	decode(t, w, &resp)
	if !resp.Result || resp.Count != 2 || len(resp.Data) != 2 {
		t.Fatalf("response: %+v", resp)
	}
	if resp.Data[0].URI != "/0" || resp.Data[0].Relevance != 1.0 || resp.Data[0].Title != "Один" {
		t.Errorf("top result: %+v", resp.Data[0])
	}

	w = do(t, h, http.MethodGet, "/api/search?limit=1&offset=1&query="+url.QueryEscape("кот"), nil)
	resp = models.SearchResponse{}
	decode(t, w, &resp)
	if resp.Count != 2 || len(resp.Data) != 1 || resp.Data[0].URI != "/1" {
		t.Errorf("paged: %+v", resp)
	}
}

func TestHandleSearch_errors(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	tests := []struct {
		name   string
		target string
		status int
	}{
		{"empty query", "/api/search?query=", http.StatusBadRequest},
		{"bad limit", "/api/search?query=x&limit=abc", http.StatusBadRequest},
		{"bad offset", "/api/search?query=x&offset=-", http.StatusBadRequest},
		{"unknown site", "/api/search?site=https://b.com&query=" + url.QueryEscape("кот"), http.StatusBadRequest},
		{"not indexed", "/api/search?query=" + url.QueryEscape("слон"), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodGet, tt.target, nil)
			if w.Code != tt.status {
				t.Fatalf("code: got %d want %d body=%s", w.Code, tt.status, w.Body.String())
			}
			var fail resultResponse
			decode(t, w, &fail)
			if fail.Result || fail.Error == "" {
				t.Errorf("body: %+v", fail)
			}
		})
	}
}

func TestHandleStatistics(t *testing.T) {
	srv, crawl := newTestServer(t)
	crawl.running = true

	w := do(t, srv.Handler(), http.MethodGet, "/api/statistics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("code: %d", w.Code)
	}
	var out statisticsResponse
	decode(t, w, &out)
	st := out.Statistics
	if !out.Result || st == nil {
		t.Fatalf("response: %+v", out)
	}
	if st.Total.Sites != 1 || st.Total.Pages != 3 || st.Total.Lemmas != 2 || !st.Total.Indexing {
		t.Errorf("total: %+v", st.Total)
	}
	if len(st.Detailed) != 1 || st.Detailed[0].URL != siteURL || st.Detailed[0].Pages != 3 {
		t.Errorf("detailed: %+v", st.Detailed)
	}
}

func TestHandleProgressAndHealth(t *testing.T) {
	srv, crawl := newTestServer(t)
	crawl.running = true
	h := srv.Handler()

	w := do(t, h, http.MethodGet, "/api/progress", nil)
	var out struct {
		Sites []crawler.SiteProgress `json:"sites"`
	}
	decode(t, w, &out)
	if len(out.Sites) != 1 || out.Sites[0].Visited != 3 {
		t.Errorf("progress: %+v", out)
	}

	w = do(t, h, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "ok") {
		t.Errorf("health: %d %s", w.Code, w.Body.String())
	}
}
