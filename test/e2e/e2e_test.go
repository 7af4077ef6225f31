package e2e

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/sitesearch/internal/config"
	"github.com/hyperjump/sitesearch/internal/crawler"
	"github.com/hyperjump/sitesearch/internal/indexer"
	"github.com/hyperjump/sitesearch/internal/models"
	"github.com/hyperjump/sitesearch/internal/morph"
	"github.com/hyperjump/sitesearch/internal/search"
	"github.com/hyperjump/sitesearch/internal/server"
	"github.com/hyperjump/sitesearch/internal/stats"
	"github.com/hyperjump/sitesearch/internal/storage"
)

const e2eSearchLimit = 30

func newAPI(t *testing.T, siteURL string) http.Handler {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "db.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	dict, err := morph.NewStemDictionary()
	if err != nil {
		t.Fatal(err)
	}
	m := morph.NewEngine(dict, 1000)

	cfg := &config.Config{Sites: []config.SiteConfig{{URL: siteURL, Name: "Энциклопедия"}}}
	config.ApplyDefaults(cfg)
	cfg.Crawler.PolitenessDelay = time.Millisecond
	cfg.Crawler.Workers = 4

	sites := config.NewSiteRegistry(cfg.Sites)
	crawl := crawler.New(store, indexer.NewIndexer(store, m), crawler.NewHTTPFetcher(cfg.Crawler), sites, cfg.Crawler)
	t.Cleanup(crawl.Wait)
	srv := server.NewServer(
		search.NewEngine(store, m, sites, cfg.Search),
		crawl,
		stats.NewService(store, sites, crawl),
		&cfg.Server,
		zap.NewNop(),
	)
	return srv.Handler()
}

func getJSON(t *testing.T, h http.Handler, target string, v interface{}) int {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	if v != nil {
		if err := json.NewDecoder(w.Body).Decode(v); err != nil {
			t.Fatalf("decode %s: %v", target, err)
		}
	}
	return w.Code
}

type statisticsBody struct {
	Result     bool              `json:"result"`
	Statistics models.Statistics `json:"statistics"`
}

func waitIndexed(t *testing.T, api http.Handler) models.Statistics {
	t.Helper()
	deadline := time.Now().Add(20 * time.Second)
	for time.Now().Before(deadline) {
		var body statisticsBody
		getJSON(t, api, "/api/statistics", &body)
		if !body.Statistics.Total.Indexing {
			return body.Statistics
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("crawl did not finish in time")
	return models.Statistics{}
}

func TestE2E_CrawlAndSearch(t *testing.T) {
	corpus := BuildCorpus()
	site := httptest.NewServer(corpus.Handler())
	defer site.Close()
	api := newAPI(t, site.URL)

	if code := getJSON(t, api, "/api/startIndexing", nil); code != http.StatusOK {
		t.Fatalf("startIndexing: %d", code)
	}
	st := waitIndexed(t, api)

	if len(st.Detailed) != 1 {
		t.Fatalf("detailed: %+v", st.Detailed)
	}
	d := st.Detailed[0]
	if d.Status != models.StatusIndexed || d.Error != "" {
		t.Errorf("site status: %s %q", d.Status, d.Error)
	}
	if d.Pages != corpus.TotalPages || st.Total.Pages != corpus.TotalPages {
		t.Errorf("pages: got %d, want %d", d.Pages, corpus.TotalPages)
	}
	if st.Total.Lemmas == 0 || d.Lemmas != st.Total.Lemmas {
		t.Errorf("lemmas: total=%d site=%d", st.Total.Lemmas, d.Lemmas)
	}

	for _, tc := range corpus.TestCases {
		t.Run(tc.Description, func(t *testing.T) {
			var resp models.SearchResponse
			target := "/api/search?limit=" + url.QueryEscape("30") + "&query=" + url.QueryEscape(tc.Query)
			if code := getJSON(t, api, target, &resp); code != http.StatusOK {
				t.Fatalf("search %q: status %d", tc.Query, code)
			}
			if resp.Count > e2eSearchLimit {
				t.Errorf("too many results for %q: %d", tc.Query, resp.Count)
			}
			found := false
			for _, r := range resp.Data {
				for _, want := range tc.ExpectedPaths {
					if r.URI == want {
						found = true
						if r.Title != tc.Description {
							t.Errorf("title: got %q want %q", r.Title, tc.Description)
						}
						if !strings.Contains(r.Snippet, "<b>") {
							t.Errorf("snippet without highlight: %q", r.Snippet)
						}
						if r.Site != site.URL || r.SiteName != "Энциклопедия" {
							t.Errorf("site: %q %q", r.Site, r.SiteName)
						}
					}
				}
			}
			if !found {
				t.Errorf("query %q: expected %v in results, got %+v", tc.Query, tc.ExpectedPaths, resp.Data)
			}
		})
	}
}

func TestE2E_SearchScopedToSite(t *testing.T) {
	corpus := BuildCorpus()
	site := httptest.NewServer(corpus.Handler())
	defer site.Close()
	api := newAPI(t, site.URL)

	getJSON(t, api, "/api/startIndexing", nil)
	waitIndexed(t, api)

	var resp models.SearchResponse
	target := "/api/search?site=" + url.QueryEscape(site.URL) + "&query=" + url.QueryEscape("энциклопедия")
	if code := getJSON(t, api, target, &resp); code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	if resp.Count != corpus.TotalPages {
		t.Errorf("filler word should match every page: %d", resp.Count)
	}
	for _, r := range resp.Data {
		if r.Relevance <= 0 || r.Relevance > 1 {
			t.Errorf("relevance out of range: %+v", r)
		}
	}

	var fail struct {
		Result bool   `json:"result"`
		Error  string `json:"error"`
	}
	target = "/api/search?site=" + url.QueryEscape("https://unknown.example") + "&query=" + url.QueryEscape("леопард")
	if code := getJSON(t, api, target, &fail); code != http.StatusBadRequest || fail.Result {
		t.Errorf("unknown site: %d %+v", code, fail)
	}
}

func TestE2E_StopWhenIdle(t *testing.T) {
	corpus := BuildCorpus()
	site := httptest.NewServer(corpus.Handler())
	defer site.Close()
	api := newAPI(t, site.URL)

	var fail struct {
		Result bool   `json:"result"`
		Error  string `json:"error"`
	}
	if code := getJSON(t, api, "/api/stopIndexing", &fail); code != http.StatusBadRequest || fail.Error != models.ErrNotRunning.Error() {
		t.Errorf("stop when idle: %d %+v", code, fail)
	}
}
