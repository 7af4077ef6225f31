package crawler

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/hyperjump/sitesearch/internal/config"
)

// Document is the result of fetching one URL. Non-2xx responses are documents too.
type Document struct {
	URL     string
	Code    int
	Content string
	// Links are absolute anchor targets found in the page.
	Links []string
}

// Fetcher retrieves pages and probes URLs.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Document, error)
	// Probe returns the status code the URL answers with.
	Probe(ctx context.Context, rawURL string) (int, error)
}

// HTTPFetcher fetches pages over HTTP without following redirects.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	referrer  string
	maxBody   int64
}

const defaultMaxBody = 5 * 1024 * 1024

// NewHTTPFetcher creates a fetcher from crawler settings.
func NewHTTPFetcher(cfg config.CrawlerConfig) *HTTPFetcher {
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBody
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: cfg.RequestTimeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		userAgent: cfg.UserAgent,
		referrer:  cfg.Referrer,
		maxBody:   maxBody,
	}
}

func (f *HTTPFetcher) newRequest(ctx context.Context, method, rawURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.userAgent)
	if f.referrer != "" {
		req.Header.Set("Referer", f.referrer)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	return req, nil
}

// Fetch issues a GET request. Only transport failures are errors; the status
// code of any response is recorded in the document.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*Document, error) {
	req, err := f.newRequest(ctx, http.MethodGet, rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	doc := &Document{URL: rawURL, Code: resp.StatusCode}
	if !isHTMLContentType(resp.Header.Get("Content-Type")) {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, f.maxBody))
		return doc, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", rawURL, err)
	}
	doc.Content = string(body)

	gq, err := goquery.NewDocumentFromReader(strings.NewReader(doc.Content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", rawURL, err)
	}
	doc.Links = extractLinks(gq, resp.Request.URL)
	return doc, nil
}

// Probe issues a HEAD request, falling back to GET for servers that reject HEAD.
func (f *HTTPFetcher) Probe(ctx context.Context, rawURL string) (int, error) {
	code, err := f.status(ctx, http.MethodHead, rawURL)
	if err != nil {
		return 0, err
	}
	if code == http.StatusMethodNotAllowed || code == http.StatusNotImplemented {
		return f.status(ctx, http.MethodGet, rawURL)
	}
	return code, nil
}

func (f *HTTPFetcher) status(ctx context.Context, method, rawURL string) (int, error) {
	req, err := f.newRequest(ctx, method, rawURL)
	if err != nil {
		return 0, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to probe %s: %w", rawURL, err)
	}
	_ = resp.Body.Close()
	return resp.StatusCode, nil
}

func extractLinks(doc *goquery.Document, base *url.URL) []string {
	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		if abs := resolveURL(strings.TrimSpace(href), base); abs != "" {
			links = append(links, abs)
		}
	})
	return links
}

func resolveURL(href string, base *url.URL) string {
	if href == "" || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(u).String()
}

// isHTMLContentType treats a missing Content-Type as HTML.
func isHTMLContentType(ct string) bool {
	if ct == "" {
		return true
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return mt == "text/html" || mt == "application/xhtml+xml"
}
