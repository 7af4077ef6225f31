// Package models defines the records shared by storage, indexing and search.
package models

import "time"

// SiteStatus is the crawl state of a site.
type SiteStatus string

const (
	StatusIndexing SiteStatus = "INDEXING"
	StatusIndexed  SiteStatus = "INDEXED"
	StatusFailed   SiteStatus = "FAILED"
)

// Site is a crawl root. URL never carries a trailing slash.
type Site struct {
	ID         int64      `json:"id"`
	URL        string     `json:"url"`
	Name       string     `json:"name"`
	Status     SiteStatus `json:"status"`
	StatusTime time.Time  `json:"status_time"`
	LastError  string     `json:"last_error,omitempty"`
}

// Page is one fetched document, unique per (SiteID, Path).
type Page struct {
	ID      int64  `json:"id"`
	SiteID  int64  `json:"site_id"`
	Path    string `json:"path"`
	Code    int    `json:"code"`
	Content string `json:"content"`
}

// Indexable reports whether the page's status allows lemma and index writes.
func (p *Page) Indexable() bool {
	return p.Code < 400
}

// Lemma is a dictionary normal form with the number of pages it occurs in.
type Lemma struct {
	ID        int64  `json:"id"`
	Text      string `json:"text"`
	Frequency int    `json:"frequency"`
}

// IndexEntry links a page to a lemma with the lemma's occurrence count on that page.
type IndexEntry struct {
	PageID  int64 `json:"page_id"`
	LemmaID int64 `json:"lemma_id"`
	Rank    int   `json:"rank"`
}
