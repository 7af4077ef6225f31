package models

// SearchResult is a single ranked page.
type SearchResult struct {
	Site      string  `json:"site"`
	SiteName  string  `json:"siteName"`
	URI       string  `json:"uri"`
	Title     string  `json:"title"`
	Snippet   string  `json:"snippet"`
	Relevance float64 `json:"relevance"`
}

// SearchResponse is the response for a search request. Count is the number of
// matching pages before offset and limit were applied.
type SearchResponse struct {
	Result    bool            `json:"result"`
	Count     int             `json:"count"`
	Data      []*SearchResult `json:"data"`
	QueryTime int64           `json:"query_time_ms"`
}
