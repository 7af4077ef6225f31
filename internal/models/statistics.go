package models

// TotalStatistics aggregates the whole corpus.
type TotalStatistics struct {
	Sites    int  `json:"sites"`
	Pages    int  `json:"pages"`
	Lemmas   int  `json:"lemmas"`
	Indexing bool `json:"indexing"`
}

// DetailedStatistics describes one site. StatusTime is in Unix milliseconds.
type DetailedStatistics struct {
	URL        string     `json:"url"`
	Name       string     `json:"name"`
	Status     SiteStatus `json:"status"`
	StatusTime int64      `json:"statusTime"`
	Error      string     `json:"error,omitempty"`
	Pages      int        `json:"pages"`
	Lemmas     int        `json:"lemmas"`
}

// Statistics is the full statistics report.
type Statistics struct {
	Total    TotalStatistics      `json:"total"`
	Detailed []DetailedStatistics `json:"detailed"`
}
