package models

import "strings"

// SearchQuery represents a search request with an optional site filter.
type SearchQuery struct {
	Query  string `json:"query"`
	Site   string `json:"site,omitempty"`
	Offset int    `json:"offset,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// Validate rejects blank queries and normalizes paging: a non-positive limit
// becomes defaultLimit, limits above maxLimit are capped, negative offsets become 0.
func (q *SearchQuery) Validate(defaultLimit, maxLimit int) error {
	if strings.TrimSpace(q.Query) == "" {
		return ErrEmptyQuery
	}
	if q.Limit <= 0 {
		q.Limit = defaultLimit
	}
	if maxLimit > 0 && q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return nil
}
