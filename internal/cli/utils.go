// Package cli provides output formatting for the sitesearch command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hyperjump/sitesearch/internal/models"
	"github.com/hyperjump/sitesearch/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const snippetWidth = 300

var highlight = strings.NewReplacer("<b>", "[", "</b>", "]")

// WriteSearchResults writes search results to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	fmt.Fprintf(w, "\nFound %d results in %dms\n\n", response.Count, response.QueryTime)
	for _, result := range response.Data {
		writeOneResult(w, result)
	}
	return nil
}

func writeOneResult(w io.Writer, result *models.SearchResult) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "Relevance: %.4f | %s%s\n", result.Relevance, result.Site, result.URI)
	if result.Title != "" {
		fmt.Fprintf(w, "Title: %s\n", result.Title)
	}
	if result.SiteName != "" {
		fmt.Fprintf(w, "Site: %s\n", result.SiteName)
	}
	fmt.Fprintf(w, "\n%s\n", utils.Truncate(highlight.Replace(result.Snippet), snippetWidth))
	fmt.Fprintln(w)
}

// WriteStatistics writes corpus statistics to w in the given format.
func WriteStatistics(w io.Writer, stats *models.Statistics, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, stats)
	}
	state := "idle"
	if stats.Total.Indexing {
		state = "indexing"
	}
	fmt.Fprintf(w, "Sites: %d  Pages: %d  Lemmas: %d  (%s)\n",
		stats.Total.Sites, stats.Total.Pages, stats.Total.Lemmas, state)
	for _, d := range stats.Detailed {
		fmt.Fprintf(w, "\n%s (%s)\n", d.Name, d.URL)
		fmt.Fprintf(w, "  status:  %s at %s\n", d.Status, time.UnixMilli(d.StatusTime).Format(time.RFC3339))
		fmt.Fprintf(w, "  pages:   %d\n", d.Pages)
		fmt.Fprintf(w, "  lemmas:  %d\n", d.Lemmas)
		if d.Error != "" {
			fmt.Fprintf(w, "  error:   %s\n", d.Error)
		}
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
