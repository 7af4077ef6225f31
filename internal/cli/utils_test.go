package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/sitesearch/internal/models"
)

func sampleResponse() *models.SearchResponse {
	return &models.SearchResponse{
		Result:    true,
		Count:     1,
		QueryTime: 42,
		Data: []*models.SearchResult{{
			Site:      "https://a.com",
			SiteName:  "A",
			URI:       "/news/1",
			Title:     "Новости",
			Snippet:   "Пятнистый <b>леопард</b> вышел ...",
			Relevance: 1,
		}},
	}
}

func TestWriteSearchResults_JSON(t *testing.T) {
	response := sampleResponse()
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, response, OutputJSON); err != nil {
		t.Fatalf("WriteSearchResults(json): %v", err)
	}
	var decoded models.SearchResponse
	if err := json.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Count != 1 || decoded.QueryTime != 42 {
		t.Errorf("decoded count=%d query_time=%d", decoded.Count, decoded.QueryTime)
	}
	if len(decoded.Data) != 1 || decoded.Data[0].URI != "/news/1" || decoded.Data[0].SiteName != "A" {
		t.Errorf("decoded data: %+v", decoded.Data)
	}
}

func TestWriteSearchResults_text(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, sampleResponse(), OutputText); err != nil {
		t.Fatalf("WriteSearchResults(text): %v", err)
	}
	out := buf.String()
	for _, sub := range []string{"Found 1 results", "42ms", "https://a.com/news/1", "Title: Новости", "Site: A", "[леопард]"} {
		if !strings.Contains(out, sub) {
			t.Errorf("text output missing %q:\n%s", sub, out)
		}
	}
	if strings.Contains(out, "<b>") {
		t.Errorf("markers should be replaced:\n%s", out)
	}
}

func TestWriteSearchResults_unknownFormatTreatedAsText(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, &models.SearchResponse{Result: true}, OutputFormat("unknown")); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Found 0 results") {
		t.Errorf("unknown format should fall back to text; got %q", buf.String())
	}
}

func TestWriteStatistics(t *testing.T) {
	stats := &models.Statistics{
		Total: models.TotalStatistics{Sites: 1, Pages: 10, Lemmas: 55, Indexing: true},
		Detailed: []models.DetailedStatistics{{
			URL:        "https://a.com",
			Name:       "A",
			Status:     models.StatusFailed,
			StatusTime: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC).UnixMilli(),
			Error:      "boom",
			Pages:      10,
			Lemmas:     55,
		}},
	}

	var buf bytes.Buffer
	if err := WriteStatistics(&buf, stats, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, sub := range []string{"Sites: 1", "Pages: 10", "Lemmas: 55", "indexing", "A (https://a.com)", "FAILED", "error:   boom"} {
		if !strings.Contains(out, sub) {
			t.Errorf("text output missing %q:\n%s", sub, out)
		}
	}

	buf.Reset()
	if err := WriteStatistics(&buf, stats, OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded models.Statistics
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Total.Lemmas != 55 || decoded.Detailed[0].Error != "boom" {
		t.Errorf("decoded: %+v", decoded)
	}
}
