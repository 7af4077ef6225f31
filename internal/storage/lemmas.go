package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/hyperjump/sitesearch/internal/models"
)

// maxInParams keeps IN lists well below SQLite's bound-variable limit.
const maxInParams = 500

// IncrementLemma creates the lemma with frequency 1 or atomically adds 1 to an existing one.
func (s *SQLiteStorage) IncrementLemma(ctx context.Context, text string) (*models.Lemma, error) {
	return incrementLemma(ctx, s.db, text)
}

func incrementLemma(ctx context.Context, q queryer, text string) (*models.Lemma, error) {
	lemma := &models.Lemma{Text: text}
	err := q.QueryRowContext(ctx,
		`INSERT INTO lemmas (text, frequency) VALUES (?, 1)
		 ON CONFLICT(text) DO UPDATE SET frequency = frequency + 1
		 RETURNING id, frequency`, text,
	).Scan(&lemma.ID, &lemma.Frequency)
	if err != nil {
		return nil, fmt.Errorf("failed to increment lemma %q: %w", text, err)
	}
	return lemma, nil
}

// FindLemmas returns the stored lemmas among texts, keyed by text. Unknown texts are absent from the map.
func (s *SQLiteStorage) FindLemmas(ctx context.Context, texts []string) (map[string]*models.Lemma, error) {
	out := make(map[string]*models.Lemma, len(texts))
	for _, chunk := range chunkStrings(texts, maxInParams) {
		rows, err := s.db.QueryContext(ctx,
			`SELECT id, text, frequency FROM lemmas WHERE text IN (`+placeholders(len(chunk))+`)`,
			stringArgs(chunk)...)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var l models.Lemma
			if err := rows.Scan(&l.ID, &l.Text, &l.Frequency); err != nil {
				rows.Close()
				return nil, err
			}
			out[l.Text] = &l
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// UpsertIndex sets the rank of a (page, lemma) pair.
func (s *SQLiteStorage) UpsertIndex(ctx context.Context, entry *models.IndexEntry) error {
	return upsertIndex(ctx, s.db, entry)
}

func upsertIndex(ctx context.Context, q queryer, entry *models.IndexEntry) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO page_lemmas (page_id, lemma_id, occurrences) VALUES (?, ?, ?)
		 ON CONFLICT(page_id, lemma_id) DO UPDATE SET occurrences = excluded.occurrences`,
		entry.PageID, entry.LemmaID, entry.Rank)
	return err
}

// SavePageLemmas replaces the index of a page with counts in one transaction.
// A lemma's frequency grows by one only when the page did not reference it yet;
// lemmas the page no longer contains lose the page and are dropped when no page is left.
func (s *SQLiteStorage) SavePageLemmas(ctx context.Context, pageID int64, counts map[string]int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := pageLemmaIDs(ctx, tx, pageID)
	if err != nil {
		return err
	}

	texts := make([]string, 0, len(counts))
	for text := range counts {
		texts = append(texts, text)
	}
	sort.Strings(texts)

	for _, text := range texts {
		entry := &models.IndexEntry{PageID: pageID, Rank: counts[text]}
		if id, ok := existing[text]; ok {
			entry.LemmaID = id
			delete(existing, text)
		} else {
			lemma, err := incrementLemma(ctx, tx, text)
			if err != nil {
				return err
			}
			entry.LemmaID = lemma.ID
		}
		if err := upsertIndex(ctx, tx, entry); err != nil {
			return fmt.Errorf("failed to save index for page %d: %w", pageID, err)
		}
	}

	for _, lemmaID := range existing {
		if err := detachLemma(ctx, tx, pageID, lemmaID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// DeletePageIndex removes every index entry of a page and releases its lemmas.
func (s *SQLiteStorage) DeletePageIndex(ctx context.Context, pageID int64) error {
	return s.SavePageLemmas(ctx, pageID, nil)
}

func pageLemmaIDs(ctx context.Context, q queryer, pageID int64) (map[string]int64, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT l.text, l.id FROM page_lemmas pl
		 JOIN lemmas l ON l.id = pl.lemma_id
		 WHERE pl.page_id = ?`, pageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var text string
		var id int64
		if err := rows.Scan(&text, &id); err != nil {
			return nil, err
		}
		out[text] = id
	}
	return out, rows.Err()
}

func detachLemma(ctx context.Context, q queryer, pageID, lemmaID int64) error {
	if _, err := q.ExecContext(ctx,
		`DELETE FROM page_lemmas WHERE page_id = ? AND lemma_id = ?`, pageID, lemmaID); err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx,
		`UPDATE lemmas SET frequency = frequency - 1 WHERE id = ?`, lemmaID); err != nil {
		return err
	}
	_, err := q.ExecContext(ctx, `DELETE FROM lemmas WHERE id = ? AND frequency <= 0`, lemmaID)
	return err
}

// FindPagesByLemma returns the ids of pages indexed under lemmaID, in ascending order.
// A nil siteIDs means every site. A nil within means no candidate restriction; a
// non-nil empty within yields no pages.
func (s *SQLiteStorage) FindPagesByLemma(ctx context.Context, lemmaID int64, siteIDs []int64, within []int64) ([]int64, error) {
	if within != nil && len(within) == 0 {
		return []int64{}, nil
	}
	if siteIDs != nil && len(siteIDs) == 0 {
		return []int64{}, nil
	}

	base := `SELECT pl.page_id FROM page_lemmas pl
		JOIN pages p ON p.id = pl.page_id
		WHERE pl.lemma_id = ?`
	args := []any{lemmaID}
	if siteIDs != nil {
		base += ` AND p.site_id IN (` + placeholders(len(siteIDs)) + `)`
		args = append(args, int64Args(siteIDs)...)
	}

	if within == nil {
		return s.queryIDs(ctx, base+` ORDER BY pl.page_id`, args...)
	}

	var out []int64
	for _, chunk := range chunkInt64s(within, maxInParams) {
		q := base + ` AND pl.page_id IN (` + placeholders(len(chunk)) + `) ORDER BY pl.page_id`
		ids, err := s.queryIDs(ctx, q, append(append([]any(nil), args...), int64Args(chunk)...)...)
		if err != nil {
			return nil, err
		}
		out = append(out, ids...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (s *SQLiteStorage) queryIDs(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SumRanks returns, per page, the sum of ranks over the given lemmas.
func (s *SQLiteStorage) SumRanks(ctx context.Context, pageIDs []int64, lemmaIDs []int64) (map[int64]int, error) {
	out := make(map[int64]int, len(pageIDs))
	if len(pageIDs) == 0 || len(lemmaIDs) == 0 {
		return out, nil
	}
	for _, chunk := range chunkInt64s(pageIDs, maxInParams) {
		q := `SELECT page_id, SUM(occurrences) FROM page_lemmas
			WHERE page_id IN (` + placeholders(len(chunk)) + `)
			AND lemma_id IN (` + placeholders(len(lemmaIDs)) + `)
			GROUP BY page_id`
		args := append(int64Args(chunk), int64Args(lemmaIDs)...)
		rows, err := s.db.QueryContext(ctx, q, args...)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var id int64
			var sum int
			if err := rows.Scan(&id, &sum); err != nil {
				rows.Close()
				return nil, err
			}
			out[id] = sum
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func stringArgs(ss []string) []any {
	args := make([]any, len(ss))
	for i, s := range ss {
		args[i] = s
	}
	return args
}

func chunkInt64s(ids []int64, size int) [][]int64 {
	var out [][]int64
	for len(ids) > size {
		out = append(out, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}

func chunkStrings(ss []string, size int) [][]string {
	var out [][]string
	for len(ss) > size {
		out = append(out, ss[:size])
		ss = ss[size:]
	}
	if len(ss) > 0 {
		out = append(out, ss)
	}
	return out
}
