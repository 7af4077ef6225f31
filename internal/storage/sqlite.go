// Package storage provides SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/juju/clock"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/sitesearch/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db    *sql.DB
	clock clock.Clock
}

// Option configures a SQLiteStorage.
type Option func(*SQLiteStorage)

// WithClock sets the clock used for site status timestamps.
func WithClock(c clock.Clock) Option {
	return func(s *SQLiteStorage) { s.clock = c }
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string, opts ...Option) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serializes writers; lemma increments rely on it.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s := &SQLiteStorage{db: db, clock: clock.WallClock}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sites (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		status TEXT NOT NULL,
		status_time TIMESTAMP NOT NULL,
		last_error TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		site_id INTEGER NOT NULL,
		path TEXT NOT NULL,
		code INTEGER NOT NULL,
		content TEXT NOT NULL,
		UNIQUE (site_id, path),
		FOREIGN KEY (site_id) REFERENCES sites(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS lemmas (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		text TEXT NOT NULL UNIQUE,
		frequency INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS page_lemmas (
		page_id INTEGER NOT NULL,
		lemma_id INTEGER NOT NULL,
		occurrences INTEGER NOT NULL,
		PRIMARY KEY (page_id, lemma_id),
		FOREIGN KEY (page_id) REFERENCES pages(id) ON DELETE CASCADE,
		FOREIGN KEY (lemma_id) REFERENCES lemmas(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_page_lemmas_lemma ON page_lemmas(lemma_id);
	CREATE INDEX IF NOT EXISTS idx_pages_site ON pages(site_id);
	`
	_, err := db.Exec(schema)
	return err
}

// UpsertSite creates the site or resets an existing one to status with a cleared error.
func (s *SQLiteStorage) UpsertSite(ctx context.Context, url, name string, status models.SiteStatus) (*models.Site, error) {
	site := &models.Site{URL: url, Name: name, Status: status, StatusTime: s.clock.Now()}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO sites (url, name, status, status_time, last_error)
		 VALUES (?, ?, ?, ?, '')
		 ON CONFLICT(url) DO UPDATE SET
			name = excluded.name,
			status = excluded.status,
			status_time = excluded.status_time,
			last_error = ''
		 RETURNING id`,
		site.URL, site.Name, string(site.Status), site.StatusTime,
	).Scan(&site.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert site %s: %w", url, err)
	}
	return site, nil
}

// GetSiteByURL returns the site with the given URL or an error wrapping models.ErrNotFound.
func (s *SQLiteStorage) GetSiteByURL(ctx context.Context, url string) (*models.Site, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, url, name, status, status_time, last_error FROM sites WHERE url = ?`, url)
	site, err := scanSite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("site %s: %w", url, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return site, nil
}

// ListSites returns every site ordered by id.
func (s *SQLiteStorage) ListSites(ctx context.Context) ([]*models.Site, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, url, name, status, status_time, last_error FROM sites ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sites []*models.Site
	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			return nil, err
		}
		sites = append(sites, site)
	}
	return sites, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSite(row rowScanner) (*models.Site, error) {
	var site models.Site
	var status string
	if err := row.Scan(&site.ID, &site.URL, &site.Name, &status, &site.StatusTime, &site.LastError); err != nil {
		return nil, err
	}
	site.Status = models.SiteStatus(status)
	return &site, nil
}

// SetSiteStatus overwrites status, status time and last error of a site.
func (s *SQLiteStorage) SetSiteStatus(ctx context.Context, siteID int64, status models.SiteStatus, lastError string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sites SET status = ?, status_time = ?, last_error = ? WHERE id = ?`,
		string(status), s.clock.Now(), lastError, siteID)
	return err
}

// FinishSite marks an INDEXING site as INDEXED.
func (s *SQLiteStorage) FinishSite(ctx context.Context, siteID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sites SET status = ?, status_time = ? WHERE id = ? AND status = ?`,
		string(models.StatusIndexed), s.clock.Now(), siteID, string(models.StatusIndexing))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// FailAllSites marks every site FAILED with lastError.
func (s *SQLiteStorage) FailAllSites(ctx context.Context, lastError string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sites SET status = ?, status_time = ?, last_error = ?`,
		string(models.StatusFailed), s.clock.Now(), lastError)
	return err
}

// TouchSite refreshes the status time. The last error is cleared unless the site has failed.
func (s *SQLiteStorage) TouchSite(ctx context.Context, siteID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sites SET status_time = ?,
			last_error = CASE WHEN status = ? THEN last_error ELSE '' END
		 WHERE id = ?`,
		s.clock.Now(), string(models.StatusFailed), siteID)
	return err
}

// WipeCorpus deletes every index entry, lemma, page and site.
func (s *SQLiteStorage) WipeCorpus(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range []string{
		`DELETE FROM page_lemmas`,
		`DELETE FROM lemmas`,
		`DELETE FROM pages`,
		`DELETE FROM sites`,
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to wipe corpus: %w", err)
		}
	}
	return tx.Commit()
}

// UpsertPage inserts the page or overwrites code and content of the existing
// (site, path) row. page.ID is set on return.
func (s *SQLiteStorage) UpsertPage(ctx context.Context, page *models.Page) error {
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO pages (site_id, path, code, content) VALUES (?, ?, ?, ?)
		 ON CONFLICT(site_id, path) DO UPDATE SET
			code = excluded.code,
			content = excluded.content
		 RETURNING id`,
		page.SiteID, page.Path, page.Code, page.Content,
	).Scan(&page.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert page %s: %w", page.Path, err)
	}
	return nil
}

// PageExists reports whether a page row exists for (siteID, path).
func (s *SQLiteStorage) PageExists(ctx context.Context, siteID int64, path string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM pages WHERE site_id = ? AND path = ?`, siteID, path).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetPage returns a page by ID.
func (s *SQLiteStorage) GetPage(ctx context.Context, id int64) (*models.Page, error) {
	var page models.Page
	err := s.db.QueryRowContext(ctx,
		`SELECT id, site_id, path, code, content FROM pages WHERE id = ?`, id,
	).Scan(&page.ID, &page.SiteID, &page.Path, &page.Code, &page.Content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("page %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// CountPages returns the number of pages of a site, or of the whole corpus when siteID is 0.
func (s *SQLiteStorage) CountPages(ctx context.Context, siteID int64) (int, error) {
	var n int
	var err error
	if siteID == 0 {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pages`).Scan(&n)
	} else {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pages WHERE site_id = ?`, siteID).Scan(&n)
	}
	return n, err
}

// CountLemmas returns the number of distinct lemmas indexed for a site, or the
// size of the lemma table when siteID is 0.
func (s *SQLiteStorage) CountLemmas(ctx context.Context, siteID int64) (int, error) {
	var n int
	var err error
	if siteID == 0 {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM lemmas`).Scan(&n)
	} else {
		err = s.db.QueryRowContext(ctx,
			`SELECT COUNT(DISTINCT pl.lemma_id) FROM page_lemmas pl
			 JOIN pages p ON p.id = pl.page_id
			 WHERE p.site_id = ?`, siteID).Scan(&n)
	}
	return n, err
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
