package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/linkspider/internal/model"
)

// DBFileName is the database file created inside the data directory.
const DBFileName = "linkspider.db"

// ErrSessionNotFound is returned when a session ID is not in the database.
var ErrSessionNotFound = errors.New("crawl session not found")

// CrawlDB stores crawl sessions and their fetch records in SQLite.
// It implements sink.Sink, so it can be attached to a crawl like any
// other sink.
type CrawlDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures Open.
type Options struct {
	// CreateIfNotExists creates the directory and database file if missing.
	// When false, a missing database is an error.
	CreateIfNotExists bool

	// EnableWAL turns on write-ahead logging.
	EnableWAL bool
}

// DefaultOptions returns the options used by the crawl command.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens the database in dbDir.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, DBFileName)

	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = dbPath + "?mode=rwc"
	} else if _, err := os.Stat(dbPath); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s: run a crawl with --record first", dbPath)
		}
		return nil, fmt.Errorf("failed to check database path: %w", err)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite has a single writer; tasks queue on this connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Path returns the database file path.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// Close closes the database.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

func (cdb *CrawlDB) createTables(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS crawl_sessions (
		id TEXT PRIMARY KEY,
		seeds TEXT NOT NULL,
		concurrency INTEGER NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		visited INTEGER DEFAULT 0,
		pending INTEGER DEFAULT 0,
		fetched INTEGER DEFAULT 0,
		failed INTEGER DEFAULT 0,
		links_found INTEGER DEFAULT 0,
		peak_in_flight INTEGER DEFAULT 0,
		interrupted INTEGER DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_started ON crawl_sessions(started_at);

	-- One row per dequeued URL. A URL is fetched at most once per session.
	CREATE TABLE IF NOT EXISTS fetches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		url TEXT NOT NULL,
		content_hash TEXT,
		error TEXT,
		link_count INTEGER NOT NULL,
		fetched_at TEXT NOT NULL,
		duration_ms INTEGER NOT NULL,
		UNIQUE(session_id, url)
	);

	CREATE INDEX IF NOT EXISTS idx_fetches_session ON fetches(session_id);

	-- Extracted links in document order, duplicates kept.
	CREATE TABLE IF NOT EXISTS links (
		fetch_id INTEGER NOT NULL,
		position INTEGER NOT NULL,
		url TEXT NOT NULL,
		PRIMARY KEY (fetch_id, position)
	);
	`
	_, err := cdb.db.ExecContext(ctx, schema)
	return err
}

// SessionInfo is a stored crawl session.
type SessionInfo struct {
	ID           string    `json:"id"`
	Seeds        []string  `json:"seeds"`
	Concurrency  int       `json:"concurrency"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Visited      int       `json:"visited"`
	Pending      int       `json:"pending"`
	Fetched      int       `json:"fetched"`
	Failed       int       `json:"failed"`
	LinksFound   int       `json:"links_found"`
	PeakInFlight int       `json:"peak_in_flight"`
	Interrupted  bool      `json:"interrupted"`
}

// Finished reports whether FinishSession was called for the session.
func (s SessionInfo) Finished() bool {
	return !s.FinishedAt.IsZero()
}

// StartSession registers a crawl before it runs so that records written
// during the crawl belong to a known session.
func (cdb *CrawlDB) StartSession(ctx context.Context, id string, seeds []string, concurrency int, startedAt time.Time) error {
	seedsJSON, err := json.Marshal(seeds)
	if err != nil {
		return fmt.Errorf("failed to serialize seeds: %w", err)
	}

	_, err = cdb.db.ExecContext(ctx,
		`INSERT INTO crawl_sessions (id, seeds, concurrency, started_at) VALUES (?, ?, ?, ?)`,
		id, string(seedsJSON), concurrency, formatTime(startedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	return nil
}

// FinishSession stores the final counters of a crawl.
func (cdb *CrawlDB) FinishSession(ctx context.Context, summary *model.CrawlSummary) error {
	res, err := cdb.db.ExecContext(ctx, `
	UPDATE crawl_sessions SET
		finished_at = ?, visited = ?, pending = ?, fetched = ?, failed = ?,
		links_found = ?, peak_in_flight = ?, interrupted = ?
	WHERE id = ?`,
		formatTime(summary.FinishedAt),
		len(summary.Visited),
		len(summary.Pending),
		summary.Fetched,
		summary.Failed,
		summary.LinksFound,
		summary.PeakInFlight,
		summary.Interrupted,
		summary.SessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// Record stores one fetch record with its links. It implements sink.Sink.
func (cdb *CrawlDB) Record(ctx context.Context, rec model.FetchRecord) (err error) {
	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
	INSERT INTO fetches (session_id, url, content_hash, error, link_count, fetched_at, duration_ms)
	VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID,
		rec.URL,
		nullString(rec.ContentHash),
		nullString(rec.Error),
		rec.LinkCount(),
		formatTime(rec.FetchedAt),
		rec.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert fetch: %w", err)
	}

	fetchID, err := res.LastInsertId()
	if err != nil {
		return err
	}

	for i, link := range rec.Links {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO links (fetch_id, position, url) VALUES (?, ?, ?)`,
			fetchID, i, link,
		); err != nil {
			return fmt.Errorf("failed to insert link: %w", err)
		}
	}

	return tx.Commit()
}

// ListSessions returns every session, most recent first.
func (cdb *CrawlDB) ListSessions(ctx context.Context) ([]SessionInfo, error) {
	rows, err := cdb.db.QueryContext(ctx, sessionColumns+` ORDER BY started_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []SessionInfo
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// GetSession returns one session or ErrSessionNotFound.
func (cdb *CrawlDB) GetSession(ctx context.Context, id string) (*SessionInfo, error) {
	row := cdb.db.QueryRowContext(ctx, sessionColumns+` WHERE id = ?`, id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListFetches returns the fetch records of a session in the order they
// were recorded.
func (cdb *CrawlDB) ListFetches(ctx context.Context, sessionID string) ([]model.FetchRecord, error) {
	rows, err := cdb.db.QueryContext(ctx, `
	SELECT id, url, content_hash, error, fetched_at, duration_ms
	FROM fetches WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, err
	}

	var (
		records []model.FetchRecord
		ids     []int64
	)
	for rows.Next() {
		var (
			id         int64
			rec        model.FetchRecord
			hash, ferr sql.NullString
			fetchedAt  string
			durationMS int64
		)
		if err := rows.Scan(&id, &rec.URL, &hash, &ferr, &fetchedAt, &durationMS); err != nil {
			rows.Close()
			return nil, err
		}
		rec.SessionID = sessionID
		rec.ContentHash = hash.String
		rec.Error = ferr.String
		rec.FetchedAt = parseTimestamp(fetchedAt)
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		records = append(records, rec)
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	// Release the single connection before querying links.
	rows.Close()

	for i, id := range ids {
		links, err := cdb.listLinks(ctx, id)
		if err != nil {
			return nil, err
		}
		records[i].Links = links
	}
	return records, nil
}

func (cdb *CrawlDB) listLinks(ctx context.Context, fetchID int64) ([]string, error) {
	rows, err := cdb.db.QueryContext(ctx,
		`SELECT url FROM links WHERE fetch_id = ? ORDER BY position`, fetchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []string
	for rows.Next() {
		var link string
		if err := rows.Scan(&link); err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

const sessionColumns = `
	SELECT id, seeds, concurrency, started_at, finished_at, visited, pending,
		fetched, failed, links_found, peak_in_flight, interrupted
	FROM crawl_sessions`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (SessionInfo, error) {
	var (
		s          SessionInfo
		seedsJSON  string
		startedAt  string
		finishedAt sql.NullString
	)
	err := row.Scan(
		&s.ID, &seedsJSON, &s.Concurrency, &startedAt, &finishedAt,
		&s.Visited, &s.Pending, &s.Fetched, &s.Failed, &s.LinksFound,
		&s.PeakInFlight, &s.Interrupted,
	)
	if err != nil {
		return SessionInfo{}, err
	}
	if err := json.Unmarshal([]byte(seedsJSON), &s.Seeds); err != nil {
		return SessionInfo{}, fmt.Errorf("failed to parse seeds of session %s: %w", s.ID, err)
	}
	s.StartedAt = parseTimestamp(startedAt)
	if finishedAt.Valid {
		s.FinishedAt = parseTimestamp(finishedAt.String)
	}
	return s, nil
}

// timestampFormat is used for every stored time so that text ordering
// matches time ordering.
const timestampFormat = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampFormat)
}

// parseTimestamp returns the zero time for values it cannot parse.
func parseTimestamp(s string) time.Time {
	for _, layout := range []string{timestampFormat, time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
