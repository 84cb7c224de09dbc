package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS cache_entries (
    key TEXT PRIMARY KEY,
    status_code INTEGER NOT NULL,
    headers_json TEXT,
    body BLOB,
    fetched_at INTEGER NOT NULL,
    ttl_ns INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cache_fetched_at ON cache_entries(fetched_at);
`

// SQLiteStore persists cache entries in a SQLite database, so a cache
// survives across sessions on the same target.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) a SQLite-backed store at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("%s?_journal=WAL&_synchronous=NORMAL&_busy_timeout=5000", path)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping cache database: %w", err)
	}

	// SQLite supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Get returns the entry for key, or false if absent.
func (s *SQLiteStore) Get(key string) (*Entry, bool, error) {
	row := s.db.QueryRow(
		`SELECT status_code, headers_json, body, fetched_at, ttl_ns FROM cache_entries WHERE key = ?`, key)

	var (
		statusCode  int
		headersJSON sql.NullString
		body        []byte
		fetchedAt   int64
		ttlNS       int64
	)
	if err := row.Scan(&statusCode, &headersJSON, &body, &fetchedAt, &ttlNS); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, err
	}

	headers := http.Header{}
	if headersJSON.Valid && headersJSON.String != "" {
		if err := json.Unmarshal([]byte(headersJSON.String), &headers); err != nil {
			headers = http.Header{}
		}
	}

	return &Entry{
		Key:        key,
		StatusCode: statusCode,
		Headers:    headers,
		Body:       body,
		FetchedAt:  time.Unix(0, fetchedAt),
		TTL:        time.Duration(ttlNS),
	}, true, nil
}

// Put inserts or replaces an entry.
func (s *SQLiteStore) Put(entry *Entry) error {
	headersJSON, err := json.Marshal(entry.Headers)
	if err != nil {
		headersJSON = []byte("{}")
	}

	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO cache_entries (key, status_code, headers_json, body, fetched_at, ttl_ns)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.Key, entry.StatusCode, string(headersJSON), entry.Body,
		entry.FetchedAt.UnixNano(), int64(entry.TTL))
	return err
}

// Delete removes an entry.
func (s *SQLiteStore) Delete(key string) error {
	_, err := s.db.Exec(`DELETE FROM cache_entries WHERE key = ?`, key)
	return err
}

// List returns metadata for all stored entries, oldest first.
func (s *SQLiteStore) List() ([]Meta, error) {
	rows, err := s.db.Query(`SELECT key, fetched_at, ttl_ns FROM cache_entries ORDER BY fetched_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var metas []Meta
	for rows.Next() {
		var (
			key       string
			fetchedAt int64
			ttlNS     int64
		)
		if err := rows.Scan(&key, &fetchedAt, &ttlNS); err != nil {
			return nil, err
		}
		metas = append(metas, Meta{Key: key, FetchedAt: time.Unix(0, fetchedAt), TTL: time.Duration(ttlNS)})
	}
	return metas, rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
