package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS feasibility_cache (
	model_digest  TEXT NOT NULL,
	pruner_id     TEXT NOT NULL,
	solution_key  TEXT NOT NULL,
	feasible      INTEGER NOT NULL,
	created_at    TEXT NOT NULL,
	PRIMARY KEY (model_digest, pruner_id, solution_key)
);
`

// #endregion schema

// #region store-struct
// SQLite persists feasibility results so they survive across search runs.
type SQLite struct {
	db     *sql.DB
	owned  bool
	hits   atomic.Int64
	misses atomic.Int64
}

// #endregion store-struct

// #region constructor
// OpenSQLite opens (or creates) a cache database at path. The pragmas ride
// on the DSN so every pooled connection gets them, and writes go through a
// single connection.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open db: %w", err)
	}
	c, err := NewSQLite(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	c.owned = true
	return c, nil
}

func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// NewSQLite creates the cache table on an existing database handle.
func NewSQLite(db *sql.DB) (*SQLite, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate cache: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close closes the database if it was opened by OpenSQLite.
func (c *SQLite) Close() error {
	if !c.owned {
		return nil
	}
	return c.db.Close()
}

// #endregion constructor

// #region lookup-store
// Lookup returns the stored result for key and whether it was present.
func (c *SQLite) Lookup(key Key) (bool, bool, error) {
	var feasible int
	err := c.db.QueryRow(
		`SELECT feasible FROM feasibility_cache
		 WHERE model_digest = ? AND pruner_id = ? AND solution_key = ?`,
		key.Model, key.Pruner, key.Solution,
	).Scan(&feasible)
	if errors.Is(err, sql.ErrNoRows) {
		c.misses.Add(1)
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("lookup %s: %w", key, err)
	}
	c.hits.Add(1)
	return feasible != 0, true, nil
}

// Store upserts the result for key.
func (c *SQLite) Store(key Key, feasible bool) error {
	v := 0
	if feasible {
		v = 1
	}
	_, err := c.db.Exec(
		`INSERT INTO feasibility_cache (model_digest, pruner_id, solution_key, feasible, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(model_digest, pruner_id, solution_key) DO UPDATE SET feasible = excluded.feasible`,
		key.Model, key.Pruner, key.Solution, v, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("store %s: %w", key, err)
	}
	return nil
}

// Stats returns lookup counters and the number of stored rows.
func (c *SQLite) Stats() (Stats, error) {
	var n int
	if err := c.db.QueryRow(`SELECT COUNT(*) FROM feasibility_cache`).Scan(&n); err != nil {
		return Stats{}, fmt.Errorf("count entries: %w", err)
	}
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load(), Entries: n}, nil
}

// #endregion lookup-store
