package logging

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS feasibility_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id    TEXT NOT NULL,
	solution_key  TEXT NOT NULL,
	decision      TEXT NOT NULL,
	reason        TEXT,
	elapsed_us    INTEGER NOT NULL DEFAULT 0,
	created_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_feasibility_session ON feasibility_log(session_id);
`

// EnsureSchema creates the feasibility_log table if needed.
func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("feasibility log schema: %w", err)
	}
	return nil
}

// OpenDB opens (or creates) a feasibility log database at path and ensures
// the schema. Pragmas ride on the DSN so every pooled connection waits on a
// busy database instead of failing, and writes share one connection.
func OpenDB(path string) (*sql.DB, error) {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	db, err := sql.Open("sqlite", path+sep+"_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open log db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := EnsureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// #endregion schema

// #region log-evaluation
// LogEvaluation writes one evaluated solution to the feasibility_log table.
func LogEvaluation(db *sql.DB, entry EvaluationEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO feasibility_log (session_id, solution_key, decision, reason, elapsed_us, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.SessionID,
		entry.Solution,
		entry.Decision,
		nullIfEmpty(entry.Reason),
		entry.ElapsedUS,
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log evaluation: %w", err)
	}
	return nil
}

// #endregion log-evaluation

// #region list
// ListEvaluations returns the most recent entries, newest first. An empty
// sessionID lists every session.
func ListEvaluations(db *sql.DB, sessionID string, limit int) ([]EvaluationEntry, error) {
	rows, err := db.Query(
		`SELECT session_id, solution_key, decision, reason, elapsed_us, created_at
		 FROM feasibility_log
		 WHERE (? = '' OR session_id = ?)
		 ORDER BY id DESC LIMIT ?`,
		sessionID, sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list evaluations: %w", err)
	}
	defer rows.Close()

	var entries []EvaluationEntry
	for rows.Next() {
		var e EvaluationEntry
		var reason sql.NullString
		var createdStr string
		if err := rows.Scan(&e.SessionID, &e.Solution, &e.Decision, &reason, &e.ElapsedUS, &createdStr); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if reason.Valid {
			e.Reason = reason.String
		}
		e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdStr)
		if err != nil {
			return nil, fmt.Errorf("row %s/%s: created_at: %w", e.SessionID, e.Solution, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Summarize counts decisions per session, most recent session first.
func Summarize(db *sql.DB, limit int) ([]SessionSummary, error) {
	rows, err := db.Query(
		`SELECT session_id,
		        COUNT(*),
		        SUM(CASE WHEN decision = 'admit' THEN 1 ELSE 0 END),
		        SUM(CASE WHEN decision = 'reject' THEN 1 ELSE 0 END),
		        SUM(CASE WHEN decision = 'error' THEN 1 ELSE 0 END),
		        SUM(CASE WHEN decision = 'unknown' THEN 1 ELSE 0 END),
		        MIN(created_at)
		 FROM feasibility_log
		 GROUP BY session_id
		 ORDER BY MAX(id) DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("summarize sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var s SessionSummary
		if err := rows.Scan(&s.SessionID, &s.Total, &s.Admitted, &s.Rejected, &s.Errored, &s.Unknown, &s.FirstSeen); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// #endregion list

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
