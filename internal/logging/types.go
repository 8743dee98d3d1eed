package logging

import "time"

// #region evaluation-entry
// EvaluationEntry is a single row in the feasibility_log table.
type EvaluationEntry struct {
	SessionID string
	Solution  string // solution.Key()
	Decision  string // "admit" | "reject" | "error" | "unknown"
	Reason    string
	ElapsedUS int64
	CreatedAt time.Time
}

// #endregion evaluation-entry

// #region session-summary
// SessionSummary aggregates the decisions of one evaluation session.
type SessionSummary struct {
	SessionID string `json:"session_id"`
	Total     int    `json:"total"`
	Admitted  int    `json:"admitted"`
	Rejected  int    `json:"rejected"`
	Errored   int    `json:"errored"`
	Unknown   int    `json:"unknown"`
	FirstSeen string `json:"first_seen"`
}

// #endregion session-summary
