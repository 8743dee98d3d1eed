package evaluate

import (
	"time"

	"github.com/danielpatrickdp/torchcat/go-constraints/internal/solution"
)

// #region action
// Action is the outcome of evaluating one solution.
type Action string

const (
	ActionAdmit   Action = "admit"
	ActionReject  Action = "reject"
	ActionError   Action = "error"   // the constraint tree could not evaluate
	ActionUnknown Action = "unknown" // not evaluated before the context ended
)

// #endregion action

// #region config
// Config holds harness settings.
type Config struct {
	Workers   int    // max concurrent evaluations
	SessionID string // tags every decision; generated when empty
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{Workers: 4}
}

// #endregion config

// #region decision
// Decision is the harness output for one solution.
type Decision struct {
	SessionID string
	Solution  solution.Solution
	Action    Action
	Reason    string
	Err       error // non-nil iff Action == ActionError
	Elapsed   time.Duration
}

// Feasible reports whether the solution was admitted.
func (d Decision) Feasible() bool { return d.Action == ActionAdmit }

// #endregion decision

// #region sink
// Sink receives every decision once it is made. Implementations must be
// safe for concurrent use.
type Sink interface {
	Record(d Decision) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(d Decision) error

// Record calls f(d).
func (f SinkFunc) Record(d Decision) error { return f(d) }

// #endregion sink
