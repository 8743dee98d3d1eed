package evaluate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/danielpatrickdp/torchcat/go-constraints/internal/constraint"
	"github.com/danielpatrickdp/torchcat/go-constraints/internal/solution"
)

// #region harness
// Harness evaluates batches of solutions against one constraint tree.
type Harness struct {
	constraint constraint.Constraint
	config     Config
	sink       Sink
	logger     *zap.Logger
}

// Option configures a Harness.
type Option func(*Harness)

// WithSink forwards every decision to s.
func WithSink(s Sink) Option {
	return func(h *Harness) { h.sink = s }
}

// WithLogger sets the logger. The default discards output.
func WithLogger(l *zap.Logger) Option {
	return func(h *Harness) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHarness creates a harness for c.
func NewHarness(c constraint.Constraint, config Config, opts ...Option) *Harness {
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.SessionID == "" {
		config.SessionID = uuid.New().String()
	}
	h := &Harness{constraint: c, config: config, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SessionID returns the ID attached to every decision.
func (h *Harness) SessionID() string { return h.config.SessionID }

// #endregion harness

// #region run
// Run evaluates every solution, at most config.Workers at a time. Decisions
// are returned in input order. An erroring solution never stops the batch.
// Solutions not started before ctx ends are marked unknown and Run returns
// ctx.Err().
func (h *Harness) Run(ctx context.Context, sols []solution.Solution) ([]Decision, error) {
	decisions := make([]Decision, len(sols))

	g := new(errgroup.Group)
	g.SetLimit(h.config.Workers)
	for i, s := range sols {
		if ctx.Err() != nil {
			decisions[i] = h.unknown(s)
			continue
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				decisions[i] = h.unknown(s)
				return nil
			}
			decisions[i] = h.Evaluate(s)
			return nil
		})
	}
	g.Wait()

	admitted := 0
	for _, d := range decisions {
		if d.Feasible() {
			admitted++
		}
	}
	h.logger.Info("batch evaluated",
		zap.String("session", h.config.SessionID),
		zap.Int("solutions", len(sols)),
		zap.Int("admitted", admitted))

	return decisions, ctx.Err()
}

// Evaluate runs the constraint tree on a single solution and records the decision.
func (h *Harness) Evaluate(s solution.Solution) Decision {
	start := time.Now()
	d := Decision{SessionID: h.config.SessionID, Solution: s}

	if c, ok := h.constraint.(constraint.Checker); ok {
		failed, err := c.Check(s)
		switch {
		case err != nil:
			d.Action, d.Err, d.Reason = ActionError, err, err.Error()
		case failed != nil:
			d.Action, d.Reason = ActionReject, fmt.Sprintf("rejected by %s", constraint.Describe(failed))
		default:
			d.Action, d.Reason = ActionAdmit, "all constraints satisfied"
		}
	} else {
		ok, err := h.constraint.Feasible(s)
		switch {
		case err != nil:
			d.Action, d.Err, d.Reason = ActionError, err, err.Error()
		case !ok:
			d.Action, d.Reason = ActionReject, fmt.Sprintf("rejected by %s", constraint.Describe(h.constraint))
		default:
			d.Action, d.Reason = ActionAdmit, "constraint satisfied"
		}
	}
	d.Elapsed = time.Since(start)

	h.record(d)
	return d
}

// #endregion run

// #region helpers
func (h *Harness) unknown(s solution.Solution) Decision {
	d := Decision{
		SessionID: h.config.SessionID,
		Solution:  s,
		Action:    ActionUnknown,
		Reason:    "not evaluated: context done",
	}
	h.record(d)
	return d
}

func (h *Harness) record(d Decision) {
	if d.Action == ActionError {
		h.logger.Warn("evaluation failed",
			zap.String("solution", d.Solution.Key()),
			zap.Error(d.Err))
	} else {
		h.logger.Debug("evaluated",
			zap.String("solution", d.Solution.Key()),
			zap.String("action", string(d.Action)),
			zap.Duration("elapsed", d.Elapsed))
	}
	if h.sink == nil {
		return
	}
	if err := h.sink.Record(d); err != nil {
		h.logger.Warn("record decision", zap.String("solution", d.Solution.Key()), zap.Error(err))
	}
}

// #endregion helpers
