package evaluate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/danielpatrickdp/torchcat/go-constraints/internal/constraint"
	"github.com/danielpatrickdp/torchcat/go-constraints/internal/solution"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func budget(t *testing.T, n int64) constraint.Constraint {
	t.Helper()
	c, err := constraint.NewLZeroNorm(n, constraint.LessEqual)
	require.NoError(t, err)
	return c
}

func TestRunPreservesOrder(t *testing.T) {
	h := NewHarness(constraint.All(budget(t, 10)), Config{Workers: 3}, WithLogger(zaptest.NewLogger(t)))

	sols := []solution.Solution{
		solution.MustNew(3, 3, 3),
		solution.MustNew(4, 4, 4),
		solution.MustNew(10),
		solution.MustNew(11),
	}
	decisions, err := h.Run(context.Background(), sols)
	require.NoError(t, err)
	require.Len(t, decisions, len(sols))

	want := []Action{ActionAdmit, ActionReject, ActionAdmit, ActionReject}
	for i, d := range decisions {
		assert.Equal(t, want[i], d.Action, "solution %s", sols[i])
		assert.Equal(t, sols[i].Key(), d.Solution.Key())
		assert.Equal(t, h.SessionID(), d.SessionID)
	}
	assert.Contains(t, decisions[1].Reason, "l0norm(sum <= 10)")
}

// anyOf admits a solution when one child does and names the last child tried
// when none does.
type anyOf []constraint.Constraint

func (a anyOf) Feasible(s solution.Solution) (bool, error) {
	failed, err := a.Check(s)
	return failed == nil, err
}

func (a anyOf) Check(s solution.Solution) (constraint.Constraint, error) {
	var last constraint.Constraint
	for _, c := range a {
		ok, err := c.Feasible(s)
		if err != nil {
			return nil, err
		}
		if ok {
			return nil, nil
		}
		last = c
	}
	return last, nil
}

func TestEvaluateNamesRejectingChildOfAnyChecker(t *testing.T) {
	h := NewHarness(anyOf{budget(t, 2), budget(t, 5)}, Config{Workers: 1})

	d := h.Evaluate(solution.MustNew(3, 3))
	assert.Equal(t, ActionReject, d.Action)
	assert.Equal(t, "rejected by l0norm(sum <= 5)", d.Reason)

	d = h.Evaluate(solution.MustNew(2, 2))
	assert.Equal(t, ActionAdmit, d.Action)
}

func TestRunIsolatesErrors(t *testing.T) {
	boom := errors.New("pruner unavailable")
	flaky := constraint.Func(func(s solution.Solution) (bool, error) {
		if s.Len() == 1 {
			return false, boom
		}
		return true, nil
	})
	h := NewHarness(flaky, Config{Workers: 2})

	decisions, err := h.Run(context.Background(), []solution.Solution{
		solution.MustNew(1, 1),
		solution.MustNew(1),
		solution.MustNew(2, 2),
	})
	require.NoError(t, err)

	assert.Equal(t, ActionAdmit, decisions[0].Action)
	assert.Equal(t, ActionError, decisions[1].Action)
	assert.ErrorIs(t, decisions[1].Err, boom)
	assert.False(t, decisions[1].Feasible(), "an error is never feasible")
	assert.Equal(t, ActionAdmit, decisions[2].Action)
}

func TestRunRespectsWorkerLimit(t *testing.T) {
	var inFlight, peak atomic.Int32
	slow := constraint.Func(func(solution.Solution) (bool, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		defer inFlight.Add(-1)
		return true, nil
	})

	sols := make([]solution.Solution, 50)
	for i := range sols {
		sols[i] = solution.MustNew(i)
	}
	_, err := NewHarness(slow, Config{Workers: 2}).Run(context.Background(), sols)
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestRunCancelledMarksUnknown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	c := constraint.Func(func(solution.Solution) (bool, error) {
		calls.Add(1)
		return true, nil
	})

	decisions, err := NewHarness(c, DefaultConfig()).Run(ctx, []solution.Solution{solution.MustNew(1), solution.MustNew(2)})
	assert.ErrorIs(t, err, context.Canceled)
	for _, d := range decisions {
		assert.Equal(t, ActionUnknown, d.Action)
		assert.False(t, d.Feasible())
	}
	assert.Zero(t, calls.Load())
}

func TestSinkReceivesEveryDecision(t *testing.T) {
	var mu sync.Mutex
	var seen []Decision
	sink := SinkFunc(func(d Decision) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, d)
		return errors.New("sink full")
	})

	h := NewHarness(budget(t, 5), Config{Workers: 4, SessionID: "session-1"}, WithSink(sink))
	decisions, err := h.Run(context.Background(), []solution.Solution{solution.MustNew(1), solution.MustNew(9)})
	require.NoError(t, err, "sink failures must not fail the batch")

	assert.Len(t, seen, 2)
	assert.Equal(t, "session-1", decisions[0].SessionID)
	assert.Equal(t, ActionReject, decisions[1].Action)
	assert.Contains(t, decisions[1].Reason, "l0norm")
}

func TestNewHarnessDefaults(t *testing.T) {
	h := NewHarness(constraint.All(), Config{})
	assert.NotEmpty(t, h.SessionID())
	assert.Equal(t, 1, h.config.Workers)

	d := h.Evaluate(solution.MustNew())
	assert.Equal(t, ActionAdmit, d.Action)
}
