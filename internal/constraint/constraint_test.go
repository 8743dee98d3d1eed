package constraint

import (
	"errors"
	"sync/atomic"
	"testing"

	"go.uber.org/goleak"

	"github.com/danielpatrickdp/torchcat/go-constraints/internal/solution"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// #region helpers
type counting struct {
	result bool
	err    error
	calls  atomic.Int32
}

func (c *counting) Feasible(solution.Solution) (bool, error) {
	c.calls.Add(1)
	return c.result, c.err
}

func always(v bool) Constraint {
	return Func(func(solution.Solution) (bool, error) { return v, nil })
}

// #endregion helpers

// #region container-tests
func TestEmptyContainerIsFeasible(t *testing.T) {
	c := All()
	for _, s := range []solution.Solution{solution.MustNew(), solution.MustNew(0), solution.MustNew(100, 200)} {
		ok, err := c.Feasible(s)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !ok {
			t.Fatalf("empty conjunction rejected %s", s)
		}
	}
	if c.Len() != 0 {
		t.Fatalf("expected no children, got %d", c.Len())
	}
}

func TestContainerShortCircuits(t *testing.T) {
	a := &counting{result: false}
	b := &counting{result: true}

	ok, err := All(a, b).Feasible(solution.MustNew(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected infeasible")
	}
	if a.calls.Load() != 1 {
		t.Fatalf("expected A called once, got %d", a.calls.Load())
	}
	if b.calls.Load() != 0 {
		t.Fatalf("B must not be evaluated after A rejects, got %d calls", b.calls.Load())
	}
}

func TestContainerOutcomeIsOrderIndependent(t *testing.T) {
	orders := [][]Constraint{
		{always(true), always(true), always(false)},
		{always(true), always(false), always(true)},
		{always(false), always(true), always(true)},
	}
	for i, cs := range orders {
		ok, err := All(cs...).Feasible(solution.MustNew(1))
		if err != nil {
			t.Fatalf("order %d: unexpected error: %v", i, err)
		}
		if ok {
			t.Fatalf("order %d: expected infeasible", i)
		}
	}

	budget, _ := NewLZeroNorm(5, LessEqual)
	ok, _ := All(always(true), budget).Feasible(solution.MustNew(1))
	okRev, _ := All(budget, always(true)).Feasible(solution.MustNew(1))
	if !ok || !okRev {
		t.Fatal("all-feasible children should be feasible in any order")
	}
}

func TestContainerPropagatesError(t *testing.T) {
	boom := errors.New("pruner exploded")
	a := &counting{err: boom}
	b := &counting{result: true}

	_, err := All(a, b).Feasible(solution.MustNew(1))
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
	if b.calls.Load() != 0 {
		t.Fatal("evaluation must stop at the first error")
	}
}

func TestContainerIsComposable(t *testing.T) {
	budget, err := NewLZeroNorm(10, LessEqual)
	if err != nil {
		t.Fatalf("NewLZeroNorm: %v", err)
	}
	tree := All(All(), All(budget, always(true)))

	ok, err := tree.Feasible(solution.MustNew(3, 3, 3))
	if err != nil || !ok {
		t.Fatalf("expected feasible, got %v %v", ok, err)
	}
	ok, err = tree.Feasible(solution.MustNew(4, 4, 4))
	if err != nil || ok {
		t.Fatalf("expected infeasible, got %v %v", ok, err)
	}
}

func TestContainerCheckReportsFailure(t *testing.T) {
	budget, _ := NewLZeroNorm(5, LessEqual)
	c := All(always(true), budget)

	failed, err := c.Check(solution.MustNew(3, 3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if failed != budget {
		t.Fatalf("expected budget to reject, got %v", failed)
	}
	if Describe(failed) != "l0norm(sum <= 5)" {
		t.Fatalf("unexpected description %q", Describe(failed))
	}
	if c.String() == "" {
		t.Fatal("container should describe itself")
	}
}

// #endregion container-tests

// #region lzeronorm-tests
func TestLZeroNorm(t *testing.T) {
	tests := []struct {
		name string
		rel  Relation
		sol  []int
		want bool
	}{
		{"le under budget", LessEqual, []int{3, 3, 3}, true},
		{"le over budget", LessEqual, []int{4, 4, 4}, false},
		{"eq exact", Equal, []int{5, 5}, true},
		{"eq off", Equal, []int{5, 4}, false},
		{"lt at budget", Less, []int{10}, false},
		{"ge at budget", GreaterEqual, []int{10}, true},
		{"gt under", Greater, []int{9}, false},
		{"ne off", NotEqual, []int{9}, true},
		{"empty le", LessEqual, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := NewLZeroNorm(10, tt.rel)
			if err != nil {
				t.Fatalf("NewLZeroNorm: %v", err)
			}
			got, err := n.Feasible(solution.MustNew(tt.sol...))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Feasible(%v) = %v, want %v", tt.sol, got, tt.want)
			}
		})
	}
}

func TestLZeroNormRejectsInvalidRelation(t *testing.T) {
	if _, err := NewLZeroNorm(10, Relation(0)); err == nil {
		t.Fatal("expected error for zero relation")
	}
	if _, err := NewLZeroNorm(10, Relation(42)); err == nil {
		t.Fatal("expected error for unknown relation")
	}
}

func TestLZeroNormZeroValueErrors(t *testing.T) {
	var n LZeroNorm
	if _, err := n.Feasible(solution.MustNew(1)); err == nil {
		t.Fatal("expected error from zero LZeroNorm")
	}
	if _, err := All(&n).Feasible(solution.MustNew(1)); err == nil {
		t.Fatal("expected container to surface the error")
	}
}

func TestParseRelation(t *testing.T) {
	for r, sym := range relationSymbols {
		got, err := ParseRelation(sym)
		if err != nil {
			t.Fatalf("ParseRelation(%q): %v", sym, err)
		}
		if got != r || got.String() != sym {
			t.Fatalf("round trip %q gave %v", sym, got)
		}
	}
	if r, err := ParseRelation("="); err != nil || r != Equal {
		t.Fatalf("expected = to parse as Equal, got %v %v", r, err)
	}
	if _, err := ParseRelation("~"); err == nil {
		t.Fatal("expected error for unknown symbol")
	}
}

func TestLZeroNormIdempotent(t *testing.T) {
	n, _ := NewLZeroNorm(10, LessEqual)
	s := solution.MustNew(4, 6)
	first, _ := n.Feasible(s)
	second, _ := n.Feasible(s)
	if first != second {
		t.Fatal("repeated evaluation changed the result")
	}
}

// #endregion lzeronorm-tests
