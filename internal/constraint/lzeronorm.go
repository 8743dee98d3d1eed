package constraint

import (
	"fmt"

	"github.com/danielpatrickdp/torchcat/go-constraints/internal/solution"
)

// #region relation
// Relation is a comparison between two integers.
type Relation int

const (
	LessEqual Relation = iota + 1
	Less
	Equal
	GreaterEqual
	Greater
	NotEqual
)

var relationSymbols = map[Relation]string{
	LessEqual:    "<=",
	Less:         "<",
	Equal:        "==",
	GreaterEqual: ">=",
	Greater:      ">",
	NotEqual:     "!=",
}

// ParseRelation accepts the symbols <=, <, ==, >=, >, != (and = for ==).
func ParseRelation(sym string) (Relation, error) {
	if sym == "=" {
		return Equal, nil
	}
	for r, s := range relationSymbols {
		if s == sym {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown relation %q", sym)
}

// Valid reports whether r is one of the defined relations.
func (r Relation) Valid() bool {
	_, ok := relationSymbols[r]
	return ok
}

// Compare evaluates `a r b`.
func (r Relation) Compare(a, b int64) bool {
	switch r {
	case LessEqual:
		return a <= b
	case Less:
		return a < b
	case Equal:
		return a == b
	case GreaterEqual:
		return a >= b
	case Greater:
		return a > b
	case NotEqual:
		return a != b
	}
	return false
}

func (r Relation) String() string {
	if s, ok := relationSymbols[r]; ok {
		return s
	}
	return fmt.Sprintf("Relation(%d)", int(r))
}

// #endregion relation

// #region lzeronorm
// LZeroNorm bounds the total number of removed units: it admits a solution
// when `sum(solution) rel budget` holds.
type LZeroNorm struct {
	budget   int64
	relation Relation
}

// NewLZeroNorm builds a budget constraint.
func NewLZeroNorm(budget int64, rel Relation) (*LZeroNorm, error) {
	if !rel.Valid() {
		return nil, fmt.Errorf("l0norm: invalid relation %v", rel)
	}
	return &LZeroNorm{budget: budget, relation: rel}, nil
}

// Feasible compares the solution sum against the budget. A zero LZeroNorm
// has no relation and reports an error.
func (n *LZeroNorm) Feasible(s solution.Solution) (bool, error) {
	if !n.relation.Valid() {
		return false, fmt.Errorf("l0norm: invalid relation %v", n.relation)
	}
	return n.relation.Compare(s.Sum(), n.budget), nil
}

func (n *LZeroNorm) String() string {
	return fmt.Sprintf("l0norm(sum %s %d)", n.relation, n.budget)
}

// #endregion lzeronorm
