// Package constraint decides whether a pruning solution is admissible.
//
// Every Constraint is a pure predicate over a solution.Solution. A constraint
// that cannot evaluate returns an error; callers must not read the boolean in
// that case. All implementations are safe for concurrent use.
package constraint

import (
	"fmt"
	"strings"

	"github.com/danielpatrickdp/torchcat/go-constraints/internal/solution"
)

// #region interface
// Constraint is a feasibility predicate.
type Constraint interface {
	Feasible(s solution.Solution) (bool, error)
}

// Func adapts an ordinary function to Constraint.
type Func func(s solution.Solution) (bool, error)

// Feasible calls f(s).
func (f Func) Feasible(s solution.Solution) (bool, error) { return f(s) }

// Checker is implemented by composite constraints that can name the child
// rejecting a solution. A nil child with a nil error means s is admitted.
type Checker interface {
	Check(s solution.Solution) (Constraint, error)
}

// #endregion interface

// #region container
// Container is the conjunction of its children, evaluated in order.
type Container struct {
	children []Constraint
}

// All returns the conjunction of cs. An empty conjunction admits every solution.
func All(cs ...Constraint) *Container {
	children := make([]Constraint, len(cs))
	copy(children, cs)
	return &Container{children: children}
}

// Len returns the number of children.
func (c *Container) Len() int { return len(c.children) }

// Feasible reports whether every child admits s. Evaluation stops at the
// first rejection or error.
func (c *Container) Feasible(s solution.Solution) (bool, error) {
	failed, err := c.Check(s)
	if err != nil {
		return false, err
	}
	return failed == nil, nil
}

// Check returns the first child rejecting s, or nil when all admit it.
func (c *Container) Check(s solution.Solution) (Constraint, error) {
	for i, child := range c.children {
		ok, err := child.Feasible(s)
		if err != nil {
			return nil, fmt.Errorf("constraint %d (%s): %w", i, Describe(child), err)
		}
		if !ok {
			return child, nil
		}
	}
	return nil, nil
}

func (c *Container) String() string {
	parts := make([]string, len(c.children))
	for i, child := range c.children {
		parts[i] = Describe(child)
	}
	return "all(" + strings.Join(parts, ", ") + ")"
}

// #endregion container

// Describe names a constraint for logs and error messages.
func Describe(c Constraint) string {
	if s, ok := c.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", c)
}
