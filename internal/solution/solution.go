package solution

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformed marks a solution that does not fit the model it is applied to:
// wrong length, negative entries or removals wider than a layer.
var ErrMalformed = errors.New("malformed solution")

// #region solution
// Solution is a per-layer pruning descriptor. Entry i is the number of output
// channels removed from the i-th prunable layer. The zero value is an empty solution.
type Solution struct {
	entries []int
}

// New builds a solution from the given entries. Negative entries are rejected.
func New(entries ...int) (Solution, error) {
	for i, e := range entries {
		if e < 0 {
			return Solution{}, fmt.Errorf("%w: entry %d is negative (%d)", ErrMalformed, i, e)
		}
	}
	cp := make([]int, len(entries))
	copy(cp, entries)
	return Solution{entries: cp}, nil
}

// MustNew is like New but panics on invalid input. Intended for tests and literals.
func MustNew(entries ...int) Solution {
	s, err := New(entries...)
	if err != nil {
		panic(err)
	}
	return s
}

// Parse reads a solution written as comma or whitespace separated integers.
func Parse(text string) (Solution, error) {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	entries := make([]int, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return Solution{}, fmt.Errorf("%w: parse %q: %v", ErrMalformed, f, err)
		}
		entries = append(entries, v)
	}
	return New(entries...)
}

// #endregion solution

// #region accessors
// Len returns the number of entries.
func (s Solution) Len() int { return len(s.entries) }

// At returns entry i.
func (s Solution) At(i int) int { return s.entries[i] }

// Values returns a copy of the entries.
func (s Solution) Values() []int {
	cp := make([]int, len(s.entries))
	copy(cp, s.entries)
	return cp
}

// Sum adds all entries using 64-bit accumulation.
func (s Solution) Sum() int64 {
	var total int64
	for _, e := range s.entries {
		total += int64(e)
	}
	return total
}

// Key returns the canonical text form used in cache keys and logs.
func (s Solution) Key() string {
	var b strings.Builder
	for i, e := range s.entries {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(e))
	}
	return b.String()
}

func (s Solution) String() string {
	return "[" + s.Key() + "]"
}

// #endregion accessors
