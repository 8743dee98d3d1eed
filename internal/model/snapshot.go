package model

import (
	"fmt"
	"reflect"
)

// Snapshot owns disposable copies of a model for the duration of one
// evaluation. Callers defer Release right after Acquire succeeds.
type Snapshot struct {
	owned []Model
}

// Acquire deep-copies src into a new snapshot.
func Acquire(src Model) (*Snapshot, error) {
	cp, err := src.Clone()
	if err != nil {
		if cp != nil {
			release(cp)
		}
		return nil, fmt.Errorf("%w: %v", ErrSnapshot, err)
	}
	if cp == nil {
		return nil, fmt.Errorf("%w: clone returned nil", ErrSnapshot)
	}
	return &Snapshot{owned: []Model{cp}}, nil
}

// Model returns the working copy. It is nil after Release.
func (s *Snapshot) Model() Model {
	if len(s.owned) == 0 {
		return nil
	}
	return s.owned[0]
}

// Adopt hands m to the snapshot so it is released together with the copy.
// Adopting the working copy itself is a no-op.
func (s *Snapshot) Adopt(m Model) {
	if m == nil {
		return
	}
	if reflect.TypeOf(m).Comparable() {
		for _, o := range s.owned {
			if o == m {
				return
			}
		}
	}
	s.owned = append(s.owned, m)
}

// Release frees every owned model. It is safe to call more than once.
func (s *Snapshot) Release() {
	for _, m := range s.owned {
		release(m)
	}
	s.owned = nil
}

func release(m Model) {
	if r, ok := m.(Releaser); ok {
		r.Release()
	}
}
