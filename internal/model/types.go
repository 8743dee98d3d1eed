package model

import "errors"

// ErrSnapshot is returned when a disposable copy of a model cannot be produced.
var ErrSnapshot = errors.New("model snapshot failed")

// #region view
// Module is the read-only view of one unit of a model.
type Module interface {
	Name() string
	// Weight reports the weight shape, or false when the unit carries no weight.
	Weight() (Shape, bool)
}

// Model is the read-only contract consumed by feasibility checks.
type Model interface {
	Modules() []Module
	// Clone returns an independent deep copy sharing no mutable state.
	Clone() (Model, error)
	// Digest identifies the model's architecture and weights.
	Digest() string
}

// Releaser is implemented by models holding resources that must be freed
// once a snapshot is discarded.
type Releaser interface {
	Release()
}

// #endregion view

// #region shape
// Shape lists tensor dimensions, outermost first.
type Shape []int

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	if s == nil {
		return nil
	}
	cp := make(Shape, len(s))
	copy(cp, s)
	return cp
}

// Positive reports whether every dimension is strictly positive.
func (s Shape) Positive() bool {
	for _, d := range s {
		if d <= 0 {
			return false
		}
	}
	return true
}

// Elements returns the number of scalars a tensor of this shape holds.
// Non-positive dimensions yield zero.
func (s Shape) Elements() int {
	n := 1
	for _, d := range s {
		if d <= 0 {
			return 0
		}
		n *= d
	}
	return n
}

// #endregion shape

// #region kind
// Kind names a layer type.
type Kind string

const (
	KindConv2D    Kind = "conv2d"
	KindLinear    Kind = "linear"
	KindBatchNorm Kind = "batchnorm"
	KindReLU      Kind = "relu"
	KindFlatten   Kind = "flatten"
	KindPool      Kind = "pool"
)

// Valid reports whether k is a known layer kind.
func (k Kind) Valid() bool {
	switch k {
	case KindConv2D, KindLinear, KindBatchNorm, KindReLU, KindFlatten, KindPool:
		return true
	}
	return false
}

// Consumes reports whether layers of this kind read channels on their input
// axis (axis 1 of the weight).
func (k Kind) Consumes() bool {
	return k == KindConv2D || k == KindLinear
}

// #endregion kind
