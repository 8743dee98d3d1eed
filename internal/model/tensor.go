package model

import "fmt"

// Tensor is a dense row-major float32 tensor. Data may be empty for
// shape-only models.
type Tensor struct {
	Shape Shape     `yaml:"shape"`
	Data  []float32 `yaml:"data,omitempty"`
}

// NewTensor allocates a zero tensor of the given shape.
func NewTensor(shape ...int) *Tensor {
	s := Shape(shape)
	return &Tensor{Shape: s.Clone(), Data: make([]float32, s.Elements())}
}

func (t *Tensor) validate() error {
	if len(t.Shape) == 0 {
		return fmt.Errorf("tensor has no shape")
	}
	if len(t.Data) != 0 && len(t.Data) != t.Shape.Elements() {
		return fmt.Errorf("tensor shape %v holds %d values, got %d", t.Shape, t.Shape.Elements(), len(t.Data))
	}
	return nil
}

// Select gathers the given indices along axis into a new tensor. The
// receiver is left untouched and the result shares no storage with it.
func (t *Tensor) Select(axis int, keep []int) (*Tensor, error) {
	if axis < 0 || axis >= len(t.Shape) {
		return nil, fmt.Errorf("select axis %d out of range for shape %v", axis, t.Shape)
	}
	n := t.Shape[axis]
	for _, k := range keep {
		if k < 0 || k >= n {
			return nil, fmt.Errorf("select index %d out of range for axis %d of size %d", k, axis, n)
		}
	}

	shape := t.Shape.Clone()
	shape[axis] = len(keep)
	out := &Tensor{Shape: shape}
	if len(t.Data) == 0 {
		return out, nil
	}

	outer := t.Shape[:axis].Elements()
	inner := t.Shape[axis+1:].Elements()
	out.Data = make([]float32, 0, outer*len(keep)*inner)
	for o := 0; o < outer; o++ {
		for _, k := range keep {
			base := (o*n + k) * inner
			out.Data = append(out.Data, t.Data[base:base+inner]...)
		}
	}
	return out, nil
}

// RowNorms returns the L1 norm of every slice along axis 0. It returns nil
// for shape-only tensors.
func (t *Tensor) RowNorms() []float64 {
	if len(t.Data) == 0 || len(t.Shape) == 0 || t.Shape[0] <= 0 {
		return nil
	}
	rows := t.Shape[0]
	width := len(t.Data) / rows
	norms := make([]float64, rows)
	for r := 0; r < rows; r++ {
		var sum float64
		for _, v := range t.Data[r*width : (r+1)*width] {
			if v < 0 {
				sum -= float64(v)
			} else {
				sum += float64(v)
			}
		}
		norms[r] = sum
	}
	return norms
}
