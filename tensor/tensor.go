// Package tensor provides the minimal dense tensor used to pass images
// through the monitor pipeline.
package tensor

import (
	"errors"
	"fmt"
	"slices"
)

// ErrShapeMismatch is returned when data length does not match the shape.
var ErrShapeMismatch = errors.New("data length does not match shape")

// Tensor is a row-major dense array of float64 values.
type Tensor struct {
	Shape []int
	Data  []float64
}

// New creates a Tensor, validating that len(data) equals the product of shape.
func New(shape []int, data []float64) (*Tensor, error) {
	size := 1
	for _, d := range shape {
		if d < 0 {
			return nil, fmt.Errorf("%w: negative dimension in %v", ErrShapeMismatch, shape)
		}
		size *= d
	}
	if size != len(data) {
		return nil, fmt.Errorf("%w: shape %v needs %d values, got %d", ErrShapeMismatch, shape, size, len(data))
	}
	return &Tensor{Shape: slices.Clone(shape), Data: data}, nil
}

// Zeros allocates a zero-filled tensor of the given shape.
func Zeros(shape ...int) *Tensor {
	size := 1
	for _, d := range shape {
		size *= d
	}
	return &Tensor{Shape: slices.Clone(shape), Data: make([]float64, size)}
}

func (t *Tensor) Rank() int {
	return len(t.Shape)
}

// Reshape returns a view sharing t's data with a new shape. The new shape
// must hold the same number of elements.
func (t *Tensor) Reshape(shape ...int) (*Tensor, error) {
	return New(shape, t.Data)
}

// At returns the element at the given index. It panics when the index rank
// or any coordinate is out of range, like slice indexing.
func (t *Tensor) At(idx ...int) float64 {
	return t.Data[t.offset(idx)]
}

// Set stores v at the given index.
func (t *Tensor) Set(v float64, idx ...int) {
	t.Data[t.offset(idx)] = v
}

func (t *Tensor) offset(idx []int) int {
	if len(idx) != len(t.Shape) {
		panic(fmt.Sprintf("tensor: index rank %d for tensor of rank %d", len(idx), len(t.Shape)))
	}
	off := 0
	for i, x := range idx {
		if x < 0 || x >= t.Shape[i] {
			panic(fmt.Sprintf("tensor: index %v out of range for shape %v", idx, t.Shape))
		}
		off = off*t.Shape[i] + x
	}
	return off
}
