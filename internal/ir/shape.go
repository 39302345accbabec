package ir

import "fmt"

// Shape represents the logical dimensions of a tensor.
// A dimension of 0 means dynamic/unknown; negative dimensions are invalid.
type Shape []int

// NumElements returns the total number of elements in the tensor.
// The result is only meaningful for fully static shapes.
func (s Shape) NumElements() int {
	if len(s) == 0 {
		return 1 // Scalar has 1 element
	}
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// IsStatic reports whether every dimension is known (> 0).
func (s Shape) IsStatic() bool {
	for _, dim := range s {
		if dim <= 0 {
			return false
		}
	}
	return true
}

// Validate checks that all dimensions are non-negative.
func (s Shape) Validate() error {
	for i, dim := range s {
		if dim < 0 {
			return fmt.Errorf("invalid dimension at index %d: %d (must be >= 0)", i, dim)
		}
	}
	return nil
}

// Equal checks if two shapes are equal.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}
