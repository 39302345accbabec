package ir

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrTensorOutOfRange  = errors.New("tensor index out of range")
	ErrNodeOutOfRange    = errors.New("node index out of range")
	ErrDanglingReference = errors.New("removed output still has consumers")
	ErrCycle             = errors.New("node order is not topological")
	ErrMultipleProducers = errors.New("tensor has multiple producers")
	ErrUnreachableOutput = errors.New("graph output has no producer")
)

// StructuralError reports a violated graph invariant. It is always fatal: the
// optimizer and quantizer propagate it unchanged rather than continue on a
// possibly corrupt graph.
type StructuralError struct {
	Pass   string // Pass that detected the violation, if any.
	Node   int    // Offending node index, -1 if not applicable.
	Tensor int    // Offending tensor index, -1 if not applicable.
	Reason string
	Err    error // Optional sentinel, matched by errors.Is.
}

// Error implements the error interface.
func (e *StructuralError) Error() string {
	msg := "structural error"
	if e.Pass != "" {
		msg = fmt.Sprintf("%s [pass %s]", msg, e.Pass)
	}
	if e.Node >= 0 {
		msg = fmt.Sprintf("%s: node %d", msg, e.Node)
	}
	if e.Tensor >= 0 {
		msg = fmt.Sprintf("%s: tensor %d", msg, e.Tensor)
	}
	return fmt.Sprintf("%s: %s", msg, e.Reason)
}

// Unwrap exposes the sentinel for errors.Is.
func (e *StructuralError) Unwrap() error {
	return e.Err
}

// IsStructural reports whether err carries a StructuralError anywhere in its chain.
func IsStructural(err error) bool {
	var se *StructuralError
	return errors.As(err, &se)
}
