// Package kernel provides the compile-time evaluation registry: a lookup from
// operator kind to a reference evaluator. Constant folding and calibration
// both execute operators through it; kinds without a registered evaluator are
// simply skipped by those stages.
package kernel

import (
	"fmt"

	"github.com/tinygraph-ml/tinygraph/internal/ir"
)

// Evaluator computes a node's single output from fully materialized inputs.
// The returned tensor carries shape, dtype and data but no graph index.
type Evaluator func(node *ir.Node, inputs []*ir.Tensor) (*ir.Tensor, error)

// Registry maps operator kinds to evaluator functions.
type Registry struct {
	evals map[ir.OpKind]Evaluator
}

// NewRegistry creates a registry with all built-in evaluators.
func NewRegistry() *Registry {
	r := &Registry{
		evals: make(map[ir.OpKind]Evaluator),
	}

	r.registerMathOps()
	r.registerShapeOps()
	r.registerNNOps()

	return r
}

// Register adds or replaces an evaluator.
func (r *Registry) Register(kind ir.OpKind, eval Evaluator) {
	r.evals[kind] = eval
}

// Lookup returns the evaluator for an operator kind.
func (r *Registry) Lookup(kind ir.OpKind) (Evaluator, bool) {
	e, ok := r.evals[kind]
	return e, ok
}

// Eval runs the evaluator for a node.
func (r *Registry) Eval(node *ir.Node, inputs []*ir.Tensor) (*ir.Tensor, error) {
	eval, ok := r.evals[node.Kind]
	if !ok {
		return nil, fmt.Errorf("no evaluator for operator %s", node.Kind)
	}
	out, err := eval(node, inputs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", node.Kind, err)
	}
	return out, nil
}

// Supported returns all operator kinds with an evaluator.
func (r *Registry) Supported() []ir.OpKind {
	kinds := make([]ir.OpKind, 0, len(r.evals))
	for k := range r.evals {
		kinds = append(kinds, k)
	}
	return kinds
}
