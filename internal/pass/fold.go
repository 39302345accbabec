package pass

import (
	"fmt"

	"github.com/tinygraph-ml/tinygraph/internal/ir"
	"github.com/tinygraph-ml/tinygraph/internal/kernel"
)

// FoldConstants evaluates nodes whose inputs are all compile-time constants
// and replaces each with the resulting constant tensor. The result is written
// into the node's existing output descriptor, so consumers keep their tensor
// indices. Operator kinds without a registered evaluator are skipped, never
// failed: missing constant-eval support is a recoverable condition.
//
// A single forward sweep folds whole constant subgraphs, since nodes are
// visited in execution order and each fold makes the output constant for the
// nodes after it.
type FoldConstants struct {
	Kernels *kernel.Registry
}

// Name implements Pass.
func (p *FoldConstants) Name() string {
	return "fold-constants"
}

// Apply implements Pass.
func (p *FoldConstants) Apply(g *ir.Graph) (Result, error) {
	result := Unchanged

	// Snapshot identities: RemoveNode rebuilds the node list mid-sweep.
	for _, index := range g.TopologicalOrder() {
		node, err := g.Node(index)
		if err != nil {
			return result, err
		}
		if !p.foldable(g, node) {
			continue
		}

		inputs, err := g.InputTensors(node)
		if err != nil {
			return result, err
		}
		folded, err := p.Kernels.Eval(node, inputs)
		if err != nil {
			return result, &ir.StructuralError{
				Pass: p.Name(), Node: node.Index, Tensor: -1,
				Reason: fmt.Sprintf("constant evaluation failed: %v", err),
			}
		}

		out, err := g.Tensor(node.Outputs[0])
		if err != nil {
			return result, err
		}
		if out.Shape.IsStatic() && !out.Shape.Equal(folded.Shape) {
			return result, &ir.StructuralError{
				Pass: p.Name(), Node: node.Index, Tensor: out.Index,
				Reason: fmt.Sprintf("folded shape %v contradicts declared shape %v", folded.Shape, out.Shape),
			}
		}
		out.Shape = folded.Shape
		out.DType = folded.DType
		out.Data = folded.Data

		if err := g.RemoveNode(node.Index, nil); err != nil {
			return result, err
		}
		result = Changed
	}

	return result, nil
}

func (p *FoldConstants) foldable(g *ir.Graph, n *ir.Node) bool {
	if len(n.Outputs) != 1 {
		return false
	}
	// Quantization boundaries carry numeric intent beyond their value and
	// are never folded away.
	if n.Kind == ir.OpQuantize || n.Kind == ir.OpDequantize {
		return false
	}
	if _, ok := p.Kernels.Lookup(n.Kind); !ok {
		return false
	}
	for _, in := range n.Inputs {
		t, err := g.Tensor(in)
		if err != nil || !t.IsConstant() || g.IsInput(in) {
			return false
		}
	}
	return true
}
