package pass

import "github.com/tinygraph-ml/tinygraph/internal/ir"

// NormalizeLayout canonicalizes the topology before fusion runs: identity
// Reshape and Transpose nodes are dropped, and inverse Transpose pairs
// cancel. Later pattern passes then see chains without no-op hops in between.
type NormalizeLayout struct{}

// Name implements Pass.
func (p *NormalizeLayout) Name() string {
	return "normalize-layout"
}

// Apply implements Pass.
func (p *NormalizeLayout) Apply(g *ir.Graph) (Result, error) {
	result := Unchanged

	for _, index := range g.TopologicalOrder() {
		node, err := g.Node(index)
		if err != nil {
			continue // Already removed by an earlier cancellation.
		}

		changed, err := p.simplify(g, node)
		if err != nil {
			return result, err
		}
		if changed {
			result = Changed
		}
	}

	return result, nil
}

func (p *NormalizeLayout) simplify(g *ir.Graph, node *ir.Node) (bool, error) {
	switch node.Kind {
	case ir.OpReshape:
		return p.dropIfIdentity(g, node)
	case ir.OpTranspose:
		if dropped, err := p.dropIfIdentity(g, node); dropped || err != nil {
			return dropped, err
		}
		return p.cancelInversePair(g, node)
	default:
		return false, nil
	}
}

// dropIfIdentity removes a Reshape/Transpose whose output shape provably
// equals its input shape, rewiring consumers to the original tensor.
func (p *NormalizeLayout) dropIfIdentity(g *ir.Graph, node *ir.Node) (bool, error) {
	if node.Kind == ir.OpTranspose {
		attrs, ok := node.Attrs.(*ir.TransposeAttrs)
		if !ok || !isIdentityPerm(attrs.Perm) {
			return false, nil
		}
	} else {
		in, err := g.Tensor(node.Inputs[0])
		if err != nil {
			return false, err
		}
		out, err := g.Tensor(node.Outputs[0])
		if err != nil {
			return false, err
		}
		if !in.Shape.IsStatic() || !in.Shape.Equal(out.Shape) {
			return false, nil
		}
	}

	repl := map[int]int{node.Outputs[0]: node.Inputs[0]}
	if err := g.RemoveNode(node.Index, repl); err != nil {
		return false, err
	}
	return true, nil
}

// cancelInversePair removes Transpose(Transpose(x)) when the composed
// permutation is the identity and the inner result has no other consumer.
func (p *NormalizeLayout) cancelInversePair(g *ir.Graph, outer *ir.Node) (bool, error) {
	inner := g.Producer(outer.Inputs[0])
	if inner == nil || inner.Kind != ir.OpTranspose {
		return false, nil
	}
	if g.IsOutput(inner.Outputs[0]) || len(g.Consumers(inner.Outputs[0])) != 1 {
		return false, nil
	}

	innerAttrs, ok1 := inner.Attrs.(*ir.TransposeAttrs)
	outerAttrs, ok2 := outer.Attrs.(*ir.TransposeAttrs)
	if !ok1 || !ok2 || !composesToIdentity(innerAttrs.Perm, outerAttrs.Perm) {
		return false, nil
	}

	// Consumers of the outer result read the original tensor; the inner
	// transpose is then dead and goes with it.
	if err := g.RemoveNode(outer.Index, map[int]int{outer.Outputs[0]: inner.Inputs[0]}); err != nil {
		return false, err
	}
	if err := g.RemoveNode(inner.Index, nil); err != nil {
		return false, err
	}
	return true, nil
}

func isIdentityPerm(perm []int) bool {
	for i, p := range perm {
		if p != i {
			return false
		}
	}
	return len(perm) > 0
}

// composesToIdentity reports whether applying inner then outer restores the
// original axis order.
func composesToIdentity(inner, outer []int) bool {
	if len(inner) != len(outer) {
		return false
	}
	for i := range outer {
		if outer[i] < 0 || outer[i] >= len(inner) {
			return false
		}
		if inner[outer[i]] != i {
			return false
		}
	}
	return true
}
