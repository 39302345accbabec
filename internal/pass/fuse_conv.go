package pass

import (
	"fmt"

	"github.com/tinygraph-ml/tinygraph/internal/ir"
)

// FuseConvBiasActivation merges Conv2D / DepthwiseConv2D / FullyConnected
// followed by BiasAdd and/or a standalone activation into a single node with
// a fused activation attribute. A chain only fuses when each intermediate
// tensor is consumed solely by the next node in the chain and is not a
// designated graph output. Matching runs in execution order; the first match
// wins and all non-overlapping matches are applied in one invocation.
type FuseConvBiasActivation struct {
	// Fusible limits which activations may be folded into the compute node.
	// A nil map means none, which disables activation fusion but still
	// allows bias fusion.
	Fusible map[ir.ActivationKind]bool
}

// Name implements Pass.
func (p *FuseConvBiasActivation) Name() string {
	return "fuse-conv-bias-activation"
}

type fusionMatch struct {
	compute *ir.Node
	biasAdd *ir.Node // may be nil
	act     *ir.Node // may be nil
}

// Apply implements Pass.
func (p *FuseConvBiasActivation) Apply(g *ir.Graph) (Result, error) {
	matches := p.collect(g)
	if len(matches) == 0 {
		return Unchanged, nil
	}

	for _, m := range matches {
		if err := p.rewrite(g, m); err != nil {
			return Unchanged, fmt.Errorf("%s: %w", p.Name(), err)
		}
	}
	return Changed, nil
}

// collect finds all non-overlapping chains up front so rewrites do not
// invalidate the scan. Matches are sets of node identities, which stay stable
// across ReplaceNodes calls on disjoint sets.
func (p *FuseConvBiasActivation) collect(g *ir.Graph) []fusionMatch {
	var matches []fusionMatch
	claimed := map[int]bool{}

	for _, n := range g.Nodes() {
		if claimed[n.Index] || !fusableCompute(n) {
			continue
		}

		m := fusionMatch{compute: n}
		tail := n

		if next := soleConsumer(g, tail); next != nil && !claimed[next.Index] &&
			next.Kind == ir.OpBiasAdd && next.Inputs[0] == tail.Outputs[0] &&
			len(n.Inputs) == 2 {
			m.biasAdd = next
			tail = next
		}

		if next := soleConsumer(g, tail); next != nil && !claimed[next.Index] &&
			next.Inputs[0] == tail.Outputs[0] {
			if kind, ok := ir.ActivationOf(next.Kind); ok && p.Fusible[kind] {
				m.act = next
				tail = next
			}
		}

		if m.biasAdd == nil && m.act == nil {
			continue
		}

		claimed[m.compute.Index] = true
		if m.biasAdd != nil {
			claimed[m.biasAdd.Index] = true
		}
		if m.act != nil {
			claimed[m.act.Index] = true
		}
		matches = append(matches, m)
	}

	return matches
}

func (p *FuseConvBiasActivation) rewrite(g *ir.Graph, m fusionMatch) error {
	old := []int{m.compute.Index}
	tail := m.compute

	inputs := append([]int(nil), m.compute.Inputs...)
	if m.biasAdd != nil {
		old = append(old, m.biasAdd.Index)
		inputs = append(inputs, m.biasAdd.Inputs[1])
		tail = m.biasAdd
	}

	activation := ir.ActNone
	if m.act != nil {
		old = append(old, m.act.Index)
		activation, _ = ir.ActivationOf(m.act.Kind)
		tail = m.act
	}

	fused := &ir.Node{
		Kind:    m.compute.Kind,
		Name:    m.compute.Name,
		Attrs:   fusedAttrs(m.compute, activation),
		Inputs:  inputs,
		Outputs: []int{tail.Outputs[0]},
	}

	_, err := g.ReplaceNodes(old, fused)
	return err
}

// fusableCompute reports whether a node can absorb bias and activation: a
// compute kind that has no bias input and no fused activation yet.
func fusableCompute(n *ir.Node) bool {
	switch n.Kind {
	case ir.OpConv2D, ir.OpDepthwiseConv2D:
		attrs, ok := n.Attrs.(*ir.Conv2DAttrs)
		return ok && len(n.Inputs) <= 3 && attrs.Activation == ir.ActNone
	case ir.OpFullyConnected:
		attrs, ok := n.Attrs.(*ir.FullyConnectedAttrs)
		return ok && len(n.Inputs) <= 3 && attrs.Activation == ir.ActNone
	default:
		return false
	}
}

func fusedAttrs(compute *ir.Node, activation ir.ActivationKind) any {
	switch attrs := compute.Attrs.(type) {
	case *ir.Conv2DAttrs:
		merged := *attrs
		merged.Activation = activation
		return &merged
	case *ir.FullyConnectedAttrs:
		merged := *attrs
		merged.Activation = activation
		return &merged
	default:
		return compute.Attrs
	}
}

// soleConsumer returns the single node consuming n's first output, or nil if
// the tensor has zero or multiple consumers or is a designated graph output.
// A non-sole consumer blocks fusion: the intermediate value stays observable.
func soleConsumer(g *ir.Graph, n *ir.Node) *ir.Node {
	if len(n.Outputs) != 1 {
		return nil
	}
	out := n.Outputs[0]
	if g.IsOutput(out) {
		return nil
	}
	consumers := g.Consumers(out)
	if len(consumers) != 1 {
		return nil
	}
	return consumers[0]
}
