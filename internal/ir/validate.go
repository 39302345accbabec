package ir

import "fmt"

// Validate checks every graph invariant: tensor reference validity, single
// production, topological node order (which rules out cycles), reachability
// of the designated outputs, and buffer-length consistency of constants.
func (g *Graph) Validate() error {
	for _, t := range g.tensors {
		if err := t.Shape.Validate(); err != nil {
			return &StructuralError{Node: -1, Tensor: t.Index, Reason: err.Error()}
		}
		if err := t.CheckBuffer(); err != nil {
			return err
		}
		if t.Quant != nil {
			if err := t.Quant.Validate(); err != nil {
				return &StructuralError{Node: -1, Tensor: t.Index, Reason: err.Error()}
			}
		}
	}

	available := map[int]bool{}
	for _, idx := range g.inputs {
		if idx < 0 || idx >= len(g.tensors) {
			return &StructuralError{Node: -1, Tensor: idx, Reason: "graph input out of range", Err: ErrTensorOutOfRange}
		}
		available[idx] = true
	}
	for _, t := range g.tensors {
		if t.IsConstant() {
			available[t.Index] = true
		}
	}

	producedBy := map[int]int{}
	for _, n := range g.nodes {
		if err := g.checkNodeRefs(n); err != nil {
			return err
		}
		for _, in := range n.Inputs {
			if !available[in] {
				return &StructuralError{
					Node: n.Index, Tensor: in,
					Reason: "input consumed before being produced",
					Err:    ErrCycle,
				}
			}
		}
		for _, out := range n.Outputs {
			if prev, ok := producedBy[out]; ok {
				return &StructuralError{
					Node: n.Index, Tensor: out,
					Reason: fmt.Sprintf("also produced by node %d", prev),
					Err:    ErrMultipleProducers,
				}
			}
			producedBy[out] = n.Index
			available[out] = true
		}
	}

	for _, out := range g.outputs {
		if out < 0 || out >= len(g.tensors) {
			return &StructuralError{Node: -1, Tensor: out, Reason: "graph output out of range", Err: ErrTensorOutOfRange}
		}
		if !available[out] {
			return &StructuralError{
				Node: -1, Tensor: out,
				Reason: "graph output is neither produced nor an input/constant",
				Err:    ErrUnreachableOutput,
			}
		}
	}

	return nil
}
