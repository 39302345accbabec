package ir

import (
	"fmt"
)

// Graph is the mutable DAG under conversion: an ordered node list (the order
// is always a valid execution order), a tensor table, and the designated
// graph inputs and outputs.
//
// All mutating operations either commit a fully valid graph or leave the
// graph untouched and return an error; no partially rewritten state is ever
// visible to a later pass.
type Graph struct {
	nodes   []*Node
	tensors []*Tensor
	inputs  []int
	outputs []int

	nextNode int
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{}
}

// AddTensor adds a tensor descriptor and assigns its index.
func (g *Graph) AddTensor(t *Tensor) (*Tensor, error) {
	if err := t.Shape.Validate(); err != nil {
		return nil, fmt.Errorf("add tensor %q: %w", t.Name, err)
	}
	t.Index = len(g.tensors)
	if err := t.CheckBuffer(); err != nil {
		return nil, err
	}
	g.tensors = append(g.tensors, t)
	return t, nil
}

// Tensor returns the descriptor for a tensor index.
func (g *Graph) Tensor(index int) (*Tensor, error) {
	if index < 0 || index >= len(g.tensors) {
		return nil, &StructuralError{Node: -1, Tensor: index, Reason: "unknown tensor", Err: ErrTensorOutOfRange}
	}
	return g.tensors[index], nil
}

// Tensors returns the tensor table. Callers must not reorder it.
func (g *Graph) Tensors() []*Tensor {
	return g.tensors
}

// NumTensors returns the tensor table size.
func (g *Graph) NumTensors() int {
	return len(g.tensors)
}

// Nodes returns the nodes in execution order. Callers must not reorder it.
func (g *Graph) Nodes() []*Node {
	return g.nodes
}

// NumNodes returns the node count.
func (g *Graph) NumNodes() int {
	return len(g.nodes)
}

// Node returns the node with the given identity.
func (g *Graph) Node(index int) (*Node, error) {
	for _, n := range g.nodes {
		if n.Index == index {
			return n, nil
		}
	}
	return nil, &StructuralError{Node: index, Tensor: -1, Reason: "unknown node", Err: ErrNodeOutOfRange}
}

// SetInputs designates the graph input tensors.
func (g *Graph) SetInputs(indices ...int) error {
	for _, idx := range indices {
		if _, err := g.Tensor(idx); err != nil {
			return err
		}
	}
	g.inputs = append(g.inputs[:0], indices...)
	return nil
}

// SetOutputs designates the graph output tensors.
func (g *Graph) SetOutputs(indices ...int) error {
	for _, idx := range indices {
		if _, err := g.Tensor(idx); err != nil {
			return err
		}
	}
	g.outputs = append(g.outputs[:0], indices...)
	return nil
}

// Inputs returns the designated graph input tensor indices.
func (g *Graph) Inputs() []int {
	return g.inputs
}

// Outputs returns the designated graph output tensor indices.
func (g *Graph) Outputs() []int {
	return g.outputs
}

// IsInput reports whether a tensor index is a designated graph input.
func (g *Graph) IsInput(index int) bool {
	for _, i := range g.inputs {
		if i == index {
			return true
		}
	}
	return false
}

// IsOutput reports whether a tensor index is a designated graph output.
func (g *Graph) IsOutput(index int) bool {
	for _, o := range g.outputs {
		if o == index {
			return true
		}
	}
	return false
}

// AddNode appends an operator node, re-sorting the node list so the execution
// order stays topological. Fails if a referenced tensor does not exist, if an
// output already has a producer, or if the node would introduce a cycle.
func (g *Graph) AddNode(n *Node) (*Node, error) {
	if err := g.checkNodeRefs(n); err != nil {
		return nil, err
	}
	producers := g.producers()
	for _, out := range n.Outputs {
		if p, ok := producers[out]; ok {
			return nil, &StructuralError{
				Node: n.Index, Tensor: out,
				Reason: fmt.Sprintf("output already produced by node %d", p.Index),
				Err:    ErrMultipleProducers,
			}
		}
	}

	candidate := n.Clone()
	candidate.Index = g.nextNode

	sorted, err := sortTopological(append(append([]*Node{}, g.nodes...), candidate))
	if err != nil {
		return nil, err
	}

	g.nextNode++
	g.nodes = sorted
	return candidate, nil
}

// RemoveNode removes a node. If any remaining node or graph output still
// consumes one of the removed node's outputs, the caller must supply a
// replacement tensor for it in repl (removed output index -> replacement
// index); otherwise the removal fails with ErrDanglingReference.
func (g *Graph) RemoveNode(index int, repl map[int]int) error {
	node, err := g.Node(index)
	if err != nil {
		return err
	}
	for _, r := range repl {
		if _, err := g.Tensor(r); err != nil {
			return err
		}
	}

	produced := map[int]bool{}
	for _, out := range node.Outputs {
		produced[out] = true
	}

	// Every surviving reference to a removed output needs a replacement. An
	// output that has become a constant (holds data) needs no producer and
	// counts as its own replacement; constant folding relies on this.
	rewire := func(tensorIdx int) (int, error) {
		if !produced[tensorIdx] {
			return tensorIdx, nil
		}
		r, ok := repl[tensorIdx]
		if !ok {
			if t, err := g.Tensor(tensorIdx); err == nil && t.IsConstant() {
				return tensorIdx, nil
			}
			return 0, &StructuralError{
				Node: index, Tensor: tensorIdx,
				Reason: "output still consumed and no replacement supplied",
				Err:    ErrDanglingReference,
			}
		}
		return r, nil
	}

	newNodes := make([]*Node, 0, len(g.nodes)-1)
	for _, n := range g.nodes {
		if n.Index == index {
			continue
		}
		clone := n.Clone()
		for i, in := range clone.Inputs {
			r, err := rewire(in)
			if err != nil {
				return err
			}
			clone.Inputs[i] = r
		}
		newNodes = append(newNodes, clone)
	}

	newOutputs := append([]int(nil), g.outputs...)
	for i, out := range newOutputs {
		r, err := rewire(out)
		if err != nil {
			return err
		}
		newOutputs[i] = r
	}

	sorted, err := sortTopological(newNodes)
	if err != nil {
		return err
	}

	g.nodes = sorted
	g.outputs = newOutputs
	return nil
}

// ReplaceNodes atomically substitutes a matched subgraph with a single new
// node. This is the fusion primitive: every boundary tensor of the subgraph
// (produced inside, consumed outside or designated as a graph output) must
// appear in newNode.Outputs, so external consumers keep their tensor indices
// and need no rewiring. Interior tensors become orphaned and are swept later
// by dead code elimination.
//
// On any violation the graph is left unchanged.
func (g *Graph) ReplaceNodes(oldIndices []int, newNode *Node) (*Node, error) {
	if len(oldIndices) == 0 {
		return nil, &StructuralError{Node: -1, Tensor: -1, Reason: "replace: empty node set"}
	}

	oldSet := map[int]bool{}
	for _, idx := range oldIndices {
		if _, err := g.Node(idx); err != nil {
			return nil, err
		}
		if oldSet[idx] {
			return nil, &StructuralError{Node: idx, Tensor: -1, Reason: "replace: duplicate node index"}
		}
		oldSet[idx] = true
	}

	if err := g.checkNodeRefs(newNode); err != nil {
		return nil, err
	}

	produced := map[int]bool{}
	for _, n := range g.nodes {
		if !oldSet[n.Index] {
			continue
		}
		for _, out := range n.Outputs {
			produced[out] = true
		}
	}

	// The new node must not read what the old set produced: the replacement
	// has to be self-contained or the substitution would create a cycle.
	for _, in := range newNode.Inputs {
		if produced[in] {
			return nil, &StructuralError{
				Node: -1, Tensor: in,
				Reason: "replace: new node consumes a tensor produced by the replaced set",
			}
		}
	}

	newOuts := map[int]bool{}
	for _, out := range newNode.Outputs {
		newOuts[out] = true
	}

	// Boundary check: anything produced inside and referenced outside must be
	// re-produced by the new node.
	for _, n := range g.nodes {
		if oldSet[n.Index] {
			continue
		}
		for _, in := range n.Inputs {
			if produced[in] && !newOuts[in] {
				return nil, &StructuralError{
					Node: n.Index, Tensor: in,
					Reason: "replace: boundary tensor not covered by new node outputs",
					Err:    ErrDanglingReference,
				}
			}
		}
	}
	for _, out := range g.outputs {
		if produced[out] && !newOuts[out] {
			return nil, &StructuralError{
				Node: -1, Tensor: out,
				Reason: "replace: graph output not covered by new node outputs",
				Err:    ErrDanglingReference,
			}
		}
	}

	// New outputs that are not boundary tensors must be producerless so far.
	producers := g.producers()
	for _, out := range newNode.Outputs {
		if p, ok := producers[out]; ok && !oldSet[p.Index] {
			return nil, &StructuralError{
				Node: newNode.Index, Tensor: out,
				Reason: fmt.Sprintf("replace: output already produced by node %d", p.Index),
				Err:    ErrMultipleProducers,
			}
		}
	}

	candidate := newNode.Clone()
	candidate.Index = g.nextNode

	newNodes := make([]*Node, 0, len(g.nodes)-len(oldIndices)+1)
	inserted := false
	for _, n := range g.nodes {
		if oldSet[n.Index] {
			if !inserted {
				newNodes = append(newNodes, candidate)
				inserted = true
			}
			continue
		}
		newNodes = append(newNodes, n)
	}

	sorted, err := sortTopological(newNodes)
	if err != nil {
		return nil, err
	}

	g.nextNode++
	g.nodes = sorted
	return candidate, nil
}

// InputTensors resolves a node's input descriptors in order.
func (g *Graph) InputTensors(n *Node) ([]*Tensor, error) {
	return g.resolve(n.Inputs)
}

// OutputTensors resolves a node's output descriptors in order.
func (g *Graph) OutputTensors(n *Node) ([]*Tensor, error) {
	return g.resolve(n.Outputs)
}

func (g *Graph) resolve(indices []int) ([]*Tensor, error) {
	tensors := make([]*Tensor, len(indices))
	for i, idx := range indices {
		t, err := g.Tensor(idx)
		if err != nil {
			return nil, err
		}
		tensors[i] = t
	}
	return tensors, nil
}

// Producer returns the node producing a tensor, or nil for graph inputs and
// constants.
func (g *Graph) Producer(tensorIdx int) *Node {
	for _, n := range g.nodes {
		for _, out := range n.Outputs {
			if out == tensorIdx {
				return n
			}
		}
	}
	return nil
}

// Consumers returns the nodes reading a tensor, in execution order.
func (g *Graph) Consumers(tensorIdx int) []*Node {
	var consumers []*Node
	for _, n := range g.nodes {
		for _, in := range n.Inputs {
			if in == tensorIdx {
				consumers = append(consumers, n)
				break
			}
		}
	}
	return consumers
}

// TopologicalOrder returns node identities in execution order.
func (g *Graph) TopologicalOrder() []int {
	order := make([]int, len(g.nodes))
	for i, n := range g.nodes {
		order[i] = n.Index
	}
	return order
}

func (g *Graph) checkNodeRefs(n *Node) error {
	for _, in := range n.Inputs {
		if _, err := g.Tensor(in); err != nil {
			return &StructuralError{Node: n.Index, Tensor: in, Reason: "unknown input tensor", Err: ErrTensorOutOfRange}
		}
	}
	for _, out := range n.Outputs {
		if _, err := g.Tensor(out); err != nil {
			return &StructuralError{Node: n.Index, Tensor: out, Reason: "unknown output tensor", Err: ErrTensorOutOfRange}
		}
	}
	return nil
}

func (g *Graph) producers() map[int]*Node {
	producers := make(map[int]*Node, len(g.nodes))
	for _, n := range g.nodes {
		for _, out := range n.Outputs {
			producers[out] = n
		}
	}
	return producers
}

// sortTopological orders nodes so every node follows the producers of all its
// inputs. The sort is stable with respect to the incoming order, so an
// already-valid order passes through unchanged. Returns ErrCycle when no
// valid order exists.
func sortTopological(nodes []*Node) ([]*Node, error) {
	producerPos := map[int]int{} // tensor index -> position of producing node
	for pos, n := range nodes {
		for _, out := range n.Outputs {
			if prev, ok := producerPos[out]; ok {
				return nil, &StructuralError{
					Node: n.Index, Tensor: out,
					Reason: fmt.Sprintf("tensor produced by both node %d and node %d", nodes[prev].Index, n.Index),
					Err:    ErrMultipleProducers,
				}
			}
			producerPos[out] = pos
		}
	}

	// Kahn's algorithm; the ready node with the smallest original position is
	// scheduled first to keep the order deterministic and stable.
	indegree := make([]int, len(nodes))
	dependents := make([][]int, len(nodes))
	for pos, n := range nodes {
		for _, in := range n.Inputs {
			if p, ok := producerPos[in]; ok {
				indegree[pos]++
				dependents[p] = append(dependents[p], pos)
			}
		}
	}

	scheduled := make([]bool, len(nodes))
	sorted := make([]*Node, 0, len(nodes))
	for len(sorted) < len(nodes) {
		next := -1
		for pos := range nodes {
			if !scheduled[pos] && indegree[pos] == 0 {
				next = pos
				break
			}
		}
		if next == -1 {
			return nil, &StructuralError{Node: -1, Tensor: -1, Reason: "cycle in node dependencies", Err: ErrCycle}
		}
		scheduled[next] = true
		sorted = append(sorted, nodes[next])
		for _, dep := range dependents[next] {
			indegree[dep]--
		}
	}

	return sorted, nil
}
