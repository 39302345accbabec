package ir

import (
	"errors"
	"testing"
)

// addTensor is a test helper for runtime (non-constant) tensors.
func addTensor(t *testing.T, g *Graph, shape Shape) *Tensor {
	t.Helper()
	tensor, err := g.AddTensor(&Tensor{Shape: shape, DType: Float32})
	if err != nil {
		t.Fatalf("AddTensor failed: %v", err)
	}
	return tensor
}

func addConst(t *testing.T, g *Graph, shape Shape, values []float32) *Tensor {
	t.Helper()
	data, err := EncodeFloat32s(Float32, values)
	if err != nil {
		t.Fatalf("EncodeFloat32s failed: %v", err)
	}
	tensor, err := g.AddTensor(&Tensor{Shape: shape, DType: Float32, Data: data})
	if err != nil {
		t.Fatalf("AddTensor failed: %v", err)
	}
	return tensor
}

// buildChain creates input -> Relu -> Tanh -> output.
func buildChain(t *testing.T) (*Graph, []*Node) {
	t.Helper()
	g := NewGraph()
	in := addTensor(t, g, Shape{1, 4})
	mid := addTensor(t, g, Shape{1, 4})
	out := addTensor(t, g, Shape{1, 4})

	if err := g.SetInputs(in.Index); err != nil {
		t.Fatalf("SetInputs failed: %v", err)
	}
	if err := g.SetOutputs(out.Index); err != nil {
		t.Fatalf("SetOutputs failed: %v", err)
	}

	relu, err := g.AddNode(&Node{Kind: OpRelu, Inputs: []int{in.Index}, Outputs: []int{mid.Index}})
	if err != nil {
		t.Fatalf("AddNode relu failed: %v", err)
	}
	tanh, err := g.AddNode(&Node{Kind: OpTanh, Inputs: []int{mid.Index}, Outputs: []int{out.Index}})
	if err != nil {
		t.Fatalf("AddNode tanh failed: %v", err)
	}
	return g, []*Node{relu, tanh}
}

func TestAddNodeMaintainsOrder(t *testing.T) {
	g, nodes := buildChain(t)

	order := g.TopologicalOrder()
	if len(order) != 2 || order[0] != nodes[0].Index || order[1] != nodes[1].Index {
		t.Errorf("unexpected order %v", order)
	}
	if err := g.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestAddNodeRejectsUnknownTensor(t *testing.T) {
	g := NewGraph()
	_, err := g.AddNode(&Node{Kind: OpRelu, Inputs: []int{42}, Outputs: []int{43}})
	if !errors.Is(err, ErrTensorOutOfRange) {
		t.Errorf("expected ErrTensorOutOfRange, got %v", err)
	}
}

func TestAddNodeRejectsSecondProducer(t *testing.T) {
	g, nodes := buildChain(t)
	out := nodes[1].Outputs[0]

	_, err := g.AddNode(&Node{Kind: OpSigmoid, Inputs: []int{g.Inputs()[0]}, Outputs: []int{out}})
	if !errors.Is(err, ErrMultipleProducers) {
		t.Errorf("expected ErrMultipleProducers, got %v", err)
	}
}

func TestRemoveNodeDangling(t *testing.T) {
	g, nodes := buildChain(t)

	err := g.RemoveNode(nodes[0].Index, nil)
	if !errors.Is(err, ErrDanglingReference) {
		t.Errorf("expected ErrDanglingReference, got %v", err)
	}
	// The failed removal must not have touched the graph.
	if g.NumNodes() != 2 {
		t.Errorf("graph mutated by failed removal: %d nodes", g.NumNodes())
	}
}

func TestRemoveNodeWithReplacement(t *testing.T) {
	g, nodes := buildChain(t)
	in := g.Inputs()[0]
	mid := nodes[0].Outputs[0]

	if err := g.RemoveNode(nodes[0].Index, map[int]int{mid: in}); err != nil {
		t.Fatalf("RemoveNode failed: %v", err)
	}

	if g.NumNodes() != 1 {
		t.Fatalf("expected 1 node, got %d", g.NumNodes())
	}
	remaining := g.Nodes()[0]
	if remaining.Inputs[0] != in {
		t.Errorf("consumer not rewired: inputs %v", remaining.Inputs)
	}
	if err := g.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestRemoveNodeConstantOutputNeedsNoReplacement(t *testing.T) {
	g, nodes := buildChain(t)
	mid, err := g.Tensor(nodes[0].Outputs[0])
	if err != nil {
		t.Fatalf("Tensor failed: %v", err)
	}

	// Constant folding writes the result into the output descriptor and then
	// removes the producer; the constant stands in for it.
	folded := addConst(t, g, Shape{1, 4}, []float32{1, 2, 3, 4})
	mid.Data = folded.Data

	if err := g.RemoveNode(nodes[0].Index, nil); err != nil {
		t.Fatalf("RemoveNode failed: %v", err)
	}
	if err := g.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestReplaceNodesFusesChain(t *testing.T) {
	g, nodes := buildChain(t)
	in := g.Inputs()[0]
	out := g.Outputs()[0]

	fused, err := g.ReplaceNodes([]int{nodes[0].Index, nodes[1].Index}, &Node{
		Kind:    OpSigmoid,
		Inputs:  []int{in},
		Outputs: []int{out},
	})
	if err != nil {
		t.Fatalf("ReplaceNodes failed: %v", err)
	}

	if g.NumNodes() != 1 {
		t.Fatalf("expected 1 node, got %d", g.NumNodes())
	}
	if g.Outputs()[0] != out {
		t.Errorf("graph output identity changed: %d", g.Outputs()[0])
	}
	if fused.Outputs[0] != out {
		t.Errorf("fused node output %d != graph output %d", fused.Outputs[0], out)
	}
	if err := g.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestReplaceNodesRequiresBoundaryCoverage(t *testing.T) {
	g, nodes := buildChain(t)
	in := g.Inputs()[0]
	fresh := addTensor(t, g, Shape{1, 4})

	// The chain's final tensor is a graph output but the new node does not
	// produce it.
	_, err := g.ReplaceNodes([]int{nodes[0].Index, nodes[1].Index}, &Node{
		Kind:    OpSigmoid,
		Inputs:  []int{in},
		Outputs: []int{fresh.Index},
	})
	if !errors.Is(err, ErrDanglingReference) {
		t.Errorf("expected ErrDanglingReference, got %v", err)
	}
	if g.NumNodes() != 2 {
		t.Errorf("graph mutated by failed replace: %d nodes", g.NumNodes())
	}
}

func TestReplaceNodesRejectsSelfReference(t *testing.T) {
	g, nodes := buildChain(t)
	mid := nodes[0].Outputs[0]
	out := g.Outputs()[0]

	// Replacement consuming the replaced set's own product.
	_, err := g.ReplaceNodes([]int{nodes[0].Index, nodes[1].Index}, &Node{
		Kind:    OpSigmoid,
		Inputs:  []int{mid},
		Outputs: []int{out},
	})
	if err == nil {
		t.Fatal("expected error for self-referential replacement")
	}
}

func TestValidateRejectsForwardReference(t *testing.T) {
	g := NewGraph()
	in := addTensor(t, g, Shape{1})
	mid := addTensor(t, g, Shape{1})
	out := addTensor(t, g, Shape{1})
	_ = g.SetInputs(in.Index)
	_ = g.SetOutputs(out.Index)

	// Bypass AddNode ordering by mutating a node after insertion.
	n, err := g.AddNode(&Node{Kind: OpRelu, Inputs: []int{in.Index}, Outputs: []int{out.Index}})
	if err != nil {
		t.Fatalf("AddNode failed: %v", err)
	}
	n.Inputs[0] = mid.Index // mid has no producer and is not an input

	if err := g.Validate(); !errors.Is(err, ErrCycle) {
		t.Errorf("expected ErrCycle, got %v", err)
	}
}

func TestValidateBufferLength(t *testing.T) {
	g := NewGraph()
	if _, err := g.AddTensor(&Tensor{Shape: Shape{2, 2}, DType: Float32, Data: make([]byte, 4)}); err == nil {
		t.Error("expected buffer length mismatch error")
	}
}

func TestConsumersAndProducer(t *testing.T) {
	g, nodes := buildChain(t)
	mid := nodes[0].Outputs[0]

	if p := g.Producer(mid); p == nil || p.Index != nodes[0].Index {
		t.Errorf("wrong producer: %v", p)
	}
	consumers := g.Consumers(mid)
	if len(consumers) != 1 || consumers[0].Index != nodes[1].Index {
		t.Errorf("wrong consumers: %v", consumers)
	}
	if g.Producer(g.Inputs()[0]) != nil {
		t.Error("graph input must have no producer")
	}
}
