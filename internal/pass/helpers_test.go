package pass

import (
	"testing"

	"github.com/tinygraph-ml/tinygraph/internal/ir"
)

func runtimeTensor(t *testing.T, g *ir.Graph, shape ir.Shape) *ir.Tensor {
	t.Helper()
	tensor, err := g.AddTensor(&ir.Tensor{Shape: shape, DType: ir.Float32})
	if err != nil {
		t.Fatalf("AddTensor failed: %v", err)
	}
	return tensor
}

func constTensor(t *testing.T, g *ir.Graph, shape ir.Shape, values []float32) *ir.Tensor {
	t.Helper()
	data, err := ir.EncodeFloat32s(ir.Float32, values)
	if err != nil {
		t.Fatalf("EncodeFloat32s failed: %v", err)
	}
	tensor, err := g.AddTensor(&ir.Tensor{Shape: shape, DType: ir.Float32, Data: data})
	if err != nil {
		t.Fatalf("AddTensor failed: %v", err)
	}
	return tensor
}

func mustAddNode(t *testing.T, g *ir.Graph, n *ir.Node) *ir.Node {
	t.Helper()
	added, err := g.AddNode(n)
	if err != nil {
		t.Fatalf("AddNode %s failed: %v", n.Kind, err)
	}
	return added
}
