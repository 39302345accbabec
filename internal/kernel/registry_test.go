package kernel

import (
	"testing"

	"github.com/tinygraph-ml/tinygraph/internal/ir"
)

func constTensor(t *testing.T, shape ir.Shape, values []float32) *ir.Tensor {
	t.Helper()
	data, err := ir.EncodeFloat32s(ir.Float32, values)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	return &ir.Tensor{Shape: shape, DType: ir.Float32, Data: data}
}

func floats(t *testing.T, tensor *ir.Tensor) []float32 {
	t.Helper()
	values, err := tensor.Float32Values()
	if err != nil {
		t.Fatalf("Float32Values failed: %v", err)
	}
	return values
}

func TestEvalRangeFloat(t *testing.T) {
	r := NewRegistry()
	node := &ir.Node{Kind: ir.OpRange, Attrs: &ir.RangeAttrs{Start: 0, Limit: 5, Delta: 1, DType: ir.Float32}}

	out, err := r.Eval(node, nil)
	if err != nil {
		t.Fatalf("Eval failed: %v", err)
	}
	if !out.Shape.Equal(ir.Shape{5}) {
		t.Fatalf("unexpected shape %v", out.Shape)
	}
	want := []float32{0, 1, 2, 3, 4}
	for i, v := range floats(t, out) {
		if v != want[i] {
			t.Errorf("element %d: want %g, got %g", i, want[i], v)
		}
	}
}

func TestEvalRangeInt(t *testing.T) {
	r := NewRegistry()
	node := &ir.Node{Kind: ir.OpRange, Attrs: &ir.RangeAttrs{Start: 2, Limit: 10, Delta: 3, DType: ir.Int32}}

	out, err := r.Eval(node, nil)
	if err != nil {
		t.Fatalf("Eval failed: %v", err)
	}
	values, err := ir.DecodeInt32s(out.Data, out.Shape.NumElements())
	if err != nil {
		t.Fatalf("DecodeInt32s failed: %v", err)
	}
	want := []int32{2, 5, 8}
	if len(values) != len(want) {
		t.Fatalf("want %d elements, got %d", len(want), len(values))
	}
	for i := range want {
		if values[i] != want[i] {
			t.Errorf("element %d: want %d, got %d", i, want[i], values[i])
		}
	}
}

func TestEvalMissingEvaluator(t *testing.T) {
	r := &Registry{} // no evaluators registered
	if _, err := r.Eval(&ir.Node{Kind: ir.OpConv2D}, nil); err == nil {
		t.Error("expected missing evaluator error")
	}
	if _, ok := r.Lookup(ir.OpConv2D); ok {
		t.Error("Lookup must report missing evaluator")
	}
}

func TestEvalAddScalarBroadcast(t *testing.T) {
	r := NewRegistry()
	a := constTensor(t, ir.Shape{2, 2}, []float32{1, 2, 3, 4})
	b := constTensor(t, ir.Shape{1}, []float32{10})

	out, err := r.Eval(&ir.Node{Kind: ir.OpAdd}, []*ir.Tensor{a, b})
	if err != nil {
		t.Fatalf("Eval failed: %v", err)
	}
	want := []float32{11, 12, 13, 14}
	for i, v := range floats(t, out) {
		if v != want[i] {
			t.Errorf("element %d: want %g, got %g", i, want[i], v)
		}
	}
}

func TestEvalAddShapeMismatch(t *testing.T) {
	r := NewRegistry()
	a := constTensor(t, ir.Shape{2}, []float32{1, 2})
	b := constTensor(t, ir.Shape{3}, []float32{1, 2, 3})

	if _, err := r.Eval(&ir.Node{Kind: ir.OpAdd}, []*ir.Tensor{a, b}); err == nil {
		t.Error("expected shape mismatch error")
	}
}

func TestEvalCastToInt32(t *testing.T) {
	r := NewRegistry()
	in := constTensor(t, ir.Shape{3}, []float32{1.7, -2.3, 0})

	out, err := r.Eval(&ir.Node{Kind: ir.OpCast, Attrs: &ir.CastAttrs{To: ir.Int32}}, []*ir.Tensor{in})
	if err != nil {
		t.Fatalf("Eval failed: %v", err)
	}
	values, err := ir.DecodeInt32s(out.Data, 3)
	if err != nil {
		t.Fatalf("DecodeInt32s failed: %v", err)
	}
	want := []int32{1, -2, 0}
	for i := range want {
		if values[i] != want[i] {
			t.Errorf("element %d: want %d, got %d", i, want[i], values[i])
		}
	}
}

func TestEvalConcat(t *testing.T) {
	r := NewRegistry()
	a := constTensor(t, ir.Shape{2, 2}, []float32{1, 2, 3, 4})
	b := constTensor(t, ir.Shape{1, 2}, []float32{5, 6})

	out, err := r.Eval(&ir.Node{Kind: ir.OpConcat, Attrs: &ir.ConcatAttrs{Axis: 0}}, []*ir.Tensor{a, b})
	if err != nil {
		t.Fatalf("Eval failed: %v", err)
	}
	if !out.Shape.Equal(ir.Shape{3, 2}) {
		t.Fatalf("unexpected shape %v", out.Shape)
	}
	want := []float32{1, 2, 3, 4, 5, 6}
	for i, v := range floats(t, out) {
		if v != want[i] {
			t.Errorf("element %d: want %g, got %g", i, want[i], v)
		}
	}
}

func TestEvalTranspose(t *testing.T) {
	r := NewRegistry()
	in := constTensor(t, ir.Shape{2, 3}, []float32{1, 2, 3, 4, 5, 6})

	out, err := r.Eval(&ir.Node{Kind: ir.OpTranspose, Attrs: &ir.TransposeAttrs{Perm: []int{1, 0}}}, []*ir.Tensor{in})
	if err != nil {
		t.Fatalf("Eval failed: %v", err)
	}
	if !out.Shape.Equal(ir.Shape{3, 2}) {
		t.Fatalf("unexpected shape %v", out.Shape)
	}
	want := []float32{1, 4, 2, 5, 3, 6}
	for i, v := range floats(t, out) {
		if v != want[i] {
			t.Errorf("element %d: want %g, got %g", i, want[i], v)
		}
	}
}

func TestEvalMatMul(t *testing.T) {
	r := NewRegistry()
	a := constTensor(t, ir.Shape{2, 2}, []float32{1, 2, 3, 4})
	b := constTensor(t, ir.Shape{2, 2}, []float32{5, 6, 7, 8})

	out, err := r.Eval(&ir.Node{Kind: ir.OpMatMul}, []*ir.Tensor{a, b})
	if err != nil {
		t.Fatalf("Eval failed: %v", err)
	}
	want := []float32{19, 22, 43, 50}
	for i, v := range floats(t, out) {
		if v != want[i] {
			t.Errorf("element %d: want %g, got %g", i, want[i], v)
		}
	}
}

func TestEvalConv2DIdentityKernel(t *testing.T) {
	r := NewRegistry()
	// 1x2x2x1 input, 1x1x1x1 identity filter: output equals input.
	in := constTensor(t, ir.Shape{1, 2, 2, 1}, []float32{1, 2, 3, 4})
	filter := constTensor(t, ir.Shape{1, 1, 1, 1}, []float32{1})
	node := &ir.Node{
		Kind:  ir.OpConv2D,
		Attrs: &ir.Conv2DAttrs{StrideH: 1, StrideW: 1, Padding: "VALID"},
	}

	out, err := r.Eval(node, []*ir.Tensor{in, filter})
	if err != nil {
		t.Fatalf("Eval failed: %v", err)
	}
	if !out.Shape.Equal(ir.Shape{1, 2, 2, 1}) {
		t.Fatalf("unexpected shape %v", out.Shape)
	}
	for i, v := range floats(t, out) {
		if v != []float32{1, 2, 3, 4}[i] {
			t.Errorf("element %d: got %g", i, v)
		}
	}
}

func TestEvalConv2DSumKernelWithBiasAndRelu(t *testing.T) {
	r := NewRegistry()
	// 2x2 all-ones filter over a 2x2 input with VALID padding sums the input.
	in := constTensor(t, ir.Shape{1, 2, 2, 1}, []float32{1, 2, 3, 4})
	filter := constTensor(t, ir.Shape{1, 2, 2, 1}, []float32{1, 1, 1, 1})
	bias := constTensor(t, ir.Shape{1}, []float32{-20})
	node := &ir.Node{
		Kind:  ir.OpConv2D,
		Attrs: &ir.Conv2DAttrs{StrideH: 1, StrideW: 1, Padding: "VALID", Activation: ir.ActRelu},
	}

	out, err := r.Eval(node, []*ir.Tensor{in, filter, bias})
	if err != nil {
		t.Fatalf("Eval failed: %v", err)
	}
	// Sum is 10, bias -20 gives -10, relu clamps to 0.
	if got := floats(t, out); got[0] != 0 {
		t.Errorf("want 0, got %g", got[0])
	}
}

func TestEvalShape(t *testing.T) {
	r := NewRegistry()
	in := constTensor(t, ir.Shape{2, 3, 4}, make([]float32, 24))

	out, err := r.Eval(&ir.Node{Kind: ir.OpShape}, []*ir.Tensor{in})
	if err != nil {
		t.Fatalf("Eval failed: %v", err)
	}
	values, err := ir.DecodeInt32s(out.Data, 3)
	if err != nil {
		t.Fatalf("DecodeInt32s failed: %v", err)
	}
	want := []int32{2, 3, 4}
	for i := range want {
		if values[i] != want[i] {
			t.Errorf("dim %d: want %d, got %d", i, want[i], values[i])
		}
	}
}
