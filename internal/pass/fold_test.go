package pass

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinygraph-ml/tinygraph/internal/ir"
	"github.com/tinygraph-ml/tinygraph/internal/kernel"
)

func foldPass() *FoldConstants {
	return &FoldConstants{Kernels: kernel.NewRegistry()}
}

func TestFoldRange(t *testing.T) {
	g := ir.NewGraph()
	out := runtimeTensor(t, g, ir.Shape{5})
	require.NoError(t, g.SetOutputs(out.Index))
	mustAddNode(t, g, &ir.Node{
		Kind:    ir.OpRange,
		Attrs:   &ir.RangeAttrs{Start: 0, Limit: 5, Delta: 1, DType: ir.Float32},
		Outputs: []int{out.Index},
	})

	result, err := foldPass().Apply(g)
	require.NoError(t, err)
	assert.Equal(t, Changed, result)
	assert.Equal(t, 0, g.NumNodes())

	values, err := out.Float32Values()
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1, 2, 3, 4}, values)
	require.NoError(t, g.Validate())
}

func TestFoldConstantChain(t *testing.T) {
	// Range -> Add folds in a single sweep: the Range result becomes constant
	// before the Add is visited.
	g := ir.NewGraph()
	rng := runtimeTensor(t, g, ir.Shape{4})
	offset := constTensor(t, g, ir.Shape{4}, []float32{10, 10, 10, 10})
	sum := runtimeTensor(t, g, ir.Shape{4})
	require.NoError(t, g.SetOutputs(sum.Index))

	mustAddNode(t, g, &ir.Node{
		Kind:    ir.OpRange,
		Attrs:   &ir.RangeAttrs{Start: 0, Limit: 4, Delta: 1, DType: ir.Float32},
		Outputs: []int{rng.Index},
	})
	mustAddNode(t, g, &ir.Node{
		Kind:    ir.OpAdd,
		Inputs:  []int{rng.Index, offset.Index},
		Outputs: []int{sum.Index},
	})

	result, err := foldPass().Apply(g)
	require.NoError(t, err)
	assert.Equal(t, Changed, result)
	assert.Equal(t, 0, g.NumNodes())

	values, err := sum.Float32Values()
	require.NoError(t, err)
	assert.Equal(t, []float32{10, 11, 12, 13}, values)
}

func TestFoldSkipsRuntimeInputs(t *testing.T) {
	g := ir.NewGraph()
	in := runtimeTensor(t, g, ir.Shape{4})
	out := runtimeTensor(t, g, ir.Shape{4})
	require.NoError(t, g.SetInputs(in.Index))
	require.NoError(t, g.SetOutputs(out.Index))
	mustAddNode(t, g, &ir.Node{
		Kind:    ir.OpRelu,
		Inputs:  []int{in.Index},
		Outputs: []int{out.Index},
	})

	result, err := foldPass().Apply(g)
	require.NoError(t, err)
	assert.Equal(t, Unchanged, result)
	assert.Equal(t, 1, g.NumNodes())
}

func TestFoldSkipsConstantGraphInput(t *testing.T) {
	// A designated graph input with an initial value is still a runtime
	// tensor: the caller may feed a different value.
	g := ir.NewGraph()
	in := constTensor(t, g, ir.Shape{2}, []float32{1, 2})
	out := runtimeTensor(t, g, ir.Shape{2})
	require.NoError(t, g.SetInputs(in.Index))
	require.NoError(t, g.SetOutputs(out.Index))
	mustAddNode(t, g, &ir.Node{
		Kind:    ir.OpRelu,
		Inputs:  []int{in.Index},
		Outputs: []int{out.Index},
	})

	result, err := foldPass().Apply(g)
	require.NoError(t, err)
	assert.Equal(t, Unchanged, result)
}

func TestFoldSkipsQuantizationBoundary(t *testing.T) {
	g := ir.NewGraph()
	in := constTensor(t, g, ir.Shape{2}, []float32{1, 2})
	out := runtimeTensor(t, g, ir.Shape{2})
	require.NoError(t, g.SetOutputs(out.Index))
	mustAddNode(t, g, &ir.Node{
		Kind:    ir.OpQuantize,
		Attrs:   &ir.QuantizeAttrs{To: ir.Int8},
		Inputs:  []int{in.Index},
		Outputs: []int{out.Index},
	})

	result, err := foldPass().Apply(g)
	require.NoError(t, err)
	assert.Equal(t, Unchanged, result)
}

func TestFoldShapeContradiction(t *testing.T) {
	// The declared static shape disagrees with the evaluated result.
	g := ir.NewGraph()
	out := runtimeTensor(t, g, ir.Shape{3})
	require.NoError(t, g.SetOutputs(out.Index))
	mustAddNode(t, g, &ir.Node{
		Kind:    ir.OpRange,
		Attrs:   &ir.RangeAttrs{Start: 0, Limit: 5, Delta: 1, DType: ir.Float32},
		Outputs: []int{out.Index},
	})

	_, err := foldPass().Apply(g)
	require.Error(t, err)
	assert.True(t, ir.IsStructural(err))
}
