package kernel

import (
	"fmt"

	"github.com/tinygraph-ml/tinygraph/internal/ir"
)

// registerMathOps adds elementwise arithmetic evaluators.
func (r *Registry) registerMathOps() {
	r.Register(ir.OpAdd, makeBinaryOp(func(a, b float32) float32 { return a + b }))
	r.Register(ir.OpSub, makeBinaryOp(func(a, b float32) float32 { return a - b }))
	r.Register(ir.OpMul, makeBinaryOp(func(a, b float32) float32 { return a * b }))
}

// makeBinaryOp builds an elementwise evaluator. Shapes must match exactly,
// except that a scalar (1-element) operand broadcasts against the other side.
func makeBinaryOp(f func(a, b float32) float32) Evaluator {
	return func(node *ir.Node, inputs []*ir.Tensor) (*ir.Tensor, error) {
		if len(inputs) != 2 {
			return nil, fmt.Errorf("requires 2 inputs, got %d", len(inputs))
		}
		a, b := inputs[0], inputs[1]

		av, err := a.Float32Values()
		if err != nil {
			return nil, err
		}
		bv, err := b.Float32Values()
		if err != nil {
			return nil, err
		}

		outShape := a.Shape
		switch {
		case a.Shape.Equal(b.Shape):
		case len(bv) == 1:
			bb := bv[0]
			bv = make([]float32, len(av))
			for i := range bv {
				bv[i] = bb
			}
		case len(av) == 1:
			outShape = b.Shape
			aa := av[0]
			av = make([]float32, len(bv))
			for i := range av {
				av[i] = aa
			}
		default:
			return nil, fmt.Errorf("shape mismatch: %v vs %v", a.Shape, b.Shape)
		}

		out := make([]float32, len(av))
		for i := range out {
			out[i] = f(av[i], bv[i])
		}

		data, err := ir.EncodeFloat32s(ir.Float32, out)
		if err != nil {
			return nil, err
		}
		return &ir.Tensor{
			Name:  node.Name,
			Shape: outShape.Clone(),
			DType: ir.Float32,
			Data:  data,
		}, nil
	}
}
