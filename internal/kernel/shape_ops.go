package kernel

import (
	"fmt"

	"github.com/tinygraph-ml/tinygraph/internal/ir"
)

// registerShapeOps adds tensor generation and shape manipulation evaluators.
func (r *Registry) registerShapeOps() {
	r.Register(ir.OpRange, evalRange)
	r.Register(ir.OpCast, evalCast)
	r.Register(ir.OpReshape, evalReshape)
	r.Register(ir.OpConcat, evalConcat)
	r.Register(ir.OpShape, evalShape)
	r.Register(ir.OpTranspose, evalTranspose)
}

// evalRange materializes the arithmetic sequence [start, limit) with step
// delta, as float32 or int32 depending on the node's dtype attribute.
func evalRange(node *ir.Node, _ []*ir.Tensor) (*ir.Tensor, error) {
	attrs, ok := node.Attrs.(*ir.RangeAttrs)
	if !ok {
		return nil, fmt.Errorf("missing range attrs")
	}
	count, err := attrs.NumElements()
	if err != nil {
		return nil, err
	}

	var data []byte
	switch attrs.DType {
	case ir.Float32:
		values := make([]float32, count)
		v := attrs.Start
		for i := range values {
			values[i] = float32(v)
			v += attrs.Delta
		}
		if data, err = ir.EncodeFloat32s(ir.Float32, values); err != nil {
			return nil, err
		}

	case ir.Int32:
		values := make([]int32, count)
		v := int32(attrs.Start)
		delta := int32(attrs.Delta)
		for i := range values {
			values[i] = v
			v += delta
		}
		data = ir.EncodeInt32s(values)

	default:
		return nil, fmt.Errorf("unsupported range dtype %s", attrs.DType)
	}

	return &ir.Tensor{
		Name:  node.Name,
		Shape: ir.Shape{count},
		DType: attrs.DType,
		Data:  data,
	}, nil
}

func evalCast(node *ir.Node, inputs []*ir.Tensor) (*ir.Tensor, error) {
	if len(inputs) != 1 {
		return nil, fmt.Errorf("cast requires 1 input, got %d", len(inputs))
	}
	attrs, ok := node.Attrs.(*ir.CastAttrs)
	if !ok {
		return nil, fmt.Errorf("missing cast attrs")
	}

	values, err := inputs[0].Float32Values()
	if err != nil {
		return nil, err
	}

	var data []byte
	switch attrs.To {
	case ir.Float32, ir.Float16, ir.BFloat16:
		if data, err = ir.EncodeFloat32s(attrs.To, values); err != nil {
			return nil, err
		}
	case ir.Int32:
		ints := make([]int32, len(values))
		for i, v := range values {
			ints[i] = int32(v)
		}
		data = ir.EncodeInt32s(ints)
	default:
		return nil, fmt.Errorf("unsupported cast target %s", attrs.To)
	}

	return &ir.Tensor{
		Name:  node.Name,
		Shape: inputs[0].Shape.Clone(),
		DType: attrs.To,
		Data:  data,
	}, nil
}

// evalReshape keeps the buffer and swaps the shape. The target shape comes
// from the second input (an int32 shape tensor); a single -1 dimension is
// inferred from the element count.
func evalReshape(node *ir.Node, inputs []*ir.Tensor) (*ir.Tensor, error) {
	if len(inputs) != 2 {
		return nil, fmt.Errorf("reshape requires 2 inputs, got %d", len(inputs))
	}
	src, shapeT := inputs[0], inputs[1]
	dims, err := ir.DecodeInt32s(shapeT.Data, shapeT.Shape.NumElements())
	if err != nil {
		return nil, fmt.Errorf("shape input: %w", err)
	}

	total := src.Shape.NumElements()
	newShape := make(ir.Shape, len(dims))
	infer := -1
	known := 1
	for i, d := range dims {
		switch {
		case d == -1 && infer == -1:
			infer = i
		case d == -1:
			return nil, fmt.Errorf("multiple -1 dimensions in reshape target")
		default:
			newShape[i] = int(d)
			known *= int(d)
		}
	}
	if infer >= 0 {
		if known == 0 || total%known != 0 {
			return nil, fmt.Errorf("cannot infer dimension: %d elements into %v", total, dims)
		}
		newShape[infer] = total / known
	} else if newShape.NumElements() != total {
		return nil, fmt.Errorf("reshape element count mismatch: %v -> %v", src.Shape, newShape)
	}

	return &ir.Tensor{
		Name:  node.Name,
		Shape: newShape,
		DType: src.DType,
		Data:  append([]byte(nil), src.Data...),
	}, nil
}

func evalConcat(node *ir.Node, inputs []*ir.Tensor) (*ir.Tensor, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("concat requires at least 1 input")
	}
	attrs, ok := node.Attrs.(*ir.ConcatAttrs)
	if !ok {
		return nil, fmt.Errorf("missing concat attrs")
	}
	axis := attrs.Axis
	rank := len(inputs[0].Shape)
	if axis < 0 {
		axis += rank
	}
	if axis < 0 || axis >= rank {
		return nil, fmt.Errorf("concat axis %d out of range for rank %d", attrs.Axis, rank)
	}

	outShape := inputs[0].Shape.Clone()
	outShape[axis] = 0
	for _, in := range inputs {
		if len(in.Shape) != rank || in.DType != inputs[0].DType {
			return nil, fmt.Errorf("concat inputs must share rank and dtype")
		}
		for d := range in.Shape {
			if d != axis && in.Shape[d] != outShape[d] {
				return nil, fmt.Errorf("concat shape mismatch at axis %d: %v vs %v", d, in.Shape, outShape)
			}
		}
		outShape[axis] += in.Shape[axis]
	}

	// Copy row blocks: outer iterations over dims before the axis, one
	// contiguous block per input per iteration.
	elemSize := inputs[0].DType.Size()
	outer := 1
	for d := 0; d < axis; d++ {
		outer *= outShape[d]
	}

	data := make([]byte, outShape.NumElements()*elemSize)
	offset := 0
	for o := 0; o < outer; o++ {
		for _, in := range inputs {
			block := in.Shape.NumElements() / outer * elemSize
			copy(data[offset:], in.Data[o*block:(o+1)*block])
			offset += block
		}
	}

	return &ir.Tensor{
		Name:  node.Name,
		Shape: outShape,
		DType: inputs[0].DType,
		Data:  data,
	}, nil
}

// evalShape emits the input's dimensions as an int32 vector. Only valid for
// fully static shapes.
func evalShape(node *ir.Node, inputs []*ir.Tensor) (*ir.Tensor, error) {
	if len(inputs) != 1 {
		return nil, fmt.Errorf("shape requires 1 input, got %d", len(inputs))
	}
	if !inputs[0].Shape.IsStatic() {
		return nil, fmt.Errorf("shape of dynamic tensor is not computable")
	}
	dims := make([]int32, len(inputs[0].Shape))
	for i, d := range inputs[0].Shape {
		dims[i] = int32(d)
	}
	return &ir.Tensor{
		Name:  node.Name,
		Shape: ir.Shape{len(dims)},
		DType: ir.Int32,
		Data:  ir.EncodeInt32s(dims),
	}, nil
}

func evalTranspose(node *ir.Node, inputs []*ir.Tensor) (*ir.Tensor, error) {
	if len(inputs) != 1 {
		return nil, fmt.Errorf("transpose requires 1 input, got %d", len(inputs))
	}
	attrs, ok := node.Attrs.(*ir.TransposeAttrs)
	if !ok {
		return nil, fmt.Errorf("missing transpose attrs")
	}
	src := inputs[0]
	rank := len(src.Shape)
	if len(attrs.Perm) != rank {
		return nil, fmt.Errorf("perm length %d does not match rank %d", len(attrs.Perm), rank)
	}

	outShape := make(ir.Shape, rank)
	for i, p := range attrs.Perm {
		if p < 0 || p >= rank {
			return nil, fmt.Errorf("perm axis %d out of range", p)
		}
		outShape[i] = src.Shape[p]
	}

	srcStrides := make([]int, rank)
	stride := 1
	for d := rank - 1; d >= 0; d-- {
		srcStrides[d] = stride
		stride *= src.Shape[d]
	}

	elemSize := src.DType.Size()
	total := src.Shape.NumElements()
	data := make([]byte, total*elemSize)

	idx := make([]int, rank)
	for flat := 0; flat < total; flat++ {
		srcFlat := 0
		for d := 0; d < rank; d++ {
			srcFlat += idx[d] * srcStrides[attrs.Perm[d]]
		}
		copy(data[flat*elemSize:], src.Data[srcFlat*elemSize:(srcFlat+1)*elemSize])

		for d := rank - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < outShape[d] {
				break
			}
			idx[d] = 0
		}
	}

	return &ir.Tensor{
		Name:  node.Name,
		Shape: outShape,
		DType: src.DType,
		Data:  data,
	}, nil
}
