package ir

import "fmt"

// QuantParams holds the affine quantization parameters attached to a tensor.
//
// Per-tensor quantization uses a single (scale, zero-point) pair. Per-channel
// quantization (weight tensors only) carries one pair per slice along Axis;
// ZeroPoints is then the same length as Scales.
type QuantParams struct {
	Scales     []float64
	ZeroPoints []int64
	Axis       int // Channel axis for per-channel params; ignored when per-tensor.
}

// PerTensor reports whether the parameters describe a single (scale, zero-point) pair.
func (q *QuantParams) PerTensor() bool {
	return len(q.Scales) == 1
}

// Validate checks internal consistency of the parameter set.
func (q *QuantParams) Validate() error {
	if len(q.Scales) == 0 {
		return fmt.Errorf("quant params: no scales")
	}
	if len(q.Scales) != len(q.ZeroPoints) {
		return fmt.Errorf("quant params: %d scales vs %d zero points", len(q.Scales), len(q.ZeroPoints))
	}
	for i, s := range q.Scales {
		if s <= 0 {
			return fmt.Errorf("quant params: scale[%d] = %g (must be > 0)", i, s)
		}
	}
	return nil
}

// Tensor describes one value flowing through the graph: its identity, logical
// shape, element type, and (for constants and weights) the owned raw buffer.
type Tensor struct {
	Index int    // Identity, unique within a graph. Assigned by Graph.AddTensor.
	Name  string // Optional diagnostic name from the loader.
	Shape Shape
	DType DataType
	Data  []byte       // Present for constants/weights, nil for runtime values.
	Quant *QuantParams // Present once the quantizer has processed the tensor.
}

// IsConstant reports whether the tensor carries compile-time data.
func (t *Tensor) IsConstant() bool {
	return t.Data != nil
}

// ByteLen returns the expected buffer size for a fully static shape.
func (t *Tensor) ByteLen() int {
	return t.Shape.NumElements() * t.DType.Size()
}

// CheckBuffer verifies the buffer-length invariant: a constant tensor with a
// fully static shape must own exactly shape x element-size bytes.
func (t *Tensor) CheckBuffer() error {
	if t.Data == nil || !t.Shape.IsStatic() {
		return nil
	}
	if len(t.Data) != t.ByteLen() {
		return &StructuralError{
			Node:   -1,
			Tensor: t.Index,
			Reason: fmt.Sprintf("buffer length %d does not match shape %v x %s (%d bytes)",
				len(t.Data), t.Shape, t.DType, t.ByteLen()),
		}
	}
	return nil
}

// Float32Values decodes the constant buffer into float32 values.
// Supported source types: float32, float16, bfloat16, int32, int8, uint8.
func (t *Tensor) Float32Values() ([]float32, error) {
	if t.Data == nil {
		return nil, fmt.Errorf("tensor %d (%s): no constant data", t.Index, t.Name)
	}
	return DecodeFloat32s(t.DType, t.Data, t.Shape.NumElements())
}
