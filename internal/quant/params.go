// Package quant computes quantization parameters and rewrites the graph to a
// reduced-precision representation. Two schemes exist: weight-only (static
// weight ranges) and full calibration (activation ranges observed on a
// calibration dataset).
package quant

import (
	"fmt"
	"math"

	"github.com/tinygraph-ml/tinygraph/internal/ir"
)

// Quantized integer limits for the int8 storage type. The symmetric weight
// range keeps -128 unused so negation stays exact.
const (
	weightQmin = -127
	weightQmax = 127
	actQmin    = -128
	actQmax    = 127
)

// symmetricScale derives a symmetric (zero-point 0) scale from the largest
// absolute value. Used for weights.
func symmetricScale(values []float32) float64 {
	var maxAbs float64
	for _, v := range values {
		if a := math.Abs(float64(v)); a > maxAbs {
			maxAbs = a
		}
	}
	if maxAbs == 0 {
		return 1.0 / weightQmax // All-zero tensor quantizes to zeros with any positive scale.
	}
	return maxAbs / weightQmax
}

// affineParams derives an asymmetric (scale, zero-point) pair from an
// observed value range. The range is widened to include zero so that zero
// padding quantizes exactly, then the zero point is nudged onto the integer
// grid. Used for activations.
func affineParams(min, max float64) (scale float64, zeroPoint int64) {
	min = math.Min(min, 0)
	max = math.Max(max, 0)
	if min == max {
		return 1, 0
	}

	scale = (max - min) / float64(actQmax-actQmin)
	zp := actQmin - min/scale
	switch {
	case zp < actQmin:
		zeroPoint = actQmin
	case zp > actQmax:
		zeroPoint = actQmax
	default:
		zeroPoint = int64(math.Round(zp))
	}
	return scale, zeroPoint
}

// quantizeValue maps a real value onto the integer grid with
// round-half-away-from-zero and clamping.
func quantizeValue(v float32, scale float64, zeroPoint int64, qmin, qmax int64) int64 {
	q := int64(math.Round(float64(v)/scale)) + zeroPoint
	if q < qmin {
		return qmin
	}
	if q > qmax {
		return qmax
	}
	return q
}

// DequantizeValue recovers the real value for a quantized one.
func DequantizeValue(q int64, scale float64, zeroPoint int64) float32 {
	return float32(float64(q-zeroPoint) * scale)
}

// quantizeBuffer converts float values to an int8 buffer using per-tensor or
// per-channel parameters. For per-channel parameters the tensor is viewed as
// [channels, inner] along params.Axis, which must be the leading axis.
func quantizeBuffer(values []float32, shape ir.Shape, params *ir.QuantParams) ([]byte, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	data := make([]byte, len(values))

	if params.PerTensor() {
		scale, zp := params.Scales[0], params.ZeroPoints[0]
		for i, v := range values {
			data[i] = byte(int8(quantizeValue(v, scale, zp, weightQmin, weightQmax)))
		}
		return data, nil
	}

	if params.Axis != 0 {
		return nil, fmt.Errorf("per-channel quantization only supports the leading axis, got %d", params.Axis)
	}
	channels := len(params.Scales)
	if len(shape) == 0 || shape[0] != channels {
		return nil, fmt.Errorf("%d channel params do not match shape %v", channels, shape)
	}
	inner := len(values) / channels

	for c := 0; c < channels; c++ {
		scale, zp := params.Scales[c], params.ZeroPoints[c]
		for i := c * inner; i < (c+1)*inner; i++ {
			data[i] = byte(int8(quantizeValue(values[i], scale, zp, weightQmin, weightQmax)))
		}
	}
	return data, nil
}

// DequantizeTensor materializes the full-precision values of a quantized
// constant tensor. Round-trip helper used by tests and by kernels that need a
// float view of quantized weights.
func DequantizeTensor(t *ir.Tensor) ([]float32, error) {
	if t.Quant == nil {
		return nil, fmt.Errorf("tensor %d has no quantization parameters", t.Index)
	}
	if t.DType != ir.Int8 {
		return nil, fmt.Errorf("tensor %d: unsupported quantized storage %s", t.Index, t.DType)
	}

	values := make([]float32, len(t.Data))
	if t.Quant.PerTensor() {
		scale, zp := t.Quant.Scales[0], t.Quant.ZeroPoints[0]
		for i, b := range t.Data {
			values[i] = DequantizeValue(int64(int8(b)), scale, zp)
		}
		return values, nil
	}

	channels := len(t.Quant.Scales)
	inner := len(t.Data) / channels
	for c := 0; c < channels; c++ {
		scale, zp := t.Quant.Scales[c], t.Quant.ZeroPoints[c]
		for i := c * inner; i < (c+1)*inner; i++ {
			values[i] = DequantizeValue(int64(int8(t.Data[i])), scale, zp)
		}
	}
	return values, nil
}

// weightParams computes symmetric int8 parameters for a weight tensor:
// per-channel along the leading axis when perChannel is set and the shape
// allows it, per-tensor otherwise.
func weightParams(values []float32, shape ir.Shape, perChannel bool) *ir.QuantParams {
	if perChannel && len(shape) >= 2 && shape[0] > 0 && len(values)%shape[0] == 0 {
		channels := shape[0]
		inner := len(values) / channels
		scales := make([]float64, channels)
		zeros := make([]int64, channels)
		for c := 0; c < channels; c++ {
			scales[c] = symmetricScale(values[c*inner : (c+1)*inner])
		}
		return &ir.QuantParams{Scales: scales, ZeroPoints: zeros, Axis: 0}
	}
	return &ir.QuantParams{
		Scales:     []float64{symmetricScale(values)},
		ZeroPoints: []int64{0},
	}
}
