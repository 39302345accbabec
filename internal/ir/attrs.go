package ir

import (
	"fmt"
	"math"

	"github.com/mitchellh/mapstructure"
)

// Conv2DAttrs configures Conv2D and DepthwiseConv2D nodes.
// Inputs: [input, filter] or [input, filter, bias] once a BiasAdd has been
// fused. Filter layout is [outChannels, kH, kW, inChannels], input is NHWC.
type Conv2DAttrs struct {
	StrideH    int            `mapstructure:"stride_h"`
	StrideW    int            `mapstructure:"stride_w"`
	Padding    string         `mapstructure:"padding"` // "SAME" or "VALID"
	Activation ActivationKind `mapstructure:"-"`       // Set by fusion, not by the loader.
}

// FullyConnectedAttrs configures FullyConnected nodes.
// Inputs: [input, weights] or [input, weights, bias].
type FullyConnectedAttrs struct {
	Activation ActivationKind `mapstructure:"-"`
}

// RangeAttrs configures Range nodes: an arithmetic sequence
// [start, start+delta, ...) bounded by limit, emitted as DType.
type RangeAttrs struct {
	Start float64 `mapstructure:"start"`
	Limit float64 `mapstructure:"limit"`
	Delta float64 `mapstructure:"delta"`
	DType DataType `mapstructure:"-"` // Carried as a type name, resolved separately.
}

// NumElements returns the length of the generated sequence.
func (a *RangeAttrs) NumElements() (int, error) {
	if a.Delta == 0 {
		return 0, fmt.Errorf("range: delta must be non-zero")
	}
	n := (a.Limit - a.Start) / a.Delta
	if n < 0 {
		return 0, fmt.Errorf("range: empty sequence for start=%g limit=%g delta=%g", a.Start, a.Limit, a.Delta)
	}
	return int(math.Ceil(n)), nil
}

// CastAttrs configures Cast nodes.
type CastAttrs struct {
	To DataType
}

// TransposeAttrs configures Transpose nodes. Perm is the output axis order.
type TransposeAttrs struct {
	Perm []int `mapstructure:"perm"`
}

// ConcatAttrs configures Concat nodes.
type ConcatAttrs struct {
	Axis int `mapstructure:"axis"`
}

// QuantizeAttrs configures Quantize and Dequantize boundary nodes.
type QuantizeAttrs struct {
	To DataType
}

// DecodeAttrs builds the typed attribute record for a node kind from the
// untyped attribute map a loader hands over. Data types and activations are
// carried as names in the map.
func DecodeAttrs(kind OpKind, raw map[string]any) (any, error) {
	if raw == nil {
		raw = map[string]any{}
	}

	decode := func(out any) error {
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           out,
			WeaklyTypedInput: true,
		})
		if err != nil {
			return err
		}
		if err := dec.Decode(raw); err != nil {
			return fmt.Errorf("decode %s attrs: %w", kind, err)
		}
		return nil
	}

	dtypeField := func(key string, def DataType) (DataType, error) {
		v, ok := raw[key]
		if !ok {
			return def, nil
		}
		name, ok := v.(string)
		if !ok {
			return def, fmt.Errorf("%s attrs: %q must be a type name", kind, key)
		}
		dt, ok := ParseDataType(name)
		if !ok {
			return def, fmt.Errorf("%s attrs: unknown data type %q", kind, name)
		}
		return dt, nil
	}

	switch kind {
	case OpConv2D, OpDepthwiseConv2D:
		attrs := &Conv2DAttrs{StrideH: 1, StrideW: 1, Padding: "VALID"}
		if err := decode(attrs); err != nil {
			return nil, err
		}
		return attrs, nil

	case OpFullyConnected, OpMatMul:
		attrs := &FullyConnectedAttrs{}
		if err := decode(attrs); err != nil {
			return nil, err
		}
		return attrs, nil

	case OpRange:
		attrs := &RangeAttrs{Delta: 1}
		if err := decode(attrs); err != nil {
			return nil, err
		}
		dt, err := dtypeField("dtype", Float32)
		if err != nil {
			return nil, err
		}
		attrs.DType = dt
		return attrs, nil

	case OpCast:
		dt, err := dtypeField("to", Float32)
		if err != nil {
			return nil, err
		}
		return &CastAttrs{To: dt}, nil

	case OpTranspose:
		attrs := &TransposeAttrs{}
		if err := decode(attrs); err != nil {
			return nil, err
		}
		return attrs, nil

	case OpConcat:
		attrs := &ConcatAttrs{}
		if err := decode(attrs); err != nil {
			return nil, err
		}
		return attrs, nil

	case OpQuantize, OpDequantize:
		dt, err := dtypeField("to", Float32)
		if err != nil {
			return nil, err
		}
		return &QuantizeAttrs{To: dt}, nil

	default:
		return nil, nil
	}
}
