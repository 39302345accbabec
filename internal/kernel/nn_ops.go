package kernel

import (
	"fmt"
	"math"

	"github.com/tinygraph-ml/tinygraph/internal/ir"
)

// registerNNOps adds the reference evaluators for compute-heavy operators.
// These are naive direct implementations: they exist so calibration can run a
// graph ahead of time, not for runtime performance.
func (r *Registry) registerNNOps() {
	r.Register(ir.OpConv2D, evalConv2D)
	r.Register(ir.OpDepthwiseConv2D, evalDepthwiseConv2D)
	r.Register(ir.OpFullyConnected, evalFullyConnected)
	r.Register(ir.OpMatMul, evalMatMul)
	r.Register(ir.OpBiasAdd, evalBiasAdd)
	r.Register(ir.OpRelu, makeActivationOp(ir.ActRelu))
	r.Register(ir.OpRelu6, makeActivationOp(ir.ActRelu6))
	r.Register(ir.OpSigmoid, makeActivationOp(ir.ActSigmoid))
	r.Register(ir.OpTanh, makeActivationOp(ir.ActTanh))
}

// ApplyActivation applies an activation function in place.
func ApplyActivation(kind ir.ActivationKind, values []float32) {
	switch kind {
	case ir.ActNone:
	case ir.ActRelu:
		for i, v := range values {
			if v < 0 {
				values[i] = 0
			}
		}
	case ir.ActRelu6:
		for i, v := range values {
			values[i] = float32(math.Min(math.Max(float64(v), 0), 6))
		}
	case ir.ActSigmoid:
		for i, v := range values {
			values[i] = float32(1 / (1 + math.Exp(-float64(v))))
		}
	case ir.ActTanh:
		for i, v := range values {
			values[i] = float32(math.Tanh(float64(v)))
		}
	}
}

func makeActivationOp(kind ir.ActivationKind) Evaluator {
	return func(node *ir.Node, inputs []*ir.Tensor) (*ir.Tensor, error) {
		if len(inputs) != 1 {
			return nil, fmt.Errorf("activation requires 1 input, got %d", len(inputs))
		}
		values, err := inputs[0].Float32Values()
		if err != nil {
			return nil, err
		}
		ApplyActivation(kind, values)
		data, err := ir.EncodeFloat32s(ir.Float32, values)
		if err != nil {
			return nil, err
		}
		return &ir.Tensor{
			Name:  node.Name,
			Shape: inputs[0].Shape.Clone(),
			DType: ir.Float32,
			Data:  data,
		}, nil
	}
}

func evalBiasAdd(node *ir.Node, inputs []*ir.Tensor) (*ir.Tensor, error) {
	if len(inputs) != 2 {
		return nil, fmt.Errorf("bias add requires 2 inputs, got %d", len(inputs))
	}
	values, err := inputs[0].Float32Values()
	if err != nil {
		return nil, err
	}
	bias, err := inputs[1].Float32Values()
	if err != nil {
		return nil, err
	}
	channels := len(bias)
	if channels == 0 || len(values)%channels != 0 {
		return nil, fmt.Errorf("bias length %d does not divide %d elements", channels, len(values))
	}
	for i := range values {
		values[i] += bias[i%channels]
	}
	data, err := ir.EncodeFloat32s(ir.Float32, values)
	if err != nil {
		return nil, err
	}
	return &ir.Tensor{
		Name:  node.Name,
		Shape: inputs[0].Shape.Clone(),
		DType: ir.Float32,
		Data:  data,
	}, nil
}

// convGeometry resolves output size and leading padding for one spatial axis.
func convGeometry(in, kernel, stride int, padding string) (out, padBefore int, err error) {
	switch padding {
	case "SAME":
		out = (in + stride - 1) / stride
		total := (out-1)*stride + kernel - in
		if total < 0 {
			total = 0
		}
		return out, total / 2, nil
	case "VALID":
		if in < kernel {
			return 0, 0, fmt.Errorf("input %d smaller than kernel %d with VALID padding", in, kernel)
		}
		return (in-kernel)/stride + 1, 0, nil
	default:
		return 0, 0, fmt.Errorf("unknown padding %q", padding)
	}
}

// evalConv2D is a direct NHWC convolution.
// Input [N,H,W,C], filter [OC,kH,kW,C], optional bias [OC], output [N,OH,OW,OC].
func evalConv2D(node *ir.Node, inputs []*ir.Tensor) (*ir.Tensor, error) {
	return convolve(node, inputs, false)
}

// evalDepthwiseConv2D convolves each channel with its own filter.
// Filter layout [C,kH,kW,1], output channels equal input channels.
func evalDepthwiseConv2D(node *ir.Node, inputs []*ir.Tensor) (*ir.Tensor, error) {
	return convolve(node, inputs, true)
}

func convolve(node *ir.Node, inputs []*ir.Tensor, depthwise bool) (*ir.Tensor, error) {
	if len(inputs) < 2 || len(inputs) > 3 {
		return nil, fmt.Errorf("conv requires 2 or 3 inputs, got %d", len(inputs))
	}
	attrs, ok := node.Attrs.(*ir.Conv2DAttrs)
	if !ok {
		return nil, fmt.Errorf("missing conv attrs")
	}

	in, filter := inputs[0], inputs[1]
	if len(in.Shape) != 4 || len(filter.Shape) != 4 {
		return nil, fmt.Errorf("conv input and filter must be 4D, got %v and %v", in.Shape, filter.Shape)
	}

	batch, height, width, channels := in.Shape[0], in.Shape[1], in.Shape[2], in.Shape[3]
	outCh, kh, kw, filterCh := filter.Shape[0], filter.Shape[1], filter.Shape[2], filter.Shape[3]

	if depthwise {
		if outCh != channels || filterCh != 1 {
			return nil, fmt.Errorf("depthwise filter must be [C,kH,kW,1] for %d channels, got %v", channels, filter.Shape)
		}
	} else if filterCh != channels {
		return nil, fmt.Errorf("filter channels %d != input channels %d", filterCh, channels)
	}

	outH, padTop, err := convGeometry(height, kh, attrs.StrideH, attrs.Padding)
	if err != nil {
		return nil, err
	}
	outW, padLeft, err := convGeometry(width, kw, attrs.StrideW, attrs.Padding)
	if err != nil {
		return nil, err
	}

	inData, err := in.Float32Values()
	if err != nil {
		return nil, err
	}
	filterData, err := filter.Float32Values()
	if err != nil {
		return nil, err
	}
	var bias []float32
	if len(inputs) == 3 {
		if bias, err = inputs[2].Float32Values(); err != nil {
			return nil, err
		}
		if len(bias) != outCh {
			return nil, fmt.Errorf("bias length %d != output channels %d", len(bias), outCh)
		}
	}

	out := make([]float32, batch*outH*outW*outCh)
	at := func(n, y, x, c int) float32 {
		return inData[((n*height+y)*width+x)*channels+c]
	}

	for n := 0; n < batch; n++ {
		for oy := 0; oy < outH; oy++ {
			for ox := 0; ox < outW; ox++ {
				for oc := 0; oc < outCh; oc++ {
					var acc float32
					for fy := 0; fy < kh; fy++ {
						y := oy*attrs.StrideH + fy - padTop
						if y < 0 || y >= height {
							continue
						}
						for fx := 0; fx < kw; fx++ {
							x := ox*attrs.StrideW + fx - padLeft
							if x < 0 || x >= width {
								continue
							}
							if depthwise {
								acc += at(n, y, x, oc) * filterData[((oc*kh+fy)*kw+fx)*1]
							} else {
								for c := 0; c < channels; c++ {
									acc += at(n, y, x, c) * filterData[((oc*kh+fy)*kw+fx)*channels+c]
								}
							}
						}
					}
					if bias != nil {
						acc += bias[oc]
					}
					out[((n*outH+oy)*outW+ox)*outCh+oc] = acc
				}
			}
		}
	}

	ApplyActivation(attrs.Activation, out)

	data, err := ir.EncodeFloat32s(ir.Float32, out)
	if err != nil {
		return nil, err
	}
	return &ir.Tensor{
		Name:  node.Name,
		Shape: ir.Shape{batch, outH, outW, outCh},
		DType: ir.Float32,
		Data:  data,
	}, nil
}

// evalFullyConnected computes input [N,K] x weights [OutF,K] + bias [OutF].
func evalFullyConnected(node *ir.Node, inputs []*ir.Tensor) (*ir.Tensor, error) {
	if len(inputs) < 2 || len(inputs) > 3 {
		return nil, fmt.Errorf("fully connected requires 2 or 3 inputs, got %d", len(inputs))
	}
	in, weights := inputs[0], inputs[1]
	if len(in.Shape) != 2 || len(weights.Shape) != 2 || in.Shape[1] != weights.Shape[1] {
		return nil, fmt.Errorf("incompatible shapes %v x %v", in.Shape, weights.Shape)
	}
	rows, depth, outF := in.Shape[0], in.Shape[1], weights.Shape[0]

	inData, err := in.Float32Values()
	if err != nil {
		return nil, err
	}
	wData, err := weights.Float32Values()
	if err != nil {
		return nil, err
	}
	var bias []float32
	if len(inputs) == 3 {
		if bias, err = inputs[2].Float32Values(); err != nil {
			return nil, err
		}
		if len(bias) != outF {
			return nil, fmt.Errorf("bias length %d != output features %d", len(bias), outF)
		}
	}

	out := make([]float32, rows*outF)
	for r := 0; r < rows; r++ {
		for o := 0; o < outF; o++ {
			var acc float32
			for k := 0; k < depth; k++ {
				acc += inData[r*depth+k] * wData[o*depth+k]
			}
			if bias != nil {
				acc += bias[o]
			}
			out[r*outF+o] = acc
		}
	}

	if attrs, ok := node.Attrs.(*ir.FullyConnectedAttrs); ok {
		ApplyActivation(attrs.Activation, out)
	}

	data, err := ir.EncodeFloat32s(ir.Float32, out)
	if err != nil {
		return nil, err
	}
	return &ir.Tensor{
		Name:  node.Name,
		Shape: ir.Shape{rows, outF},
		DType: ir.Float32,
		Data:  data,
	}, nil
}

// evalMatMul computes [M,K] x [K,N].
func evalMatMul(node *ir.Node, inputs []*ir.Tensor) (*ir.Tensor, error) {
	if len(inputs) != 2 {
		return nil, fmt.Errorf("matmul requires 2 inputs, got %d", len(inputs))
	}
	a, b := inputs[0], inputs[1]
	if len(a.Shape) != 2 || len(b.Shape) != 2 || a.Shape[1] != b.Shape[0] {
		return nil, fmt.Errorf("incompatible shapes %v x %v", a.Shape, b.Shape)
	}
	m, k, n := a.Shape[0], a.Shape[1], b.Shape[1]

	av, err := a.Float32Values()
	if err != nil {
		return nil, err
	}
	bv, err := b.Float32Values()
	if err != nil {
		return nil, err
	}

	out := make([]float32, m*n)
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			var acc float32
			for x := 0; x < k; x++ {
				acc += av[i*k+x] * bv[x*n+j]
			}
			out[i*n+j] = acc
		}
	}

	data, err := ir.EncodeFloat32s(ir.Float32, out)
	if err != nil {
		return nil, err
	}
	return &ir.Tensor{
		Name:  node.Name,
		Shape: ir.Shape{m, n},
		DType: ir.Float32,
		Data:  data,
	}, nil
}
