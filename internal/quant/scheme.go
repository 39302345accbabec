package quant

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/tinygraph-ml/tinygraph/internal/ir"
)

// ErrCalibrationDataMissing aborts full quantization when no calibration
// dataset was supplied. Surfaced before any graph mutation.
var ErrCalibrationDataMissing = errors.New("activation quantization requested but no calibration data supplied")

// UnsupportedOperatorError marks an operator kind without a quantized
// variant. It is recoverable: the node is left unquantized and the run
// continues.
type UnsupportedOperatorError struct {
	Node int
	Kind ir.OpKind
}

// Error implements the error interface.
func (e *UnsupportedOperatorError) Error() string {
	return fmt.Sprintf("operator %s (node %d) has no quantized variant", e.Kind, e.Node)
}

// Scheme is one quantization strategy. ComputeParameters derives (scale,
// zero-point) pairs and attaches them to tensor descriptors;
// RewriteGraph converts storage and node signatures to use them. The split
// keeps all fallible analysis ahead of the first mutation.
type Scheme interface {
	Name() string
	ComputeParameters(g *ir.Graph) error
	RewriteGraph(g *ir.Graph) error
}

// weightConsumers are the kinds whose weight operand (input 1) is eligible
// for reduced-precision storage.
var weightConsumers = map[ir.OpKind]bool{
	ir.OpConv2D:          true,
	ir.OpDepthwiseConv2D: true,
	ir.OpFullyConnected:  true,
	ir.OpMatMul:          true,
}

// quantizationAware are the kinds that accept quantized operands directly.
// Any other consumer of a quantized tensor needs an explicit Dequantize in
// front of it.
var quantizationAware = map[ir.OpKind]bool{
	ir.OpConv2D:          true,
	ir.OpDepthwiseConv2D: true,
	ir.OpFullyConnected:  true,
	ir.OpMatMul:          true,
	ir.OpAdd:             true,
	ir.OpMul:             true,
	ir.OpRelu:            true,
	ir.OpRelu6:           true,
	ir.OpReshape:         true,
	ir.OpTranspose:       true,
	ir.OpConcat:          true,
	ir.OpQuantize:        true,
	ir.OpDequantize:      true,
}

// perChannelWeights are the kinds whose weights quantize per output channel
// (leading filter axis).
var perChannelWeights = map[ir.OpKind]bool{
	ir.OpConv2D:          true,
	ir.OpDepthwiseConv2D: true,
	ir.OpFullyConnected:  true,
}

// Run executes a scheme: parameter computation first, then the rewrite, then
// a full validation so a broken rewrite can never escape this stage.
func Run(g *ir.Graph, scheme Scheme) error {
	log := logrus.WithField("component", "quantizer").WithField("scheme", scheme.Name())

	if err := scheme.ComputeParameters(g); err != nil {
		return fmt.Errorf("quantizer %s: %w", scheme.Name(), err)
	}
	if err := scheme.RewriteGraph(g); err != nil {
		return fmt.Errorf("quantizer %s: %w", scheme.Name(), err)
	}
	if err := g.Validate(); err != nil {
		return fmt.Errorf("quantizer %s: graph invalid after rewrite: %w", scheme.Name(), err)
	}

	log.Debug("quantization complete")
	return nil
}
