package quant

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/tinygraph-ml/tinygraph/internal/ir"
)

// WeightOnly quantizes constant weight tensors to int8 from their static
// value range and leaves activations in full precision. Operators without a
// quantized variant are skipped with a warning, never failed.
type WeightOnly struct {
	log     *logrus.Entry
	pending map[int]*ir.QuantParams // tensor index -> computed params
}

// NewWeightOnly creates the weight-only scheme.
func NewWeightOnly() *WeightOnly {
	return &WeightOnly{
		log: logrus.WithField("component", "quantizer"),
	}
}

// Name implements Scheme.
func (s *WeightOnly) Name() string {
	return "weight-only"
}

// ComputeParameters implements Scheme: derive symmetric int8 parameters for
// every eligible weight tensor.
func (s *WeightOnly) ComputeParameters(g *ir.Graph) error {
	s.pending = map[int]*ir.QuantParams{}

	for _, n := range g.Nodes() {
		if !weightConsumers[n.Kind] {
			if _, unsupported := findWeightTensor(g, n); unsupported != nil {
				s.log.WithField("node", n.Index).Warnf("skipping: %v", unsupported)
			}
			continue
		}
		weight, _ := findWeightTensor(g, n)
		if weight == nil || s.pending[weight.Index] != nil {
			continue
		}

		values, err := weight.Float32Values()
		if err != nil {
			return fmt.Errorf("weight tensor %d: %w", weight.Index, err)
		}
		s.pending[weight.Index] = weightParams(values, weight.Shape, perChannelWeights[n.Kind])
	}

	return nil
}

// RewriteGraph implements Scheme: convert the stored weight buffers to int8,
// attach the parameters, and place a Dequantize in front of any consumer
// that cannot read quantized data directly.
func (s *WeightOnly) RewriteGraph(g *ir.Graph) error {
	for index, params := range s.pending {
		weight, err := g.Tensor(index)
		if err != nil {
			return err
		}
		values, err := weight.Float32Values()
		if err != nil {
			return err
		}
		data, err := quantizeBuffer(values, weight.Shape, params)
		if err != nil {
			return fmt.Errorf("weight tensor %d: %w", index, err)
		}

		weight.Data = data
		weight.DType = ir.Int8
		weight.Quant = params

		if err := insertDequantizeForUnaware(g, weight); err != nil {
			return err
		}
	}
	return nil
}

// findWeightTensor returns the constant full-precision weight operand of a
// node, or an UnsupportedOperatorError when the node carries such an operand
// but has no quantized variant.
func findWeightTensor(g *ir.Graph, n *ir.Node) (*ir.Tensor, error) {
	if len(n.Inputs) < 2 {
		return nil, nil
	}
	t, err := g.Tensor(n.Inputs[1])
	if err != nil || !t.IsConstant() || !t.DType.IsFloat() || g.IsInput(t.Index) {
		return nil, nil
	}
	if !weightConsumers[n.Kind] {
		return nil, &UnsupportedOperatorError{Node: n.Index, Kind: n.Kind}
	}
	return t, nil
}

// insertDequantizeForUnaware rewires every quantization-unaware consumer of
// a quantized tensor through a fresh Dequantize node, so no reduced-precision
// value silently crosses into a full-precision operator.
func insertDequantizeForUnaware(g *ir.Graph, quantized *ir.Tensor) error {
	var unaware []*ir.Node
	for _, c := range g.Consumers(quantized.Index) {
		if !quantizationAware[c.Kind] {
			unaware = append(unaware, c)
		}
	}
	if len(unaware) == 0 {
		return nil
	}

	restored, err := g.AddTensor(&ir.Tensor{
		Name:  quantized.Name + ".dequant",
		Shape: quantized.Shape.Clone(),
		DType: ir.Float32,
	})
	if err != nil {
		return err
	}

	// Rewire first: AddNode re-sorts with the new edges in place.
	for _, c := range unaware {
		for i, in := range c.Inputs {
			if in == quantized.Index {
				c.Inputs[i] = restored.Index
			}
		}
	}

	_, err = g.AddNode(&ir.Node{
		Kind:    ir.OpDequantize,
		Name:    quantized.Name + ".dequant",
		Attrs:   &ir.QuantizeAttrs{To: ir.Float32},
		Inputs:  []int{quantized.Index},
		Outputs: []int{restored.Index},
	})
	return err
}
