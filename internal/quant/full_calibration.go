package quant

import (
	"fmt"
	"runtime"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/tinygraph-ml/tinygraph/internal/ir"
	"github.com/tinygraph-ml/tinygraph/internal/kernel"
)

// FullCalibration quantizes weights like WeightOnly and additionally derives
// activation parameters from statistics observed while running the
// unquantized graph over a calibration dataset. Batch statistics are
// collected in parallel; the aggregation policy is pluggable and defaults to
// running min/max.
type FullCalibration struct {
	Dataset    Dataset
	Aggregator Aggregator       // Defaults to NewRunningMinMax.
	Kernels    *kernel.Registry // Defaults to the built-in registry.
	// Parallelism bounds concurrent batch runs; 0 means GOMAXPROCS.
	Parallelism int

	log       *logrus.Entry
	weights   *WeightOnly
	actParams map[int]*ir.QuantParams
}

// NewFullCalibration creates the full-calibration scheme over a dataset.
func NewFullCalibration(dataset Dataset) *FullCalibration {
	return &FullCalibration{
		Dataset: dataset,
		log:     logrus.WithField("component", "quantizer"),
		weights: NewWeightOnly(),
	}
}

// Name implements Scheme.
func (s *FullCalibration) Name() string {
	return "full-calibration"
}

// ComputeParameters implements Scheme. Fails with ErrCalibrationDataMissing
// before touching the graph when no dataset was supplied.
func (s *FullCalibration) ComputeParameters(g *ir.Graph) error {
	if s.Dataset == nil || s.Dataset.Batches() == 0 {
		return ErrCalibrationDataMissing
	}
	if s.weights == nil {
		s.weights = NewWeightOnly()
	}
	if s.log == nil {
		s.log = logrus.WithField("component", "quantizer")
	}

	if err := s.weights.ComputeParameters(g); err != nil {
		return err
	}

	agg := s.Aggregator
	if agg == nil {
		agg = NewRunningMinMax()
	}
	kernels := s.Kernels
	if kernels == nil {
		kernels = kernel.NewRegistry()
	}

	workers := s.Parallelism
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	var eg errgroup.Group
	eg.SetLimit(workers)
	for i := 0; i < s.Dataset.Batches(); i++ {
		i := i
		eg.Go(func() error {
			batch, err := s.Dataset.Batch(i)
			if err != nil {
				return fmt.Errorf("calibration batch %d: %w", i, err)
			}
			ranges, err := observeBatch(g, kernels, batch)
			if err != nil {
				return fmt.Errorf("calibration batch %d: %w", i, err)
			}
			agg.Add(ranges)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	s.actParams = map[int]*ir.QuantParams{}
	for index, r := range agg.Final() {
		t, err := g.Tensor(index)
		if err != nil {
			return err
		}
		if t.IsConstant() {
			continue // Weights have their own symmetric parameters.
		}
		scale, zp := affineParams(r.Min, r.Max)
		s.actParams[index] = &ir.QuantParams{
			Scales:     []float64{scale},
			ZeroPoints: []int64{zp},
		}
	}

	s.log.WithFields(logrus.Fields{
		"aggregator":  agg.Name(),
		"batches":     s.Dataset.Batches(),
		"activations": len(s.actParams),
	}).Debug("calibration statistics collected")
	return nil
}

// RewriteGraph implements Scheme: quantize weights, convert eligible
// activation tensors to int8, insert Quantize nodes behind the (float) graph
// inputs and Dequantize nodes in front of quantization-unaware consumers.
// Graph output tensors produced by quantized nodes stay int8 with their
// parameters attached; the serializer decides the external representation.
func (s *FullCalibration) RewriteGraph(g *ir.Graph) error {
	if err := s.weights.RewriteGraph(g); err != nil {
		return err
	}

	// Activation tensors produced by quantization-aware nodes flip to int8.
	var flipped []*ir.Tensor
	for index, params := range s.actParams {
		t, err := g.Tensor(index)
		if err != nil {
			return err
		}
		if t.DType != ir.Float32 || g.IsInput(index) {
			continue
		}
		producer := g.Producer(index)
		if producer == nil || !quantizationAware[producer.Kind] {
			if producer != nil {
				s.log.WithField("node", producer.Index).
					Warnf("skipping: %v", &UnsupportedOperatorError{Node: producer.Index, Kind: producer.Kind})
			}
			continue
		}
		t.DType = ir.Int8
		t.Quant = params
		flipped = append(flipped, t)
	}

	if err := s.quantizeGraphInputs(g); err != nil {
		return err
	}

	for _, t := range flipped {
		if err := insertDequantizeForUnaware(g, t); err != nil {
			return err
		}
	}
	return nil
}

// quantizeGraphInputs keeps the designated inputs float32 for the caller and
// inserts an explicit Quantize node feeding the aware consumers.
func (s *FullCalibration) quantizeGraphInputs(g *ir.Graph) error {
	for _, in := range g.Inputs() {
		params, ok := s.actParams[in]
		if !ok {
			continue
		}
		input, err := g.Tensor(in)
		if err != nil {
			return err
		}

		var aware []*ir.Node
		for _, c := range g.Consumers(in) {
			if quantizationAware[c.Kind] && c.Kind != ir.OpQuantize {
				aware = append(aware, c)
			}
		}
		if len(aware) == 0 {
			continue
		}

		quantized, err := g.AddTensor(&ir.Tensor{
			Name:  input.Name + ".quant",
			Shape: input.Shape.Clone(),
			DType: ir.Int8,
			Quant: params,
		})
		if err != nil {
			return err
		}

		for _, c := range aware {
			for i, idx := range c.Inputs {
				if idx == in {
					c.Inputs[i] = quantized.Index
				}
			}
		}

		if _, err := g.AddNode(&ir.Node{
			Kind:    ir.OpQuantize,
			Name:    input.Name + ".quant",
			Attrs:   &ir.QuantizeAttrs{To: ir.Int8},
			Inputs:  []int{in},
			Outputs: []int{quantized.Index},
		}); err != nil {
			return err
		}
	}
	return nil
}
