// Package transform drives the conversion pipeline: it owns the graph for
// the duration of a run, applies the optimizer and, when requested, a
// quantization scheme, and hands the final graph back to the caller. Loading
// and serialization stay outside.
package transform

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/tinygraph-ml/tinygraph/internal/ir"
	"github.com/tinygraph-ml/tinygraph/internal/optimizer"
	"github.com/tinygraph-ml/tinygraph/internal/quant"
)

// Transform runs the full pipeline on a loaded graph. Any failure at either
// stage aborts the whole transform and propagates the originating error; the
// caller never receives a partially rewritten graph.
func Transform(g *ir.Graph, opts Options) (*ir.Graph, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("input graph: %w", err)
	}

	log := logrus.WithField("component", "transform")
	log.WithFields(logrus.Fields{
		"nodes":        g.NumNodes(),
		"tensors":      g.NumTensors(),
		"quantization": opts.Quantization,
		"backend":      opts.TargetBackend,
	}).Debug("starting conversion")

	opt := optimizer.New(optimizer.Config{
		FuseOps:       opts.FuseOps,
		FoldConstants: opts.FoldConstants,
		TargetBackend: opts.TargetBackend,
		BestEffort:    opts.BestEffort,
	})
	if err := opt.Run(g); err != nil {
		return nil, fmt.Errorf("optimize: %w", err)
	}

	scheme, err := selectScheme(opts)
	if err != nil {
		return nil, err
	}
	if scheme != nil {
		if err := quant.Run(g, scheme); err != nil {
			return nil, fmt.Errorf("quantize: %w", err)
		}
	}

	log.WithField("nodes", g.NumNodes()).Debug("conversion finished")
	return g, nil
}

// PassNames returns the optimizer pipeline the options would configure, in
// application order.
func PassNames(opts Options) []string {
	return optimizer.New(optimizer.Config{
		FuseOps:       opts.FuseOps,
		FoldConstants: opts.FoldConstants,
		TargetBackend: opts.TargetBackend,
		BestEffort:    opts.BestEffort,
	}).Passes()
}

// selectScheme maps the configured mode to a quantizer variant.
func selectScheme(opts Options) (quant.Scheme, error) {
	switch opts.Quantization {
	case QuantNone:
		return nil, nil
	case QuantWeightsOnly:
		return quant.NewWeightOnly(), nil
	case QuantFull:
		return quant.NewFullCalibration(opts.Calibration), nil
	default:
		return nil, &ConfigurationError{Reason: fmt.Sprintf("unknown quantization mode %q", opts.Quantization)}
	}
}
