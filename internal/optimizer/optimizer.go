// Package optimizer applies an ordered list of rewrite passes to a graph.
package optimizer

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/tinygraph-ml/tinygraph/internal/ir"
	"github.com/tinygraph-ml/tinygraph/internal/kernel"
	"github.com/tinygraph-ml/tinygraph/internal/pass"
)

// Config selects which passes run and how failures are treated.
type Config struct {
	// FuseOps enables the pattern-fusion passes.
	FuseOps bool
	// FoldConstants enables ahead-of-time evaluation of constant subgraphs.
	FoldConstants bool
	// TargetBackend restricts which fusions are legal. Known values are
	// "generic" (default) and "edge"; unknown values behave like "generic".
	TargetBackend string
	// BestEffort logs pass failures and continues instead of aborting. The
	// default is fail-fast: a converted model that silently lost an
	// optimization invariant is worse than no model.
	BestEffort bool
	// Kernels is the constant-evaluation registry. When nil, a registry with
	// the built-in evaluators is used.
	Kernels *kernel.Registry
}

// fusibleActivations lists, per target backend, the activations a compute
// node may absorb.
var fusibleActivations = map[string]map[ir.ActivationKind]bool{
	"generic": {
		ir.ActRelu:  true,
		ir.ActRelu6: true,
	},
	// Edge accelerators fuse the saturating activations too.
	"edge": {
		ir.ActRelu:    true,
		ir.ActRelu6:   true,
		ir.ActTanh:    true,
		ir.ActSigmoid: true,
	},
}

// Optimizer holds the ordered pass list. The order is part of the contract:
// layout normalization first so fusion sees a canonical topology, folding
// before fusion so patterns see resolved constants, dead code elimination
// last to sweep what the rewrites orphaned.
type Optimizer struct {
	passes     []pass.Pass
	bestEffort bool
	log        *logrus.Entry
}

// New builds an optimizer from the configuration.
func New(cfg Config) *Optimizer {
	kernels := cfg.Kernels
	if kernels == nil {
		kernels = kernel.NewRegistry()
	}

	fusible := fusibleActivations[cfg.TargetBackend]
	if fusible == nil {
		fusible = fusibleActivations["generic"]
	}

	var passes []pass.Pass
	passes = append(passes, &pass.NormalizeLayout{})
	if cfg.FoldConstants {
		passes = append(passes, &pass.FoldConstants{Kernels: kernels})
	}
	if cfg.FuseOps {
		passes = append(passes, &pass.FuseConvBiasActivation{Fusible: fusible})
	}
	passes = append(passes, &pass.EliminateDeadNodes{})

	return &Optimizer{
		passes:     passes,
		bestEffort: cfg.BestEffort,
		log:        logrus.WithField("component", "optimizer"),
	}
}

// Passes returns the names of the configured passes in application order.
func (o *Optimizer) Passes() []string {
	names := make([]string, len(o.passes))
	for i, p := range o.passes {
		names[i] = p.Name()
	}
	return names
}

// Run applies the pass list once, in order. A failing pass aborts the run and
// surfaces its error unless best-effort mode was requested explicitly. The
// graph is re-validated after the run so no structurally broken result ever
// reaches the caller.
func (o *Optimizer) Run(g *ir.Graph) error {
	for _, p := range o.passes {
		result, err := p.Apply(g)
		if err != nil {
			// Best effort still relies on each pass committing all-or-nothing:
			// a failed pass left the graph as it was, so skipping it is safe.
			// The final validation below gates the result either way.
			if o.bestEffort {
				o.log.WithField("pass", p.Name()).WithError(err).Warn("pass failed, continuing (best effort)")
				continue
			}
			return fmt.Errorf("pass %s: %w", p.Name(), err)
		}
		o.log.WithFields(logrus.Fields{
			"pass":   p.Name(),
			"result": result.String(),
			"nodes":  g.NumNodes(),
		}).Debug("pass applied")
	}

	if err := g.Validate(); err != nil {
		return fmt.Errorf("graph invalid after optimization: %w", err)
	}
	return nil
}
