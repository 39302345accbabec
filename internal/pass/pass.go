// Package pass holds the graph rewrite rules applied by the optimizer: fusion
// patterns, constant folding, layout normalization and dead code elimination.
//
// Every pass is idempotent: applying it twice in a row, the second
// application reports Unchanged. A pass returns an error only for structural
// violations; recoverable conditions (no evaluator registered, pattern not
// matched) are expressed as Unchanged.
package pass

import "github.com/tinygraph-ml/tinygraph/internal/ir"

// Result reports whether a pass mutated the graph.
type Result int

// Pass results.
const (
	Unchanged Result = iota
	Changed
)

// String returns a human-readable result name.
func (r Result) String() string {
	if r == Changed {
		return "changed"
	}
	return "unchanged"
}

// Pass is one self-contained graph rewrite rule.
type Pass interface {
	Name() string
	Apply(g *ir.Graph) (Result, error)
}
