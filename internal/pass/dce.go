package pass

import "github.com/tinygraph-ml/tinygraph/internal/ir"

// EliminateDeadNodes removes nodes with no path to any designated graph
// output. It runs last in the pipeline and sweeps the orphans earlier
// rewrites leave behind. A reverse sweep over the execution order removes
// whole dead chains in one application.
type EliminateDeadNodes struct{}

// Name implements Pass.
func (p *EliminateDeadNodes) Name() string {
	return "eliminate-dead-nodes"
}

// Apply implements Pass.
func (p *EliminateDeadNodes) Apply(g *ir.Graph) (Result, error) {
	result := Unchanged

	order := g.TopologicalOrder()
	for i := len(order) - 1; i >= 0; i-- {
		node, err := g.Node(order[i])
		if err != nil {
			return result, err
		}
		if !p.dead(g, node) {
			continue
		}
		if err := g.RemoveNode(node.Index, nil); err != nil {
			return result, err
		}
		result = Changed
	}

	return result, nil
}

// dead reports whether none of the node's outputs is consumed or designated
// as a graph output.
func (p *EliminateDeadNodes) dead(g *ir.Graph, n *ir.Node) bool {
	for _, out := range n.Outputs {
		if g.IsOutput(out) || len(g.Consumers(out)) > 0 {
			return false
		}
	}
	return true
}
