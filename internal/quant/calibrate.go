package quant

import (
	"fmt"
	"sync"

	"github.com/tinygraph-ml/tinygraph/internal/ir"
	"github.com/tinygraph-ml/tinygraph/internal/kernel"
)

// Dataset produces calibration input batches on demand. A batch maps graph
// input tensor indices to materialized tensors. The pipeline treats the
// handle as opaque beyond this contract.
type Dataset interface {
	Batches() int
	Batch(i int) (map[int]*ir.Tensor, error)
}

// SliceDataset is an in-memory Dataset.
type SliceDataset []map[int]*ir.Tensor

// Batches implements Dataset.
func (d SliceDataset) Batches() int { return len(d) }

// Batch implements Dataset.
func (d SliceDataset) Batch(i int) (map[int]*ir.Tensor, error) { return d[i], nil }

// Range is an observed value interval for one tensor.
type Range struct {
	Min float64
	Max float64
}

// Union widens the range to cover another observation.
func (r Range) Union(o Range) Range {
	if o.Min < r.Min {
		r.Min = o.Min
	}
	if o.Max > r.Max {
		r.Max = o.Max
	}
	return r
}

// Aggregator reduces per-batch tensor ranges into the final statistics the
// parameter derivation uses. Add must be safe for concurrent use and the
// reduction must be commutative and associative, since batches are collected
// in parallel in unspecified order.
type Aggregator interface {
	Name() string
	Add(ranges map[int]Range)
	Final() map[int]Range
}

// RunningMinMax is the default aggregation policy: the widest observed range
// governs the scale, trading some precision for no clipping.
type RunningMinMax struct {
	mu     sync.Mutex
	ranges map[int]Range
}

// NewRunningMinMax creates an empty aggregator.
func NewRunningMinMax() *RunningMinMax {
	return &RunningMinMax{ranges: map[int]Range{}}
}

// Name implements Aggregator.
func (a *RunningMinMax) Name() string { return "running-min-max" }

// Add implements Aggregator.
func (a *RunningMinMax) Add(ranges map[int]Range) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for idx, r := range ranges {
		if prev, ok := a.ranges[idx]; ok {
			a.ranges[idx] = prev.Union(r)
		} else {
			a.ranges[idx] = r
		}
	}
}

// Final implements Aggregator.
func (a *RunningMinMax) Final() map[int]Range {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[int]Range, len(a.ranges))
	for idx, r := range a.ranges {
		out[idx] = r
	}
	return out
}

// observeBatch executes the unquantized graph over one batch through the
// kernel registry and records the value range of every float tensor it
// materializes. Nodes without an evaluator are skipped, along with anything
// downstream of them; those tensors simply end up without statistics and stay
// unquantized.
func observeBatch(g *ir.Graph, kernels *kernel.Registry, batch map[int]*ir.Tensor) (map[int]Range, error) {
	values := map[int]*ir.Tensor{}
	for _, t := range g.Tensors() {
		if t.IsConstant() {
			values[t.Index] = t
		}
	}
	for _, in := range g.Inputs() {
		t, ok := batch[in]
		if !ok {
			return nil, fmt.Errorf("calibration batch missing graph input %d", in)
		}
		values[in] = t
	}

	ranges := map[int]Range{}
	observe := func(index int, t *ir.Tensor) error {
		if t.DType != ir.Float32 {
			return nil
		}
		vals, err := t.Float32Values()
		if err != nil {
			return err
		}
		if len(vals) == 0 {
			return nil
		}
		r := Range{Min: float64(vals[0]), Max: float64(vals[0])}
		for _, v := range vals[1:] {
			r = r.Union(Range{Min: float64(v), Max: float64(v)})
		}
		ranges[index] = r
		return nil
	}

	for _, in := range g.Inputs() {
		if err := observe(in, values[in]); err != nil {
			return nil, err
		}
	}

	for _, n := range g.Nodes() {
		if len(n.Outputs) != 1 {
			continue
		}
		if _, ok := kernels.Lookup(n.Kind); !ok {
			continue
		}
		inputs := make([]*ir.Tensor, len(n.Inputs))
		ready := true
		for i, in := range n.Inputs {
			t, ok := values[in]
			if !ok {
				ready = false
				break
			}
			inputs[i] = t
		}
		if !ready {
			continue
		}

		out, err := kernels.Eval(n, inputs)
		if err != nil {
			return nil, fmt.Errorf("calibration run, node %d: %w", n.Index, err)
		}
		values[n.Outputs[0]] = out
		if err := observe(n.Outputs[0], out); err != nil {
			return nil, err
		}
	}

	return ranges, nil
}
