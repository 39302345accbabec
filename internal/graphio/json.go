// Package graphio implements the debug JSON encoding of the graph IR used by
// the CLI and by test fixtures. The production model format has its own
// reader and writer outside this module; this encoding exists for tooling and
// inspection only.
package graphio

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"github.com/tinygraph-ml/tinygraph/internal/ir"
)

type fileQuant struct {
	Scales     []float64 `json:"scales"`
	ZeroPoints []int64   `json:"zero_points"`
	Axis       int       `json:"axis,omitempty"`
}

type fileTensor struct {
	Name  string     `json:"name,omitempty"`
	Shape []int      `json:"shape"`
	DType string     `json:"dtype"`
	Data  string     `json:"data,omitempty"` // base64, constants only
	Quant *fileQuant `json:"quant,omitempty"`
}

type fileNode struct {
	Kind    string         `json:"kind"`
	Name    string         `json:"name,omitempty"`
	Attrs   map[string]any `json:"attrs,omitempty"`
	Inputs  []int          `json:"inputs"`
	Outputs []int          `json:"outputs"`
}

type fileGraph struct {
	Tensors []fileTensor `json:"tensors"`
	Nodes   []fileNode   `json:"nodes"`
	Inputs  []int        `json:"inputs"`
	Outputs []int        `json:"outputs"`
}

// Read decodes a graph from the debug JSON encoding and validates it.
func Read(r io.Reader) (*ir.Graph, error) {
	var fg fileGraph
	if err := json.NewDecoder(r).Decode(&fg); err != nil {
		return nil, fmt.Errorf("decode graph: %w", err)
	}

	g := ir.NewGraph()

	for i, ft := range fg.Tensors {
		dtype, ok := ir.ParseDataType(ft.DType)
		if !ok {
			return nil, fmt.Errorf("tensor %d: unknown dtype %q", i, ft.DType)
		}
		t := &ir.Tensor{
			Name:  ft.Name,
			Shape: ir.Shape(ft.Shape),
			DType: dtype,
		}
		if ft.Data != "" {
			data, err := base64.StdEncoding.DecodeString(ft.Data)
			if err != nil {
				return nil, fmt.Errorf("tensor %d: decode data: %w", i, err)
			}
			t.Data = data
		}
		if ft.Quant != nil {
			t.Quant = &ir.QuantParams{
				Scales:     ft.Quant.Scales,
				ZeroPoints: ft.Quant.ZeroPoints,
				Axis:       ft.Quant.Axis,
			}
		}
		if _, err := g.AddTensor(t); err != nil {
			return nil, err
		}
	}

	if err := g.SetInputs(fg.Inputs...); err != nil {
		return nil, err
	}
	if err := g.SetOutputs(fg.Outputs...); err != nil {
		return nil, err
	}

	for i, fn := range fg.Nodes {
		kind, ok := ir.ParseOpKind(fn.Kind)
		if !ok {
			return nil, fmt.Errorf("node %d: unknown operator %q", i, fn.Kind)
		}
		attrs, err := decodeAttrs(kind, fn.Attrs)
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", i, err)
		}
		if _, err := g.AddNode(&ir.Node{
			Kind:    kind,
			Name:    fn.Name,
			Attrs:   attrs,
			Inputs:  fn.Inputs,
			Outputs: fn.Outputs,
		}); err != nil {
			return nil, fmt.Errorf("node %d (%s): %w", i, fn.Kind, err)
		}
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// Write encodes a graph into the debug JSON encoding.
func Write(w io.Writer, g *ir.Graph) error {
	fg := fileGraph{
		Inputs:  g.Inputs(),
		Outputs: g.Outputs(),
	}

	for _, t := range g.Tensors() {
		ft := fileTensor{
			Name:  t.Name,
			Shape: t.Shape,
			DType: t.DType.String(),
		}
		if t.Data != nil {
			ft.Data = base64.StdEncoding.EncodeToString(t.Data)
		}
		if t.Quant != nil {
			ft.Quant = &fileQuant{
				Scales:     t.Quant.Scales,
				ZeroPoints: t.Quant.ZeroPoints,
				Axis:       t.Quant.Axis,
			}
		}
		fg.Tensors = append(fg.Tensors, ft)
	}

	for _, n := range g.Nodes() {
		fg.Nodes = append(fg.Nodes, fileNode{
			Kind:    n.Kind.String(),
			Name:    n.Name,
			Attrs:   encodeAttrs(n.Attrs),
			Inputs:  n.Inputs,
			Outputs: n.Outputs,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(&fg)
}

// decodeAttrs builds the typed attribute record, including the fused
// activation name that the generic decoder does not map.
func decodeAttrs(kind ir.OpKind, raw map[string]any) (any, error) {
	attrs, err := ir.DecodeAttrs(kind, raw)
	if err != nil {
		return nil, err
	}

	if name, ok := raw["activation"].(string); ok {
		act, ok := ir.ParseActivationKind(name)
		if !ok {
			return nil, fmt.Errorf("unknown activation %q", name)
		}
		switch a := attrs.(type) {
		case *ir.Conv2DAttrs:
			a.Activation = act
		case *ir.FullyConnectedAttrs:
			a.Activation = act
		}
	}
	return attrs, nil
}

func encodeAttrs(attrs any) map[string]any {
	switch a := attrs.(type) {
	case *ir.Conv2DAttrs:
		m := map[string]any{
			"stride_h": a.StrideH,
			"stride_w": a.StrideW,
			"padding":  a.Padding,
		}
		if a.Activation != ir.ActNone {
			m["activation"] = a.Activation.String()
		}
		return m
	case *ir.FullyConnectedAttrs:
		if a.Activation == ir.ActNone {
			return nil
		}
		return map[string]any{"activation": a.Activation.String()}
	case *ir.RangeAttrs:
		return map[string]any{
			"start": a.Start,
			"limit": a.Limit,
			"delta": a.Delta,
			"dtype": a.DType.String(),
		}
	case *ir.CastAttrs:
		return map[string]any{"to": a.To.String()}
	case *ir.TransposeAttrs:
		return map[string]any{"perm": a.Perm}
	case *ir.ConcatAttrs:
		return map[string]any{"axis": a.Axis}
	case *ir.QuantizeAttrs:
		return map[string]any{"to": a.To.String()}
	default:
		return nil
	}
}
