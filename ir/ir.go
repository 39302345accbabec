// Copyright 2026 Tinygraph ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package ir exposes the graph intermediate representation: tensors,
// operator nodes and the mutable DAG the conversion pipeline rewrites.
//
// Example:
//
//	g := ir.NewGraph()
//	in, _ := g.AddTensor(&ir.Tensor{Shape: ir.Shape{1, 8}, DType: ir.Float32})
//	_ = g.SetInputs(in.Index)
package ir

import "github.com/tinygraph-ml/tinygraph/internal/ir"

// Graph is the in-memory DAG of operator nodes and tensor descriptors.
type Graph = ir.Graph

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return ir.NewGraph()
}

// Tensor describes one value flowing through the graph.
type Tensor = ir.Tensor

// Node is one operator in the graph.
type Node = ir.Node

// Shape represents the logical dimensions of a tensor.
type Shape = ir.Shape

// QuantParams holds affine quantization parameters attached to a tensor.
type QuantParams = ir.QuantParams

// DataType represents runtime type information for tensor elements.
type DataType = ir.DataType

// Supported element data types.
const (
	Float32  DataType = ir.Float32
	Float16  DataType = ir.Float16
	BFloat16 DataType = ir.BFloat16
	Int64    DataType = ir.Int64
	Int32    DataType = ir.Int32
	Int16    DataType = ir.Int16
	Int8     DataType = ir.Int8
	Uint8    DataType = ir.Uint8
	Bool     DataType = ir.Bool
)

// OpKind identifies an operator.
type OpKind = ir.OpKind

// Operator kinds.
const (
	OpConv2D          OpKind = ir.OpConv2D
	OpDepthwiseConv2D OpKind = ir.OpDepthwiseConv2D
	OpFullyConnected  OpKind = ir.OpFullyConnected
	OpMatMul          OpKind = ir.OpMatMul
	OpBiasAdd         OpKind = ir.OpBiasAdd
	OpAdd             OpKind = ir.OpAdd
	OpSub             OpKind = ir.OpSub
	OpMul             OpKind = ir.OpMul
	OpRelu            OpKind = ir.OpRelu
	OpRelu6           OpKind = ir.OpRelu6
	OpSigmoid         OpKind = ir.OpSigmoid
	OpTanh            OpKind = ir.OpTanh
	OpRange           OpKind = ir.OpRange
	OpCast            OpKind = ir.OpCast
	OpReshape         OpKind = ir.OpReshape
	OpTranspose       OpKind = ir.OpTranspose
	OpConcat          OpKind = ir.OpConcat
	OpShape           OpKind = ir.OpShape
	OpQuantize        OpKind = ir.OpQuantize
	OpDequantize      OpKind = ir.OpDequantize
)

// StructuralError reports a violated graph invariant.
type StructuralError = ir.StructuralError
