package ir

// OpKind identifies an operator. The set is closed: passes and the quantizer
// switch over kinds, and the debug encoding maps them to names.
type OpKind int

// Operator kinds.
const (
	OpInvalid OpKind = iota
	OpConv2D
	OpDepthwiseConv2D
	OpFullyConnected
	OpMatMul
	OpBiasAdd
	OpAdd
	OpSub
	OpMul
	OpRelu
	OpRelu6
	OpSigmoid
	OpTanh
	OpRange
	OpCast
	OpReshape
	OpTranspose
	OpConcat
	OpShape
	OpQuantize
	OpDequantize
)

var opKindNames = map[OpKind]string{
	OpConv2D:          "Conv2D",
	OpDepthwiseConv2D: "DepthwiseConv2D",
	OpFullyConnected:  "FullyConnected",
	OpMatMul:          "MatMul",
	OpBiasAdd:         "BiasAdd",
	OpAdd:             "Add",
	OpSub:             "Sub",
	OpMul:             "Mul",
	OpRelu:            "Relu",
	OpRelu6:           "Relu6",
	OpSigmoid:         "Sigmoid",
	OpTanh:            "Tanh",
	OpRange:           "Range",
	OpCast:            "Cast",
	OpReshape:         "Reshape",
	OpTranspose:       "Transpose",
	OpConcat:          "Concat",
	OpShape:           "Shape",
	OpQuantize:        "Quantize",
	OpDequantize:      "Dequantize",
}

// String returns the operator name.
func (k OpKind) String() string {
	if name, ok := opKindNames[k]; ok {
		return name
	}
	return "Invalid"
}

// ParseOpKind resolves a textual operator name.
func ParseOpKind(name string) (OpKind, bool) {
	for k, n := range opKindNames {
		if n == name {
			return k, true
		}
	}
	return OpInvalid, false
}

// ActivationKind identifies an activation function, either as a standalone
// node kind or fused into a preceding compute node.
type ActivationKind int

// Activation kinds.
const (
	ActNone ActivationKind = iota
	ActRelu
	ActRelu6
	ActSigmoid
	ActTanh
)

// String returns the activation name.
func (a ActivationKind) String() string {
	switch a {
	case ActNone:
		return "none"
	case ActRelu:
		return "relu"
	case ActRelu6:
		return "relu6"
	case ActSigmoid:
		return "sigmoid"
	case ActTanh:
		return "tanh"
	default:
		return "unknown"
	}
}

// ParseActivationKind resolves a textual activation name.
func ParseActivationKind(name string) (ActivationKind, bool) {
	switch name {
	case "", "none":
		return ActNone, true
	case "relu":
		return ActRelu, true
	case "relu6":
		return ActRelu6, true
	case "sigmoid":
		return ActSigmoid, true
	case "tanh":
		return ActTanh, true
	default:
		return ActNone, false
	}
}

// ActivationOf maps standalone activation node kinds to ActivationKind.
// Returns ActNone, false for non-activation kinds.
func ActivationOf(k OpKind) (ActivationKind, bool) {
	switch k {
	case OpRelu:
		return ActRelu, true
	case OpRelu6:
		return ActRelu6, true
	case OpSigmoid:
		return ActSigmoid, true
	case OpTanh:
		return ActTanh, true
	default:
		return ActNone, false
	}
}

// Node is one operator in the graph: a kind, a kind-specific attribute
// record, and ordered input/output tensor indices.
type Node struct {
	Index   int // Identity, unique within a graph. Assigned by Graph.AddNode.
	Kind    OpKind
	Name    string // Optional diagnostic name from the loader.
	Attrs   any    // Kind-specific attribute record (e.g. *Conv2DAttrs), or nil.
	Inputs  []int
	Outputs []int
}

// Clone returns a copy of the node with its own index slices.
// The attribute record is shared; passes replace it rather than mutate it.
func (n *Node) Clone() *Node {
	c := *n
	c.Inputs = append([]int(nil), n.Inputs...)
	c.Outputs = append([]int(nil), n.Outputs...)
	return &c
}
