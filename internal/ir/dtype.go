// Package ir provides the in-memory graph representation shared by all
// conversion passes: tensors, operator nodes and the mutable DAG that owns them.
package ir

// DataType represents runtime type information for tensor elements.
type DataType int

// Supported element data types.
const (
	Float32 DataType = iota
	Float16
	BFloat16
	Int64
	Int32
	Int16
	Int8
	Uint8
	Bool
)

// Size returns the byte size of one element of the data type.
func (dt DataType) Size() int {
	switch dt {
	case Float32, Int32:
		return 4
	case Int64:
		return 8
	case Float16, BFloat16, Int16:
		return 2
	case Int8, Uint8, Bool:
		return 1
	default:
		panic("unknown data type")
	}
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Float16:
		return "float16"
	case BFloat16:
		return "bfloat16"
	case Int64:
		return "int64"
	case Int32:
		return "int32"
	case Int16:
		return "int16"
	case Int8:
		return "int8"
	case Uint8:
		return "uint8"
	case Bool:
		return "bool"
	default:
		return "unknown"
	}
}

// IsFloat reports whether the data type is a floating point representation.
func (dt DataType) IsFloat() bool {
	return dt == Float32 || dt == Float16 || dt == BFloat16
}

// IsQuantizedStorage reports whether the data type is a reduced-precision
// integer representation used as a quantization target.
func (dt DataType) IsQuantizedStorage() bool {
	return dt == Int8 || dt == Uint8
}

// dataTypeNames maps the textual form used by the debug graph encoding
// back to the enum. Kept in sync with String.
var dataTypeNames = map[string]DataType{
	"float32":  Float32,
	"float16":  Float16,
	"bfloat16": BFloat16,
	"int64":    Int64,
	"int32":    Int32,
	"int16":    Int16,
	"int8":     Int8,
	"uint8":    Uint8,
	"bool":     Bool,
}

// ParseDataType resolves a textual data type name.
func ParseDataType(name string) (DataType, bool) {
	dt, ok := dataTypeNames[name]
	return dt, ok
}
