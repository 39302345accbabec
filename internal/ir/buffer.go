package ir

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"
)

// DecodeFloat32s decodes numElements values stored as dtype into float32.
// Used by constant folding and by weight quantization, which both operate on
// full-precision views of stored buffers.
func DecodeFloat32s(dtype DataType, data []byte, numElements int) ([]float32, error) {
	if need := numElements * dtype.Size(); len(data) < need {
		return nil, fmt.Errorf("insufficient data: need %d bytes, got %d", need, len(data))
	}

	result := make([]float32, numElements)

	switch dtype {
	case Float32:
		for i := 0; i < numElements; i++ {
			result[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
		}

	case Float16:
		for i := 0; i < numElements; i++ {
			result[i] = float16.Frombits(binary.LittleEndian.Uint16(data[i*2:])).Float32()
		}

	case BFloat16:
		copy(result, bfloat16.DecodeFloat32(data[:numElements*2]))

	case Int32:
		for i := 0; i < numElements; i++ {
			//nolint:gosec // G115: Uint32->int32 conversion is safe for signed integer data.
			result[i] = float32(int32(binary.LittleEndian.Uint32(data[i*4:])))
		}

	case Int8:
		for i := 0; i < numElements; i++ {
			result[i] = float32(int8(data[i]))
		}

	case Uint8:
		for i := 0; i < numElements; i++ {
			result[i] = float32(data[i])
		}

	default:
		return nil, fmt.Errorf("unsupported source type: %s", dtype)
	}

	return result, nil
}

// EncodeFloat32s encodes float32 values into a dtype buffer.
// Integer targets truncate toward zero; quantization rounding is handled by
// the quantizer before calling this.
func EncodeFloat32s(dtype DataType, values []float32) ([]byte, error) {
	switch dtype {
	case Float32:
		data := make([]byte, len(values)*4)
		for i, v := range values {
			binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
		}
		return data, nil

	case Float16:
		data := make([]byte, len(values)*2)
		for i, v := range values {
			binary.LittleEndian.PutUint16(data[i*2:], float16.Fromfloat32(v).Bits())
		}
		return data, nil

	case BFloat16:
		return bfloat16.EncodeFloat32(values), nil

	case Int32:
		data := make([]byte, len(values)*4)
		for i, v := range values {
			binary.LittleEndian.PutUint32(data[i*4:], uint32(int32(v)))
		}
		return data, nil

	default:
		return nil, fmt.Errorf("unsupported target type: %s", dtype)
	}
}

// DecodeInt32s decodes an int32 buffer. Shape-carrying tensors (Reshape
// targets, Shape outputs) are stored this way.
func DecodeInt32s(data []byte, numElements int) ([]int32, error) {
	if need := numElements * 4; len(data) < need {
		return nil, fmt.Errorf("insufficient data: need %d bytes, got %d", need, len(data))
	}
	result := make([]int32, numElements)
	for i := range result {
		//nolint:gosec // G115: Uint32->int32 conversion is safe for signed integer data.
		result[i] = int32(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return result, nil
}

// EncodeInt32s encodes int32 values into a little-endian buffer.
func EncodeInt32s(values []int32) []byte {
	data := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(data[i*4:], uint32(v))
	}
	return data
}
