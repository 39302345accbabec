package ir

import (
	"math"
	"testing"
)

func TestFloat16RoundTrip(t *testing.T) {
	values := []float32{0, 1, -1, 0.5, 65504, -2.25}

	data, err := EncodeFloat32s(Float16, values)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	decoded, err := DecodeFloat32s(Float16, data, len(values))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	for i, v := range values {
		if decoded[i] != v {
			t.Errorf("value %d: %g -> %g", i, v, decoded[i])
		}
	}
}

func TestBFloat16Decode(t *testing.T) {
	// bfloat16 is the upper half of the float32 bit pattern; values with an
	// 8-bit mantissa survive exactly.
	values := []float32{0, 1, -2, 0.5, 256}

	data, err := EncodeFloat32s(BFloat16, values)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if len(data) != len(values)*2 {
		t.Fatalf("expected %d bytes, got %d", len(values)*2, len(data))
	}

	decoded, err := DecodeFloat32s(BFloat16, data, len(values))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	for i, v := range values {
		if decoded[i] != v {
			t.Errorf("value %d: %g -> %g", i, v, decoded[i])
		}
	}
}

func TestDecodeInt8(t *testing.T) {
	data := []byte{0x00, 0x7F, 0x80, 0xFF} // 0, 127, -128, -1
	decoded, err := DecodeFloat32s(Int8, data, 4)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	want := []float32{0, 127, -128, -1}
	for i := range want {
		if decoded[i] != want[i] {
			t.Errorf("value %d: want %g, got %g", i, want[i], decoded[i])
		}
	}
}

func TestInt32RoundTrip(t *testing.T) {
	values := []int32{0, 1, -1, math.MaxInt32, math.MinInt32}
	decoded, err := DecodeInt32s(EncodeInt32s(values), len(values))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	for i, v := range values {
		if decoded[i] != v {
			t.Errorf("value %d: want %d, got %d", i, v, decoded[i])
		}
	}
}

func TestDecodeInsufficientData(t *testing.T) {
	if _, err := DecodeFloat32s(Float32, make([]byte, 7), 2); err == nil {
		t.Error("expected insufficient data error")
	}
}
