package store

import (
	"encoding/binary"
	"fmt"
	"math"
)

const float64Size = 8

// encodeVector packs v as little-endian IEEE-754 float64 values.
func encodeVector(v []float64) []byte {
	buf := make([]byte, len(v)*float64Size)
	for i, f := range v {
		binary.LittleEndian.PutUint64(buf[i*float64Size:], math.Float64bits(f))
	}
	return buf
}

// decodeVector unpacks a blob written by encodeVector. The blob must hold
// exactly n values.
func decodeVector(b []byte, n int) ([]float64, error) {
	if len(b) != n*float64Size {
		return nil, fmt.Errorf("vector blob is %d bytes, want %d for %d values", len(b), n*float64Size, n)
	}
	v := make([]float64, n)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*float64Size:]))
	}
	return v, nil
}
