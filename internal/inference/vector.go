package inference

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// Smoothing weights for the state update.
const (
	stateWeight   = 0.7
	promptWeight  = 0.2
	contextWeight = 0.1
)

// digestVector tiles SHA-256(data) until it covers n elements.
// Each element is a byte value in [0, 255].
func digestVector(data []byte, n int) []float64 {
	sum := sha256.Sum256(data)
	vec := make([]float64, n)
	for i := range vec {
		vec[i] = float64(sum[i%len(sum)])
	}
	return vec
}

// blend applies state[i] = state[i]*0.7 + p[i]*0.2 + c[i]*0.1 in place.
// The explicit float64 conversions keep the compiler from fusing the
// multiply-adds, which would change the low bits on some architectures.
func blend(state, p, c []float64) {
	for i := range state {
		s := float64(state[i] * stateWeight)
		pp := float64(p[i] * promptWeight)
		cc := float64(c[i] * contextWeight)
		state[i] = float64(s+pp) + cc
	}
}

// stateDigest hashes the comma-joined 6-decimal rendering of state.
func stateDigest(state []float64) string {
	var buf bytes.Buffer
	buf.Grow(len(state) * 12)
	for i, x := range state {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.FormatFloat(x, 'f', 6, 64))
	}
	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:])
}
