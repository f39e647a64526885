package store

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// createTestStore opens a fresh database under t.TempDir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun builds a fast-mode run with two tasks.
func createTestRun(id string, seq int64) Run {
	return Run{
		ID:                 id,
		Seq:                seq,
		Mode:               "fast",
		Prompt:             "Verify: 2+2=4",
		Context:            `{"task":"math-check"}`,
		HiddenSize:         128,
		StateDigest:        fmt.Sprintf("digest-%d", seq),
		VerificationStatus: "SKIPPED",
		PayloadHash:        fmt.Sprintf("hash-%d", seq),
		Signature:          fmt.Sprintf("sig-%d", seq),
		Result:             `{"mode":"fast"}`,
		Tasks: []Task{
			{Position: 0, Name: "inference", PayloadHash: "t0"},
			{Position: 1, Name: "c0_signature", PayloadHash: "t1"},
		},
	}
}
