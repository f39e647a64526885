package canon

import (
	"testing"

	"github.com/sebdah/goldie/v2"
)

func assertGolden(t *testing.T, name string, v any) {
	t.Helper()
	data, err := Marshal(v)
	if err != nil {
		t.Fatalf("Marshal() failed: %v", err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, append(data, '\n'))
}

func TestGoldenMixedContext(t *testing.T) {
	assertGolden(t, "mixed_context", map[string]any{
		"z":          []any{1, 2.5, "<b>&"},
		"a":          map[string]any{"nested": true, "n": nil},
		"e":          1e21,
		"cafe\u0301": "x\ny",
		"control":    "\u0001\u001f",
		"small":      1e-7,
	})
}

func TestGoldenInferenceTaskPayload(t *testing.T) {
	assertGolden(t, "inference_task_payload", map[string]any{
		"prompt":  "Verify: 2+2=4",
		"context": map[string]any{"task": "math-check"},
		"mode":    "fast",
	})
}
