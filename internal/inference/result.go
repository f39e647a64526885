package inference

import (
	"github.com/roach88/axiom/internal/canon"
)

// EngineType tags results produced by Engine.
const EngineType = "StateVectorEngine"

// PreviewLength is the number of Unicode scalars kept in PromptPreview.
const PreviewLength = 200

// Result is the output of one Generate call. It is built fresh per call and
// never modified afterwards.
type Result struct {
	Summary  Summary  `json:"summary"`
	Analysis Analysis `json:"analysis"`
	Engine   Info     `json:"engine"`
}

// Summary carries the fingerprint of the call.
type Summary struct {
	PromptLength int      `json:"prompt_length"`
	ContextKeys  []string `json:"context_keys"`
	StateDigest  string   `json:"state_digest"`
}

// Analysis echoes the inputs.
type Analysis struct {
	PromptPreview string         `json:"prompt_preview"`
	Context       map[string]any `json:"context"`
}

// Info describes the engine that produced a Result.
type Info struct {
	Type       string `json:"type"`
	HiddenSize int    `json:"hidden_size"`
}

// CanonicalValue implements canon.Valuer.
func (r Result) CanonicalValue() (canon.Value, error) {
	keys := make([]any, len(r.Summary.ContextKeys))
	for i, k := range r.Summary.ContextKeys {
		keys[i] = k
	}
	ctx := r.Analysis.Context
	if ctx == nil {
		ctx = map[string]any{}
	}
	return canon.Normalize(map[string]any{
		"summary": map[string]any{
			"prompt_length": r.Summary.PromptLength,
			"context_keys":  keys,
			"state_digest":  r.Summary.StateDigest,
		},
		"analysis": map[string]any{
			"prompt_preview": r.Analysis.PromptPreview,
			"context":        ctx,
		},
		"engine": map[string]any{
			"type":        r.Engine.Type,
			"hidden_size": r.Engine.HiddenSize,
		},
	})
}
