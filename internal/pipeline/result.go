package pipeline

import (
	"github.com/roach88/axiom/internal/audit"
	"github.com/roach88/axiom/internal/canon"
	"github.com/roach88/axiom/internal/inference"
	"github.com/roach88/axiom/internal/verify"
)

// Result is the outcome of one Execute call. Tasks always holds two entries
// (fast) or three (verified, hybrid).
type Result struct {
	RunID           string
	Seq             int64
	Mode            Mode
	Prompt          string
	Context         map[string]any
	Tasks           []Task
	InferenceOutput inference.Result
	Verification    verify.Verification
	C0Signature     audit.Record
	AuditPersisted  bool
	Recorded        bool
}

// TaskNames returns the task names in order.
func (r Result) TaskNames() []string {
	names := make([]string, len(r.Tasks))
	for i, t := range r.Tasks {
		names[i] = t.Name
	}
	return names
}

// CanonicalValue implements canon.Valuer. Prompt and Context are carried
// inside inference_output and the signed payload, so they are not repeated.
func (r Result) CanonicalValue() (canon.Value, error) {
	tasks := make([]any, len(r.Tasks))
	for i, t := range r.Tasks {
		tasks[i] = t
	}
	return canon.Normalize(map[string]any{
		"run_id":           r.RunID,
		"seq":              r.Seq,
		"mode":             string(r.Mode),
		"tasks":            tasks,
		"inference_output": r.InferenceOutput,
		"verification":     r.Verification,
		"c0_signature":     r.C0Signature,
		"audit_persisted":  r.AuditPersisted,
		"recorded":         r.Recorded,
	})
}

// MarshalJSON encodes the result as canonical JSON.
func (r Result) MarshalJSON() ([]byte, error) {
	return canon.Marshal(r)
}

// signedPayload is the payload given to the audit logger.
func signedPayload(mode Mode, prompt string, context map[string]any, out inference.Result, v verify.Verification) map[string]any {
	return map[string]any{
		"mode":             string(mode),
		"prompt":           prompt,
		"context":          context,
		"inference_output": out,
		"verification":     v,
	}
}

// inferencePayload is the payload fingerprinted by the inference task.
func inferencePayload(mode Mode, prompt string, context map[string]any) map[string]any {
	return map[string]any{
		"prompt":  prompt,
		"context": context,
		"mode":    string(mode),
	}
}
