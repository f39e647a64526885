package harness

import "github.com/roach88/axiom/internal/canon"

// StepTrace is the observable outcome of one step.
type StepTrace struct {
	Seq          int64    `json:"seq"`
	Mode         string   `json:"mode"`
	StateDigest  string   `json:"state_digest"`
	Verification string   `json:"verification"`
	Tasks        []string `json:"tasks"`
	RunID        string   `json:"run_id"`
	PayloadHash  string   `json:"payload_hash"`
	Signature    string   `json:"signature"`
}

// CanonicalValue implements canon.Valuer. Only the fields derived from
// the engine and the mode are included: run ids, payload hashes and
// signatures depend on the audit key and are checked by assertions.
func (s StepTrace) CanonicalValue() (canon.Value, error) {
	tasks := make(canon.Array, len(s.Tasks))
	for i, t := range s.Tasks {
		tasks[i] = canon.String(t)
	}
	return canon.Object{
		"seq":          canon.Int(s.Seq),
		"mode":         canon.String(s.Mode),
		"state_digest": canon.String(s.StateDigest),
		"verification": canon.String(s.Verification),
		"tasks":        tasks,
	}, nil
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace holds one entry per executed step, in order.
	Trace []StepTrace `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []StepTrace{},
		Errors: []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
