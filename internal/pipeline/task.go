package pipeline

import "github.com/roach88/axiom/internal/canon"

// Task names, in execution order.
const (
	TaskInference    = "inference"
	TaskVerification = "verification"
	TaskC0Signature  = "c0_signature"
)

// Task is one stage's fingerprint in a run: the canonical hash of the
// payload that stage consumed or produced.
type Task struct {
	Name        string `json:"task"`
	PayloadHash string `json:"payload_hash"`
}

func newTask(name string, payload any) (Task, error) {
	h, err := canon.Hash(payload)
	if err != nil {
		return Task{}, err
	}
	return Task{Name: name, PayloadHash: h}, nil
}

// CanonicalValue implements canon.Valuer.
func (t Task) CanonicalValue() (canon.Value, error) {
	return canon.Object{
		"task":         canon.String(t.Name),
		"payload_hash": canon.String(t.PayloadHash),
	}, nil
}
