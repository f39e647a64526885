package verify

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/axiom/internal/canon"
)

// Status is the outcome class of a verification.
type Status string

const (
	StatusPass    Status = "PASS"
	StatusFail    Status = "FAIL"
	StatusSkipped Status = "SKIPPED"
	StatusTimeout Status = "TIMEOUT"
)

// Skip and timeout reasons.
const (
	ReasonSpecNotFound          = "spec_not_found"
	ReasonToolNotFound          = "tool_not_found"
	ReasonToolTimeout           = "tool_timeout"
	ReasonToolError             = "tool_error"
	ReasonContextUnserializable = "context_unserializable"
)

// Verification is one of Skipped, Pass, Fail or Timeout.
// Each variant carries only the fields that make sense for it.
type Verification interface {
	Status() Status
	// ContextHash is the canonical hash of the verified decision. Empty only
	// for a Skipped produced without a decision (fast mode).
	ContextHash() string
	canon.Valuer
	json.Marshaler

	sealed()
}

// Skipped reports that no verdict was reached.
type Skipped struct {
	Reason string
	Detail string
	Hash   string
}

// Pass reports a zero exit from the checker.
type Pass struct {
	Hash   string
	Stdout string
	Stderr string
}

// Fail reports a non-zero exit from the checker.
type Fail struct {
	Hash     string
	ExitCode int
	Stdout   string
	Stderr   string
}

// Timeout reports that the checker exceeded its budget and was killed.
type Timeout struct {
	Hash      string
	TimeoutMS int64
}

func (Skipped) Status() Status { return StatusSkipped }
func (Pass) Status() Status    { return StatusPass }
func (Fail) Status() Status    { return StatusFail }
func (Timeout) Status() Status { return StatusTimeout }

func (v Skipped) ContextHash() string { return v.Hash }
func (v Pass) ContextHash() string    { return v.Hash }
func (v Fail) ContextHash() string    { return v.Hash }
func (v Timeout) ContextHash() string { return v.Hash }

func (Skipped) sealed() {}
func (Pass) sealed()    {}
func (Fail) sealed()    {}
func (Timeout) sealed() {}

// CanonicalValue implements canon.Valuer. Empty optional fields are omitted.
func (v Skipped) CanonicalValue() (canon.Value, error) {
	obj := canon.Object{"status": canon.String(StatusSkipped)}
	if v.Reason != "" {
		obj["reason"] = canon.String(v.Reason)
	}
	if v.Detail != "" {
		obj["detail"] = canon.String(v.Detail)
	}
	if v.Hash != "" {
		obj["context_hash"] = canon.String(v.Hash)
	}
	return obj, nil
}

// CanonicalValue implements canon.Valuer.
func (v Pass) CanonicalValue() (canon.Value, error) {
	return canon.Object{
		"status":       canon.String(StatusPass),
		"context_hash": canon.String(v.Hash),
		"exit_code":    canon.Int(0),
		"stdout":       canon.String(v.Stdout),
		"stderr":       canon.String(v.Stderr),
	}, nil
}

// CanonicalValue implements canon.Valuer.
func (v Fail) CanonicalValue() (canon.Value, error) {
	return canon.Object{
		"status":       canon.String(StatusFail),
		"context_hash": canon.String(v.Hash),
		"exit_code":    canon.Int(v.ExitCode),
		"stdout":       canon.String(v.Stdout),
		"stderr":       canon.String(v.Stderr),
	}, nil
}

// CanonicalValue implements canon.Valuer.
func (v Timeout) CanonicalValue() (canon.Value, error) {
	return canon.Object{
		"status":       canon.String(StatusTimeout),
		"reason":       canon.String(ReasonToolTimeout),
		"context_hash": canon.String(v.Hash),
		"timeout_ms":   canon.Int(v.TimeoutMS),
	}, nil
}

func (v Skipped) MarshalJSON() ([]byte, error) { return canon.Marshal(v) }
func (v Pass) MarshalJSON() ([]byte, error)    { return canon.Marshal(v) }
func (v Fail) MarshalJSON() ([]byte, error)    { return canon.Marshal(v) }
func (v Timeout) MarshalJSON() ([]byte, error) { return canon.Marshal(v) }

// NotRequested is the verification recorded when a mode skips the checker.
// It encodes as exactly {"status":"SKIPPED"}.
var NotRequested Verification = Skipped{}

// wireVerification is the union of every variant's JSON fields.
type wireVerification struct {
	Status      Status `json:"status"`
	Reason      string `json:"reason"`
	Detail      string `json:"detail"`
	ContextHash string `json:"context_hash"`
	ExitCode    int    `json:"exit_code"`
	Stdout      string `json:"stdout"`
	Stderr      string `json:"stderr"`
	TimeoutMS   int64  `json:"timeout_ms"`
}

// Parse decodes the JSON form of a Verification.
func Parse(data []byte) (Verification, error) {
	var w wireVerification
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("verify: decode verification: %w", err)
	}
	switch w.Status {
	case StatusSkipped:
		return Skipped{Reason: w.Reason, Detail: w.Detail, Hash: w.ContextHash}, nil
	case StatusPass:
		return Pass{Hash: w.ContextHash, Stdout: w.Stdout, Stderr: w.Stderr}, nil
	case StatusFail:
		return Fail{Hash: w.ContextHash, ExitCode: w.ExitCode, Stdout: w.Stdout, Stderr: w.Stderr}, nil
	case StatusTimeout:
		return Timeout{Hash: w.ContextHash, TimeoutMS: w.TimeoutMS}, nil
	default:
		return nil, fmt.Errorf("verify: unknown status %q", w.Status)
	}
}
