package pipeline

import (
	"context"
	"fmt"

	"github.com/roach88/axiom/internal/canon"
	"github.com/roach88/axiom/internal/store"
)

// StateSource exposes the engine state to snapshot after a run.
// *inference.Engine implements it.
type StateSource interface {
	Snapshot() []float64
}

// StoreRecorder writes runs to a store.Store and, when State is set, saves
// the engine state under the run's seq so the next process can resume it.
//
// The snapshot is taken when RecordRun is called. Callers sharing one engine
// across concurrent runs get a snapshot that may include later updates.
type StoreRecorder struct {
	Store *store.Store
	State StateSource
}

// RecordRun implements Recorder.
func (r *StoreRecorder) RecordRun(ctx context.Context, res Result) error {
	run, err := ToStoreRun(res)
	if err != nil {
		return err
	}
	if err := r.Store.WriteRun(ctx, run); err != nil {
		return err
	}
	if r.State == nil {
		return nil
	}
	vec := r.State.Snapshot()
	return r.Store.SaveSnapshot(ctx, store.Snapshot{
		Seq:        res.Seq,
		HiddenSize: len(vec),
		Vector:     vec,
	})
}

// ToStoreRun converts a result into its stored row. The stored result JSON
// has recorded set, since it only exists once the write succeeds.
func ToStoreRun(res Result) (store.Run, error) {
	contextJSON, err := canon.Marshal(res.Context)
	if err != nil {
		return store.Run{}, fmt.Errorf("encode context: %w", err)
	}
	stored := res
	stored.Recorded = true
	resultJSON, err := canon.Marshal(stored)
	if err != nil {
		return store.Run{}, fmt.Errorf("encode result: %w", err)
	}

	tasks := make([]store.Task, len(res.Tasks))
	for i, t := range res.Tasks {
		tasks[i] = store.Task{Position: i, Name: t.Name, PayloadHash: t.PayloadHash}
	}

	status := ""
	if res.Verification != nil {
		status = string(res.Verification.Status())
	}

	return store.Run{
		ID:                 res.RunID,
		Seq:                res.Seq,
		Mode:               string(res.Mode),
		Prompt:             res.Prompt,
		Context:            string(contextJSON),
		HiddenSize:         res.InferenceOutput.Engine.HiddenSize,
		StateDigest:        res.InferenceOutput.Summary.StateDigest,
		VerificationStatus: status,
		PayloadHash:        res.C0Signature.Hash,
		Signature:          res.C0Signature.Signature,
		Result:             string(resultJSON),
		Tasks:              tasks,
	}, nil
}
