package pipeline

import (
	"fmt"
	"slices"

	"github.com/roach88/axiom/internal/canon"
	"github.com/roach88/axiom/internal/inference"
	"github.com/roach88/axiom/internal/store"
)

// ReplayReport summarizes a determinism audit over recorded runs.
type ReplayReport struct {
	Runs       int        `json:"runs"`
	Matched    int        `json:"matched"`
	Mismatches []Mismatch `json:"mismatches"`
}

// Deterministic reports whether every replayed run reproduced its digest.
func (r ReplayReport) Deterministic() bool {
	return len(r.Mismatches) == 0
}

// Mismatch is a run whose replayed state digest differs from the recorded one.
type Mismatch struct {
	RunID    string `json:"run_id"`
	Seq      int64  `json:"seq"`
	Recorded string `json:"recorded"`
	Replayed string `json:"replayed"`
	Err      string `json:"error,omitempty"`
}

// Replay re-runs recorded inference inputs in seq order on a fresh engine
// and compares each state digest with the recorded one.
//
// Runs chain the engine state the way the recording process did: a single
// engine carries state from one run to the next, and a change of hidden
// size starts over from a zero state.
func Replay(runs []store.Run) ReplayReport {
	ordered := slices.Clone(runs)
	slices.SortFunc(ordered, func(a, b store.Run) int {
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		}
		return 0
	})

	report := ReplayReport{Runs: len(ordered), Mismatches: []Mismatch{}}
	var engine *inference.Engine

	for _, run := range ordered {
		if engine == nil || engine.HiddenSize() != run.HiddenSize {
			e, err := inference.New(run.HiddenSize)
			if err != nil {
				report.Mismatches = append(report.Mismatches, mismatch(run, "", err))
				engine = nil
				continue
			}
			engine = e
		}

		promptContext, err := canon.DecodeObject([]byte(run.Context))
		if err != nil {
			report.Mismatches = append(report.Mismatches, mismatch(run, "", err))
			continue
		}

		out, err := engine.Generate(run.Prompt, promptContext)
		if err != nil {
			report.Mismatches = append(report.Mismatches, mismatch(run, "", err))
			continue
		}

		if out.Summary.StateDigest != run.StateDigest {
			report.Mismatches = append(report.Mismatches, mismatch(run, out.Summary.StateDigest, nil))
			continue
		}
		report.Matched++
	}
	return report
}

func mismatch(run store.Run, replayed string, err error) Mismatch {
	m := Mismatch{
		RunID:    run.ID,
		Seq:      run.Seq,
		Recorded: run.StateDigest,
		Replayed: replayed,
	}
	if err != nil {
		m.Err = fmt.Sprintf("replay seq %d: %v", run.Seq, err)
	}
	return m
}
