// Package harness runs pipeline scenarios as executable conformance tests.
//
// A scenario is a YAML file listing pipeline executions and the assertions
// that must hold afterwards:
//
//	name: fast_then_verified
//	description: "A fast run followed by a verified run"
//	hidden_size: 16
//	steps:
//	  - mode: fast
//	    prompt: "Verify: 2+2=4"
//	    context: { task: math-check }
//	    expect:
//	      verification: SKIPPED
//	      tasks: [inference, c0_signature]
//	  - mode: verified
//	    prompt: "Verify: 2+2=4"
//	    verdict: PASS
//	assertions:
//	  - type: run_count
//	    count: 2
//	  - type: replay_deterministic
//
// # Determinism
//
// Every scenario runs against a fresh in-memory store, a fresh engine, a
// fixed audit key and testutil.DeterministicClock, so the trace of a
// scenario is identical on every run and can be compared with a golden
// file (see RunWithGolden).
//
// The model checker is replaced by a canned verifier: each step's verdict
// (PASS, FAIL, TIMEOUT or SKIPPED) is taken from the step or the scenario
// default. Use Options.Verifier to run a real checker instead.
//
// # Assertion Types
//
//   - run_count: number of recorded runs, optionally with a given status
//   - task_order: task names of the run at a given seq
//   - final_state: stored column values of the run at a given seq
//   - audit_records: number of audit records, all with valid signatures and
//     every record logged during the run present on disk
//   - replay_deterministic: every stored run replays to its digest
package harness
