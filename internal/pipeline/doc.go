// Package pipeline runs prompts through inference, optional verification
// and signed audit logging, and reports an ordered task list.
//
// # Stages
//
//	START -> INFERRED -> VERIFIED | VERIFICATION_SKIPPED -> LOGGED -> DONE
//
// Inference and signing errors abort the run and are returned. Verification
// never fails a run: every verifier outcome is a status. Audit persistence
// and run recording are best-effort and reported as booleans on Result.
//
// # Identity
//
// Each successful run takes the next seq from a logical clock and a run id
// derived from the signed payload hash and that seq. Wall-clock time is not
// part of any identifier.
package pipeline
