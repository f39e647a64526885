// Package inference implements the deterministic state-vector engine.
//
// The engine keeps a fixed-length hidden state and folds every
// (prompt, context) pair into it with a one-step exponential smoothing
// filter. The resulting state digest is a reproducible fingerprint of the
// whole call history: replaying the same calls in the same order on a fresh
// engine yields the same digests.
package inference
