// Package verify classifies decisions by running an external model checker.
//
// The checker is an optional collaborator. When its specification artifact
// or binary is missing, verification degrades to Skipped instead of
// failing. The context hash is computed locally before anything else, so
// every outcome, including Skipped, is linkable to the exact decision that
// was submitted.
package verify
