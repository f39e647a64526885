package harness

import (
	"context"

	"github.com/roach88/axiom/internal/canon"
	"github.com/roach88/axiom/internal/verify"
)

// cannedVerifier answers every decision with a fixed status. It hashes
// the decision the way verify.ToolVerifier does so results carry the same
// context hash a real checker run would.
type cannedVerifier struct {
	status verify.Status
}

func (v cannedVerifier) VerifyDecision(_ context.Context, decision any) verify.Verification {
	hash, err := canon.Hash(decision)
	if err != nil {
		return verify.Skipped{Reason: verify.ReasonContextUnserializable, Detail: err.Error()}
	}
	switch v.status {
	case verify.StatusPass:
		return verify.Pass{Hash: hash}
	case verify.StatusFail:
		return verify.Fail{Hash: hash, ExitCode: 1}
	case verify.StatusTimeout:
		return verify.Timeout{Hash: hash, TimeoutMS: verify.DefaultTimeout.Milliseconds()}
	default:
		return verify.Skipped{Reason: verify.ReasonToolNotFound, Hash: hash}
	}
}

// verdictSwitch routes each call to the verifier of the current step.
type verdictSwitch struct {
	current verify.DecisionVerifier
}

func (s *verdictSwitch) VerifyDecision(ctx context.Context, decision any) verify.Verification {
	return s.current.VerifyDecision(ctx, decision)
}
