package inference

import (
	"fmt"
	"maps"
	"slices"
	"sync"
	"unicode/utf8"

	"github.com/roach88/axiom/internal/canon"
)

// DefaultHiddenSize is the state length used when none is configured.
const DefaultHiddenSize = 128

// Engine holds a fixed-length hidden state that every Generate call both
// reads and mutates. Generate is therefore not idempotent.
//
// Thread-safety: Generate, Snapshot and Restore serialize on an internal
// mutex so a shared engine never interleaves half-applied updates. Digests
// are still only attributable to a single request when each concurrent
// request owns its own Engine.
type Engine struct {
	mu         sync.Mutex
	hiddenSize int
	state      []float64
}

// New creates an engine with a zero state of the given length.
func New(hiddenSize int) (*Engine, error) {
	if hiddenSize <= 0 {
		return nil, fmt.Errorf("inference: hidden size must be positive, got %d", hiddenSize)
	}
	return &Engine{
		hiddenSize: hiddenSize,
		state:      make([]float64, hiddenSize),
	}, nil
}

// HiddenSize returns the state length. It never changes.
func (e *Engine) HiddenSize() int {
	return e.hiddenSize
}

// Generate folds prompt and context into the state and returns the new
// state digest along with a summary of the inputs.
//
// A nil context is treated as an empty object. A context that has no
// canonical JSON form fails with *canon.SerializationError and leaves the
// state untouched.
func (e *Engine) Generate(prompt string, context map[string]any) (Result, error) {
	// Results must not change when the caller later mutates context.
	context = canon.CloneObject(context)

	encoded, err := canon.Marshal(context)
	if err != nil {
		return Result{}, fmt.Errorf("inference: context: %w", err)
	}

	promptVec := digestVector([]byte(prompt), e.hiddenSize)
	contextVec := digestVector(encoded, e.hiddenSize)

	e.mu.Lock()
	blend(e.state, promptVec, contextVec)
	digest := stateDigest(e.state)
	e.mu.Unlock()

	return Result{
		Summary: Summary{
			PromptLength: utf8.RuneCountInString(prompt),
			ContextKeys:  slices.Sorted(maps.Keys(context)),
			StateDigest:  digest,
		},
		Analysis: Analysis{
			PromptPreview: preview(prompt, PreviewLength),
			Context:       context,
		},
		Engine: Info{
			Type:       EngineType,
			HiddenSize: e.hiddenSize,
		},
	}, nil
}

// Snapshot returns a copy of the current state.
func (e *Engine) Snapshot() []float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.state)
}

// Restore replaces the state with a previously taken snapshot.
func (e *Engine) Restore(state []float64) error {
	if len(state) != e.hiddenSize {
		return fmt.Errorf("inference: snapshot length %d does not match hidden size %d", len(state), e.hiddenSize)
	}
	e.mu.Lock()
	copy(e.state, state)
	e.mu.Unlock()
	return nil
}

// preview truncates s to at most n Unicode scalars without splitting one.
func preview(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
