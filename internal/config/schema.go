package config

import (
	_ "embed"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaCUE string

// ValidationError lists every schema violation in a configuration.
type ValidationError struct {
	Details string
}

func (e *ValidationError) Error() string {
	return "invalid configuration:\n" + e.Details
}

// Validate checks decoded YAML against the embedded schema.
func Validate(raw map[string]any) error {
	if raw == nil {
		raw = map[string]any{}
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	data := ctx.Encode(raw)
	if err := data.Err(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	unified := def.Unify(data)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return &ValidationError{Details: strings.TrimSpace(cueerrors.Details(err, nil))}
	}
	return nil
}
