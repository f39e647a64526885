package pipeline

import "fmt"

// Mode selects which stages a run executes.
type Mode string

const (
	// ModeFast skips verification.
	ModeFast Mode = "fast"
	// ModeVerified runs the verifier on the inference output.
	ModeVerified Mode = "verified"
	// ModeHybrid runs the verifier like ModeVerified. It is kept as a
	// distinct tag because it is part of the signed payload.
	ModeHybrid Mode = "hybrid"
)

// Modes lists every valid mode.
var Modes = []Mode{ModeFast, ModeVerified, ModeHybrid}

// ParseMode validates s.
func ParseMode(s string) (Mode, error) {
	m := Mode(s)
	if !m.Valid() {
		return "", fmt.Errorf("invalid mode %q (valid: fast, verified, hybrid)", s)
	}
	return m, nil
}

// Valid reports whether m is one of Modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeFast, ModeVerified, ModeHybrid:
		return true
	}
	return false
}

// Verifies reports whether runs in this mode call the verifier.
func (m Mode) Verifies() bool {
	return m == ModeVerified || m == ModeHybrid
}

func (m Mode) String() string {
	return string(m)
}
