package canon

import (
	"errors"
	"fmt"
)

// SerializationError reports a value that has no canonical JSON form.
// Path is a JSONPath-like locator of the offending element ("$" is the root).
type SerializationError struct {
	Path   string
	Reason string
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("canon: cannot serialize %s: %s", e.Path, e.Reason)
}

// IsSerializationError reports whether err wraps a *SerializationError.
func IsSerializationError(err error) bool {
	var se *SerializationError
	return errors.As(err, &se)
}

func serializationErrorf(path, format string, args ...any) *SerializationError {
	return &SerializationError{Path: path, Reason: fmt.Sprintf(format, args...)}
}
