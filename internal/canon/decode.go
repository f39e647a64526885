package canon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// DecodeObject parses a JSON object, keeping numbers as json.Number so that
// re-marshaling reproduces the same canonical bytes.
// Empty input decodes to an empty map.
func DecodeObject(data []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]any{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("decode object: %w", err)
	}
	if obj == nil {
		return nil, fmt.Errorf("decode object: expected a JSON object, got null")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("decode object: trailing data after object")
	}
	return obj, nil
}
