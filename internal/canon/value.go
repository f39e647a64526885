package canon

import (
	"slices"
	"unicode/utf16"
)

// Value is a sealed interface over the JSON data model.
// Only Null, Bool, Int, Float, String, Array and Object implement it.
type Value interface {
	canonValue()
}

// Null is the JSON null literal.
type Null struct{}

func (Null) canonValue() {}

// Bool is a JSON boolean.
type Bool bool

func (Bool) canonValue() {}

// Int is an integral JSON number.
type Int int64

func (Int) canonValue() {}

// Float is a finite non-integral (or explicitly float-typed) JSON number.
type Float float64

func (Float) canonValue() {}

// String is a JSON string.
type String string

func (String) canonValue() {}

// Array is an ordered JSON array.
type Array []Value

func (Array) canonValue() {}

// Object is a JSON object. Use SortedKeys for deterministic iteration.
type Object map[string]Value

func (Object) canonValue() {}

// Valuer is implemented by types that know their own canonical form.
// Result types use it so they can be hashed without a reflection pass.
type Valuer interface {
	CanonicalValue() (Value, error)
}

// SortedKeys returns keys in RFC 8785 order (UTF-16 code units).
// Go's native string ordering compares UTF-8 bytes, which differs for
// code points above U+FFFF.
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareUTF16)
	return keys
}

func compareUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	n := min(len(a16), len(b16))
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}
