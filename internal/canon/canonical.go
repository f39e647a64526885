package canon

import (
	"bytes"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Marshal produces canonical JSON for v.
// This is the ONLY serialization used for content-addressed hashing.
func Marshal(v any) ([]byte, error) {
	nv, err := Normalize(v)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	writeValue(&buf, nv)
	return buf.Bytes(), nil
}

// MustMarshal is like Marshal but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustMarshal(v any) []byte {
	data, err := Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

func writeValue(buf *bytes.Buffer, v Value) {
	switch val := v.(type) {
	case Null:
		buf.WriteString("null")
	case Bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case Int:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case Float:
		buf.WriteString(formatFloat(float64(val)))
	case String:
		writeString(buf, string(val))
	case Array:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeValue(buf, elem)
		}
		buf.WriteByte(']')
	case Object:
		buf.WriteByte('{')
		for i, k := range sortedNFCKeys(val) {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeString(buf, k.nfc)
			buf.WriteByte(':')
			writeValue(buf, val[k.raw])
		}
		buf.WriteByte('}')
	}
}

type objectKey struct {
	raw string
	nfc string
}

// sortedNFCKeys orders keys by their NFC form, which is what gets written.
func sortedNFCKeys(obj Object) []objectKey {
	nfcToRaw := make(map[string]string, len(obj))
	nfcObj := make(Object, len(obj))
	for k := range obj {
		nk := norm.NFC.String(k)
		nfcToRaw[nk] = k
		nfcObj[nk] = nil
	}
	sorted := nfcObj.SortedKeys()
	keys := make([]objectKey, len(sorted))
	for i, nk := range sorted {
		keys[i] = objectKey{raw: nfcToRaw[nk], nfc: nk}
	}
	return keys
}

const hexDigits = "0123456789abcdef"

// writeString writes an NFC-normalized JSON string. Only the quote, the
// backslash and C0 control characters are escaped; <, >, &, U+2028 and
// U+2029 are written literally. Invalid UTF-8 becomes U+FFFD.
func writeString(buf *bytes.Buffer, s string) {
	s = norm.NFC.String(s)
	buf.WriteByte('"')
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		switch {
		case r == '"':
			buf.WriteString(`\"`)
		case r == '\\':
			buf.WriteString(`\\`)
		case r == '\b':
			buf.WriteString(`\b`)
		case r == '\f':
			buf.WriteString(`\f`)
		case r == '\n':
			buf.WriteString(`\n`)
		case r == '\r':
			buf.WriteString(`\r`)
		case r == '\t':
			buf.WriteString(`\t`)
		case r < 0x20:
			buf.WriteString(`\u00`)
			buf.WriteByte(hexDigits[r>>4])
			buf.WriteByte(hexDigits[r&0xF])
		default:
			buf.WriteRune(r)
		}
	}
	buf.WriteByte('"')
}

// formatFloat renders f the way ECMAScript Number.prototype.toString does:
// plain decimal for 1e-6 <= |f| < 1e21, exponent form otherwise.
func formatFloat(f float64) string {
	if f == 0 {
		return "0"
	}
	abs := math.Abs(f)
	if abs >= 1e21 || abs < 1e-6 {
		s := strconv.FormatFloat(f, 'e', -1, 64)
		mant, exp, _ := strings.Cut(s, "e")
		sign, digits := exp[:1], strings.TrimLeft(exp[1:], "0")
		return mant + "e" + sign + digits
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
