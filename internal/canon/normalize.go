package canon

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

// Normalize converts a Go value into its canonical Value tree.
//
// Accepted inputs: nil, bool, every integer kind that fits in int64,
// finite float32/float64, json.Number, string, []any, []string,
// map[string]any, map[string]string, Value and Valuer. Anything else is a
// *SerializationError; nothing is silently coerced.
func Normalize(v any) (Value, error) {
	return normalize("$", v)
}

func normalize(path string, v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return normalizeValue(path, val)
	case Valuer:
		cv, err := val.CanonicalValue()
		if err != nil {
			return nil, err
		}
		return normalizeValue(path, cv)
	case bool:
		return Bool(val), nil
	case string:
		return String(val), nil
	case int:
		return Int(val), nil
	case int8:
		return Int(val), nil
	case int16:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint:
		return normalizeUint(path, uint64(val))
	case uint8:
		return Int(val), nil
	case uint16:
		return Int(val), nil
	case uint32:
		return Int(val), nil
	case uint64:
		return normalizeUint(path, val)
	case float32:
		return normalizeFloat(path, float64(val))
	case float64:
		return normalizeFloat(path, val)
	case json.Number:
		return normalizeNumber(path, val)
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			nv, err := normalize(fmt.Sprintf("%s[%d]", path, i), elem)
			if err != nil {
				return nil, err
			}
			arr[i] = nv
		}
		return arr, nil
	case []string:
		arr := make(Array, len(val))
		for i, elem := range val {
			arr[i] = String(elem)
		}
		return arr, nil
	case map[string]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			nv, err := normalize(path+"."+k, elem)
			if err != nil {
				return nil, err
			}
			obj[k] = nv
		}
		return checkKeys(path, obj)
	case map[string]string:
		obj := make(Object, len(val))
		for k, elem := range val {
			obj[k] = String(elem)
		}
		return checkKeys(path, obj)
	default:
		return nil, serializationErrorf(path, "unsupported type %T", v)
	}
}

// normalizeValue re-checks an already-built tree. Hand-built Values can still
// carry NaN floats or nil elements.
func normalizeValue(path string, v Value) (Value, error) {
	switch val := v.(type) {
	case Float:
		return normalizeFloat(path, float64(val))
	case Array:
		for i, elem := range val {
			if elem == nil {
				return nil, serializationErrorf(fmt.Sprintf("%s[%d]", path, i), "nil Value element")
			}
			if _, err := normalizeValue(fmt.Sprintf("%s[%d]", path, i), elem); err != nil {
				return nil, err
			}
		}
		return val, nil
	case Object:
		for k, elem := range val {
			if elem == nil {
				return nil, serializationErrorf(path+"."+k, "nil Value element")
			}
			if _, err := normalizeValue(path+"."+k, elem); err != nil {
				return nil, err
			}
		}
		return checkKeys(path, val)
	default:
		return val, nil
	}
}

func normalizeUint(path string, u uint64) (Value, error) {
	if u > math.MaxInt64 {
		return nil, serializationErrorf(path, "unsigned integer %d overflows int64", u)
	}
	return Int(u), nil
}

func normalizeFloat(path string, f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, serializationErrorf(path, "non-finite float %v", f)
	}
	return Float(f), nil
}

func normalizeNumber(path string, n json.Number) (Value, error) {
	if i, err := n.Int64(); err == nil {
		return Int(i), nil
	}
	f, err := strconv.ParseFloat(string(n), 64)
	if err != nil {
		return nil, serializationErrorf(path, "invalid number %q", string(n))
	}
	return normalizeFloat(path, f)
}

// checkKeys rejects objects whose keys collapse to the same NFC form, since
// they would serialize as duplicate members.
func checkKeys(path string, obj Object) (Value, error) {
	if len(obj) < 2 {
		return obj, nil
	}
	seen := make(map[string]string, len(obj))
	for k := range obj {
		nk := norm.NFC.String(k)
		if prev, ok := seen[nk]; ok {
			return nil, serializationErrorf(path, "keys %q and %q are identical after NFC normalization", prev, k)
		}
		seen[nk] = k
	}
	return obj, nil
}
