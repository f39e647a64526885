package canon

// CloneObject returns a deep copy of obj. Nested maps and slices of the
// kinds Normalize accepts are copied; scalars and Valuers are shared.
// A nil obj yields an empty map.
func CloneObject(obj map[string]any) map[string]any {
	out := make(map[string]any, len(obj))
	for k, v := range obj {
		out[k] = clone(v)
	}
	return out
}

func clone(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return CloneObject(val)
	case map[string]string:
		out := make(map[string]string, len(val))
		for k, s := range val {
			out[k] = s
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = clone(elem)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	case Object:
		out := make(Object, len(val))
		for k, elem := range val {
			out[k], _ = clone(elem).(Value)
		}
		return out
	case Array:
		out := make(Array, len(val))
		for i, elem := range val {
			out[i], _ = clone(elem).(Value)
		}
		return out
	default:
		return v
	}
}
