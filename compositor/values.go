package compositor

import (
	"fmt"
	"strconv"
	"strings"
)

// FieldValues maps logical field names to caller-supplied values.
//
// Every entry point in this package treats FieldValues as read-only: functions
// that need to inject synthetic fields (version probes, key attributes) work
// on a clone and never mutate the caller's map.
type FieldValues map[string]any

// Clone returns a shallow copy of the value map.
func (v FieldValues) Clone() FieldValues {
	if v == nil {
		return FieldValues{}
	}
	out := make(FieldValues, len(v)+1)
	for k, val := range v {
		out[k] = val
	}
	return out
}

// With returns a clone of the value map with one additional entry set.
func (v FieldValues) With(name string, value any) FieldValues {
	out := v.Clone()
	out[name] = value
	return out
}

// Cleanup returns a copy of values with leading/trailing whitespace stripped
// from strings and, when nullIfEmpty is set, empty strings, maps and slices
// replaced by nil. Nested maps are cleaned recursively.
func Cleanup(values FieldValues, nullIfEmpty bool) FieldValues {
	out := make(FieldValues, len(values))
	for k, v := range values {
		switch x := v.(type) {
		case string:
			v = strings.TrimSpace(x)
		case map[string]any:
			v = map[string]any(Cleanup(x, nullIfEmpty))
		case FieldValues:
			v = Cleanup(x, nullIfEmpty)
		}
		if nullIfEmpty {
			v = nilIfEmpty(v)
		}
		out[k] = v
	}
	return out
}

func nilIfEmpty(v any) any {
	switch x := v.(type) {
	case string:
		if len(x) < 1 {
			return nil
		}
	case map[string]any:
		if len(x) < 1 {
			return nil
		}
	case FieldValues:
		if len(x) < 1 {
			return nil
		}
	case []any:
		if len(x) < 1 {
			return nil
		}
	}
	return v
}

// formatValue renders a field value as the string that participates in a key.
// Integer kinds render without an exponent so version numbers and timestamps
// survive the trip through a key string unchanged.
func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint:
		return strconv.FormatUint(uint64(x), 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(v)
	}
}

// intFromValue reads an integer out of a value that may have round-tripped
// through DynamoDB (number attributes unmarshal as float64) or a key string.
func intFromValue(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int32:
		return int(x), true
	case int64:
		return int(x), true
	case float64:
		return int(x), true
	case string:
		n, err := strconv.Atoi(x)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}
