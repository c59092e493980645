package props

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// AsBool coerces v to a bool. Accepted inputs: bool, any integer (non-zero
// is true), and the strings "true"/"false" in any casing. Anything else is
// a conversion error.
func AsBool(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case int:
		return t != 0, nil
	case int64:
		return t != 0, nil
	case float64:
		return t != 0, nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return false, fmt.Errorf("cannot convert %q to bool", t.String())
		}
		return f != 0, nil
	case string:
		switch strings.ToLower(t) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return false, fmt.Errorf("cannot convert %q to bool", t)
	}
	return false, fmt.Errorf("cannot convert %T to bool", v)
}

// AsFloat coerces v to a float64. Accepted inputs: any numeric type,
// json.Number, and numeric strings.
func AsFloat(v any) (float64, error) {
	switch t := v.(type) {
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case float64:
		return t, nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, fmt.Errorf("cannot convert %q to number", t.String())
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert %q to number", t)
		}
		return f, nil
	case bool:
		if t {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("cannot convert %T to number", v)
}

// IsNumeric reports whether v is a numeric property value.
func IsNumeric(v any) bool {
	switch v.(type) {
	case int, int64, float64, json.Number:
		return true
	}
	return false
}

// AsString renders v as a string for pattern matching and query encoding.
func AsString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	case bool:
		return strconv.FormatBool(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}
