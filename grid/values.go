package grid

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Sanitize prepares a cell value for populating an editor. Absent or empty
// values become "", and non-numeric values get single quotes escaped so the
// value can sit inside a single-quoted markup attribute.
func Sanitize(v any) string {
	s := ValueString(v)
	if s == "" {
		return ""
	}
	if isNumeric(s) {
		return s
	}
	return strings.ReplaceAll(s, "'", "&#39;")
}

// ValueString renders a decoded JSON value as the text an editor works with.
func ValueString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func isNumeric(s string) bool {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return err == nil && !math.IsNaN(f)
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}

func truthy(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case nil:
		return false
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "1", "yes", "x", "on":
			return true
		}
		return false
	}
	if f, ok := toFloat(v); ok {
		return f != 0
	}
	return false
}

func isEmpty(v any) bool {
	return strings.TrimSpace(ValueString(v)) == ""
}

// sameValue compares two decoded values by their editor text, so that 7,
// json.Number("7") and "7" address the same row.
func sameValue(a, b any) bool {
	return ValueString(a) == ValueString(b)
}

func copyValues(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
