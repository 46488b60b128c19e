package core

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FormatValue renders a scalar field value as the string used in physical keys.
// Objects, arrays and nil cannot be keyed and report false.
func FormatValue(v interface{}) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return val, true
	case bool:
		return strconv.FormatBool(val), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32), true
	case int:
		return strconv.FormatInt(int64(val), 10), true
	case int8, int16, int32, int64:
		return fmt.Sprintf("%d", val), true
	case uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", val), true
	case json.Number:
		return val.String(), true
	case map[string]interface{}, []interface{}:
		return "", false
	default:
		return fmt.Sprint(val), true
	}
}

// ToFloat converts a numeric field value to float64.
// Numeric strings are accepted, matching payloads that went through a text transport.
func ToFloat(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int8:
		return float64(val), true
	case int16:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint8:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Lookup resolves a dot-separated field path inside a nested document.
func Lookup(document map[string]interface{}, path string) (interface{}, bool) {
	if document == nil {
		return nil, false
	}
	var current interface{} = document
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}
