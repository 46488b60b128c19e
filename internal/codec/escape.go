package codec

import (
	"strings"

	"github.com/rzpsarthak13/dynamoplus/internal/core"
)

const escapeChar = '\\'

// Escape makes a key component safe to join with the field separator.
func Escape(value string) string {
	if !strings.ContainsAny(value, `\#`) {
		return value
	}
	var b strings.Builder
	b.Grow(len(value) + 4)
	for _, r := range value {
		if r == escapeChar || r == '#' {
			b.WriteRune(escapeChar)
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Join escapes each component and joins them with the field separator.
func Join(values []string) string {
	escaped := make([]string, len(values))
	for i, v := range values {
		escaped[i] = Escape(v)
	}
	return strings.Join(escaped, core.FieldSeparator)
}

// Split splits a joined value on unescaped separators and unescapes each component.
// A dangling escape character is reported as malformed.
func Split(joined string) ([]string, bool) {
	parts := make([]string, 0, 4)
	var current strings.Builder
	escaped := false
	for _, r := range joined {
		switch {
		case escaped:
			current.WriteRune(r)
			escaped = false
		case r == escapeChar:
			escaped = true
		case string(r) == core.FieldSeparator:
			parts = append(parts, current.String())
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	if escaped {
		return nil, false
	}
	return append(parts, current.String()), true
}

// KeyValue formats and escapes a field value for use in a physical key.
func KeyValue(v interface{}) (string, bool) {
	s, ok := core.FormatValue(v)
	if !ok {
		return "", false
	}
	return Escape(s), true
}
