package query

import (
	"strings"

	"github.com/rzpsarthak13/dynamoplus/internal/core"
)

// Match evaluates a condition against a document in memory.
// Numbers compare numerically; everything else compares by its key representation.
func Match(document map[string]interface{}, condition core.Condition) bool {
	switch cond := condition.(type) {
	case nil, core.Any:
		return true
	case core.Eq:
		c, ok := compareField(document, cond.FieldName, cond.Value)
		return ok && c == 0
	case core.Gt:
		c, ok := compareField(document, cond.FieldName, cond.Value)
		return ok && c > 0
	case core.Gte:
		c, ok := compareField(document, cond.FieldName, cond.Value)
		return ok && c >= 0
	case core.Lt:
		c, ok := compareField(document, cond.FieldName, cond.Value)
		return ok && c < 0
	case core.Lte:
		c, ok := compareField(document, cond.FieldName, cond.Value)
		return ok && c <= 0
	case core.BeginsWith:
		actual, ok := fieldString(document, cond.FieldName)
		if !ok {
			return false
		}
		prefix, ok := core.FormatValue(cond.Value)
		return ok && strings.HasPrefix(actual, prefix)
	case core.Between:
		lower, ok := compareField(document, cond.FieldName, cond.From)
		if !ok || lower < 0 {
			return false
		}
		upper, ok := compareField(document, cond.FieldName, cond.To)
		return ok && upper <= 0
	case core.And:
		for _, eq := range cond.Eqs() {
			if !Match(document, eq) {
				return false
			}
		}
		if tail := cond.Tail(); tail != nil {
			return Match(document, tail)
		}
		return true
	default:
		return false
	}
}

// compareField compares the value at a field path with an operand.
func compareField(document map[string]interface{}, field string, operand interface{}) (int, bool) {
	actual, ok := core.Lookup(document, field)
	if !ok || actual == nil {
		return 0, false
	}
	_, actualIsString := actual.(string)
	_, operandIsString := operand.(string)
	if !actualIsString && !operandIsString {
		a, aok := core.ToFloat(actual)
		b, bok := core.ToFloat(operand)
		if aok && bok {
			switch {
			case a < b:
				return -1, true
			case a > b:
				return 1, true
			default:
				return 0, true
			}
		}
	}
	a, aok := core.FormatValue(actual)
	b, bok := core.FormatValue(operand)
	if !aok || !bok {
		return 0, false
	}
	return strings.Compare(a, b), true
}

func fieldString(document map[string]interface{}, field string) (string, bool) {
	actual, ok := core.Lookup(document, field)
	if !ok {
		return "", false
	}
	return core.FormatValue(actual)
}
