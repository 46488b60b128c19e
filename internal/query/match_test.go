package query

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rzpsarthak13/dynamoplus/internal/core"
)

func TestMatch(t *testing.T) {
	doc := map[string]interface{}{
		"author": "Orwell",
		"title":  "Animal Farm",
		"year":   float64(1945),
		"meta":   map[string]interface{}{"pages": 112},
	}

	tests := []struct {
		name      string
		condition core.Condition
		expected  bool
	}{
		{name: "any", condition: core.Any{}, expected: true},
		{name: "eq hit", condition: core.Eq{FieldName: "author", Value: "Orwell"}, expected: true},
		{name: "eq miss", condition: core.Eq{FieldName: "author", Value: "Huxley"}, expected: false},
		{name: "eq number across types", condition: core.Eq{FieldName: "year", Value: 1945}, expected: true},
		{name: "numeric comparison is not lexical", condition: core.Gt{FieldName: "meta.pages", Value: 99}, expected: true},
		{name: "gte boundary", condition: core.Gte{FieldName: "year", Value: 1945}, expected: true},
		{name: "lt miss", condition: core.Lt{FieldName: "year", Value: 1945}, expected: false},
		{name: "lte boundary", condition: core.Lte{FieldName: "year", Value: 1945}, expected: true},
		{name: "begins_with", condition: core.BeginsWith{FieldName: "title", Value: "Animal"}, expected: true},
		{name: "between inclusive lower", condition: core.Between{FieldName: "year", From: 1945, To: 1950}, expected: true},
		{name: "between inclusive upper", condition: core.Between{FieldName: "year", From: 1900, To: 1945}, expected: true},
		{name: "between miss", condition: core.Between{FieldName: "year", From: 1946, To: 1950}, expected: false},
		{name: "missing field", condition: core.Eq{FieldName: "isbn", Value: "x"}, expected: false},
		{
			name: "and hit",
			condition: mustAndNoT(core.NewAnd(
				[]core.Eq{{FieldName: "author", Value: "Orwell"}},
				core.BeginsWith{FieldName: "title", Value: "Animal"},
			)),
			expected: true,
		},
		{
			name: "and miss on tail",
			condition: mustAndNoT(core.NewAnd(
				[]core.Eq{{FieldName: "author", Value: "Orwell"}},
				core.Lt{FieldName: "year", Value: 1900},
			)),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Match(doc, tt.condition))
		})
	}
}

func mustAndNoT(and core.And, err error) core.And {
	if err != nil {
		panic(err)
	}
	return and
}
