package query

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzpsarthak13/dynamoplus/internal/core"
)

func mustAnd(t *testing.T, eqs []core.Eq, tail core.TailCondition) core.And {
	t.Helper()
	and, err := core.NewAnd(eqs, tail)
	require.NoError(t, err)
	return and
}

func TestCompile(t *testing.T) {
	orwell := []core.Eq{{FieldName: "author", Value: "Orwell"}}

	tests := []struct {
		name      string
		condition core.Condition
		expected  core.ScanDescriptor
	}{
		{
			name:      "any",
			condition: core.Any{},
			expected:  core.ScanDescriptor{Partition: "book"},
		},
		{
			name:      "single eq",
			condition: core.Eq{FieldName: "author", Value: "Orwell"},
			expected:  core.ScanDescriptor{Partition: "book#author", Op: core.SortEq, Operand: "Orwell"},
		},
		{
			name:      "single gt on number",
			condition: core.Gt{FieldName: "year", Value: float64(1940)},
			expected:  core.ScanDescriptor{Partition: "book#year", Op: core.SortGt, Operand: "1940"},
		},
		{
			name:      "single lte",
			condition: core.Lte{FieldName: "year", Value: 1950},
			expected:  core.ScanDescriptor{Partition: "book#year", Op: core.SortLte, Operand: "1950"},
		},
		{
			name:      "single between",
			condition: core.Between{FieldName: "year", From: 1940, To: 1950},
			expected:  core.ScanDescriptor{Partition: "book#year", Op: core.SortBetween, Operand: "1940", OperandTo: "1950"},
		},
		{
			name: "and of equalities",
			condition: mustAnd(t, []core.Eq{
				{FieldName: "author", Value: "Orwell"},
				{FieldName: "genre", Value: "satire"},
			}, nil),
			expected: core.ScanDescriptor{Partition: "book#author#genre", Op: core.SortEq, Operand: "Orwell#satire"},
		},
		{
			name:      "and with begins_with tail",
			condition: mustAnd(t, orwell, core.BeginsWith{FieldName: "title", Value: "Animal"}),
			expected:  core.ScanDescriptor{Partition: "book#author#title", Op: core.SortBeginsWith, Operand: "Orwell#Animal"},
		},
		{
			name:      "and with eq tail",
			condition: mustAnd(t, orwell, core.Eq{FieldName: "title", Value: "1984"}),
			expected:  core.ScanDescriptor{Partition: "book#author#title", Op: core.SortEq, Operand: "Orwell#1984"},
		},
		{
			name:      "and with gte tail",
			condition: mustAnd(t, orwell, core.Gte{FieldName: "year", Value: 1945}),
			expected:  core.ScanDescriptor{Partition: "book#author#year", Op: core.SortGte, Operand: "Orwell#1945"},
		},
		{
			name:      "and with lt tail",
			condition: mustAnd(t, orwell, core.Lt{FieldName: "year", Value: 1945}),
			expected:  core.ScanDescriptor{Partition: "book#author#year", Op: core.SortLt, Operand: "Orwell#1945"},
		},
		{
			name:      "and with lte tail joins fields with double underscore",
			condition: mustAnd(t, orwell, core.Lte{FieldName: "year", Value: 1949}),
			expected:  core.ScanDescriptor{Partition: "book#author__year", Op: core.SortLte, Operand: "Orwell#1949"},
		},
		{
			name:      "and with between tail joins fields with double underscore",
			condition: mustAnd(t, orwell, core.Between{FieldName: "year", From: 1940, To: 1950}),
			expected: core.ScanDescriptor{
				Partition: "book#author__year",
				Op:        core.SortBetween,
				Operand:   "Orwell#1940",
				OperandTo: "Orwell#1950",
			},
		},
		{
			name:      "and with only a tail",
			condition: mustAnd(t, nil, core.Between{FieldName: "year", From: 1940, To: 1950}),
			expected:  core.ScanDescriptor{Partition: "book#year", Op: core.SortBetween, Operand: "1940", OperandTo: "1950"},
		},
		{
			name:      "operands are escaped",
			condition: mustAnd(t, []core.Eq{{FieldName: "author", Value: "A#B"}}, core.BeginsWith{FieldName: "title", Value: `x\`}),
			expected:  core.ScanDescriptor{Partition: "book#author#title", Op: core.SortBeginsWith, Operand: `A\#B#x\\`},
		},
	}

	compiler := NewCompiler(CompilerOptions{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			descriptor, err := compiler.Compile(tt.condition, "book")
			require.NoError(t, err)
			assert.Equal(t, tt.expected, descriptor)
		})
	}
}

func TestCompileUnifiedRangeJoin(t *testing.T) {
	compiler := NewCompiler(CompilerOptions{UnifiedRangeJoin: true})
	and := mustAnd(t, []core.Eq{{FieldName: "author", Value: "Orwell"}}, core.Between{FieldName: "year", From: 1940, To: 1950})

	descriptor, err := compiler.Compile(and, "book")
	require.NoError(t, err)
	assert.Equal(t, "book#author#year", descriptor.Partition)
	assert.Equal(t, core.IndexName("book", []string{"author", "year"}), descriptor.Partition)
}

func TestCompileRejectsInvalidInput(t *testing.T) {
	compiler := NewCompiler(CompilerOptions{})

	tests := []struct {
		name       string
		condition  core.Condition
		collection string
	}{
		{name: "nil condition", condition: nil, collection: "book"},
		{name: "missing collection", condition: core.Any{}, collection: ""},
		{name: "object operand", condition: core.Eq{FieldName: "meta", Value: map[string]interface{}{}}, collection: "book"},
		{name: "nil operand", condition: core.Gt{FieldName: "year"}, collection: "book"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compiler.Compile(tt.condition, tt.collection)
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrInvalidQuery))
		})
	}
}

func TestForOrderedIndex(t *testing.T) {
	tests := []struct {
		name     string
		in       core.ScanDescriptor
		expected core.ScanDescriptor
	}{
		{
			name:     "eq becomes a prefix on the value",
			in:       core.ScanDescriptor{Op: core.SortEq, Operand: "Orwell"},
			expected: core.ScanDescriptor{Op: core.SortBeginsWith, Operand: "Orwell#"},
		},
		{
			name:     "gt skips every ordering of the value",
			in:       core.ScanDescriptor{Op: core.SortGt, Operand: "1940"},
			expected: core.ScanDescriptor{Op: core.SortGt, Operand: "1940#\uffff"},
		},
		{
			name:     "lte includes every ordering of the value",
			in:       core.ScanDescriptor{Op: core.SortLte, Operand: "1940"},
			expected: core.ScanDescriptor{Op: core.SortLte, Operand: "1940#\uffff"},
		},
		{
			name:     "between includes the upper value",
			in:       core.ScanDescriptor{Op: core.SortBetween, Operand: "1930", OperandTo: "1940"},
			expected: core.ScanDescriptor{Op: core.SortBetween, Operand: "1930", OperandTo: "1940#\uffff"},
		},
		{
			name:     "gte is unchanged",
			in:       core.ScanDescriptor{Op: core.SortGte, Operand: "1940"},
			expected: core.ScanDescriptor{Op: core.SortGte, Operand: "1940"},
		},
		{
			name:     "lt is unchanged",
			in:       core.ScanDescriptor{Op: core.SortLt, Operand: "1940"},
			expected: core.ScanDescriptor{Op: core.SortLt, Operand: "1940"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.in.Partition = "book#year"
			tt.expected.Partition = "book#year"
			assert.Equal(t, tt.expected, ForOrderedIndex(tt.in))
		})
	}
}
