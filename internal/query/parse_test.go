package query

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzpsarthak13/dynamoplus/internal/core"
)

func TestParsePredicate(t *testing.T) {
	t.Run("empty body matches everything", func(t *testing.T) {
		cond, err := ParsePredicate(nil)
		require.NoError(t, err)
		assert.Equal(t, core.Any{}, cond)
	})

	t.Run("eq", func(t *testing.T) {
		cond, err := ParsePredicate([]byte(`{"eq":{"field_name":"author","value":"Orwell"}}`))
		require.NoError(t, err)
		assert.Equal(t, core.Eq{FieldName: "author", Value: "Orwell"}, cond)
	})

	t.Run("range maps to between", func(t *testing.T) {
		cond, err := ParsePredicate([]byte(`{"range":{"field_name":"year","from":1940,"to":1950}}`))
		require.NoError(t, err)
		assert.Equal(t, core.Between{FieldName: "year", From: float64(1940), To: float64(1950)}, cond)
	})

	t.Run("and puts the range last", func(t *testing.T) {
		cond, err := ParsePredicate([]byte(`{"and":[
			{"range":{"field_name":"year","from":"1940","to":"1950"}},
			{"eq":{"field_name":"author","value":"Orwell"}}
		]}`))
		require.NoError(t, err)

		and, ok := cond.(core.And)
		require.True(t, ok)
		assert.Equal(t, []string{"author", "year"}, and.Fields())
		assert.Equal(t, core.Between{FieldName: "year", From: "1940", To: "1950"}, and.Tail())
	})
}

func TestParsePredicateErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{"eq":`},
		{name: "two ranges", body: `{"and":[{"range":{"field_name":"a","from":1,"to":2}},{"range":{"field_name":"b","from":1,"to":2}}]}`},
		{name: "nested and", body: `{"and":[{"and":[{"eq":{"field_name":"a","value":1}}]}]}`},
		{name: "empty and", body: `{"and":[]}`},
		{name: "two operators", body: `{"eq":{"field_name":"a","value":1},"range":{"field_name":"b","from":1,"to":2}}`},
		{name: "missing field name", body: `{"eq":{"value":1}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePredicate([]byte(tt.body))
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrInvalidQuery))
		})
	}
}

func TestEncodePredicate(t *testing.T) {
	and, err := core.NewAnd(
		[]core.Eq{{FieldName: "author", Value: "Orwell"}},
		core.Between{FieldName: "year", From: float64(1940), To: float64(1950)},
	)
	require.NoError(t, err)

	wire, err := EncodePredicate(and)
	require.NoError(t, err)

	data, err := json.Marshal(wire)
	require.NoError(t, err)

	parsed, err := ParsePredicate(data)
	require.NoError(t, err)
	assert.Equal(t, and, parsed)

	_, err = EncodePredicate(core.Gt{FieldName: "year", Value: 1})
	assert.True(t, errors.Is(err, core.ErrInvalidQuery))
}
