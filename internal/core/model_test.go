package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateCollectionName(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"book", false},
		{"order_items", false},
		{"", true},
		{SystemCollection, true},
		{SystemIndex, true},
		{SystemAggregation, true},
		{SystemAggregationDefinition, true},
		{"orders#status", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCollectionName(tt.name)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidRecord))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
