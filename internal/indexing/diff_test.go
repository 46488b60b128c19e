package indexing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlatten(t *testing.T) {
	doc := map[string]interface{}{
		"title": "1984",
		"author": map[string]interface{}{
			"name":    "Orwell",
			"address": map[string]interface{}{"city": "London"},
		},
		"tags":  []interface{}{"dystopia", "classic"},
		"empty": map[string]interface{}{},
	}

	assert.Equal(t, map[string]interface{}{
		"title":               "1984",
		"author.name":         "Orwell",
		"author.address.city": "London",
		"tags":                []interface{}{"dystopia", "classic"},
		"empty":               map[string]interface{}{},
	}, Flatten(doc))

	assert.Empty(t, Flatten(nil))
}

func TestDiffBuckets(t *testing.T) {
	oldDoc := map[string]interface{}{
		"title":  "1984",
		"year":   1949,
		"author": map[string]interface{}{"name": "Orwell", "born": 1903},
		"tags":   []interface{}{"a"},
	}
	newDoc := map[string]interface{}{
		"title":  "Nineteen Eighty-Four",
		"year":   1949,
		"author": map[string]interface{}{"name": "Orwell"},
		"tags":   []interface{}{"a", "b"},
		"pages":  328,
	}

	changes := Diff(oldDoc, newDoc)
	assert.Equal(t, map[string]interface{}{"author.born": 1903}, changes.Removed)
	assert.Equal(t, map[string]interface{}{"pages": 328}, changes.Added)
	assert.Equal(t, map[string]interface{}{
		"title": "Nineteen Eighty-Four",
		"tags":  []interface{}{"a", "b"},
	}, changes.Changed)

	// inputs are untouched
	assert.Equal(t, 1903, oldDoc["author"].(map[string]interface{})["born"])
}

func TestDiffCompleteAndDisjoint(t *testing.T) {
	tests := []struct {
		name   string
		oldDoc map[string]interface{}
		newDoc map[string]interface{}
	}{
		{name: "insert", oldDoc: nil, newDoc: map[string]interface{}{"a": 1, "b": map[string]interface{}{"c": 2}}},
		{name: "delete", oldDoc: map[string]interface{}{"a": 1}, newDoc: nil},
		{name: "identical", oldDoc: map[string]interface{}{"a": 1}, newDoc: map[string]interface{}{"a": 1}},
		{
			name:   "leaf becomes object",
			oldDoc: map[string]interface{}{"meta": "x", "k": 1},
			newDoc: map[string]interface{}{"meta": map[string]interface{}{"x": 1}, "k": 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changes := Diff(tt.oldDoc, tt.newDoc)
			oldFlat := Flatten(tt.oldDoc)
			newFlat := Flatten(tt.newDoc)

			for path := range changes.Removed {
				assert.NotContains(t, changes.Added, path)
				assert.NotContains(t, changes.Changed, path)
			}
			for path := range changes.Added {
				assert.NotContains(t, changes.Changed, path)
			}

			expected := map[string]bool{}
			for path, v := range oldFlat {
				if nv, ok := newFlat[path]; !ok || !assert.ObjectsAreEqual(v, nv) {
					expected[path] = true
				}
			}
			for path := range newFlat {
				if _, ok := oldFlat[path]; !ok {
					expected[path] = true
				}
			}
			actual := map[string]bool{}
			for _, path := range changes.Paths() {
				actual[path] = true
			}
			assert.Equal(t, expected, actual)
		})
	}
}
