package indexing

import (
	"reflect"
)

// Flatten maps a nested document onto dot-separated leaf paths. Objects recurse;
// arrays, scalars and empty objects are leaves.
func Flatten(document map[string]interface{}) map[string]interface{} {
	flat := make(map[string]interface{})
	flattenInto(flat, "", document)
	return flat
}

func flattenInto(flat map[string]interface{}, prefix string, document map[string]interface{}) {
	for key, value := range document {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		if nested, ok := value.(map[string]interface{}); ok && len(nested) > 0 {
			flattenInto(flat, path, nested)
			continue
		}
		flat[path] = value
	}
}

// Changes holds the leaf paths that differ between two versions of a record.
// Removed values come from the old version; Added and Changed values from the new one.
type Changes struct {
	Removed map[string]interface{}
	Added   map[string]interface{}
	Changed map[string]interface{}
}

// Empty reports whether the two versions are identical.
func (c Changes) Empty() bool {
	return len(c.Removed) == 0 && len(c.Added) == 0 && len(c.Changed) == 0
}

// Paths returns every path touched by the change.
func (c Changes) Paths() []string {
	paths := make([]string, 0, len(c.Removed)+len(c.Added)+len(c.Changed))
	for _, bucket := range []map[string]interface{}{c.Removed, c.Added, c.Changed} {
		for path := range bucket {
			paths = append(paths, path)
		}
	}
	return paths
}

// Diff compares two documents. It does not modify its inputs; either may be nil.
func Diff(oldDocument, newDocument map[string]interface{}) Changes {
	oldFlat := Flatten(oldDocument)
	newFlat := Flatten(newDocument)

	changes := Changes{
		Removed: make(map[string]interface{}),
		Added:   make(map[string]interface{}),
		Changed: make(map[string]interface{}),
	}
	for path, oldValue := range oldFlat {
		newValue, ok := newFlat[path]
		switch {
		case !ok:
			changes.Removed[path] = oldValue
		case !reflect.DeepEqual(oldValue, newValue):
			changes.Changed[path] = newValue
		}
	}
	for path, newValue := range newFlat {
		if _, ok := oldFlat[path]; !ok {
			changes.Added[path] = newValue
		}
	}
	return changes
}
