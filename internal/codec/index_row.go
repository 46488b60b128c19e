package codec

import (
	"fmt"

	"github.com/rzpsarthak13/dynamoplus/internal/core"
)

// IndexRow is a secondary index row in logical form.
type IndexRow struct {
	// Index is the physical index name (the row sort key).
	Index string

	// Collection and ID address the record the row points to.
	Collection string
	ID         string

	// Values are the condition values, in condition order.
	Values []string

	// Ordering is the ordering suffix. Empty when the index declares no ordering key.
	Ordering string

	// Document is the cached payload: the full record or only the key fields.
	Document map[string]interface{}
}

// Row returns the physical row of the index row.
func (r IndexRow) Row() core.Row {
	pk, _ := PrimaryKey(r.Collection, r.ID)
	return core.Row{
		PK:       pk,
		SK:       r.Index,
		Data:     r.Data(),
		Document: r.Document,
	}
}

// Data returns the projection sort value of the row.
func (r IndexRow) Data() string {
	data := Join(r.Values)
	if r.Ordering != "" {
		data += core.FieldSeparator + Escape(r.Ordering)
	}
	return data
}

// EncodeIndexRow builds the index row of a record. It reports false when any condition
// value is missing or cannot be keyed; the index does not apply to that record.
func EncodeIndexRow(index core.Index, collection *core.Collection, record core.Record) (IndexRow, bool) {
	values := make([]string, 0, len(index.Conditions))
	for _, field := range index.Conditions {
		raw, ok := core.Lookup(record.Payload, field)
		if !ok {
			return IndexRow{}, false
		}
		s, ok := core.FormatValue(raw)
		if !ok {
			return IndexRow{}, false
		}
		values = append(values, s)
	}

	row := IndexRow{
		Index:      index.Name(),
		Collection: record.Collection,
		ID:         record.ID,
		Values:     values,
	}

	if index.OrderingKey != "" {
		row.Ordering = orderingValue(index, record)
	}

	if index.ReadOptimized() {
		row.Document = record.Payload
	} else {
		row.Document = keyFields(index, collection, record)
	}
	return row, true
}

// DecodeIndexRow recovers the logical index row from its physical form.
func DecodeIndexRow(row core.Row, index core.Index) (IndexRow, error) {
	if row.SK != index.Name() {
		return IndexRow{}, fmt.Errorf("%w: row %s belongs to %q, not index %q", core.ErrEncoding, row.PK, row.SK, index.Name())
	}
	id, err := IDFromPartitionKey(row.PK, index.Collection)
	if err != nil {
		return IndexRow{}, err
	}
	parts, ok := Split(row.Data)
	if !ok {
		return IndexRow{}, fmt.Errorf("%w: malformed index value %q", core.ErrEncoding, row.Data)
	}

	n := len(index.Conditions)
	expected := n
	if index.OrderingKey != "" {
		expected++
	}
	if len(parts) != expected {
		return IndexRow{}, fmt.Errorf("%w: index value %q has %d components, expected %d", core.ErrEncoding, row.Data, len(parts), expected)
	}

	decoded := IndexRow{
		Index:      row.SK,
		Collection: index.Collection,
		ID:         id,
		Values:     parts[:n],
		Document:   row.Document,
	}
	if index.OrderingKey != "" {
		decoded.Ordering = parts[n]
	}
	return decoded, nil
}

// orderingValue is the value of the index ordering key, falling back to the record ordering.
func orderingValue(index core.Index, record core.Record) string {
	if raw, ok := core.Lookup(record.Payload, index.OrderingKey); ok {
		if s, ok := core.FormatValue(raw); ok {
			return s
		}
	}
	if record.Ordering != "" {
		return record.Ordering
	}
	return record.ID
}

// keyFields copies the id key and the condition fields of a record, keeping nesting.
func keyFields(index core.Index, collection *core.Collection, record core.Record) map[string]interface{} {
	doc := make(map[string]interface{}, len(index.Conditions)+1)
	idKey := "id"
	if collection != nil && collection.IDKey != "" {
		idKey = collection.IDKey
	}
	doc[idKey] = record.ID
	for _, field := range index.Conditions {
		if v, ok := core.Lookup(record.Payload, field); ok {
			setPath(doc, field, v)
		}
	}
	if index.OrderingKey != "" {
		if v, ok := core.Lookup(record.Payload, index.OrderingKey); ok {
			setPath(doc, index.OrderingKey, v)
		}
	}
	return doc
}
