package codec

import (
	"fmt"
	"strings"

	"github.com/rzpsarthak13/dynamoplus/internal/core"
)

// PrimaryKey returns the base table key of a record's primary row.
func PrimaryKey(collection, id string) (pk, sk string) {
	return collection + core.FieldSeparator + id, collection
}

// EncodeEntity maps a record onto its primary row.
// The sort value is the ordering value, or the id when there is none.
func EncodeEntity(record core.Record) core.Row {
	pk, sk := PrimaryKey(record.Collection, record.ID)
	data := record.Ordering
	if data == "" {
		data = record.ID
	}
	return core.Row{
		PK:       pk,
		SK:       sk,
		Data:     data,
		Document: record.Payload,
	}
}

// DecodeEntity maps a primary row back onto a record.
func DecodeEntity(row core.Row) (core.Record, error) {
	id, err := IDFromPartitionKey(row.PK, row.SK)
	if err != nil {
		return core.Record{}, err
	}
	return core.Record{
		Collection: row.SK,
		ID:         id,
		Ordering:   row.Data,
		Payload:    row.Document,
	}, nil
}

// IDFromPartitionKey strips the collection prefix from a row partition key.
func IDFromPartitionKey(pk, collection string) (string, error) {
	prefix := collection + core.FieldSeparator
	if !strings.HasPrefix(pk, prefix) || len(pk) == len(prefix) {
		return "", fmt.Errorf("%w: partition key %q does not belong to collection %q", core.ErrEncoding, pk, collection)
	}
	return pk[len(prefix):], nil
}
