package core

import (
	"context"
)

// Row is the physical shape stored in the base table and projected by the
// sk-data-index secondary projection.
type Row struct {
	// PK is the partition key of the base table ("collection#id").
	PK string `msgpack:"pk" json:"pk"`

	// SK is the sort key of the base table. It doubles as the partition key of the projection.
	SK string `msgpack:"sk" json:"sk"`

	// Data is the sort value of the projection.
	Data string `msgpack:"data" json:"data"`

	// Document is the payload carried by the row. It may be nil for key-only rows.
	Document map[string]interface{} `msgpack:"document" json:"document,omitempty"`
}

// Key returns the full physical key of the row.
func (r Row) Key() Key {
	return Key{PK: r.PK, SK: r.SK, Data: r.Data}
}

// Key addresses a row in both the base table and the projection.
// It is used as the exclusive start key of a scan.
type Key struct {
	PK   string `json:"pk"`
	SK   string `json:"sk"`
	Data string `json:"data"`
}

// SortOp is the comparison applied to the projection sort value during a scan.
type SortOp string

const (
	// SortNone scans the whole partition.
	SortNone SortOp = ""
	// SortEq matches rows whose sort value equals the operand.
	SortEq SortOp = "EQ"
	// SortGt matches rows whose sort value is greater than the operand.
	SortGt SortOp = "GT"
	// SortGte matches rows whose sort value is greater than or equal to the operand.
	SortGte SortOp = "GTE"
	// SortLt matches rows whose sort value is less than the operand.
	SortLt SortOp = "LT"
	// SortLte matches rows whose sort value is less than or equal to the operand.
	SortLte SortOp = "LTE"
	// SortBeginsWith matches rows whose sort value starts with the operand.
	SortBeginsWith SortOp = "BEGINS_WITH"
	// SortBetween matches rows whose sort value lies in [Operand, OperandTo].
	SortBetween SortOp = "BETWEEN"
)

// ScanDescriptor is the compiled, physical form of a logical predicate.
type ScanDescriptor struct {
	// Partition is the projection partition value (the sk of the rows to scan).
	Partition string

	// Op is the comparison applied to the projection sort value.
	Op SortOp

	// Operand is the comparison value. For SortBetween it is the lower bound.
	Operand string

	// OperandTo is the upper bound for SortBetween.
	OperandTo string
}

// Matches reports whether a projection sort value satisfies the descriptor.
func (d ScanDescriptor) Matches(data string) bool {
	switch d.Op {
	case SortNone:
		return true
	case SortEq:
		return data == d.Operand
	case SortGt:
		return data > d.Operand
	case SortGte:
		return data >= d.Operand
	case SortLt:
		return data < d.Operand
	case SortLte:
		return data <= d.Operand
	case SortBeginsWith:
		return len(data) >= len(d.Operand) && data[:len(d.Operand)] == d.Operand
	case SortBetween:
		return data >= d.Operand && data <= d.OperandTo
	default:
		return false
	}
}

// StorageDriver defines the raw primitives of the ordered key-value store
// underneath the document layer.
type StorageDriver interface {
	// Get retrieves a row by its base table key. Returns nil and no error if the row is absent.
	Get(ctx context.Context, pk, sk string) (*Row, error)

	// Put stores a row, replacing any row with the same (pk, sk).
	Put(ctx context.Context, row Row) error

	// Delete removes a row. Deleting an absent row is not an error.
	Delete(ctx context.Context, pk, sk string) error

	// Scan reads rows of one projection partition in descending sort value order.
	// exclusiveStart, when set, resumes right after that key. The returned key is
	// non-nil when the limit was reached and more rows may follow.
	Scan(ctx context.Context, descriptor ScanDescriptor, limit int, exclusiveStart *Key) ([]Row, *Key, error)

	// AtomicIncrement adds delta to the numeric document field of a row and returns the
	// value after the increment. The row is created when absent.
	AtomicIncrement(ctx context.Context, key Key, field string, delta float64) (float64, error)

	// Close releases the resources held by the driver.
	Close() error
}
