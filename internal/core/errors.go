package core

import "errors"

var (
	// ErrNotFound is returned when a record, collection, index or aggregation is absent.
	ErrNotFound = errors.New("not found")

	// ErrInvalidQuery is returned when a predicate cannot be served by any known index,
	// or when a conjunction is malformed.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrAggregationTargetMissing is returned when the target field of an aggregation is
	// absent or non-numeric on a record the aggregation must process.
	ErrAggregationTargetMissing = errors.New("aggregation target missing")

	// ErrEncoding is returned when a physical row cannot be encoded or decoded.
	ErrEncoding = errors.New("encoding error")

	// ErrInvalidRecord is returned when a document or collection definition is rejected.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrStorageFailure is returned when the underlying driver fails an operation.
	ErrStorageFailure = errors.New("storage failure")
)
