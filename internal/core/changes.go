package core

import (
	"context"
	"time"
)

// OperationType represents the type of a write applied to a collection.
type OperationType string

const (
	// OperationCreate represents an insert.
	OperationCreate OperationType = "CREATE"

	// OperationUpdate represents a replacement of an existing record.
	OperationUpdate OperationType = "UPDATE"

	// OperationDelete represents a removal.
	OperationDelete OperationType = "DELETE"
)

// ChangeEvent describes a primary write together with the record state before and after it.
// Index maintenance and aggregations can be derived from it alone.
type ChangeEvent struct {
	Collection string                 `json:"collection"`
	Operation  OperationType          `json:"operation"`
	ID         string                 `json:"id"`
	Old        map[string]interface{} `json:"old,omitempty"`
	New        map[string]interface{} `json:"new,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`

	// RetryCount tracks how many times applying this event has been retried.
	RetryCount int `json:"retry_count,omitempty"`
}

// ChangeQueue carries change events from the write path to their consumers.
type ChangeQueue interface {
	// Enqueue adds an event to the queue.
	Enqueue(ctx context.Context, event *ChangeEvent) error

	// Dequeue retrieves up to batchSize events. Returns an empty slice if none are available.
	Dequeue(ctx context.Context, batchSize int) ([]*ChangeEvent, error)

	// Size returns the current, possibly approximate, number of queued events.
	Size() int

	// Close closes the queue and releases resources.
	Close() error
}
