package stream

import (
	"errors"
	"fmt"
	"time"

	"github.com/rzpsarthak13/dynamoplus/internal/core"
)

var (
	// ErrQueueClosed is returned when trying to use a closed queue.
	ErrQueueClosed = errors.New("change queue is closed")

	// ErrQueueFull is returned when a bounded queue cannot accept more events.
	ErrQueueFull = errors.New("change queue is full")

	// ErrInvalidEvent is returned when an incomplete change event is enqueued.
	ErrInvalidEvent = errors.New("invalid change event")
)

const defaultBatchSize = 100

// prepare validates an event and stamps it with the current time when unset.
func prepare(event *core.ChangeEvent) error {
	if event == nil {
		return ErrInvalidEvent
	}
	if event.Collection == "" {
		return fmt.Errorf("%w: collection is required", ErrInvalidEvent)
	}
	if event.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidEvent)
	}
	switch event.Operation {
	case core.OperationCreate, core.OperationUpdate, core.OperationDelete:
	default:
		return fmt.Errorf("%w: unknown operation %q", ErrInvalidEvent, event.Operation)
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	return nil
}
