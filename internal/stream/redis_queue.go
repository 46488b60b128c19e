package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/rzpsarthak13/dynamoplus/internal/core"
)

// ListOperations are the Redis list primitives the queue is built on.
// kvstore.RedisStore implements them.
type ListOperations interface {
	// ListPush appends a value to a list (RPUSH).
	ListPush(ctx context.Context, key string, value []byte) error

	// ListPop removes and returns the first element of a list (LPOP), or nil when empty.
	ListPop(ctx context.Context, key string) ([]byte, error)

	// ListLength returns the length of a list (LLEN).
	ListLength(ctx context.Context, key string) (int64, error)
}

// RedisQueue is a change queue stored in a Redis list, shared by every process that
// points at the same key.
type RedisQueue struct {
	ops    ListOperations
	key    string
	mu     sync.RWMutex
	closed bool
}

// NewRedisQueue creates a queue on the list at key.
func NewRedisQueue(ops ListOperations, key string) *RedisQueue {
	if key == "" {
		key = "dynamoplus:changes"
	}
	return &RedisQueue{ops: ops, key: key}
}

func (q *RedisQueue) isClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

// Enqueue serializes the event as JSON and appends it to the list.
func (q *RedisQueue) Enqueue(ctx context.Context, event *core.ChangeEvent) error {
	if q.isClosed() {
		return ErrQueueClosed
	}
	if err := prepare(event); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal change event: %w", err)
	}
	if err := q.ops.ListPush(ctx, q.key, data); err != nil {
		return fmt.Errorf("failed to enqueue change event: %w", err)
	}
	return nil
}

// Dequeue pops up to batchSize events. Undecodable entries are dropped.
func (q *RedisQueue) Dequeue(ctx context.Context, batchSize int) ([]*core.ChangeEvent, error) {
	if q.isClosed() {
		return nil, ErrQueueClosed
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	events := make([]*core.ChangeEvent, 0, batchSize)
	for i := 0; i < batchSize; i++ {
		data, err := q.ops.ListPop(ctx, q.key)
		if err != nil {
			if len(events) == 0 {
				return nil, fmt.Errorf("failed to dequeue change events: %w", err)
			}
			break
		}
		if data == nil {
			break
		}

		var event core.ChangeEvent
		if err := json.Unmarshal(data, &event); err != nil {
			log.Printf("[REDIS] WARNING: Dropping undecodable change event: %v", err)
			continue
		}
		events = append(events, &event)
	}
	return events, nil
}

// Size returns the length of the list, or 0 when it cannot be read.
func (q *RedisQueue) Size() int {
	if q.isClosed() {
		return 0
	}
	length, err := q.ops.ListLength(context.Background(), q.key)
	if err != nil {
		return 0
	}
	return int(length)
}

// Close closes the queue. The list and the connection are left untouched.
func (q *RedisQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}

var _ core.ChangeQueue = (*RedisQueue)(nil)
