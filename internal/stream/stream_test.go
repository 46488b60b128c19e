package stream

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzpsarthak13/dynamoplus/internal/core"
	"github.com/rzpsarthak13/dynamoplus/internal/kvstore"
)

func event(id string) *core.ChangeEvent {
	return &core.ChangeEvent{
		Collection: "orders",
		Operation:  core.OperationCreate,
		ID:         id,
		New:        map[string]interface{}{"id": id, "amount": 10.0},
	}
}

func queues(t *testing.T) map[string]core.ChangeQueue {
	t.Helper()
	topic := &fakeTopic{}
	return map[string]core.ChangeQueue{
		"memory": NewMemoryQueue(10),
		"redis":  NewRedisQueue(newFakeLists(), "changes"),
		"kafka":  newKafkaQueue(topic, topic, "changes", 10*time.Millisecond),
	}
}

func TestChangeQueue_Contract(t *testing.T) {
	for name, q := range queues(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			for _, id := range []string{"1", "2", "3"} {
				require.NoError(t, q.Enqueue(ctx, event(id)))
			}
			assert.Equal(t, 3, q.Size())

			batch, err := q.Dequeue(ctx, 2)
			require.NoError(t, err)
			require.Len(t, batch, 2)
			assert.Equal(t, "1", batch[0].ID)
			assert.Equal(t, "2", batch[1].ID)
			assert.False(t, batch[0].Timestamp.IsZero())
			assert.Equal(t, 10.0, batch[0].New["amount"])

			batch, err = q.Dequeue(ctx, 10)
			require.NoError(t, err)
			require.Len(t, batch, 1)
			assert.Equal(t, "3", batch[0].ID)

			batch, err = q.Dequeue(ctx, 10)
			require.NoError(t, err)
			assert.Empty(t, batch)
			assert.Equal(t, 0, q.Size())

			t.Run("invalid events", func(t *testing.T) {
				assert.True(t, errors.Is(q.Enqueue(ctx, nil), ErrInvalidEvent))
				assert.True(t, errors.Is(q.Enqueue(ctx, &core.ChangeEvent{ID: "1", Operation: core.OperationCreate}), ErrInvalidEvent))
				assert.True(t, errors.Is(q.Enqueue(ctx, &core.ChangeEvent{Collection: "orders", Operation: core.OperationCreate}), ErrInvalidEvent))
				assert.True(t, errors.Is(q.Enqueue(ctx, &core.ChangeEvent{Collection: "orders", ID: "1", Operation: "UPSERT"}), ErrInvalidEvent))
			})

			require.NoError(t, q.Close())
			require.NoError(t, q.Close())
			assert.True(t, errors.Is(q.Enqueue(ctx, event("4")), ErrQueueClosed))
		})
	}
}

func TestMemoryQueue_Full(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(1)
	require.NoError(t, q.Enqueue(ctx, event("1")))
	assert.True(t, errors.Is(q.Enqueue(ctx, event("2")), ErrQueueFull))

	require.NoError(t, q.Close())
	batch, err := q.Dequeue(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, batch, 1)
}

func TestRedisQueue_DropsUndecodableEntries(t *testing.T) {
	ctx := context.Background()
	lists := newFakeLists()
	q := NewRedisQueue(lists, "")
	require.NoError(t, lists.ListPush(ctx, "dynamoplus:changes", []byte("not json")))
	require.NoError(t, q.Enqueue(ctx, event("1")))

	batch, err := q.Dequeue(ctx, 10)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, "1", batch[0].ID)

	lists.fail = true
	_, err = q.Dequeue(ctx, 10)
	assert.Error(t, err)
	assert.Equal(t, 0, q.Size())
}

func TestKafkaQueue_KeysByCollectionAndCommits(t *testing.T) {
	ctx := context.Background()
	topic := &fakeTopic{}
	q := newKafkaQueue(topic, topic, "changes", 10*time.Millisecond)

	require.NoError(t, q.Enqueue(ctx, event("1")))
	topic.mu.Lock()
	topic.messages = append(topic.messages, kafka.Message{Value: []byte("{")})
	topic.mu.Unlock()

	msg := topic.messages[0]
	assert.Equal(t, "orders", string(msg.Key))
	assert.Equal(t, "CREATE", string(msg.Headers[0].Value))

	batch, err := q.Dequeue(ctx, 10)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, 2, topic.committed)

	topic.failWrites = true
	assert.Error(t, q.Enqueue(ctx, event("2")))
}

type fakeLists struct {
	mu    sync.Mutex
	lists map[string][][]byte
	fail  bool
}

func newFakeLists() *fakeLists {
	return &fakeLists{lists: make(map[string][][]byte)}
}

func (f *fakeLists) ListPush(ctx context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists[key] = append(f.lists[key], value)
	return nil
}

func (f *fakeLists) ListPop(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errors.New("connection reset")
	}
	list := f.lists[key]
	if len(list) == 0 {
		return nil, nil
	}
	f.lists[key] = list[1:]
	return list[0], nil
}

func (f *fakeLists) ListLength(ctx context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return 0, errors.New("connection reset")
	}
	return int64(len(f.lists[key])), nil
}

// fakeTopic is an in-memory single-partition topic acting as both producer and consumer.
type fakeTopic struct {
	mu         sync.Mutex
	messages   []kafka.Message
	offset     int
	committed  int
	failWrites bool
}

func (f *fakeTopic) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return errors.New("leader not available")
	}
	for _, m := range msgs {
		m.Offset = int64(len(f.messages))
		f.messages = append(f.messages, m)
	}
	return nil
}

func (f *fakeTopic) FetchMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	if f.offset < len(f.messages) {
		m := f.messages[f.offset]
		f.offset++
		f.mu.Unlock()
		return m, nil
	}
	f.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (f *fakeTopic) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committed += len(msgs)
	return nil
}

func (f *fakeTopic) Close() error { return nil }

var _ ListOperations = (*kvstore.RedisStore)(nil)
