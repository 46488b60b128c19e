package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/rzpsarthak13/dynamoplus/internal/core"
)

// KafkaQueueConfig holds configuration for the Kafka change queue.
type KafkaQueueConfig struct {
	Brokers         []string
	Topic           string
	GroupID         string
	BatchSize       int
	BatchTimeout    time.Duration
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	RequiredAcks    int // 0, 1, or -1 (all)
	MaxMessageBytes int
	MinBytes        int
	MaxBytes        int
	MaxWait         time.Duration
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaQueue publishes change events to a Kafka topic, keyed by collection so that the
// events of one collection stay ordered within a partition, and consumes them through a
// consumer group.
type KafkaQueue struct {
	writer      messageWriter
	reader      messageReader
	topic       string
	readTimeout time.Duration
	mu          sync.RWMutex
	closed      bool
	size        int // approximate
}

// NewKafkaQueue creates the producer and the consumer group reader of the topic.
func NewKafkaQueue(config KafkaQueueConfig) (*KafkaQueue, error) {
	if len(config.Brokers) == 0 {
		return nil, fmt.Errorf("at least one Kafka broker is required")
	}
	if config.Topic == "" {
		return nil, fmt.Errorf("Kafka topic is required")
	}
	if config.GroupID == "" {
		config.GroupID = "dynamoplus-indexer"
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = 5 * time.Second
	}

	log.Printf("[KAFKA] Initializing change queue on topic %s (brokers: %v, group: %s)", config.Topic, config.Brokers, config.GroupID)

	writer := &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Topic:        config.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    config.BatchSize,
		BatchTimeout: config.BatchTimeout,
		WriteTimeout: config.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(config.RequiredAcks),
		BatchBytes:   int64(config.MaxMessageBytes),
		MaxAttempts:  3,
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     config.Brokers,
		Topic:       config.Topic,
		GroupID:     config.GroupID,
		MinBytes:    config.MinBytes,
		MaxBytes:    config.MaxBytes,
		MaxWait:     config.MaxWait,
		StartOffset: kafka.FirstOffset,
	})

	return newKafkaQueue(writer, reader, config.Topic, config.ReadTimeout), nil
}

func newKafkaQueue(writer messageWriter, reader messageReader, topic string, readTimeout time.Duration) *KafkaQueue {
	return &KafkaQueue{
		writer:      writer,
		reader:      reader,
		topic:       topic,
		readTimeout: readTimeout,
	}
}

func (q *KafkaQueue) isClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

// Enqueue produces the event to the topic.
func (q *KafkaQueue) Enqueue(ctx context.Context, event *core.ChangeEvent) error {
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

	message := kafka.Message{
		Key:   []byte(event.Collection),
		Value: data,
		Time:  event.Timestamp,
		Headers: []kafka.Header{
			{Key: "operation", Value: []byte(event.Operation)},
			{Key: "collection", Value: []byte(event.Collection)},
		},
	}

	start := time.Now()
	if err := q.writer.WriteMessages(ctx, message); err != nil {
		log.Printf("[KAFKA] ERROR: Failed to produce %s %s/%s to %s: %v", event.Operation, event.Collection, event.ID, q.topic, err)
		return fmt.Errorf("failed to write message to Kafka: %w", err)
	}

	q.mu.Lock()
	q.size++
	q.mu.Unlock()

	log.Printf("[KAFKA] Produced %s %s/%s to %s (%d bytes, %v)", event.Operation, event.Collection, event.ID, q.topic, len(data), time.Since(start))
	return nil
}

// Dequeue consumes up to batchSize events. Offsets are committed once the batch is read.
// An empty batch is returned when no message arrives within the read timeout.
func (q *KafkaQueue) Dequeue(ctx context.Context, batchSize int) ([]*core.ChangeEvent, error) {
	if q.isClosed() {
		return nil, ErrQueueClosed
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	events := make([]*core.ChangeEvent, 0, batchSize)
	messages := make([]kafka.Message, 0, batchSize)
	for i := 0; i < batchSize; i++ {
		readCtx, cancel := context.WithTimeout(ctx, q.readTimeout)
		message, err := q.reader.FetchMessage(readCtx)
		cancel()
		if err != nil {
			if !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
				log.Printf("[KAFKA] ERROR: Failed to read from %s: %v", q.topic, err)
			}
			break
		}
		messages = append(messages, message)

		var event core.ChangeEvent
		if err := json.Unmarshal(message.Value, &event); err != nil {
			log.Printf("[KAFKA] WARNING: Skipping undecodable message (partition %d, offset %d): %v", message.Partition, message.Offset, err)
			continue
		}
		events = append(events, &event)
	}

	if len(messages) > 0 {
		if err := q.reader.CommitMessages(ctx, messages...); err != nil {
			log.Printf("[KAFKA] WARNING: Failed to commit %d offsets on %s: %v", len(messages), q.topic, err)
		}
		q.mu.Lock()
		q.size -= len(events)
		if q.size < 0 {
			q.size = 0
		}
		q.mu.Unlock()
		log.Printf("[KAFKA] Consumed %d change events from %s", len(events), q.topic)
	}
	return events, nil
}

// Size returns the approximate number of events produced by this process and not yet consumed.
func (q *KafkaQueue) Size() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.size
}

// Close closes the producer and the consumer.
func (q *KafkaQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true

	if err := q.writer.Close(); err != nil {
		log.Printf("[KAFKA] ERROR: Failed to close writer: %v", err)
	}
	if err := q.reader.Close(); err != nil {
		log.Printf("[KAFKA] ERROR: Failed to close reader: %v", err)
		return err
	}
	return nil
}

var _ core.ChangeQueue = (*KafkaQueue)(nil)
