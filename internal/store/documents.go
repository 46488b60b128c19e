package store

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/rzpsarthak13/dynamoplus/internal/codec"
	"github.com/rzpsarthak13/dynamoplus/internal/core"
)

// Get reads a document by id.
func (s *Store) Get(ctx context.Context, collectionName, id string) (*core.Record, error) {
	collection, err := s.catalog.GetCollection(ctx, collectionName)
	if err != nil {
		return nil, err
	}
	record, err := s.read(ctx, collection, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("%w: %s %q", core.ErrNotFound, collectionName, id)
	}
	return record, nil
}

// Create stores a new document. The id is read from the collection id key, or generated
// when the collection auto-generates ids. Writing over an existing id replaces that
// document and is maintained as an update.
func (s *Store) Create(ctx context.Context, collectionName string, payload map[string]interface{}) (*core.Record, error) {
	collection, err := s.catalog.GetCollection(ctx, collectionName)
	if err != nil {
		return nil, err
	}

	document := copyDocument(payload)
	id, err := documentID(collection, document)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Validate(collection, document); err != nil {
		return nil, err
	}

	old, err := s.read(ctx, collection, id)
	if err != nil {
		return nil, err
	}
	record := newRecord(collection, id, document)
	if err := s.put(ctx, record); err != nil {
		return nil, err
	}

	operation := core.OperationCreate
	if old != nil {
		operation = core.OperationUpdate
	}
	if err := s.propagate(ctx, collection, operation, old, record); err != nil {
		return record, err
	}
	return record, nil
}

// Update replaces a document. The payload is the full new document; its id key, when
// present, must match id.
func (s *Store) Update(ctx context.Context, collectionName, id string, payload map[string]interface{}) (*core.Record, error) {
	collection, err := s.catalog.GetCollection(ctx, collectionName)
	if err != nil {
		return nil, err
	}

	document := copyDocument(payload)
	if raw, exists := document[collection.IDKey]; exists {
		if given, ok := core.FormatValue(raw); !ok || given != id {
			return nil, fmt.Errorf("%w: id key '%s' cannot change from %q", ErrInvalidRecord, collection.IDKey, id)
		}
	}
	document[collection.IDKey] = id
	if err := s.validator.Validate(collection, document); err != nil {
		return nil, err
	}

	old, err := s.read(ctx, collection, id)
	if err != nil {
		return nil, err
	}
	if old == nil {
		return nil, fmt.Errorf("%w: %s %q", core.ErrNotFound, collectionName, id)
	}

	record := newRecord(collection, id, document)
	if err := s.put(ctx, record); err != nil {
		return nil, err
	}
	if err := s.propagate(ctx, collection, core.OperationUpdate, old, record); err != nil {
		return record, err
	}
	return record, nil
}

// Delete removes a document together with its index rows.
func (s *Store) Delete(ctx context.Context, collectionName, id string) error {
	collection, err := s.catalog.GetCollection(ctx, collectionName)
	if err != nil {
		return err
	}
	old, err := s.read(ctx, collection, id)
	if err != nil {
		return err
	}
	if old == nil {
		return fmt.Errorf("%w: %s %q", core.ErrNotFound, collectionName, id)
	}

	pk, sk := codec.PrimaryKey(collection.Name, id)
	if err := s.driver.Delete(ctx, pk, sk); err != nil {
		return fmt.Errorf("%w: failed to delete %s %s: %v", core.ErrStorageFailure, collection.Name, id, err)
	}
	return s.propagate(ctx, collection, core.OperationDelete, old, nil)
}

// ApplyChange maintains the index rows and aggregations of one primary write.
// It is called inline in sync mode and by the change queue consumer in async mode.
func (s *Store) ApplyChange(ctx context.Context, event *core.ChangeEvent) error {
	if event == nil {
		return nil
	}
	collection, err := s.catalog.GetCollection(ctx, event.Collection)
	if err != nil {
		return err
	}
	var old, current *core.Record
	if event.Old != nil {
		old = newRecord(collection, event.ID, event.Old)
	}
	if event.New != nil {
		current = newRecord(collection, event.ID, event.New)
	}
	return s.maintain(ctx, collection, old, current)
}

func (s *Store) maintain(ctx context.Context, collection *core.Collection, old, current *core.Record) error {
	indexes, err := s.catalog.ListIndexes(ctx, collection.Name)
	if err != nil {
		return fmt.Errorf("failed to list indexes of %s: %w", collection.Name, err)
	}
	plan := s.maintainer.Plan(collection, indexes, old, current)
	if err := s.maintainer.Apply(ctx, plan); err != nil {
		return err
	}

	configs, err := s.catalog.ListAggregationConfigurations(ctx, collection.Name)
	if err != nil {
		return fmt.Errorf("failed to list aggregations of %s: %w", collection.Name, err)
	}
	var oldDoc, newDoc map[string]interface{}
	if old != nil {
		oldDoc = old.Payload
	}
	if current != nil {
		newDoc = current.Payload
	}
	return s.aggregations.Process(ctx, configs, collection, oldDoc, newDoc)
}

// propagate runs or enqueues the work that follows a durable primary write.
func (s *Store) propagate(ctx context.Context, collection *core.Collection, operation core.OperationType, old, current *core.Record) error {
	event := &core.ChangeEvent{
		Collection: collection.Name,
		Operation:  operation,
		Timestamp:  time.Now(),
	}
	if old != nil {
		event.ID = old.ID
		event.Old = old.Payload
	}
	if current != nil {
		event.ID = current.ID
		event.New = current.Payload
	}

	if s.async {
		if err := s.queue.Enqueue(ctx, event); err != nil {
			return fmt.Errorf("failed to enqueue change of %s %s: %w", collection.Name, event.ID, err)
		}
		return nil
	}

	if err := s.maintain(ctx, collection, old, current); err != nil {
		log.Printf("[STORE] ERROR: %s %s/%s is durable but its indexes or aggregations are stale: %v", operation, collection.Name, event.ID, err)
		return err
	}
	if s.queue != nil {
		if err := s.queue.Enqueue(ctx, event); err != nil {
			log.Printf("[STORE] WARNING: Failed to publish change of %s/%s: %v", collection.Name, event.ID, err)
		}
	}
	return nil
}

func (s *Store) read(ctx context.Context, collection *core.Collection, id string) (*core.Record, error) {
	pk, sk := codec.PrimaryKey(collection.Name, id)
	row, err := s.driver.Get(ctx, pk, sk)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s %s: %v", core.ErrStorageFailure, collection.Name, id, err)
	}
	if row == nil {
		return nil, nil
	}
	record, err := codec.DecodeEntity(*row)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *Store) put(ctx context.Context, record *core.Record) error {
	if err := s.driver.Put(ctx, codec.EncodeEntity(*record)); err != nil {
		return fmt.Errorf("%w: failed to write %s %s: %v", core.ErrStorageFailure, record.Collection, record.ID, err)
	}
	return nil
}

// newRecord addresses a document of a collection, deriving its ordering value.
func newRecord(collection *core.Collection, id string, document map[string]interface{}) *core.Record {
	record := &core.Record{Collection: collection.Name, ID: id, Payload: document}
	if collection.OrderingKey != "" {
		if raw, ok := core.Lookup(document, collection.OrderingKey); ok {
			if ordering, ok := core.FormatValue(raw); ok {
				record.Ordering = ordering
			}
		}
	}
	return record
}

// documentID reads the id of a new document, generating it when the collection allows.
func documentID(collection *core.Collection, document map[string]interface{}) (string, error) {
	raw, exists := document[collection.IDKey]
	if !exists || raw == nil || raw == "" {
		if !collection.AutoGenerateID {
			return "", fmt.Errorf("%w: id key '%s' is required", ErrInvalidRecord, collection.IDKey)
		}
		id := uuid.NewString()
		document[collection.IDKey] = id
		return id, nil
	}
	id, ok := core.FormatValue(raw)
	if !ok {
		return "", fmt.Errorf("%w: id key '%s' must be a scalar, got %T", ErrInvalidRecord, collection.IDKey, raw)
	}
	return id, nil
}

func copyDocument(payload map[string]interface{}) map[string]interface{} {
	document := make(map[string]interface{}, len(payload)+1)
	for k, v := range payload {
		document[k] = v
	}
	return document
}
