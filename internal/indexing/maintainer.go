package indexing

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/rzpsarthak13/dynamoplus/internal/codec"
	"github.com/rzpsarthak13/dynamoplus/internal/core"
)

// Plan is the set of index row operations one write requires.
// A physical row appears in at most one of the lists.
type Plan struct {
	ToDelete []codec.IndexRow
	ToUpdate []codec.IndexRow
	ToCreate []codec.IndexRow
}

// Empty reports whether the plan has no operations.
func (p Plan) Empty() bool {
	return len(p.ToDelete) == 0 && len(p.ToUpdate) == 0 && len(p.ToCreate) == 0
}

// Size returns the number of row operations in the plan.
func (p Plan) Size() int {
	return len(p.ToDelete) + len(p.ToUpdate) + len(p.ToCreate)
}

type operation int

const (
	opNone operation = iota
	opCreate
	opUpdate
	opDelete
)

// Maintainer keeps index rows in step with primary writes.
type Maintainer struct {
	driver core.StorageDriver
}

// NewMaintainer creates a maintainer applying plans through driver.
func NewMaintainer(driver core.StorageDriver) *Maintainer {
	return &Maintainer{driver: driver}
}

// Plan diffs two versions of a record and decides, per index, whether its row must be
// deleted, rewritten or created. Either version may be nil (insert or delete).
func (m *Maintainer) Plan(collection *core.Collection, indexes []core.Index, oldRecord, newRecord *core.Record) Plan {
	var oldDoc, newDoc map[string]interface{}
	if oldRecord != nil {
		oldDoc = oldRecord.Payload
	}
	if newRecord != nil {
		newDoc = newRecord.Payload
	}
	changes := Diff(oldDoc, newDoc)

	var plan Plan
	if changes.Empty() {
		return plan
	}

	for _, index := range indexes {
		var oldRow, newRow codec.IndexRow
		var oldOK, newOK bool
		if oldRecord != nil {
			oldRow, oldOK = codec.EncodeIndexRow(index, collection, *oldRecord)
		}
		if newRecord != nil {
			newRow, newOK = codec.EncodeIndexRow(index, collection, *newRecord)
		}

		op := opNone
		promote := func(candidate operation) {
			if candidate > op {
				op = candidate
			}
		}

		for path := range changes.Removed {
			if !affects(index, path) {
				continue
			}
			switch {
			case touchesCondition(index, path) && oldOK:
				promote(opDelete)
			case !touchesCondition(index, path) && newOK:
				promote(opUpdate)
			case oldOK && !newOK:
				promote(opDelete)
			}
		}
		for path := range changes.Changed {
			if !affects(index, path) {
				continue
			}
			switch {
			case newOK:
				promote(opUpdate)
			case oldOK:
				promote(opDelete)
			}
		}
		for path := range changes.Added {
			if affects(index, path) && newOK {
				promote(opCreate)
			}
		}

		switch op {
		case opDelete:
			plan.ToDelete = append(plan.ToDelete, oldRow)
		case opUpdate:
			plan.ToUpdate = append(plan.ToUpdate, newRow)
		case opCreate:
			plan.ToCreate = append(plan.ToCreate, newRow)
		}
	}
	return plan
}

// Apply executes a plan: deletes, then updates, then creates. It stops at the first
// failure; rows already written stay written.
func (m *Maintainer) Apply(ctx context.Context, plan Plan) error {
	for _, row := range plan.ToDelete {
		physical := row.Row()
		if err := m.driver.Delete(ctx, physical.PK, physical.SK); err != nil {
			return fmt.Errorf("failed to delete index row %s/%s: %w", physical.PK, physical.SK, err)
		}
	}
	for _, row := range plan.ToUpdate {
		if err := m.driver.Put(ctx, row.Row()); err != nil {
			return fmt.Errorf("failed to update index row %s/%s: %w", row.Row().PK, row.Index, err)
		}
	}
	for _, row := range plan.ToCreate {
		if err := m.driver.Put(ctx, row.Row()); err != nil {
			return fmt.Errorf("failed to create index row %s/%s: %w", row.Row().PK, row.Index, err)
		}
	}
	if !plan.Empty() {
		log.Printf("[INDEXING] Applied plan: %d deleted, %d updated, %d created",
			len(plan.ToDelete), len(plan.ToUpdate), len(plan.ToCreate))
	}
	return nil
}

// affects reports whether a change at path concerns the index.
func affects(index core.Index, path string) bool {
	if index.ReadOptimized() {
		return true
	}
	if index.OrderingKey != "" && pathsIntersect(index.OrderingKey, path) {
		return true
	}
	return touchesCondition(index, path)
}

func touchesCondition(index core.Index, path string) bool {
	for _, condition := range index.Conditions {
		if pathsIntersect(condition, path) {
			return true
		}
	}
	return false
}

// pathsIntersect reports whether two paths are equal or one is a dot-prefix of the other.
func pathsIntersect(a, b string) bool {
	if a == b {
		return true
	}
	return strings.HasPrefix(a, b+".") || strings.HasPrefix(b, a+".")
}
