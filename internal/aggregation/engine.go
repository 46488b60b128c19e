package aggregation

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/rzpsarthak13/dynamoplus/internal/core"
	"github.com/rzpsarthak13/dynamoplus/internal/query"
)

// Engine maintains aggregation rows incrementally from record writes.
type Engine struct {
	driver core.StorageDriver
}

// NewEngine creates an aggregation engine writing through driver.
func NewEngine(driver core.StorageDriver) *Engine {
	return &Engine{driver: driver}
}

// Process applies every configuration to one write. A configuration whose target is
// missing is logged and skipped; any other failure stops processing.
func (e *Engine) Process(ctx context.Context, configs []core.AggregationConfiguration, collection *core.Collection, oldRecord, newRecord map[string]interface{}) error {
	for _, config := range configs {
		_, err := e.Apply(ctx, config, collection, oldRecord, newRecord)
		if errors.Is(err, core.ErrAggregationTargetMissing) {
			log.Printf("[AGGREGATION] Skipping %s: %v", config.Name(), err)
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to apply aggregation %s: %w", config.Name(), err)
		}
	}
	return nil
}

// Apply updates the rows of one configuration for a write. old is nil on insert and
// new is nil on delete. It returns the updated aggregate, or nil when the write does
// not concern the configuration.
func (e *Engine) Apply(ctx context.Context, config core.AggregationConfiguration, collection *core.Collection, oldRecord, newRecord map[string]interface{}) (*core.Aggregation, error) {
	if oldRecord == nil && newRecord == nil {
		return nil, nil
	}

	trigger := core.TriggerFor(oldRecord, newRecord)
	if !config.Triggered(trigger) {
		return nil, nil
	}

	subject := newRecord
	if trigger == core.TriggerDelete {
		subject = oldRecord
	}
	if config.Matches != nil && !query.Match(subject, config.Matches) {
		return nil, nil
	}

	switch config.Type {
	case core.AggregationCount:
		return e.count(ctx, config, trigger)
	case core.AggregationSum:
		delta, err := sumDelta(config, trigger, oldRecord, newRecord)
		if err != nil {
			return nil, err
		}
		return e.increment(ctx, core.AggregationSum, config, delta)
	case core.AggregationAvg:
		return e.avg(ctx, config, trigger, oldRecord, newRecord)
	default:
		return nil, fmt.Errorf("%w: unsupported aggregation type %q", core.ErrInvalidQuery, config.Type)
	}
}

func (e *Engine) count(ctx context.Context, config core.AggregationConfiguration, trigger core.Trigger) (*core.Aggregation, error) {
	switch trigger {
	case core.TriggerInsert:
		return e.increment(ctx, core.AggregationCount, config, 1)
	case core.TriggerDelete:
		return e.increment(ctx, core.AggregationCount, config, -1)
	default:
		return nil, nil
	}
}

// avg keeps count and sum atomically, then overwrites the average with a plain put.
func (e *Engine) avg(ctx context.Context, config core.AggregationConfiguration, trigger core.Trigger, oldRecord, newRecord map[string]interface{}) (*core.Aggregation, error) {
	delta, err := sumDelta(config, trigger, oldRecord, newRecord)
	if err != nil {
		return nil, err
	}

	countDelta := 0.0
	switch trigger {
	case core.TriggerInsert:
		countDelta = 1
	case core.TriggerDelete:
		countDelta = -1
	default:
		_, hadOld := target(config, oldRecord)
		_, hasNew := target(config, newRecord)
		switch {
		case hasNew && !hadOld:
			countDelta = 1
		case hadOld && !hasNew:
			countDelta = -1
		}
	}

	count, err := e.increment(ctx, core.AggregationCount, config, countDelta)
	if err != nil {
		return nil, err
	}
	sum, err := e.increment(ctx, core.AggregationSum, config, delta)
	if err != nil {
		return nil, err
	}

	value := 0.0
	if count.Value != 0 {
		value = sum.Value / count.Value
	}

	name := RowName(core.AggregationAvg, config)
	key := RowKey(name)
	err = e.driver.Put(ctx, core.Row{
		PK:       key.PK,
		SK:       key.SK,
		Data:     key.Data,
		Document: map[string]interface{}{valueField: value},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store %s: %w", name, err)
	}
	return &core.Aggregation{Name: name, ConfigurationName: config.Name(), Type: core.AggregationAvg, Value: value}, nil
}

func (e *Engine) increment(ctx context.Context, t core.AggregationType, config core.AggregationConfiguration, delta float64) (*core.Aggregation, error) {
	name := RowName(t, config)
	value, err := e.driver.AtomicIncrement(ctx, RowKey(name), valueField, delta)
	if err != nil {
		return nil, fmt.Errorf("failed to increment %s: %w", name, err)
	}
	return &core.Aggregation{Name: name, ConfigurationName: config.Name(), Type: t, Value: value}, nil
}

// sumDelta is the change a write brings to the sum of the target field.
// A target appearing or disappearing on update counts as an add or a remove.
func sumDelta(config core.AggregationConfiguration, trigger core.Trigger, oldRecord, newRecord map[string]interface{}) (float64, error) {
	oldValue, hadOld := target(config, oldRecord)
	newValue, hasNew := target(config, newRecord)

	switch trigger {
	case core.TriggerInsert:
		if !hasNew {
			return 0, missingTarget(config)
		}
		return newValue, nil
	case core.TriggerDelete:
		if !hadOld {
			return 0, missingTarget(config)
		}
		return -oldValue, nil
	default:
		switch {
		case hadOld && hasNew:
			return newValue - oldValue, nil
		case hasNew:
			return newValue, nil
		case hadOld:
			return -oldValue, nil
		default:
			return 0, missingTarget(config)
		}
	}
}

func target(config core.AggregationConfiguration, document map[string]interface{}) (float64, bool) {
	raw, ok := core.Lookup(document, config.TargetField)
	if !ok {
		return 0, false
	}
	return core.ToFloat(raw)
}

func missingTarget(config core.AggregationConfiguration) error {
	return fmt.Errorf("%w: %s has no numeric %q", core.ErrAggregationTargetMissing, config.Collection, config.TargetField)
}

// Read returns the current value of an aggregation row.
func (e *Engine) Read(ctx context.Context, name string) (*core.Aggregation, error) {
	t, configName, ok := ParseRowName(name)
	if !ok {
		return nil, fmt.Errorf("%w: aggregation %s", core.ErrNotFound, name)
	}

	key := RowKey(name)
	row, err := e.driver.Get(ctx, key.PK, key.SK)
	if err != nil {
		return nil, fmt.Errorf("failed to read aggregation %s: %w", name, err)
	}
	if row == nil {
		return nil, fmt.Errorf("%w: aggregation %s", core.ErrNotFound, name)
	}

	value, _ := core.ToFloat(row.Document[valueField])
	return &core.Aggregation{Name: name, ConfigurationName: configName, Type: t, Value: value}, nil
}
