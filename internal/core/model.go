package core

import (
	"fmt"
	"strings"
)

// FieldSeparator joins the components of physical keys.
const FieldSeparator = "#"

// Record is a document of a collection together with its addressing information.
type Record struct {
	// Collection is the name of the collection the record belongs to.
	Collection string

	// ID is the value of the collection id key.
	ID string

	// Ordering is the sort value of the primary row. Empty means the id is used.
	Ordering string

	// Payload is the document itself.
	Payload map[string]interface{}
}

// AttributeType is the declared type of a collection attribute.
type AttributeType string

const (
	AttributeString  AttributeType = "STRING"
	AttributeNumber  AttributeType = "NUMBER"
	AttributeObject  AttributeType = "OBJECT"
	AttributeArray   AttributeType = "ARRAY"
	AttributeDate    AttributeType = "DATE"
	AttributeBoolean AttributeType = "BOOLEAN"
)

// AttributeConstraint restricts the values an attribute may hold.
type AttributeConstraint string

const (
	ConstraintNullable AttributeConstraint = "NULLABLE"
	ConstraintNotNull  AttributeConstraint = "NOT_NULL"
)

// Attribute describes one field of a collection schema.
type Attribute struct {
	Name        string                `json:"name" yaml:"name"`
	Type        AttributeType         `json:"type" yaml:"type"`
	Constraints []AttributeConstraint `json:"constraints,omitempty" yaml:"constraints,omitempty"`

	// Attributes describes the nested fields of an OBJECT attribute.
	Attributes []Attribute `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// NotNull reports whether the attribute carries the NOT_NULL constraint.
func (a Attribute) NotNull() bool {
	for _, c := range a.Constraints {
		if c == ConstraintNotNull {
			return true
		}
	}
	return false
}

// Names of the system collections sharing the single table with user collections.
const (
	SystemCollection            = "collection"
	SystemIndex                 = "index"
	SystemAggregation           = "aggregation"
	SystemAggregationDefinition = "aggregation_configuration"
)

var reservedCollections = map[string]bool{
	SystemCollection:            true,
	SystemIndex:                 true,
	SystemAggregation:           true,
	SystemAggregationDefinition: true,
}

// ValidateCollectionName rejects names that would share partitions with system rows or
// with index projections: reserved system names and names holding the key separator.
func ValidateCollectionName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: collection name cannot be empty", ErrInvalidRecord)
	case reservedCollections[name]:
		return fmt.Errorf("%w: collection name %q is reserved", ErrInvalidRecord, name)
	case strings.Contains(name, FieldSeparator):
		return fmt.Errorf("%w: collection name %q cannot contain %q", ErrInvalidRecord, name, FieldSeparator)
	}
	return nil
}

// Collection is the metadata of a collection.
type Collection struct {
	Name           string      `json:"name" yaml:"name"`
	IDKey          string      `json:"id_key" yaml:"id_key"`
	OrderingKey    string      `json:"ordering_key,omitempty" yaml:"ordering_key,omitempty"`
	Attributes     []Attribute `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	AutoGenerateID bool        `json:"auto_generate_id,omitempty" yaml:"auto_generate_id,omitempty"`
}

// IndexStrategy decides what an index row carries.
type IndexStrategy string

const (
	// IndexReadOptimized stores a full copy of the record in every index row.
	IndexReadOptimized IndexStrategy = "OPTIMIZE_READ"

	// IndexWriteOptimized stores only the key fields; reads re-fetch the record.
	IndexWriteOptimized IndexStrategy = "OPTIMIZE_WRITE"
)

// Index is a secondary index definition over an ordered list of field paths.
type Index struct {
	ID          string        `json:"id" yaml:"id"`
	Collection  string        `json:"collection_name" yaml:"collection_name"`
	Conditions  []string      `json:"conditions" yaml:"conditions"`
	Strategy    IndexStrategy `json:"index_configuration,omitempty" yaml:"index_configuration,omitempty"`
	OrderingKey string        `json:"ordering_key,omitempty" yaml:"ordering_key,omitempty"`
}

// Name returns the physical name of the index, which is the sort key of its rows
// and the projection partition its queries scan.
func (i Index) Name() string {
	return IndexName(i.Collection, i.Conditions)
}

// ReadOptimized reports whether rows of the index carry the full record.
// An unset strategy behaves as read-optimized.
func (i Index) ReadOptimized() bool {
	return i.Strategy == "" || i.Strategy == IndexReadOptimized
}

// Covers reports whether the index conditions are exactly the given fields, in order.
func (i Index) Covers(fields []string) bool {
	if len(i.Conditions) != len(fields) {
		return false
	}
	for n, f := range fields {
		if i.Conditions[n] != f {
			return false
		}
	}
	return true
}

// IndexName builds the physical name of an index over conditions.
func IndexName(collection string, conditions []string) string {
	if len(conditions) == 0 {
		return collection
	}
	return collection + FieldSeparator + strings.Join(conditions, FieldSeparator)
}

// AggregationType is the kind of a materialized aggregation.
type AggregationType string

const (
	AggregationCount AggregationType = "COUNT"
	AggregationSum   AggregationType = "SUM"
	AggregationAvg   AggregationType = "AVG"
)

// Trigger is the kind of write an aggregation reacts to.
type Trigger string

const (
	TriggerInsert Trigger = "INSERT"
	TriggerUpdate Trigger = "UPDATE"
	TriggerDelete Trigger = "DELETE"
)

// TriggerFor derives the trigger of a write from the presence of the old and new records.
func TriggerFor(oldRecord, newRecord map[string]interface{}) Trigger {
	switch {
	case oldRecord == nil:
		return TriggerInsert
	case newRecord == nil:
		return TriggerDelete
	default:
		return TriggerUpdate
	}
}

// AggregationConfiguration declares a continuously maintained aggregate over a collection.
type AggregationConfiguration struct {
	ID          string
	Collection  string
	Type        AggregationType
	On          []Trigger
	TargetField string

	// Matches optionally restricts the records the aggregation considers.
	Matches Condition
}

// Name derives the addressing name of the configuration:
// collection[_matchFields_matchValues]_type[_targetField].
func (c AggregationConfiguration) Name() string {
	var b strings.Builder
	b.WriteString(c.Collection)
	if c.Matches != nil {
		parts := append([]string{}, c.Matches.Fields()...)
		for _, v := range c.Matches.Values() {
			s, _ := FormatValue(v)
			parts = append(parts, s)
		}
		if len(parts) > 0 {
			b.WriteString("_")
			b.WriteString(strings.Join(parts, "_"))
		}
	}
	b.WriteString("_")
	b.WriteString(strings.ToLower(string(c.Type)))
	if c.TargetField != "" {
		b.WriteString("_")
		b.WriteString(c.TargetField)
	}
	return b.String()
}

// Triggered reports whether the configuration reacts to the trigger.
// A configuration without triggers reacts to every write.
func (c AggregationConfiguration) Triggered(t Trigger) bool {
	if len(c.On) == 0 {
		return true
	}
	for _, on := range c.On {
		if on == t {
			return true
		}
	}
	return false
}

// Validate checks the configuration is complete for its type.
func (c AggregationConfiguration) Validate() error {
	if c.Collection == "" {
		return fmt.Errorf("%w: aggregation collection is required", ErrInvalidQuery)
	}
	switch c.Type {
	case AggregationCount:
		return nil
	case AggregationSum, AggregationAvg:
		if c.TargetField == "" {
			return fmt.Errorf("%w: %s aggregation requires a target field", ErrInvalidQuery, c.Type)
		}
		return nil
	default:
		return fmt.Errorf("%w: unsupported aggregation type %q", ErrInvalidQuery, c.Type)
	}
}

// Aggregation is a materialized aggregate value.
type Aggregation struct {
	// Name is the row name, e.g. count_orders_count.
	Name string `json:"name"`

	// ConfigurationName is the name of the configuration maintaining the row.
	ConfigurationName string `json:"configuration_name"`

	Type  AggregationType `json:"type"`
	Value float64         `json:"value"`
}
