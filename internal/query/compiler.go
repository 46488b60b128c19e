package query

import (
	"fmt"
	"strings"

	"github.com/rzpsarthak13/dynamoplus/internal/codec"
	"github.com/rzpsarthak13/dynamoplus/internal/core"
)

// rangeJoin joins the field names of a conjunction ending in Lte or Between.
const rangeJoin = "__"

// CompilerOptions tunes how predicates map onto projection partitions.
type CompilerOptions struct {
	// UnifiedRangeJoin joins the field names of conjunctions ending in Lte or Between
	// with the field separator instead of "__". Existing index rows must be rebuilt
	// before switching it on.
	UnifiedRangeJoin bool
}

// Compiler turns logical predicates into scan descriptors over the sk-data-index projection.
type Compiler struct {
	options CompilerOptions
}

// NewCompiler creates a new predicate compiler.
func NewCompiler(options CompilerOptions) *Compiler {
	return &Compiler{options: options}
}

// Compile maps a condition over a collection onto the partition to scan and the sort
// comparison to apply. Operands are escaped the same way index rows are.
func (c *Compiler) Compile(condition core.Condition, collection string) (core.ScanDescriptor, error) {
	if collection == "" {
		return core.ScanDescriptor{}, fmt.Errorf("%w: collection is required", core.ErrInvalidQuery)
	}

	switch cond := condition.(type) {
	case core.Any:
		return core.ScanDescriptor{Partition: collection, Op: core.SortNone}, nil
	case core.Eq, core.Gt, core.Gte, core.Lt, core.Lte, core.BeginsWith, core.Between:
		tail := cond.(core.TailCondition)
		return c.compileTail(collection+core.FieldSeparator+tail.Field(), "", tail)
	case core.And:
		return c.compileAnd(cond, collection)
	case nil:
		return core.ScanDescriptor{}, fmt.Errorf("%w: condition is required", core.ErrInvalidQuery)
	default:
		return core.ScanDescriptor{}, fmt.Errorf("%w: unsupported condition %T", core.ErrInvalidQuery, condition)
	}
}

func (c *Compiler) compileAnd(and core.And, collection string) (core.ScanDescriptor, error) {
	eqs := and.Eqs()
	fields := make([]string, 0, len(eqs)+1)
	values := make([]string, 0, len(eqs))
	for _, eq := range eqs {
		v, err := operand(eq.FieldName, eq.Value)
		if err != nil {
			return core.ScanDescriptor{}, err
		}
		fields = append(fields, eq.FieldName)
		values = append(values, v)
	}
	prefix := strings.Join(values, core.FieldSeparator)

	tail := and.Tail()
	if tail == nil {
		return core.ScanDescriptor{
			Partition: collection + core.FieldSeparator + strings.Join(fields, core.FieldSeparator),
			Op:        core.SortEq,
			Operand:   prefix,
		}, nil
	}

	fields = append(fields, tail.Field())
	join := core.FieldSeparator
	switch tail.(type) {
	case core.Lte, core.Between:
		if !c.options.UnifiedRangeJoin {
			join = rangeJoin
		}
	}
	return c.compileTail(collection+core.FieldSeparator+strings.Join(fields, join), prefix, tail)
}

// compileTail builds the sort comparison of a single tail condition, prepending the
// equality prefix to its operands.
func (c *Compiler) compileTail(partition, prefix string, tail core.TailCondition) (core.ScanDescriptor, error) {
	withPrefix := func(v string) string {
		if prefix == "" {
			return v
		}
		return prefix + core.FieldSeparator + v
	}

	descriptor := core.ScanDescriptor{Partition: partition}

	if between, ok := tail.(core.Between); ok {
		from, err := operand(between.FieldName, between.From)
		if err != nil {
			return core.ScanDescriptor{}, err
		}
		to, err := operand(between.FieldName, between.To)
		if err != nil {
			return core.ScanDescriptor{}, err
		}
		descriptor.Op = core.SortBetween
		descriptor.Operand = withPrefix(from)
		descriptor.OperandTo = withPrefix(to)
		return descriptor, nil
	}

	v, err := operand(tail.Field(), tail.Values()[0])
	if err != nil {
		return core.ScanDescriptor{}, err
	}
	descriptor.Operand = withPrefix(v)

	switch tail.(type) {
	case core.Eq:
		descriptor.Op = core.SortEq
	case core.Gt:
		descriptor.Op = core.SortGt
	case core.Gte:
		descriptor.Op = core.SortGte
	case core.Lt:
		descriptor.Op = core.SortLt
	case core.Lte:
		descriptor.Op = core.SortLte
	case core.BeginsWith:
		descriptor.Op = core.SortBeginsWith
	default:
		return core.ScanDescriptor{}, fmt.Errorf("%w: unsupported condition %T", core.ErrInvalidQuery, tail)
	}
	return descriptor, nil
}

// orderedUpperBound sorts after any ordering suffix appended to a value.
const orderedUpperBound = core.FieldSeparator + "\uffff"

// ForOrderedIndex adapts a descriptor to an index whose rows carry an ordering suffix, so
// that a row holding value v compares as v whatever its ordering. An equality becomes a
// prefix match on the value followed by the separator. Gt and Lte, and the upper bound of
// Between, compare against the value followed by the highest suffix.
func ForOrderedIndex(descriptor core.ScanDescriptor) core.ScanDescriptor {
	switch descriptor.Op {
	case core.SortEq:
		descriptor.Op = core.SortBeginsWith
		descriptor.Operand += core.FieldSeparator
	case core.SortGt, core.SortLte:
		descriptor.Operand += orderedUpperBound
	case core.SortBetween:
		descriptor.OperandTo += orderedUpperBound
	}
	return descriptor
}

func operand(field string, value interface{}) (string, error) {
	v, ok := codec.KeyValue(value)
	if !ok {
		return "", fmt.Errorf("%w: value of %q cannot be used as a key", core.ErrInvalidQuery, field)
	}
	return v, nil
}
