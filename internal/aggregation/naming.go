package aggregation

import (
	"strings"

	"github.com/rzpsarthak13/dynamoplus/internal/codec"
	"github.com/rzpsarthak13/dynamoplus/internal/core"
)

// Collection is the system collection holding materialized aggregation rows.
const Collection = core.SystemAggregation

// valueField is the document field carrying the aggregate value.
const valueField = "value"

// RowName returns the name of the row of the given type maintained for a configuration,
// e.g. count_orders_count.
func RowName(t core.AggregationType, config core.AggregationConfiguration) string {
	return strings.ToLower(string(t)) + "_" + config.Name()
}

// RowKey returns the physical key of an aggregation row.
func RowKey(name string) core.Key {
	pk, sk := codec.PrimaryKey(Collection, name)
	return core.Key{PK: pk, SK: sk, Data: name}
}

// ParseRowName splits a row name into its type and configuration name.
func ParseRowName(name string) (core.AggregationType, string, bool) {
	prefix, rest, ok := strings.Cut(name, "_")
	if !ok || rest == "" {
		return "", "", false
	}
	t := core.AggregationType(strings.ToUpper(prefix))
	switch t {
	case core.AggregationCount, core.AggregationSum, core.AggregationAvg:
		return t, rest, true
	default:
		return "", "", false
	}
}

// RowNames returns the rows a configuration maintains.
func RowNames(config core.AggregationConfiguration) []string {
	switch config.Type {
	case core.AggregationCount:
		return []string{RowName(core.AggregationCount, config)}
	case core.AggregationSum:
		return []string{RowName(core.AggregationSum, config)}
	case core.AggregationAvg:
		return []string{
			RowName(core.AggregationAvg, config),
			RowName(core.AggregationCount, config),
			RowName(core.AggregationSum, config),
		}
	default:
		return nil
	}
}
