package catalog

import (
	"encoding/json"
	"fmt"

	"github.com/rzpsarthak13/dynamoplus/internal/core"
	"github.com/rzpsarthak13/dynamoplus/internal/query"
)

// collectionRef nests the owning collection name so that system indexes can key on
// the "collection.name" path.
type collectionRef struct {
	Name string `json:"name"`
}

type indexDocument struct {
	ID          string             `json:"id"`
	Collection  collectionRef      `json:"collection"`
	Conditions  []string           `json:"conditions"`
	Strategy    core.IndexStrategy `json:"index_configuration,omitempty"`
	OrderingKey string             `json:"ordering_key,omitempty"`
}

type aggregationDocument struct {
	ID          string               `json:"id"`
	Collection  collectionRef        `json:"collection"`
	Type        core.AggregationType `json:"type"`
	On          []core.Trigger       `json:"on,omitempty"`
	TargetField string               `json:"target_field,omitempty"`
	Matches     *query.Predicate     `json:"matches,omitempty"`
}

func newIndexDocument(index core.Index) indexDocument {
	return indexDocument{
		ID:          index.ID,
		Collection:  collectionRef{Name: index.Collection},
		Conditions:  index.Conditions,
		Strategy:    index.Strategy,
		OrderingKey: index.OrderingKey,
	}
}

func (d indexDocument) index() core.Index {
	return core.Index{
		ID:          d.ID,
		Collection:  d.Collection.Name,
		Conditions:  d.Conditions,
		Strategy:    d.Strategy,
		OrderingKey: d.OrderingKey,
	}
}

func newAggregationDocument(config core.AggregationConfiguration) (aggregationDocument, error) {
	doc := aggregationDocument{
		ID:          config.ID,
		Collection:  collectionRef{Name: config.Collection},
		Type:        config.Type,
		On:          config.On,
		TargetField: config.TargetField,
	}
	if config.Matches != nil {
		predicate, err := query.EncodePredicate(config.Matches)
		if err != nil {
			return aggregationDocument{}, err
		}
		doc.Matches = predicate
	}
	return doc, nil
}

func (d aggregationDocument) configuration() (core.AggregationConfiguration, error) {
	config := core.AggregationConfiguration{
		ID:          d.ID,
		Collection:  d.Collection.Name,
		Type:        d.Type,
		On:          d.On,
		TargetField: d.TargetField,
	}
	if d.Matches != nil {
		matches, err := d.Matches.Condition()
		if err != nil {
			return core.AggregationConfiguration{}, err
		}
		config.Matches = matches
	}
	return config, nil
}

// toDocument converts a definition into the generic document shape stored in rows.
func toDocument(v interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to encode definition: %v", core.ErrEncoding, err)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: failed to encode definition: %v", core.ErrEncoding, err)
	}
	return doc, nil
}

// fromDocument converts a stored document back into a definition.
func fromDocument(doc map[string]interface{}, v interface{}) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: failed to decode definition: %v", core.ErrEncoding, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: failed to decode definition: %v", core.ErrEncoding, err)
	}
	return nil
}
