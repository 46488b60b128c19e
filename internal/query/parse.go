package query

import (
	"encoding/json"
	"fmt"

	"github.com/rzpsarthak13/dynamoplus/internal/core"
)

// Predicate is the wire form of a condition:
//
//	{"eq":{"field_name":"f","value":v}}
//	{"range":{"field_name":"f","from":a,"to":b}}
//	{"and":[...]}
type Predicate struct {
	Eq    *EqPredicate    `json:"eq,omitempty"`
	Range *RangePredicate `json:"range,omitempty"`
	And   []Predicate     `json:"and,omitempty"`
}

// EqPredicate is the wire form of an equality.
type EqPredicate struct {
	FieldName string      `json:"field_name"`
	Value     interface{} `json:"value"`
}

// RangePredicate is the wire form of an inclusive range.
type RangePredicate struct {
	FieldName string      `json:"field_name"`
	From      interface{} `json:"from"`
	To        interface{} `json:"to"`
}

// ParsePredicate decodes a wire predicate. An empty or null body matches everything.
func ParsePredicate(data []byte) (core.Condition, error) {
	if len(data) == 0 || string(data) == "null" {
		return core.Any{}, nil
	}
	var p Predicate
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: failed to decode predicate: %v", core.ErrInvalidQuery, err)
	}
	return p.Condition()
}

// Condition converts the wire predicate into a condition.
// A conjunction holds equalities and at most one range, which becomes its tail.
func (p *Predicate) Condition() (core.Condition, error) {
	if p == nil {
		return core.Any{}, nil
	}
	set := 0
	if p.Eq != nil {
		set++
	}
	if p.Range != nil {
		set++
	}
	if p.And != nil {
		set++
	}

	switch {
	case set == 0:
		return core.Any{}, nil
	case set > 1:
		return nil, fmt.Errorf("%w: predicate must hold exactly one of eq, range, and", core.ErrInvalidQuery)
	case p.Eq != nil:
		if p.Eq.FieldName == "" {
			return nil, fmt.Errorf("%w: eq requires field_name", core.ErrInvalidQuery)
		}
		return core.Eq{FieldName: p.Eq.FieldName, Value: p.Eq.Value}, nil
	case p.Range != nil:
		if p.Range.FieldName == "" {
			return nil, fmt.Errorf("%w: range requires field_name", core.ErrInvalidQuery)
		}
		return core.Between{FieldName: p.Range.FieldName, From: p.Range.From, To: p.Range.To}, nil
	}

	eqs := make([]core.Eq, 0, len(p.And))
	var tail core.TailCondition
	for i := range p.And {
		cond, err := p.And[i].Condition()
		if err != nil {
			return nil, err
		}
		switch c := cond.(type) {
		case core.Eq:
			eqs = append(eqs, c)
		case core.Between:
			if tail != nil {
				return nil, fmt.Errorf("%w: and allows at most one range", core.ErrInvalidQuery)
			}
			tail = c
		default:
			return nil, fmt.Errorf("%w: and accepts only eq and range entries", core.ErrInvalidQuery)
		}
	}
	and, err := core.NewAnd(eqs, tail)
	if err != nil {
		return nil, err
	}
	return and, nil
}

// EncodePredicate renders a condition in wire form. Only conditions expressible on
// the wire (Any, Eq, Between and conjunctions of them) can be encoded.
func EncodePredicate(condition core.Condition) (*Predicate, error) {
	switch cond := condition.(type) {
	case nil, core.Any:
		return &Predicate{}, nil
	case core.Eq:
		return &Predicate{Eq: &EqPredicate{FieldName: cond.FieldName, Value: cond.Value}}, nil
	case core.Between:
		return &Predicate{Range: &RangePredicate{FieldName: cond.FieldName, From: cond.From, To: cond.To}}, nil
	case core.And:
		p := &Predicate{And: make([]Predicate, 0, len(cond.Eqs())+1)}
		for _, eq := range cond.Eqs() {
			p.And = append(p.And, Predicate{Eq: &EqPredicate{FieldName: eq.FieldName, Value: eq.Value}})
		}
		if tail := cond.Tail(); tail != nil {
			encoded, err := EncodePredicate(tail)
			if err != nil {
				return nil, err
			}
			p.And = append(p.And, *encoded)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: %T has no wire form", core.ErrInvalidQuery, condition)
	}
}
