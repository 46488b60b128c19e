package core

import "fmt"

// Condition is a node of the immutable predicate AST. The set of variants is closed:
// only the types declared in this file implement it.
type Condition interface {
	isCondition()

	// Fields returns the field paths the condition reads, in encoding order.
	Fields() []string

	// Values returns the operands of the condition, aligned with Fields.
	// Between contributes both of its bounds.
	Values() []interface{}
}

// TailCondition is a condition allowed as the last element of a conjunction.
// It excludes Any and And.
type TailCondition interface {
	Condition
	isTail()

	// Field returns the field path the condition compares.
	Field() string
}

// Any matches every record of a collection.
type Any struct{}

// Eq matches records whose field equals Value.
type Eq struct {
	FieldName string
	Value     interface{}
}

// Gt matches records whose field is greater than Value.
type Gt struct {
	FieldName string
	Value     interface{}
}

// Gte matches records whose field is greater than or equal to Value.
type Gte struct {
	FieldName string
	Value     interface{}
}

// Lt matches records whose field is less than Value.
type Lt struct {
	FieldName string
	Value     interface{}
}

// Lte matches records whose field is less than or equal to Value.
type Lte struct {
	FieldName string
	Value     interface{}
}

// BeginsWith matches records whose field starts with Value.
type BeginsWith struct {
	FieldName string
	Value     interface{}
}

// Between matches records whose field lies within [From, To].
type Between struct {
	FieldName string
	From      interface{}
	To        interface{}
}

// And is a conjunction of equalities followed by at most one tail condition.
// Build it with NewAnd; the zero value is not a valid conjunction.
type And struct {
	eqs  []Eq
	tail TailCondition
}

// NewAnd builds a conjunction. It fails when there is nothing to conjoin.
func NewAnd(eqs []Eq, tail TailCondition) (And, error) {
	if len(eqs) == 0 && tail == nil {
		return And{}, fmt.Errorf("%w: and requires at least one condition", ErrInvalidQuery)
	}
	copied := make([]Eq, len(eqs))
	copy(copied, eqs)
	return And{eqs: copied, tail: tail}, nil
}

// Eqs returns a copy of the equality conditions.
func (a And) Eqs() []Eq {
	copied := make([]Eq, len(a.eqs))
	copy(copied, a.eqs)
	return copied
}

// Tail returns the tail condition, or nil.
func (a And) Tail() TailCondition {
	return a.tail
}

func (Any) isCondition()        {}
func (Eq) isCondition()         {}
func (Gt) isCondition()         {}
func (Gte) isCondition()        {}
func (Lt) isCondition()         {}
func (Lte) isCondition()        {}
func (BeginsWith) isCondition() {}
func (Between) isCondition()    {}
func (And) isCondition()        {}

func (Eq) isTail()         {}
func (Gt) isTail()         {}
func (Gte) isTail()        {}
func (Lt) isTail()         {}
func (Lte) isTail()        {}
func (BeginsWith) isTail() {}
func (Between) isTail()    {}

func (c Eq) Field() string         { return c.FieldName }
func (c Gt) Field() string         { return c.FieldName }
func (c Gte) Field() string        { return c.FieldName }
func (c Lt) Field() string         { return c.FieldName }
func (c Lte) Field() string        { return c.FieldName }
func (c BeginsWith) Field() string { return c.FieldName }
func (c Between) Field() string    { return c.FieldName }

func (Any) Fields() []string          { return nil }
func (c Eq) Fields() []string         { return []string{c.FieldName} }
func (c Gt) Fields() []string         { return []string{c.FieldName} }
func (c Gte) Fields() []string        { return []string{c.FieldName} }
func (c Lt) Fields() []string         { return []string{c.FieldName} }
func (c Lte) Fields() []string        { return []string{c.FieldName} }
func (c BeginsWith) Fields() []string { return []string{c.FieldName} }
func (c Between) Fields() []string    { return []string{c.FieldName} }

func (a And) Fields() []string {
	fields := make([]string, 0, len(a.eqs)+1)
	for _, eq := range a.eqs {
		fields = append(fields, eq.FieldName)
	}
	if a.tail != nil {
		fields = append(fields, a.tail.Field())
	}
	return fields
}

func (Any) Values() []interface{}          { return nil }
func (c Eq) Values() []interface{}         { return []interface{}{c.Value} }
func (c Gt) Values() []interface{}         { return []interface{}{c.Value} }
func (c Gte) Values() []interface{}        { return []interface{}{c.Value} }
func (c Lt) Values() []interface{}         { return []interface{}{c.Value} }
func (c Lte) Values() []interface{}        { return []interface{}{c.Value} }
func (c BeginsWith) Values() []interface{} { return []interface{}{c.Value} }
func (c Between) Values() []interface{}    { return []interface{}{c.From, c.To} }

func (a And) Values() []interface{} {
	values := make([]interface{}, 0, len(a.eqs)+2)
	for _, eq := range a.eqs {
		values = append(values, eq.Value)
	}
	if a.tail != nil {
		values = append(values, a.tail.Values()...)
	}
	return values
}
