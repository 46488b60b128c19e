package store

import (
	"fmt"
	"strconv"
	"time"

	"github.com/rzpsarthak13/dynamoplus/internal/core"
)

// ErrInvalidRecord is returned when a document does not match its collection schema.
var ErrInvalidRecord = core.ErrInvalidRecord

var dateLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"}

// AttributeValidator checks documents against the attributes declared on their collection.
// Fields without a declaration are accepted.
type AttributeValidator struct{}

// NewAttributeValidator creates a new attribute validator.
func NewAttributeValidator() *AttributeValidator {
	return &AttributeValidator{}
}

// Validate checks NOT_NULL constraints and declared types, recursing into OBJECT attributes.
func (v *AttributeValidator) Validate(collection *core.Collection, payload map[string]interface{}) error {
	if payload == nil {
		return fmt.Errorf("%w: document cannot be nil", ErrInvalidRecord)
	}
	if collection == nil {
		return nil
	}
	return v.validateAttributes("", collection.Attributes, payload)
}

func (v *AttributeValidator) validateAttributes(prefix string, attributes []core.Attribute, document map[string]interface{}) error {
	for _, attribute := range attributes {
		path := prefix + attribute.Name
		value, exists := document[attribute.Name]

		if !exists || value == nil {
			if attribute.NotNull() {
				return fmt.Errorf("%w: attribute '%s' cannot be null", ErrInvalidRecord, path)
			}
			continue
		}

		if err := v.validateType(path, attribute, value); err != nil {
			return err
		}
	}
	return nil
}

func (v *AttributeValidator) validateType(path string, attribute core.Attribute, value interface{}) error {
	switch attribute.Type {
	case core.AttributeString:
		if _, ok := value.(string); !ok {
			return typeMismatch(path, "string", value)
		}
	case core.AttributeNumber:
		if _, isString := value.(string); isString {
			return typeMismatch(path, "number", value)
		}
		if _, ok := core.ToFloat(value); !ok {
			return typeMismatch(path, "number", value)
		}
	case core.AttributeBoolean:
		if _, ok := value.(bool); !ok {
			return typeMismatch(path, "boolean", value)
		}
	case core.AttributeArray:
		if _, ok := value.([]interface{}); !ok {
			return typeMismatch(path, "array", value)
		}
	case core.AttributeObject:
		nested, ok := value.(map[string]interface{})
		if !ok {
			return typeMismatch(path, "object", value)
		}
		return v.validateAttributes(path+".", attribute.Attributes, nested)
	case core.AttributeDate:
		if !isDate(value) {
			return typeMismatch(path, "date", value)
		}
	case "":
	default:
		return fmt.Errorf("%w: attribute '%s' declares unknown type %q", ErrInvalidRecord, path, attribute.Type)
	}
	return nil
}

// isDate accepts RFC 3339 strings, plain dates and unix timestamps.
func isDate(value interface{}) bool {
	s, ok := value.(string)
	if !ok {
		_, numeric := core.ToFloat(value)
		return numeric
	}
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}

func typeMismatch(path, expected string, value interface{}) error {
	return fmt.Errorf("%w: attribute '%s' expects %s, got %T", ErrInvalidRecord, path, expected, value)
}

var _ core.SchemaValidator = (*AttributeValidator)(nil)
