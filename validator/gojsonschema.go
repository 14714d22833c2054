package validator

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/songzhibin97/jsonforge/schemadraft"
)

// GoJSONSchemaBackend validates with xeipuuv/gojsonschema. It only knows
// drafts 4, 6 and 7.
type GoJSONSchemaBackend struct{}

// NewGoJSONSchemaBackend returns the gojsonschema backend.
func NewGoJSONSchemaBackend() *GoJSONSchemaBackend {
	return &GoJSONSchemaBackend{}
}

func (b *GoJSONSchemaBackend) Compile(schemaText string, d schemadraft.Draft) error {
	_, err := b.compile(schemaText, d)
	return err
}

func (b *GoJSONSchemaBackend) Validate(schemaText, jsonText string, d schemadraft.Draft) ([]string, error) {
	schema, err := b.compile(schemaText, d)
	if err != nil {
		return nil, err
	}
	result, err := schema.Validate(gojsonschema.NewStringLoader(jsonText))
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}
	if result.Valid() {
		return nil, nil
	}
	msgs := make([]string, len(result.Errors()))
	for i, desc := range result.Errors() {
		msgs[i] = desc.String()
	}
	return msgs, nil
}

func (b *GoJSONSchemaBackend) compile(schemaText string, d schemadraft.Draft) (*gojsonschema.Schema, error) {
	sl := gojsonschema.NewSchemaLoader()
	sl.Validate = true
	switch d {
	case schemadraft.Draft4:
		sl.Draft = gojsonschema.Draft4
	case schemadraft.Draft6:
		sl.Draft = gojsonschema.Draft6
	case schemadraft.Draft7:
		sl.Draft = gojsonschema.Draft7
	default:
		return nil, fmt.Errorf("%w: %s", ErrDraftUnsupported, d)
	}
	sl.AutoDetect = false
	return sl.Compile(gojsonschema.NewStringLoader(schemaText))
}
