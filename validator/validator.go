// Package validator checks JSON documents against JSON Schemas and turns
// the result into a ValidationOutcome.
package validator

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"

	"github.com/songzhibin97/jsonforge/schemadraft"
	"github.com/songzhibin97/jsonforge/types"
)

var (
	// ErrInvalidSchema is returned when a schema cannot be parsed or compiled.
	ErrInvalidSchema = errors.New("invalid schema")
	// ErrDraftUnsupported is returned by backends that lack a draft.
	ErrDraftUnsupported = errors.New("draft not supported by backend")
	// ErrUnknownBackend is returned by NewFromName for an unknown name.
	ErrUnknownBackend = errors.New("unknown validation backend")
)

// MalformedJSONPrefix starts the message of an outcome for unparsable input.
const MalformedJSONPrefix = "generated output is not valid JSON: "

// Backend names accepted by NewFromName.
const (
	BackendJSONSchema   = "jsonschema"
	BackendGoJSONSchema = "gojsonschema"
)

// Backend compiles schemas and validates documents under a given draft.
type Backend interface {
	schemadraft.Compiler
	// Validate returns one message per violation. A non-nil error means
	// validation could not run at all.
	Validate(schemaText, jsonText string, d schemadraft.Draft) ([]string, error)
}

// Validator validates documents with the draft its detector selects.
type Validator struct {
	backend  Backend
	detector *schemadraft.Detector
}

// New returns a Validator over backend.
func New(backend Backend) *Validator {
	return &Validator{
		backend:  backend,
		detector: schemadraft.NewDetector(backend),
	}
}

// NewFromName builds a Validator for a configured backend name.
func NewFromName(name string) (*Validator, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", BackendJSONSchema:
		return New(NewJSONSchemaBackend()), nil
	case BackendGoJSONSchema:
		return New(NewGoJSONSchemaBackend()), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, name)
	}
}

// Detector exposes the draft detector bound to this validator's backend.
func (v *Validator) Detector() *schemadraft.Detector {
	return v.detector
}

// CheckSchema compacts schemaText, selects its draft and makes sure it
// compiles under that draft.
func (v *Validator) CheckSchema(schemaText string) (types.SchemaCheck, error) {
	compact, err := CompactSchema(schemaText)
	if err != nil {
		return types.SchemaCheck{}, err
	}
	draft := v.detector.Select(compact)
	if err := v.backend.Compile(compact, draft); err != nil {
		return types.SchemaCheck{}, fmt.Errorf("%w: does not compile under %s: %v", ErrInvalidSchema, draft, err)
	}
	return types.SchemaCheck{CompactSchema: compact, Version: draft}, nil
}

// Validate checks jsonText against schemaText using the selected draft.
func (v *Validator) Validate(jsonText, schemaText string) types.ValidationOutcome {
	return v.ValidateWithDraft(jsonText, schemaText, v.detector.Select(schemaText))
}

// ValidateWithDraft checks jsonText against schemaText under draft d. Any
// failure to run validation becomes an Invalid outcome with one message.
func (v *Validator) ValidateWithDraft(jsonText, schemaText string, d schemadraft.Draft) (outcome types.ValidationOutcome) {
	if err := CheckJSON(jsonText); err != nil {
		return types.Invalid(err.Error())
	}
	defer func() {
		if r := recover(); r != nil {
			outcome = types.Invalid(fmt.Sprintf("validation failed: %v", r))
		}
	}()
	msgs, err := v.backend.Validate(schemaText, jsonText, d)
	if err != nil {
		return types.Invalid(err.Error())
	}
	if len(msgs) == 0 {
		return types.Valid()
	}
	return types.Invalid(msgs...)
}

// CheckJSON returns an error carrying MalformedJSONPrefix when text is not
// a single JSON document.
func CheckJSON(text string) error {
	if strings.TrimSpace(text) == "" {
		return errors.New(MalformedJSONPrefix + "empty document")
	}
	if gjson.Valid(text) {
		return nil
	}
	var v interface{}
	dec := json.NewDecoder(strings.NewReader(text))
	err := dec.Decode(&v)
	if err == nil {
		err = errors.New("unexpected trailing content")
	}
	return errors.New(MalformedJSONPrefix + err.Error())
}

// CompactSchema strips insignificant whitespace from a schema document.
func CompactSchema(schemaText string) (string, error) {
	if strings.TrimSpace(schemaText) == "" || !gjson.Valid(schemaText) {
		return "", fmt.Errorf("%w: not valid JSON", ErrInvalidSchema)
	}
	if !gjson.Parse(schemaText).IsObject() && !isBool(schemaText) {
		return "", fmt.Errorf("%w: schema must be an object", ErrInvalidSchema)
	}
	return string(bytes.TrimSpace(pretty.Ugly([]byte(schemaText)))), nil
}

func isBool(text string) bool {
	r := gjson.Parse(text)
	return r.Type == gjson.True || r.Type == gjson.False
}

func decodeInstance(jsonText string) (interface{}, error) {
	dec := json.NewDecoder(strings.NewReader(jsonText))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
