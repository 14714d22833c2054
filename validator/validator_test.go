package validator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/songzhibin97/jsonforge/schemadraft"
)

const personSchema = `{"type":"object","required":["name"],"properties":{"name":{"type":"string"}}}`

func backends() map[string]*Validator {
	return map[string]*Validator{
		BackendJSONSchema:   New(NewJSONSchemaBackend()),
		BackendGoJSONSchema: New(NewGoJSONSchemaBackend()),
	}
}

func TestValidateValid(t *testing.T) {
	for name, v := range backends() {
		t.Run(name, func(t *testing.T) {
			outcome := v.Validate(`{"name":"Alice"}`, personSchema)
			assert.True(t, outcome.Valid)
			assert.Empty(t, outcome.Errors)
			assert.Equal(t, "OK", outcome.Display())
		})
	}
}

func TestValidateInvalid(t *testing.T) {
	for name, v := range backends() {
		t.Run(name, func(t *testing.T) {
			outcome := v.Validate(`{}`, personSchema)
			require.False(t, outcome.Valid)
			require.Len(t, outcome.Errors, 1)
			assert.Contains(t, outcome.Errors[0], "name")

			outcome = v.Validate(`{"name":5,"extra":true}`, personSchema)
			require.False(t, outcome.Valid)
			assert.NotEmpty(t, outcome.Signature())
		})
	}
}

func TestValidateReportsLocation(t *testing.T) {
	v := New(NewJSONSchemaBackend())
	outcome := v.Validate(`{"name":5}`, personSchema)
	require.False(t, outcome.Valid)
	require.Len(t, outcome.Errors, 1)
	assert.True(t, strings.HasPrefix(outcome.Errors[0], "$/name: "), outcome.Errors[0])
}

func TestValidateMultipleErrorsJoin(t *testing.T) {
	schema := `{"type":"object","required":["a","b"],"properties":{"c":{"type":"integer"},"d":{"type":"string"}}}`
	v := New(NewJSONSchemaBackend())

	outcome := v.Validate(`{"c":"x","d":1}`, schema)
	require.False(t, outcome.Valid)
	assert.GreaterOrEqual(t, len(outcome.Errors), 3)
	assert.Equal(t, strings.Join(outcome.Errors, " \n"), outcome.Display())

	again := v.Validate(`{"d":1,"c":"x"}`, schema)
	assert.Equal(t, outcome.Signature(), again.Signature())
}

func TestValidateMalformedJSON(t *testing.T) {
	for name, v := range backends() {
		t.Run(name, func(t *testing.T) {
			for _, doc := range []string{``, `{"name":`, "```json\n{}\n```", `{} {}`} {
				outcome := v.Validate(doc, personSchema)
				require.False(t, outcome.Valid, "doc %q", doc)
				require.Len(t, outcome.Errors, 1)
				assert.True(t, strings.HasPrefix(outcome.Errors[0], MalformedJSONPrefix), outcome.Errors[0])
			}
		})
	}
}

func TestValidateBrokenSchemaIsOutcome(t *testing.T) {
	v := New(NewJSONSchemaBackend())
	outcome := v.Validate(`{"a":1}`, `{"type":"strin"}`)
	assert.False(t, outcome.Valid)
	assert.Len(t, outcome.Errors, 1)
}

func TestCheckSchema(t *testing.T) {
	v := New(NewJSONSchemaBackend())

	check, err := v.CheckSchema("{ \"type\" : \"object\",\n  \"properties\": { \"a\": {\"type\": \"string\"} } }")
	require.NoError(t, err)
	assert.Equal(t, `{"type":"object","properties":{"a":{"type":"string"}}}`, check.CompactSchema)
	assert.Equal(t, schemadraft.Draft4, check.Version)

	check, err = v.CheckSchema(`{"$schema":"https://json-schema.org/draft/2020-12/schema","prefixItems":[{"type":"string"}]}`)
	require.NoError(t, err)
	assert.Equal(t, schemadraft.Draft2020, check.Version)

	_, err = v.CheckSchema(`{"type":"strin"}`)
	assert.ErrorIs(t, err, ErrInvalidSchema)

	_, err = v.CheckSchema(`{"type":`)
	assert.ErrorIs(t, err, ErrInvalidSchema)

	_, err = v.CheckSchema(`[1,2]`)
	assert.ErrorIs(t, err, ErrInvalidSchema)
}

func TestSelectFallsBackFromDraft4(t *testing.T) {
	// draft-04 requires at least one entry in "required"
	schema := `{"type":"object","required":[]}`
	v := New(NewJSONSchemaBackend())

	assert.Equal(t, schemadraft.Draft4, v.Detector().Detect(schema))
	assert.Equal(t, schemadraft.Draft2020, v.Detector().Select(schema))

	// nothing compiles: conservative default
	assert.Equal(t, schemadraft.Draft4, v.Detector().Select(`{"type":"strin"}`))
}

func TestGoJSONSchemaBackendDrafts(t *testing.T) {
	b := NewGoJSONSchemaBackend()
	assert.NoError(t, b.Compile(personSchema, schemadraft.Draft7))
	assert.ErrorIs(t, b.Compile(personSchema, schemadraft.Draft2020), ErrDraftUnsupported)
	assert.ErrorIs(t, b.Compile(personSchema, schemadraft.Draft2019), ErrDraftUnsupported)

	v := New(b)
	assert.Equal(t, schemadraft.Draft7, v.Detector().Select(`{"prefixItems":[{"type":"string"}]}`))
}

func TestCompactSchema(t *testing.T) {
	out, err := CompactSchema(" true ")
	require.NoError(t, err)
	assert.Equal(t, "true", out)

	_, err = CompactSchema("")
	assert.ErrorIs(t, err, ErrInvalidSchema)
}

func TestNewFromName(t *testing.T) {
	v, err := NewFromName("")
	require.NoError(t, err)
	assert.IsType(t, &JSONSchemaBackend{}, v.backend)

	v, err = NewFromName("GoJSONSchema")
	require.NoError(t, err)
	assert.IsType(t, &GoJSONSchemaBackend{}, v.backend)

	_, err = NewFromName("ajv")
	assert.ErrorIs(t, err, ErrUnknownBackend)
}
