package validator

import (
	"errors"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/songzhibin97/jsonforge/schemadraft"
)

const resourceURL = "schema.json"

// JSONSchemaBackend validates with santhosh-tekuri/jsonschema, which covers
// every known draft. Compiled schemas are cached per draft and text.
type JSONSchemaBackend struct {
	cache map[string]*jsonschema.Schema
	mu    sync.RWMutex
}

// NewJSONSchemaBackend creates a backend with an empty cache.
func NewJSONSchemaBackend() *JSONSchemaBackend {
	return &JSONSchemaBackend{cache: make(map[string]*jsonschema.Schema)}
}

func (b *JSONSchemaBackend) Compile(schemaText string, d schemadraft.Draft) error {
	_, err := b.schema(schemaText, d)
	return err
}

func (b *JSONSchemaBackend) Validate(schemaText, jsonText string, d schemadraft.Draft) ([]string, error) {
	sch, err := b.schema(schemaText, d)
	if err != nil {
		return nil, err
	}
	doc, err := decodeInstance(jsonText)
	if err != nil {
		return nil, errors.New(MalformedJSONPrefix + err.Error())
	}
	err = sch.Validate(doc)
	if err == nil {
		return nil, nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return nil, err
	}
	var msgs []string
	collectLeaves(ve, &msgs)
	return msgs, nil
}

func (b *JSONSchemaBackend) schema(schemaText string, d schemadraft.Draft) (*jsonschema.Schema, error) {
	key := string(d) + "\x00" + schemaText

	b.mu.RLock()
	sch, ok := b.cache[key]
	b.mu.RUnlock()
	if ok {
		return sch, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if sch, ok = b.cache[key]; ok {
		return sch, nil
	}
	c := jsonschema.NewCompiler()
	c.Draft = toSanthoshDraft(d)
	if err := c.AddResource(resourceURL, strings.NewReader(schemaText)); err != nil {
		return nil, err
	}
	sch, err := c.Compile(resourceURL)
	if err != nil {
		return nil, err
	}
	b.cache[key] = sch
	return sch, nil
}

// collectLeaves flattens the cause tree into "$<location>: <message>" lines.
func collectLeaves(ve *jsonschema.ValidationError, out *[]string) {
	if len(ve.Causes) == 0 {
		*out = append(*out, "$"+ve.InstanceLocation+": "+ve.Message)
		return
	}
	for _, c := range ve.Causes {
		collectLeaves(c, out)
	}
}

func toSanthoshDraft(d schemadraft.Draft) *jsonschema.Draft {
	switch d {
	case schemadraft.Draft2020:
		return jsonschema.Draft2020
	case schemadraft.Draft2019:
		return jsonschema.Draft2019
	case schemadraft.Draft7:
		return jsonschema.Draft7
	case schemadraft.Draft6:
		return jsonschema.Draft6
	default:
		return jsonschema.Draft4
	}
}
