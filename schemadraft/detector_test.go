package schemadraft

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name   string
		schema string
		want   Draft
	}{
		{name: "2020 meta", schema: `{"$schema":"https://json-schema.org/draft/2020-12/schema"}`, want: Draft2020},
		{name: "2019 meta", schema: `{"$schema":"https://json-schema.org/draft/2019-09/schema"}`, want: Draft2019},
		{name: "draft-07 meta", schema: `{"$schema":"http://json-schema.org/draft-07/schema#"}`, want: Draft7},
		{name: "draft7 meta upper case", schema: `{"$schema":"HTTP://JSON-SCHEMA.ORG/DRAFT7/SCHEMA"}`, want: Draft7},
		{name: "draft-06 meta", schema: `{"$schema":"http://json-schema.org/draft-06/schema#"}`, want: Draft6},
		{name: "draft-04 meta", schema: `{"$schema":"http://json-schema.org/draft-04/schema#","prefixItems":[]}`, want: Draft4},
		{name: "unknown meta falls to heuristics", schema: `{"$schema":"urn:custom","$defs":{}}`, want: Draft2019},
		{name: "prefixItems", schema: `{"type":"array","prefixItems":[{"type":"string"}]}`, want: Draft2020},
		{name: "nested prefixItems", schema: `{"properties":{"p":{"prefixItems":[]}}}`, want: Draft2020},
		{name: "defs", schema: `{"$defs":{"a":{"type":"string"}}}`, want: Draft2019},
		{name: "unevaluatedProperties", schema: `{"unevaluatedProperties":false}`, want: Draft2019},
		{name: "dependentRequired spaced", schema: "{ \"dependentRequired\" :\n {} }", want: Draft2019},
		{name: "plain", schema: `{"type":"object"}`, want: Draft4},
		{name: "non-string meta", schema: `{"$schema":7}`, want: Draft4},
		{name: "malformed", schema: `{"type":`, want: Draft4},
		{name: "empty", schema: ``, want: Draft4},
	}

	d := NewDetector(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, d.Detect(tt.schema))
		})
	}
}

func TestCandidates(t *testing.T) {
	d := NewDetector(nil)

	tests := []struct {
		schema string
		want   []Draft
	}{
		{schema: `{"type":"object"}`, want: []Draft{Draft4, Draft2020, Draft2019, Draft7, Draft6}},
		{schema: `{"prefixItems":[]}`, want: []Draft{Draft2020, Draft2019, Draft7, Draft6, Draft4}},
		{schema: `{"$schema":"http://json-schema.org/draft-06/schema#"}`, want: []Draft{Draft6, Draft2020, Draft2019, Draft7, Draft4}},
		{schema: `not json`, want: []Draft{Draft4, Draft2020, Draft2019, Draft7, Draft6}},
	}
	for _, tt := range tests {
		got := d.Candidates(tt.schema)
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("Candidates(%s) mismatch (-want +got):\n%s", tt.schema, diff)
		}
	}
}

func TestCandidatesContainEveryDraftOnce(t *testing.T) {
	d := NewDetector(nil)
	schemas := []string{
		`{}`,
		`{"$defs":{}}`,
		`{"$schema":"https://json-schema.org/draft/2020-12/schema"}`,
		`{"$schema":"http://json-schema.org/draft-07/schema#"}`,
		`[1,2,3]`,
		``,
	}
	for _, s := range schemas {
		seen := map[Draft]int{}
		for _, c := range d.Candidates(s) {
			seen[c]++
		}
		assert.Len(t, seen, len(Known), "schema %q", s)
		for _, k := range Known {
			assert.Equal(t, 1, seen[k], "schema %q draft %s", s, k)
		}
	}
}

func TestSelect(t *testing.T) {
	onlyOn := func(accepted ...Draft) Compiler {
		return CompilerFunc(func(_ string, d Draft) error {
			for _, a := range accepted {
				if a == d {
					return nil
				}
			}
			return errors.New("does not compile")
		})
	}

	t.Run("primary compiles", func(t *testing.T) {
		d := NewDetector(onlyOn(Draft4, Draft2020))
		assert.Equal(t, Draft4, d.Select(`{"type":"string"}`))
	})

	t.Run("falls through to newest that compiles", func(t *testing.T) {
		d := NewDetector(onlyOn(Draft7, Draft6))
		assert.Equal(t, Draft7, d.Select(`{"type":"string"}`))
	})

	t.Run("nothing compiles", func(t *testing.T) {
		d := NewDetector(onlyOn())
		assert.Equal(t, Draft4, d.Select(`{"$defs":{}}`))
	})

	t.Run("panicking compiler", func(t *testing.T) {
		d := NewDetector(CompilerFunc(func(_ string, d Draft) error {
			if d == Draft2019 {
				panic("boom")
			}
			return nil
		}))
		assert.Equal(t, Draft2020, d.Select(`{"$defs":{}}`))
	})
}

func TestParse(t *testing.T) {
	d, ok := Parse("draft-07")
	assert.True(t, ok)
	assert.Equal(t, Draft7, d)

	_, ok = Parse("draft-03")
	assert.False(t, ok)

	assert.True(t, Draft2019.IsValid())
	assert.False(t, Draft("draft-03").IsValid())
}
