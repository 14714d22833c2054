// Package schemadraft picks the JSON Schema draft a schema document is
// written against.
package schemadraft

import (
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
)

// Draft identifies a JSON Schema specification version.
type Draft string

const (
	Draft2020 Draft = "2020-12"
	Draft2019 Draft = "2019-09"
	Draft7    Draft = "draft-07"
	Draft6    Draft = "draft-06"
	Draft4    Draft = "draft-04"

	// Default is the conservative fallback most validators accept.
	Default = Draft4
)

// Known lists every supported draft, newest first.
var Known = []Draft{Draft2020, Draft2019, Draft7, Draft6, Draft4}

// IsValid reports whether d is one of the Known drafts.
func (d Draft) IsValid() bool {
	for _, k := range Known {
		if k == d {
			return true
		}
	}
	return false
}

func (d Draft) String() string {
	return string(d)
}

// Parse maps a draft tag or $schema URL to a Draft.
func Parse(s string) (Draft, bool) {
	return fromMetaURL(s)
}

// Compiler compiles a schema under a given draft. Validator backends
// implement it so Select can probe which draft accepts the document.
type Compiler interface {
	Compile(schemaText string, d Draft) error
}

// CompilerFunc adapts a function to Compiler.
type CompilerFunc func(schemaText string, d Draft) error

func (f CompilerFunc) Compile(schemaText string, d Draft) error {
	return f(schemaText, d)
}

// Detector guesses and confirms schema drafts.
type Detector struct {
	compiler Compiler
}

// NewDetector returns a Detector that confirms candidates with compiler.
// A nil compiler accepts every candidate, so Select returns the primary guess.
func NewDetector(compiler Compiler) *Detector {
	return &Detector{compiler: compiler}
}

// Detect returns the most likely draft: the $schema URL when recognized,
// otherwise keyword heuristics, otherwise Default. Unparsable text yields Default.
func (d *Detector) Detect(schemaText string) Draft {
	if !gjson.Valid(schemaText) {
		return Default
	}
	root := gjson.Parse(schemaText)
	if root.IsObject() {
		var meta gjson.Result
		root.ForEach(func(key, value gjson.Result) bool {
			if key.Str == "$schema" {
				meta = value
				return false
			}
			return true
		})
		if meta.Type == gjson.String && meta.Str != "" {
			if draft, ok := fromMetaURL(meta.Str); ok {
				return draft
			}
		}
	}

	compact := string(pretty.Ugly([]byte(schemaText)))
	if strings.Contains(compact, `"prefixItems"`) {
		return Draft2020
	}
	for _, kw := range []string{`"$defs"`, `"unevaluatedProperties"`, `"unevaluatedItems"`, `"dependentRequired"`, `"dependentSchemas"`} {
		if strings.Contains(compact, kw) {
			return Draft2019
		}
	}
	return Default
}

// Candidates returns the primary guess followed by the remaining Known
// drafts, newest first. Each draft appears exactly once.
func (d *Detector) Candidates(schemaText string) []Draft {
	primary := d.Detect(schemaText)
	out := make([]Draft, 0, len(Known))
	out = append(out, primary)
	for _, k := range Known {
		if k != primary {
			out = append(out, k)
		}
	}
	return out
}

// Select returns the first candidate the compiler accepts, or Default when
// none does. It never fails.
func (d *Detector) Select(schemaText string) Draft {
	for _, c := range d.Candidates(schemaText) {
		if d.compiles(schemaText, c) {
			return c
		}
	}
	return Default
}

func (d *Detector) compiles(schemaText string, draft Draft) (ok bool) {
	if d.compiler == nil {
		return true
	}
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	return d.compiler.Compile(schemaText, draft) == nil
}

func fromMetaURL(u string) (Draft, bool) {
	s := strings.ToLower(u)
	switch {
	case strings.Contains(s, "2020-12"):
		return Draft2020, true
	case strings.Contains(s, "2019-09"):
		return Draft2019, true
	case strings.Contains(s, "draft-07"), strings.Contains(s, "draft7"):
		return Draft7, true
	case strings.Contains(s, "draft-06"), strings.Contains(s, "draft6"):
		return Draft6, true
	case strings.Contains(s, "draft-04"), strings.Contains(s, "draft4"):
		return Draft4, true
	}
	return "", false
}
