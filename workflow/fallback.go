package workflow

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/songzhibin97/jsonforge/types"
)

// localGenerationPlan builds a plan from the schema alone. It is used when
// the planning collaborator is unavailable.
func localGenerationPlan(userIntent, schema string) string {
	var b strings.Builder
	b.WriteString("Produce a single JSON document that satisfies the schema.\n")
	if intent := strings.TrimSpace(userIntent); intent != "" {
		fmt.Fprintf(&b, "Scenario: %s\n", intent)
	}

	root := gjson.Parse(schema)
	if t := root.Get("type"); t.Exists() {
		fmt.Fprintf(&b, "Root type: %s\n", typeName(t))
	}

	var required []string
	root.Get("required").ForEach(func(_, v gjson.Result) bool {
		required = append(required, v.String())
		return true
	})
	if len(required) > 0 {
		fmt.Fprintf(&b, "Required fields: %s\n", strings.Join(required, ", "))
	}

	props := root.Get("properties")
	if props.IsObject() {
		b.WriteString("Fields:\n")
		props.ForEach(func(k, v gjson.Result) bool {
			fmt.Fprintf(&b, "- %s: %s%s\n", k.String(), typeName(v.Get("type")), constraints(v))
			return true
		})
	}

	b.WriteString("Use realistic values. Do not use placeholders such as John Doe, test@example.com or 123-456.\n")
	return b.String()
}

// localFixPlan lists every validation error as a step.
func localFixPlan(errors string) string {
	var b strings.Builder
	b.WriteString("Resolve each validation error and keep every other value unchanged:\n")
	n := 0
	for _, e := range strings.Split(errors, types.ErrorSeparator) {
		if e = strings.TrimSpace(e); e == "" {
			continue
		}
		n++
		fmt.Fprintf(&b, "%d. %s\n", n, e)
	}
	if n == 0 {
		b.WriteString("1. Re-check the document against the schema.\n")
	}
	return b.String()
}

func typeName(t gjson.Result) string {
	if !t.Exists() {
		return "any"
	}
	if t.IsArray() {
		var names []string
		t.ForEach(func(_, v gjson.Result) bool {
			names = append(names, v.String())
			return true
		})
		return strings.Join(names, "|")
	}
	return t.String()
}

func constraints(prop gjson.Result) string {
	var parts []string
	for _, key := range []string{"format", "pattern", "minimum", "maximum", "minLength", "maxLength", "minItems", "maxItems"} {
		if v := prop.Get(key); v.Exists() {
			parts = append(parts, key+"="+v.String())
		}
	}
	if enum := prop.Get("enum"); enum.IsArray() {
		parts = append(parts, "enum="+enum.Raw)
	}
	if len(parts) == 0 {
		return ""
	}
	return " (" + strings.Join(parts, ", ") + ")"
}
