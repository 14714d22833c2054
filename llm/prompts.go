package llm

import (
	"fmt"
	"strings"

	"github.com/songzhibin97/jsonforge/types"
)

const jsonOnlySystem = "You write JSON documents. Reply with exactly one RFC 8259 JSON value and nothing else: " +
	"no prose, no comments, no Markdown fences."

const planSystem = "You are a careful data designer. Reply in concise plain text."

const routeSystem = `Reply with one compact JSON object {"decision":"...","reason":"..."} and nothing else. ` +
	"Never choose END while errors remain. No Markdown fences."

func section(b *strings.Builder, title, body string) {
	fmt.Fprintf(b, "\n## %s\n%s\n", title, strings.TrimSpace(body))
}

// generationPlanPrompt asks for a plan before any data is produced.
func generationPlanPrompt(userIntent, schema string) (system, prompt string) {
	var b strings.Builder
	b.WriteString("Plan how to produce one JSON document for the scenario below that validates against the schema.\n")
	b.WriteString("Cover, briefly:\n")
	b.WriteString("- every required field and its type\n")
	b.WriteString("- formats and patterns (email, date-time, uuid, uri, regex) with a conforming example\n")
	b.WriteString("- numeric ranges, string lengths and array sizes\n")
	b.WriteString("- enums and const values\n")
	b.WriteString("- realistic values for the scenario; no placeholders such as John Doe, test@example.com, 123-456 or lorem ipsum\n")
	section(&b, "Scenario", userIntent)
	section(&b, "JSON Schema", schema)
	return planSystem, b.String()
}

// generatePrompt asks for the document itself.
func generatePrompt(userIntent, schema, plan string) (system, prompt string) {
	var b strings.Builder
	b.WriteString("Produce the JSON document described by the plan. It must validate against the schema.\n")
	b.WriteString("Include every required field, respect types, formats, ranges and enums, and add no properties the schema forbids.\n")
	section(&b, "Scenario", userIntent)
	section(&b, "Plan", plan)
	section(&b, "JSON Schema", schema)
	return jsonOnlySystem, b.String()
}

// fixPlanPrompt asks how to resolve each validation error.
func fixPlanPrompt(errors, userIntent string) (system, prompt string) {
	var b strings.Builder
	b.WriteString("For each validation error below give: the JSON path, what is wrong, the violated constraint and the concrete change that fixes it.\n")
	b.WriteString("Keep the scenario's intent. Do not suggest placeholder values.\n")
	section(&b, "Scenario", userIntent)
	section(&b, "Validation errors", errors)
	return planSystem, b.String()
}

// applyFixPrompt asks for the corrected document.
func applyFixPrompt(errors, json, schema, plan string) (system, prompt string) {
	var b strings.Builder
	b.WriteString("Correct the JSON document so that it validates against the schema.\n")
	b.WriteString("Apply the fix plan, change only what the errors require and keep every other value as it is.\n")
	section(&b, "Fix plan", plan)
	section(&b, "Validation errors", errors)
	section(&b, "Current JSON", json)
	section(&b, "JSON Schema", schema)
	return jsonOnlySystem, b.String()
}

// routePrompt asks whether to fix in place or start over.
func routePrompt(req types.RouteRequest) (system, prompt string) {
	var b strings.Builder
	b.WriteString("Decide the next step towards a schema-valid JSON document. Choose one:\n")
	b.WriteString("- FIX: a few local errors that can be corrected in place\n")
	b.WriteString("- REGENERATE: many errors, missing required fields or a wrong overall structure\n")
	b.WriteString("- END: only when there are no errors\n")
	b.WriteString(`Answer with {"decision":"FIX|REGENERATE|END","reason":"<short>"}` + "\n")
	section(&b, "Scenario", req.UserIntent)
	section(&b, "JSON Schema", req.Schema)
	section(&b, "JSON", req.JSON)
	section(&b, "Errors", req.Errors)
	section(&b, "Consecutive fix attempts", fmt.Sprint(req.ConsecutiveFixAttempts))
	return routeSystem, b.String()
}
