package types

import (
	"strings"

	"github.com/songzhibin97/jsonforge/schemadraft"
	"github.com/songzhibin97/jsonforge/signature"
)

// Decision is the router's verdict after validating a candidate document.
type Decision string

const (
	DecisionFix        Decision = "FIX"
	DecisionRegenerate Decision = "REGENERATE"
	DecisionEnd        Decision = "END"
)

// IsValid reports whether d is one of the three known decisions.
func (d Decision) IsValid() bool {
	switch d {
	case DecisionFix, DecisionRegenerate, DecisionEnd:
		return true
	}
	return false
}

// ParseDecision accepts a decision name in any case, surrounded by spaces.
func ParseDecision(s string) (Decision, bool) {
	d := Decision(strings.ToUpper(strings.TrimSpace(s)))
	return d, d.IsValid()
}

// Stage is a node of the convergence state machine.
type Stage string

const (
	StageValidateSchema Stage = "ValidateSchema"
	StagePlanGeneration Stage = "PlanGeneration"
	StageGenerate       Stage = "Generate"
	StageNormalize      Stage = "Normalize"
	StageValidateJSON   Stage = "ValidateJson"
	StageReasonAndRoute Stage = "ReasonAndRoute"
	StagePlanFix        Stage = "PlanFix"
	StageApplyFix       Stage = "ApplyFix"
	StageEnd            Stage = "End"
)

// OKDisplay is the display text of a valid outcome.
const OKDisplay = "OK"

// ErrorSeparator joins the messages of an invalid outcome.
const ErrorSeparator = " \n"

// ValidationOutcome is either valid or a non-empty list of messages.
type ValidationOutcome struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// Valid returns the successful outcome.
func Valid() ValidationOutcome {
	return ValidationOutcome{Valid: true}
}

// Invalid returns a failed outcome. Blank messages are dropped; if nothing
// remains a generic message is used so Errors is never empty.
func Invalid(errs ...string) ValidationOutcome {
	kept := make([]string, 0, len(errs))
	for _, e := range errs {
		if strings.TrimSpace(e) != "" {
			kept = append(kept, e)
		}
	}
	if len(kept) == 0 {
		kept = append(kept, "validation failed")
	}
	return ValidationOutcome{Errors: kept}
}

// Display is "OK" for a valid outcome and the messages joined by " \n" otherwise.
func (o ValidationOutcome) Display() string {
	if o.Valid {
		return OKDisplay
	}
	return strings.Join(o.Errors, ErrorSeparator)
}

// Signature is the order-independent digest of the messages.
func (o ValidationOutcome) Signature() string {
	if o.Valid {
		return ""
	}
	return signature.Of(o.Errors)
}

// ErrorCount counts the non-blank parts of a display text split on " \n".
func ErrorCount(display string) int {
	n := 0
	for _, part := range strings.Split(display, ErrorSeparator) {
		if strings.TrimSpace(part) != "" {
			n++
		}
	}
	return n
}

// WorkflowState is the record carried through one run. Each field has a
// single writing stage.
type WorkflowState struct {
	UserIntent    string            `json:"user_intent"`
	RawSchema     string            `json:"raw_schema"`
	CompactSchema string            `json:"compact_schema,omitempty"`
	SchemaVersion schemadraft.Draft `json:"schema_version,omitempty"`

	GenerationPlan string `json:"generation_plan,omitempty"`
	GeneratedJSON  string `json:"generated_json,omitempty"`

	ValidationResult            *ValidationOutcome `json:"validation_result,omitempty"`
	ValidationSignature         string             `json:"validation_signature,omitempty"`
	PreviousValidationResult    string             `json:"previous_validation_result,omitempty"`
	PreviousValidationSignature string             `json:"previous_validation_signature,omitempty"`

	HeuristicWarnings  []string `json:"heuristic_warnings,omitempty"`
	HeuristicSignature string   `json:"heuristic_signature,omitempty"`

	FixPlan        string   `json:"fix_plan,omitempty"`
	Decision       Decision `json:"decision,omitempty"`
	Reasoning      string   `json:"reasoning,omitempty"`
	IterationCount int      `json:"iteration_count"`
}

// TraceEntry records one routing decision.
type TraceEntry struct {
	Round      int      `json:"round"`
	Decision   Decision `json:"decision"`
	Reasoning  string   `json:"reasoning"`
	ErrorCount int      `json:"error_count"`
	Signature  string   `json:"signature,omitempty"`
	Iteration  int      `json:"iteration"`
}

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunExhausted RunStatus = "exhausted"
)

// IsTerminal reports whether the run has stopped.
func (s RunStatus) IsTerminal() bool {
	return s == RunCompleted || s == RunFailed || s == RunExhausted
}

// RunRecord is the persisted snapshot of a run.
type RunRecord struct {
	ID        uint64        `json:"id"`
	Status    RunStatus     `json:"status"`
	Stage     Stage         `json:"stage"`
	Round     int           `json:"round"`
	State     WorkflowState `json:"state"`
	Trace     []TraceEntry  `json:"trace"`
	Error     string        `json:"error,omitempty"`
	CreatedAt int64         `json:"created_at"`
	UpdatedAt int64         `json:"updated_at"`
}

// RunRequest is the input of a run.
type RunRequest struct {
	UserIntent string `json:"user_intent"`
	Schema     string `json:"schema"`
}

// RunResult is what a finished run hands back to the caller.
type RunResult struct {
	RunID         uint64            `json:"run_id"`
	Status        RunStatus         `json:"status"`
	GeneratedJSON string            `json:"generated_json"`
	Outcome       ValidationOutcome `json:"outcome"`
	Warnings      []string          `json:"warnings,omitempty"`
	Trace         []TraceEntry      `json:"trace"`
	Rounds        int               `json:"rounds"`
	SchemaVersion schemadraft.Draft `json:"schema_version"`
}

// RouteRequest is the context handed to an external routing collaborator.
type RouteRequest struct {
	UserIntent             string `json:"user_intent"`
	Schema                 string `json:"schema"`
	JSON                   string `json:"json"`
	Errors                 string `json:"errors"`
	ConsecutiveFixAttempts int    `json:"consecutive_fix_attempts"`
}

// SchemaCheck is the result of compacting and validating a schema.
type SchemaCheck struct {
	CompactSchema string            `json:"compact_schema"`
	Version       schemadraft.Draft `json:"version"`
}
