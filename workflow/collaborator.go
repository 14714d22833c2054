package workflow

import (
	"context"

	"github.com/songzhibin97/jsonforge/types"
)

// Collaborator produces and repairs documents. Implementations are usually
// backed by a language model; the engine treats them as black boxes.
type Collaborator interface {
	// PlanGeneration describes how to produce data for the intent and schema.
	PlanGeneration(ctx context.Context, userIntent, schema string) (string, error)

	// Generate returns a candidate JSON document.
	Generate(ctx context.Context, userIntent, schema, plan string) (string, error)

	// PlanFix describes how to resolve the validation errors.
	PlanFix(ctx context.Context, errors, userIntent string) (string, error)

	// ApplyFix returns a corrected JSON document.
	ApplyFix(ctx context.Context, errors, json, schema, plan string) (string, error)

	// Route returns a raw {"decision":..., "reason":...} response.
	Route(ctx context.Context, req types.RouteRequest) (string, error)
}

// SchemaChecker is implemented by collaborators that can compact and check
// schemas remotely. The engine falls back to local checking on error.
type SchemaChecker interface {
	CheckSchema(ctx context.Context, schemaText string) (types.SchemaCheck, error)
}

// JSONValidator is implemented by collaborators that validate remotely.
// The engine falls back to local validation on error.
type JSONValidator interface {
	ValidateJSON(ctx context.Context, json, schema string) (types.ValidationOutcome, error)
}
