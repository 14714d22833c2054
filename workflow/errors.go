package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrSchemaInvalid matches every SchemaError.
	ErrSchemaInvalid = errors.New("schema is invalid")
	// ErrRoundLimitExceeded is returned with a result when the round cap is hit.
	ErrRoundLimitExceeded = errors.New("round limit exceeded")
	// ErrRunNotFound is returned by GetRun for an unknown ID.
	ErrRunNotFound = errors.New("run not found")
	// ErrEngineStopped is returned by Run after Stop.
	ErrEngineStopped = errors.New("engine is stopped")
)

// SchemaError aborts a run whose input schema cannot be used.
type SchemaError struct {
	Err error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema is invalid: %v", e.Err)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrSchemaInvalid) match.
func (e *SchemaError) Is(target error) bool {
	return target == ErrSchemaInvalid
}

// CollaboratorError reports a collaborator call that failed after all
// retries and has no local substitute.
type CollaboratorError struct {
	Call     string
	Attempts int
	Err      error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("collaborator call %s failed after %d attempts: %v", e.Call, e.Attempts, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

// PanicError wraps a value recovered from a panicking stage.
type PanicError struct {
	Stage string
	Value interface{}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in stage %s: %v", e.Stage, e.Value)
}
