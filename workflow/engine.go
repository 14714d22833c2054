package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/songzhibin97/gkit/generator"

	"github.com/songzhibin97/jsonforge/events"
	"github.com/songzhibin97/jsonforge/heuristics"
	"github.com/songzhibin97/jsonforge/logger"
	"github.com/songzhibin97/jsonforge/metrics"
	"github.com/songzhibin97/jsonforge/normalize"
	"github.com/songzhibin97/jsonforge/rules"
	"github.com/songzhibin97/jsonforge/signature"
	"github.com/songzhibin97/jsonforge/storage"
	"github.com/songzhibin97/jsonforge/types"
	"github.com/songzhibin97/jsonforge/validator"
)

// Engine defaults.
const (
	DefaultMaxRounds   = 12
	DefaultMaxRetries  = 2
	DefaultRetryDelay  = 500 * time.Millisecond
	DefaultParallelism = 4
)

// Collaborator call names used in logs, metrics and CollaboratorError.
const (
	CallCheckSchema    = "check_schema"
	CallPlanGeneration = "plan_generation"
	CallGenerate       = "generate"
	CallPlanFix        = "plan_fix"
	CallApplyFix       = "apply_fix"
	CallRoute          = "route"
	CallValidateJSON   = "validate_json"
)

var errEmptyResponse = errors.New("empty response")

// Engine drives runs through the convergence loop: plan, generate,
// normalize, validate and route until the document is valid.
type Engine struct {
	generate    generator.Generator
	collab      Collaborator
	validator   *validator.Validator
	analyzer    *heuristics.Analyzer
	policy      *rules.Policy
	router      *Router
	storage     storage.Storage
	eventBus    *events.EventBus
	log         logger.Logger
	maxRounds   int
	maxRetries  int
	retryDelay  time.Duration
	callTimeout time.Duration
	parallelism int
	stopped     atomic.Bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithStorage persists run records in s instead of memory.
func WithStorage(s storage.Storage) Option {
	return func(e *Engine) {
		if s != nil {
			e.storage = s
		}
	}
}

// WithValidator sets the local validator.
func WithValidator(v *validator.Validator) Option {
	return func(e *Engine) {
		if v != nil {
			e.validator = v
		}
	}
}

func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithPolicy sets the routing policy.
func WithPolicy(p *rules.Policy) Option {
	return func(e *Engine) {
		if p != nil {
			e.policy = p
		}
	}
}

// WithMaxRounds caps the number of routing rounds per run.
func WithMaxRounds(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxRounds = n
		}
	}
}

// WithRetries sets how often a failed collaborator call is retried and
// how long to wait in between.
func WithRetries(n int, delay time.Duration) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.maxRetries = n
		}
		if delay >= 0 {
			e.retryDelay = delay
		}
	}
}

// WithCallTimeout bounds each collaborator call. Zero means no bound.
func WithCallTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d >= 0 {
			e.callTimeout = d
		}
	}
}

// WithParallelism bounds how many runs RunBatch executes at once.
func WithParallelism(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.parallelism = n
		}
	}
}

// WithEventBus publishes run events on bus. The engine stops it on Stop.
func WithEventBus(bus *events.EventBus) Option {
	return func(e *Engine) {
		if bus != nil {
			e.eventBus = bus
		}
	}
}

// NewEngine returns an engine that names runs with generate and delegates
// planning, generation and fixing to collab.
func NewEngine(generate generator.Generator, collab Collaborator, opts ...Option) (*Engine, error) {
	if generate == nil {
		return nil, errors.New("generator is required")
	}
	if collab == nil {
		return nil, errors.New("collaborator is required")
	}

	e := &Engine{
		generate:    generate,
		collab:      collab,
		analyzer:    heuristics.NewAnalyzer(),
		log:         logger.NewNoOpLogger(),
		maxRounds:   DefaultMaxRounds,
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		parallelism: DefaultParallelism,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.validator == nil {
		e.validator = validator.New(validator.NewJSONSchemaBackend())
	}
	if e.storage == nil {
		e.storage = storage.NewMemoryStorage()
	}
	if e.eventBus == nil {
		e.eventBus = events.NewEventBus()
	}
	e.router = NewRouter(e.policy, e.log)
	return e, nil
}

// SubscribeEvent registers handler for eventType (see the events package).
func (e *Engine) SubscribeEvent(eventType string, handler events.Handler) events.Subscription {
	return e.eventBus.Subscribe(eventType, handler)
}

// run is the private state of one execution. It is never shared.
type run struct {
	rec     types.RunRecord
	log     logger.Logger
	started time.Time
}

// Run drives one request to completion. The result is non-nil whenever the
// run got an ID; on failure it carries the last known document and trace.
// Reaching the round cap returns the result with ErrRoundLimitExceeded.
func (e *Engine) Run(ctx context.Context, userIntent, schema string) (*types.RunResult, error) {
	if e.stopped.Load() {
		return nil, ErrEngineStopped
	}
	id, err := e.generate.NextID()
	if err != nil {
		return nil, fmt.Errorf("generate run id: %w", err)
	}

	now := time.Now()
	r := &run{
		rec: types.RunRecord{
			ID:     id,
			Status: types.RunRunning,
			Stage:  types.StageValidateSchema,
			State: types.WorkflowState{
				UserIntent: userIntent,
				RawSchema:  schema,
			},
			Trace:     []types.TraceEntry{},
			CreatedAt: now.UnixMilli(),
			UpdatedAt: now.UnixMilli(),
		},
		log:     e.log.With(map[string]interface{}{"runId": id}),
		started: now,
	}

	metrics.RunsStarted.Inc()
	metrics.RunsActive.Inc()
	defer metrics.RunsActive.Dec()

	r.log.Info("run started", map[string]interface{}{"intent": userIntent})
	return e.finish(ctx, r, e.execute(ctx, r))
}

func (e *Engine) execute(ctx context.Context, r *run) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &PanicError{Stage: string(r.rec.Stage), Value: p}
		}
	}()

	stage := types.StageValidateSchema
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.enter(ctx, r, stage); err != nil {
			return err
		}
		if stage == types.StageEnd {
			return nil
		}
		next, err := e.step(ctx, r, stage)
		if err != nil {
			return err
		}
		stage = next
	}
}

func (e *Engine) step(ctx context.Context, r *run, stage types.Stage) (types.Stage, error) {
	st := &r.rec.State
	switch stage {
	case types.StageValidateSchema:
		check, err := e.checkSchema(ctx, r)
		if err != nil {
			return "", err
		}
		st.CompactSchema = check.CompactSchema
		st.SchemaVersion = check.Version
		return types.StagePlanGeneration, nil

	case types.StagePlanGeneration:
		plan, err := e.text(ctx, r, CallPlanGeneration, func(ctx context.Context) (string, error) {
			return e.collab.PlanGeneration(ctx, st.UserIntent, st.CompactSchema)
		})
		if err != nil {
			if !isCollaboratorError(err) {
				return "", err
			}
			e.fallback(r, CallPlanGeneration, err)
			plan = localGenerationPlan(st.UserIntent, st.CompactSchema)
		}
		st.GenerationPlan = plan
		return types.StageGenerate, nil

	case types.StageGenerate:
		doc, err := e.text(ctx, r, CallGenerate, func(ctx context.Context) (string, error) {
			return e.collab.Generate(ctx, st.UserIntent, st.CompactSchema, st.GenerationPlan)
		})
		if err != nil {
			return "", err
		}
		st.GeneratedJSON = doc
		return types.StageNormalize, nil

	case types.StageNormalize:
		e.normalizeDocument(r)
		return types.StageValidateJSON, nil

	case types.StageValidateJSON:
		outcome, err := e.validateDocument(ctx, r)
		if err != nil {
			return "", err
		}
		st.ValidationResult = &outcome
		st.ValidationSignature = outcome.Signature()
		return types.StageReasonAndRoute, nil

	case types.StageReasonAndRoute:
		return e.route(ctx, r)

	case types.StagePlanFix:
		errs := st.ValidationResult.Display()
		plan, err := e.text(ctx, r, CallPlanFix, func(ctx context.Context) (string, error) {
			return e.collab.PlanFix(ctx, errs, st.UserIntent)
		})
		if err != nil {
			if !isCollaboratorError(err) {
				return "", err
			}
			e.fallback(r, CallPlanFix, err)
			plan = localFixPlan(errs)
		}
		st.FixPlan = plan
		return types.StageApplyFix, nil

	case types.StageApplyFix:
		errs := st.ValidationResult.Display()
		doc, err := e.text(ctx, r, CallApplyFix, func(ctx context.Context) (string, error) {
			return e.collab.ApplyFix(ctx, errs, st.GeneratedJSON, st.CompactSchema, st.FixPlan)
		})
		if err != nil {
			return "", err
		}
		st.GeneratedJSON = doc
		return types.StageNormalize, nil
	}
	return "", fmt.Errorf("unknown stage %q", stage)
}

func (e *Engine) checkSchema(ctx context.Context, r *run) (types.SchemaCheck, error) {
	raw := r.rec.State.RawSchema
	if checker, ok := e.collab.(SchemaChecker); ok {
		check, err := retry(ctx, e, r, CallCheckSchema, func(ctx context.Context) (types.SchemaCheck, error) {
			check, err := checker.CheckSchema(ctx, raw)
			if err == nil && (strings.TrimSpace(check.CompactSchema) == "" || !check.Version.IsValid()) {
				err = errEmptyResponse
			}
			return check, err
		})
		if err == nil {
			return check, nil
		}
		if !isCollaboratorError(err) {
			return types.SchemaCheck{}, err
		}
		e.fallback(r, CallCheckSchema, err)
	}

	check, err := e.validator.CheckSchema(raw)
	if err != nil {
		return types.SchemaCheck{}, &SchemaError{Err: err}
	}
	return check, nil
}

// normalizeDocument strips fences and canonicalizes the generated text. Text
// that does not parse is kept as is so validation reports it as malformed.
func (e *Engine) normalizeDocument(r *run) {
	st := &r.rec.State
	stripped := strings.TrimSpace(normalize.StripFences(st.GeneratedJSON))
	st.HeuristicWarnings = nil
	st.HeuristicSignature = ""

	out, err := normalize.JSON(stripped)
	if err != nil {
		st.GeneratedJSON = stripped
		r.log.Debug("generated text is not JSON", map[string]interface{}{"error": err.Error()})
		return
	}
	st.GeneratedJSON = out

	warnings, err := e.analyzer.Analyze(out)
	if err != nil {
		r.log.Warn("placeholder analysis failed", map[string]interface{}{"error": err.Error()})
		return
	}
	st.HeuristicWarnings = warnings
	st.HeuristicSignature = signature.Of(warnings)
	if len(warnings) > 0 {
		r.log.Debug("placeholder-like values found", map[string]interface{}{"count": len(warnings)})
	}
}

func (e *Engine) validateDocument(ctx context.Context, r *run) (types.ValidationOutcome, error) {
	st := &r.rec.State
	if err := validator.CheckJSON(st.GeneratedJSON); err != nil {
		return types.Invalid(err.Error()), nil
	}

	if remote, ok := e.collab.(JSONValidator); ok {
		outcome, err := retry(ctx, e, r, CallValidateJSON, func(ctx context.Context) (types.ValidationOutcome, error) {
			return remote.ValidateJSON(ctx, st.GeneratedJSON, st.CompactSchema)
		})
		if err == nil {
			if outcome.Valid {
				return types.Valid(), nil
			}
			return types.Invalid(outcome.Errors...), nil
		}
		if !isCollaboratorError(err) {
			return types.ValidationOutcome{}, err
		}
		e.fallback(r, CallValidateJSON, err)
	}

	return e.validator.ValidateWithDraft(st.GeneratedJSON, st.CompactSchema, st.SchemaVersion), nil
}

func (e *Engine) route(ctx context.Context, r *run) (types.Stage, error) {
	st := &r.rec.State
	r.rec.Round++

	external := func(ctx context.Context, attempts int) (string, error) {
		req := types.RouteRequest{
			UserIntent:             st.UserIntent,
			Schema:                 st.CompactSchema,
			JSON:                   st.GeneratedJSON,
			Errors:                 st.ValidationResult.Display(),
			ConsecutiveFixAttempts: attempts,
		}
		return e.text(ctx, r, CallRoute, func(ctx context.Context) (string, error) {
			return e.collab.Route(ctx, req)
		})
	}

	res := e.router.Decide(ctx, RouteInput{
		Outcome:           *st.ValidationResult,
		PreviousDisplay:   st.PreviousValidationResult,
		PreviousSignature: st.PreviousValidationSignature,
		PreviousDecision:  st.Decision,
		Iteration:         st.IterationCount,
		Round:             r.rec.Round,
		WarningCount:      len(st.HeuristicWarnings),
	}, external)
	if err := ctx.Err(); err != nil {
		return "", err
	}

	st.PreviousValidationResult = res.Display
	st.PreviousValidationSignature = res.Signature
	st.Decision = res.Decision
	st.Reasoning = res.Reasoning
	st.IterationCount = res.Iteration
	r.rec.Trace = append(r.rec.Trace, types.TraceEntry{
		Round:      r.rec.Round,
		Decision:   res.Decision,
		Reasoning:  res.Reasoning,
		ErrorCount: res.ErrorCount,
		Signature:  res.Signature,
		Iteration:  res.Iteration,
	})

	metrics.Decisions.WithLabelValues(string(res.Decision), res.Rule).Inc()
	r.log.Info("routing decision", map[string]interface{}{
		"round":      r.rec.Round,
		"decision":   res.Decision,
		"rule":       res.Rule,
		"reasoning":  res.Reasoning,
		"errorCount": res.ErrorCount,
		"iteration":  res.Iteration,
	})
	e.publishEvent(ctx, events.DecisionMade, r, map[string]interface{}{
		"round":      r.rec.Round,
		"decision":   string(res.Decision),
		"rule":       res.Rule,
		"reasoning":  res.Reasoning,
		"errorCount": res.ErrorCount,
	})

	if res.Decision == types.DecisionEnd {
		return types.StageEnd, nil
	}
	if r.rec.Round >= e.maxRounds {
		return "", fmt.Errorf("%w: %d rounds without a valid document", ErrRoundLimitExceeded, r.rec.Round)
	}
	if res.Decision == types.DecisionRegenerate {
		return types.StagePlanGeneration, nil
	}
	return types.StagePlanFix, nil
}

// text calls a text-returning collaborator; blank answers count as failures.
func (e *Engine) text(ctx context.Context, r *run, call string, fn func(ctx context.Context) (string, error)) (string, error) {
	return retry(ctx, e, r, call, func(ctx context.Context) (string, error) {
		out, err := fn(ctx)
		if err == nil && strings.TrimSpace(out) == "" {
			err = errEmptyResponse
		}
		return out, err
	})
}

// retry makes 1 + maxRetries attempts. A cancelled ctx is returned as is;
// exhausted attempts are reported as a CollaboratorError.
func retry[T any](ctx context.Context, e *Engine, r *run, call string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	attempts := e.maxRetries + 1
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		start := time.Now()
		out, err := invoke(ctx, e.callTimeout, fn)
		metrics.CollaboratorDuration.WithLabelValues(call).Observe(time.Since(start).Seconds())
		if err == nil {
			metrics.CollaboratorCalls.WithLabelValues(call, metrics.ResultOK).Inc()
			return out, nil
		}
		metrics.CollaboratorCalls.WithLabelValues(call, metrics.ResultError).Inc()
		lastErr = err
		r.log.Warn("collaborator call failed", map[string]interface{}{
			"call":    call,
			"attempt": i + 1,
			"error":   err.Error(),
		})

		if i < attempts-1 {
			if err := sleep(ctx, e.retryDelay); err != nil {
				return zero, err
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	return zero, &CollaboratorError{Call: call, Attempts: attempts, Err: lastErr}
}

// invoke runs one attempt under the call timeout.
func invoke[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(callCtx)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func isCollaboratorError(err error) bool {
	var ce *CollaboratorError
	return errors.As(err, &ce)
}

func (e *Engine) fallback(r *run, call string, err error) {
	metrics.CollaboratorCalls.WithLabelValues(call, metrics.ResultFallback).Inc()
	r.log.Warn("using local fallback", map[string]interface{}{"call": call, "error": err.Error()})
}

// enter records the move to stage and notifies subscribers.
func (e *Engine) enter(ctx context.Context, r *run, stage types.Stage) error {
	r.rec.Stage = stage
	r.rec.UpdatedAt = time.Now().UnixMilli()
	if err := e.saveRun(ctx, r.rec); err != nil {
		return err
	}
	r.log.Debug("stage entered", map[string]interface{}{"stage": stage, "round": r.rec.Round})
	e.publishEvent(ctx, events.StageEntered, r, map[string]interface{}{"round": r.rec.Round})
	return nil
}

func (e *Engine) saveRun(ctx context.Context, rec types.RunRecord) error {
	if err := e.storage.SaveRun(ctx, rec); err != nil {
		return fmt.Errorf("save run %d: %w", rec.ID, err)
	}
	return nil
}

func (e *Engine) publishEvent(ctx context.Context, eventType string, r *run, data map[string]interface{}) {
	if !e.eventBus.HasSubscribers(eventType) {
		return
	}
	err := e.eventBus.Publish(ctx, events.Event{
		Type:  eventType,
		RunID: r.rec.ID,
		Stage: string(r.rec.Stage),
		Data:  data,
	})
	if err != nil {
		r.log.Debug("event not published", map[string]interface{}{"type": eventType, "error": err.Error()})
	}
}

// finish settles the run status, persists the final record and builds the
// result. Persisting uses a context detached from cancellation so that a
// cancelled run is still recorded.
func (e *Engine) finish(ctx context.Context, r *run, runErr error) (*types.RunResult, error) {
	if runErr != nil {
		e.handleError(ctx, r, runErr)
	} else {
		r.rec.Status = types.RunCompleted
		r.rec.UpdatedAt = time.Now().UnixMilli()
		if err := e.saveRun(context.WithoutCancel(ctx), r.rec); err != nil {
			r.log.Error("failed to save completed run", map[string]interface{}{"error": err.Error()})
		}
		e.publishEvent(ctx, events.RunCompleted, r, map[string]interface{}{"rounds": r.rec.Round})
		r.log.Info("run completed", map[string]interface{}{"rounds": r.rec.Round})
	}

	status := string(r.rec.Status)
	metrics.RunsFinished.WithLabelValues(status).Inc()
	metrics.RunDuration.WithLabelValues(status).Observe(time.Since(r.started).Seconds())
	metrics.RunRounds.Observe(float64(r.rec.Round))

	return resultOf(r.rec), runErr
}

func (e *Engine) handleError(ctx context.Context, r *run, err error) {
	r.rec.Status = types.RunFailed
	if errors.Is(err, ErrRoundLimitExceeded) {
		r.rec.Status = types.RunExhausted
	}
	r.rec.Error = err.Error()
	r.rec.UpdatedAt = time.Now().UnixMilli()

	if saveErr := e.saveRun(context.WithoutCancel(ctx), r.rec); saveErr != nil {
		r.log.Error("failed to save run error state", map[string]interface{}{
			"error":         saveErr.Error(),
			"originalError": err.Error(),
		})
	}
	e.publishEvent(context.WithoutCancel(ctx), events.RunFailed, r, map[string]interface{}{
		"status": string(r.rec.Status),
		"error":  err.Error(),
	})
	r.log.WithError(err).Error("run stopped", map[string]interface{}{
		"status": r.rec.Status,
		"stage":  r.rec.Stage,
		"rounds": r.rec.Round,
	})
}

func resultOf(rec types.RunRecord) *types.RunResult {
	res := &types.RunResult{
		RunID:         rec.ID,
		Status:        rec.Status,
		GeneratedJSON: rec.State.GeneratedJSON,
		Warnings:      append([]string(nil), rec.State.HeuristicWarnings...),
		Trace:         append([]types.TraceEntry{}, rec.Trace...),
		Rounds:        rec.Round,
		SchemaVersion: rec.State.SchemaVersion,
	}
	if rec.State.ValidationResult != nil {
		res.Outcome = *rec.State.ValidationResult
	}
	return res
}

// GetRun returns the latest snapshot of a run.
func (e *Engine) GetRun(ctx context.Context, id uint64) (*types.RunRecord, error) {
	rec, err := e.storage.GetRun(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrRunNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrRunNotFound, id)
		}
		return nil, err
	}
	return &rec, nil
}

// ListRuns returns every stored run ordered by ID.
func (e *Engine) ListRuns(ctx context.Context) ([]types.RunRecord, error) {
	return e.storage.ListRuns(ctx)
}

// ClearCompleted drops finished runs from storage.
func (e *Engine) ClearCompleted(ctx context.Context) (int, error) {
	return e.storage.ClearCompleted(ctx)
}

// Stop rejects new runs and shuts down the event bus. Runs in progress
// finish but their events are dropped.
func (e *Engine) Stop(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		e.stopped.Store(true)
		e.eventBus.Stop()
		return nil
	}
}
