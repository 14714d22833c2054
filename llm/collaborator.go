package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/songzhibin97/jsonforge/config"
	"github.com/songzhibin97/jsonforge/logger"
	"github.com/songzhibin97/jsonforge/types"
)

// Collaborator plans, generates, fixes and routes with language models.
// Each call goes to the model its workflow node is routed to.
type Collaborator struct {
	client Client
	models *ModelRouter
	log    logger.Logger
}

// NewCollaborator wires client and models together. A nil log discards output.
func NewCollaborator(client Client, models *ModelRouter, log logger.Logger) *Collaborator {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Collaborator{client: client, models: models, log: log}
}

// NewFromConfig builds the client named by cfg.Provider.
func NewFromConfig(ctx context.Context, cfg config.LLMConfig, log logger.Logger) (*Collaborator, error) {
	switch cfg.Provider {
	case "", "genai":
		client, err := NewGenAIClient(ctx, cfg.GenAI.APIKey)
		if err != nil {
			return nil, err
		}
		models := NewModelRouter(cfg.Routing, cfg.GenAI.Model, cfg.GenAI.ThinkingModel)
		return NewCollaborator(client, models, log), nil
	case "http":
		client, err := NewHTTPClient(HTTPConfig{
			BaseURL:    cfg.HTTP.BaseURL,
			APIKey:     cfg.HTTP.APIKey,
			Timeout:    cfg.HTTP.Timeout(),
			MaxRetries: cfg.HTTP.MaxRetries,
		})
		if err != nil {
			return nil, err
		}
		models := NewModelRouter(cfg.Routing, cfg.HTTP.Model, cfg.HTTP.ThinkingModel)
		return NewCollaborator(client, models, log), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Provider)
	}
}

func (c *Collaborator) complete(ctx context.Context, node types.Stage, system, prompt string) (string, error) {
	model := c.models.ModelFor(node)
	start := time.Now()
	out, err := c.client.Complete(ctx, Request{Model: model, System: system, Prompt: prompt})
	fields := map[string]interface{}{
		"node":     string(node),
		"model":    model,
		"duration": time.Since(start).String(),
	}
	if err != nil {
		c.log.WithError(err).Warn("completion failed", fields)
		return "", fmt.Errorf("%s: %w", node, err)
	}
	fields["responseLength"] = len(out)
	c.log.Debug("completion done", fields)
	return out, nil
}

func (c *Collaborator) PlanGeneration(ctx context.Context, userIntent, schema string) (string, error) {
	system, prompt := generationPlanPrompt(userIntent, schema)
	return c.complete(ctx, types.StagePlanGeneration, system, prompt)
}

func (c *Collaborator) Generate(ctx context.Context, userIntent, schema, plan string) (string, error) {
	system, prompt := generatePrompt(userIntent, schema, plan)
	return c.complete(ctx, types.StageGenerate, system, prompt)
}

func (c *Collaborator) PlanFix(ctx context.Context, errors, userIntent string) (string, error) {
	system, prompt := fixPlanPrompt(errors, userIntent)
	return c.complete(ctx, types.StagePlanFix, system, prompt)
}

func (c *Collaborator) ApplyFix(ctx context.Context, errors, json, schema, plan string) (string, error) {
	system, prompt := applyFixPrompt(errors, json, schema, plan)
	return c.complete(ctx, types.StageApplyFix, system, prompt)
}

// Route returns the model's raw answer; the engine parses it.
func (c *Collaborator) Route(ctx context.Context, req types.RouteRequest) (string, error) {
	system, prompt := routePrompt(req)
	return c.complete(ctx, types.StageReasonAndRoute, system, prompt)
}
