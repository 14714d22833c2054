package llm

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/songzhibin97/jsonforge/config"
	"github.com/songzhibin97/jsonforge/logger"
	"github.com/songzhibin97/jsonforge/types"
	"github.com/songzhibin97/jsonforge/workflow"
)

var _ workflow.Collaborator = (*Collaborator)(nil)

type fakeClient struct {
	mu       sync.Mutex
	requests []Request
	reply    string
	err      error
}

func (f *fakeClient) Complete(ctx context.Context, req Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.reply, f.err
}

func (f *fakeClient) last() Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func newTestCollaborator(t *testing.T, client Client) *Collaborator {
	return NewCollaborator(client, NewModelRouter(config.RoutingConfig{}, "flash", "pro"), logger.NewTestLogger(t))
}

func TestCollaboratorRoutesModels(t *testing.T) {
	client := &fakeClient{reply: "ok"}
	c := newTestCollaborator(t, client)
	ctx := context.Background()

	_, err := c.PlanGeneration(ctx, "a shop order", `{"type":"object"}`)
	require.NoError(t, err)
	assert.Equal(t, "pro", client.last().Model)

	_, err = c.Generate(ctx, "a shop order", `{"type":"object"}`, "the plan")
	require.NoError(t, err)
	assert.Equal(t, "flash", client.last().Model)

	_, err = c.PlanFix(ctx, "$/id: missing", "a shop order")
	require.NoError(t, err)
	assert.Equal(t, "pro", client.last().Model)

	_, err = c.ApplyFix(ctx, "$/id: missing", `{}`, `{"type":"object"}`, "add id")
	require.NoError(t, err)
	assert.Equal(t, "flash", client.last().Model)

	_, err = c.Route(ctx, types.RouteRequest{Errors: "$/id: missing"})
	require.NoError(t, err)
	assert.Equal(t, "pro", client.last().Model)
}

func TestCollaboratorPrompts(t *testing.T) {
	client := &fakeClient{reply: "ok"}
	c := newTestCollaborator(t, client)
	ctx := context.Background()

	_, _ = c.PlanGeneration(ctx, "a hotel booking", `{"required":["guest"]}`)
	req := client.last()
	assert.Contains(t, req.Prompt, "a hotel booking")
	assert.Contains(t, req.Prompt, `{"required":["guest"]}`)
	assert.Contains(t, req.Prompt, "no placeholders")

	_, _ = c.Generate(ctx, "a hotel booking", `{"required":["guest"]}`, "guest is a full name")
	req = client.last()
	assert.Contains(t, req.Prompt, "guest is a full name")
	assert.Contains(t, req.System, "no Markdown fences")

	_, _ = c.ApplyFix(ctx, "$/guest: expected string", `{"guest":1}`, `{"required":["guest"]}`, "make guest a string")
	req = client.last()
	for _, part := range []string{"## Fix plan", "make guest a string", "## Validation errors", "$/guest: expected string", "## Current JSON", `{"guest":1}`} {
		assert.Contains(t, req.Prompt, part)
	}

	_, _ = c.Route(ctx, types.RouteRequest{
		UserIntent:             "a hotel booking",
		Schema:                 `{}`,
		JSON:                   `{"guest":1}`,
		Errors:                 "a \nb \nc",
		ConsecutiveFixAttempts: 2,
	})
	req = client.last()
	assert.Contains(t, req.Prompt, "## Consecutive fix attempts\n2\n")
	assert.Contains(t, req.Prompt, "REGENERATE")
	assert.Contains(t, req.System, "Never choose END while errors remain")
}

func TestCollaboratorWrapsErrors(t *testing.T) {
	boom := errors.New("quota exceeded")
	c := newTestCollaborator(t, &fakeClient{err: boom})

	_, err := c.Generate(context.Background(), "x", "{}", "plan")
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, string(types.StageGenerate))
}

func TestNewFromConfig(t *testing.T) {
	ctx := context.Background()

	_, err := NewFromConfig(ctx, config.LLMConfig{Provider: "genai"}, nil)
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	_, err = NewFromConfig(ctx, config.LLMConfig{Provider: "http"}, nil)
	assert.Error(t, err)

	_, err = NewFromConfig(ctx, config.LLMConfig{Provider: "carrier-pigeon"}, nil)
	assert.ErrorIs(t, err, ErrUnknownProvider)

	c, err := NewFromConfig(ctx, config.LLMConfig{
		Provider: "http",
		HTTP:     config.HTTPConfig{BaseURL: "http://localhost:1", Model: "m"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "m", c.models.ModelFor(types.StagePlanFix))
}
