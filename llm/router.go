package llm

import (
	"strings"

	"github.com/songzhibin97/jsonforge/config"
	"github.com/songzhibin97/jsonforge/types"
)

// Family groups models by what a node needs from them.
type Family string

const (
	// FamilyGenerative produces documents.
	FamilyGenerative Family = "generative"
	// FamilyThinking plans, reasons and routes.
	FamilyThinking Family = "thinking"
)

var defaultFamilies = map[string]Family{
	strings.ToLower(string(types.StageValidateSchema)): FamilyThinking,
	strings.ToLower(string(types.StagePlanGeneration)): FamilyThinking,
	strings.ToLower(string(types.StageGenerate)):       FamilyGenerative,
	strings.ToLower(string(types.StageValidateJSON)):   FamilyThinking,
	strings.ToLower(string(types.StageReasonAndRoute)): FamilyThinking,
	strings.ToLower(string(types.StagePlanFix)):        FamilyThinking,
	strings.ToLower(string(types.StageApplyFix)):       FamilyGenerative,
}

var thinkingHints = []string{"validate", "think", "reason", "plan", "route"}

// ModelRouter picks the model for a workflow node. Node names are matched
// case-insensitively.
type ModelRouter struct {
	families map[string]Family
	models   map[Family]string
}

// NewModelRouter overlays cfg on the built-in node table. When
// thinkingModel is empty the generative model serves both families.
func NewModelRouter(cfg config.RoutingConfig, generativeModel, thinkingModel string) *ModelRouter {
	families := make(map[string]Family, len(defaultFamilies)+len(cfg.Nodes))
	for node, f := range defaultFamilies {
		families[node] = f
	}
	for node, f := range cfg.Nodes {
		families[strings.ToLower(strings.TrimSpace(node))] = Family(strings.ToLower(strings.TrimSpace(f)))
	}
	if thinkingModel == "" {
		thinkingModel = generativeModel
	}
	return &ModelRouter{
		families: families,
		models: map[Family]string{
			FamilyGenerative: generativeModel,
			FamilyThinking:   thinkingModel,
		},
	}
}

// FamilyFor returns the family of node. Unknown nodes whose names suggest
// planning or checking are treated as thinking nodes.
func (r *ModelRouter) FamilyFor(node types.Stage) Family {
	name := strings.ToLower(string(node))
	if f, ok := r.families[name]; ok && (f == FamilyGenerative || f == FamilyThinking) {
		return f
	}
	for _, hint := range thinkingHints {
		if strings.Contains(name, hint) {
			return FamilyThinking
		}
	}
	return FamilyGenerative
}

// ModelFor returns the model configured for node's family.
func (r *ModelRouter) ModelFor(node types.Stage) string {
	return r.models[r.FamilyFor(node)]
}
