package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/songzhibin97/jsonforge/logger"
	"github.com/songzhibin97/jsonforge/normalize"
	"github.com/songzhibin97/jsonforge/rules"
	"github.com/songzhibin97/jsonforge/types"
)

// Rules that can produce a routing decision.
const (
	RuleValid            = "valid"
	RuleStagnation       = "stagnation"
	RuleCheapFix         = "cheap_fix"
	RuleExternal         = "external"
	RuleExternalFallback = "external_fallback"
)

const builtinCheapFixLimit = 2

// RouteInput is everything the router looks at for one decision.
type RouteInput struct {
	Outcome           types.ValidationOutcome
	PreviousDisplay   string
	PreviousSignature string
	PreviousDecision  types.Decision
	Iteration         int
	Round             int
	WarningCount      int
}

// RouteResult is the router's verdict. Display and Signature describe the
// outcome that was routed and become the "previous" values of the next round.
type RouteResult struct {
	Decision   types.Decision
	Reasoning  string
	Iteration  int
	Rule       string
	ErrorCount int
	Display    string
	Signature  string
}

// ExternalRoute asks a reasoning collaborator for a decision. It receives
// the number of consecutive fix attempts and returns the raw response text.
type ExternalRoute func(ctx context.Context, consecutiveFixAttempts int) (string, error)

// Router picks the next step after validation.
type Router struct {
	policy *rules.Policy
	log    logger.Logger
}

// NewRouter returns a router. A nil policy uses rules.DefaultPolicy.
func NewRouter(policy *rules.Policy, log logger.Logger) *Router {
	if policy == nil {
		policy = rules.DefaultPolicy()
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Router{policy: policy, log: log}
}

// Decide applies the routing rules in order: a valid outcome ends the run,
// a fix that changed nothing escalates to regeneration, a small error set
// is fixed directly, and anything else is delegated to external.
//
// The iteration count only tracks consecutive fixes, so it restarts from 0
// whenever the previous decision was not a fix.
func (r *Router) Decide(ctx context.Context, in RouteInput, external ExternalRoute) RouteResult {
	res := RouteResult{
		Display:   in.Outcome.Display(),
		Signature: in.Outcome.Signature(),
	}

	if in.Outcome.Valid {
		res.Decision = types.DecisionEnd
		res.Reasoning = "document is valid"
		res.Rule = RuleValid
		res.Iteration = in.Iteration
		return res
	}

	base := 0
	if in.PreviousDecision == types.DecisionFix {
		base = in.Iteration
	}
	res.ErrorCount = types.ErrorCount(res.Display)

	if in.PreviousDecision == types.DecisionFix && r.stagnated(in, res) {
		res.Decision = types.DecisionRegenerate
		res.Reasoning = "the last fix did not change the validation errors"
		res.Rule = RuleStagnation
		res.Iteration = 0
		return res
	}

	if r.cheapFix(rules.Facts{
		ErrorCount:   res.ErrorCount,
		Iteration:    base,
		Round:        in.Round,
		WarningCount: in.WarningCount,
	}) {
		res.Decision = types.DecisionFix
		res.Reasoning = fmt.Sprintf("%d validation error(s), fixing in place", res.ErrorCount)
		res.Rule = RuleCheapFix
		res.Iteration = base + 1
		return res
	}

	res.Rule = RuleExternal
	if external == nil {
		res.Decision = types.DecisionFix
		res.Reasoning = "no reasoning collaborator, defaulting to fix"
		res.Rule = RuleExternalFallback
	} else if raw, err := external(ctx, base); err != nil {
		r.log.Warn("route call failed, defaulting to fix", map[string]interface{}{"error": err.Error()})
		res.Decision = types.DecisionFix
		res.Reasoning = "route call failed: " + err.Error()
		res.Rule = RuleExternalFallback
	} else if d, reason, ok := ParseRouteResponse(raw); !ok {
		r.log.Warn("unrecognized route response, defaulting to fix", map[string]interface{}{"response": raw})
		res.Decision = types.DecisionFix
		res.Reasoning = "unrecognized route response"
		res.Rule = RuleExternalFallback
	} else {
		res.Decision = d
		res.Reasoning = reason
		// End is only honored for valid documents, handled above.
		if d == types.DecisionEnd {
			res.Decision = types.DecisionFix
			res.Reasoning = "END proposed for an invalid document: " + reason
			res.Rule = RuleExternalFallback
		}
	}

	if res.Decision == types.DecisionRegenerate {
		res.Iteration = 0
	} else {
		res.Iteration = base + 1
	}
	return res
}

func (r *Router) stagnated(in RouteInput, res RouteResult) bool {
	if res.Display == in.PreviousDisplay {
		return true
	}
	return res.Signature != "" && in.PreviousSignature != "" && res.Signature == in.PreviousSignature
}

func (r *Router) cheapFix(f rules.Facts) bool {
	ok, err := r.policy.CheapFix(f)
	if err != nil {
		r.log.Warn("cheap fix rule failed, using built-in limit", map[string]interface{}{
			"rule":  r.policy.CheapFixRule(),
			"error": err.Error(),
		})
		return f.ErrorCount <= builtinCheapFixLimit
	}
	return ok
}

// ParseRouteResponse extracts decision and reason from a route response.
// Code fences and text around the JSON object are tolerated; the decision
// is matched case-insensitively. ok is false when no known decision is found.
func ParseRouteResponse(raw string) (decision types.Decision, reason string, ok bool) {
	text := strings.TrimSpace(normalize.StripFences(raw))
	if !gjson.Valid(text) {
		start := strings.Index(text, "{")
		end := strings.LastIndex(text, "}")
		if start < 0 || end <= start {
			return "", "", false
		}
		text = text[start : end+1]
		if !gjson.Valid(text) {
			return "", "", false
		}
	}
	doc := gjson.Parse(text)
	if !doc.IsObject() {
		return "", "", false
	}
	decision, ok = types.ParseDecision(doc.Get("decision").String())
	if !ok {
		return "", "", false
	}
	return decision, strings.TrimSpace(doc.Get("reason").String()), true
}
