// Package retrieval implements the gated retrieval path: intent-scoped
// category selection, composite scoring, policy thresholds, diversity
// filtering, and token-budget enforcement.
package retrieval

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/strataml/strata/internal/similarity"
	"github.com/strataml/strata/internal/state"
	"github.com/strataml/strata/internal/tier"
	"github.com/strataml/strata/pkg/types"
)

// Intent scopes which memory categories a retrieval may touch. Retrieval
// without a declared intent is not allowed.
type Intent string

const (
	IntentPlanning          Intent = "planning"
	IntentFactualQA         Intent = "factual_qa"
	IntentToolOrchestration Intent = "tool_orchestration"
	IntentConstraintCheck   Intent = "constraint_check"
	IntentContextRecall     Intent = "context_recall"
)

// ErrUnsupportedIntent is returned for an intent with no category mapping.
var ErrUnsupportedIntent = errors.New("retrieval: unsupported intent")

// intentCategories maps each intent to the categories it is allowed to read.
var intentCategories = map[Intent][]types.MemoryCategory{
	IntentPlanning:          {types.CategoryDecision, types.CategoryContextual},
	IntentFactualQA:         {types.CategoryFactual},
	IntentToolOrchestration: {types.CategoryProcedural, types.CategoryEnvironmental},
	IntentConstraintCheck:   {types.CategoryContextual},
	IntentContextRecall:     {types.CategoryContextual, types.CategoryDecision},
}

const (
	// diversityThreshold drops near-duplicate results already covered by a
	// higher-scored item.
	diversityThreshold = 0.8

	// DefaultTokenBudget bounds how much retrieved content may enter a
	// prompt in one call.
	DefaultTokenBudget = 2000.0

	lowConfidenceFloor = 0.6
	agedDecayFloor     = 0.5
)

// sourceQuality maps the source prefix (before any ":") to a trust weight.
var sourceQuality = map[string]float64{
	"user_input":    1.0,
	"verified_tool": 0.9,
	"web_search":    0.6,
	"inferred":      0.5,
	"unknown":       0.3,
}

// policyThresholds returns the (confidence, verification) score floors for a
// policy version.
func policyThresholds(p state.PolicyVersion) (confidence, verification float64) {
	switch p {
	case state.PolicyConservative:
		return 0.7, 0.8
	case state.PolicyAggressive:
		return 0.3, 0.4
	default:
		return 0.5, 0.6
	}
}

// ScoredMemory is one retrieved item with its composite score and
// verification advice.
type ScoredMemory struct {
	Item                *types.MemoryItem `json:"item"`
	Score               float64           `json:"score"`
	Decay               float64           `json:"decay"`
	NeedsVerification   bool              `json:"needs_verification"`
	VerificationReasons []string          `json:"verification_reasons,omitempty"`
}

// Result is the outcome of a gated retrieval.
type Result struct {
	Intent               Intent         `json:"intent"`
	Items                []ScoredMemory `json:"items"`
	WorkingContext       *tier.Window   `json:"working_context,omitempty"`
	VerificationRequired bool           `json:"verification_required"`
	BudgetExceeded       bool           `json:"budget_exceeded"`
	TokensUsed           float64        `json:"tokens_used"`
}

// RetrieveOptions tunes a single Retrieve call.
type RetrieveOptions struct {
	Query          string
	MinConfidence  *float64 // overrides the policy confidence floor
	IncludeWorking bool
	MaxItems       int // 0 = budget-bound only
}

// Gate is the single retrieval entry point. It reads policy from the agent
// state so conservative escalation tightens retrieval without any extra
// plumbing.
type Gate struct {
	longTerm  *tier.LongTermMemory
	working   *tier.WorkingContext
	agent     *state.AgentState
	sim       similarity.Scorer
	estimator TokenEstimator
	budget    float64
	maxItems  int
}

// NewGate creates a gate over the given tiers and state.
func NewGate(longTerm *tier.LongTermMemory, working *tier.WorkingContext, agent *state.AgentState) *Gate {
	return &Gate{
		longTerm:  longTerm,
		working:   working,
		agent:     agent,
		sim:       similarity.WordOverlap{},
		estimator: NewCachedEstimator(HeuristicEstimator{}, 1024),
		budget:    DefaultTokenBudget,
	}
}

// SetEstimator swaps the token estimator.
func (g *Gate) SetEstimator(e TokenEstimator) {
	if e != nil {
		g.estimator = e
	}
}

// SetTokenBudget overrides the per-call token budget.
func (g *Gate) SetTokenBudget(budget float64) {
	if budget > 0 {
		g.budget = budget
	}
}

// SetMaxItems sets the item cap applied when a call does not pass its own.
// Zero leaves retrievals budget-bound only.
func (g *Gate) SetMaxItems(n int) {
	if n >= 0 {
		g.maxItems = n
	}
}

// Retrieve runs the full gated pipeline: intent scoping, candidate scoring,
// threshold filtering, diversity filtering, and budget enforcement.
func (g *Gate) Retrieve(intent Intent, opts RetrieveOptions) (*Result, error) {
	categories, ok := intentCategories[intent]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedIntent, intent)
	}

	confFloor, verifFloor := policyThresholds(g.agent.Policy())
	if opts.MinConfidence != nil {
		confFloor = *opts.MinConfidence
	}

	var candidates []ScoredMemory
	for _, cat := range categories {
		for _, item := range g.longTerm.Query(tier.QueryFilter{Category: cat, Status: types.StatusActive}) {
			if item.Confidence < confFloor {
				continue
			}
			candidates = append(candidates, g.score(item, opts.Query, verifFloor))
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score == candidates[j].Score {
			return candidates[i].Item.ID < candidates[j].Item.ID
		}
		return candidates[i].Score > candidates[j].Score
	})

	maxItems := opts.MaxItems
	if maxItems == 0 {
		maxItems = g.maxItems
	}
	selected, budgetExceeded, tokensUsed := g.selectWithinBudget(g.diversify(candidates), maxItems)

	result := &Result{
		Intent:         intent,
		Items:          selected,
		BudgetExceeded: budgetExceeded,
		TokensUsed:     tokensUsed,
	}
	for i := range selected {
		if selected[i].NeedsVerification {
			result.VerificationRequired = true
		}
		// Record the access on the stored item, then hand out a copy.
		if stored, ok := g.longTerm.Get(selected[i].Item.ID); ok {
			selected[i].Item = stored.Clone()
		}
	}
	if opts.IncludeWorking && g.working != nil {
		window := g.working.ContextWindow()
		result.WorkingContext = &window
	}
	return result, nil
}

// score computes the composite relevance score and verification advice for a
// candidate.
func (g *Gate) score(item *types.MemoryItem, query string, verifFloor float64) ScoredMemory {
	decay := item.DecayFactor()
	accessBoost := math.Min(float64(item.AccessCount)/10.0, 1.0)
	overlap := queryOverlap(query, item.Content)

	score := item.Confidence*0.30 +
		decay*0.25 +
		sourceQualityFor(item.Source)*0.20 +
		accessBoost*0.10 +
		overlap*0.15
	if score > 1.0 {
		score = 1.0
	}

	sm := ScoredMemory{Item: item, Score: score, Decay: decay}
	if item.NeedsVerification() || score < verifFloor || decay < agedDecayFloor {
		sm.NeedsVerification = true
		sm.VerificationReasons = verificationReasons(item, decay)
	}
	return sm
}

// verificationReasons explains why an item was flagged. The fallback reason
// covers items flagged purely by the policy score floor.
func verificationReasons(item *types.MemoryItem, decay float64) []string {
	var reasons []string
	if item.Status == types.StatusContested {
		reasons = append(reasons, "contested by newer information")
	}
	if decay < agedDecayFloor {
		reasons = append(reasons, "aged beyond half-life")
	}
	if item.Confidence < lowConfidenceFloor {
		reasons = append(reasons, fmt.Sprintf("low confidence (%.2f)", item.Confidence))
	}
	if len(item.EvidenceRefs) == 0 {
		reasons = append(reasons, "no supporting evidence")
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "policy requirement")
	}
	return reasons
}

// diversify greedily drops candidates too similar to an already-kept,
// higher-scored result.
func (g *Gate) diversify(candidates []ScoredMemory) []ScoredMemory {
	var kept []ScoredMemory
	for _, c := range candidates {
		redundant := false
		for _, k := range kept {
			if g.sim.Score(c.Item.Content, k.Item.Content) > diversityThreshold {
				redundant = true
				break
			}
		}
		if !redundant {
			kept = append(kept, c)
		}
	}
	return kept
}

// selectWithinBudget takes the highest-scored prefix that fits the token
// budget, stopping at the first item that would overflow.
func (g *Gate) selectWithinBudget(candidates []ScoredMemory, maxItems int) (selected []ScoredMemory, exceeded bool, used float64) {
	for _, c := range candidates {
		if maxItems > 0 && len(selected) >= maxItems {
			exceeded = true
			break
		}
		cost := g.estimator.Estimate(c.Item.Content)
		if used+cost > g.budget {
			exceeded = true
			break
		}
		used += cost
		selected = append(selected, c)
	}
	return selected, exceeded, used
}

// queryOverlap measures how much of the query's vocabulary the content
// covers: matched query words over total query words.
func queryOverlap(query, content string) float64 {
	queryWords := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(query)) {
		queryWords[w] = struct{}{}
	}
	if len(queryWords) == 0 {
		return 0
	}
	contentWords := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(content)) {
		contentWords[w] = struct{}{}
	}
	matched := 0
	for w := range queryWords {
		if _, ok := contentWords[w]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(queryWords))
}

// sourceQualityFor maps a source string to its trust weight using the prefix
// before any ":" qualifier.
func sourceQualityFor(source string) float64 {
	prefix := source
	if i := strings.Index(source, ":"); i >= 0 {
		prefix = source[:i]
	}
	if q, ok := sourceQuality[prefix]; ok {
		return q
	}
	return 0.5
}
