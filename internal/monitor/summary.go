package monitor

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/strataml/strata/internal/state"
	"github.com/strataml/strata/internal/tier"
	"github.com/strataml/strata/pkg/types"
)

const (
	// DefaultSummaryTitle heads a summary when the caller gives none.
	DefaultSummaryTitle = "Current State"

	summaryConstraints    = 5
	summaryDecisions      = 5
	summaryEvidence       = 5
	summaryQuestions      = 3
	summaryEvidenceChars  = 100
	evidenceMinConfidence = 0.7

	// minFactLength drops fragments too short to stand alone as a claim.
	minFactLength = 10
)

var sentenceBoundary = regexp.MustCompile(`[.!?]+`)

// hedgePhrases mark sentences that state opinion, not fact.
var hedgePhrases = []string{"i think", "maybe", "perhaps", "might be", "could be"}

// SummaryGenerator produces the anti-drift summary: always regenerated from
// atomic source facts (state fields and stored memories), never from a
// previous summary. Identical state yields an identical summary.
type SummaryGenerator struct {
	agent    *state.AgentState
	longTerm *tier.LongTermMemory
}

// NewSummaryGenerator creates a generator over the given state and store.
func NewSummaryGenerator(agent *state.AgentState, longTerm *tier.LongTermMemory) *SummaryGenerator {
	return &SummaryGenerator{agent: agent, longTerm: longTerm}
}

// Generate builds a fresh summary under the given title. An empty title
// falls back to DefaultSummaryTitle.
func (g *SummaryGenerator) Generate(title string) string {
	if title == "" {
		title = DefaultSummaryTitle
	}

	goal := g.agent.TopGoal()
	if goal == "" {
		goal = "None defined"
	}

	constraints := g.agent.Constraints()
	if len(constraints) > summaryConstraints {
		constraints = constraints[:summaryConstraints]
	}
	constraintsStr := "None"
	if len(constraints) > 0 {
		constraintsStr = strings.Join(constraints, "; ")
	}

	focus := g.agent.FocusWindow()
	if len(focus) > summaryDecisions {
		focus = focus[len(focus)-summaryDecisions:]
	}
	var decisions []string
	for _, e := range focus {
		decisions = append(decisions, "- "+e.Decision)
	}
	decisionsStr := "None recorded"
	if len(decisions) > 0 {
		decisionsStr = strings.Join(decisions, "\n")
	}

	var evidence []string
	if g.longTerm != nil {
		// Query returns newest first.
		recent := g.longTerm.Query(tier.QueryFilter{
			Status:        types.StatusActive,
			MinConfidence: evidenceMinConfidence,
		})
		if len(recent) > summaryEvidence {
			recent = recent[:summaryEvidence]
		}
		for _, item := range recent {
			content := item.Content
			if len(content) > summaryEvidenceChars {
				content = content[:summaryEvidenceChars]
			}
			evidence = append(evidence, fmt.Sprintf("- [%s] %s", item.Category, content))
		}
	}
	evidenceStr := "None stored"
	if len(evidence) > 0 {
		evidenceStr = strings.Join(evidence, "\n")
	}

	open := g.agent.UnresolvedQuestions()
	if len(open) > summaryQuestions {
		open = open[:summaryQuestions]
	}
	var questions []string
	for _, q := range open {
		questions = append(questions, "- "+q.Question)
	}
	questionsStr := "None"
	if len(questions) > 0 {
		questionsStr = strings.Join(questions, "\n")
	}

	return fmt.Sprintf(`=== %s ===
Goal: %s
Constraints: %s
Key Decisions: %s
Evidence: %s
Open Questions: %s
`, title, goal, constraintsStr, decisionsStr, evidenceStr, questionsStr)
}

// ExtractAtomicFacts splits text into standalone factual sentences, dropping
// hedge-language sentences and fragments too short to store.
func ExtractAtomicFacts(text string) []string {
	var facts []string
	for _, sentence := range sentenceBoundary.Split(text, -1) {
		sentence = strings.TrimSpace(sentence)
		if len(sentence) < minFactLength {
			continue
		}
		lower := strings.ToLower(sentence)
		hedged := false
		for _, phrase := range hedgePhrases {
			if strings.Contains(lower, phrase) {
				hedged = true
				break
			}
		}
		if hedged {
			continue
		}
		facts = append(facts, sentence)
	}
	return facts
}
