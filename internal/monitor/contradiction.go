// Package monitor implements the quality loops around the memory tiers:
// contradiction detection, drift tracking, focus-window archival, and the
// periodic re-grounding summary.
package monitor

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/strataml/strata/internal/similarity"
	"github.com/strataml/strata/internal/tier"
	"github.com/strataml/strata/pkg/types"
)

// Conflict links a new claim to an existing item it contradicts.
type Conflict struct {
	ItemID string `json:"item_id"`
	Reason string `json:"reason"`
}

// Resolution selects how a conflict is reconciled.
type Resolution string

const (
	// ResolutionSupersede replaces the old item with the new claim. Used
	// when the new information is authoritative (e.g. a user correction).
	ResolutionSupersede Resolution = "supersede"

	// ResolutionContest keeps both, marking the old item contested and
	// halving its confidence pending verification.
	ResolutionContest Resolution = "contest"
)

// supersededConfidence is assigned to a claim that wins a supersede.
const supersededConfidence = 0.8

const (
	negationOverlapThreshold = 0.5
	polarityOverlapThreshold = 0.3
	contestedConfidenceScale = 0.5
)

// negationRule rewrites a negated claim into its positive form so a plain
// word-overlap comparison can catch "X is not Y" against "X is Y".
type negationRule struct {
	pattern *regexp.Regexp
	rewrite string
}

var negationRules = []negationRule{
	{regexp.MustCompile(`(\w+) is not`), "$1 is"},
	{regexp.MustCompile(`(\w+) are not`), "$1 are"},
	{regexp.MustCompile(`(\w+) cannot`), "$1 can"},
	{regexp.MustCompile(`(\w+) does not`), "$1 does"},
	{regexp.MustCompile(`(\w+) will not`), "$1 will"},
	{regexp.MustCompile(`no (\w+)`), "$1"},
	{regexp.MustCompile(`never (\w+)`), "always $1"},
}

// numericPatterns extract key/value claims like "timeout = 30" or
// "replicas is 3".
var numericPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\w+)\s*[=:]\s*([\d.]+)`),
	regexp.MustCompile(`(\w+)\s+is\s+([\d.]+)`),
	regexp.MustCompile(`(\w+)\s+are\s+([\d.]+)`),
}

// polarityPairs are opposing phrasings that flip a claim's truth value when
// the surrounding text otherwise overlaps.
var polarityPairs = [][2]string{
	{"was", "was not"},
	{"is", "is not"},
	{"can", "cannot"},
	{"true", "false"},
	{"correct", "incorrect"},
	{"valid", "invalid"},
}

// Detector finds contradictions between a new claim and existing active
// memory via negation rewriting, numeric mismatch, and polarity flips.
type Detector struct {
	sim similarity.Scorer
}

// NewDetector creates a detector with word-overlap similarity.
func NewDetector() *Detector {
	return &Detector{sim: similarity.WordOverlap{}}
}

// Check compares content against each candidate and returns at most one
// conflict per item, using the first check that fires: negation, then
// numeric, then polarity.
func (d *Detector) Check(content string, candidates []*types.MemoryItem) []Conflict {
	newLower := strings.ToLower(content)
	var conflicts []Conflict
	for _, item := range candidates {
		if item.Status != types.StatusActive {
			continue
		}
		oldLower := strings.ToLower(item.Content)
		if reason, ok := d.checkPair(newLower, oldLower); ok {
			conflicts = append(conflicts, Conflict{ItemID: item.ID, Reason: reason})
		}
	}
	return conflicts
}

func (d *Detector) checkPair(newText, oldText string) (string, bool) {
	if d.negationConflict(newText, oldText) || d.negationConflict(oldText, newText) {
		return "negation of existing claim", true
	}
	if key, ok := numericConflict(newText, oldText); ok {
		return "numeric mismatch for " + key, true
	}
	if d.polarityConflict(newText, oldText) {
		return "opposing phrasing of similar claim", true
	}
	return "", false
}

// negationConflict reports whether negated, rewritten to its positive form,
// substantially overlaps positive.
func (d *Detector) negationConflict(negated, positive string) bool {
	for _, rule := range negationRules {
		if !rule.pattern.MatchString(negated) {
			continue
		}
		rewritten := rule.pattern.ReplaceAllString(negated, rule.rewrite)
		if d.sim.Score(rewritten, positive) > negationOverlapThreshold {
			return true
		}
	}
	return false
}

// numericConflict reports a shared key asserted with different numbers.
func numericConflict(a, b string) (string, bool) {
	av := extractNumericClaims(a)
	if len(av) == 0 {
		return "", false
	}
	bv := extractNumericClaims(b)
	for key, val := range av {
		other, ok := bv[key]
		if !ok {
			continue
		}
		if numbersDiffer(val, other) {
			return key, true
		}
	}
	return "", false
}

// numbersDiffer compares claims numerically so "0.50" and "0.5" agree.
// Unparseable values fall back to a string comparison.
func numbersDiffer(a, b string) bool {
	av, aerr := strconv.ParseFloat(a, 64)
	bv, berr := strconv.ParseFloat(b, 64)
	if aerr == nil && berr == nil {
		return av != bv
	}
	return a != b
}

func extractNumericClaims(text string) map[string]string {
	claims := make(map[string]string)
	for _, p := range numericPatterns {
		for _, m := range p.FindAllStringSubmatch(text, -1) {
			if _, exists := claims[m[1]]; !exists {
				claims[m[1]] = strings.TrimRight(m[2], ".")
			}
		}
	}
	return claims
}

// polarityConflict reports opposing phrasings in otherwise-similar claims.
// The overlap gate keeps unrelated sentences from matching on common words.
func (d *Detector) polarityConflict(a, b string) bool {
	if d.sim.Score(a, b) <= polarityOverlapThreshold {
		return false
	}
	for _, pair := range polarityPairs {
		pos, neg := " "+pair[0]+" ", " "+pair[1]+" "
		ap, bp := " "+a+" ", " "+b+" "
		aHasNeg := strings.Contains(ap, neg)
		bHasNeg := strings.Contains(bp, neg)
		aHasPos := !aHasNeg && strings.Contains(ap, pos)
		bHasPos := !bHasNeg && strings.Contains(bp, pos)
		if (aHasPos && bHasNeg) || (aHasNeg && bHasPos) {
			return true
		}
	}
	return false
}

// Reconcile applies a resolution to a detected conflict. Supersede freezes
// the old item and links the new one at authoritative confidence; contest
// retains both but demotes the old item pending verification.
func (d *Detector) Reconcile(ltm *tier.LongTermMemory, conflict Conflict, newItem *types.MemoryItem, res Resolution) {
	switch res {
	case ResolutionSupersede:
		newItem.Confidence = supersededConfidence
		ltm.Supersede(conflict.ItemID, newItem)
	case ResolutionContest:
		ltm.MarkContested(conflict.ItemID, conflict.Reason)
		ltm.AdjustConfidence(conflict.ItemID, contestedConfidenceScale)
	}
}
