// Package types defines the core value types of the Strata memory system:
// memory items with exponential decay, episodic traces, and the enums that
// drive intent-conditioned retrieval.
package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
	"time"
)

// MemoryScope determines visibility and persistence of a memory item.
type MemoryScope string

const (
	ScopeSystem    MemoryScope = "system"    // Agent-wide, stable
	ScopeProject   MemoryScope = "project"   // Current project/session
	ScopeUser      MemoryScope = "user"      // User-specific preferences
	ScopeEphemeral MemoryScope = "ephemeral" // Task-specific, short-lived
)

// AllScopes lists every valid memory scope.
var AllScopes = []MemoryScope{ScopeSystem, ScopeProject, ScopeUser, ScopeEphemeral}

// Valid reports whether s is a known scope.
func (s MemoryScope) Valid() bool {
	switch s {
	case ScopeSystem, ScopeProject, ScopeUser, ScopeEphemeral:
		return true
	}
	return false
}

// ParseScope converts a string into a MemoryScope. Case-insensitive.
func ParseScope(s string) (MemoryScope, error) {
	sc := MemoryScope(strings.ToLower(s))
	if !sc.Valid() {
		return "", fmt.Errorf("unknown memory scope %q", s)
	}
	return sc, nil
}

// MemoryStatus is the lifecycle status of a memory item.
type MemoryStatus string

const (
	StatusActive     MemoryStatus = "active"
	StatusContested  MemoryStatus = "contested"  // Contradicted by new evidence
	StatusSuperseded MemoryStatus = "superseded" // Replaced by a newer version
	StatusExpired    MemoryStatus = "expired"    // Past half-life, needs verification
	StatusArchived   MemoryStatus = "archived"   // Moved to episodic traces
)

// Valid reports whether s is a known status.
func (s MemoryStatus) Valid() bool {
	switch s {
	case StatusActive, StatusContested, StatusSuperseded, StatusExpired, StatusArchived:
		return true
	}
	return false
}

// ParseStatus converts a string into a MemoryStatus. Case-insensitive.
func ParseStatus(s string) (MemoryStatus, error) {
	st := MemoryStatus(strings.ToLower(s))
	if !st.Valid() {
		return "", fmt.Errorf("unknown memory status %q", s)
	}
	return st, nil
}

// MemoryCategory classifies a memory for intent-conditioned retrieval.
type MemoryCategory string

const (
	CategoryFactual       MemoryCategory = "factual"       // Verified facts, citations
	CategoryProcedural    MemoryCategory = "procedural"    // How-to knowledge, workflows
	CategoryContextual    MemoryCategory = "contextual"    // User preferences, constraints
	CategoryEnvironmental MemoryCategory = "environmental" // API behavior, system state
	CategoryDecision      MemoryCategory = "decision"      // Past decisions with rationale
)

// AllCategories lists every valid memory category.
var AllCategories = []MemoryCategory{
	CategoryFactual,
	CategoryProcedural,
	CategoryContextual,
	CategoryEnvironmental,
	CategoryDecision,
}

// Valid reports whether c is a known category.
func (c MemoryCategory) Valid() bool {
	switch c {
	case CategoryFactual, CategoryProcedural, CategoryContextual, CategoryEnvironmental, CategoryDecision:
		return true
	}
	return false
}

// ParseCategory converts a string into a MemoryCategory. Case-insensitive.
func ParseCategory(s string) (MemoryCategory, error) {
	c := MemoryCategory(strings.ToLower(s))
	if !c.Valid() {
		return "", fmt.Errorf("unknown memory category %q", s)
	}
	return c, nil
}

// halfLifeHours maps each category to its default decay half-life.
var halfLifeHours = map[MemoryCategory]float64{
	CategoryFactual:       168, // 7 days
	CategoryProcedural:    336, // 14 days
	CategoryContextual:    72,  // 3 days
	CategoryEnvironmental: 24,  // 1 day
	CategoryDecision:      48,  // 2 days
}

// fallbackHalfLifeHours covers items whose category carries no configured
// half-life.
const fallbackHalfLifeHours = 72.0

// DefaultHalfLife returns the default half-life in hours for a category.
func DefaultHalfLife(c MemoryCategory) float64 {
	if hl, ok := halfLifeHours[c]; ok {
		return hl
	}
	return fallbackHalfLifeHours
}

// DoNotStorePatterns marks transient content that must never reach long-term
// memory. Matching is case-insensitive substring.
var DoNotStorePatterns = []string{
	"intermediate chain-of-thought",
	"speculative reasoning",
	"unverified web claim",
	"one-off tool error",
	"transient preference",
}

// MemoryItem is an atomic claim with provenance and decay metadata.
//
// Identity is a deterministic content+timestamp hash assigned at creation.
// Items are immutable once created except for status, confidence, and access
// accounting.
type MemoryItem struct {
	ID            string         `json:"id"`
	Content       string         `json:"content"`
	Category      MemoryCategory `json:"category"`
	Scope         MemoryScope    `json:"scope"`
	Source        string         `json:"source"`
	Timestamp     time.Time      `json:"timestamp"`
	Confidence    float64        `json:"confidence"`
	Status        MemoryStatus   `json:"status"`
	HalfLifeHours float64        `json:"half_life_hours,omitempty"` // 0 = category default
	EvidenceRefs  []string       `json:"evidence_refs,omitempty"`
	Supersedes    string         `json:"supersedes,omitempty"`
	AccessCount   int            `json:"access_count"`
	LastAccessed  *time.Time     `json:"last_accessed,omitempty"`
}

// NewMemoryItem creates an item with defaults (project scope, unknown source,
// confidence 0.8, active status) and a deterministic ID.
func NewMemoryItem(content string, category MemoryCategory) *MemoryItem {
	now := time.Now()
	return &MemoryItem{
		ID:         ItemID(content, now),
		Content:    content,
		Category:   category,
		Scope:      ScopeProject,
		Source:     "unknown",
		Timestamp:  now,
		Confidence: 0.8,
		Status:     StatusActive,
	}
}

// ItemID derives the deterministic identity of a memory item from its content
// and creation timestamp.
func ItemID(content string, ts time.Time) string {
	sum := sha256.Sum256([]byte(content + ts.Format(time.RFC3339Nano)))
	return hex.EncodeToString(sum[:])[:12]
}

// EffectiveHalfLife returns the item's half-life in hours, honoring a custom
// override when set.
func (m *MemoryItem) EffectiveHalfLife() float64 {
	if m.HalfLifeHours > 0 {
		return m.HalfLifeHours
	}
	return DefaultHalfLife(m.Category)
}

// AgeHoursAt returns the item's age in hours at the given instant.
// Negative ages (clock skew) clamp to zero.
func (m *MemoryItem) AgeHoursAt(now time.Time) float64 {
	h := now.Sub(m.Timestamp).Hours()
	if h < 0 {
		return 0
	}
	return h
}

// AgeHours returns the item's current age in hours.
func (m *MemoryItem) AgeHours() float64 {
	return m.AgeHoursAt(time.Now())
}

// DecayFactorAt returns the exponential freshness weight at the given instant:
//
//	exp(-ln(2)/half_life * age_hours)
//
// The factor is exactly 0.5 when age equals the effective half-life and
// decreases monotonically with age.
func (m *MemoryItem) DecayFactorAt(now time.Time) float64 {
	lambda := math.Ln2 / m.EffectiveHalfLife()
	return math.Exp(-lambda * m.AgeHoursAt(now))
}

// DecayFactor returns the current decay factor.
func (m *MemoryItem) DecayFactor() float64 {
	return m.DecayFactorAt(time.Now())
}

// NeedsVerificationAt reports whether the item should be verified before use
// at the given instant: expired, contested, or decayed below 0.5.
func (m *MemoryItem) NeedsVerificationAt(now time.Time) bool {
	return m.Status == StatusExpired ||
		m.Status == StatusContested ||
		m.DecayFactorAt(now) < 0.5
}

// NeedsVerification reports whether the item should be verified before use.
func (m *MemoryItem) NeedsVerification() bool {
	return m.NeedsVerificationAt(time.Now())
}

// Touch records an access, bumping the counter and last-accessed timestamp.
func (m *MemoryItem) Touch(now time.Time) {
	m.AccessCount++
	t := now
	m.LastAccessed = &t
}

// Clone returns a deep copy of the item.
func (m *MemoryItem) Clone() *MemoryItem {
	cp := *m
	if m.EvidenceRefs != nil {
		cp.EvidenceRefs = append([]string(nil), m.EvidenceRefs...)
	}
	if m.LastAccessed != nil {
		t := *m.LastAccessed
		cp.LastAccessed = &t
	}
	return &cp
}
