// Package system wires the tiers, state, retrieval gate, and monitors into
// the single facade an agent integrates against. All methods are safe for
// concurrent use; the facade holds the lock so the inner packages stay
// single-threaded.
package system

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/strataml/strata/internal/config"
	"github.com/strataml/strata/internal/metrics"
	"github.com/strataml/strata/internal/monitor"
	"github.com/strataml/strata/internal/retrieval"
	"github.com/strataml/strata/internal/state"
	"github.com/strataml/strata/internal/storage"
	"github.com/strataml/strata/internal/storage/jsonfile"
	"github.com/strataml/strata/internal/storage/sqlite"
	"github.com/strataml/strata/internal/tier"
	"github.com/strataml/strata/pkg/types"
)

// promptMemoryLimit caps how many memories GetContextForPrompt includes.
const promptMemoryLimit = 5

// promptVerificationLimit caps the verification call-outs in a prompt block.
const promptVerificationLimit = 3

// promotionConfidence is the floor above which verified assumptions get
// promoted into long-term memory during consolidation.
const promotionConfidence = 0.9

// StoreOptions carries the optional attributes of a memory write.
type StoreOptions struct {
	Source       string
	Confidence   float64
	Scope        types.MemoryScope
	EvidenceRefs []string
}

// StoreResult reports the outcome of a checked store.
type StoreResult struct {
	ID        string             `json:"id,omitempty"`
	Stored    bool               `json:"stored"`
	Conflicts []monitor.Conflict `json:"conflicts,omitempty"`
}

// ConsolidationReport aggregates one consolidation pass across the tiers and
// state.
type ConsolidationReport struct {
	PrunedQuestions     int `json:"pruned_questions"`
	ExpiredAssumptions  int `json:"expired_assumptions"`
	PrunedMemories      int `json:"pruned_memories"`
	ArchivedDecisions   int `json:"archived_decisions"`
	PromotedAssumptions int `json:"promoted_assumptions"`
}

// HealthStatus is the combined health view served by the HTTP layer.
type HealthStatus struct {
	Healthy             bool                       `json:"healthy"`
	Policy              state.PolicyVersion        `json:"policy"`
	DriftSeverity       int                        `json:"drift_severity"`
	DriftCounts         map[monitor.SignalKind]int `json:"drift_counts"`
	ActiveMemories      int                        `json:"active_memories"`
	WorkingItems        int                        `json:"working_items"`
	EpisodicTraces      int                        `json:"episodic_traces"`
	StateVersion        int                        `json:"state_version"`
	PersistenceDegraded bool                       `json:"persistence_degraded"`
}

// System is the facade over the three tiers, agent state, retrieval gate,
// and monitors.
type System struct {
	mu sync.RWMutex

	cfg      *config.Config
	tiers    *tier.ThreeTier
	agent    *state.AgentState
	gate     *retrieval.Gate
	detector *monitor.Detector
	drift    *monitor.DriftMonitor
	focus    *monitor.FocusManager
	summary  *monitor.SummaryGenerator
	breaker  *storage.BreakerStore
	metrics  *metrics.Metrics
}

// New builds a system from configuration, opening the configured snapshot
// backend behind a circuit breaker. reg may be nil to skip metrics
// registration.
func New(cfg *config.Config, reg prometheus.Registerer) (*System, error) {
	if cfg == nil {
		cfg = config.Load()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Features.Persistence {
		return newWithStore(cfg, nil, reg), nil
	}

	backend, err := openBackend(cfg)
	if err != nil {
		return nil, err
	}
	breakerCfg := storage.DefaultBreakerConfig()
	if cfg.Storage.BreakerFailures > 0 {
		breakerCfg.MaxFailures = uint32(cfg.Storage.BreakerFailures)
	}
	if d, err := time.ParseDuration(cfg.Storage.BreakerTimeout); err == nil && d > 0 {
		breakerCfg.Timeout = d
	}
	breaker := storage.NewBreakerStoreWithConfig(backend, breakerCfg)

	sys := newWithStore(cfg, breaker, reg)
	sys.breaker = breaker
	return sys, nil
}

// NewInMemory builds a system with no persistence. Used by tests and
// short-lived CLI invocations.
func NewInMemory(cfg *config.Config) *System {
	if cfg == nil {
		cfg = config.Load()
	}
	return newWithStore(cfg, nil, nil)
}

func newWithStore(cfg *config.Config, store storage.SnapshotStore, reg prometheus.Registerer) *System {
	var itemStore storage.ItemStore
	var traceStore storage.TraceStore
	if store != nil {
		itemStore = store
		traceStore = store
	}

	working := tier.NewWorkingContext(cfg.Memory.WorkingItems)
	longTerm := tier.NewLongTermMemory(itemStore)
	episodic := tier.NewEpisodicTraces(cfg.Memory.MaxTraces, traceStore)
	tiers := tier.NewThreeTier(working, longTerm, episodic)

	agent := state.New(cfg.Memory.FocusWindowSize)
	gate := retrieval.NewGate(longTerm, working, agent)
	gate.SetTokenBudget(cfg.Retrieval.TokenBudget)
	gate.SetMaxItems(cfg.Retrieval.MaxItems)
	gate.SetEstimator(buildEstimator(cfg))

	sys := &System{
		cfg:      cfg,
		tiers:    tiers,
		agent:    agent,
		gate:     gate,
		detector: monitor.NewDetector(),
		drift:    monitor.NewDriftMonitor(agent, episodic),
		focus:    monitor.NewFocusManager(agent, episodic, cfg.Memory.ConsolidationEvery),
		summary:  monitor.NewSummaryGenerator(agent, longTerm),
	}
	if reg != nil {
		sys.metrics = metrics.New(reg)
	}
	return sys
}

func openBackend(cfg *config.Config) (storage.SnapshotStore, error) {
	switch cfg.Storage.Engine {
	case "sqlite":
		return sqlite.New(filepath.Join(cfg.Storage.DataPath, "strata.db"))
	case "json":
		return jsonfile.New(cfg.Storage.DataPath)
	default:
		return nil, fmt.Errorf("system: unknown storage engine %q", cfg.Storage.Engine)
	}
}

func buildEstimator(cfg *config.Config) retrieval.TokenEstimator {
	var inner retrieval.TokenEstimator = retrieval.HeuristicEstimator{}
	if cfg.Retrieval.Tokenizer == "tiktoken" {
		inner = retrieval.NewTiktokenEstimator()
	}
	return retrieval.NewCachedEstimator(inner, cfg.Retrieval.CacheSize)
}

// Store writes a claim to long-term memory without contradiction checking.
// Returns the item ID and whether it was accepted.
func (s *System) Store(content string, category types.MemoryCategory, opts StoreOptions) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, stored := s.storeLocked(content, category, opts)
	return id, stored
}

// CheckAndStore runs contradiction detection against same-category active
// memory before storing. Detected conflicts contest the existing items and
// raise a drift signal; the new claim is stored regardless so the newest
// information is never lost.
func (s *System) CheckAndStore(content string, category types.MemoryCategory, opts StoreOptions) StoreResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cfg.Features.Contradictions {
		id, stored := s.storeLocked(content, category, opts)
		return StoreResult{ID: id, Stored: stored}
	}

	candidates := s.tiers.LongTerm.Query(tier.QueryFilter{Category: category, Status: types.StatusActive})
	conflicts := s.detector.Check(content, candidates)
	for _, c := range conflicts {
		s.detector.Reconcile(s.tiers.LongTerm, c, nil, monitor.ResolutionContest)
		s.tiers.Episodic.Record(types.EventError, "contradiction: "+c.Reason, map[string]any{
			"item_id": c.ItemID,
		})
		if s.metrics != nil {
			s.metrics.Contradictions.Inc()
		}
		s.recordDrift(monitor.SignalContradiction, c.Reason)
	}

	id, stored := s.storeLocked(content, category, opts)
	return StoreResult{ID: id, Stored: stored, Conflicts: conflicts}
}

func (s *System) storeLocked(content string, category types.MemoryCategory, opts StoreOptions) (string, bool) {
	id, stored := s.tiers.StoreLongTerm(tier.StoreParams{
		Content:      content,
		Category:     category,
		Source:       opts.Source,
		Confidence:   opts.Confidence,
		Scope:        opts.Scope,
		EvidenceRefs: opts.EvidenceRefs,
	})
	if s.metrics != nil {
		if stored {
			s.metrics.Stores.Inc()
		} else {
			s.metrics.StoresRejected.Inc()
		}
		s.metrics.ActiveMemories.Set(float64(s.tiers.LongTerm.ActiveCount()))
	}
	return id, stored
}

// recordDrift feeds the drift monitor unless drift monitoring is disabled.
// Returns whether the signal escalated the policy.
func (s *System) recordDrift(kind monitor.SignalKind, detail string) bool {
	if !s.cfg.Features.DriftMonitoring {
		return false
	}
	escalated := s.drift.Record(kind, detail)
	if escalated && s.metrics != nil {
		s.metrics.Escalations.Inc()
	}
	return escalated
}

// Retrieve runs a gated retrieval.
func (s *System) Retrieve(intent retrieval.Intent, opts retrieval.RetrieveOptions) (*retrieval.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.gate.Retrieve(intent, opts)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.Retrievals.WithLabelValues(string(intent)).Inc()
		s.metrics.RetrievalTokens.Observe(res.TokensUsed)
	}
	return res, nil
}

// GetVerifiedFacts returns up to limit factual items that need no
// verification, best first.
func (s *System) GetVerifiedFacts(limit int) []retrieval.ScoredMemory {
	res, err := s.Retrieve(retrieval.IntentFactualQA, retrieval.RetrieveOptions{MaxItems: limit})
	if err != nil {
		return nil
	}
	var out []retrieval.ScoredMemory
	for _, m := range res.Items {
		if !m.NeedsVerification {
			out = append(out, m)
		}
	}
	return out
}

// GetDecisions returns up to limit recent decision memories.
func (s *System) GetDecisions(limit int) []retrieval.ScoredMemory {
	res, err := s.Retrieve(retrieval.IntentPlanning, retrieval.RetrieveOptions{MaxItems: limit})
	if err != nil {
		return nil
	}
	var out []retrieval.ScoredMemory
	for _, m := range res.Items {
		if m.Item.Category == types.CategoryDecision {
			out = append(out, m)
		}
	}
	return out
}

// AddWorkingContext appends ephemeral context for the current task.
func (s *System) AddWorkingContext(content, source string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tiers.AddWorking(content, source)
}

// AddToolOutput records a summarized tool result in the working context.
func (s *System) AddToolOutput(tool, summary string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tiers.Working.AddToolOutput(tool, summary)
}

// ClearWorkingContext drops all ephemeral context.
func (s *System) ClearWorkingContext() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tiers.Working.Clear()
}

// SetGoal records a goal on the agent state and focuses the working context
// on it when it becomes the top goal.
func (s *System) SetGoal(goal string, priority int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agent.SetGoal(goal, priority)
	if s.agent.TopGoal() == goal {
		s.tiers.Working.SetTask(goal)
	}
}

// CompleteGoal removes a goal from the agent state.
func (s *System) CompleteGoal(goal string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agent.CompleteGoal(goal)
}

// AddConstraint records a hard constraint on both the agent state and the
// working context so it survives working-context churn.
func (s *System) AddConstraint(constraint string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agent.AddConstraint(constraint)
	s.tiers.Working.AddConstraint(constraint)
}

// AddAssumption records a working assumption.
func (s *System) AddAssumption(content string, confidence float64, source string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agent.AddAssumption(content, confidence, source)
}

// VerifyAssumption marks an assumption verified.
func (s *System) VerifyAssumption(content string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agent.VerifyAssumption(content)
}

// InvalidateAssumption removes an assumption and raises a verification-
// failure drift signal.
func (s *System) InvalidateAssumption(content string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.agent.InvalidateAssumption(content) {
		return false
	}
	s.recordDrift(monitor.SignalVerificationFailure, "assumption invalidated: "+content)
	return true
}

// AddQuestion records an open question.
func (s *System) AddQuestion(question, context string, priority int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agent.AddQuestion(question, context, priority)
}

// ResolveQuestion resolves an open question.
func (s *System) ResolveQuestion(question, resolution string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agent.ResolveQuestion(question, resolution)
}

// SetEnvFlag sets an environment flag on the agent state.
func (s *System) SetEnvFlag(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agent.SetEnvFlag(key, value)
}

// RecordDecision puts a decision in the focus window and stores it as a
// decision memory so planning retrievals can find it later. Every
// consolidation-interval decisions this also runs the consolidation pass.
func (s *System) RecordDecision(decision, rationale string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	due := s.focus.RecordDecision(decision, rationale)
	content := decision
	if rationale != "" {
		content = decision + " (rationale: " + rationale + ")"
	}
	id, _ := s.storeLocked(content, types.CategoryDecision, StoreOptions{Source: "user_input"})
	if due {
		s.consolidateLocked()
	}
	return id
}

// RecordEvent appends an episodic trace.
func (s *System) RecordEvent(eventType, summary string, metadata map[string]any) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.tiers.RecordEvent(eventType, summary, metadata)
	if s.metrics != nil {
		s.metrics.EpisodicTraces.Set(float64(s.tiers.Episodic.Len()))
	}
	return id
}

// QueryMemories runs a filtered query over long-term memory and returns
// copies of the matching items.
func (s *System) QueryMemories(filter tier.QueryFilter) []*types.MemoryItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := s.tiers.LongTerm.Query(filter)
	out := make([]*types.MemoryItem, len(items))
	for i, item := range items {
		out[i] = item.Clone()
	}
	return out
}

// Diagnose searches episodic traces for a keyword.
func (s *System) Diagnose(keyword string) []*types.EpisodicTrace {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tiers.Episodic.Diagnose(keyword)
}

// RecentTraces returns the n most recent traces, optionally filtered by
// event type ("" for all).
func (s *System) RecentTraces(n int, eventType string) []*types.EpisodicTrace {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tiers.Episodic.GetRecent(n, eventType)
}

// RecordUserCorrection supersedes the memory contradicted by the correction
// (when one is found) and feeds the drift monitor. The corrected claim is
// stored at full user authority.
func (s *System) RecordUserCorrection(wrongClaim, correctedClaim string) StoreResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result StoreResult
	replacement := types.NewMemoryItem(correctedClaim, types.CategoryFactual)
	replacement.Source = "user_input"

	candidates := s.tiers.LongTerm.Query(tier.QueryFilter{Status: types.StatusActive})
	conflicts := s.detector.Check(wrongClaim, candidates)
	if len(conflicts) == 0 {
		// Nothing matched the wrong claim; try the corrected text so a
		// correction like "it is X, not Y" still lands.
		conflicts = s.detector.Check(correctedClaim, candidates)
	}
	if len(conflicts) > 0 {
		s.detector.Reconcile(s.tiers.LongTerm, conflicts[0], replacement, monitor.ResolutionSupersede)
		result = StoreResult{ID: replacement.ID, Stored: true, Conflicts: conflicts[:1]}
	} else {
		id, stored := s.storeLocked(correctedClaim, types.CategoryFactual, StoreOptions{Source: "user_input", Confidence: 0.95})
		result = StoreResult{ID: id, Stored: stored}
	}

	s.recordDrift(monitor.SignalUserCorrection, wrongClaim)
	return result
}

// RecordToolRetry feeds a tool-retry drift signal.
func (s *System) RecordToolRetry(tool, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordDrift(monitor.SignalToolRetry, tool+": "+reason)
}

// RecordVerificationFailure marks the item contested and feeds the drift
// monitor.
func (s *System) RecordVerificationFailure(itemID, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tiers.LongTerm.MarkContested(itemID, "verification failed: "+reason)
	s.recordDrift(monitor.SignalVerificationFailure, reason)
}

// GetHealthStatus reports the combined drift, memory, and persistence view.
func (s *System) GetHealthStatus() HealthStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h := s.drift.Health()
	status := HealthStatus{
		Healthy:        h.Healthy,
		Policy:         s.agent.Policy(),
		DriftSeverity:  h.Severity,
		DriftCounts:    h.Counts,
		ActiveMemories: s.tiers.LongTerm.ActiveCount(),
		WorkingItems:   s.tiers.Working.Len(),
		EpisodicTraces: s.tiers.Episodic.Len(),
		StateVersion:   s.agent.Version(),
	}
	if s.breaker != nil {
		status.PersistenceDegraded = s.breaker.Degraded()
	}
	if s.metrics != nil {
		s.metrics.SetDegraded(status.PersistenceDegraded)
	}
	return status
}

// GenerateSummary produces a fresh anti-drift summary from source facts.
// An empty title uses the default.
func (s *System) GenerateSummary(title string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.summary.Generate(title)
}

// StateSummary returns the counting digest of the agent state.
func (s *System) StateSummary() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.agent.Summary()
}

// Policy returns the current retrieval policy.
func (s *System) Policy() state.PolicyVersion {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.agent.Policy()
}

// Consolidate runs the maintenance pass: prune decayed memories into the
// episodic archive, promote verified high-confidence assumptions into
// long-term memory, expire stale assumptions, drop resolved questions, and
// report focus-window archivals since the last pass.
func (s *System) Consolidate() ConsolidationReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.consolidateLocked()
}

func (s *System) consolidateLocked() ConsolidationReport {
	var report ConsolidationReport
	for _, item := range s.tiers.LongTerm.PruneExpired() {
		report.PrunedMemories++
		s.tiers.Episodic.Record(types.EventMemoryExpired, item.Content, map[string]any{
			"item_id":  item.ID,
			"category": string(item.Category),
		})
	}
	for _, a := range s.agent.Assumptions() {
		if !a.Verified || a.Confidence < promotionConfidence {
			continue
		}
		// Repeat promotions of the same assumption fall out through dedup.
		if _, stored := s.storeLocked(a.Content, types.CategoryFactual, StoreOptions{
			Source:     a.Source,
			Confidence: a.Confidence,
		}); stored {
			report.PromotedAssumptions++
		}
	}
	stateReport := s.agent.Consolidate()
	report.PrunedQuestions = stateReport.PrunedQuestions
	report.ExpiredAssumptions = stateReport.ExpiredAssumptions
	report.ArchivedDecisions = s.focus.Consolidate()

	if s.metrics != nil {
		s.metrics.ActiveMemories.Set(float64(s.tiers.LongTerm.ActiveCount()))
		s.metrics.EpisodicTraces.Set(float64(s.tiers.Episodic.Len()))
	}
	return report
}

// OnTaskStart clears the working context, focuses it on the task, and logs
// a task-start trace.
func (s *System) OnTaskStart(task string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tiers.Working.Clear()
	s.tiers.Working.SetTask(task)
	s.agent.SetGoal(task, 0)
	s.tiers.Episodic.Record(types.EventTaskStart, task, nil)
}

// OnTaskComplete runs a consolidation pass, logs the outcome, and, on
// success, resets the quality counters and drift window so one bad task
// does not haunt the next.
func (s *System) OnTaskComplete(task string, success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agent.CompleteGoal(task)
	s.tiers.Working.Clear()
	if success {
		s.agent.ResetQualitySignals()
		s.drift.Reset()
	}
	s.consolidateLocked()
	s.tiers.Episodic.Record(types.EventTaskComplete, task, map[string]any{"success": success})
}

// PromptMemory is one retrieved memory rendered for a prompt.
type PromptMemory struct {
	Content string  `json:"content"`
	Source  string  `json:"source"`
	Score   float64 `json:"score"`
}

// PromptVerification flags a memory the caller should double-check before
// relying on it.
type PromptVerification struct {
	Content string `json:"content"`
	Reason  string `json:"reason"`
}

// PromptContext is the structured context block for prompt assembly. Callers
// render the pieces they need rather than getting one opaque string.
type PromptContext struct {
	WorkingContext    tier.Window          `json:"working_context"`
	RelevantMemories  []PromptMemory       `json:"relevant_memories"`
	StateSummary      string               `json:"state_summary"`
	NeedsVerification []PromptVerification `json:"needs_verification"`
}

/// GetContextForPrompt assembles the context for a prompt: the working
// window, the top memories for the intent, the agent state digest, and any
// verification call-outs.
func (s *System) GetContextForPrompt(intent retrieval.Intent, query string) (*PromptContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.gate.Retrieve(intent, retrieval.RetrieveOptions{
		Query:    query,
		MaxItems: promptMemoryLimit,
	})
	if err != nil {
		return nil, err
	}

	ctx := &PromptContext{
		WorkingContext: s.tiers.Working.ContextWindow(),
		StateSummary:   s.agent.Summary(),
	}
	for _, m := range res.Items {
		ctx.RelevantMemories = append(ctx.RelevantMemories, PromptMemory{
			Content: m.Item.Content,
			Source:  m.Item.Source,
			Score:   m.Score,
		})
		if m.NeedsVerification && len(ctx.NeedsVerification) < promptVerificationLimit {
			ctx.NeedsVerification = append(ctx.NeedsVerification, PromptVerification{
				Content: m.Item.Content,
				Reason:  strings.Join(m.VerificationReasons, "; "),
			})
		}
	}
	return ctx, nil
}

// Close flushes nothing (writes are synchronous) and closes the snapshot
// backend.
func (s *System) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.breaker == nil {
		return nil
	}
	if err := s.breaker.Close(); err != nil {
		log.Printf("system: close: %v", err)
		return err
	}
	return nil
}
