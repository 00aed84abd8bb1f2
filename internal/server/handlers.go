package server

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/strataml/strata/internal/retrieval"
	"github.com/strataml/strata/internal/system"
	"github.com/strataml/strata/internal/tier"
	"github.com/strataml/strata/pkg/types"
)

// API serves the memory system over HTTP. Events of interest are mirrored to
// the websocket hub when one is attached.
type API struct {
	sys *system.System
	hub *WebSocketHub
}

// NewAPI creates the handler set. hub may be nil.
func NewAPI(sys *system.System, hub *WebSocketHub) *API {
	return &API{sys: sys, hub: hub}
}

// Routes registers all API endpoints on mux.
func (a *API) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", a.handleHealth)
	mux.HandleFunc("GET /api/health", a.handleHealth)
	mux.HandleFunc("POST /api/memory", a.handleStore)
	mux.HandleFunc("GET /api/memories", a.handleMemories)
	mux.HandleFunc("POST /api/retrieve", a.handleRetrieve)
	mux.HandleFunc("POST /api/decisions", a.handleDecision)
	mux.HandleFunc("POST /api/corrections", a.handleCorrection)
	mux.HandleFunc("POST /api/events", a.handleEvent)
	mux.HandleFunc("GET /api/traces", a.handleTraces)
	mux.HandleFunc("GET /api/summary", a.handleSummary)
	mux.HandleFunc("POST /api/consolidate", a.handleConsolidate)
	mux.HandleFunc("GET /api/state", a.handleState)
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.sys.GetHealthStatus())
}

type storeRequest struct {
	Content      string   `json:"content"`
	Category     string   `json:"category"`
	Source       string   `json:"source,omitempty"`
	Confidence   float64  `json:"confidence,omitempty"`
	Scope        string   `json:"scope,omitempty"`
	EvidenceRefs []string `json:"evidence_refs,omitempty"`
}

func (a *API) handleStore(w http.ResponseWriter, r *http.Request) {
	var req storeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}
	category, err := types.ParseCategory(req.Category)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	opts := system.StoreOptions{
		Source:       req.Source,
		Confidence:   req.Confidence,
		EvidenceRefs: req.EvidenceRefs,
	}
	if req.Scope != "" {
		scope, err := types.ParseScope(req.Scope)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		opts.Scope = scope
	}

	result := a.sys.CheckAndStore(req.Content, category, opts)
	if a.hub != nil {
		a.hub.Broadcast("memory_stored", result)
		if len(result.Conflicts) > 0 {
			a.hub.Broadcast("contradiction", result.Conflicts)
		}
	}
	status := http.StatusCreated
	if !result.Stored {
		status = http.StatusOK
	}
	writeJSON(w, status, result)
}

// handleMemories serves a filtered long-term query. This bypasses the
// retrieval gate, so it is an inspection surface, not an agent read path.
func (a *API) handleMemories(w http.ResponseWriter, r *http.Request) {
	var filter tier.QueryFilter
	q := r.URL.Query()
	if raw := q.Get("category"); raw != "" {
		category, err := types.ParseCategory(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.Category = category
	}
	if raw := q.Get("status"); raw != "" {
		status, err := types.ParseStatus(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.Status = status
	}
	if raw := q.Get("min_confidence"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "min_confidence must be a number")
			return
		}
		filter.MinConfidence = parsed
	}
	items := a.sys.QueryMemories(filter)
	writeJSON(w, http.StatusOK, map[string]any{"count": len(items), "items": items})
}

type retrieveRequest struct {
	Intent         string   `json:"intent"`
	Query          string   `json:"query,omitempty"`
	MinConfidence  *float64 `json:"min_confidence,omitempty"`
	IncludeWorking bool     `json:"include_working,omitempty"`
	MaxItems       int      `json:"max_items,omitempty"`
}

func (a *API) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	var req retrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := a.sys.Retrieve(retrieval.Intent(req.Intent), retrieval.RetrieveOptions{
		Query:          req.Query,
		MinConfidence:  req.MinConfidence,
		IncludeWorking: req.IncludeWorking,
		MaxItems:       req.MaxItems,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type decisionRequest struct {
	Decision  string `json:"decision"`
	Rationale string `json:"rationale,omitempty"`
}

func (a *API) handleDecision(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Decision == "" {
		writeError(w, http.StatusBadRequest, "decision is required")
		return
	}
	id := a.sys.RecordDecision(req.Decision, req.Rationale)
	if a.hub != nil {
		a.hub.Broadcast("decision", req.Decision)
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

type correctionRequest struct {
	WrongClaim     string `json:"wrong_claim"`
	CorrectedClaim string `json:"corrected_claim"`
}

func (a *API) handleCorrection(w http.ResponseWriter, r *http.Request) {
	var req correctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CorrectedClaim == "" {
		writeError(w, http.StatusBadRequest, "corrected_claim is required")
		return
	}
	result := a.sys.RecordUserCorrection(req.WrongClaim, req.CorrectedClaim)
	if a.hub != nil {
		a.hub.Broadcast("user_correction", result)
	}
	writeJSON(w, http.StatusOK, result)
}

type eventRequest struct {
	EventType string         `json:"event_type"`
	Summary   string         `json:"summary"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func (a *API) handleEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.EventType == "" || req.Summary == "" {
		writeError(w, http.StatusBadRequest, "event_type and summary are required")
		return
	}
	id := a.sys.RecordEvent(req.EventType, req.Summary, req.Metadata)
	writeJSON(w, http.StatusCreated, map[string]string{"trace_id": id})
}

func (a *API) handleTraces(w http.ResponseWriter, r *http.Request) {
	if keyword := r.URL.Query().Get("keyword"); keyword != "" {
		writeJSON(w, http.StatusOK, a.sys.Diagnose(keyword))
		return
	}
	n := 20
	if raw := r.URL.Query().Get("n"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			n = parsed
		}
	}
	writeJSON(w, http.StatusOK, a.sys.RecentTraces(n, r.URL.Query().Get("type")))
}

func (a *API) handleSummary(w http.ResponseWriter, r *http.Request) {
	title := r.URL.Query().Get("title")
	writeJSON(w, http.StatusOK, map[string]string{"summary": a.sys.GenerateSummary(title)})
}

func (a *API) handleConsolidate(w http.ResponseWriter, r *http.Request) {
	report := a.sys.Consolidate()
	if a.hub != nil {
		a.hub.Broadcast("consolidation", report)
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"summary": a.sys.StateSummary(),
		"policy":  a.sys.Policy(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
