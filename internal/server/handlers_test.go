package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strataml/strata/internal/config"
	"github.com/strataml/strata/internal/system"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	sys := system.NewInMemory(config.Load())
	mux := http.NewServeMux()
	NewAPI(sys, nil).Routes(mux)
	srv := httptest.NewServer(securityHeadersMiddleware(requestIDMiddleware(mux)))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestStoreAndRetrieve(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/memory", map[string]any{
		"content":    "the ingest queue drains through four workers",
		"category":   "FACTUAL",
		"source":     "user_input",
		"confidence": 0.9,
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	var stored struct {
		ID     string `json:"id"`
		Stored bool   `json:"stored"`
	}
	decode(t, resp, &stored)
	assert.True(t, stored.Stored)
	assert.NotEmpty(t, stored.ID)

	resp = postJSON(t, srv.URL+"/api/retrieve", map[string]any{
		"intent": "factual_qa",
		"query":  "ingest queue",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var res struct {
		Items []struct {
			Item struct {
				ID string `json:"id"`
			} `json:"item"`
			Score float64 `json:"score"`
		} `json:"items"`
	}
	decode(t, resp, &res)
	require.Len(t, res.Items, 1)
	assert.Equal(t, stored.ID, res.Items[0].Item.ID)
	assert.Greater(t, res.Items[0].Score, 0.0)
}

func TestStoreValidation(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/memory", map[string]any{"category": "FACTUAL"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/api/memory", map[string]any{"content": "x", "category": "VIBES"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestRetrieveUnknownIntent(t *testing.T) {
	srv := newTestServer(t)
	resp := postJSON(t, srv.URL+"/api/retrieve", map[string]any{"intent": "mystery"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))

	var health struct {
		Healthy bool   `json:"healthy"`
		Policy  string `json:"policy"`
	}
	decode(t, resp, &health)
	assert.True(t, health.Healthy)
	assert.Equal(t, "normal", health.Policy)
}

func TestHealthzAlias(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMemoriesEndpoint(t *testing.T) {
	srv := newTestServer(t)
	resp := postJSON(t, srv.URL+"/api/memory", map[string]any{
		"content":    "build artifacts expire after thirty days",
		"category":   "factual",
		"source":     "user_input",
		"confidence": 0.9,
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()
	resp = postJSON(t, srv.URL+"/api/memory", map[string]any{
		"content":    "roll the signing key by paging the release captain",
		"category":   "procedural",
		"source":     "user_input",
		"confidence": 0.8,
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp, err := http.Get(srv.URL + "/api/memories?category=factual")
	require.NoError(t, err)
	var listing struct {
		Count int `json:"count"`
		Items []struct {
			Content string `json:"content"`
		} `json:"items"`
	}
	decode(t, resp, &listing)
	require.Equal(t, 1, listing.Count)
	assert.Contains(t, listing.Items[0].Content, "build artifacts")

	resp, err = http.Get(srv.URL + "/api/memories?category=imaginary")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCorrectionEndpoint(t *testing.T) {
	srv := newTestServer(t)
	resp := postJSON(t, srv.URL+"/api/corrections", map[string]any{
		"wrong_claim":     "deploys go out on fridays",
		"corrected_claim": "deploys go out on tuesdays",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var result struct {
		Stored bool `json:"stored"`
	}
	decode(t, resp, &result)
	assert.True(t, result.Stored)
}

func TestEventAndTraces(t *testing.T) {
	srv := newTestServer(t)
	resp := postJSON(t, srv.URL+"/api/events", map[string]any{
		"event_type": "tool_call",
		"summary":    "ran terraform plan with no changes",
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp, err := http.Get(srv.URL + "/api/traces?keyword=terraform")
	require.NoError(t, err)
	var traces []struct {
		Summary string `json:"summary"`
	}
	decode(t, resp, &traces)
	require.Len(t, traces, 1)
	assert.Contains(t, traces[0].Summary, "terraform")
}

func TestConsolidateEndpoint(t *testing.T) {
	srv := newTestServer(t)
	resp := postJSON(t, srv.URL+"/api/consolidate", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var report struct {
		PrunedMemories int `json:"pruned_memories"`
	}
	decode(t, resp, &report)
	assert.Zero(t, report.PrunedMemories)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	assert.True(t, rl.Allow())
	assert.True(t, rl.Allow())
	assert.False(t, rl.Allow(), "burst of 2 exhausted")
}
