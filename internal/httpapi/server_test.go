package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/promptpress/internal/allocation"
	"github.com/fyrsmithlabs/promptpress/internal/pipeline"
)

func setupTestServer(t *testing.T) *Server {
	t.Helper()

	p, err := pipeline.New(pipeline.Config{})
	require.NoError(t, err)

	server, err := NewServer(p, zap.NewNop(), nil)
	require.NoError(t, err)
	return server
}

func doJSON(t *testing.T, server *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	server.echo.ServeHTTP(rec, req)
	return rec
}

func testProfile() map[string]any {
	return map[string]any{
		"personality": map[string]any{
			"formality":   "casual",
			"directness":  "high",
			"core_values": []any{"honesty", "curiosity"},
		},
		"current_state": map[string]any{
			"mood":   "focused",
			"energy": 0.8,
		},
	}
}

func TestNewServer(t *testing.T) {
	t.Run("creates server with valid config", func(t *testing.T) {
		p, err := pipeline.New(pipeline.Config{})
		require.NoError(t, err)

		cfg := &Config{
			Host: "localhost",
			Port: 9093,
		}

		server, err := NewServer(p, zap.NewNop(), cfg)
		require.NoError(t, err)
		assert.NotNil(t, server)
		assert.NotNil(t, server.echo)
		assert.Equal(t, cfg, server.config)
	})

	t.Run("uses defaults when config is nil", func(t *testing.T) {
		p, err := pipeline.New(pipeline.Config{})
		require.NoError(t, err)

		server, err := NewServer(p, zap.NewNop(), nil)
		require.NoError(t, err)
		assert.Equal(t, "localhost", server.config.Host)
		assert.Equal(t, 9093, server.config.Port)
	})

	t.Run("returns error when logger is nil", func(t *testing.T) {
		p, err := pipeline.New(pipeline.Config{})
		require.NoError(t, err)

		_, err = NewServer(p, nil, nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "logger is required")
	})

	t.Run("returns error when pipeline is nil", func(t *testing.T) {
		_, err := NewServer(nil, zap.NewNop(), nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "pipeline cannot be nil")
	})
}

func TestHandleHealth(t *testing.T) {
	server := setupTestServer(t)

	rec := doJSON(t, server, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestHandleCompress(t *testing.T) {
	t.Run("compresses a profile", func(t *testing.T) {
		server := setupTestServer(t)

		rec := doJSON(t, server, http.MethodPost, "/api/v1/compress", CompressRequest{
			Profile:     testProfile(),
			Interaction: "question",
			Complexity:  5,
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var result pipeline.Result
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.NotEmpty(t, result.PromptText)
		assert.NotEmpty(t, result.RecordID)
		assert.Greater(t, result.Metadata.TokenBudget, 0)
		assert.False(t, result.Metadata.Error)
	})

	t.Run("rejects missing interaction", func(t *testing.T) {
		server := setupTestServer(t)

		rec := doJSON(t, server, http.MethodPost, "/api/v1/compress", CompressRequest{
			Profile: testProfile(),
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects unknown strategy", func(t *testing.T) {
		server := setupTestServer(t)

		rec := doJSON(t, server, http.MethodPost, "/api/v1/compress", CompressRequest{
			Profile:     testProfile(),
			Interaction: "question",
			Strategy:    "lossy",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleOutcome(t *testing.T) {
	server := setupTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/api/v1/compress", CompressRequest{
		Profile:     testProfile(),
		Interaction: "question",
		Complexity:  5,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var result pipeline.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))

	feedback := 0.9
	rec = doJSON(t, server, http.MethodPost, "/api/v1/outcome", OutcomeRequest{
		RecordID:     result.RecordID,
		UserFeedback: &feedback,
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	t.Run("unknown record returns 404", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodPost, "/api/v1/outcome", OutcomeRequest{
			RecordID:     "does-not-exist",
			UserFeedback: &feedback,
		})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("missing record_id returns 400", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodPost, "/api/v1/outcome", OutcomeRequest{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleMetrics(t *testing.T) {
	server := setupTestServer(t)

	doJSON(t, server, http.MethodPost, "/api/v1/compress", CompressRequest{
		Profile:     testProfile(),
		Interaction: "question",
		Complexity:  5,
	})

	rec := doJSON(t, server, http.MethodGet, "/api/v1/metrics?window=10m", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Overall struct {
			Count int `json:"count"`
		} `json:"overall"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Overall.Count)

	t.Run("rejects bad window", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodGet, "/api/v1/metrics?window=soon", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleThresholds(t *testing.T) {
	server := setupTestServer(t)

	rec := doJSON(t, server, http.MethodGet, "/api/v1/thresholds", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Quality    float64 `json:"quality"`
		Efficiency float64 `json:"efficiency"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.InDelta(t, 0.7, resp.Quality, 1e-9)
	assert.InDelta(t, 0.7, resp.Efficiency, 1e-9)
}

func TestExperimentLifecycle(t *testing.T) {
	server := setupTestServer(t)

	start := StartExperimentRequest{
		Name:         "tier-shootout",
		Strategies:   []string{"minimal", "comprehensive"},
		TrafficSplit: []float64{50, 50},
		DurationSecs: 3600,
	}
	rec := doJSON(t, server, http.MethodPost, "/api/v1/experiments", start)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	t.Run("duplicate start conflicts", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodPost, "/api/v1/experiments", start)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("assign returns a declared strategy", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodPost, "/api/v1/experiments/tier-shootout/assign", AssignRequest{
			ParticipantID: "user-42",
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp AssignResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Contains(t, []allocation.Strategy{allocation.StrategyMinimal, allocation.StrategyComprehensive}, resp.Strategy)
	})

	t.Run("status reports active experiment", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodGet, "/api/v1/experiments/tier-shootout", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var status struct {
			Name   string `json:"name"`
			Active bool   `json:"active"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
		assert.Equal(t, "tier-shootout", status.Name)
		assert.True(t, status.Active)
	})

	t.Run("end returns a report", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodDelete, "/api/v1/experiments/tier-shootout", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var report struct {
			Name string `json:"name"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
		assert.Equal(t, "tier-shootout", report.Name)
	})

	t.Run("unknown experiment returns 404", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodGet, "/api/v1/experiments/nope", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestInvalidExperimentRequest(t *testing.T) {
	server := setupTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/api/v1/experiments", StartExperimentRequest{
		Name:         "",
		Strategies:   []string{"minimal", "comprehensive"},
		TrafficSplit: []float64{50, 50},
		DurationSecs: 3600,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestShutdown(t *testing.T) {
	server := setupTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, server.Shutdown(ctx))
}
