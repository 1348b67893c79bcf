package pipeline

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/promptpress/internal/allocation"
	"github.com/fyrsmithlabs/promptpress/internal/analytics"
)

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	p, err := New(Config{RecordCapacity: 64})
	require.NoError(t, err)
	return p
}

func fullProfile() map[string]any {
	return map[string]any{
		"personality": map[string]any{
			"archetype": "pragmatic analyst",
			"traits":    "direct, curious",
			"values":    "precision",
			"tone":      "dry",
			"humor":     "wry",
		},
		"current_state": map[string]any{
			"mood": "focused", "energy": "high", "focus": "deep work", "availability": "limited",
		},
		"communication_style": map[string]any{
			"formality": "casual", "verbosity": "terse", "preferred_format": "bullets", "language": "en",
		},
		"predictions": map[string]any{
			"likely_topics": "deployment, testing", "next_needs": "code review", "churn_risk": "low",
		},
		"behavior": map[string]any{
			"active_hours": "evenings", "response_cadence": "rapid", "session_length": "long", "habits": "night owl",
		},
		"emotional": map[string]any{
			"baseline_sentiment": "positive", "volatility": "low", "triggers": "condescension", "soothers": "clarity",
		},
		"cognition": map[string]any{
			"processing_style": "sequential", "detail_preference": "high", "abstraction": "concrete",
		},
	}
}

func TestCompress_Deterministic(t *testing.T) {
	p := newTestPipeline(t)
	opts := Options{Model: "default", ConversationHistoryLength: 5}

	a := p.Compress(context.Background(), fullProfile(), "question", 5, opts)
	b := p.Compress(context.Background(), fullProfile(), "question", 5, opts)

	assert.Equal(t, a.PromptText, b.PromptText)

	// Metadata matches except processing time and the record reference.
	a.Metadata.ProcessingTimeMs = 0
	b.Metadata.ProcessingTimeMs = 0
	assert.Equal(t, a.Metadata, b.Metadata)
	assert.NotEqual(t, a.RecordID, b.RecordID)
}

func TestCompress_AbsentContextStillReturnsPrompt(t *testing.T) {
	p := newTestPipeline(t)

	res := p.Compress(context.Background(), nil, "question", 5, Options{})

	assert.NotEmpty(t, res.PromptText)
	// Input absence degrades; it is not an internal failure.
	assert.False(t, res.Metadata.Error)
}

func TestCompress_GreetingScenario(t *testing.T) {
	p := newTestPipeline(t)

	profile := map[string]any{
		"personality": fullProfile()["personality"],
	}
	res := p.Compress(context.Background(), profile, "greeting", 1, Options{Model: "default"})

	assert.Equal(t, allocation.StrategyMinimal, res.Metadata.Strategy)
	assert.GreaterOrEqual(t, res.Metadata.TokenBudget, 30)
	assert.LessOrEqual(t, res.Metadata.TokenBudget, 50)

	// Only the personality line survives the minimal budget.
	require.True(t, strings.HasPrefix(res.PromptText, "Profile: "), "got %q", res.PromptText)
	assert.NotContains(t, res.PromptText, "Current state:")
	assert.NotContains(t, res.PromptText, "Guidance:")
}

func TestCompress_AnalysisScenario(t *testing.T) {
	p := newTestPipeline(t)

	res := p.Compress(context.Background(), fullProfile(), "analysis", 9,
		Options{Model: "default", ConversationHistoryLength: 15})

	assert.Equal(t, allocation.StrategyComprehensive, res.Metadata.Strategy)
	// 10% of the default profile's 8192-token window.
	assert.Equal(t, 819, res.Metadata.TokenBudget)

	// Every cluster category has data, so every section is represented.
	for _, label := range []string{"Profile:", "Current state:", "Context:", "Behavior:", "Guidance:"} {
		assert.Contains(t, res.PromptText, label)
	}
	assert.Len(t, res.Metadata.ClustersUsed, 7)
}

func TestCompress_BudgetOverrideAndForcedStrategy(t *testing.T) {
	p := newTestPipeline(t)

	res := p.Compress(context.Background(), fullProfile(), "question", 5, Options{
		TokenBudgetOverride: 120,
		ForceStrategy:       allocation.StrategyComprehensive,
	})

	assert.Equal(t, 120, res.Metadata.TokenBudget)
	assert.Equal(t, allocation.StrategyComprehensive, res.Metadata.Strategy)
	assert.LessOrEqual(t, res.Metadata.ActualTokens, 120)
}

func TestCompress_ActualTokensWithinBudget(t *testing.T) {
	p := newTestPipeline(t)

	for _, budget := range []int{20, 60, 150, 400, 819} {
		res := p.Compress(context.Background(), fullProfile(), "question", 5,
			Options{TokenBudgetOverride: budget})
		assert.LessOrEqual(t, res.Metadata.ActualTokens, budget, "budget %d", budget)
	}
}

func TestCompress_RecordsEveryCall(t *testing.T) {
	p := newTestPipeline(t)

	p.Compress(context.Background(), fullProfile(), "question", 5, Options{})
	p.Compress(context.Background(), nil, "greeting", 1, Options{})

	assert.Equal(t, 2, p.Recorder().Len())
}

func TestRecordOutcome_RoundTrip(t *testing.T) {
	p := newTestPipeline(t)

	res := p.Compress(context.Background(), fullProfile(), "question", 5, Options{})

	feedback := 0.8
	responseQuality := 0.9
	require.NoError(t, p.RecordOutcome(res.RecordID, &feedback, &responseQuality))
	assert.ErrorIs(t, p.RecordOutcome("no-such-record", &feedback, nil), analytics.ErrRecordNotFound)
}

func TestCompress_ExperimentRouting(t *testing.T) {
	p := newTestPipeline(t)

	require.NoError(t, p.StartExperiment("strategies",
		[]allocation.Strategy{allocation.StrategyMinimal, allocation.StrategyComprehensive},
		[]float64{50, 50}, time.Hour))

	assigned, err := p.AssignStrategy("strategies", "user-7")
	require.NoError(t, err)

	res := p.Compress(context.Background(), fullProfile(), "question", 5, Options{
		Experiment:    "strategies",
		ParticipantID: "user-7",
	})
	assert.Equal(t, assigned, res.Metadata.Strategy)

	// The compression fed a result into the experiment.
	status, err := p.ExperimentStatus("strategies")
	require.NoError(t, err)
	assert.Equal(t, 1, status.Samples[assigned])
}

func TestCompress_UnknownExperimentFallsBack(t *testing.T) {
	p := newTestPipeline(t)

	res := p.Compress(context.Background(), fullProfile(), "question", 5, Options{
		Experiment:    "never-started",
		ParticipantID: "user-1",
	})
	// Budget-based selection takes over; the call still succeeds.
	assert.NotEmpty(t, res.PromptText)
	assert.False(t, res.Metadata.Error)
}

func TestMetricsAndThresholds_Inspection(t *testing.T) {
	p := newTestPipeline(t)

	p.Compress(context.Background(), fullProfile(), "question", 5, Options{})

	m := p.Metrics(time.Hour)
	assert.Equal(t, 1, m.Overall.Count)

	th := p.Thresholds()
	assert.Greater(t, th.Quality, 0.0)
	assert.Greater(t, th.Efficiency, 0.0)
}
