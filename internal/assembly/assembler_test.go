package assembly

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fyrsmithlabs/promptpress/internal/clustering"
	"github.com/fyrsmithlabs/promptpress/internal/compression"
)

func TestAssemble_FixedSectionOrder(t *testing.T) {
	// Input order is deliberately scrambled; output order must not follow it.
	compressed := []compression.Compressed{
		{Cluster: clustering.CategoryPredictive, Text: "will ask about tests", Tokens: 5},
		{Cluster: clustering.CategoryCurrentState, Text: "focused", Tokens: 2},
		{Cluster: clustering.CategoryCorePersonality, Text: "pragmatic analyst", Tokens: 4},
	}

	prompt := Assemble(compressed)

	profileIdx := strings.Index(prompt, "Profile:")
	stateIdx := strings.Index(prompt, "Current state:")
	guidanceIdx := strings.Index(prompt, "Guidance:")
	assert.GreaterOrEqual(t, profileIdx, 0)
	assert.Greater(t, stateIdx, profileIdx)
	assert.Greater(t, guidanceIdx, stateIdx)
}

func TestAssemble_SkipsEmptyClusters(t *testing.T) {
	compressed := []compression.Compressed{
		{Cluster: clustering.CategoryCorePersonality, Text: "pragmatic analyst"},
		{Cluster: clustering.CategoryPredictive, Text: ""},
		{Cluster: clustering.CategoryBehavioralPatterns},
	}

	prompt := Assemble(compressed)

	assert.Contains(t, prompt, "Profile: pragmatic analyst")
	assert.NotContains(t, prompt, "Guidance")
	assert.NotContains(t, prompt, "Behavior")
}

func TestAssemble_GroupsCategoriesWithinSection(t *testing.T) {
	compressed := []compression.Compressed{
		{Cluster: clustering.CategoryEmotionalProfile, Text: "even-keeled"},
		{Cluster: clustering.CategoryCorePersonality, Text: "pragmatic analyst"},
	}

	prompt := Assemble(compressed)
	assert.Equal(t, "Profile: pragmatic analyst | even-keeled", prompt)
}

func TestAssemble_Deterministic(t *testing.T) {
	compressed := []compression.Compressed{
		{Cluster: clustering.CategoryCorePersonality, Text: "analyst"},
		{Cluster: clustering.CategoryCurrentState, Text: "focused"},
		{Cluster: clustering.CategoryCognitiveStyle, Text: "sequential"},
	}
	assert.Equal(t, Assemble(compressed), Assemble(compressed))
}

func TestAssemble_AllEmpty(t *testing.T) {
	assert.Empty(t, Assemble(nil))
	assert.Empty(t, Assemble([]compression.Compressed{{Cluster: clustering.CategoryPredictive}}))
}
