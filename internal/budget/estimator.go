// Package budget computes token budgets for compressed prompt fragments and
// owns the process-wide adaptive threshold state that tunes them.
package budget

import (
	"github.com/fyrsmithlabs/promptpress/internal/clustering"
)

// ModelProfile describes a target model's context capacity and the token
// allowance considered optimal for an intelligence fragment.
type ModelProfile struct {
	Name string
	// MaxContextTokens is the model's full context window.
	MaxContextTokens int
	// OptimalIntelligenceTokens is the base allowance before scaling.
	OptimalIntelligenceTokens int
}

// contextShare caps an intelligence fragment at this fraction of the
// model's context window.
const contextShare = 0.10

// DefaultProfile is used when the requested model is unknown.
var DefaultProfile = ModelProfile{
	Name:                      "default",
	MaxContextTokens:          8192,
	OptimalIntelligenceTokens: 300,
}

var builtinProfiles = map[string]ModelProfile{
	"default":       DefaultProfile,
	"claude-haiku":  {Name: "claude-haiku", MaxContextTokens: 200000, OptimalIntelligenceTokens: 700},
	"claude-sonnet": {Name: "claude-sonnet", MaxContextTokens: 200000, OptimalIntelligenceTokens: 1100},
	"gpt-4o-mini":   {Name: "gpt-4o-mini", MaxContextTokens: 128000, OptimalIntelligenceTokens: 600},
}

// interactionFactors scales the base allowance per interaction type.
var interactionFactors = map[clustering.InteractionType]float64{
	clustering.InteractionGreeting:  0.3,
	clustering.InteractionQuestion:  1.0,
	clustering.InteractionEmotional: 1.1,
	clustering.InteractionCreative:  1.2,
	clustering.InteractionTechnical: 1.4,
	clustering.InteractionAnalysis:  1.8,
}

// Profile resolves a model name to its profile, falling back to the
// default profile for unknown names.
func Profile(model string) ModelProfile {
	if p, ok := builtinProfiles[model]; ok {
		return p
	}
	return DefaultProfile
}

// Estimator computes token budgets. It reads only static tables and a
// snapshot of the adaptive thresholds, so it is deterministic given
// identical inputs and unchanged threshold state.
type Estimator struct {
	thresholds *Thresholds
}

// NewEstimator creates an estimator bound to the given adaptive state.
func NewEstimator(thresholds *Thresholds) *Estimator {
	if thresholds == nil {
		thresholds = NewThresholds()
	}
	return &Estimator{thresholds: thresholds}
}

// Estimate computes the token budget for one compression call.
// Complexity is on a 0..10 scale; historyLen counts prior turns.
func (e *Estimator) Estimate(profile ModelProfile, interaction clustering.InteractionType, complexity float64, historyLen int) int {
	if complexity < 0 {
		complexity = 0
	}
	if complexity > 10 {
		complexity = 10
	}

	complexityFactor := 0.5 + complexity/10
	if complexityFactor > 2.0 {
		complexityFactor = 2.0
	}

	interactionFactor, ok := interactionFactors[interaction]
	if !ok {
		interactionFactor = 1.0
	}

	historyFactor := 1.0
	switch {
	case historyLen > 10:
		historyFactor = 1.3
	case historyLen < 3:
		historyFactor = 0.8
	}

	// Adaptive scaling: a raised efficiency target shrinks the allowance,
	// a lowered one grows it. Bounded so tuning can never dominate the
	// static factors.
	snap := e.thresholds.Snapshot()
	adaptive := clamp(1.0+(DefaultEfficiencyTarget-snap.Efficiency)*0.5, 0.8, 1.2)

	tokens := int(float64(profile.OptimalIntelligenceTokens) * complexityFactor * interactionFactor * historyFactor * adaptive)

	ceiling := int(float64(profile.MaxContextTokens) * contextShare)
	if tokens > ceiling {
		tokens = ceiling
	}
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}
