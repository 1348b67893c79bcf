package clustering

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/promptpress/internal/attrtree"
)

// basePriorities is the static per-category priority table.
var basePriorities = map[Category]float64{
	CategoryCorePersonality:    0.95,
	CategoryCurrentState:       0.85,
	CategoryMessageContext:     0.90,
	CategoryPredictive:         0.60,
	CategoryBehavioralPatterns: 0.70,
	CategoryEmotionalProfile:   0.80,
	CategoryCognitiveStyle:     0.65,
}

// defaultReliability is reported when a category's source group is
// entirely absent. Absent data degrades priority math downstream rather
// than aborting the pipeline.
const defaultReliability = 0.3

// richnessSaturation is the attribute count at which richness reaches 1.0.
const richnessSaturation = 10

// extractionRule declares where a category's attributes come from and
// which attributes are expected. Expected order doubles as attribute
// priority for aggressive compression tiers.
type extractionRule struct {
	group    string
	expected []string
	// extra pulls attributes from secondary groups keyed by prefix.
	extra []string
}

var extractionRules = map[Category]extractionRule{
	CategoryCorePersonality: {
		group:    "personality",
		expected: []string{"archetype", "traits", "values", "tone", "humor"},
	},
	CategoryCurrentState: {
		group:    "current_state",
		expected: []string{"mood", "energy", "focus", "availability"},
	},
	CategoryMessageContext: {
		group:    "communication_style",
		expected: []string{"formality", "verbosity", "preferred_format", "language"},
	},
	CategoryPredictive: {
		group:    "predictions",
		expected: []string{"likely_topics", "next_needs", "churn_risk"},
	},
	CategoryBehavioralPatterns: {
		group:    "behavior",
		expected: []string{"active_hours", "response_cadence", "session_length", "habits"},
	},
	CategoryEmotionalProfile: {
		group:    "emotional",
		expected: []string{"baseline_sentiment", "volatility", "triggers", "soothers"},
	},
	CategoryCognitiveStyle: {
		group:    "cognition",
		expected: []string{"processing_style", "detail_preference", "abstraction"},
	},
}

// Engine partitions raw intelligence contexts into clusters. It holds only
// static tables and is safe for concurrent use.
type Engine struct {
	logger *zap.Logger
}

// NewEngine creates a clustering engine. A nil logger is replaced with a nop.
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger.Named("clustering")}
}

// Cluster extracts one cluster per category from the raw context. A missing
// or empty context yields all-empty clusters, never an error.
func (e *Engine) Cluster(profile *attrtree.Tree, interaction InteractionType, complexity float64) map[Category]Cluster {
	clusters := make(map[Category]Cluster, len(Categories))

	for _, cat := range Categories {
		rule := extractionRules[cat]
		group := profile.Group(rule.group)
		content := group.Flatten()

		// The message-context cluster also carries the per-message
		// signal so downstream stays deterministic per input.
		if cat == CategoryMessageContext {
			content["interaction"] = string(interaction)
			if complexity > 0 {
				content["complexity"] = fmt.Sprintf("%.1f", complexity)
			}
		}

		clusters[cat] = Cluster{
			Name:        cat,
			Content:     content,
			Priority:    basePriorities[cat],
			Reliability: reliability(group, rule.expected),
			Richness:    richness(len(content)),
		}
	}

	e.logger.Debug("clustered intelligence context",
		zap.Int("categories", len(clusters)),
		zap.String("interaction", string(interaction)),
		zap.Bool("context_empty", profile.IsEmpty()),
	)

	return clusters
}

// BasePriority returns the static priority for a category, 0 when unknown.
func BasePriority(cat Category) float64 {
	return basePriorities[cat]
}

func reliability(group *attrtree.Tree, expected []string) float64 {
	if group.IsEmpty() {
		return defaultReliability
	}
	if len(expected) == 0 {
		return 1.0
	}
	present := 0
	for _, key := range expected {
		if group.Has(key) {
			present++
		}
	}
	return float64(present) / float64(len(expected))
}

func richness(attrCount int) float64 {
	r := float64(attrCount) / float64(richnessSaturation)
	if r > 1 {
		return 1
	}
	return r
}

// rankAttributes orders attribute names: expected attributes first in
// declared order, then the rest alphabetically.
func rankAttributes(cat Category, content map[string]string) []string {
	rule := extractionRules[cat]
	seen := make(map[string]bool, len(content))
	ordered := make([]string, 0, len(content))

	for _, key := range rule.expected {
		if _, ok := content[key]; ok {
			ordered = append(ordered, key)
			seen[key] = true
		}
	}

	rest := make([]string, 0, len(content))
	for key := range content {
		if !seen[key] {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)

	return append(ordered, rest...)
}
