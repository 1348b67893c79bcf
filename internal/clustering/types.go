// Package clustering partitions a raw intelligence context into named,
// weighted clusters. Each cluster carries a static base priority, a
// reliability score (fraction of expected attributes present) and a
// richness score (saturating measure of attribute count).
package clustering

// InteractionType classifies the message that triggered a compression.
type InteractionType string

const (
	InteractionQuestion  InteractionType = "question"
	InteractionTechnical InteractionType = "technical"
	InteractionEmotional InteractionType = "emotional"
	InteractionCreative  InteractionType = "creative"
	InteractionGreeting  InteractionType = "greeting"
	InteractionAnalysis  InteractionType = "analysis"
)

// Category names a semantic cluster of the intelligence context.
type Category string

const (
	CategoryCorePersonality    Category = "core_personality"
	CategoryCurrentState       Category = "current_state"
	CategoryMessageContext     Category = "message_context"
	CategoryPredictive         Category = "predictive"
	CategoryBehavioralPatterns Category = "behavioral_patterns"
	CategoryEmotionalProfile   Category = "emotional_profile"
	CategoryCognitiveStyle     Category = "cognitive_style"
)

// Categories lists every cluster category in stable order. The order
// doubles as the tiebreak order downstream, so it must not change between
// calls.
var Categories = []Category{
	CategoryCorePersonality,
	CategoryCurrentState,
	CategoryMessageContext,
	CategoryPredictive,
	CategoryBehavioralPatterns,
	CategoryEmotionalProfile,
	CategoryCognitiveStyle,
}

// Cluster is a weighted slice of the intelligence context. Clusters are
// built fresh on every compression call and never persisted.
type Cluster struct {
	Name     Category
	Content  map[string]string
	Priority float64 // static base priority, [0,1]
	// Reliability is the fraction of expected attributes actually present.
	Reliability float64
	// Richness saturates with attribute count: min(1, n/10).
	Richness float64
}

// Empty reports whether the cluster extracted no attributes.
func (c Cluster) Empty() bool {
	return len(c.Content) == 0
}

// AttributeOrder returns the cluster's attribute names ranked by the
// category's expected-attribute order first, then alphabetically for
// attributes outside the expected set. Compressors use this to decide
// which attributes survive aggressive tiers.
func (c Cluster) AttributeOrder() []string {
	return rankAttributes(c.Name, c.Content)
}
