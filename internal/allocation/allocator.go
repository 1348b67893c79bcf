// Package allocation distributes a token budget across clusters in
// proportion to priority × reliability × richness under a compression
// strategy. Floor rounding guarantees allocations never exceed the budget.
package allocation

import (
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/promptpress/internal/clustering"
)

// Strategy controls which clusters are included and how aggressively each
// is compressed.
type Strategy string

const (
	StrategyMinimal       Strategy = "minimal"
	StrategyBalanced      Strategy = "balanced"
	StrategyComprehensive Strategy = "comprehensive"
)

// Strategies lists all valid strategies.
var Strategies = []Strategy{StrategyMinimal, StrategyBalanced, StrategyComprehensive}

// Valid reports whether s names a known strategy.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyMinimal, StrategyBalanced, StrategyComprehensive:
		return true
	}
	return false
}

// Budget thresholds for automatic strategy selection.
const (
	minimalBudgetCeiling       = 60
	comprehensiveBudgetFloor   = 500
	// minViableTokens is the smallest allocation worth compressing into.
	// Anything below is zeroed rather than squeezed (budget exhaustion is
	// resolved by starving low-priority clusters, never by overspending).
	minViableTokens = 5
)

// minimalWeights restricts the minimal strategy to the three clusters that
// matter for a short exchange. Everything else is excluded outright.
var minimalWeights = map[clustering.Category]float64{
	clustering.CategoryCorePersonality: 1.0,
	clustering.CategoryMessageContext:  0.9,
	clustering.CategoryCurrentState:    0.8,
}

// Allocation assigns a token count to one cluster.
type Allocation struct {
	Cluster clustering.Category
	Tokens  int
	Weight  float64
}

// SelectStrategy picks a strategy from the budget when the caller did not
// force one: tight budgets go minimal, generous ones comprehensive.
func SelectStrategy(tokenBudget int) Strategy {
	switch {
	case tokenBudget < minimalBudgetCeiling:
		return StrategyMinimal
	case tokenBudget > comprehensiveBudgetFloor:
		return StrategyComprehensive
	default:
		return StrategyBalanced
	}
}

// Allocator distributes token budgets. Stateless apart from its logger.
type Allocator struct {
	logger *zap.Logger
}

// NewAllocator creates an allocator. A nil logger is replaced with a nop.
func NewAllocator(logger *zap.Logger) *Allocator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Allocator{logger: logger.Named("allocation")}
}

// Allocate splits tokenBudget across clusters proportional to effective
// priority. Zero-effective-priority clusters get zero tokens. The returned
// slice follows the stable category order.
func (a *Allocator) Allocate(clusters map[clustering.Category]clustering.Cluster, tokenBudget int, strategy Strategy) []Allocation {
	allocations := make([]Allocation, 0, len(clusters))
	if tokenBudget <= 0 {
		return allocations
	}

	var totalWeight float64
	weights := make(map[clustering.Category]float64, len(clusters))
	for _, cat := range clustering.Categories {
		c, ok := clusters[cat]
		if !ok {
			continue
		}
		w := strategyBaseWeight(c, strategy) * c.Reliability * c.Richness
		weights[cat] = w
		totalWeight += w
	}

	for _, cat := range clustering.Categories {
		if _, ok := clusters[cat]; !ok {
			continue
		}
		w := weights[cat]
		tokens := 0
		if w > 0 && totalWeight > 0 {
			// Floor rounding keeps the sum of allocations under budget.
			tokens = int(float64(tokenBudget) * w / totalWeight)
		}
		if tokens < minViableTokens {
			tokens = 0
		}
		allocations = append(allocations, Allocation{Cluster: cat, Tokens: tokens, Weight: w})
	}

	a.logger.Debug("allocated token budget",
		zap.Int("budget", tokenBudget),
		zap.String("strategy", string(strategy)),
		zap.Int("clusters", len(allocations)),
	)

	return allocations
}

// strategyBaseWeight maps a cluster's static priority through the strategy.
func strategyBaseWeight(c clustering.Cluster, strategy Strategy) float64 {
	switch strategy {
	case StrategyMinimal:
		return minimalWeights[c.Name]
	case StrategyComprehensive:
		// Flatten the priority spread so low-priority clusters still get
		// representation under generous budgets.
		return 0.7 + 0.3*c.Priority
	default:
		return c.Priority
	}
}

// TotalTokens sums the token counts of a set of allocations.
func TotalTokens(allocations []Allocation) int {
	total := 0
	for _, a := range allocations {
		total += a.Tokens
	}
	return total
}
