// Package quality scores assembled compression output against a target and
// retries with adjusted tier boundaries when the target is missed. The
// retry loop has a hard iteration cap: when the target cannot be met the
// best effort is returned and the score is reported below target rather
// than erroring.
package quality

import (
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/promptpress/internal/allocation"
	"github.com/fyrsmithlabs/promptpress/internal/clustering"
	"github.com/fyrsmithlabs/promptpress/internal/compression"
)

// maxIterations caps the re-compression loop. This is the failure-safety
// valve that guarantees termination.
const maxIterations = 3

// Ideal structural ranges for the heuristic score.
const (
	idealUtilizationFloor = 0.5
	idealClustersMin      = 3
	idealClustersMax      = 6
)

// Score weights: budget utilization matters slightly more than section count.
const (
	lengthWeight   = 0.6
	coverageWeight = 0.4
)

// Result carries the possibly-revised compressed clusters and their score.
type Result struct {
	Clusters   []compression.Compressed
	Score      float64
	Iterations int
	MetTarget  bool
}

// Optimizer revises compression output toward a quality target.
type Optimizer struct {
	compressor *compression.Compressor
	logger     *zap.Logger
}

// NewOptimizer creates an optimizer sharing the pipeline's compressor.
func NewOptimizer(compressor *compression.Compressor, logger *zap.Logger) *Optimizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Optimizer{compressor: compressor, logger: logger.Named("quality")}
}

// Optimize scores the compressed clusters and, if below target, retries
// with tier boundaries shifted downward so the same allocations produce
// richer tiers. The best-scoring attempt wins.
func (o *Optimizer) Optimize(
	clusters map[clustering.Category]clustering.Cluster,
	allocations []allocation.Allocation,
	compressed []compression.Compressed,
	tokenBudget int,
	target float64,
) Result {
	best := Result{Clusters: compressed, Score: Score(compressed, tokenBudget)}
	if best.Score >= target {
		best.MetTarget = true
		return best
	}

	boundaries := compression.DefaultBoundaries
	for i := 1; i <= maxIterations; i++ {
		// Lower the tier switch points ~20% per pass: more clusters land
		// in standard/detailed tiers within unchanged allocations.
		boundaries.UltraMax = boundaries.UltraMax * 4 / 5
		boundaries.StandardMax = boundaries.StandardMax * 4 / 5

		attempt := o.recompress(clusters, allocations, boundaries)
		score := Score(attempt, tokenBudget)
		if score > best.Score {
			best = Result{Clusters: attempt, Score: score, Iterations: i}
		}
		if best.Score >= target {
			best.MetTarget = true
			best.Iterations = i
			return best
		}
	}

	o.logger.Debug("quality target not met within iteration cap",
		zap.Float64("score", best.Score),
		zap.Float64("target", target),
	)
	best.Iterations = maxIterations
	return best
}

func (o *Optimizer) recompress(
	clusters map[clustering.Category]clustering.Cluster,
	allocations []allocation.Allocation,
	boundaries compression.Boundaries,
) []compression.Compressed {
	out := make([]compression.Compressed, 0, len(allocations))
	for _, alloc := range allocations {
		cluster, ok := clusters[alloc.Cluster]
		if !ok || alloc.Tokens <= 0 {
			continue
		}
		out = append(out, o.compressor.Compress(cluster, alloc.Tokens, boundaries))
	}
	return out
}

// Score computes the heuristic structural quality of compressed output:
// how well the budget is used and whether the populated section count sits
// in the ideal range. It makes no claim about semantic fidelity.
func Score(compressed []compression.Compressed, tokenBudget int) float64 {
	if tokenBudget <= 0 {
		return 0
	}

	totalTokens := 0
	populated := 0
	for _, c := range compressed {
		if c.Text == "" {
			continue
		}
		totalTokens += c.Tokens
		populated++
	}
	if populated == 0 {
		return 0
	}

	utilization := float64(totalTokens) / float64(tokenBudget)
	lengthScore := 1.0
	if utilization < idealUtilizationFloor {
		lengthScore = utilization / idealUtilizationFloor
	}

	coverageScore := 1.0
	switch {
	case populated < idealClustersMin:
		coverageScore = float64(populated) / float64(idealClustersMin)
	case populated > idealClustersMax:
		coverageScore = float64(idealClustersMax) / float64(populated)
	}

	return lengthWeight*lengthScore + coverageWeight*coverageScore
}
