package analytics

import (
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/promptpress/internal/budget"
)

// Benchmarks are the rolling-metric levels below which a tuning pass fires.
type Benchmarks struct {
	MinQuality    float64
	MinEfficiency float64
}

// DefaultBenchmarks mirror the anomaly thresholds with some headroom.
var DefaultBenchmarks = Benchmarks{MinQuality: 0.6, MinEfficiency: 0.4}

// DefaultLearningRate is the fraction of the threshold gap covered per pass.
const DefaultLearningRate = 0.1

// Tuner nudges the adaptive thresholds toward recent successful parameter
// values when rolling metrics fall below benchmarks. Rate-limited so
// adaptation stays slow and bounded; oscillation is worse than lag.
type Tuner struct {
	thresholds   *budget.Thresholds
	benchmarks   Benchmarks
	learningRate float64
	limiter      *rate.Limiter
	logger       *zap.Logger
	prom         *PromMetrics
}

// NewTuner creates a tuner. minInterval spaces out optimization passes.
func NewTuner(thresholds *budget.Thresholds, benchmarks Benchmarks, learningRate float64, minInterval time.Duration, logger *zap.Logger) *Tuner {
	if learningRate <= 0 || learningRate > 1 {
		learningRate = DefaultLearningRate
	}
	if minInterval <= 0 {
		minInterval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tuner{
		thresholds:   thresholds,
		benchmarks:   benchmarks,
		learningRate: learningRate,
		limiter:      rate.NewLimiter(rate.Every(minInterval), 1),
		logger:       logger.Named("tuner"),
		prom:         NewPromMetrics(),
	}
}

// Evaluate runs one best-effort optimization pass: if the window metrics
// sit below the benchmarks, the adaptive thresholds take a learning-rate
// scaled step toward the mean of recent successful records.
func (t *Tuner) Evaluate(m WindowMetrics, records []Record) {
	if m.Overall.Count == 0 {
		return
	}
	if m.Overall.AvgQuality >= t.benchmarks.MinQuality && m.Overall.AvgEfficiency >= t.benchmarks.MinEfficiency {
		return
	}
	if !t.limiter.Allow() {
		return
	}

	var sumQ, sumE float64
	successes := 0
	for _, rec := range records {
		if rec.Error || rec.QualityScore < t.benchmarks.MinQuality {
			continue
		}
		sumQ += rec.QualityScore
		sumE += rec.Efficiency
		successes++
	}
	if successes == 0 {
		t.logger.Debug("tuning pass skipped, no successful records to learn from")
		return
	}

	qualityTarget := sumQ / float64(successes)
	efficiencyTarget := sumE / float64(successes)
	t.thresholds.Nudge(qualityTarget, efficiencyTarget, t.learningRate)
	t.prom.TuningPassesTotal.Inc()

	t.logger.Info("adaptive thresholds nudged",
		zap.Float64("quality_target", qualityTarget),
		zap.Float64("efficiency_target", efficiencyTarget),
		zap.Float64("learning_rate", t.learningRate),
		zap.Int("successes", successes),
	)
}
