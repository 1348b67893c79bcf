// Package pipeline orchestrates the adaptive prompt-compression chain:
// clustering, budget estimation, allocation, tiered compression, quality
// optimization and assembly, with every event recorded for the analytics
// and tuning layer. The pipeline sits on the hot path of a live response:
// it always returns a usable prompt, never an error or a panic.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/promptpress/internal/allocation"
	"github.com/fyrsmithlabs/promptpress/internal/analytics"
	"github.com/fyrsmithlabs/promptpress/internal/assembly"
	"github.com/fyrsmithlabs/promptpress/internal/attrtree"
	"github.com/fyrsmithlabs/promptpress/internal/budget"
	"github.com/fyrsmithlabs/promptpress/internal/clustering"
	"github.com/fyrsmithlabs/promptpress/internal/compression"
	"github.com/fyrsmithlabs/promptpress/internal/quality"
)

const tracerName = "github.com/fyrsmithlabs/promptpress/internal/pipeline"
const meterName = "promptpress"

// fallbackPrompt is the minimal descriptor emitted when the pipeline has
// nothing better: empty intelligence context or an internal failure.
const fallbackPrompt = "Profile: a conversational participant with no established profile; respond helpfully and neutrally."

// Config holds pipeline construction parameters.
type Config struct {
	// RecordCapacity bounds the in-memory compression log.
	RecordCapacity int
	Logger         *zap.Logger
}

// Pipeline is the compression service. Safe for concurrent use: each call
// reads static tables plus snapshots of the shared adaptive state.
type Pipeline struct {
	logger      *zap.Logger
	engine      *clustering.Engine
	estimator   *budget.Estimator
	allocator   *allocation.Allocator
	compressor  *compression.Compressor
	optimizer   *quality.Optimizer
	thresholds  *budget.Thresholds
	recorder    *analytics.Recorder
	experiments *analytics.ExperimentManager

	tracer trace.Tracer
	meter  metric.Meter

	compressionsTotal  metric.Int64Counter
	compressionTime    metric.Float64Histogram
	compressionRatio   metric.Float64Histogram
	compressionQuality metric.Float64Histogram
	fallbacksTotal     metric.Int64Counter
}

// New constructs a pipeline with its dependencies. There are no package
// singletons: callers own the instance and pass it where needed.
func New(cfg Config) (*Pipeline, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	thresholds := budget.NewThresholds()
	compressor := compression.NewCompressor(logger)

	p := &Pipeline{
		logger:      logger.Named("pipeline"),
		engine:      clustering.NewEngine(logger),
		estimator:   budget.NewEstimator(thresholds),
		allocator:   allocation.NewAllocator(logger),
		compressor:  compressor,
		optimizer:   quality.NewOptimizer(compressor, logger),
		thresholds:  thresholds,
		recorder:    analytics.NewRecorder(cfg.RecordCapacity, logger),
		experiments: analytics.NewExperimentManager(logger),
		tracer:      otel.Tracer(tracerName),
		meter:       otel.Meter(meterName),
	}
	if err := p.initMetrics(); err != nil {
		return nil, err
	}
	return p, nil
}

// Compress runs the full chain for one intelligence context. It never
// returns an error: internal failures surface as the fallback prompt with
// the Error metadata flag set.
func (p *Pipeline) Compress(ctx context.Context, profile map[string]any, interaction InteractionType, complexity float64, opts Options) (res Result) {
	ctx, span := p.tracer.Start(ctx, "pipeline.compress",
		trace.WithAttributes(
			attribute.String("interaction", string(interaction)),
			attribute.Float64("complexity", complexity),
			attribute.String("model", opts.Model),
		),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("compression panicked, serving fallback", zap.Any("panic", r))
			p.fallbacksTotal.Add(ctx, 1)
			res = p.fallbackResult(start, opts)
		}
		p.record(ctx, res, opts.Model)
	}()

	tree := attrtree.New(profile)
	model := budget.Profile(opts.Model)

	tokenBudget := opts.TokenBudgetOverride
	if tokenBudget <= 0 {
		tokenBudget = p.estimator.Estimate(model, interaction, complexity, opts.ConversationHistoryLength)
	}

	strategy, experiment := p.resolveStrategy(tokenBudget, opts)
	span.SetAttributes(attribute.String("strategy", string(strategy)))

	clusters := p.engine.Cluster(tree, interaction, complexity)
	allocations := p.allocator.Allocate(clusters, tokenBudget, strategy)

	compressed := make([]compression.Compressed, 0, len(allocations))
	for _, alloc := range allocations {
		if alloc.Tokens <= 0 {
			continue
		}
		compressed = append(compressed, p.compressor.Compress(clusters[alloc.Cluster], alloc.Tokens, compression.DefaultBoundaries))
	}

	target := opts.QualityTarget
	if target <= 0 {
		target = p.thresholds.Snapshot().Quality
	}
	optimized := p.optimizer.Optimize(clusters, allocations, compressed, tokenBudget, target)

	promptText := assembly.Assemble(optimized.Clusters)
	if promptText == "" {
		// Input absence is not an error: degrade to the generic descriptor.
		promptText = fallbackPrompt
	}

	clustersUsed := make([]string, 0, len(optimized.Clusters))
	originalSize := 0
	for _, c := range optimized.Clusters {
		if c.Text == "" {
			continue
		}
		clustersUsed = append(clustersUsed, string(c.Cluster))
	}
	for _, cluster := range clusters {
		for k, v := range cluster.Content {
			originalSize += len(k) + len(v)
		}
	}

	ratio := 0.0
	if len(promptText) > 0 && originalSize > 0 {
		ratio = float64(originalSize) / float64(len(promptText))
	}

	res = Result{
		PromptText: promptText,
		RecordID:   uuid.NewString(),
		Metadata: Metadata{
			Strategy:         strategy,
			TokenBudget:      tokenBudget,
			ActualTokens:     compression.EstimateTokens(promptText),
			CompressionRatio: ratio,
			QualityScore:     optimized.Score,
			ProcessingTimeMs: float64(time.Since(start).Microseconds()) / 1000.0,
			ClustersUsed:     clustersUsed,
		},
	}

	if experiment != "" {
		if err := p.experiments.RecordResult(experiment, strategy, optimized.Score); err != nil {
			p.logger.Debug("experiment result dropped", zap.String("experiment", experiment), zap.Error(err))
		}
	}

	span.SetAttributes(
		attribute.Int("token_budget", tokenBudget),
		attribute.Int("actual_tokens", res.Metadata.ActualTokens),
		attribute.Float64("quality_score", optimized.Score),
	)
	return res
}

// resolveStrategy applies precedence: caller force > experiment assignment
// > budget-based selection.
func (p *Pipeline) resolveStrategy(tokenBudget int, opts Options) (allocation.Strategy, string) {
	if opts.ForceStrategy.Valid() {
		return opts.ForceStrategy, ""
	}
	if opts.Experiment != "" && opts.ParticipantID != "" {
		if s, err := p.experiments.Assign(opts.Experiment, opts.ParticipantID); err == nil {
			return s, opts.Experiment
		}
	}
	return allocation.SelectStrategy(tokenBudget), ""
}

func (p *Pipeline) fallbackResult(start time.Time, opts Options) Result {
	return Result{
		PromptText: fallbackPrompt,
		RecordID:   uuid.NewString(),
		Metadata: Metadata{
			Strategy:         allocation.StrategyMinimal,
			TokenBudget:      opts.TokenBudgetOverride,
			ActualTokens:     compression.EstimateTokens(fallbackPrompt),
			ProcessingTimeMs: float64(time.Since(start).Microseconds()) / 1000.0,
			Error:            true,
		},
	}
}

// record appends the compression event to the analytics log and emits
// OTel metrics. Analytics failures must not reach the caller.
func (p *Pipeline) record(ctx context.Context, res Result, model string) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("analytics bookkeeping panicked", zap.Any("panic", r))
		}
	}()

	md := res.Metadata
	p.recorder.Append(analytics.Record{
		ID:               res.RecordID,
		Timestamp:        time.Now(),
		Strategy:         md.Strategy,
		Model:            model,
		TokenBudget:      md.TokenBudget,
		ActualTokens:     md.ActualTokens,
		CompressionRatio: md.CompressionRatio,
		QualityScore:     md.QualityScore,
		Efficiency:       analytics.EfficiencyOf(md.CompressionRatio),
		ProcessingTimeMs: md.ProcessingTimeMs,
		ClustersUsed:     md.ClustersUsed,
		Error:            md.Error,
	})

	attrs := metric.WithAttributes(attribute.String("strategy", string(md.Strategy)))
	p.compressionsTotal.Add(ctx, 1, attrs)
	p.compressionTime.Record(ctx, md.ProcessingTimeMs/1000.0, attrs)
	p.compressionRatio.Record(ctx, md.CompressionRatio, attrs)
	p.compressionQuality.Record(ctx, md.QualityScore, attrs)
}

// RecordOutcome attaches later-observed feedback to a compression record.
func (p *Pipeline) RecordOutcome(recordID string, userFeedback, responseQuality *float64) error {
	return p.recorder.RecordOutcome(recordID, userFeedback, responseQuality)
}

// StartExperiment creates and activates an A/B test between strategies.
func (p *Pipeline) StartExperiment(name string, strategies []allocation.Strategy, trafficSplit []float64, duration time.Duration) error {
	return p.experiments.Start(name, strategies, trafficSplit, duration)
}

// AssignStrategy deterministically routes a participant within an
// experiment.
func (p *Pipeline) AssignStrategy(experiment, participantID string) (allocation.Strategy, error) {
	return p.experiments.Assign(experiment, participantID)
}

// EndExperiment stops an experiment and returns its report.
func (p *Pipeline) EndExperiment(name string) (analytics.Report, error) {
	return p.experiments.End(name)
}

// ExperimentStatus returns a read-only view of an experiment.
func (p *Pipeline) ExperimentStatus(name string) (analytics.ExperimentStatus, error) {
	return p.experiments.Status(name)
}

// Metrics computes rolling metrics over the given window.
func (p *Pipeline) Metrics(window time.Duration) analytics.WindowMetrics {
	return p.recorder.Metrics(window)
}

// Thresholds returns a snapshot of the adaptive tuning state.
func (p *Pipeline) Thresholds() budget.ThresholdSnapshot {
	return p.thresholds.Snapshot()
}

// Recorder exposes the compression log for scheduler wiring.
func (p *Pipeline) Recorder() *analytics.Recorder {
	return p.recorder
}

// ThresholdState exposes the mutable adaptive state for tuner wiring.
func (p *Pipeline) ThresholdState() *budget.Thresholds {
	return p.thresholds
}

func (p *Pipeline) initMetrics() error {
	var err error

	p.compressionsTotal, err = p.meter.Int64Counter(
		"promptpress.compressions_total",
		metric.WithDescription("Total compression calls"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}

	p.compressionTime, err = p.meter.Float64Histogram(
		"promptpress.duration_seconds",
		metric.WithDescription("Time spent per compression call"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1),
	)
	if err != nil {
		return err
	}

	p.compressionRatio, err = p.meter.Float64Histogram(
		"promptpress.compression_ratio",
		metric.WithDescription("Achieved compression ratios"),
		metric.WithUnit("1"),
		metric.WithExplicitBucketBoundaries(1.0, 1.5, 2.0, 3.0, 5.0, 10.0, 20.0),
	)
	if err != nil {
		return err
	}

	p.compressionQuality, err = p.meter.Float64Histogram(
		"promptpress.quality_score",
		metric.WithDescription("Quality scores of compression output"),
		metric.WithUnit("1"),
		metric.WithExplicitBucketBoundaries(0.0, 0.2, 0.4, 0.6, 0.8, 1.0),
	)
	if err != nil {
		return err
	}

	p.fallbacksTotal, err = p.meter.Int64Counter(
		"promptpress.fallbacks_total",
		metric.WithDescription("Compressions that served the fallback prompt after an internal failure"),
		metric.WithUnit("1"),
	)
	return err
}
