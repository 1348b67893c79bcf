package analytics

import (
	"crypto/sha256"
	"encoding/binary"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/promptpress/internal/allocation"
)

// minSamplesForWinner is how many results a strategy needs before it can
// win an experiment.
const minSamplesForWinner = 5

// Experiment is a time-boxed comparison of compression strategies with
// deterministic per-participant assignment. Expiry is lazy: the duration is
// compared only on the next routing lookup, so an experiment with no
// traffic can outlive its nominal duration. That is an accepted tradeoff
// for lock-free simplicity over precise timing.
type Experiment struct {
	Name         string
	Strategies   []allocation.Strategy
	TrafficSplit []float64 // percentages, sum 100
	StartTime    time.Time
	Duration     time.Duration
	Active       bool
	EndTime      time.Time

	results map[allocation.Strategy][]float64
	report  *Report
}

// Report summarizes an ended experiment. Immutable; retained for audit.
type Report struct {
	Name       string                             `json:"name"`
	Winner     allocation.Strategy                `json:"winner"`
	Confidence map[allocation.Strategy]float64    `json:"confidence"`
	Metrics    map[allocation.Strategy]Aggregate  `json:"metrics"`
	EndedAt    time.Time                          `json:"ended_at"`
}

// ExperimentStatus is a read-only view of an experiment's state.
type ExperimentStatus struct {
	Name         string                          `json:"name"`
	Strategies   []allocation.Strategy           `json:"strategies"`
	TrafficSplit []float64                       `json:"traffic_split"`
	StartTime    time.Time                       `json:"start_time"`
	Duration     time.Duration                   `json:"duration"`
	Active       bool                            `json:"active"`
	Samples      map[allocation.Strategy]int     `json:"samples"`
}

// ExperimentManager owns the experiment registry. A single mutex
// coordinates all read-modify-write access.
type ExperimentManager struct {
	mu          sync.Mutex
	experiments map[string]*Experiment
	logger      *zap.Logger
	prom        *PromMetrics
	now         func() time.Time // injectable for tests
}

// NewExperimentManager creates an empty experiment registry.
func NewExperimentManager(logger *zap.Logger) *ExperimentManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExperimentManager{
		experiments: make(map[string]*Experiment),
		logger:      logger.Named("experiments"),
		prom:        NewPromMetrics(),
		now:         time.Now,
	}
}

// Start creates and activates an experiment.
func (m *ExperimentManager) Start(name string, strategies []allocation.Strategy, trafficSplit []float64, duration time.Duration) error {
	if name == "" {
		return ErrExperimentName
	}
	if len(strategies) < 2 {
		return ErrInsufficientVariants
	}
	if len(trafficSplit) != len(strategies) {
		return ErrSplitMismatch
	}
	if duration <= 0 {
		return ErrInvalidDuration
	}
	var sum float64
	for _, share := range trafficSplit {
		if share < 0 {
			return ErrSplitSum
		}
		sum += share
	}
	if math.Abs(sum-100) > 0.5 {
		return ErrSplitSum
	}
	for _, s := range strategies {
		if !s.Valid() {
			return ErrInvalidStrategy
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.experiments[name]; ok && existing.Active {
		return ErrExperimentExists
	}
	m.experiments[name] = &Experiment{
		Name:         name,
		Strategies:   strategies,
		TrafficSplit: trafficSplit,
		StartTime:    m.now(),
		Duration:     duration,
		Active:       true,
		results:      make(map[allocation.Strategy][]float64),
	}
	m.prom.ExperimentsActive.Inc()

	m.logger.Info("experiment started",
		zap.String("experiment", name),
		zap.Duration("duration", duration),
		zap.Int("strategies", len(strategies)),
	)
	return nil
}

// Assign deterministically routes a participant to a strategy: the
// participant hashes to a stable bucket in [0,100) which maps through the
// cumulative traffic-split boundaries. The same participant always gets
// the same strategy while the experiment is active. Duration expiry is
// checked here, lazily.
func (m *ExperimentManager) Assign(name, participantID string) (allocation.Strategy, error) {
	if participantID == "" {
		return "", ErrEmptyParticipant
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	exp, ok := m.experiments[name]
	if !ok {
		return "", ErrExperimentNotFound
	}
	if exp.Active && m.now().Sub(exp.StartTime) > exp.Duration {
		m.finishLocked(exp)
	}
	if !exp.Active {
		return "", ErrExperimentEnded
	}

	bucket := bucketOf(name, participantID)
	var cumulative float64
	for i, share := range exp.TrafficSplit {
		cumulative += share
		if bucket < cumulative {
			return exp.Strategies[i], nil
		}
	}
	// Rounding in the split can leave a sliver at the top of the range.
	return exp.Strategies[len(exp.Strategies)-1], nil
}

// RecordResult appends a quality observation for a strategy under an
// active experiment.
func (m *ExperimentManager) RecordResult(name string, strategy allocation.Strategy, quality float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	exp, ok := m.experiments[name]
	if !ok {
		return ErrExperimentNotFound
	}
	if !exp.Active {
		return ErrExperimentEnded
	}
	for _, s := range exp.Strategies {
		if s == strategy {
			exp.results[strategy] = append(exp.results[strategy], quality)
			return nil
		}
	}
	return ErrStrategyNotInExp
}

// End explicitly stops an experiment and returns its report. Ending an
// already-ended experiment returns the retained report.
func (m *ExperimentManager) End(name string) (Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	exp, ok := m.experiments[name]
	if !ok {
		return Report{}, ErrExperimentNotFound
	}
	if exp.Active {
		m.finishLocked(exp)
	}
	return *exp.report, nil
}

// Status returns a read-only view of an experiment.
func (m *ExperimentManager) Status(name string) (ExperimentStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	exp, ok := m.experiments[name]
	if !ok {
		return ExperimentStatus{}, ErrExperimentNotFound
	}
	samples := make(map[allocation.Strategy]int, len(exp.Strategies))
	for _, s := range exp.Strategies {
		samples[s] = len(exp.results[s])
	}
	return ExperimentStatus{
		Name:         exp.Name,
		Strategies:   append([]allocation.Strategy(nil), exp.Strategies...),
		TrafficSplit: append([]float64(nil), exp.TrafficSplit...),
		StartTime:    exp.StartTime,
		Duration:     exp.Duration,
		Active:       exp.Active,
		Samples:      samples,
	}, nil
}

// Names lists all known experiments, active and archived.
func (m *ExperimentManager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.experiments))
	for name := range m.experiments {
		names = append(names, name)
	}
	return names
}

// finishLocked ends an experiment and computes its report. Caller holds mu.
func (m *ExperimentManager) finishLocked(exp *Experiment) {
	exp.Active = false
	exp.EndTime = m.now()
	exp.report = buildReport(exp)
	m.prom.ExperimentsActive.Dec()

	m.logger.Info("experiment ended",
		zap.String("experiment", exp.Name),
		zap.String("winner", string(exp.report.Winner)),
	)
}

func buildReport(exp *Experiment) *Report {
	report := &Report{
		Name:       exp.Name,
		Confidence: make(map[allocation.Strategy]float64, len(exp.Strategies)),
		Metrics:    make(map[allocation.Strategy]Aggregate, len(exp.Strategies)),
		EndedAt:    exp.EndTime,
	}

	var bestScore float64
	for _, strategy := range exp.Strategies {
		scores := exp.results[strategy]
		agg := Aggregate{Count: len(scores)}
		for _, q := range scores {
			agg.AvgQuality += q
		}
		if len(scores) > 0 {
			agg.AvgQuality /= float64(len(scores))
		}
		report.Metrics[strategy] = agg

		// Confidence grows with sample count and mean quality. A crude
		// proxy, not a significance test.
		sampleFactor := float64(len(scores)) / 30.0
		if sampleFactor > 1 {
			sampleFactor = 1
		}
		confidence := agg.AvgQuality * sampleFactor
		report.Confidence[strategy] = confidence

		if len(scores) >= minSamplesForWinner && confidence > bestScore {
			bestScore = confidence
			report.Winner = strategy
		}
	}
	return report
}

// bucketOf hashes (experiment, participant) to a stable bucket in [0,100).
func bucketOf(experiment, participantID string) float64 {
	h := sha256.Sum256([]byte(experiment + ":" + participantID))
	return float64(binary.BigEndian.Uint64(h[:8]) % 100)
}
