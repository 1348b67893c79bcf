package analytics

import (
	"time"

	"go.uber.org/zap"
)

// DefaultRecomputeInterval is how often the scheduler recomputes metrics.
const DefaultRecomputeInterval = 30 * time.Second

// Scheduler owns the periodic metric recomputation and tuning cycle. It
// runs on its own goroutine, decoupled from request latency: a live
// compression call never waits on it. Stop shuts it down cleanly.
type Scheduler struct {
	recorder *Recorder
	tuner    *Tuner
	window   time.Duration
	interval time.Duration
	logger   *zap.Logger

	stop chan struct{}
	done chan struct{}
}

// NewScheduler wires the recorder and tuner into a repeating task.
func NewScheduler(recorder *Recorder, tuner *Tuner, window, interval time.Duration, logger *zap.Logger) *Scheduler {
	if window <= 0 {
		window = DefaultWindow
	}
	if interval <= 0 {
		interval = DefaultRecomputeInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		recorder: recorder,
		tuner:    tuner,
		window:   window,
		interval: interval,
		logger:   logger.Named("scheduler"),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the recompute loop.
func (s *Scheduler) Start() {
	go s.run()
}

// Stop terminates the loop and waits for it to exit.
func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.done
}

func (s *Scheduler) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.cycle()
		}
	}
}

// cycle runs one recompute-and-tune pass. Failures here are logged and
// isolated: a broken tuning cycle must never affect compression.
func (s *Scheduler) cycle() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("tuning cycle panicked", zap.Any("panic", r))
		}
	}()

	records := s.recorder.Snapshot()
	metrics := Compute(records, s.window, time.Now())

	if metrics.Anomalies > 0 {
		s.logger.Warn("anomalies in rolling window",
			zap.Int("anomalies", metrics.Anomalies),
			zap.Int("records", metrics.Overall.Count),
		)
	}
	s.logger.Debug("rolling metrics recomputed",
		zap.Int("records", metrics.Overall.Count),
		zap.Float64("avg_quality", metrics.Overall.AvgQuality),
		zap.String("trend", string(metrics.Trend)),
	)

	if s.tuner != nil {
		s.tuner.Evaluate(metrics, records)
	}
}
