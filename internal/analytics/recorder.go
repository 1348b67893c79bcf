package analytics

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultRecorderCapacity bounds the in-memory compression log.
const DefaultRecorderCapacity = 4096

// Recorder is a size-bounded, append-only ring buffer of compression
// records. The oldest entry is evicted first. A single mutex coordinates
// writers; readers get snapshot copies so the hot path never blocks on
// analytics bookkeeping.
type Recorder struct {
	mu       sync.RWMutex
	records  []Record
	capacity int
	logger   *zap.Logger
	prom     *PromMetrics
}

// NewRecorder creates a recorder with the given capacity. Non-positive
// capacities fall back to the default.
func NewRecorder(capacity int, logger *zap.Logger) *Recorder {
	if capacity <= 0 {
		capacity = DefaultRecorderCapacity
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		records:  make([]Record, 0, capacity),
		capacity: capacity,
		logger:   logger.Named("analytics"),
		prom:     NewPromMetrics(),
	}
}

// Append adds a record to the log, evicting the oldest when full.
func (r *Recorder) Append(rec Record) {
	r.mu.Lock()
	if len(r.records) >= r.capacity {
		// Shift-eviction keeps records in chronological order; capacity is
		// bounded so the copy cost is too.
		copy(r.records, r.records[1:])
		r.records[len(r.records)-1] = rec
	} else {
		r.records = append(r.records, rec)
	}
	r.mu.Unlock()

	r.prom.RecordsTotal.WithLabelValues(string(rec.Strategy)).Inc()
	if rec.Anomalous() {
		r.prom.AnomaliesTotal.Inc()
		r.logger.Warn("anomalous compression record",
			zap.String("record_id", rec.ID),
			zap.Float64("quality", rec.QualityScore),
			zap.Float64("processing_ms", rec.ProcessingTimeMs),
			zap.Float64("efficiency", rec.Efficiency),
		)
	}
}

// RecordOutcome attaches later-observed feedback to an existing record.
// Both fields are write-once; attaching twice fails with ErrOutcomeSet.
func (r *Recorder) RecordOutcome(recordID string, userFeedback, responseQuality *float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Recent records are the likeliest targets; scan backwards.
	for i := len(r.records) - 1; i >= 0; i-- {
		if r.records[i].ID != recordID {
			continue
		}
		if r.records[i].UserFeedback != nil || r.records[i].ResponseQuality != nil {
			return ErrOutcomeSet
		}
		r.records[i].UserFeedback = userFeedback
		r.records[i].ResponseQuality = responseQuality
		return nil
	}
	return ErrRecordNotFound
}

// Snapshot returns a chronological copy of the log.
func (r *Recorder) Snapshot() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

// Len returns the current number of records.
func (r *Recorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// Metrics computes rolling metrics over the given window ending now.
func (r *Recorder) Metrics(window time.Duration) WindowMetrics {
	return Compute(r.Snapshot(), window, time.Now())
}
