// Package analytics records every compression event, computes rolling
// metrics, detects anomalies, runs controlled experiments between
// strategies, and nudges the adaptive thresholds that feed back into budget
// estimation. Everything here is observational: a broken analytics cycle
// must never affect compression correctness.
package analytics

import (
	"time"

	"github.com/fyrsmithlabs/promptpress/internal/allocation"
)

// Anomaly thresholds. Records crossing any of these are counted and logged
// but never block the pipeline.
const (
	anomalyQualityFloor    = 0.5
	anomalyProcessingMsCap = 500
	anomalyEfficiencyFloor = 0.3
)

// Record is one append-only compression log entry. Immutable once written,
// except for the two optional outcome fields which are set write-once by
// RecordOutcome.
type Record struct {
	ID               string
	Timestamp        time.Time
	Strategy         allocation.Strategy
	Model            string
	TokenBudget      int
	ActualTokens     int
	CompressionRatio float64
	QualityScore     float64
	// Efficiency normalizes the compression ratio: a 4x reduction scores 1.0.
	Efficiency       float64
	ProcessingTimeMs float64
	ClustersUsed     []string
	Error            bool

	// Optional later-observed outcome signals, nil until reported.
	UserFeedback    *float64
	ResponseQuality *float64
}

// Anomalous reports whether the record crosses any anomaly threshold.
func (r Record) Anomalous() bool {
	return r.QualityScore < anomalyQualityFloor ||
		r.ProcessingTimeMs > anomalyProcessingMsCap ||
		r.Efficiency < anomalyEfficiencyFloor
}

// EfficiencyOf normalizes a compression ratio into [0,1].
func EfficiencyOf(compressionRatio float64) float64 {
	e := compressionRatio / 4.0
	if e > 1 {
		return 1
	}
	if e < 0 {
		return 0
	}
	return e
}
