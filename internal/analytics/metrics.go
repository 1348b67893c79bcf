package analytics

import (
	"time"

	"github.com/fyrsmithlabs/promptpress/internal/allocation"
)

// DefaultWindow is the rolling metrics window when none is configured.
const DefaultWindow = time.Hour

// Trend reports the two-half quality direction of a window.
type Trend string

const (
	TrendImproving    Trend = "improving"
	TrendDeclining    Trend = "declining"
	TrendStable       Trend = "stable"
	TrendInsufficient Trend = "insufficient_data"
)

// trendEpsilon is the minimum two-half quality delta treated as movement.
const trendEpsilon = 0.02

// Aggregate holds averaged metrics for one record group.
type Aggregate struct {
	Count               int     `json:"count"`
	AvgQuality          float64 `json:"avg_quality"`
	AvgEfficiency       float64 `json:"avg_efficiency"`
	AvgProcessingMs     float64 `json:"avg_processing_ms"`
	AvgCompressionRatio float64 `json:"avg_compression_ratio"`
}

// WindowMetrics is a rolling-window metrics snapshot.
type WindowMetrics struct {
	Window      time.Duration                      `json:"window"`
	Overall     Aggregate                          `json:"overall"`
	PerStrategy map[allocation.Strategy]Aggregate  `json:"per_strategy"`
	PerModel    map[string]Aggregate               `json:"per_model"`
	Anomalies   int                                `json:"anomalies"`
	Trend       Trend                              `json:"trend"`
}

// Compute derives rolling metrics from a chronological record snapshot.
// Pure function: the scheduler and inspection calls share it.
func Compute(records []Record, window time.Duration, now time.Time) WindowMetrics {
	if window <= 0 {
		window = DefaultWindow
	}
	cutoff := now.Add(-window)

	inWindow := make([]Record, 0, len(records))
	for _, rec := range records {
		if rec.Timestamp.After(cutoff) {
			inWindow = append(inWindow, rec)
		}
	}

	m := WindowMetrics{
		Window:      window,
		Overall:     aggregate(inWindow),
		PerStrategy: make(map[allocation.Strategy]Aggregate),
		PerModel:    make(map[string]Aggregate),
		Trend:       trend(inWindow),
	}

	byStrategy := make(map[allocation.Strategy][]Record)
	byModel := make(map[string][]Record)
	for _, rec := range inWindow {
		byStrategy[rec.Strategy] = append(byStrategy[rec.Strategy], rec)
		if rec.Model != "" {
			byModel[rec.Model] = append(byModel[rec.Model], rec)
		}
		if rec.Anomalous() {
			m.Anomalies++
		}
	}
	for strategy, recs := range byStrategy {
		m.PerStrategy[strategy] = aggregate(recs)
	}
	for model, recs := range byModel {
		m.PerModel[model] = aggregate(recs)
	}

	return m
}

func aggregate(records []Record) Aggregate {
	agg := Aggregate{Count: len(records)}
	if len(records) == 0 {
		return agg
	}
	for _, rec := range records {
		agg.AvgQuality += rec.QualityScore
		agg.AvgEfficiency += rec.Efficiency
		agg.AvgProcessingMs += rec.ProcessingTimeMs
		agg.AvgCompressionRatio += rec.CompressionRatio
	}
	n := float64(len(records))
	agg.AvgQuality /= n
	agg.AvgEfficiency /= n
	agg.AvgProcessingMs /= n
	agg.AvgCompressionRatio /= n
	return agg
}

// trend compares the older half of the window against the newer half.
func trend(records []Record) Trend {
	if len(records) < 4 {
		return TrendInsufficient
	}
	mid := len(records) / 2
	older := aggregate(records[:mid])
	newer := aggregate(records[mid:])

	delta := newer.AvgQuality - older.AvgQuality
	switch {
	case delta > trendEpsilon:
		return TrendImproving
	case delta < -trendEpsilon:
		return TrendDeclining
	default:
		return TrendStable
	}
}
