package budget

import "sync"

// Threshold clamp bounds. Nudges may never push the adaptive state past
// these, which prevents runaway drift from a bad feedback streak.
const (
	qualityFloor    = 0.50
	qualityCeiling  = 0.95
	efficiencyFloor = 0.30
	efficiencyCeil  = 0.95

	// DefaultQualityTarget and DefaultEfficiencyTarget are the
	// conservative process-start values.
	DefaultQualityTarget    = 0.70
	DefaultEfficiencyTarget = 0.70
)

// Thresholds holds the process-wide adaptive tuning state. All access goes
// through the narrow read/write API; the raw values are never shared.
type Thresholds struct {
	mu         sync.RWMutex
	quality    float64
	efficiency float64
}

// ThresholdSnapshot is an immutable copy of the adaptive state plus the
// targets derived from it.
type ThresholdSnapshot struct {
	Quality    float64 `json:"quality"`
	Efficiency float64 `json:"efficiency"`
	// CostTarget is the budget-utilization ceiling derived from efficiency.
	CostTarget float64 `json:"cost_target"`
	// SpeedTargetMs is the processing-time goal derived from efficiency.
	SpeedTargetMs float64 `json:"speed_target_ms"`
}

// NewThresholds returns adaptive state initialized with conservative
// defaults. The state lives for the process lifetime.
func NewThresholds() *Thresholds {
	return &Thresholds{
		quality:    DefaultQualityTarget,
		efficiency: DefaultEfficiencyTarget,
	}
}

// Snapshot returns a copy of the current state.
func (t *Thresholds) Snapshot() ThresholdSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return ThresholdSnapshot{
		Quality:       t.quality,
		Efficiency:    t.efficiency,
		CostTarget:    1.0 - t.efficiency*0.5,
		SpeedTargetMs: 200 + 600*(1.0-t.efficiency),
	}
}

// Nudge moves the thresholds a learning-rate-scaled step toward the given
// targets and clamps the result. rate is the fraction of the gap covered
// per call; values outside (0,1] are clipped.
func (t *Thresholds) Nudge(qualityTarget, efficiencyTarget, rate float64) {
	if rate <= 0 {
		return
	}
	if rate > 1 {
		rate = 1
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.quality = clamp(t.quality+(qualityTarget-t.quality)*rate, qualityFloor, qualityCeiling)
	t.efficiency = clamp(t.efficiency+(efficiencyTarget-t.efficiency)*rate, efficiencyFloor, efficiencyCeil)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
