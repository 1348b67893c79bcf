package pipeline

import (
	"github.com/fyrsmithlabs/promptpress/internal/allocation"
	"github.com/fyrsmithlabs/promptpress/internal/clustering"
)

// Options tune a single compression call.
type Options struct {
	// Model selects the target model profile; unknown names use the default.
	Model string
	// TokenBudgetOverride skips budget estimation when positive.
	TokenBudgetOverride int
	// QualityTarget overrides the adaptive quality threshold when positive.
	QualityTarget float64
	// ConversationHistoryLength counts prior turns.
	ConversationHistoryLength int
	// ForceStrategy pins the compression strategy when set.
	ForceStrategy allocation.Strategy
	// Experiment and ParticipantID route this call through an active A/B
	// test; the assigned strategy applies unless ForceStrategy is set.
	Experiment    string
	ParticipantID string
}

// Metadata describes how a prompt fragment was produced. Two calls with
// identical inputs and unchanged adaptive thresholds produce identical
// Metadata except for ProcessingTimeMs.
type Metadata struct {
	Strategy         allocation.Strategy `json:"strategy"`
	TokenBudget      int                 `json:"token_budget"`
	ActualTokens     int                 `json:"actual_tokens"`
	CompressionRatio float64             `json:"compression_ratio"`
	QualityScore     float64             `json:"quality_score"`
	ProcessingTimeMs float64             `json:"processing_time_ms"`
	ClustersUsed     []string            `json:"clusters_used"`
	Error            bool                `json:"error"`
}

// Result is the output of one compression call. RecordID references the
// compression record for later outcome reporting.
type Result struct {
	PromptText string   `json:"prompt_text"`
	RecordID   string   `json:"record_id"`
	Metadata   Metadata `json:"metadata"`
}

// InteractionType re-exports the clustering type for callers of the
// public pipeline API.
type InteractionType = clustering.InteractionType
