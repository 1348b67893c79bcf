// Package compression reduces a cluster's content to fit its token
// allocation. The contract is "best attributes within budget", not complete
// information: tiers are lossy by design.
package compression

import (
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/promptpress/internal/clustering"
)

// Tier names a compression aggressiveness level.
type Tier string

const (
	// TierUltra keeps only the single highest-priority attribute, unlabeled.
	TierUltra Tier = "ultra"
	// TierStandard keeps roughly half the attributes as key:value pairs.
	TierStandard Tier = "standard"
	// TierDetailed keeps nearly all attributes in verbose form.
	TierDetailed Tier = "detailed"
)

// Boundaries sets the allocation sizes at which tiers switch. The quality
// optimizer shifts these downward when it needs richer output from the
// same allocations.
type Boundaries struct {
	// UltraMax is the exclusive upper bound for the ultra tier.
	UltraMax int
	// StandardMax is the exclusive upper bound for the standard tier.
	StandardMax int
}

// DefaultBoundaries is the tiering policy from the pipeline contract:
// ultra below 20 tokens, standard between 20 and 50, detailed from 50 up.
var DefaultBoundaries = Boundaries{UltraMax: 20, StandardMax: 50}

// TierFor picks the tier for a token allocation.
func (b Boundaries) TierFor(tokens int) Tier {
	switch {
	case tokens < b.UltraMax:
		return TierUltra
	case tokens < b.StandardMax:
		return TierStandard
	default:
		return TierDetailed
	}
}

// Compressed is one cluster reduced to fit its allocation.
type Compressed struct {
	Cluster clustering.Category
	Tier    Tier
	Text    string
	Tokens  int
}

// Compressor renders clusters into their allocated token budgets.
type Compressor struct {
	logger *zap.Logger
}

// NewCompressor creates a compressor. A nil logger is replaced with a nop.
func NewCompressor(logger *zap.Logger) *Compressor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Compressor{logger: logger.Named("compression")}
}

// Compress reduces one cluster to its token allocation under the given
// tier boundaries. A zero allocation or empty cluster yields no output.
func (c *Compressor) Compress(cluster clustering.Cluster, tokens int, boundaries Boundaries) Compressed {
	out := Compressed{Cluster: cluster.Name}
	if tokens <= 0 || cluster.Empty() {
		return out
	}

	order := cluster.AttributeOrder()
	tier := boundaries.TierFor(tokens)

	var text string
	switch tier {
	case TierUltra:
		// Single best attribute, value only.
		text = cluster.Content[order[0]]
	case TierStandard:
		keep := (len(order) + 1) / 2
		text = renderPairs(cluster.Content, order[:keep], ", ")
	default:
		text = renderPairs(cluster.Content, order, "; ")
	}

	text = TrimToTokens(text, tokens)
	out.Tier = tier
	out.Text = text
	out.Tokens = EstimateTokens(text)
	return out
}

func renderPairs(content map[string]string, keys []string, sep string) string {
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		if v := content[key]; v != "" {
			parts = append(parts, key+": "+v)
		}
	}
	return strings.Join(parts, sep)
}
