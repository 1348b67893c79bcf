// Package assembly renders compressed clusters into the final prompt
// fragment. Formatting only: a fixed section order keeps prompts
// structurally stable across calls, which matters for downstream prompt
// caching and reproducibility.
package assembly

import (
	"strings"

	"github.com/fyrsmithlabs/promptpress/internal/clustering"
	"github.com/fyrsmithlabs/promptpress/internal/compression"
)

// section groups cluster categories under one labeled prompt section.
type section struct {
	label      string
	categories []clustering.Category
}

// sectionOrder is fixed. Changing it changes every emitted prompt.
var sectionOrder = []section{
	{"Profile", []clustering.Category{
		clustering.CategoryCorePersonality,
		clustering.CategoryEmotionalProfile,
	}},
	{"Current state", []clustering.Category{
		clustering.CategoryCurrentState,
	}},
	{"Context", []clustering.Category{
		clustering.CategoryMessageContext,
	}},
	{"Behavior", []clustering.Category{
		clustering.CategoryBehavioralPatterns,
		clustering.CategoryCognitiveStyle,
	}},
	{"Guidance", []clustering.Category{
		clustering.CategoryPredictive,
	}},
}

// Assemble concatenates non-empty compressed clusters into labeled
// sections. Clusters with no output are skipped entirely, never emitted as
// empty sections.
func Assemble(compressed []compression.Compressed) string {
	byCategory := make(map[clustering.Category]string, len(compressed))
	for _, c := range compressed {
		if c.Text != "" {
			byCategory[c.Cluster] = c.Text
		}
	}

	var b strings.Builder
	for _, sec := range sectionOrder {
		parts := make([]string, 0, len(sec.categories))
		for _, cat := range sec.categories {
			if text, ok := byCategory[cat]; ok {
				parts = append(parts, text)
			}
		}
		if len(parts) == 0 {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(sec.label)
		b.WriteString(": ")
		b.WriteString(strings.Join(parts, " | "))
	}
	return b.String()
}
