package nlu

import (
	"sort"

	"github.com/atlas-exports/exportpilot/internal/models"
	"github.com/sirupsen/logrus"
)

// Extractor scans raw text for typed entity spans using the declarative
// pattern catalog. It has no side effects and no failure mode; text with no
// matches yields an empty list.
type Extractor struct {
	patterns []entityPatterns
	logger   *logrus.Logger
}

func NewExtractor(logger *logrus.Logger) *Extractor {
	return &Extractor{
		patterns: defaultPatterns(),
		logger:   logger,
	}
}

// Extract returns the deduplicated entities found in text, sorted by start
// index with non-overlapping spans.
func (e *Extractor) Extract(text string) []models.Entity {
	if text == "" {
		return []models.Entity{}
	}

	var candidates []models.Entity
	for _, ep := range e.patterns {
		for _, rule := range ep.rules {
			for _, span := range rule.re.FindAllStringIndex(text, -1) {
				matched := text[span[0]:span[1]]
				value := matched
				if rule.normalize != nil {
					value = rule.normalize(matched)
				}
				candidates = append(candidates, models.Entity{
					Type:       ep.entityType,
					Value:      value,
					Confidence: rule.confidence,
					Start:      span[0],
					End:        span[1],
				})
			}
		}
	}

	deduped := dedupeBySpan(candidates)

	e.logger.WithFields(logrus.Fields{
		"candidates": len(candidates),
		"entities":   len(deduped),
	}).Debug("Entity extraction completed")

	return deduped
}

// dedupeBySpan sorts candidates by start index and greedily keeps a
// candidate only when its span does not overlap an already-kept span.
// First-come-first-served by text order, not by confidence.
func dedupeBySpan(candidates []models.Entity) []models.Entity {
	if len(candidates) == 0 {
		return []models.Entity{}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Start < candidates[j].Start
	})

	kept := make([]models.Entity, 0, len(candidates))
	lastEnd := -1
	for _, c := range candidates {
		if c.Start >= lastEnd {
			kept = append(kept, c)
			lastEnd = c.End
		}
	}
	return kept
}
