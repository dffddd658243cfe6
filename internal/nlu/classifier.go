package nlu

import (
	"sort"
	"strings"

	"github.com/atlas-exports/exportpilot/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	keywordScore        = 0.3
	phraseScore         = 0.6
	contextBoostScore   = 0.2
	continuityBonus     = 0.1
	profileBonus        = 0.15
	clearWinnerGap      = 0.3
	clearWinnerBonus    = 0.1
	entityBonusCap      = 0.1
	shortMessagePenalty = 0.8
)

// Classifier scores the fixed intent catalog against a message, the
// conversation history and the user profile. It never fails; input that
// matches nothing degrades to UNKNOWN.
type Classifier struct {
	catalog         []intentProfile
	extractor       *Extractor
	confidenceFloor float64
	logger          *logrus.Logger
}

type candidate struct {
	name     models.IntentName
	score    float64
	matched  []string
	patterns int
}

func NewClassifier(extractor *Extractor, confidenceFloor float64, logger *logrus.Logger) *Classifier {
	return &Classifier{
		catalog:         intentCatalog,
		extractor:       extractor,
		confidenceFloor: confidenceFloor,
		logger:          logger,
	}
}

// Classify returns the winning intent with a calibrated confidence in [0,1].
func (c *Classifier) Classify(text string, ctx *models.UserContext) models.Intent {
	entities := c.extractor.Extract(text)
	candidates := c.score(text, ctx)

	if len(candidates) == 0 || candidates[0].score < c.confidenceFloor {
		return models.Intent{
			Name:        models.IntentUnknown,
			Confidence:  0,
			Entities:    entities,
			EntityCount: len(entities),
		}
	}

	winner := candidates[0]
	confidence := clamp01(winner.score)

	// Up to +0.1 proportional to mean entity confidence
	if len(entities) > 0 {
		var sum float64
		for _, e := range entities {
			sum += e.Confidence
		}
		confidence += entityBonusCap * (sum / float64(len(entities)))
	}

	// Clear winner bonus when the runner-up is far behind
	if len(candidates) == 1 || winner.score-candidates[1].score > clearWinnerGap {
		confidence += clearWinnerBonus
	}

	// Penalize under-evidenced first messages
	if isFirstMessage(ctx) && winner.patterns < 2 {
		confidence *= shortMessagePenalty
	}

	confidence = clamp01(confidence)

	c.logger.WithFields(logrus.Fields{
		"intent":     winner.name,
		"score":      winner.score,
		"confidence": confidence,
		"entities":   len(entities),
	}).Debug("Message classified")

	return models.Intent{
		Name:            winner.name,
		Confidence:      confidence,
		Entities:        entities,
		MatchedKeywords: winner.matched,
		EntityCount:     len(entities),
	}
}

// SuggestAlternatives returns up to three intents above the confidence floor
// for ambiguity handling in the UI layer.
func (c *Classifier) SuggestAlternatives(text string, ctx *models.UserContext) []models.Intent {
	candidates := c.score(text, ctx)

	alternatives := make([]models.Intent, 0, 3)
	for _, cand := range candidates {
		if cand.score < c.confidenceFloor {
			break
		}
		alternatives = append(alternatives, models.Intent{
			Name:            cand.name,
			Confidence:      clamp01(cand.score),
			MatchedKeywords: cand.matched,
		})
		if len(alternatives) == 3 {
			break
		}
	}
	return alternatives
}

// score accumulates raw scores for every catalog intent and returns them
// sorted descending. Sorting is stable, so ties resolve in catalog order.
func (c *Classifier) score(text string, ctx *models.UserContext) []candidate {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return nil
	}
	tokens := tokenSet(normalized)

	candidates := make([]candidate, 0, len(c.catalog))
	for _, profile := range c.catalog {
		cand := candidate{name: profile.name}

		for _, kw := range profile.keywords {
			if matchesKeyword(normalized, tokens, kw) {
				cand.score += profile.weight * keywordScore
				cand.matched = append(cand.matched, kw)
				cand.patterns++
			}
		}
		for _, phrase := range profile.phrases {
			if strings.Contains(normalized, phrase) {
				cand.score += profile.weight * phraseScore
				cand.matched = append(cand.matched, phrase)
				cand.patterns++
			}
		}
		for _, boost := range profile.contextBoost {
			if matchesKeyword(normalized, tokens, boost) {
				cand.score += profile.weight * contextBoostScore
			}
		}

		// Continuity and profile fit reinforce text evidence only; a
		// candidate with no keyword or phrase hit stays below the floor.
		if cand.patterns > 0 {
			if hasRecentIntent(ctx, profile.name) {
				cand.score += continuityBonus
			}
			if profileFitBonus(profile.name, ctx) {
				cand.score += profileBonus
			}
		}

		candidates = append(candidates, cand)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	return candidates
}

func matchesKeyword(normalized string, tokens map[string]bool, keyword string) bool {
	if strings.Contains(keyword, " ") {
		return strings.Contains(normalized, keyword)
	}
	return tokens[keyword]
}

func tokenSet(normalized string) map[string]bool {
	tokens := make(map[string]bool)
	for _, tok := range strings.FieldsFunc(normalized, func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	}) {
		tokens[tok] = true
	}
	return tokens
}

// hasRecentIntent reports whether any of the last 3 messages in the
// conversation carried the same intent.
func hasRecentIntent(ctx *models.UserContext, name models.IntentName) bool {
	if ctx == nil || len(ctx.History) == 0 {
		return false
	}
	start := len(ctx.History) - 3
	if start < 0 {
		start = 0
	}
	for _, msg := range ctx.History[start:] {
		if msg.Intent != nil && msg.Intent.Name == name {
			return true
		}
	}
	return false
}

func isFirstMessage(ctx *models.UserContext) bool {
	return ctx == nil || len(ctx.History) == 0
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
