package nlu

import (
	"testing"

	"github.com/atlas-exports/exportpilot/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClassifier() *Classifier {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return NewClassifier(NewExtractor(logger), 0.1, logger)
}

func TestClassify_FindBuyers(t *testing.T) {
	classifier := newTestClassifier()

	intent := classifier.Classify("find buyers", &models.UserContext{UserID: "u1"})

	assert.Equal(t, models.IntentFindBuyers, intent.Name)
	assert.Greater(t, intent.Confidence, 0.5)
	assert.Contains(t, intent.MatchedKeywords, "find buyers")
}

func TestClassify_GibberishIsUnknown(t *testing.T) {
	classifier := newTestClassifier()

	intent := classifier.Classify("qwerty asdfgh", &models.UserContext{UserID: "u1"})

	assert.Equal(t, models.IntentUnknown, intent.Name)
	assert.Less(t, intent.Confidence, 0.3)
}

func TestClassify_GibberishIsUnknownDespiteProfileFit(t *testing.T) {
	classifier := newTestClassifier()

	// A beginner profile fits ONBOARDING_HELP and recent history fits
	// MARKET_RESEARCH, but neither bonus may rescue a message with zero
	// keyword or phrase evidence.
	prior := models.Intent{Name: models.IntentMarketResearch, Confidence: 0.8}
	ctx := &models.UserContext{
		UserID:   "u1",
		Business: models.BusinessProfile{Experience: models.TierBeginner},
		History: []models.Message{
			{Author: models.AuthorUser, Text: "market research for Japan", Intent: &prior},
		},
	}

	intent := classifier.Classify("qwerty asdfgh", ctx)

	assert.Equal(t, models.IntentUnknown, intent.Name)
	assert.Less(t, intent.Confidence, 0.3)
}

func TestClassify_ConfidenceAlwaysInRange(t *testing.T) {
	classifier := newTestClassifier()

	inputs := []string{
		"",
		"find buyers for my textiles in Germany",
		"export compliance customs tariff duty certificate documentation",
		"how do i get to the dashboard",
		"x",
		"market research market size market trends statistics demand",
	}

	catalog := map[models.IntentName]bool{
		models.IntentFindBuyers:          true,
		models.IntentMarketResearch:      true,
		models.IntentComplianceHelp:      true,
		models.IntentQuotationHelp:       true,
		models.IntentPlatformNavigation:  true,
		models.IntentOnboardingHelp:      true,
		models.IntentGeneralExportAdvice: true,
		models.IntentUnknown:             true,
	}

	for _, input := range inputs {
		intent := classifier.Classify(input, nil)
		assert.True(t, catalog[intent.Name], "intent %s not in catalog", intent.Name)
		assert.GreaterOrEqual(t, intent.Confidence, 0.0)
		assert.LessOrEqual(t, intent.Confidence, 1.0)
	}
}

func TestClassify_ComplianceWeighting(t *testing.T) {
	classifier := newTestClassifier()

	intent := classifier.Classify("what customs documentation do I need", nil)
	assert.Equal(t, models.IntentComplianceHelp, intent.Name)
}

func TestClassify_ContinuityBonus(t *testing.T) {
	classifier := newTestClassifier()

	text := "what about the market there"

	plain := classifier.Classify(text, &models.UserContext{UserID: "u1"})

	prior := models.Intent{Name: models.IntentMarketResearch, Confidence: 0.8}
	ctx := &models.UserContext{
		UserID: "u1",
		History: []models.Message{
			{Author: models.AuthorUser, Text: "market research for Japan", Intent: &prior},
		},
	}
	continued := classifier.Classify(text, ctx)

	assert.Equal(t, models.IntentMarketResearch, continued.Name)
	assert.GreaterOrEqual(t, continued.Confidence, plain.Confidence)
}

func TestClassify_ProfileFitBonus(t *testing.T) {
	classifier := newTestClassifier()

	text := "where do i start"

	beginner := &models.UserContext{
		UserID:   "u1",
		Business: models.BusinessProfile{Experience: models.TierBeginner},
		History:  []models.Message{{Author: models.AuthorUser, Text: "hi"}},
	}
	advanced := &models.UserContext{
		UserID:   "u2",
		Business: models.BusinessProfile{Experience: models.TierAdvanced},
		History:  []models.Message{{Author: models.AuthorUser, Text: "hi"}},
	}

	beginnerIntent := classifier.Classify(text, beginner)
	advancedIntent := classifier.Classify(text, advanced)

	assert.Equal(t, models.IntentOnboardingHelp, beginnerIntent.Name)
	assert.GreaterOrEqual(t, beginnerIntent.Confidence, advancedIntent.Confidence)
}

func TestClassify_FirstMessagePenalty(t *testing.T) {
	classifier := newTestClassifier()

	// Single keyword hit: one pattern matched, first message in the
	// conversation, so the 0.8 penalty applies.
	first := classifier.Classify("buyers", &models.UserContext{UserID: "u1"})

	ctx := &models.UserContext{
		UserID:  "u1",
		History: []models.Message{{Author: models.AuthorUser, Text: "hello"}},
	}
	later := classifier.Classify("buyers", ctx)

	assert.Equal(t, models.IntentFindBuyers, first.Name)
	assert.Less(t, first.Confidence, later.Confidence)
}

func TestClassify_EntitiesAttached(t *testing.T) {
	classifier := newTestClassifier()

	intent := classifier.Classify("find buyers for textiles in Germany", nil)

	assert.Equal(t, models.IntentFindBuyers, intent.Name)
	require.NotEmpty(t, intent.Entities)
	assert.Equal(t, len(intent.Entities), intent.EntityCount)
}

func TestSuggestAlternatives(t *testing.T) {
	classifier := newTestClassifier()

	alternatives := classifier.SuggestAlternatives(
		"export market buyers compliance quote", nil)

	require.NotEmpty(t, alternatives)
	assert.LessOrEqual(t, len(alternatives), 3)
	for i := 1; i < len(alternatives); i++ {
		assert.GreaterOrEqual(t, alternatives[i-1].Confidence, alternatives[i].Confidence)
	}

	none := classifier.SuggestAlternatives("qwerty asdfgh", nil)
	assert.Empty(t, none)
}
