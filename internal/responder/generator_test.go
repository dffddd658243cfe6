package responder

import (
	"context"
	"errors"
	"testing"

	"github.com/atlas-exports/exportpilot/internal/models"
	"github.com/atlas-exports/exportpilot/internal/tradedata"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDataProvider struct {
	stats *tradedata.TradeStatistics
	err   error
	calls int
}

func (s *stubDataProvider) GetTradeStatistics(ctx context.Context, countryCode string) (*tradedata.TradeStatistics, error) {
	s.calls++
	return s.stats, s.err
}

func newTestGenerator(data DataProvider) *Generator {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return NewGenerator(data, 42, logger)
}

func findBuyersIntent(entities ...models.Entity) models.Intent {
	return models.Intent{
		Name:       models.IntentFindBuyers,
		Confidence: 0.9,
		Entities:   entities,
	}
}

func TestGenerate_BeginnerGetsExplanatoryPhrasing(t *testing.T) {
	generator := newTestGenerator(nil)

	uctx := &models.UserContext{
		UserID:   "u1",
		Business: models.BusinessProfile{Experience: models.TierBeginner},
	}
	resp := generator.Generate(context.Background(), findBuyersIntent(), uctx, "find buyers")

	assert.Equal(t, intentTemplates[models.IntentFindBuyers].phrasings[0], resp.Text)
}

func TestGenerate_AdvancedGetsDirectPhrasing(t *testing.T) {
	generator := newTestGenerator(nil)

	uctx := &models.UserContext{
		UserID:   "u1",
		Business: models.BusinessProfile{Experience: models.TierAdvanced},
	}
	resp := generator.Generate(context.Background(), findBuyersIntent(), uctx, "find buyers")

	assert.Equal(t, intentTemplates[models.IntentFindBuyers].phrasings[2], resp.Text)
}

func TestGenerate_SeededPhrasingIsDeterministic(t *testing.T) {
	uctx := &models.UserContext{
		UserID:   "u1",
		Business: models.BusinessProfile{Experience: models.TierIntermediate},
	}

	first := newTestGenerator(nil)
	second := newTestGenerator(nil)

	for i := 0; i < 5; i++ {
		a := first.Generate(context.Background(), findBuyersIntent(), uctx, "find buyers")
		b := second.Generate(context.Background(), findBuyersIntent(), uctx, "find buyers")
		assert.Equal(t, a.Text, b.Text, "same seed must select the same phrasing")
	}
}

func TestGenerate_EntityQuickActionsCapped(t *testing.T) {
	generator := newTestGenerator(nil)

	intent := findBuyersIntent(
		models.Entity{Type: models.EntityCountry, Value: "Germany", Confidence: 0.95},
		models.Entity{Type: models.EntityCountry, Value: "Japan", Confidence: 0.95},
		models.Entity{Type: models.EntityProduct, Value: "textiles", Confidence: 0.75},
		models.Entity{Type: models.EntityProduct, Value: "coffee", Confidence: 0.75},
	)
	resp := generator.Generate(context.Background(), intent, nil, "")

	assert.LessOrEqual(t, len(resp.QuickActions), 4)

	labels := make([]string, 0, len(resp.QuickActions))
	for _, a := range resp.QuickActions {
		labels = append(labels, a.Label)
	}
	assert.Contains(t, labels, "Explore Germany Market")
}

func TestGenerate_NavigationHintForwardsEntities(t *testing.T) {
	generator := newTestGenerator(nil)

	intent := findBuyersIntent(
		models.Entity{Type: models.EntityCountry, Value: "Germany", Confidence: 0.95},
		models.Entity{Type: models.EntityProduct, Value: "textiles", Confidence: 0.75},
	)
	resp := generator.Generate(context.Background(), intent, nil, "")

	require.NotNil(t, resp.Navigation)
	assert.Equal(t, "buyers", resp.Navigation.Page)
	assert.Equal(t, "Germany", resp.Navigation.Params["country"])
	assert.Equal(t, "textiles", resp.Navigation.Params["product"])
}

func TestGenerate_FollowUpsAskForMissingEntities(t *testing.T) {
	generator := newTestGenerator(nil)

	resp := generator.Generate(context.Background(), findBuyersIntent(), nil, "find buyers")

	assert.LessOrEqual(t, len(resp.FollowUpQuestions), 3)
	assert.Contains(t, resp.FollowUpQuestions, "Which country are you interested in?")
	assert.Contains(t, resp.FollowUpQuestions, "What product will you be exporting?")

	withCountry := generator.Generate(context.Background(), findBuyersIntent(
		models.Entity{Type: models.EntityCountry, Value: "Germany", Confidence: 0.95},
	), nil, "find buyers in Germany")
	assert.NotContains(t, withCountry.FollowUpQuestions, "Which country are you interested in?")
}

func TestGenerate_VisualizationFromDataProvider(t *testing.T) {
	provider := &stubDataProvider{stats: &tradedata.TradeStatistics{
		CountryCode:     "DE",
		TotalImportsUSD: 1000,
		Year:            2025,
	}}
	generator := newTestGenerator(provider)

	intent := models.Intent{
		Name:       models.IntentMarketResearch,
		Confidence: 0.8,
		Entities: []models.Entity{
			{Type: models.EntityCountry, Value: "Germany", Confidence: 0.95},
		},
	}
	resp := generator.Generate(context.Background(), intent, nil, "german market")

	require.NotNil(t, resp.Visualization)
	assert.Equal(t, "chart", resp.Visualization.Kind)
	assert.Equal(t, 1, provider.calls)
}

func TestGenerate_VisualizationOmittedOnProviderFailure(t *testing.T) {
	provider := &stubDataProvider{err: errors.New("provider down")}
	generator := newTestGenerator(provider)

	intent := models.Intent{
		Name:       models.IntentMarketResearch,
		Confidence: 0.8,
		Entities: []models.Entity{
			{Type: models.EntityCountry, Value: "Germany", Confidence: 0.95},
		},
	}
	resp := generator.Generate(context.Background(), intent, nil, "german market")

	assert.Nil(t, resp.Visualization)
	assert.NotEmpty(t, resp.Text, "provider failure must not fail the response")
}

func TestGenerate_UnknownIntentFallback(t *testing.T) {
	generator := newTestGenerator(nil)

	resp := generator.Generate(context.Background(), models.Intent{
		Name:       models.IntentUnknown,
		Confidence: 0,
	}, nil, "qwerty")

	assert.NotEmpty(t, resp.Text)
	assert.Len(t, resp.QuickActions, 2)
	assert.Contains(t, unknownTemplates[:], resp.Text)
}

func TestGenerate_NeverPanics(t *testing.T) {
	generator := newTestGenerator(nil)

	assert.NotPanics(t, func() {
		resp := generator.Generate(context.Background(), models.Intent{Name: "BOGUS_INTENT"}, nil, "")
		assert.NotEmpty(t, resp.Text)
	})
}
