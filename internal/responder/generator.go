package responder

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/atlas-exports/exportpilot/internal/models"
	"github.com/atlas-exports/exportpilot/internal/nlu"
	"github.com/atlas-exports/exportpilot/internal/tradedata"
	"github.com/sirupsen/logrus"
)

const (
	maxQuickActions = 4
	maxFollowUps    = 3
	dataTimeout     = 3 * time.Second
)

// DataProvider supplies trade statistics for intents that expect a data
// visualization. A nil result means no data is available.
type DataProvider interface {
	GetTradeStatistics(ctx context.Context, countryCode string) (*tradedata.TradeStatistics, error)
}

// Generator maps a classified intent plus extracted entities to a reply.
// It never propagates a failure to its caller; anything unexpected becomes
// a generic technical-difficulty response.
type Generator struct {
	data   DataProvider
	logger *logrus.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator creates a response generator. seed fixes phrasing selection
// for reproducible output; pass 0 for time-based seeding.
func NewGenerator(data DataProvider, seed int64, logger *logrus.Logger) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{
		data:   data,
		logger: logger,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// Generate builds the assistant reply for one classified message.
func (g *Generator) Generate(ctx context.Context, intent models.Intent, uctx *models.UserContext, rawText string) (resp models.Response) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.WithField("panic", fmt.Sprintf("%v", r)).
				Error("Response generation failed, returning fallback")
			resp = technicalDifficultyResponse()
		}
	}()

	if intent.Name == models.IntentUnknown {
		return g.unknownResponse()
	}

	bundle, ok := intentTemplates[intent.Name]
	if !ok {
		return g.unknownResponse()
	}

	resp = models.Response{
		Text:              g.selectPhrasing(bundle, uctx),
		QuickActions:      appendEntityActions(bundle.quickActions, intent.Entities),
		Navigation:        buildNavigationHint(bundle.page, intent.Entities),
		FollowUpQuestions: buildFollowUps(bundle, intent.Entities),
	}

	if bundle.requiresData {
		resp.Visualization = g.fetchVisualization(ctx, intent.Entities)
	}

	return resp
}

func (g *Generator) unknownResponse() models.Response {
	return models.Response{
		Text:              unknownTemplates[g.pick(len(unknownTemplates))],
		QuickActions:      append([]models.QuickAction(nil), unknownQuickActions...),
		FollowUpQuestions: []string{"What would you like to do next?"},
	}
}

// selectPhrasing picks by experience tier: beginners get the most
// explanatory phrasing, advanced users the most direct, everyone else a
// seeded random pick.
func (g *Generator) selectPhrasing(bundle templateBundle, uctx *models.UserContext) string {
	tier := models.ExperienceTier("")
	if uctx != nil {
		tier = uctx.Business.Experience
	}
	switch tier {
	case models.TierBeginner:
		return bundle.phrasings[0]
	case models.TierAdvanced:
		return bundle.phrasings[2]
	default:
		return bundle.phrasings[g.pick(len(bundle.phrasings))]
	}
}

func (g *Generator) pick(n int) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.Intn(n)
}

// appendEntityActions adds one quick action per country/product entity,
// capped at four actions total.
func appendEntityActions(base []models.QuickAction, entities []models.Entity) []models.QuickAction {
	actions := append([]models.QuickAction(nil), base...)
	for _, e := range entities {
		if len(actions) >= maxQuickActions {
			break
		}
		switch e.Type {
		case models.EntityCountry:
			actions = append(actions, models.QuickAction{
				Label:  fmt.Sprintf("Explore %s Market", e.Value),
				Action: "analyze",
				Target: "markets",
			})
		case models.EntityProduct:
			actions = append(actions, models.QuickAction{
				Label:  fmt.Sprintf("Find %s Buyers", e.Value),
				Action: "search",
				Target: "buyers",
			})
		}
	}
	if len(actions) > maxQuickActions {
		actions = actions[:maxQuickActions]
	}
	return actions
}

// buildNavigationHint maps the intent to its page and forwards extracted
// country/product/industry values as query parameters.
func buildNavigationHint(page string, entities []models.Entity) *models.NavigationHint {
	if page == "" {
		return nil
	}
	hint := &models.NavigationHint{Page: page, Params: map[string]string{}}
	for _, e := range entities {
		switch e.Type {
		case models.EntityCountry:
			if _, ok := hint.Params["country"]; !ok {
				hint.Params["country"] = e.Value
			}
		case models.EntityProduct:
			if _, ok := hint.Params["product"]; !ok {
				hint.Params["product"] = e.Value
			}
		case models.EntityIndustry:
			if _, ok := hint.Params["industry"]; !ok {
				hint.Params["industry"] = e.Value
			}
		}
	}
	return hint
}

// buildFollowUps starts from the template questions and appends a
// clarifying question for each expected entity type that was not found,
// capped at three.
func buildFollowUps(bundle templateBundle, entities []models.Entity) []string {
	followUps := append([]string(nil), bundle.followUps...)

	hasCountry, hasProduct := false, false
	for _, e := range entities {
		switch e.Type {
		case models.EntityCountry:
			hasCountry = true
		case models.EntityProduct:
			hasProduct = true
		}
	}

	if bundle.wantsCountry && !hasCountry {
		followUps = append(followUps, "Which country are you interested in?")
	}
	if bundle.wantsProduct && !hasProduct {
		followUps = append(followUps, "What product will you be exporting?")
	}

	if len(followUps) > maxFollowUps {
		followUps = followUps[:maxFollowUps]
	}
	return followUps
}

// fetchVisualization asks the trade data provider for statistics behind the
// reply. Failures are swallowed; the response simply omits the chart.
func (g *Generator) fetchVisualization(ctx context.Context, entities []models.Entity) *models.Visualization {
	if g.data == nil {
		return nil
	}

	countryCode := ""
	countryName := ""
	for _, e := range entities {
		if e.Type == models.EntityCountry {
			countryName = e.Value
			countryCode = nlu.CountryCodes[e.Value]
			break
		}
	}
	if countryCode == "" {
		return nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, dataTimeout)
	defer cancel()

	stats, err := g.data.GetTradeStatistics(fetchCtx, countryCode)
	if err != nil || stats == nil {
		if err != nil {
			g.logger.WithError(err).WithField("country", countryCode).
				Warn("Trade statistics lookup failed, omitting visualization")
		}
		return nil
	}

	return &models.Visualization{
		Kind:  "chart",
		Title: fmt.Sprintf("%s Import Overview", countryName),
		Data: map[string]interface{}{
			"country_code":      stats.CountryCode,
			"total_imports_usd": stats.TotalImportsUSD,
			"total_exports_usd": stats.TotalExportsUSD,
			"year":              stats.Year,
			"fallback":          stats.Fallback,
		},
	}
}
