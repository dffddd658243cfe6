package personalization

import (
	"fmt"
	"sort"

	"github.com/atlas-exports/exportpilot/internal/models"
)

const (
	highSuccessThreshold = 0.7
	growthIntentCount    = 5
)

// featureCatalog maps each platform feature to the intent that implies the
// user already knows about it.
var featureCatalog = []struct {
	feature string
	intent  models.IntentName
	title   string
}{
	{"buyer-directory", models.IntentFindBuyers, "Try the Buyer Directory"},
	{"market-insights", models.IntentMarketResearch, "Explore Market Insights"},
	{"compliance-center", models.IntentComplianceHelp, "Check the Compliance Center"},
	{"quotation-builder", models.IntentQuotationHelp, "Build Quotations Faster"},
}

// contentTitles names the follow-on content suggested for intents the user
// succeeds with.
var contentTitles = map[models.IntentName]string{
	models.IntentFindBuyers:          "More Buyer Outreach Resources",
	models.IntentMarketResearch:      "More Market Research Resources",
	models.IntentComplianceHelp:      "More Export Compliance Resources",
	models.IntentQuotationHelp:       "More Quotation and Pricing Resources",
	models.IntentGeneralExportAdvice: "More Export Strategy Resources",
}

var industrySuggestions = map[string][]models.Recommendation{
	"technology": {
		{Title: "Software Export Licensing Guide", Description: "Licensing and encryption rules for technology exports.", Kind: "industry", Priority: models.PriorityLow, Confidence: 0.4},
	},
	"textiles": {
		{Title: "Textile Labeling Requirements", Description: "Labeling and fiber-content rules by destination market.", Kind: "industry", Priority: models.PriorityLow, Confidence: 0.4},
	},
	"food processing": {
		{Title: "Food Safety Certification Checklist", Description: "Certifications most destination markets require for food exports.", Kind: "industry", Priority: models.PriorityLow, Confidence: 0.4},
	},
	"pharmaceutical": {
		{Title: "Pharmaceutical Export Regulations", Description: "Registration and GMP requirements for pharmaceutical exports.", Kind: "industry", Priority: models.PriorityLow, Confidence: 0.4},
	},
	"agriculture": {
		{Title: "Phytosanitary Certificate Guide", Description: "Plant-health paperwork for agricultural shipments.", Kind: "industry", Priority: models.PriorityLow, Confidence: 0.4},
	},
}

// Recommend merges underused-feature, high-success-content, skill-growth
// and industry suggestions, sorted by priority tier then confidence, and
// truncated to limit.
func (e *Engine) Recommend(userID string, uctx *models.UserContext, limit int) []models.Recommendation {
	if limit <= 0 {
		return []models.Recommendation{}
	}

	pattern := e.GetPattern(userID)

	var out []models.Recommendation
	out = append(out, underusedFeatures(pattern)...)
	out = append(out, highSuccessContent(pattern)...)
	out = append(out, growthSuggestions(pattern, uctx)...)
	if uctx != nil {
		out = append(out, industrySuggestions[uctx.Business.Industry]...)
	}

	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := priorityRank(out[i].Priority), priorityRank(out[j].Priority)
		if pi != pj {
			return pi < pj
		}
		return out[i].Confidence > out[j].Confidence
	})

	if len(out) > limit {
		out = out[:limit]
	}
	if out == nil {
		out = []models.Recommendation{}
	}
	return out
}

func underusedFeatures(pattern *models.BehaviorPattern) []models.Recommendation {
	used := map[models.IntentName]bool{}
	if pattern != nil {
		for _, stat := range pattern.TopIntents {
			used[stat.Intent] = true
		}
	}

	var out []models.Recommendation
	for _, entry := range featureCatalog {
		if used[entry.intent] {
			continue
		}
		out = append(out, models.Recommendation{
			Title:       entry.title,
			Description: fmt.Sprintf("You haven't used the %s yet.", entry.feature),
			Kind:        "feature",
			Priority:    models.PriorityMedium,
			Confidence:  0.5,
		})
	}
	return out
}

func highSuccessContent(pattern *models.BehaviorPattern) []models.Recommendation {
	if pattern == nil {
		return nil
	}

	var out []models.Recommendation
	for _, stat := range pattern.TopIntents {
		if stat.SuccessRate <= highSuccessThreshold {
			continue
		}
		title, ok := contentTitles[stat.Intent]
		if !ok {
			continue
		}
		out = append(out, models.Recommendation{
			Title:       title,
			Description: "Based on what has worked well for you so far.",
			Kind:        "content",
			Priority:    models.PriorityHigh,
			Confidence:  stat.SuccessRate,
		})
	}
	return out
}

// growthSuggestions promotes beginners with a broad successful track record
// toward intermediate-tier content.
func growthSuggestions(pattern *models.BehaviorPattern, uctx *models.UserContext) []models.Recommendation {
	if pattern == nil || uctx == nil || uctx.Business.Experience != models.TierBeginner {
		return nil
	}

	successful := 0
	for _, stat := range pattern.TopIntents {
		if stat.SuccessRate > 0.5 {
			successful++
		}
	}
	if successful < growthIntentCount {
		return nil
	}

	return []models.Recommendation{{
		Title:       "Ready for Intermediate Export Guides",
		Description: "You've mastered the basics across several areas. Step up to intermediate-level content.",
		Kind:        "growth",
		Priority:    models.PriorityMedium,
		Confidence:  0.6,
	}}
}

func priorityRank(p models.Priority) int {
	switch p {
	case models.PriorityHigh:
		return 0
	case models.PriorityMedium:
		return 1
	default:
		return 2
	}
}
