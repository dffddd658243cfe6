package personalization

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/atlas-exports/exportpilot/internal/models"
)

const maxAdaptedQuickActions = 2

var sentencePattern = regexp.MustCompile(`[^.!?]+[.!?]+\s*|[^.!?]+$`)

// industryTerms substitutes generic nouns with the vocabulary of the user's
// declared industry. Replacement words never appear as keys so reapplying
// the map is a no-op.
var industryTerms = map[string]map[string]string{
	"technology": {
		"products": "solutions",
		"goods":    "solutions",
	},
	"textiles": {
		"products": "garments",
		"goods":    "garments",
	},
	"agriculture": {
		"products": "produce",
		"goods":    "produce",
	},
	"food processing": {
		"products": "foodstuffs",
		"goods":    "foodstuffs",
	},
}

// Adapt reshapes a generated response to the user's learned content
// preferences. It is idempotent, never mutates its input, and returns the
// response unchanged when the user has no behavior pattern yet.
func (e *Engine) Adapt(response models.Response, userID string, uctx *models.UserContext) models.Response {
	pattern := e.GetPattern(userID)
	if pattern == nil {
		return response
	}

	adapted := cloneResponse(response)

	switch pattern.Content.ResponseLength {
	case models.LengthShort:
		adapted.Text = truncateSentences(adapted.Text, 2)
	case models.LengthMedium:
		adapted.Text = truncateSentences(adapted.Text, 3)
	}

	if !pattern.Content.PreferQuickActions && len(adapted.QuickActions) > maxAdaptedQuickActions {
		adapted.QuickActions = adapted.QuickActions[:maxAdaptedQuickActions]
	}

	if uctx != nil {
		if terms, ok := industryTerms[uctx.Business.Industry]; ok {
			adapted.Text = substituteTerms(adapted.Text, terms)
		}
	}

	return adapted
}

func cloneResponse(response models.Response) models.Response {
	clone := response
	clone.QuickActions = append([]models.QuickAction(nil), response.QuickActions...)
	clone.FollowUpQuestions = append([]string(nil), response.FollowUpQuestions...)
	if response.Navigation != nil {
		nav := *response.Navigation
		clone.Navigation = &nav
	}
	if response.Visualization != nil {
		viz := *response.Visualization
		clone.Visualization = &viz
	}
	return clone
}

func truncateSentences(text string, limit int) string {
	sentences := sentencePattern.FindAllString(text, -1)
	if len(sentences) <= limit {
		return text
	}
	return strings.TrimSpace(strings.Join(sentences[:limit], ""))
}

func substituteTerms(text string, terms map[string]string) string {
	for generic, specific := range terms {
		re := regexp.MustCompile(fmt.Sprintf(`(?i)\b%s\b`, regexp.QuoteMeta(generic)))
		text = re.ReplaceAllString(text, specific)
	}
	return text
}
