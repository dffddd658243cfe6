package nlu

import (
	"testing"

	"github.com/atlas-exports/exportpilot/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExtractor() *Extractor {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return NewExtractor(logger)
}

func entitiesOfType(entities []models.Entity, t models.EntityType) []models.Entity {
	var out []models.Entity
	for _, e := range entities {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func TestExtract_CountriesAndAmount(t *testing.T) {
	extractor := newTestExtractor()

	entities := extractor.Extract("Export to USA and Germany for $50,000")

	countries := entitiesOfType(entities, models.EntityCountry)
	require.Len(t, countries, 2)
	assert.Equal(t, "United States", countries[0].Value)
	assert.Equal(t, "Germany", countries[1].Value)

	amounts := entitiesOfType(entities, models.EntityAmount)
	require.Len(t, amounts, 1)
	assert.Contains(t, amounts[0].Value, "50,000")
}

func TestExtract_FullNameScoresHigherThanAbbreviation(t *testing.T) {
	extractor := newTestExtractor()

	full := extractor.Extract("shipping to United States")
	abbr := extractor.Extract("shipping to USA")

	require.Len(t, entitiesOfType(full, models.EntityCountry), 1)
	require.Len(t, entitiesOfType(abbr, models.EntityCountry), 1)
	assert.Greater(t,
		entitiesOfType(full, models.EntityCountry)[0].Confidence,
		entitiesOfType(abbr, models.EntityCountry)[0].Confidence)
}

func TestExtract_AmountConfidenceHeuristics(t *testing.T) {
	extractor := newTestExtractor()

	withSymbol := extractor.Extract("budget is $25,000")
	bare := extractor.Extract("budget is 25,000")

	symbolAmounts := entitiesOfType(withSymbol, models.EntityAmount)
	bareAmounts := entitiesOfType(bare, models.EntityAmount)
	require.Len(t, symbolAmounts, 1)
	require.Len(t, bareAmounts, 1)
	assert.Greater(t, symbolAmounts[0].Confidence, bareAmounts[0].Confidence)
}

func TestExtract_TariffCodes(t *testing.T) {
	extractor := newTestExtractor()

	entities := extractor.Extract("duty for code 8517.12.00 please")
	codes := entitiesOfType(entities, models.EntityTariffCode)
	require.Len(t, codes, 1)
	assert.Equal(t, "8517.12.00", codes[0].Value)
	assert.InDelta(t, 0.95, codes[0].Confidence, 0.001)

	entities = extractor.Extract("what about HS 850760")
	codes = entitiesOfType(entities, models.EntityTariffCode)
	require.NotEmpty(t, codes)
	assert.Less(t, codes[0].Confidence, 0.95)
}

func TestExtract_DatesAndProducts(t *testing.T) {
	extractor := newTestExtractor()

	entities := extractor.Extract("ship textiles to Japan by March 15, 2026")

	require.Len(t, entitiesOfType(entities, models.EntityProduct), 1)
	assert.Equal(t, "textiles", entitiesOfType(entities, models.EntityProduct)[0].Value)

	dates := entitiesOfType(entities, models.EntityDate)
	require.Len(t, dates, 1)
	assert.Contains(t, dates[0].Value, "March 15")

	require.Len(t, entitiesOfType(entities, models.EntityCountry), 1)
}

func TestExtract_NoMatchesYieldsEmptyList(t *testing.T) {
	extractor := newTestExtractor()

	entities := extractor.Extract("hello there")
	assert.NotNil(t, entities)
	assert.Empty(t, entities)

	entities = extractor.Extract("")
	assert.Empty(t, entities)
}

func TestExtract_SpansSortedAndNonOverlapping(t *testing.T) {
	extractor := newTestExtractor()

	inputs := []string{
		"Export to USA and Germany for $50,000",
		"ship electronics worth 1,500,000 USD to China on 12/01/2026",
		"HS 8517.12.00 textiles Germany $100 March 3, 2026 EUR",
		"coffee coffee coffee to Brazil Brazil",
	}

	for _, input := range inputs {
		entities := extractor.Extract(input)
		lastEnd := -1
		for _, e := range entities {
			assert.GreaterOrEqual(t, e.Start, lastEnd,
				"overlapping or unsorted span in %q", input)
			assert.Less(t, e.Start, e.End)
			lastEnd = e.End
		}
	}
}

func TestExtract_OverlapKeepsLeftmostCandidate(t *testing.T) {
	extractor := newTestExtractor()

	// "$50,000" (symbol rule) and "50,000" (bare rule) overlap; the
	// leftmost span wins regardless of confidence.
	entities := extractor.Extract("price $50,000")
	amounts := entitiesOfType(entities, models.EntityAmount)
	require.Len(t, amounts, 1)
	assert.Equal(t, "$50,000", amounts[0].Value)
}
