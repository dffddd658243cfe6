package nlu

import (
	"regexp"
	"strings"

	"github.com/atlas-exports/exportpilot/internal/models"
)

// Declarative pattern tables for entity extraction. Each entity type carries
// an ordered rule list; earlier rules are the stronger signals and carry the
// higher base confidence.

type patternRule struct {
	re         *regexp.Regexp
	confidence float64
	normalize  func(match string) string
}

type entityPatterns struct {
	entityType models.EntityType
	rules      []patternRule
}

// countryAliases maps lowercase surface forms to canonical country names.
// Full names are matched by a dedicated high-confidence rule, abbreviations
// by a weaker one.
var countryAliases = map[string]string{
	"united states":  "United States",
	"usa":            "United States",
	"america":        "United States",
	"germany":        "Germany",
	"united kingdom": "United Kingdom",
	"uk":             "United Kingdom",
	"britain":        "United Kingdom",
	"china":          "China",
	"india":          "India",
	"japan":          "Japan",
	"canada":         "Canada",
	"mexico":         "Mexico",
	"brazil":         "Brazil",
	"france":         "France",
	"italy":          "Italy",
	"spain":          "Spain",
	"netherlands":    "Netherlands",
	"australia":      "Australia",
	"south korea":    "South Korea",
	"singapore":      "Singapore",
	"vietnam":        "Vietnam",
	"indonesia":      "Indonesia",
	"turkey":         "Turkey",
	"saudi arabia":   "Saudi Arabia",
	"uae":            "United Arab Emirates",
	"emirates":       "United Arab Emirates",
	"south africa":   "South Africa",
	"nigeria":        "Nigeria",
	"egypt":          "Egypt",
	"bangladesh":     "Bangladesh",
	"pakistan":       "Pakistan",
}

// CountryCodes maps canonical country names to ISO 3166-1 alpha-2 codes,
// used when forwarding a country entity to the trade data provider.
var CountryCodes = map[string]string{
	"United States":        "US",
	"Germany":              "DE",
	"United Kingdom":       "GB",
	"China":                "CN",
	"India":                "IN",
	"Japan":                "JP",
	"Canada":               "CA",
	"Mexico":               "MX",
	"Brazil":               "BR",
	"France":               "FR",
	"Italy":                "IT",
	"Spain":                "ES",
	"Netherlands":          "NL",
	"Australia":            "AU",
	"South Korea":          "KR",
	"Singapore":            "SG",
	"Vietnam":              "VN",
	"Indonesia":            "ID",
	"Turkey":               "TR",
	"Saudi Arabia":         "SA",
	"United Arab Emirates": "AE",
	"South Africa":         "ZA",
	"Nigeria":              "NG",
	"Egypt":                "EG",
	"Bangladesh":           "BD",
	"Pakistan":             "PK",
}

// Abbreviated country forms score lower than full names.
var countryAbbreviations = map[string]bool{
	"usa": true, "uk": true, "uae": true,
}

var productLexicon = []string{
	"textiles", "garments", "apparel", "electronics", "machinery", "furniture",
	"coffee", "tea", "rice", "spices", "leather goods", "handicrafts",
	"pharmaceuticals", "auto parts", "jewelry", "ceramics", "plastics",
	"chemicals", "steel", "cotton", "footwear", "toys", "software",
	"seafood", "fruits", "vegetables", "solar panels",
}

var industryLexicon = []string{
	"technology", "agriculture", "manufacturing", "automotive",
	"pharmaceutical", "food processing", "handicraft", "textile industry",
	"electronics industry", "mining", "construction", "logistics",
}

func alternation(terms []string) string {
	escaped := make([]string, 0, len(terms))
	for _, t := range terms {
		escaped = append(escaped, regexp.QuoteMeta(t))
	}
	return strings.Join(escaped, "|")
}

func countryAlternation(abbreviated bool) string {
	var terms []string
	for alias := range countryAliases {
		if countryAbbreviations[alias] == abbreviated {
			terms = append(terms, alias)
		}
	}
	// Longer aliases first so e.g. "united states" wins over "united"
	for i := 0; i < len(terms); i++ {
		for j := i + 1; j < len(terms); j++ {
			if len(terms[j]) > len(terms[i]) {
				terms[i], terms[j] = terms[j], terms[i]
			}
		}
	}
	return alternation(terms)
}

func normalizeCountry(match string) string {
	if canonical, ok := countryAliases[strings.ToLower(strings.TrimSpace(match))]; ok {
		return canonical
	}
	return match
}

// defaultPatterns builds the full ordered pattern catalog. Confidence values
// follow the source heuristics: explicit currency symbols beat bare numbers,
// full country names beat abbreviations, canonical dddd.dd.dd tariff codes
// beat bare digit runs.
func defaultPatterns() []entityPatterns {
	return []entityPatterns{
		{
			entityType: models.EntityCountry,
			rules: []patternRule{
				{
					re:         regexp.MustCompile(`(?i)\b(` + countryAlternation(false) + `)\b`),
					confidence: 0.95,
					normalize:  normalizeCountry,
				},
				{
					re:         regexp.MustCompile(`(?i)\b(` + countryAlternation(true) + `)\b`),
					confidence: 0.8,
					normalize:  normalizeCountry,
				},
			},
		},
		{
			entityType: models.EntityAmount,
			rules: []patternRule{
				{
					// Explicit currency symbol
					re:         regexp.MustCompile(`[$€£¥]\s?\d[\d,]*(?:\.\d+)?(?:\s?(?:million|billion|k|m|bn))?`),
					confidence: 0.9,
				},
				{
					// Number followed by a currency code or word
					re:         regexp.MustCompile(`(?i)\b\d[\d,]*(?:\.\d+)?\s?(?:usd|eur|gbp|inr|cny|jpy|dollars?|euros?|pounds?|rupees?)\b`),
					confidence: 0.85,
				},
				{
					// Bare number run, weakest signal; four-digit runs are left
					// to the date rules so years do not classify as amounts
					re:         regexp.MustCompile(`\b\d{1,3}(?:,\d{3})+(?:\.\d+)?\b|\b\d{5,}(?:\.\d+)?\b`),
					confidence: 0.5,
				},
			},
		},
		{
			entityType: models.EntityCurrency,
			rules: []patternRule{
				{
					re:         regexp.MustCompile(`\b(USD|EUR|GBP|INR|CNY|JPY|AED|CAD|AUD)\b`),
					confidence: 0.9,
					normalize:  strings.ToUpper,
				},
				{
					re:         regexp.MustCompile(`(?i)\b(dollars?|euros?|pounds?|rupees?|yen|yuan|dirhams?)\b`),
					confidence: 0.7,
					normalize:  func(m string) string { return strings.ToLower(m) },
				},
			},
		},
		{
			entityType: models.EntityDate,
			rules: []patternRule{
				{
					re:         regexp.MustCompile(`(?i)\b(?:january|february|march|april|may|june|july|august|september|october|november|december)\s+\d{1,2}(?:,\s*\d{4})?\b`),
					confidence: 0.9,
				},
				{
					re:         regexp.MustCompile(`\b\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\b`),
					confidence: 0.85,
				},
				{
					re:         regexp.MustCompile(`(?i)\bq[1-4]\s+\d{4}\b`),
					confidence: 0.8,
				},
				{
					re:         regexp.MustCompile(`\b20\d{2}\b`),
					confidence: 0.6,
				},
			},
		},
		{
			entityType: models.EntityTariffCode,
			rules: []patternRule{
				{
					// Canonical dddd.dd.dd shape
					re:         regexp.MustCompile(`\b\d{4}\.\d{2}\.\d{2}\b`),
					confidence: 0.95,
				},
				{
					re:         regexp.MustCompile(`(?i)\bhs\s?(?:code\s?)?\d{4,10}\b`),
					confidence: 0.85,
				},
				{
					// Bare digit run in a tariff position, weakest signal
					re:         regexp.MustCompile(`\b\d{6}\b`),
					confidence: 0.55,
				},
			},
		},
		{
			entityType: models.EntityProduct,
			rules: []patternRule{
				{
					re:         regexp.MustCompile(`(?i)\b(` + alternation(productLexicon) + `)\b`),
					confidence: 0.75,
					normalize:  func(m string) string { return strings.ToLower(strings.TrimSpace(m)) },
				},
			},
		},
		{
			entityType: models.EntityIndustry,
			rules: []patternRule{
				{
					re:         regexp.MustCompile(`(?i)\b(` + alternation(industryLexicon) + `)\b`),
					confidence: 0.7,
					normalize:  func(m string) string { return strings.ToLower(strings.TrimSpace(m)) },
				},
			},
		},
	}
}
