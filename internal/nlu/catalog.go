package nlu

import (
	"github.com/atlas-exports/exportpilot/internal/models"
)

// Intent catalog. Keyword hits add weight*0.3, exact phrase hits weight*0.6,
// context-boost hits weight*0.2. Weights reflect specificity: compliance
// questions use distinctive vocabulary, general advice the least.

type intentProfile struct {
	name         models.IntentName
	weight       float64
	keywords     []string
	phrases      []string
	contextBoost []string
}

var intentCatalog = []intentProfile{
	{
		name:   models.IntentFindBuyers,
		weight: 1.0,
		keywords: []string{
			"buyer", "buyers", "importer", "importers", "customer",
			"customers", "distributor", "distributors", "leads", "wholesaler",
		},
		phrases: []string{
			"find buyers", "looking for buyers", "potential buyers",
			"connect with importers", "find customers", "buyer directory",
		},
		contextBoost: []string{"sell", "contact", "reach", "demand"},
	},
	{
		name:   models.IntentMarketResearch,
		weight: 1.0,
		keywords: []string{
			"market", "markets", "demand", "trends", "statistics",
			"competition", "competitors", "pricing", "growth",
		},
		phrases: []string{
			"market research", "market size", "market trends",
			"market analysis", "trade statistics", "which market",
		},
		contextBoost: []string{"analyze", "compare", "data", "report"},
	},
	{
		name:   models.IntentComplianceHelp,
		weight: 1.2,
		keywords: []string{
			"compliance", "regulations", "customs", "tariff", "tariffs",
			"duty", "duties", "certificate", "certification", "documentation",
			"license", "permit", "restrictions",
		},
		phrases: []string{
			"export compliance", "customs clearance", "hs code",
			"certificate of origin", "import regulations", "export license",
			"customs documentation",
		},
		contextBoost: []string{"legal", "required", "rules", "paperwork"},
	},
	{
		name:   models.IntentQuotationHelp,
		weight: 1.1,
		keywords: []string{
			"quote", "quotation", "invoice", "proforma", "incoterms",
			"fob", "cif", "exw", "payment", "pricing",
		},
		phrases: []string{
			"create a quote", "prepare quotation", "proforma invoice",
			"payment terms", "price quote", "quotation template",
		},
		contextBoost: []string{"send", "prepare", "terms", "cost"},
	},
	{
		name:   models.IntentPlatformNavigation,
		weight: 0.9,
		keywords: []string{
			"dashboard", "page", "navigate", "settings", "profile",
			"menu", "section", "button", "screen",
		},
		phrases: []string{
			"how do i get to", "where is the", "take me to", "show me the",
			"go to", "open the",
		},
		contextBoost: []string{"find", "click", "where", "locate"},
	},
	{
		name:   models.IntentOnboardingHelp,
		weight: 0.9,
		keywords: []string{
			"start", "started", "begin", "beginner", "new", "setup",
			"tutorial", "guide", "basics", "first",
		},
		phrases: []string{
			"getting started", "how to start", "new to exporting",
			"first time", "set up my account", "where do i begin",
		},
		contextBoost: []string{"learn", "help", "explain", "steps"},
	},
	{
		name:   models.IntentGeneralExportAdvice,
		weight: 0.7,
		keywords: []string{
			"export", "exporting", "shipping", "freight", "logistics",
			"advice", "international", "trade", "overseas",
		},
		phrases: []string{
			"export advice", "how to export", "shipping options",
			"best way to ship", "international trade",
		},
		contextBoost: []string{"help", "recommend", "suggest", "should"},
	},
}

// profileFitBonus returns true when the user's business profile makes the
// intent more likely, worth a flat +0.15.
func profileFitBonus(name models.IntentName, ctx *models.UserContext) bool {
	if ctx == nil {
		return false
	}
	switch name {
	case models.IntentOnboardingHelp:
		return ctx.Business.Experience == models.TierBeginner
	case models.IntentFindBuyers:
		return len(ctx.Business.Products) > 0
	case models.IntentMarketResearch:
		return len(ctx.Business.TargetMarkets) > 0
	case models.IntentComplianceHelp:
		return ctx.Business.Industry == "pharmaceutical" || ctx.Business.Industry == "food processing"
	}
	return false
}
