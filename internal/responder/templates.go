package responder

import (
	"github.com/atlas-exports/exportpilot/internal/models"
)

// Static per-intent template bundles. Phrasings run from most explanatory
// (index 0, served to beginners) to most direct (index 2, served to
// advanced users).

type templateBundle struct {
	phrasings    [3]string
	quickActions []models.QuickAction
	followUps    []string
	requiresData bool
	page         string
	wantsCountry bool
	wantsProduct bool
}

var intentTemplates = map[models.IntentName]templateBundle{
	models.IntentFindBuyers: {
		phrasings: [3]string{
			"Finding the right buyers is one of the most important steps in exporting. I can help you search verified importer directories, filter by country and product category, and shortlist companies that match your offer.",
			"I can help you find buyers. Let's search the importer directory and filter by your product and target market.",
			"Opening buyer search. Filter by product and market to shortlist importers.",
		},
		quickActions: []models.QuickAction{
			{Label: "Search Buyer Directory", Action: "navigate", Target: "buyers"},
			{Label: "Save Search", Action: "create", Target: "saved-searches"},
		},
		followUps: []string{
			"Which market are you targeting?",
		},
		requiresData: false,
		page:         "buyers",
		wantsCountry: true,
		wantsProduct: true,
	},
	models.IntentMarketResearch: {
		phrasings: [3]string{
			"Market research helps you pick the right destination before you invest in outreach. I can pull import statistics, demand trends, and competitor activity for any market you're considering.",
			"Let's look at the market data. I can show import volumes, growth trends, and top competitors for your target market.",
			"Pulling market data. Pick a country to compare import volumes and trends.",
		},
		quickActions: []models.QuickAction{
			{Label: "Open Market Insights", Action: "navigate", Target: "markets"},
			{Label: "Compare Markets", Action: "analyze", Target: "markets/compare"},
		},
		followUps: []string{
			"Do you want import statistics or competitor analysis?",
		},
		requiresData: true,
		page:         "markets",
		wantsCountry: true,
		wantsProduct: true,
	},
	models.IntentComplianceHelp: {
		phrasings: [3]string{
			"Export compliance can feel overwhelming, but it breaks down into a few checks: correct HS classification, destination-country regulations, and required certificates. I can walk you through each one for your shipment.",
			"I can help with compliance. Tell me the product and destination and I'll list the required documents and duties.",
			"Compliance check: give me the HS code or product and destination for duties and documents.",
		},
		quickActions: []models.QuickAction{
			{Label: "Open Compliance Center", Action: "navigate", Target: "compliance"},
			{Label: "Look Up HS Code", Action: "search", Target: "compliance/hs-codes"},
		},
		followUps: []string{
			"Do you already have an HS code for your product?",
		},
		requiresData: false,
		page:         "compliance",
		wantsCountry: true,
		wantsProduct: true,
	},
	models.IntentQuotationHelp: {
		phrasings: [3]string{
			"A good quotation covers product details, Incoterms, payment terms, and validity. I can open the quotation builder and pre-fill it from your product catalog so you only adjust prices and terms.",
			"Let's build your quotation. I'll pre-fill product details; you set the Incoterm and payment terms.",
			"Opening the quotation builder with your catalog pre-filled.",
		},
		quickActions: []models.QuickAction{
			{Label: "Create Quotation", Action: "create", Target: "quotations/new"},
			{Label: "View Past Quotations", Action: "navigate", Target: "quotations"},
		},
		followUps: []string{
			"Which Incoterm are you quoting under?",
		},
		requiresData: false,
		page:         "quotations",
		wantsCountry: false,
		wantsProduct: true,
	},
	models.IntentPlatformNavigation: {
		phrasings: [3]string{
			"No problem, I can point you to the right place. The main sections are Buyers, Markets, Compliance, and Quotations, all reachable from the sidebar. Tell me what you're trying to do and I'll take you straight there.",
			"I can take you there. Which section are you looking for?",
			"Navigating. Name the section and I'll open it.",
		},
		quickActions: []models.QuickAction{
			{Label: "Open Dashboard", Action: "navigate", Target: "dashboard"},
			{Label: "View All Sections", Action: "navigate", Target: "sitemap"},
		},
		followUps: []string{
			"What are you trying to accomplish?",
		},
		requiresData: false,
		page:         "dashboard",
	},
	models.IntentOnboardingHelp: {
		phrasings: [3]string{
			"Welcome! Getting started with exporting has three steps on this platform: complete your business profile, add your products, and pick a target market. I'll guide you through each one at your own pace.",
			"Let's get you set up: business profile, products, then a target market. Want to start with the profile?",
			"Setup: profile, products, target market. Starting with the profile.",
		},
		quickActions: []models.QuickAction{
			{Label: "Complete Profile", Action: "navigate", Target: "onboarding/profile"},
			{Label: "Add Products", Action: "create", Target: "products/new"},
		},
		followUps: []string{
			"Have you exported before, or is this your first time?",
		},
		requiresData: false,
		page:         "onboarding",
	},
	models.IntentGeneralExportAdvice: {
		phrasings: [3]string{
			"Happy to help with export advice. Successful exporters usually start by validating demand in one target market, getting their compliance paperwork in order, and lining up reliable logistics. Tell me more about your situation and I'll tailor the advice.",
			"Here's my general advice: validate demand first, sort compliance early, and compare freight options. What's your product and target market?",
			"Advice: validate demand, sort compliance, compare freight. Give me product and market for specifics.",
		},
		quickActions: []models.QuickAction{
			{Label: "Browse Export Guides", Action: "navigate", Target: "guides"},
		},
		followUps: []string{
			"What product are you planning to export?",
		},
		requiresData: false,
		page:         "guides",
		wantsCountry: true,
		wantsProduct: true,
	},
}

// Fallback apologies for UNKNOWN, plus the recovery actions attached to them.
var unknownTemplates = [3]string{
	"I'm not sure I understood that. Could you rephrase it? I can help with finding buyers, market research, compliance, and quotations.",
	"Sorry, I didn't catch what you need. Try asking about buyers, markets, compliance, or quotations.",
	"I couldn't work out what you're asking for. Could you put it another way?",
}

var unknownQuickActions = []models.QuickAction{
	{Label: "See What I Can Do", Action: "navigate", Target: "help/assistant"},
	{Label: "Browse Help Topics", Action: "navigate", Target: "help"},
}

// technicalDifficultyResponse is returned whenever generation itself fails.
func technicalDifficultyResponse() models.Response {
	return models.Response{
		Text: "I'm having technical difficulty answering that right now. Please try again in a moment.",
		QuickActions: []models.QuickAction{
			{Label: "Try Again", Action: "search", Target: "retry"},
		},
		FollowUpQuestions: []string{},
	}
}
