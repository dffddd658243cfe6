package tradedata

import "time"

// Request models
type MarketDataRequest struct {
	CountryCode string   `json:"country_code"`
	ProductCode string   `json:"product_code,omitempty"`
	Industry    string   `json:"industry,omitempty"`
	Years       []int    `json:"years,omitempty"`
	Indicators  []string `json:"indicators,omitempty"`
}

// Response models
type TradeStatistics struct {
	CountryCode    string        `json:"country_code"`
	CountryName    string        `json:"country_name"`
	TotalImportsUSD float64      `json:"total_imports_usd"`
	TotalExportsUSD float64      `json:"total_exports_usd"`
	TopImports     []TradeSeries `json:"top_imports"`
	TopExports     []TradeSeries `json:"top_exports"`
	Year           int           `json:"year"`
	RetrievedAt    time.Time     `json:"retrieved_at"`
	Fallback       bool          `json:"fallback,omitempty"` // true when served from cache after a provider failure
}

type TradeSeries struct {
	Label  string    `json:"label"`
	HSCode string    `json:"hs_code,omitempty"`
	Values []float64 `json:"values"`
	Years  []int     `json:"years"`
}

type MarketData struct {
	CountryCode string        `json:"country_code"`
	Indicators  []Indicator   `json:"indicators"`
	Series      []TradeSeries `json:"series"`
	Fallback    bool          `json:"fallback,omitempty"`
}

type Indicator struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit,omitempty"`
}
