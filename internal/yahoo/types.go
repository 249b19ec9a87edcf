package yahoo

// --- Yahoo Finance API response types ---

type yfError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// yfValue is Yahoo's {"raw": 1.23, "fmt": "1.23"} wrapper. Missing values
// arrive as {} and leave Raw nil.
type yfValue struct {
	Raw *float64 `json:"raw"`
	Fmt string   `json:"fmt"`
}

type yfSummaryResponse struct {
	QuoteSummary struct {
		Result []yfSummaryResult `json:"result"`
		Error  *yfError          `json:"error"`
	} `json:"quoteSummary"`
}

type yfSummaryResult struct {
	Price         *yfPrice         `json:"price"`
	SummaryDetail *yfSummaryDetail `json:"summaryDetail"`
	FinancialData *yfFinancialData `json:"financialData"`
	AssetProfile  *yfAssetProfile  `json:"assetProfile"`
}

type yfPrice struct {
	Symbol                     string  `json:"symbol"`
	LongName                   string  `json:"longName"`
	ShortName                  string  `json:"shortName"`
	Currency                   string  `json:"currency"`
	Exchange                   string  `json:"exchange"`
	RegularMarketPrice         yfValue `json:"regularMarketPrice"`
	RegularMarketPreviousClose yfValue `json:"regularMarketPreviousClose"`
}

type yfSummaryDetail struct {
	PreviousClose yfValue `json:"previousClose"`
	Currency      string  `json:"currency"`
}

type yfFinancialData struct {
	CurrentPrice yfValue `json:"currentPrice"`
}

type yfAssetProfile struct {
	Website string `json:"website"`
}

type yfChartResponse struct {
	Chart struct {
		Result []yfChartResult `json:"result"`
		Error  *yfError        `json:"error"`
	} `json:"chart"`
}

type yfChartResult struct {
	Meta       yfChartMeta  `json:"meta"`
	Timestamp  []int64      `json:"timestamp"`
	Indicators yfIndicators `json:"indicators"`
}

type yfChartMeta struct {
	Symbol   string `json:"symbol"`
	Currency string `json:"currency"`
}

type yfIndicators struct {
	Quote []yfOHLC `json:"quote"`
}

type yfOHLC struct {
	Close []*float64 `json:"close"`
}

type yfSearchResponse struct {
	Quotes []yfSearchQuote `json:"quotes"`
}

type yfSearchQuote struct {
	Symbol    string `json:"symbol"`
	ShortName string `json:"shortname"`
	LongName  string `json:"longname"`
	Exchange  string `json:"exchange"`
	QuoteType string `json:"quoteType"`
}
