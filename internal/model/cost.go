package model

import "github.com/shopspring/decimal"

// CostEstimate is the priced result of one hypothetical model invocation.
// Unit prices are per 1K tokens in USD.
type CostEstimate struct {
	Provider         string          `json:"provider"`
	Model            string          `json:"model"`
	InputTokens      int64           `json:"input_tokens"`
	OutputTokens     int64           `json:"output_tokens"`
	InputPricePer1K  decimal.Decimal `json:"input_price_per_1k"`
	OutputPricePer1K decimal.Decimal `json:"output_price_per_1k"`
	Total            decimal.Decimal `json:"total"`
	Currency         string          `json:"currency"`
}
