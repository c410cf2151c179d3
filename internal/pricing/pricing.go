package pricing

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/GoAITrader/tradegate/internal/model"
	"github.com/GoAITrader/tradegate/internal/pkg/apperrors"
)

// ModelPrice is one price-table row. Prices are USD per 1K tokens and are
// carried as decimals end to end; estimates never round-trip through floats.
type ModelPrice struct {
	Provider string          `json:"provider"`
	Model    string          `json:"model"`
	Input    decimal.Decimal `json:"input_price_per_1k"`
	Output   decimal.Decimal `json:"output_price_per_1k"`
}

type priceRow struct {
	provider string
	model    string
	input    string
	output   string
}

// The table is deliberately static: estimates must be reproducible and must
// not depend on any provider API being reachable.
var rows = []priceRow{
	{"openai", "gpt-4o", "0.0025", "0.01"},
	{"openai", "gpt-4o-mini", "0.00015", "0.0006"},
	{"openai", "gpt-4-turbo", "0.01", "0.03"},
	{"openai", "gpt-3.5-turbo", "0.0005", "0.0015"},
	{"anthropic", "claude-3-5-sonnet", "0.003", "0.015"},
	{"anthropic", "claude-3-haiku", "0.00025", "0.00125"},
	{"deepseek", "deepseek-chat", "0.00027", "0.0011"},
	{"deepseek", "deepseek-reasoner", "0.00055", "0.00219"},
	{"qwen", "qwen-max", "0.0024", "0.0096"},
	{"qwen", "qwen-plus", "0.0008", "0.002"},
	{"zhipu", "glm-4", "0.0014", "0.0014"},
	{"google", "gemini-1.5-pro", "0.00125", "0.005"},
	{"google", "gemini-1.5-flash", "0.000075", "0.0003"},
}

var (
	kilo  = decimal.NewFromInt(1000)
	table map[string]ModelPrice
)

func init() {
	table = make(map[string]ModelPrice, len(rows))
	for _, r := range rows {
		table[priceKey(r.provider, r.model)] = ModelPrice{
			Provider: r.provider,
			Model:    r.model,
			Input:    decimal.RequireFromString(r.input),
			Output:   decimal.RequireFromString(r.output),
		}
	}
}

func priceKey(provider, model string) string {
	return provider + "/" + model
}

// Lookup resolves one price row. An empty provider matches by model id alone
// when the id is unambiguous across providers.
func Lookup(provider, modelID string) (ModelPrice, error) {
	if provider != "" {
		price, ok := table[priceKey(provider, modelID)]
		if !ok {
			return ModelPrice{}, apperrors.New(apperrors.ErrUnknownModel,
				fmt.Sprintf("model %q is not in the price table for provider %q", modelID, provider), nil)
		}
		return price, nil
	}

	var found ModelPrice
	matches := 0
	for _, price := range table {
		if price.Model == modelID {
			found = price
			matches++
		}
	}
	switch matches {
	case 1:
		return found, nil
	case 0:
		return ModelPrice{}, apperrors.New(apperrors.ErrUnknownModel,
			fmt.Sprintf("model %q is not in the price table", modelID), nil)
	default:
		return ModelPrice{}, apperrors.New(apperrors.ErrUnknownModel,
			fmt.Sprintf("model %q is priced by several providers; pass the provider", modelID), nil)
	}
}

// Estimate prices one hypothetical invocation. Token counts scale linearly
// against the per-1K unit prices.
func Estimate(provider, modelID string, inputTokens, outputTokens int64) (*model.CostEstimate, error) {
	if inputTokens < 0 || outputTokens < 0 {
		return nil, apperrors.NewInvalidDocument("token counts must be non-negative")
	}
	price, err := Lookup(provider, modelID)
	if err != nil {
		return nil, err
	}

	inCost := price.Input.Mul(decimal.NewFromInt(inputTokens)).Div(kilo)
	outCost := price.Output.Mul(decimal.NewFromInt(outputTokens)).Div(kilo)

	return &model.CostEstimate{
		Provider:         price.Provider,
		Model:            price.Model,
		InputTokens:      inputTokens,
		OutputTokens:     outputTokens,
		InputPricePer1K:  price.Input,
		OutputPricePer1K: price.Output,
		Total:            inCost.Add(outCost),
		Currency:         "USD",
	}, nil
}

// ReferenceCost prices a nominal invocation of refTokens input plus refTokens
// output. The cost-optimized strategy ranks candidates with it; unknown models
// rank last rather than failing the selection.
func ReferenceCost(provider, modelID string, refTokens int64) (decimal.Decimal, bool) {
	price, err := Lookup(provider, modelID)
	if err != nil {
		return decimal.Zero, false
	}
	ref := decimal.NewFromInt(refTokens)
	return price.Input.Add(price.Output).Mul(ref).Div(kilo), true
}

// Table returns the full price list sorted by provider then model.
func Table() []ModelPrice {
	out := make([]ModelPrice, 0, len(table))
	for _, price := range table {
		out = append(out, price)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Provider != out[j].Provider {
			return out[i].Provider < out[j].Provider
		}
		return out[i].Model < out[j].Model
	})
	return out
}
