package registry

import (
	"slices"

	"github.com/GoAITrader/tradegate/internal/model"
)

// CatalogEntry describes one model the platform knows how to drive and the
// markets it may serve. The catalog is the availability list; per-market
// enablement lives in each market's model configuration.
type CatalogEntry struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"display_name"`
	Provider    string   `json:"provider"`
	Markets     []string `json:"markets"`
}

var catalog = []CatalogEntry{
	{ID: "gpt-4o", DisplayName: "GPT-4o", Provider: "openai",
		Markets: []string{model.MarketUS, model.MarketCrypto}},
	{ID: "gpt-4o-mini", DisplayName: "GPT-4o Mini", Provider: "openai",
		Markets: []string{model.MarketUS, model.MarketCrypto}},
	{ID: "gpt-4-turbo", DisplayName: "GPT-4 Turbo", Provider: "openai",
		Markets: []string{model.MarketUS, model.MarketCrypto}},
	{ID: "gpt-3.5-turbo", DisplayName: "GPT-3.5 Turbo", Provider: "openai",
		Markets: []string{model.MarketUS, model.MarketCrypto}},
	{ID: "claude-3-5-sonnet", DisplayName: "Claude 3.5 Sonnet", Provider: "anthropic",
		Markets: []string{model.MarketUS, model.MarketCrypto}},
	{ID: "claude-3-haiku", DisplayName: "Claude 3 Haiku", Provider: "anthropic",
		Markets: []string{model.MarketUS, model.MarketCrypto}},
	{ID: "gemini-1.5-pro", DisplayName: "Gemini 1.5 Pro", Provider: "google",
		Markets: []string{model.MarketUS, model.MarketCrypto}},
	{ID: "gemini-1.5-flash", DisplayName: "Gemini 1.5 Flash", Provider: "google",
		Markets: []string{model.MarketUS, model.MarketCrypto}},
	{ID: "deepseek-chat", DisplayName: "DeepSeek Chat", Provider: "deepseek",
		Markets: []string{model.MarketCN, model.MarketCrypto}},
	{ID: "deepseek-reasoner", DisplayName: "DeepSeek Reasoner", Provider: "deepseek",
		Markets: []string{model.MarketCN, model.MarketCrypto}},
	{ID: "qwen-max", DisplayName: "Qwen Max", Provider: "qwen",
		Markets: []string{model.MarketCN, model.MarketCrypto}},
	{ID: "qwen-plus", DisplayName: "Qwen Plus", Provider: "qwen",
		Markets: []string{model.MarketCN, model.MarketCrypto}},
	{ID: "glm-4", DisplayName: "GLM-4", Provider: "zhipu",
		Markets: []string{model.MarketCN}},
}

// Catalog returns the full catalog as an isolated copy.
func Catalog() []CatalogEntry {
	out := make([]CatalogEntry, len(catalog))
	for i, e := range catalog {
		out[i] = e
		out[i].Markets = slices.Clone(e.Markets)
	}
	return out
}

func catalogForMarket(marketID string) []CatalogEntry {
	out := []CatalogEntry{}
	for _, e := range catalog {
		if slices.Contains(e.Markets, marketID) {
			entry := e
			entry.Markets = slices.Clone(e.Markets)
			out = append(out, entry)
		}
	}
	return out
}

func catalogHas(marketID, modelID string) bool {
	for _, e := range catalog {
		if e.ID == modelID {
			return slices.Contains(e.Markets, marketID)
		}
	}
	return false
}
