package repository

import "github.com/GoAITrader/tradegate/internal/model"

// DefaultDocument returns the seed configuration for a market. Credentials
// ship as placeholders; operators fill them (or set the environment
// overrides) before activating.
func DefaultDocument(id string) model.Document {
	switch id {
	case model.MarketCN:
		return model.Document{
			"market_type": string(model.KindCNEquity),
			"data_sources": map[string]any{
				"tushare": "https://api.tushare.pro",
			},
			"api_keys": map[string]any{
				"tushare":  "YOUR_TUSHARE_TOKEN",
				"deepseek": "YOUR_DEEPSEEK_API_KEY",
				"qwen":     "YOUR_DASHSCOPE_API_KEY",
			},
			"model_config": map[string]any{
				"policy": map[string]any{
					"strategy":         "priority",
					"fallback_enabled": true,
					"max_retries":      2,
					"timeout_seconds":  120,
				},
				"models": []any{
					map[string]any{
						"id": "deepseek-chat", "display_name": "DeepSeek Chat",
						"provider": "deepseek", "enabled": true, "priority": 1,
						"params":     map[string]any{"temperature": 0.2, "max_output_tokens": 4096},
						"rate_limit": map[string]any{"rpm": 60, "tpm": 200000},
					},
					map[string]any{
						"id": "qwen-max", "display_name": "Qwen Max",
						"provider": "qwen", "enabled": true, "priority": 2,
						"params":     map[string]any{"temperature": 0.3, "max_output_tokens": 4096},
						"rate_limit": map[string]any{"rpm": 30, "tpm": 100000},
					},
					map[string]any{
						"id": "glm-4", "display_name": "GLM-4",
						"provider": "zhipu", "enabled": false, "priority": 3,
						"rate_limit": map[string]any{"rpm": 30, "tpm": 60000},
					},
				},
			},
			"agent": map[string]any{
				"max_steps":          10,
				"max_retries":        3,
				"base_delay_seconds": 2,
				"initial_cash":       100000,
				"testnet_enabled":    false,
			},
			"trading_rules": map[string]any{
				"lot_size":        100,
				"settlement":      "t+1",
				"price_limit_pct": 0.10,
			},
		}

	case model.MarketCrypto:
		return model.Document{
			"market_type": string(model.KindCrypto),
			"data_sources": map[string]any{
				"binance": "https://api.binance.com",
			},
			"api_keys": map[string]any{
				"binance":        "YOUR_BINANCE_API_KEY",
				"binance_secret": "YOUR_BINANCE_SECRET_KEY",
				"openai":         "YOUR_OPENAI_API_KEY",
			},
			"model_config": map[string]any{
				"policy": map[string]any{
					"strategy":         "round_robin",
					"fallback_enabled": true,
					"max_retries":      2,
					"timeout_seconds":  90,
				},
				"models": []any{
					map[string]any{
						"id": "gpt-4o", "display_name": "GPT-4o",
						"provider": "openai", "enabled": true, "priority": 1,
						"params":     map[string]any{"temperature": 0.1, "max_output_tokens": 4096},
						"rate_limit": map[string]any{"rpm": 60, "tpm": 150000},
					},
					map[string]any{
						"id": "gpt-4o-mini", "display_name": "GPT-4o Mini",
						"provider": "openai", "enabled": true, "priority": 2,
						"params":     map[string]any{"temperature": 0.1, "max_output_tokens": 8192},
						"rate_limit": map[string]any{"rpm": 200, "tpm": 500000},
					},
					map[string]any{
						"id": "claude-3-5-sonnet", "display_name": "Claude 3.5 Sonnet",
						"provider": "anthropic", "enabled": false, "priority": 3,
						"rate_limit": map[string]any{"rpm": 50, "tpm": 80000},
					},
				},
			},
			"agent": map[string]any{
				"max_steps":          12,
				"max_retries":        3,
				"base_delay_seconds": 1,
				"initial_cash":       10000,
				"testnet_enabled":    true,
			},
			"trading_rules": map[string]any{
				"settlement": "t+0",
			},
		}

	default: // us
		return model.Document{
			"market_type": string(model.KindUSEquity),
			"data_sources": map[string]any{
				"alphavantage": "https://www.alphavantage.co/query",
			},
			"api_keys": map[string]any{
				"alphavantage": "YOUR_ALPHAVANTAGE_API_KEY",
				"openai":       "YOUR_OPENAI_API_KEY",
			},
			"model_config": map[string]any{
				"policy": map[string]any{
					"strategy":         "priority",
					"fallback_enabled": true,
					"max_retries":      2,
					"timeout_seconds":  120,
				},
				"models": []any{
					map[string]any{
						"id": "gpt-4o", "display_name": "GPT-4o",
						"provider": "openai", "enabled": true, "priority": 1,
						"params":     map[string]any{"temperature": 0.2, "max_output_tokens": 4096},
						"rate_limit": map[string]any{"rpm": 60, "tpm": 150000},
					},
					map[string]any{
						"id": "gpt-4o-mini", "display_name": "GPT-4o Mini",
						"provider": "openai", "enabled": true, "priority": 2,
						"params":     map[string]any{"temperature": 0.2, "max_output_tokens": 8192},
						"rate_limit": map[string]any{"rpm": 200, "tpm": 500000},
					},
					map[string]any{
						"id": "gpt-4-turbo", "display_name": "GPT-4 Turbo",
						"provider": "openai", "enabled": false, "priority": 3,
						"rate_limit": map[string]any{"rpm": 40, "tpm": 90000},
					},
				},
			},
			"agent": map[string]any{
				"max_steps":          10,
				"max_retries":        3,
				"base_delay_seconds": 1,
				"initial_cash":       10000,
				"testnet_enabled":    false,
			},
			"trading_rules": map[string]any{
				"settlement": "t+2",
			},
		}
	}
}
