package model

import "time"

// Strategy selects how the model selector orders candidates.
type Strategy string

const (
	StrategyPriority             Strategy = "priority"
	StrategyRoundRobin           Strategy = "round_robin"
	StrategyCostOptimized        Strategy = "cost_optimized"
	StrategyPerformanceOptimized Strategy = "performance_optimized"
)

func Strategies() []Strategy {
	return []Strategy{
		StrategyPriority,
		StrategyRoundRobin,
		StrategyCostOptimized,
		StrategyPerformanceOptimized,
	}
}

func ParseStrategy(s string) (Strategy, bool) {
	for _, known := range Strategies() {
		if Strategy(s) == known {
			return known, true
		}
	}
	return "", false
}

// ModelParams is the parameter bag forwarded to the inference collaborator.
type ModelParams struct {
	Temperature     float64 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"max_output_tokens,omitempty"`
}

// RateLimitSpec is the per-model token-bucket configuration. Zero means
// unlimited for that dimension.
type RateLimitSpec struct {
	RPM int `json:"rpm,omitempty"`
	TPM int `json:"tpm,omitempty"`
}

// ModelDefinition is one cataloged AI model entry. Priority: lower wins.
type ModelDefinition struct {
	ID          string        `json:"id"`
	DisplayName string        `json:"display_name,omitempty"`
	Provider    string        `json:"provider"`
	Enabled     bool          `json:"enabled"`
	Priority    int           `json:"priority"`
	Params      ModelParams   `json:"params,omitempty"`
	RateLimit   RateLimitSpec `json:"rate_limit,omitempty"`
}

// ModelSelectionPolicy governs selection for one market. Attached 1:1 to a
// market profile inside its document.
type ModelSelectionPolicy struct {
	Strategy        Strategy `json:"strategy"`
	FallbackEnabled bool     `json:"fallback_enabled"`
	MaxRetries      int      `json:"max_retries"`
	TimeoutSeconds  int      `json:"timeout_seconds"`
}

func (p ModelSelectionPolicy) Timeout() time.Duration {
	if p.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// ModelConfig is the typed model_config section of a market document.
type ModelConfig struct {
	Policy ModelSelectionPolicy `json:"policy"`
	Models []ModelDefinition    `json:"models"`
}

// EnabledModels returns the entries participating in selection.
func (mc ModelConfig) EnabledModels() []ModelDefinition {
	out := make([]ModelDefinition, 0, len(mc.Models))
	for _, m := range mc.Models {
		if m.Enabled {
			out = append(out, m)
		}
	}
	return out
}

// Clone copies the config so selection snapshots do not alias stored state.
func (mc ModelConfig) Clone() ModelConfig {
	out := mc
	out.Models = make([]ModelDefinition, len(mc.Models))
	copy(out.Models, mc.Models)
	return out
}
