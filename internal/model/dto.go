package model

import "time"

// ActivateRequest is the body of a market activation call.
type ActivateRequest struct {
	SkipValidation bool `json:"skip_validation"`
}

// UpdateModelConfigRequest replaces a market's model configuration
// wholesale. APIKeys, when present, are merged into the document's
// credential section in the same write.
type UpdateModelConfigRequest struct {
	Policy  ModelSelectionPolicy `json:"policy"`
	Models  []ModelDefinition    `json:"models"`
	APIKeys map[string]string    `json:"api_keys,omitempty"`
}

// ModelConfigView is the read shape of a market's model configuration.
// SelectedModels is derived: the enabled entries in selection order.
type ModelConfigView struct {
	Market         string               `json:"market"`
	Policy         ModelSelectionPolicy `json:"policy"`
	EnabledModels  []ModelDefinition    `json:"enabled_models"`
	SelectedModels []string             `json:"selected_models"`
	TotalModels    int                  `json:"total_models"`
}

// SelectRequest is one selection attempt over a market's enabled models.
type SelectRequest struct {
	Exclude         []string `json:"exclude,omitempty"`
	EstimatedTokens int      `json:"estimated_tokens,omitempty"`
}

// OutcomeRequest reports how an externally performed invocation went, so
// rolling performance stats and usage counters stay current.
type OutcomeRequest struct {
	ModelID   string `json:"model_id" binding:"required"`
	Success   bool   `json:"success"`
	LatencyMs int64  `json:"latency_ms"`
	Tokens    int64  `json:"tokens"`
}

// EstimateRequest prices a hypothetical invocation.
type EstimateRequest struct {
	Provider     string `json:"provider" binding:"required"`
	Model        string `json:"model" binding:"required"`
	InputTokens  int64  `json:"input_tokens"`
	OutputTokens int64  `json:"output_tokens"`
}

// CommonSettings is a partial patch applied to every market's agent section.
// Nil fields are left untouched.
type CommonSettings struct {
	MaxSteps         *int     `json:"max_steps,omitempty"`
	MaxRetries       *int     `json:"max_retries,omitempty"`
	BaseDelaySeconds *float64 `json:"base_delay_seconds,omitempty"`
	InitialCash      *float64 `json:"initial_cash,omitempty"`
	TestnetEnabled   *bool    `json:"testnet_enabled,omitempty"`
}

// ConfigBundle is the export/import unit: every market document plus the
// active pointers, as one diffable JSON object.
type ConfigBundle struct {
	ExportedAt time.Time                `json:"exported_at"`
	Markets    map[string]Document      `json:"markets"`
	Active     map[string]ActivePointer `json:"active"`
}

// KeyStatus is one row of a credential check table.
type KeyStatus struct {
	Provider   string `json:"provider"`
	Configured bool   `json:"configured"`
	FromEnv    bool   `json:"from_env"`
}

// ModelUsage is one model's usage counters for the current UTC day.
type ModelUsage struct {
	Requests int   `json:"requests"`
	Tokens   int64 `json:"tokens"`
}
