package rules

import (
	"os"
	"sort"
	"strings"

	"github.com/GoAITrader/tradegate/internal/model"
)

// Canonical environment variables per provider. Anything unlisted falls back
// to <PROVIDER>_API_KEY.
var credentialEnvVars = map[string]string{
	"openai":         "OPENAI_API_KEY",
	"anthropic":      "ANTHROPIC_API_KEY",
	"deepseek":       "DEEPSEEK_API_KEY",
	"qwen":           "DASHSCOPE_API_KEY",
	"zhipu":          "ZHIPU_API_KEY",
	"google":         "GEMINI_API_KEY",
	"alphavantage":   "ALPHAVANTAGE_API_KEY",
	"tushare":        "TUSHARE_TOKEN",
	"binance":        "BINANCE_API_KEY",
	"binance_secret": "BINANCE_SECRET_KEY",
}

func CredentialEnvVar(provider string) string {
	if v, ok := credentialEnvVars[provider]; ok {
		return v
	}
	return strings.ToUpper(provider) + "_API_KEY"
}

// IsConfigured reports whether a credential value is usable: non-empty and
// not a placeholder sentinel.
func IsConfigured(value string) bool {
	return value != "" && !strings.HasPrefix(value, model.PlaceholderPrefix)
}

// ResolveCredential returns the effective credential for a provider. A
// configured environment value takes precedence over the document value.
func ResolveCredential(provider string, doc model.Document) (value string, fromEnv bool) {
	if env := os.Getenv(CredentialEnvVar(provider)); IsConfigured(env) {
		return env, true
	}
	return doc.APIKeys()[provider], false
}

// RequiredProviders derives the credential names a document needs: one per
// declared data source (binance implies its secret) and one per enabled
// model's provider. Disabled model entries are staged configuration and do
// not demand a key until they are enabled. Sorted for deterministic findings.
func RequiredProviders(doc model.Document) []string {
	set := map[string]struct{}{}
	for source := range doc.DataSources() {
		set[source] = struct{}{}
		if source == "binance" {
			set["binance_secret"] = struct{}{}
		}
	}
	if mc, err := doc.ModelConfig(); err == nil {
		for _, m := range mc.EnabledModels() {
			if m.Provider != "" {
				set[m.Provider] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// KeyStatuses is the check-keys table for a document.
func KeyStatuses(doc model.Document) []model.KeyStatus {
	providers := RequiredProviders(doc)
	out := make([]model.KeyStatus, 0, len(providers))
	for _, p := range providers {
		value, fromEnv := ResolveCredential(p, doc)
		out = append(out, model.KeyStatus{
			Provider:   p,
			Configured: IsConfigured(value),
			FromEnv:    fromEnv,
		})
	}
	return out
}
