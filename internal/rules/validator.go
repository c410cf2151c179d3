package rules

import (
	"fmt"
	"net/url"
	"sort"

	"github.com/GoAITrader/tradegate/internal/model"
)

// Validate runs the four check groups over a market document, in order:
// structure, credentials, trading rules, endpoint hints. All findings are
// accumulated; overall validity means no error-severity finding. The
// function is pure apart from reading credential environment overrides.
func Validate(doc model.Document, rs RuleSet) *model.ValidationResult {
	res := model.NewValidationResult()
	if doc == nil {
		res.AddError("", "structure.document", "document is empty")
		return res
	}
	checkStructure(doc, rs, res)
	checkCredentials(doc, res)
	checkTradingRules(doc, rs, res)
	checkEndpoints(doc, res)
	return res
}

var knownTopLevelFields = map[string]struct{}{
	model.FieldMarketType:      {},
	model.FieldActivationGroup: {},
	model.FieldDataSources:     {},
	model.FieldAPIKeys:         {},
	model.FieldModelConfig:     {},
	model.FieldAgent:           {},
	model.FieldTradingRules:    {},
}

func checkStructure(doc model.Document, rs RuleSet, res *model.ValidationResult) {
	if mt, ok := doc.StringField(model.FieldMarketType); !ok {
		res.AddError(model.FieldMarketType, "structure.required", "market_type must be a string")
	} else if mt != string(rs.Kind()) {
		res.AddError(model.FieldMarketType, "structure.market_type",
			fmt.Sprintf("market_type %q does not match market kind %q", mt, rs.Kind()))
	}

	if sec, ok := doc.Section(model.FieldDataSources); !ok {
		res.AddError(model.FieldDataSources, "structure.required", "data_sources section is required")
	} else if len(sec) == 0 {
		res.AddError(model.FieldDataSources, "structure.required", "at least one data source is required")
	}

	if _, ok := doc.Section(model.FieldAPIKeys); !ok {
		res.AddError(model.FieldAPIKeys, "structure.required", "api_keys section is required")
	}

	if _, ok := doc.Section(model.FieldModelConfig); !ok {
		res.AddError(model.FieldModelConfig, "structure.required", "model_config section is required")
	} else if mc, err := doc.ModelConfig(); err != nil {
		res.AddError(model.FieldModelConfig, "structure.model_config", err.Error())
	} else {
		for _, f := range ModelConfigFindings(mc, model.FieldModelConfig) {
			res.Findings = append(res.Findings, f)
			if f.Severity == model.SeverityError {
				res.Valid = false
			}
		}
	}

	checkAgent(doc, res)

	if raw, ok := doc[model.FieldTradingRules]; ok {
		if _, isMap := raw.(map[string]any); !isMap {
			res.AddError(model.FieldTradingRules, "structure.type", "trading_rules must be an object")
		}
	}

	for _, field := range sortedKeys(doc) {
		if _, known := knownTopLevelFields[field]; !known {
			res.AddWarning(field, "structure.unknown_field",
				fmt.Sprintf("unknown top-level field %q", field))
		}
	}
}

func checkAgent(doc model.Document, res *model.ValidationResult) {
	sec, ok := doc.Section(model.FieldAgent)
	if !ok {
		res.AddError(model.FieldAgent, "structure.required", "agent section is required")
		return
	}

	requireNumber := func(name string, check func(float64) bool, want string) {
		raw, present := sec[name]
		if !present {
			res.AddError(model.FieldAgent+"."+name, "structure.required", name+" is required")
			return
		}
		v, isNum := numeric(raw)
		if !isNum {
			res.AddError(model.FieldAgent+"."+name, "structure.type", name+" must be a number")
			return
		}
		if !check(v) {
			res.AddError(model.FieldAgent+"."+name, "structure.range", name+" must be "+want)
		}
	}

	requireNumber("max_steps", func(v float64) bool { return v >= 1 }, "at least 1")
	requireNumber("max_retries", func(v float64) bool { return v >= 0 }, "non-negative")
	requireNumber("base_delay_seconds", func(v float64) bool { return v >= 0 }, "non-negative")
	requireNumber("initial_cash", func(v float64) bool { return v > 0 }, "positive")
}

func checkCredentials(doc model.Document, res *model.ValidationResult) {
	for _, provider := range RequiredProviders(doc) {
		value, _ := ResolveCredential(provider, doc)
		if IsConfigured(value) {
			continue
		}
		field := model.FieldAPIKeys + "." + provider
		if value == "" {
			res.AddError(field, "credentials.missing",
				fmt.Sprintf("API key for %q is not configured", provider))
		} else {
			res.AddError(field, "credentials.placeholder",
				fmt.Sprintf("API key for %q is a placeholder value", provider))
		}
	}
}

// checkTradingRules validates the document against its kind's rule set;
// the variants are matched exhaustively.
func checkTradingRules(doc model.Document, rs RuleSet, res *model.ValidationResult) {
	sec, _ := doc.Section(model.FieldTradingRules)

	switch v := rs.(type) {
	case USEquityRules:
		if v.Settlement != SettlementT2 {
			res.AddError(model.FieldTradingRules+".settlement", "rules.settlement",
				fmt.Sprintf("US equities settle %s, not %q", SettlementT2, v.Settlement))
		}
		if sec != nil {
			if _, declared := sec["lot_size"]; declared {
				res.AddWarning(model.FieldTradingRules+".lot_size", "rules.lot_size",
					"lot_size has no effect on a fractional-share market")
			}
		}

	case CNEquityRules:
		if v.LotSize <= 0 {
			res.AddError(model.FieldTradingRules+".lot_size", "rules.lot_size",
				"a positive lot_size is required for A-shares")
		}
		if v.Settlement != SettlementT1 {
			res.AddError(model.FieldTradingRules+".settlement", "rules.settlement",
				fmt.Sprintf("a T+1 market cannot declare %q settlement", v.Settlement))
		}
		if v.PriceLimitPct <= 0 {
			res.AddError(model.FieldTradingRules+".price_limit_pct", "rules.price_limit",
				"a price-limit band is required for this market")
		}

	case CryptoRules:
		if v.Settlement != SettlementT0 {
			res.AddError(model.FieldTradingRules+".settlement", "rules.settlement",
				fmt.Sprintf("crypto settles %s, not %q", SettlementT0, v.Settlement))
		}
		if len(v.Precision) == 0 {
			res.AddWarning(model.FieldTradingRules+".precision", "rules.precision",
				"no instrument precision configured; default bounds apply")
		}
		for _, sym := range sortedKeys(v.Precision) {
			p := v.Precision[sym]
			if p.QuantityDecimals < 0 || p.PriceDecimals < 0 {
				res.AddError(model.FieldTradingRules+".precision."+sym, "rules.precision",
					"precision decimals must be non-negative")
			}
		}

	default:
		res.AddError(model.FieldTradingRules, "rules.rule_set",
			fmt.Sprintf("unhandled rule set kind %q", rs.Kind()))
	}
}

// checkEndpoints verifies every declared data source names a well-formed
// endpoint. Live connectivity probes belong to the data-source collaborator.
func checkEndpoints(doc model.Document, res *model.ValidationResult) {
	sources := doc.DataSources()
	for _, name := range sortedKeys(sources) {
		endpoint := sources[name]
		field := model.FieldDataSources + "." + name
		if endpoint == "" {
			res.AddError(field, "endpoint.missing", "endpoint URL is empty")
			continue
		}
		u, err := url.Parse(endpoint)
		if err != nil || u.Host == "" {
			res.AddError(field, "endpoint.malformed",
				fmt.Sprintf("endpoint %q is not a usable URL", endpoint))
			continue
		}
		switch u.Scheme {
		case "http", "https", "ws", "wss":
		default:
			res.AddError(field, "endpoint.malformed",
				fmt.Sprintf("endpoint scheme %q is not supported", u.Scheme))
		}
	}
}

// ModelConfigFindings checks a typed model configuration: known strategy,
// sane retry/timeout budgets, well-formed unique model entries, at least one
// enabled. Shared by document validation and wholesale config updates.
func ModelConfigFindings(mc model.ModelConfig, prefix string) []model.Finding {
	res := model.NewValidationResult()

	if _, ok := model.ParseStrategy(string(mc.Policy.Strategy)); !ok {
		res.AddError(prefix+".policy.strategy", "model_config.strategy",
			fmt.Sprintf("unknown selection strategy %q", mc.Policy.Strategy))
	}
	if mc.Policy.MaxRetries < 0 {
		res.AddError(prefix+".policy.max_retries", "model_config.retries", "max_retries must be non-negative")
	}
	if mc.Policy.TimeoutSeconds < 0 {
		res.AddError(prefix+".policy.timeout_seconds", "model_config.timeout", "timeout_seconds must be non-negative")
	}

	if len(mc.Models) == 0 {
		res.AddError(prefix+".models", "model_config.models", "at least one model is required")
		return res.Findings
	}

	seen := map[string]struct{}{}
	enabled := 0
	for i, m := range mc.Models {
		field := fmt.Sprintf("%s.models[%d]", prefix, i)
		if m.ID == "" {
			res.AddError(field+".id", "model_config.model_id", "model id is required")
		} else if _, dup := seen[m.ID]; dup {
			res.AddError(field+".id", "model_config.duplicate",
				fmt.Sprintf("duplicate model id %q", m.ID))
		} else {
			seen[m.ID] = struct{}{}
		}
		if m.Provider == "" {
			res.AddError(field+".provider", "model_config.provider", "model provider is required")
		}
		if m.Priority < 0 {
			res.AddError(field+".priority", "model_config.priority", "priority must be non-negative")
		}
		if m.RateLimit.RPM < 0 || m.RateLimit.TPM < 0 {
			res.AddError(field+".rate_limit", "model_config.rate_limit", "rate limits must be non-negative")
		}
		if m.Enabled {
			enabled++
		}
	}
	if enabled == 0 {
		res.AddError(prefix+".models", "model_config.enabled", "at least one model must be enabled")
	}

	return res.Findings
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
