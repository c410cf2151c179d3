// Package market exposes kind-specific trading behavior behind a single
// Capability interface. Handlers and services pick a capability off the
// profile they loaded and never branch on the market kind themselves.
package market

import (
	"sort"

	"github.com/GoAITrader/tradegate/internal/model"
	"github.com/GoAITrader/tradegate/internal/rules"
)

// Capability answers the kind-specific questions a caller may put to a
// market: which rule set governs it, whether an order intent would pass
// those rules, and a client-facing description of the constraints.
type Capability interface {
	Kind() model.MarketKind
	Settlement() string
	CheckOrder(o model.OrderIntent) []model.Finding
	Describe() map[string]any
}

// ForProfile builds the capability for a loaded profile, folding the
// document's trading_rules overrides into the kind defaults.
func ForProfile(p *model.MarketProfile) Capability {
	switch rs := rules.ForProfile(p).(type) {
	case rules.CNEquityRules:
		return cnEquityCapability{rs: rs}
	case rules.CryptoRules:
		return cryptoCapability{rs: rs}
	case rules.USEquityRules:
		return usEquityCapability{rs: rs}
	default:
		return usEquityCapability{rs: rules.ForKind(model.KindUSEquity).(rules.USEquityRules)}
	}
}

var (
	_ Capability = usEquityCapability{}
	_ Capability = cnEquityCapability{}
	_ Capability = cryptoCapability{}
)

// usEquityCapability: fractional quantities, no board lots, no exchange
// price bands. T+2 is a settlement lag, not a trading restriction.
type usEquityCapability struct {
	rs rules.USEquityRules
}

func (usEquityCapability) Kind() model.MarketKind { return model.KindUSEquity }

func (c usEquityCapability) Settlement() string { return c.rs.Settlement }

func (c usEquityCapability) CheckOrder(o model.OrderIntent) []model.Finding {
	return rules.CheckOrder(c.rs, o)
}

func (c usEquityCapability) Describe() map[string]any {
	return map[string]any{
		"settlement":            c.rs.Settlement,
		"fractional_quantities": true,
		"board_lots":            false,
		"price_limit":           false,
	}
}

// cnEquityCapability: board-lot sizing, T+1 same-day sell restriction and
// daily price-limit bands.
type cnEquityCapability struct {
	rs rules.CNEquityRules
}

func (cnEquityCapability) Kind() model.MarketKind { return model.KindCNEquity }

func (c cnEquityCapability) Settlement() string { return c.rs.Settlement }

func (c cnEquityCapability) CheckOrder(o model.OrderIntent) []model.Finding {
	return rules.CheckOrder(c.rs, o)
}

func (c cnEquityCapability) Describe() map[string]any {
	return map[string]any{
		"settlement":      c.rs.Settlement,
		"lot_size":        c.rs.LotSize,
		"price_limit_pct": c.rs.PriceLimitPct,
		"same_day_sell":   false,
	}
}

// cryptoCapability: continuous settlement with per-instrument precision.
type cryptoCapability struct {
	rs rules.CryptoRules
}

func (cryptoCapability) Kind() model.MarketKind { return model.KindCrypto }

func (c cryptoCapability) Settlement() string { return c.rs.Settlement }

func (c cryptoCapability) CheckOrder(o model.OrderIntent) []model.Finding {
	return rules.CheckOrder(c.rs, o)
}

func (c cryptoCapability) Describe() map[string]any {
	symbols := make([]string, 0, len(c.rs.Precision))
	for sym := range c.rs.Precision {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return map[string]any{
		"settlement":  c.rs.Settlement,
		"continuous":  true,
		"instruments": symbols,
		"precision":   c.rs.Precision,
	}
}
