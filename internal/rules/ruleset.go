package rules

import (
	"github.com/GoAITrader/tradegate/internal/model"
)

// Settlement modes markets may declare.
const (
	SettlementT0 = "t+0"
	SettlementT1 = "t+1"
	SettlementT2 = "t+2"
)

// RuleSet is a closed set of trading-rule variants, one per market kind.
// Each variant enumerates its own checks; consumers match variants
// exhaustively instead of probing for optional attributes.
type RuleSet interface {
	Kind() model.MarketKind
	sealedRuleSet()
}

// USEquityRules cover US equities: fractional quantities allowed, T+2
// settlement, no exchange price-limit bands, no board lots.
type USEquityRules struct {
	Settlement string
}

func (USEquityRules) Kind() model.MarketKind { return model.KindUSEquity }
func (USEquityRules) sealedRuleSet()         {}

// CNEquityRules cover A-shares: board-lot sizing, T+1 settlement, daily
// price-limit bands relative to the prior close.
type CNEquityRules struct {
	LotSize       int64
	Settlement    string
	PriceLimitPct float64
}

func (CNEquityRules) Kind() model.MarketKind { return model.KindCNEquity }
func (CNEquityRules) sealedRuleSet()         {}

// InstrumentPrecision bounds the decimal places an instrument accepts.
type InstrumentPrecision struct {
	QuantityDecimals int32   `json:"quantity_decimals"`
	PriceDecimals    int32   `json:"price_decimals"`
	MinQuantity      float64 `json:"min_quantity,omitempty"`
}

// CryptoRules cover spot crypto: continuous T+0 settlement with
// per-instrument quantity/price precision.
type CryptoRules struct {
	Settlement string
	Precision  map[string]InstrumentPrecision
}

func (CryptoRules) Kind() model.MarketKind { return model.KindCrypto }
func (CryptoRules) sealedRuleSet()         {}

// defaultCryptoPrecision mirrors the exchange filters of the instruments the
// platform trades by default.
func defaultCryptoPrecision() map[string]InstrumentPrecision {
	return map[string]InstrumentPrecision{
		"BTCUSDT":  {QuantityDecimals: 6, PriceDecimals: 2, MinQuantity: 0.0001},
		"ETHUSDT":  {QuantityDecimals: 5, PriceDecimals: 2, MinQuantity: 0.001},
		"BNBUSDT":  {QuantityDecimals: 4, PriceDecimals: 2, MinQuantity: 0.01},
		"ADAUSDT":  {QuantityDecimals: 0, PriceDecimals: 4, MinQuantity: 1},
		"DOTUSDT":  {QuantityDecimals: 3, PriceDecimals: 3, MinQuantity: 0.1},
		"XRPUSDT":  {QuantityDecimals: 1, PriceDecimals: 4, MinQuantity: 1},
		"LTCUSDT":  {QuantityDecimals: 3, PriceDecimals: 2, MinQuantity: 0.01},
		"LINKUSDT": {QuantityDecimals: 2, PriceDecimals: 3, MinQuantity: 0.1},
		"BCHUSDT":  {QuantityDecimals: 3, PriceDecimals: 2, MinQuantity: 0.01},
		"XLMUSDT":  {QuantityDecimals: 1, PriceDecimals: 5, MinQuantity: 1},
	}
}

// ForKind returns the default rule set of a market kind.
func ForKind(kind model.MarketKind) RuleSet {
	switch kind {
	case model.KindCNEquity:
		return CNEquityRules{
			LotSize:       100,
			Settlement:    SettlementT1,
			PriceLimitPct: 0.10,
		}
	case model.KindCrypto:
		return CryptoRules{
			Settlement: SettlementT0,
			Precision:  defaultCryptoPrecision(),
		}
	default:
		return USEquityRules{Settlement: SettlementT2}
	}
}

// FromDocument builds the effective rule set for a market: kind defaults
// overridden by the document's trading_rules section where present.
func FromDocument(kind model.MarketKind, doc model.Document) RuleSet {
	base := ForKind(kind)
	sec, ok := doc.Section(model.FieldTradingRules)
	if !ok {
		return base
	}

	switch rs := base.(type) {
	case USEquityRules:
		if s, ok := sec["settlement"].(string); ok && s != "" {
			rs.Settlement = s
		}
		return rs
	case CNEquityRules:
		if v, ok := numeric(sec["lot_size"]); ok {
			rs.LotSize = int64(v)
		}
		if s, ok := sec["settlement"].(string); ok && s != "" {
			rs.Settlement = s
		}
		if v, ok := numeric(sec["price_limit_pct"]); ok {
			rs.PriceLimitPct = v
		}
		return rs
	case CryptoRules:
		if s, ok := sec["settlement"].(string); ok && s != "" {
			rs.Settlement = s
		}
		if raw, ok := sec["precision"].(map[string]any); ok {
			merged := make(map[string]InstrumentPrecision, len(rs.Precision))
			for sym, p := range rs.Precision {
				merged[sym] = p
			}
			for sym, rawSpec := range raw {
				spec, ok := rawSpec.(map[string]any)
				if !ok {
					continue
				}
				entry := merged[sym]
				if v, ok := numeric(spec["quantity_decimals"]); ok {
					entry.QuantityDecimals = int32(v)
				}
				if v, ok := numeric(spec["price_decimals"]); ok {
					entry.PriceDecimals = int32(v)
				}
				if v, ok := numeric(spec["min_quantity"]); ok {
					entry.MinQuantity = v
				}
				merged[sym] = entry
			}
			rs.Precision = merged
		}
		return rs
	}
	return base
}

// ForProfile is FromDocument keyed off a loaded profile.
func ForProfile(p *model.MarketProfile) RuleSet {
	if p == nil {
		return ForKind(model.KindUSEquity)
	}
	return FromDocument(p.Kind, p.Document)
}

// numeric accepts the number representations a JSON document can carry.
func numeric(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}
