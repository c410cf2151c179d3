package rules

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/GoAITrader/tradegate/internal/model"
)

// fallbackPrecision bounds instruments that have no configured profile.
var fallbackPrecision = InstrumentPrecision{QuantityDecimals: 8, PriceDecimals: 8}

// CheckOrder evaluates an order intent against a market's rule set and
// returns every violated constraint. An empty slice means the order would be
// accepted by this market's rules (exchange-side checks still apply).
func CheckOrder(rs RuleSet, o model.OrderIntent) []model.Finding {
	res := model.NewValidationResult()

	if !o.Quantity.IsPositive() {
		res.AddError("quantity", "order.quantity", "quantity must be positive")
	}

	switch v := rs.(type) {
	case USEquityRules:
		// Fractional shares and same-day sells are allowed; T+2 is a
		// settlement lag, not a trading restriction.

	case CNEquityRules:
		if v.LotSize > 0 && o.Quantity.IsPositive() {
			lot := decimal.NewFromInt(v.LotSize)
			if !o.Quantity.Mod(lot).IsZero() {
				res.AddError("quantity", "order.lot_size",
					fmt.Sprintf("quantity %s is not a multiple of lot size %d", o.Quantity, v.LotSize))
			}
		}
		if o.Side == model.SideSell && o.BoughtToday {
			res.AddError("side", "order.settlement",
				"T+1 market: shares bought today cannot be sold in the same session")
		}
		if v.PriceLimitPct > 0 && o.Price.IsPositive() && o.RefPrice.IsPositive() {
			band := o.RefPrice.Mul(decimal.NewFromFloat(v.PriceLimitPct))
			diff := o.Price.Sub(o.RefPrice).Abs()
			if diff.GreaterThan(band) {
				res.AddError("price", "order.price_limit",
					fmt.Sprintf("price %s is outside the ±%.0f%% band around %s",
						o.Price, v.PriceLimitPct*100, o.RefPrice))
			}
		}

	case CryptoRules:
		prec, ok := v.Precision[o.Symbol]
		if !ok {
			prec = fallbackPrecision
			res.AddWarning("symbol", "order.precision",
				fmt.Sprintf("no precision profile for %s; default bounds applied", o.Symbol))
		}
		if places := decimalPlaces(o.Quantity); places > prec.QuantityDecimals {
			res.AddError("quantity", "order.precision",
				fmt.Sprintf("quantity %s exceeds %d decimal places for %s", o.Quantity, prec.QuantityDecimals, o.Symbol))
		}
		if o.Price.IsPositive() {
			if places := decimalPlaces(o.Price); places > prec.PriceDecimals {
				res.AddError("price", "order.precision",
					fmt.Sprintf("price %s exceeds %d decimal places for %s", o.Price, prec.PriceDecimals, o.Symbol))
			}
		}
		if prec.MinQuantity > 0 && o.Quantity.IsPositive() {
			minQty := decimal.NewFromFloat(prec.MinQuantity)
			if o.Quantity.LessThan(minQty) {
				res.AddError("quantity", "order.min_quantity",
					fmt.Sprintf("quantity %s is below the minimum %s for %s", o.Quantity, minQty, o.Symbol))
			}
		}

	default:
		res.AddError("", "order.rule_set", fmt.Sprintf("unhandled rule set kind %q", rs.Kind()))
	}

	return res.Findings
}

// decimalPlaces counts significant fractional digits, ignoring trailing
// zeros ("1.50" has one).
func decimalPlaces(d decimal.Decimal) int32 {
	if d.Exponent() >= 0 {
		return 0
	}
	for n := int32(0); n < 12; n++ {
		if d.Round(n).Equal(d) {
			return n
		}
	}
	return 12
}
