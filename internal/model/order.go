package model

import "github.com/shopspring/decimal"

type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// OrderIntent is a pre-trade check payload: enough detail to evaluate a
// market's trading rules without touching any exchange.
type OrderIntent struct {
	Symbol   string          `json:"symbol" binding:"required"`
	Side     OrderSide       `json:"side" binding:"required,oneof=BUY SELL"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	// RefPrice is the prior close, used by price-limit band checks.
	RefPrice decimal.Decimal `json:"ref_price,omitempty"`
	// BoughtToday marks a position opened in the current session, which
	// T+1 markets may not sell same-day.
	BoughtToday bool `json:"bought_today,omitempty"`
}
