package model

import (
	"strings"
	"time"
)

// MarketKind tags the trading-rule family a market belongs to.
type MarketKind string

const (
	KindUSEquity MarketKind = "us_equity"
	KindCNEquity MarketKind = "cn_equity"
	KindCrypto   MarketKind = "crypto"
)

// Market short codes. Catalog queries use these; model-config operations use
// the "<code>_market" key namespace. Callers must not conflate the two.
const (
	MarketUS     = "us"
	MarketCN     = "cn"
	MarketCrypto = "crypto"
)

// DefaultGroup is the activation group a market belongs to unless its
// document declares one.
const DefaultGroup = "default"

// MarketIDs returns the fixed market set in stable listing order.
func MarketIDs() []string {
	return []string{MarketUS, MarketCN, MarketCrypto}
}

func KnownMarket(id string) bool {
	switch id {
	case MarketUS, MarketCN, MarketCrypto:
		return true
	}
	return false
}

func KindForMarket(id string) MarketKind {
	switch id {
	case MarketCN:
		return KindCNEquity
	case MarketCrypto:
		return KindCrypto
	default:
		return KindUSEquity
	}
}

// MarketKeyForID maps a short code to its model-config key ("us" -> "us_market").
func MarketKeyForID(id string) string {
	return id + "_market"
}

// MarketIDForKey maps a model-config key back to its short code. ok is false
// when the argument is not a known market key (including when a caller passed
// a short code where a key belongs).
func MarketIDForKey(key string) (string, bool) {
	id, found := strings.CutSuffix(key, "_market")
	if !found || !KnownMarket(id) {
		return "", false
	}
	return id, true
}

// MarketProfile is one independently configurable trading context. Profiles
// are created from persisted documents at store initialization, mutated only
// through the switcher, and never destroyed at runtime.
type MarketProfile struct {
	ID       string     `json:"market"`
	Kind     MarketKind `json:"kind"`
	Group    string     `json:"group"`
	IsActive bool       `json:"is_active"`
	Document Document   `json:"config"`
}

// MarketSummary is the listing row for a profile.
type MarketSummary struct {
	ID       string     `json:"market"`
	Kind     MarketKind `json:"kind"`
	Group    string     `json:"group"`
	IsActive bool       `json:"is_active"`
	Digest   string     `json:"digest"`
}

// ActivePointer records which market is active within one activation group.
type ActivePointer struct {
	Market      string    `json:"active_market"`
	ActivatedAt time.Time `json:"activated_at"`
}
