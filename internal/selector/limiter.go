package selector

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/GoAITrader/tradegate/internal/model"
)

// limiterBank holds one token-bucket pair per (market, model). Buckets are
// created lazily from the rate-limit spec in force at first use, rebuilt when
// that spec changes, and dropped when the market's configuration changes.
type limiterBank struct {
	mu      sync.Mutex
	entries map[limiterKey]*modelLimiter
}

type limiterKey struct {
	market  string
	modelID string
}

func newLimiterBank() *limiterBank {
	return &limiterBank{entries: map[limiterKey]*modelLimiter{}}
}

func (b *limiterBank) limiter(market, modelID string, spec model.RateLimitSpec) *modelLimiter {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := limiterKey{market: market, modelID: modelID}
	lim, ok := b.entries[key]
	if ok && lim.spec == spec {
		return lim
	}
	lim = newModelLimiter(spec)
	b.entries[key] = lim
	return lim
}

func (b *limiterBank) reset(market string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key := range b.entries {
		if key.market == market {
			delete(b.entries, key)
		}
	}
}

// modelLimiter pairs a per-minute request bucket with a per-minute token
// bucket. A zero RPM or TPM leaves that bucket nil, meaning unlimited.
type modelLimiter struct {
	mu   sync.Mutex
	spec model.RateLimitSpec
	rpm  *rate.Limiter
	tpm  *rate.Limiter
}

func newModelLimiter(spec model.RateLimitSpec) *modelLimiter {
	l := &modelLimiter{spec: spec}
	if spec.RPM > 0 {
		l.rpm = rate.NewLimiter(rate.Limit(float64(spec.RPM)/60.0), spec.RPM)
	}
	if spec.TPM > 0 {
		l.tpm = rate.NewLimiter(rate.Limit(float64(spec.TPM)/60.0), spec.TPM)
	}
	return l
}

// allow is the fail-fast check-and-consume: one request token plus the token
// estimate are admitted together or not at all, and the call never waits.
func (l *modelLimiter) allow(tokens int) bool {
	if l.rpm == nil && l.tpm == nil {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()

	var rpmRes *rate.Reservation
	if l.rpm != nil {
		rpmRes = l.rpm.ReserveN(now, 1)
		if !rpmRes.OK() || rpmRes.DelayFrom(now) > 0 {
			rpmRes.CancelAt(now)
			return false
		}
	}
	if l.tpm != nil && tokens > 0 {
		tpmRes := l.tpm.ReserveN(now, tokens)
		if !tpmRes.OK() || tpmRes.DelayFrom(now) > 0 {
			tpmRes.CancelAt(now)
			if rpmRes != nil {
				rpmRes.CancelAt(now)
			}
			return false
		}
	}
	return true
}
