package middleware

import (
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/GoAITrader/tradegate/internal/config"
	"github.com/GoAITrader/tradegate/internal/pkg/apperrors"
)

// RateLimitMiddleware applies a per-client-IP token bucket to the management
// surface. Disabled limiters pass everything through.
func RateLimitMiddleware(cfg config.RateLimitConfig) gin.HandlerFunc {
	var (
		mu       sync.Mutex
		limiters = make(map[string]*rate.Limiter)
	)

	limiterFor := func(ip string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		if lim, ok := limiters[ip]; ok {
			return lim
		}
		lim := rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst)
		limiters[ip] = lim
		return lim
	}

	return func(c *gin.Context) {
		if !cfg.Enabled {
			c.Next()
			return
		}

		if !limiterFor(c.ClientIP()).Allow() {
			c.Error(apperrors.New(apperrors.ErrRateLimited, "request rate limit exceeded", nil))
			c.Abort()
			return
		}

		c.Next()
	}
}
