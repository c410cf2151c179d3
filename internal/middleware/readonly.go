package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GoAITrader/tradegate/internal/pkg/apperrors"
)

// Computational POSTs that mutate no configuration. They stay available when
// the gateway runs read-only so trading agents keep working.
var readOnlyExempt = map[string]struct{}{
	"/v1/markets/:id/orders/check":  {},
	"/v1/model-config/:key/select":  {},
	"/v1/model-config/:key/outcome": {},
	"/v1/cost/estimate":             {},
}

// ReadOnlyMiddleware rejects configuration mutations when the gateway is in
// read-only mode.
func ReadOnlyMiddleware(enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !enabled {
			c.Next()
			return
		}

		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		if _, ok := readOnlyExempt[c.FullPath()]; ok {
			c.Next()
			return
		}

		c.Error(apperrors.New(apperrors.ErrReadOnly, "read-only mode enabled", nil))
		c.Abort()
	}
}
