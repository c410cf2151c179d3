package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/GoAITrader/tradegate/internal/model"
	"github.com/GoAITrader/tradegate/internal/service"
)

const ContextAuditLog = "audit_log"

// bodyLogWriter duplicates the response body into a buffer so the audit
// entry can carry it.
type bodyLogWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w bodyLogWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// AuditMiddleware records every management request: request/response bodies
// (credentials redacted), latency, status and the market the route touched.
// Entries are handed to the audit service asynchronously.
func AuditMiddleware(auditSvc *service.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqID := uuid.New().String()
		c.Header("X-Request-ID", reqID)

		// The body is consumed here and restored so handlers can still bind it.
		var reqBodyBytes []byte
		if c.Request.Body != nil {
			reqBodyBytes, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(reqBodyBytes))
		}

		auditEntry := &model.AuditLog{
			ID:        reqID,
			Method:    c.Request.Method,
			Path:      c.Request.URL.Path,
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
			CreatedAt: start,
			Context:   make(map[string]any),
		}
		c.Set(ContextAuditLog, auditEntry)

		blw := &bodyLogWriter{body: bytes.NewBufferString(""), ResponseWriter: c.Writer}
		c.Writer = blw

		c.Next()

		if route := c.FullPath(); route != "" {
			auditEntry.Operation = c.Request.Method + " " + route
		}
		auditEntry.Market = auditMarket(c)
		auditEntry.RequestHeader = c.ContentType()
		auditEntry.RequestBody = redactAuditBody(c.Request.URL.Path, reqBodyBytes)
		auditEntry.StatusCode = c.Writer.Status()
		auditEntry.ResponseBody = redactAuditBody(c.Request.URL.Path, blw.body.Bytes())
		auditEntry.LatencyMs = time.Since(start).Milliseconds()

		auditSvc.Log(auditEntry)
	}
}

// AddAuditContext lets handlers attach operation-specific fields to the
// request's audit entry.
func AddAuditContext(c *gin.Context, key string, value any) {
	if val, exists := c.Get(ContextAuditLog); exists {
		if entry, ok := val.(*model.AuditLog); ok {
			entry.Context[key] = value
		}
	}
}

// auditMarket resolves which market a route touched. Market routes carry the
// short code in :id; model-config routes carry the market key in :key.
func auditMarket(c *gin.Context) string {
	if id := c.Param("id"); id != "" {
		return id
	}
	if key := c.Param("key"); key != "" {
		if id, ok := model.MarketIDForKey(key); ok {
			return id
		}
		return key
	}
	if market := c.Param("market"); market != "" {
		return market
	}
	return ""
}

func redactAuditBody(path string, body []byte) string {
	if len(body) == 0 {
		return ""
	}
	if !isSensitivePath(path) {
		return string(body)
	}
	redacted, ok := redactJSON(body)
	if !ok {
		return "[redacted]"
	}
	return string(redacted)
}

// isSensitivePath marks routes whose payloads may carry provider
// credentials: market documents, model configs and config bundles.
func isSensitivePath(path string) bool {
	switch {
	case strings.HasPrefix(path, "/v1/markets"):
		return true
	case strings.HasPrefix(path, "/v1/model-config"):
		return true
	case strings.HasPrefix(path, "/v1/export"):
		return true
	case strings.HasPrefix(path, "/v1/import"):
		return true
	default:
		return false
	}
}

func redactJSON(body []byte) ([]byte, bool) {
	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, false
	}
	redactValue(&data)
	out, err := json.Marshal(data)
	if err != nil {
		return nil, false
	}
	return out, true
}

func redactValue(v *any) {
	switch raw := (*v).(type) {
	case map[string]any:
		for key, val := range raw {
			if isSensitiveKey(key) {
				raw[key] = "***"
				continue
			}
			vv := val
			redactValue(&vv)
			raw[key] = vv
		}
	case []any:
		for i, val := range raw {
			vv := val
			redactValue(&vv)
			raw[i] = vv
		}
	}
}

// isSensitiveKey matches credential fields wherever they appear. "api_keys"
// covers the whole provider->key map in market documents.
func isSensitiveKey(key string) bool {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "api_key",
		"api_keys",
		"api_secret",
		"secret_key",
		"access_token",
		"token",
		"password",
		"credential",
		"credentials":
		return true
	default:
		return false
	}
}
