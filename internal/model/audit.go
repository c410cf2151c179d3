package model

import (
	"time"
)

// AuditLog is one management-operation audit record.
type AuditLog struct {
	ID        string `json:"id"`        // request UUID
	Market    string `json:"market"`    // market or market key the call touched
	Operation string `json:"operation"` // route-level operation name
	Method    string `json:"method"`
	Path      string `json:"path"`
	IP        string `json:"ip"`
	UserAgent string `json:"user_agent"`

	// Request/response details; bodies are stored after credential redaction.
	RequestBody   string `json:"request_body"`
	RequestHeader string `json:"request_header"`
	StatusCode    int    `json:"status_code"`
	ResponseBody  string `json:"response_body"`
	LatencyMs     int64  `json:"latency_ms"`

	// Free-form operation context (validation counts, chosen model, ...).
	Context map[string]interface{} `json:"context"`

	CreatedAt time.Time `json:"created_at"`
}
