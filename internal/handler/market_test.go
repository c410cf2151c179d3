package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/GoAITrader/tradegate/internal/middleware"
	"github.com/GoAITrader/tradegate/internal/repository"
	"github.com/GoAITrader/tradegate/internal/service"
)

func newMarketRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := repository.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	handler := NewMarketHandler(service.NewSwitcher(store, nil))

	router := gin.New()
	router.Use(middleware.ErrorHandler())
	v1 := router.Group("/v1")
	v1.GET("/markets", handler.List)
	v1.GET("/markets/:id", handler.Get)
	v1.POST("/markets/:id/activate", handler.Activate)
	v1.POST("/markets/:id/orders/check", handler.CheckOrder)
	v1.GET("/active", handler.Active)
	return router
}

// clearCredentialEnv blanks the env overrides the seeded documents resolve,
// so validation outcomes do not depend on the developer's shell.
func clearCredentialEnv(t *testing.T) {
	t.Helper()
	for _, v := range []string{
		"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "ALPHAVANTAGE_API_KEY",
		"DEEPSEEK_API_KEY", "DASHSCOPE_API_KEY", "ZHIPU_API_KEY", "TUSHARE_TOKEN",
		"BINANCE_API_KEY", "BINANCE_SECRET_KEY",
	} {
		t.Setenv(v, "")
	}
}

func TestActivateRejectsPlaceholderCredentials(t *testing.T) {
	clearCredentialEnv(t)
	router := newMarketRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/markets/cn/activate", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for placeholder credentials, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json response: %v", err)
	}
	if resp["code"] != "VALIDATION_FAILED" {
		t.Fatalf("expected VALIDATION_FAILED code, got %v", resp["code"])
	}
	details, ok := resp["details"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected validation details in response body")
	}
	findings, ok := details["findings"].([]interface{})
	if !ok || len(findings) == 0 {
		t.Fatalf("expected itemized findings, got %v", details["findings"])
	}

	// The rejected switch must leave the group's pointer untouched.
	req2 := httptest.NewRequest(http.MethodGet, "/v1/active", nil)
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req2)

	var active []map[string]interface{}
	if err := json.Unmarshal(rec2.Body.Bytes(), &active); err != nil {
		t.Fatalf("invalid json response: %v", err)
	}
	if len(active) != 1 || active[0]["market"] != "us" {
		t.Fatalf("expected us to stay active, got %v", active)
	}
}

func TestActivateSkipValidationFlipsPointer(t *testing.T) {
	clearCredentialEnv(t)
	router := newMarketRouter(t)

	body, _ := json.Marshal(map[string]bool{"skip_validation": true})
	req := httptest.NewRequest(http.MethodPost, "/v1/markets/cn/activate", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with skip_validation, got %d: %s", rec.Code, rec.Body.String())
	}

	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("invalid json response: %v", err)
	}
	if result["previous"] != "us" {
		t.Fatalf("expected previous market us, got %v", result["previous"])
	}

	// Activating the now-active market is an idempotent no-op.
	req2 := httptest.NewRequest(http.MethodPost, "/v1/markets/cn/activate", bytes.NewReader(body))
	req2.Header.Set("Content-Type", "application/json")
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req2)

	if rec2.Code != http.StatusOK {
		t.Fatalf("expected 200 re-activating active market, got %d", rec2.Code)
	}
	var again map[string]interface{}
	if err := json.Unmarshal(rec2.Body.Bytes(), &again); err != nil {
		t.Fatalf("invalid json response: %v", err)
	}
	if again["already_active"] != true {
		t.Fatalf("expected already_active, got %v", again)
	}
}

func TestGetUnknownMarketReturns404(t *testing.T) {
	router := newMarketRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/markets/jp", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown market, got %d", rec.Code)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json response: %v", err)
	}
	if resp["code"] != "NOT_FOUND" {
		t.Fatalf("expected NOT_FOUND code, got %v", resp["code"])
	}
}

func TestCheckOrderReportsLotSizeViolation(t *testing.T) {
	router := newMarketRouter(t)

	payload := map[string]interface{}{
		"symbol":   "600519",
		"side":     "BUY",
		"quantity": "150",
		"price":    "1700",
	}
	body, _ := json.Marshal(payload)

	req := httptest.NewRequest(http.MethodPost, "/v1/markets/cn/orders/check", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp OrderCheckResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json response: %v", err)
	}
	if resp.OK {
		t.Fatalf("expected order check to fail for a partial lot")
	}
	found := false
	for _, f := range resp.Findings {
		if f.Rule == "order.lot_size" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a lot size finding, got %v", resp.Findings)
	}

	// A whole multiple of the lot passes.
	payload["quantity"] = "200"
	body, _ = json.Marshal(payload)
	req2 := httptest.NewRequest(http.MethodPost, "/v1/markets/cn/orders/check", bytes.NewReader(body))
	req2.Header.Set("Content-Type", "application/json")
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req2)

	var resp2 OrderCheckResponse
	if err := json.Unmarshal(rec2.Body.Bytes(), &resp2); err != nil {
		t.Fatalf("invalid json response: %v", err)
	}
	if !resp2.OK {
		t.Fatalf("expected order check to pass, got findings %v", resp2.Findings)
	}
}
