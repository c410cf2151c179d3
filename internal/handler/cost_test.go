package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/GoAITrader/tradegate/internal/middleware"
	"github.com/GoAITrader/tradegate/internal/model"
)

func newCostRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	handler := NewCostHandler()
	router := gin.New()
	router.Use(middleware.ErrorHandler())
	router.POST("/v1/cost/estimate", handler.Estimate)
	router.GET("/v1/cost/prices", handler.PriceTable)
	return router
}

func TestEstimateGPT4Turbo(t *testing.T) {
	router := newCostRouter(t)

	body, _ := json.Marshal(map[string]interface{}{
		"provider":      "openai",
		"model":         "gpt-4-turbo",
		"input_tokens":  2000,
		"output_tokens": 1500,
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/cost/estimate", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var est model.CostEstimate
	if err := json.Unmarshal(rec.Body.Bytes(), &est); err != nil {
		t.Fatalf("invalid json response: %v", err)
	}
	// 2000 in at $0.01/1K plus 1500 out at $0.03/1K.
	want := decimal.RequireFromString("0.065")
	if !est.Total.Equal(want) {
		t.Fatalf("expected total %s, got %s", want, est.Total)
	}
	if est.Currency != "USD" {
		t.Fatalf("expected USD, got %s", est.Currency)
	}
}

func TestEstimateUnknownModelReturns404(t *testing.T) {
	router := newCostRouter(t)

	body, _ := json.Marshal(map[string]interface{}{
		"provider":     "openai",
		"model":        "gpt-99",
		"input_tokens": 100,
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/cost/estimate", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unpriced model, got %d", rec.Code)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json response: %v", err)
	}
	if resp["code"] != "UNKNOWN_MODEL" {
		t.Fatalf("expected UNKNOWN_MODEL code, got %v", resp["code"])
	}
}

func TestPriceTableIsSorted(t *testing.T) {
	router := newCostRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/cost/prices", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var table []map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &table); err != nil {
		t.Fatalf("invalid json response: %v", err)
	}
	if len(table) == 0 {
		t.Fatalf("expected a non-empty price table")
	}
	for i := 1; i < len(table); i++ {
		prev := table[i-1]["provider"].(string) + "/" + table[i-1]["model"].(string)
		cur := table[i]["provider"].(string) + "/" + table[i]["model"].(string)
		if cur < prev {
			t.Fatalf("price table out of order: %s before %s", prev, cur)
		}
	}
}
