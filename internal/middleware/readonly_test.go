package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func newReadOnlyRouter(enabled bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandler(), ReadOnlyMiddleware(enabled))
	ok := func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) }
	r.GET("/v1/markets", ok)
	r.PUT("/v1/markets/:id", ok)
	r.POST("/v1/markets/:id/activate", ok)
	r.POST("/v1/cost/estimate", ok)
	r.POST("/v1/model-config/:key/select", ok)
	return r
}

func TestReadOnlyBlocksMutations(t *testing.T) {
	r := newReadOnlyRouter(true)

	cases := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/v1/markets", http.StatusOK},
		{http.MethodPut, "/v1/markets/us", http.StatusForbidden},
		{http.MethodPost, "/v1/markets/us/activate", http.StatusForbidden},
		{http.MethodPost, "/v1/cost/estimate", http.StatusOK},
		{http.MethodPost, "/v1/model-config/us_market/select", http.StatusOK},
	}

	for _, tc := range cases {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(tc.method, tc.path, nil)
		r.ServeHTTP(w, req)
		if w.Code != tc.want {
			t.Fatalf("%s %s: got %d, want %d", tc.method, tc.path, w.Code, tc.want)
		}
	}
}

func TestReadOnlyDisabledPassesEverything(t *testing.T) {
	r := newReadOnlyRouter(false)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/markets/us/activate", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected pass-through when disabled, got %d", w.Code)
	}
}
