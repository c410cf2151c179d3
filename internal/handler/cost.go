package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GoAITrader/tradegate/internal/model"
	"github.com/GoAITrader/tradegate/internal/pkg/apperrors"
	"github.com/GoAITrader/tradegate/internal/pkg/metrics"
	"github.com/GoAITrader/tradegate/internal/pricing"
)

type CostHandler struct{}

func NewCostHandler() *CostHandler {
	return &CostHandler{}
}

func (h *CostHandler) Estimate(c *gin.Context) {
	var req model.EstimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidDocument(err.Error()))
		return
	}

	estimate, err := pricing.Estimate(req.Provider, req.Model, req.InputTokens, req.OutputTokens)
	if err != nil {
		c.Error(err)
		return
	}

	metrics.CostEstimatesTotal.WithLabelValues(estimate.Provider, estimate.Model).Inc()
	c.JSON(http.StatusOK, estimate)
}

// PriceTable serves the static price list so UIs can render cost hints
// without a round trip per model.
func (h *CostHandler) PriceTable(c *gin.Context) {
	c.JSON(http.StatusOK, pricing.Table())
}
