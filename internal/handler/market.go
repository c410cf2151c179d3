package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GoAITrader/tradegate/internal/market"
	"github.com/GoAITrader/tradegate/internal/middleware"
	"github.com/GoAITrader/tradegate/internal/model"
	"github.com/GoAITrader/tradegate/internal/pkg/apperrors"
	"github.com/GoAITrader/tradegate/internal/service"
)

type MarketHandler struct {
	svc *service.Switcher
}

func NewMarketHandler(svc *service.Switcher) *MarketHandler {
	return &MarketHandler{svc: svc}
}

func (h *MarketHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.List())
}

func (h *MarketHandler) Get(c *gin.Context) {
	profile, err := h.svc.Get(c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *MarketHandler) Save(c *gin.Context) {
	var doc model.Document
	if err := c.ShouldBindJSON(&doc); err != nil {
		c.Error(apperrors.NewInvalidDocument(err.Error()))
		return
	}
	if err := h.svc.SaveDocument(c.Param("id"), doc); err != nil {
		c.Error(err)
		return
	}
	middleware.AddAuditContext(c, "action", "save_config")
	c.JSON(http.StatusOK, gin.H{"status": "saved", "market": c.Param("id")})
}

func (h *MarketHandler) Validate(c *gin.Context) {
	result, err := h.svc.Validate(c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *MarketHandler) Activate(c *gin.Context) {
	var req model.ActivateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(apperrors.NewInvalidDocument(err.Error()))
			return
		}
	}

	result, err := h.svc.SwitchTo(c.Param("id"), req)
	if err != nil {
		c.Error(err)
		return
	}

	middleware.AddAuditContext(c, "action", "activate")
	middleware.AddAuditContext(c, "skip_validation", req.SkipValidation)
	c.JSON(http.StatusOK, result)
}

func (h *MarketHandler) Summary(c *gin.Context) {
	summary, err := h.svc.Summary(c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *MarketHandler) Keys(c *gin.Context) {
	keys, err := h.svc.CheckKeys(c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, keys)
}

func (h *MarketHandler) Active(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Active())
}

// OrderCheckResponse reports an order pre-check against the market's rules.
type OrderCheckResponse struct {
	Market   string           `json:"market"`
	Kind     model.MarketKind `json:"kind"`
	OK       bool             `json:"ok"`
	Findings []model.Finding  `json:"findings"`
	Rules    map[string]any   `json:"rules"`
}

func (h *MarketHandler) CheckOrder(c *gin.Context) {
	profile, err := h.svc.Get(c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	var intent model.OrderIntent
	if err := c.ShouldBindJSON(&intent); err != nil {
		c.Error(apperrors.NewInvalidDocument(err.Error()))
		return
	}

	capability := market.ForProfile(profile)
	findings := capability.CheckOrder(intent)
	if findings == nil {
		findings = []model.Finding{}
	}

	ok := true
	for _, f := range findings {
		if f.Severity == model.SeverityError {
			ok = false
			break
		}
	}

	middleware.AddAuditContext(c, "symbol", intent.Symbol)
	middleware.AddAuditContext(c, "order_ok", ok)
	c.JSON(http.StatusOK, OrderCheckResponse{
		Market:   profile.ID,
		Kind:     capability.Kind(),
		OK:       ok,
		Findings: findings,
		Rules:    capability.Describe(),
	})
}

func (h *MarketHandler) CommonSettings(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.CommonSettings())
}

func (h *MarketHandler) UpdateCommonSettings(c *gin.Context) {
	var req model.CommonSettings
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidDocument(err.Error()))
		return
	}
	if err := h.svc.UpdateCommonSettings(req); err != nil {
		c.Error(err)
		return
	}
	middleware.AddAuditContext(c, "action", "update_common_settings")
	c.JSON(http.StatusOK, h.svc.CommonSettings())
}

func (h *MarketHandler) Export(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Export())
}

func (h *MarketHandler) Import(c *gin.Context) {
	var bundle model.ConfigBundle
	if err := c.ShouldBindJSON(&bundle); err != nil {
		c.Error(apperrors.NewInvalidDocument(err.Error()))
		return
	}
	if err := h.svc.Import(bundle); err != nil {
		c.Error(err)
		return
	}
	middleware.AddAuditContext(c, "action", "import")
	middleware.AddAuditContext(c, "markets", len(bundle.Markets))
	c.JSON(http.StatusOK, gin.H{"status": "imported", "markets": len(bundle.Markets)})
}
