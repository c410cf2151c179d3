package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GoAITrader/tradegate/internal/middleware"
	"github.com/GoAITrader/tradegate/internal/model"
	"github.com/GoAITrader/tradegate/internal/pkg/apperrors"
	"github.com/GoAITrader/tradegate/internal/registry"
	"github.com/GoAITrader/tradegate/internal/selector"
)

type ModelsHandler struct {
	reg *registry.Registry
	sel *selector.Selector
}

func NewModelsHandler(reg *registry.Registry, sel *selector.Selector) *ModelsHandler {
	return &ModelsHandler{reg: reg, sel: sel}
}

// List serves the catalog, optionally scoped to one market short code and
// one provider.
func (h *ModelsHandler) List(c *gin.Context) {
	var entries []registry.CatalogEntry
	if marketID := c.Query("market"); marketID != "" {
		scoped, err := h.reg.Available(marketID)
		if err != nil {
			c.Error(err)
			return
		}
		entries = scoped
	} else {
		entries = registry.Catalog()
	}

	if provider := c.Query("provider"); provider != "" {
		filtered := make([]registry.CatalogEntry, 0, len(entries))
		for _, e := range entries {
			if e.Provider == provider {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}

	c.JSON(http.StatusOK, entries)
}

func (h *ModelsHandler) GetConfig(c *gin.Context) {
	view, err := h.reg.View(c.Param("key"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *ModelsHandler) UpdateConfig(c *gin.Context) {
	var req model.UpdateModelConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidDocument(err.Error()))
		return
	}

	view, err := h.reg.Update(c.Param("key"), req)
	if err != nil {
		c.Error(err)
		return
	}

	middleware.AddAuditContext(c, "action", "update_model_config")
	middleware.AddAuditContext(c, "models", len(req.Models))
	middleware.AddAuditContext(c, "strategy", string(req.Policy.Strategy))
	c.JSON(http.StatusOK, view)
}

func (h *ModelsHandler) ValidateConfig(c *gin.Context) {
	result, err := h.reg.ValidateStored(c.Param("key"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Select runs one selection attempt and returns the chosen model without
// invoking it. The caller reports the outcome separately.
func (h *ModelsHandler) Select(c *gin.Context) {
	var req model.SelectRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(apperrors.NewInvalidDocument(err.Error()))
			return
		}
	}

	selection, err := h.sel.Select(c.Request.Context(), c.Param("key"), req)
	if err != nil {
		c.Error(err)
		return
	}

	middleware.AddAuditContext(c, "model", selection.Model.ID)
	middleware.AddAuditContext(c, "strategy", string(selection.Strategy))
	c.JSON(http.StatusOK, selection)
}

func (h *ModelsHandler) Outcome(c *gin.Context) {
	var req model.OutcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidDocument(err.Error()))
		return
	}

	if err := h.sel.ReportOutcome(c.Request.Context(), c.Param("key"), req); err != nil {
		c.Error(err)
		return
	}

	middleware.AddAuditContext(c, "model", req.ModelID)
	middleware.AddAuditContext(c, "success", req.Success)
	c.JSON(http.StatusOK, gin.H{"status": "recorded"})
}
