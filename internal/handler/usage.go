package handler

import (
	"context"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/GoAITrader/tradegate/internal/model"
	"github.com/GoAITrader/tradegate/internal/pkg/apperrors"
)

// UsageReader is the read side of a usage sink. Both the Redis repo and the
// in-memory store satisfy it.
type UsageReader interface {
	ListModelUsage(ctx context.Context) (map[string]model.ModelUsage, error)
}

type UsageHandler struct {
	reader UsageReader
}

func NewUsageHandler(reader UsageReader) *UsageHandler {
	return &UsageHandler{reader: reader}
}

// UsageRow is one model's counters for the current UTC day.
type UsageRow struct {
	Model    string `json:"model"`
	Requests int    `json:"requests"`
	Tokens   int64  `json:"tokens"`
}

func (h *UsageHandler) List(c *gin.Context) {
	usage, err := h.reader.ListModelUsage(c.Request.Context())
	if err != nil {
		c.Error(apperrors.New(apperrors.ErrInternal, "read usage counters", err))
		return
	}

	rows := make([]UsageRow, 0, len(usage))
	for modelID, u := range usage {
		rows = append(rows, UsageRow{Model: modelID, Requests: u.Requests, Tokens: u.Tokens})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Model < rows[j].Model })

	c.JSON(http.StatusOK, rows)
}
