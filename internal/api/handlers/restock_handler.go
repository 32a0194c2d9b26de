package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/andresuchdata/restock/backend-go/internal/pipeline"
	"github.com/andresuchdata/restock/backend-go/internal/service"
	"github.com/gin-gonic/gin"
)

type RestockHandler struct {
	service *service.RestockService
}

func NewRestockHandler(service *service.RestockService) *RestockHandler {
	return &RestockHandler{service: service}
}

func parseIngredientID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid ingredient id")
		return 0, false
	}
	return id, true
}

// GetRestock serves the restock analysis of one ingredient. current_stock
// defaults to the inventory level; horizon defaults to the configured one.
func (h *RestockHandler) GetRestock(c *gin.Context) {
	id, ok := parseIngredientID(c)
	if !ok {
		return
	}

	var currentStock *float64
	if raw := strings.TrimSpace(c.Query("current_stock")); raw != "" {
		stock, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			badRequest(c, "current_stock must be a number")
			return
		}
		currentStock = &stock
	}

	horizon := 0
	if raw := strings.TrimSpace(c.Query("horizon")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || !pipeline.ValidHorizon(n) {
			badRequest(c, fmt.Sprintf("horizon must be an integer between 1 and %d", pipeline.MaxHorizonDays))
			return
		}
		horizon = n
	}

	analysis, err := h.service.Analyze(c.Request.Context(), id, currentStock, horizon)
	if err != nil {
		respondError(c, "failed to analyze ingredient", err)
		return
	}

	c.JSON(http.StatusOK, analysis)
}

func (h *RestockHandler) GetStats(c *gin.Context) {
	id, ok := parseIngredientID(c)
	if !ok {
		return
	}

	stats, err := h.service.Stats(c.Request.Context(), id)
	if err != nil {
		respondError(c, "failed to fetch usage stats", err)
		return
	}

	c.JSON(http.StatusOK, stats)
}
