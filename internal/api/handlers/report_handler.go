package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/andresuchdata/restock/backend-go/internal/domain"
	"github.com/andresuchdata/restock/backend-go/internal/service"
	"github.com/andresuchdata/restock/backend-go/internal/storage"
	"github.com/gin-gonic/gin"
)

type ReportHandler struct {
	service *service.ReportService
}

func NewReportHandler(service *service.ReportService) *ReportHandler {
	return &ReportHandler{service: service}
}

func (h *ReportHandler) GetReport(c *gin.Context) {
	report, _, err := h.service.Build(c.Request.Context())
	if err != nil {
		respondError(c, "failed to build inventory report", err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// ArchiveReport builds a fresh report and stores it in object storage.
func (h *ReportHandler) ArchiveReport(c *gin.Context) {
	report, _, err := h.service.Build(c.Request.Context())
	if err != nil {
		respondError(c, "failed to build inventory report", err)
		return
	}

	key, err := h.service.Archive(c.Request.Context(), report)
	if err != nil {
		respondError(c, "failed to archive inventory report", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"key":       key,
		"timestamp": report.GeneratedAt,
	})
}

// ListArchives lists the reports archived on ?date=YYYY-MM-DD (default today).
func (h *ReportHandler) ListArchives(c *gin.Context) {
	date := time.Now().UTC()
	if raw := strings.TrimSpace(c.Query("date")); raw != "" {
		parsed, err := time.Parse(domain.DateLayout, raw)
		if err != nil {
			badRequest(c, "date must be formatted as YYYY-MM-DD")
			return
		}
		date = parsed
	}

	objects, err := h.service.ListArchives(c.Request.Context(), date)
	if err != nil {
		respondError(c, "failed to list archived reports", err)
		return
	}
	if objects == nil {
		objects = []storage.ObjectInfo{}
	}

	c.JSON(http.StatusOK, gin.H{"date": date.Format(domain.DateLayout), "reports": objects})
}
