package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pagepulse/pagepulse/internal/model"
	"github.com/pagepulse/pagepulse/internal/observability"
	"github.com/pagepulse/pagepulse/internal/seo"
	"github.com/pagepulse/pagepulse/internal/storage"
)

const maxAlertLimit = 500

// Store is the persistence the HTTP layer needs
type Store interface {
	storage.MetricStore
	storage.PageStore
}

// HostMetrics reports the most recent host resource sample
type HostMetrics interface {
	GetMetrics() map[string]interface{}
}

// Handler serves the alert, metric and SEO endpoints
type Handler struct {
	logger  *zap.Logger
	store   Store
	metrics *observability.Metrics
	host    HostMetrics
}

// NewHandler creates a new HTTP handler
func NewHandler(store Store, logger *zap.Logger, metrics *observability.Metrics) *Handler {
	return &Handler{
		logger:  logger.Named("api"),
		store:   store,
		metrics: metrics,
	}
}

// WithHostMetrics enables the system endpoint backed by src
func (h *Handler) WithHostMetrics(src HostMetrics) *Handler {
	h.host = src
	return h
}

// RegisterRoutes mounts the versioned API on router
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/api/v1")
	{
		api.GET("/alerts", h.ListAlerts)
		api.POST("/alerts/:id/acknowledge", h.AcknowledgeAlert)
		api.POST("/metrics", h.RecordMetric)
		api.GET("/system", h.GetSystemMetrics)

		api.GET("/seo/pages", h.ListPageScores)
		api.GET("/seo/pages/:id", h.GetPageScore)
		api.PUT("/seo/pages/:id", h.PutPage)
		api.GET("/seo/summary", h.GetSummary)
	}
}

// ListAlerts returns stored alerts newest first
func (h *Handler) ListAlerts(c *gin.Context) {
	var filter storage.AlertFilter

	if s := c.Query("acknowledged"); s != "" {
		ack, err := strconv.ParseBool(s)
		if err != nil {
			fail(c, http.StatusBadRequest, "acknowledged must be a boolean")
			return
		}
		filter.Acknowledged = &ack
	}
	if s := c.Query("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil || limit < 0 {
			fail(c, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		if limit > maxAlertLimit {
			limit = maxAlertLimit
		}
		filter.Limit = limit
	}

	alerts, err := h.store.ListAlerts(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list alerts", zap.Error(err))
		fail(c, http.StatusInternalServerError, "failed to list alerts")
		return
	}
	if alerts == nil {
		alerts = []*model.Alert{}
	}

	respond(c, http.StatusOK, alerts)
}

// AcknowledgeAlert marks one alert acknowledged
func (h *Handler) AcknowledgeAlert(c *gin.Context) {
	id := c.Param("id")

	ok, err := h.store.AcknowledgeAlert(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("Failed to acknowledge alert", zap.String("id", id), zap.Error(err))
		fail(c, http.StatusInternalServerError, "failed to acknowledge alert")
		return
	}
	if !ok {
		fail(c, http.StatusNotFound, "alert not found")
		return
	}

	c.Status(http.StatusNoContent)
}

// recordRequest is the body of a beacon submission
type recordRequest struct {
	Type      string                 `json:"type"`
	Context   map[string]interface{} `json:"context"`
	CreatedAt *time.Time             `json:"created_at,omitempty"`
}

// RecordMetric stores one metric record posted by a browser beacon or service
func (h *Handler) RecordMetric(c *gin.Context) {
	var req recordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Type) == "" {
		fail(c, http.StatusBadRequest, "type is required")
		return
	}

	record := &model.MetricRecord{
		Type:    req.Type,
		Context: req.Context,
	}
	if req.CreatedAt != nil {
		record.CreatedAt = *req.CreatedAt
	}

	if err := h.store.InsertRecord(c.Request.Context(), record); err != nil {
		if errors.Is(err, storage.ErrInvalidRecord) {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("Failed to store metric record", zap.String("type", req.Type), zap.Error(err))
		fail(c, http.StatusInternalServerError, "failed to store metric record")
		return
	}
	h.metrics.ObserveIngested("http")

	respond(c, http.StatusCreated, record)
}

// GetSystemMetrics returns the latest host sample
func (h *Handler) GetSystemMetrics(c *gin.Context) {
	if h.host == nil {
		fail(c, http.StatusServiceUnavailable, "host sampling is disabled")
		return
	}
	sample := h.host.GetMetrics()
	if sample == nil {
		sample = map[string]interface{}{}
	}
	respond(c, http.StatusOK, sample)
}

// ListPageScores scores every page, worst first, optionally filtered by status
func (h *Handler) ListPageScores(c *gin.Context) {
	status := model.ScoreStatus(c.Query("status"))
	switch status {
	case "", model.ScoreStatusExcellent, model.ScoreStatusGood,
		model.ScoreStatusNeedsImprovement, model.ScoreStatusPoor:
	default:
		fail(c, http.StatusBadRequest, "unknown status")
		return
	}

	pages, err := h.store.ListPages(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list pages", zap.Error(err))
		fail(c, http.StatusInternalServerError, "failed to list pages")
		return
	}

	respond(c, http.StatusOK, seo.Filter(seo.ScoreAll(pages), status))
}

// GetPageScore scores a single page against every stored page
func (h *Handler) GetPageScore(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	page, err := h.store.GetPage(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			fail(c, http.StatusNotFound, "page not found")
			return
		}
		h.logger.Error("Failed to get page", zap.String("id", id), zap.Error(err))
		fail(c, http.StatusInternalServerError, "failed to get page")
		return
	}

	pages, err := h.store.ListPages(ctx)
	if err != nil {
		h.logger.Error("Failed to list pages", zap.Error(err))
		fail(c, http.StatusInternalServerError, "failed to list pages")
		return
	}

	respond(c, http.StatusOK, seo.PageScore{Page: page, Result: seo.Score(page, pages)})
}

// PutPage creates or replaces a page's metadata
func (h *Handler) PutPage(c *gin.Context) {
	var page model.PageMetadata
	if err := c.ShouldBindJSON(&page); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}
	page.ID = c.Param("id")

	if err := h.store.UpsertPage(c.Request.Context(), &page); err != nil {
		if errors.Is(err, storage.ErrInvalidRecord) {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("Failed to store page", zap.String("id", page.ID), zap.Error(err))
		fail(c, http.StatusInternalServerError, "failed to store page")
		return
	}

	respond(c, http.StatusOK, &page)
}

// GetSummary aggregates scores across all pages
func (h *Handler) GetSummary(c *gin.Context) {
	pages, err := h.store.ListPages(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list pages", zap.Error(err))
		fail(c, http.StatusInternalServerError, "failed to list pages")
		return
	}

	respond(c, http.StatusOK, seo.Summarize(seo.ScoreAll(pages)))
}
