// internal/api/handlers/analytics.go
package handlers

import (
	"net/http"
	"time"

	"github.com/atlas-exports/exportpilot/internal/analytics"
	"github.com/atlas-exports/exportpilot/internal/database"
	"github.com/atlas-exports/exportpilot/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const dashboardCacheTTL = time.Minute

type AnalyticsHandler struct {
	aggregator *analytics.Aggregator
	cache      *database.Cache
	logger     *logrus.Logger
}

func NewAnalyticsHandler(aggregator *analytics.Aggregator, cache *database.Cache, logger *logrus.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		aggregator: aggregator,
		cache:      cache,
		logger:     logger,
	}
}

// HandleDashboard returns the aggregate metrics view. The unfiltered view
// is cached briefly; custom time ranges always hit the aggregator.
func (h *AnalyticsHandler) HandleDashboard(c *gin.Context) {
	tr, err := parseTimeRange(c)
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid time range", err)
		return
	}

	unfiltered := tr.From.IsZero() && tr.To.IsZero()
	if unfiltered && h.cache != nil {
		var cached analytics.DashboardStats
		if err := h.cache.Get(c.Request.Context(), database.DashboardKey, &cached); err == nil {
			utils.SuccessResponse(c, http.StatusOK, "Dashboard retrieved", cached)
			return
		}
	}

	stats := h.aggregator.Dashboard(tr)
	if unfiltered && h.cache != nil {
		if err := h.cache.Set(c.Request.Context(), database.DashboardKey, stats, dashboardCacheTTL); err != nil {
			h.logger.WithError(err).Warn("Failed to cache dashboard stats")
		}
	}
	utils.SuccessResponse(c, http.StatusOK, "Dashboard retrieved", stats)
}

// HandleInteractions summarizes one user's recorded activity
func (h *AnalyticsHandler) HandleInteractions(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		utils.ErrorResponse(c, http.StatusBadRequest, "Query parameter 'user_id' is required", nil)
		return
	}

	summary := h.aggregator.InteractionPatterns(userID)
	utils.SuccessResponse(c, http.StatusOK, "Interaction patterns retrieved", summary)
}

// HandleAccuracy returns the response accuracy metric
func (h *AnalyticsHandler) HandleAccuracy(c *gin.Context) {
	tr, err := parseTimeRange(c)
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid time range", err)
		return
	}

	rate := h.aggregator.ResponseAccuracy(c.Query("user_id"), tr)
	utils.SuccessResponse(c, http.StatusOK, "Accuracy retrieved", gin.H{"accuracy_rate": rate})
}

// HandleCompletion returns the task completion metric
func (h *AnalyticsHandler) HandleCompletion(c *gin.Context) {
	tr, err := parseTimeRange(c)
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid time range", err)
		return
	}

	rate := h.aggregator.TaskCompletion(c.Query("user_id"), tr)
	utils.SuccessResponse(c, http.StatusOK, "Completion rate retrieved", gin.H{"completion_rate": rate})
}

// parseTimeRange reads optional 'from' and 'to' RFC 3339 query parameters.
func parseTimeRange(c *gin.Context) (analytics.TimeRange, error) {
	var tr analytics.TimeRange
	if from := c.Query("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			return tr, err
		}
		tr.From = t
	}
	if to := c.Query("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			return tr, err
		}
		tr.To = t
	}
	return tr, nil
}
