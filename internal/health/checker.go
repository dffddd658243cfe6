package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/atlas-exports/exportpilot/internal/database"
	"github.com/sirupsen/logrus"
)

const healthCacheKey = "system:health"

// HealthChecker manages health checks for all backing services
type HealthChecker struct {
	dbManager    *database.Manager
	cache        *database.Cache
	logger       *logrus.Logger
	tradeDataURL string
}

func NewHealthChecker(dbManager *database.Manager, logger *logrus.Logger, tradeDataURL string) *HealthChecker {
	return &HealthChecker{
		dbManager:    dbManager,
		cache:        database.NewCache(dbManager.Redis, logger),
		logger:       logger,
		tradeDataURL: tradeDataURL,
	}
}

// ServiceHealth represents the health status of a service
type ServiceHealth struct {
	Name         string `json:"name"`
	Status       string `json:"status"`
	ResponseTime int    `json:"response_time_ms"`
	Error        string `json:"error,omitempty"`
	LastChecked  string `json:"last_checked"`
}

// OverallHealth represents the overall system health
type OverallHealth struct {
	Status     string                 `json:"status"`
	Services   []ServiceHealth        `json:"services"`
	CacheStats map[string]interface{} `json:"cache_stats,omitempty"`
	Uptime     string                 `json:"uptime"`
}

// CheckPostgreSQL checks PostgreSQL database health
func (h *HealthChecker) CheckPostgreSQL() ServiceHealth {
	start := time.Now()
	err := h.dbManager.PingDatabase()
	responseTime := int(time.Since(start).Milliseconds())

	status := "healthy"
	errorMsg := ""
	if err != nil {
		status = "unhealthy"
		errorMsg = err.Error()
		h.logger.WithError(err).Error("PostgreSQL health check failed")
	}

	return ServiceHealth{
		Name:         "postgresql",
		Status:       status,
		ResponseTime: responseTime,
		Error:        errorMsg,
		LastChecked:  time.Now().Format(time.RFC3339),
	}
}

// CheckRedis checks Redis cache health
func (h *HealthChecker) CheckRedis() ServiceHealth {
	start := time.Now()
	err := h.dbManager.PingRedis()
	responseTime := int(time.Since(start).Milliseconds())

	status := "healthy"
	errorMsg := ""
	if err != nil {
		status = "unhealthy"
		errorMsg = err.Error()
		h.logger.WithError(err).Error("Redis health check failed")
	}

	return ServiceHealth{
		Name:         "redis",
		Status:       status,
		ResponseTime: responseTime,
		Error:        errorMsg,
		LastChecked:  time.Now().Format(time.RFC3339),
	}
}

// CheckTradeData checks the trade data provider health. A missing provider
// URL degrades rather than fails: the assistant still answers without
// visualizations.
func (h *HealthChecker) CheckTradeData() ServiceHealth {
	checked := time.Now().Format(time.RFC3339)
	if h.tradeDataURL == "" {
		return ServiceHealth{
			Name:        "tradedata",
			Status:      "degraded",
			Error:       "provider not configured",
			LastChecked: checked,
		}
	}

	start := time.Now()
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(h.tradeDataURL + "/health")

	responseTime := int(time.Since(start).Milliseconds())
	status := "healthy"
	errorMsg := ""

	if err != nil {
		status = "degraded"
		errorMsg = err.Error()
	} else {
		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			status = "degraded"
			errorMsg = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}
	}

	if status != "healthy" {
		h.logger.WithField("error", errorMsg).Warn("Trade data provider health check failed")
	}

	return ServiceHealth{
		Name:         "tradedata",
		Status:       status,
		ResponseTime: responseTime,
		Error:        errorMsg,
		LastChecked:  checked,
	}
}

// CheckAll performs health checks on all services
func (h *HealthChecker) CheckAll() OverallHealth {
	services := []ServiceHealth{
		h.CheckPostgreSQL(),
		h.CheckRedis(),
		h.CheckTradeData(),
	}

	overallStatus := "healthy"
	for _, service := range services {
		if service.Status == "unhealthy" {
			overallStatus = "unhealthy"
			break
		}
		if service.Status == "degraded" && overallStatus == "healthy" {
			overallStatus = "degraded"
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cacheStats, err := h.cache.GetCacheStats(ctx)
	if err != nil {
		h.logger.WithError(err).Warn("Failed to collect cache statistics")
	}

	return OverallHealth{
		Status:     overallStatus,
		Services:   services,
		CacheStats: cacheStats,
		Uptime:     h.getUptime(),
	}
}

// CheckCached returns cached health status if available
func (h *HealthChecker) CheckCached(ctx context.Context) (*OverallHealth, error) {
	var cached OverallHealth
	if err := h.cache.Get(ctx, healthCacheKey, &cached); err != nil {
		return nil, err
	}
	cached.Uptime = h.getUptime()
	return &cached, nil
}

var startTime = time.Now()

func (h *HealthChecker) getUptime() string {
	return time.Since(startTime).String()
}

// PeriodicHealthCheck runs health checks periodically and caches the result
func (h *HealthChecker) PeriodicHealthCheck(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			health := h.CheckAll()

			cacheCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := h.cache.Set(cacheCtx, healthCacheKey, health, 2*interval); err != nil {
				h.logger.WithError(err).Error("Failed to cache health status")
			}
			cancel()

			h.logger.WithField("status", health.Status).Debug("Periodic health check completed")
		}
	}
}
