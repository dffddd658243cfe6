// internal/api/handlers/guides.go
package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/atlas-exports/exportpilot/internal/database"
	"github.com/atlas-exports/exportpilot/internal/models"
	"github.com/atlas-exports/exportpilot/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const guideCacheTTL = time.Hour

type GuideHandler struct {
	guides models.MarketGuideRepository
	cache  *database.Cache
	logger *logrus.Logger
}

func NewGuideHandler(guides models.MarketGuideRepository, cache *database.Cache, logger *logrus.Logger) *GuideHandler {
	return &GuideHandler{
		guides: guides,
		cache:  cache,
		logger: logger,
	}
}

// HandleGetGuides returns the commercial guides for a country, cache first.
// The seeder invalidates the cached entry when a guide is refreshed.
func (h *GuideHandler) HandleGetGuides(c *gin.Context) {
	countryCode := strings.ToUpper(strings.TrimSpace(c.Param("country")))
	if len(countryCode) != 2 {
		utils.ErrorResponse(c, http.StatusBadRequest, "Country must be a 2-letter ISO code", nil)
		return
	}

	cacheKey := fmt.Sprintf(database.MarketGuideKey, countryCode)
	if h.cache != nil {
		var cached []models.MarketGuide
		if err := h.cache.Get(c.Request.Context(), cacheKey, &cached); err == nil && len(cached) > 0 {
			utils.SuccessResponse(c, http.StatusOK, "Guides retrieved", cached)
			return
		}
	}

	guides, err := h.guides.GetByCountry(countryCode)
	if err != nil {
		h.logger.WithError(err).WithField("country", countryCode).
			Error("Failed to load market guides")
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to load market guides", err)
		return
	}

	if len(guides) == 0 {
		utils.ErrorResponse(c, http.StatusNotFound, "No guides found for country", nil)
		return
	}

	if h.cache != nil {
		if err := h.cache.Set(c.Request.Context(), cacheKey, guides, guideCacheTTL); err != nil {
			h.logger.WithError(err).WithField("country", countryCode).
				Warn("Failed to cache market guides")
		}
	}
	utils.SuccessResponse(c, http.StatusOK, "Guides retrieved", guides)
}
