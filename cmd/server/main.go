// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/atlas-exports/exportpilot/internal/analytics"
	"github.com/atlas-exports/exportpilot/internal/api/handlers"
	"github.com/atlas-exports/exportpilot/internal/config"
	"github.com/atlas-exports/exportpilot/internal/database"
	"github.com/atlas-exports/exportpilot/internal/health"
	"github.com/atlas-exports/exportpilot/internal/middleware"
	"github.com/atlas-exports/exportpilot/internal/nlu"
	"github.com/atlas-exports/exportpilot/internal/personalization"
	"github.com/atlas-exports/exportpilot/internal/repository"
	"github.com/atlas-exports/exportpilot/internal/responder"
	"github.com/atlas-exports/exportpilot/internal/services"
	"github.com/atlas-exports/exportpilot/internal/tradedata"
	"github.com/atlas-exports/exportpilot/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	utils.InitLogger()
	logger := utils.GetLogger()

	logger.Info("Starting export assistant server...")

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	dbConfig := &database.Config{
		DatabaseURL: cfg.Database.URL,
		RedisURL:    cfg.Redis.URL,
		LogLevel:    os.Getenv("LOG_LEVEL"),
	}

	dbManager, err := database.NewManager(dbConfig, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database manager")
	}
	defer dbManager.Close()

	if err := dbManager.Migrate(); err != nil {
		logger.WithError(err).Fatal("Database migration failed")
	}

	repoManager := repository.NewRepositoryManager(dbManager.DB)
	cache := database.NewCache(dbManager.Redis, logger)

	// Trade data provider is optional; without it responses simply omit
	// data visualizations.
	var dataProvider responder.DataProvider
	if err := cfg.ValidateTradeData(); err != nil {
		logger.WithError(err).Warn("Trade data provider not configured, visualizations disabled")
	} else {
		client := tradedata.NewClient(cfg.TradeData.BaseURL, cfg.TradeData.APIKey, logger)
		dataProvider = tradedata.NewService(client, cache, logger)
	}

	// Engine wiring
	extractor := nlu.NewExtractor(logger)
	classifier := nlu.NewClassifier(extractor, cfg.Assistant.ConfidenceFloor, logger)
	generator := responder.NewGenerator(dataProvider, cfg.Assistant.TemplateSeed, logger)
	personalizer := personalization.NewEngine(repoManager.BehaviorPattern, cfg.Assistant.TemplateSeed, logger)
	aggregator := analytics.NewAggregator(
		repoManager.AnalyticsEvents,
		cfg.Assistant.FeedbackEvery,
		cfg.Assistant.RetentionDays,
		cfg.Assistant.MaxEventsPerUser,
		logger,
	)

	if err := aggregator.Restore(); err != nil {
		logger.WithError(err).Warn("Failed to restore analytics events, starting empty")
	}
	if err := aggregator.StartSweeper(); err != nil {
		logger.WithError(err).Fatal("Failed to start analytics sweeper")
	}
	defer aggregator.StopSweeper()

	assistant := services.NewAssistantService(
		cfg.Assistant,
		classifier,
		generator,
		personalizer,
		aggregator,
		repoManager.Messages,
		repoManager.UserContexts,
		logger,
	)

	chatHandler := handlers.NewChatHandler(assistant, logger)
	analyticsHandler := handlers.NewAnalyticsHandler(aggregator, cache, logger)
	guideHandler := handlers.NewGuideHandler(repoManager.MarketGuides, cache, logger)

	healthChecker := health.NewHealthChecker(dbManager, logger, cfg.TradeData.BaseURL)

	healthCtx, cancelHealth := context.WithCancel(context.Background())
	defer cancelHealth()
	go healthChecker.PeriodicHealthCheck(healthCtx, time.Minute)

	router := setupRouter(chatHandler, analyticsHandler, guideHandler, healthChecker)

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		logger.WithField("port", cfg.Server.Port).Info("Server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Forced shutdown")
	}
	logger.Info("Server stopped")
}

func setupRouter(
	chatHandler *handlers.ChatHandler,
	analyticsHandler *handlers.AnalyticsHandler,
	guideHandler *handlers.GuideHandler,
	healthChecker *health.HealthChecker,
) *gin.Engine {
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.SecurityHeaders())

	rateLimiter := middleware.NewRateLimiter(120)
	router.Use(rateLimiter.RateLimit())

	router.GET("/health", func(c *gin.Context) {
		if cached, err := healthChecker.CheckCached(c.Request.Context()); err == nil {
			c.JSON(http.StatusOK, cached)
			return
		}
		c.JSON(http.StatusOK, healthChecker.CheckAll())
	})

	api := router.Group("/api")
	{
		api.POST("/chat", chatHandler.HandleChat)
		api.POST("/feedback", chatHandler.HandleFeedback)
		api.POST("/events", chatHandler.HandleEvent)
		api.GET("/recommendations", chatHandler.HandleRecommendations)
		api.DELETE("/personalization/:user_id", chatHandler.HandleReset)

		api.GET("/analytics/dashboard", analyticsHandler.HandleDashboard)
		api.GET("/analytics/interactions", analyticsHandler.HandleInteractions)
		api.GET("/analytics/accuracy", analyticsHandler.HandleAccuracy)
		api.GET("/analytics/completion", analyticsHandler.HandleCompletion)

		api.GET("/guides/:country", guideHandler.HandleGetGuides)
	}

	return router
}
