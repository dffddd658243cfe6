// cmd/seed/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/atlas-exports/exportpilot/internal/config"
	"github.com/atlas-exports/exportpilot/internal/database"
	"github.com/atlas-exports/exportpilot/internal/models"
	"github.com/atlas-exports/exportpilot/internal/repository"
	"github.com/atlas-exports/exportpilot/pkg/utils"
	"github.com/gocolly/colly/v2"
	"github.com/gocolly/colly/v2/debug"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// GuidePageConfig represents one country commercial guide to crawl
type GuidePageConfig struct {
	CountryCode string
	CountryName string
	URL         string
	Priority    int // Higher priority pages are processed first
}

// GuideSeeder crawls country commercial guides into the market_guides table
type GuideSeeder struct {
	collector   *colly.Collector
	repoManager *repository.RepositoryManager
	cache       *database.Cache
	logger      *logrus.Logger
	processed   map[string]bool
	errors      []error
}

var (
	// Commercial guide pages for the markets users ask about most
	CountryGuides = []GuidePageConfig{
		{CountryCode: "US", CountryName: "United States", Priority: 10, URL: "https://www.trade.gov/knowledge-product/exporting-united-states-market-overview"},
		{CountryCode: "DE", CountryName: "Germany", Priority: 9, URL: "https://www.trade.gov/country-commercial-guides/germany-market-overview"},
		{CountryCode: "CN", CountryName: "China", Priority: 9, URL: "https://www.trade.gov/country-commercial-guides/china-market-overview"},
		{CountryCode: "JP", CountryName: "Japan", Priority: 8, URL: "https://www.trade.gov/country-commercial-guides/japan-market-overview"},
		{CountryCode: "GB", CountryName: "United Kingdom", Priority: 8, URL: "https://www.trade.gov/country-commercial-guides/united-kingdom-market-overview"},
		{CountryCode: "AE", CountryName: "United Arab Emirates", Priority: 7, URL: "https://www.trade.gov/country-commercial-guides/united-arab-emirates-market-overview"},
		{CountryCode: "IN", CountryName: "India", Priority: 7, URL: "https://www.trade.gov/country-commercial-guides/india-market-overview"},
		{CountryCode: "BR", CountryName: "Brazil", Priority: 6, URL: "https://www.trade.gov/country-commercial-guides/brazil-market-overview"},
		{CountryCode: "CA", CountryName: "Canada", Priority: 6, URL: "https://www.trade.gov/country-commercial-guides/canada-market-overview"},
		{CountryCode: "AU", CountryName: "Australia", Priority: 5, URL: "https://www.trade.gov/country-commercial-guides/australia-market-overview"},
		{CountryCode: "FR", CountryName: "France", Priority: 5, URL: "https://www.trade.gov/country-commercial-guides/france-market-overview"},
		{CountryCode: "MX", CountryName: "Mexico", Priority: 5, URL: "https://www.trade.gov/country-commercial-guides/mexico-market-overview"},
	}

	// Command line flags
	dryRun     = flag.Bool("dry-run", false, "Don't write to the database, just print what would be stored")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	pageLimit  = flag.Int("limit", 0, "Limit number of guides to process (0 = all)")
	concurrent = flag.Int("concurrent", 2, "Number of concurrent requests")
	delay      = flag.Duration("delay", 2*time.Second, "Delay between requests")
)

func main() {
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	logger := utils.GetLogger()
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	logger.Info("Starting market guide seeder...")

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	var repoManager *repository.RepositoryManager
	var cache *database.Cache

	if !*dryRun {
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

		repoManager = repository.NewRepositoryManager(dbManager.DB)
		cache = database.NewCache(dbManager.Redis, logger)
	}

	seeder := NewGuideSeeder(repoManager, cache, logger)

	if err := seeder.SeedGuides(); err != nil {
		logger.WithError(err).Fatal("Guide seeding failed")
	}

	logger.Info("Guide seeding completed successfully!")
}

func NewGuideSeeder(repoManager *repository.RepositoryManager, cache *database.Cache, logger *logrus.Logger) *GuideSeeder {
	options := []colly.CollectorOption{
		colly.UserAgent("ExportPilot-Bot/1.0 (+https://github.com/atlas-exports/exportpilot)"),
	}
	if *verbose {
		options = append(options, colly.Debugger(&debug.LogDebugger{}))
	}
	c := colly.NewCollector(options...)

	c.Limit(&colly.LimitRule{
		DomainGlob:  "*.trade.gov",
		Parallelism: *concurrent,
		Delay:       *delay,
	})

	c.SetRequestTimeout(30 * time.Second)

	return &GuideSeeder{
		collector:   c,
		repoManager: repoManager,
		cache:       cache,
		logger:      logger,
		processed:   make(map[string]bool),
		errors:      make([]error, 0),
	}
}

func (gs *GuideSeeder) SeedGuides() error {
	gs.logger.Info("Starting guide seeding process...")

	pages := make([]GuidePageConfig, len(CountryGuides))
	copy(pages, CountryGuides)

	// Sort by priority (descending)
	for i := 0; i < len(pages)-1; i++ {
		for j := i + 1; j < len(pages); j++ {
			if pages[i].Priority < pages[j].Priority {
				pages[i], pages[j] = pages[j], pages[i]
			}
		}
	}

	if *pageLimit > 0 && *pageLimit < len(pages) {
		pages = pages[:*pageLimit]
		gs.logger.WithField("limit", *pageLimit).Info("Limited guides to process")
	}

	gs.logger.WithField("total_guides", len(pages)).Info("Processing country guides")

	for i, page := range pages {
		gs.logger.WithFields(logrus.Fields{
			"country":  page.CountryName,
			"priority": page.Priority,
			"progress": fmt.Sprintf("%d/%d", i+1, len(pages)),
		}).Info("Processing guide")

		if err := gs.processGuide(page); err != nil {
			gs.logger.WithError(err).WithField("country", page.CountryName).Error("Failed to process guide")
			gs.errors = append(gs.errors, fmt.Errorf("failed to process %s: %w", page.CountryName, err))
			continue
		}

		gs.processed[page.CountryCode] = true
		gs.logger.WithField("country", page.CountryName).Info("Guide processed successfully")

		time.Sleep(500 * time.Millisecond)
	}

	gs.logger.WithFields(logrus.Fields{
		"processed": len(gs.processed),
		"errors":    len(gs.errors),
	}).Info("Guide seeding completed")

	if len(gs.errors) > 0 {
		gs.logger.Warn("Some guides failed to process:")
		for _, err := range gs.errors {
			gs.logger.WithError(err).Warn("Processing error")
		}
	}

	return nil
}

func (gs *GuideSeeder) processGuide(page GuidePageConfig) error {
	var title string
	var content string
	var processingError error

	gs.collector.OnHTML("main, article, .main-content", func(e *colly.HTMLElement) {
		if content != "" {
			return
		}
		title = strings.TrimSpace(e.DOM.Find("h1").First().Text())
		content = gs.extractGuideContent(e)

		gs.logger.WithFields(logrus.Fields{
			"country":        page.CountryName,
			"content_length": len(content),
		}).Debug("Content extracted")
	})

	gs.collector.OnError(func(r *colly.Response, err error) {
		processingError = err
	})

	if err := gs.collector.Visit(page.URL); err != nil {
		return fmt.Errorf("failed to visit page: %w", err)
	}

	if processingError != nil {
		return fmt.Errorf("processing error: %w", processingError)
	}

	if content == "" {
		return fmt.Errorf("no content extracted from page")
	}

	if title == "" {
		title = fmt.Sprintf("%s Market Overview", page.CountryName)
	}

	contentHash := utils.MD5Hash(content)

	if *dryRun {
		gs.logger.WithFields(logrus.Fields{
			"country":        page.CountryName,
			"title":          title,
			"content_length": len(content),
			"hash":           contentHash[:8],
		}).Info("DRY RUN: Would store guide")
		return nil
	}

	now := time.Now()
	guide := &models.MarketGuide{
		CountryCode: page.CountryCode,
		CountryName: page.CountryName,
		Title:       title,
		Content:     content,
		SourceURL:   page.URL,
		ContentHash: contentHash,
		LastCrawled: &now,
	}

	if err := gs.repoManager.MarketGuides.Upsert(guide); err != nil {
		return err
	}

	// A refreshed guide invalidates the cached views built from it.
	if gs.cache != nil {
		ctx := context.Background()
		if err := gs.cache.Delete(ctx, fmt.Sprintf(database.MarketGuideKey, page.CountryCode)); err != nil {
			gs.logger.WithError(err).WithField("country", page.CountryCode).Warn("Failed to invalidate cached guide")
		}
		if err := gs.cache.InvalidateTradeCache(ctx, page.CountryCode); err != nil {
			gs.logger.WithError(err).WithField("country", page.CountryCode).Warn("Failed to invalidate trade cache")
		}
	}
	return nil
}

func (gs *GuideSeeder) extractGuideContent(e *colly.HTMLElement) string {
	// Remove navigation and boilerplate
	e.DOM.Find("nav, header, footer, .usa-banner, .breadcrumb, .share-buttons, script, style").Remove()

	text := strings.TrimSpace(e.DOM.Text())

	text = regexp.MustCompile(`\s+`).ReplaceAllString(text, " ")
	text = regexp.MustCompile(`\n\s*\n`).ReplaceAllString(text, "\n\n")

	return text
}
