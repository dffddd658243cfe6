package database

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/atlas-exports/exportpilot/internal/models"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Database connection manager
type Manager struct {
	DB     *gorm.DB
	Redis  *redis.Client
	logger *logrus.Logger
}

// Database configuration
type Config struct {
	DatabaseURL string
	RedisURL    string
	LogLevel    string
}

// NewManager creates a new database manager with connection pooling
func NewManager(config *Config, log *logrus.Logger) (*Manager, error) {
	// Configure GORM logger
	gormLogger := logger.Default.LogMode(logger.Silent)
	if config.LogLevel == "debug" {
		gormLogger = logger.Default.LogMode(logger.Info)
	}

	// Open database connection with pooling
	db, err := gorm.Open(postgres.Open(config.DatabaseURL), &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true, // Improve performance
		PrepareStmt:            true, // Cache prepared statements
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	// Test database connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Connect to Redis
	redisOpts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	redisOpts.PoolSize = 20
	redisOpts.MinIdleConns = 5
	redisOpts.MaxConnAge = time.Hour
	redisOpts.IdleTimeout = 30 * time.Minute
	redisOpts.IdleCheckFrequency = 30 * time.Second

	redisClient := redis.NewClient(redisOpts)

	// Test Redis connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info("Database and Redis connections established successfully")

	return &Manager{
		DB:     db,
		Redis:  redisClient,
		logger: log,
	}, nil
}

// Migrate runs database migrations
func (m *Manager) Migrate() error {
	m.logger.Info("Running database migrations...")

	return m.DB.AutoMigrate(
		&models.ConversationMessage{},
		&models.UserContextRecord{},
		&models.BehaviorPatternRecord{},
		&models.AnalyticsEventRecord{},
		&models.MarketGuide{},
	)
}

// Close closes all database connections
func (m *Manager) Close() error {
	if m.Redis != nil {
		if err := m.Redis.Close(); err != nil {
			m.logger.WithError(err).Error("Failed to close Redis connection")
		}
	}

	if m.DB != nil {
		sqlDB, err := m.DB.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}

	return nil
}

// Health check methods
func (m *Manager) PingDatabase() error {
	sqlDB, err := m.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func (m *Manager) PingRedis() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.Redis.Ping(ctx).Err()
}

// Cache implementation backed by Redis with per-key TTLs
type Cache struct {
	client *redis.Client
	logger *logrus.Logger
}

func NewCache(client *redis.Client, logger *logrus.Logger) *Cache {
	return &Cache{
		client: client,
		logger: logger,
	}
}

// Cache key constants
const (
	TradeStatsKey      = "trade:stats:%s"
	TradeStatsStaleKey = "trade:stats:stale:%s"
	MarketDataKey      = "trade:market:%s"
	MarketDataStaleKey = "trade:market:stale:%s"
	DashboardKey       = "analytics:dashboard"
	MarketGuideKey     = "market:guide:%s"
)

// Set stores any JSON-serializable value under key with a TTL
func (c *Cache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}

	return c.client.Set(ctx, key, data, expiration).Err()
}

// Get retrieves a cached value into result; returns redis.Nil on a miss
func (c *Cache) Get(ctx context.Context, key string, result interface{}) error {
	data, err := c.client.Get(ctx, key).Result()
	if err != nil {
		return err
	}

	return json.Unmarshal([]byte(data), result)
}

// Delete removes a cached value
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

// CacheTradeStatistics caches trade statistics for a country
func (c *Cache) CacheTradeStatistics(ctx context.Context, countryCode string, stats interface{}, expiration time.Duration) error {
	return c.Set(ctx, fmt.Sprintf(TradeStatsKey, countryCode), stats, expiration)
}

// GetCachedTradeStatistics retrieves cached trade statistics
func (c *Cache) GetCachedTradeStatistics(ctx context.Context, countryCode string, result interface{}) error {
	return c.Get(ctx, fmt.Sprintf(TradeStatsKey, countryCode), result)
}

// InvalidateTradeCache removes all cached trade data for a country,
// including the stale fallback copy.
func (c *Cache) InvalidateTradeCache(ctx context.Context, countryCode string) error {
	keys := []string{
		fmt.Sprintf(TradeStatsKey, countryCode),
		fmt.Sprintf(TradeStatsStaleKey, countryCode),
		fmt.Sprintf(MarketDataKey, countryCode),
		fmt.Sprintf(MarketDataStaleKey, countryCode),
	}
	for _, key := range keys {
		if err := c.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// Cache statistics
func (c *Cache) GetCacheStats(ctx context.Context) (map[string]interface{}, error) {
	info := c.client.Info(ctx, "stats").Val()

	stats := map[string]interface{}{
		"keyspace_hits":     c.extractStat(info, "keyspace_hits"),
		"keyspace_misses":   c.extractStat(info, "keyspace_misses"),
		"used_memory":       c.extractStat(info, "used_memory"),
		"connected_clients": c.extractStat(info, "connected_clients"),
	}

	return stats, nil
}

func (c *Cache) extractStat(info, key string) string {
	lines := strings.Split(info, "\r\n")
	for _, line := range lines {
		if strings.HasPrefix(line, key+":") {
			return strings.TrimPrefix(line, key+":")
		}
	}
	return "0"
}
