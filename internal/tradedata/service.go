package tradedata

import (
	"context"
	"fmt"
	"time"

	"github.com/atlas-exports/exportpilot/internal/database"
	"github.com/sirupsen/logrus"
)

// CacheStore is the slice of the cache layer the service needs. Satisfied
// by *database.Cache.
type CacheStore interface {
	CacheTradeStatistics(ctx context.Context, countryCode string, stats interface{}, expiration time.Duration) error
	GetCachedTradeStatistics(ctx context.Context, countryCode string, result interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, result interface{}) error
}

// Service wraps the provider client with caching and graceful fallback.
// Fresh values are cached on a short TTL; every fetch also refreshes a
// long-lived stale copy that is served, marked as fallback, when the
// provider is down. With nothing cached either, (nil, nil) signals
// "no data" to the assistant pipeline.
type Service struct {
	client *Client
	cache  CacheStore
	logger *logrus.Logger
}

const (
	statsCacheTTL  = 6 * time.Hour
	marketCacheTTL = time.Hour
	staleCacheTTL  = 7 * 24 * time.Hour
)

func NewService(client *Client, cache CacheStore, logger *logrus.Logger) *Service {
	return &Service{
		client: client,
		cache:  cache,
		logger: logger,
	}
}

// GetTradeStatistics returns statistics for a country, preferring the cache.
func (s *Service) GetTradeStatistics(ctx context.Context, countryCode string) (*TradeStatistics, error) {
	if s.cache != nil {
		var cached TradeStatistics
		if err := s.cache.GetCachedTradeStatistics(ctx, countryCode, &cached); err == nil {
			s.logger.WithField("country", countryCode).Debug("Trade statistics served from cache")
			return &cached, nil
		}
	}

	stats, err := s.client.GetTradeStatisticsWithRetry(ctx, countryCode)
	if err != nil {
		var stale TradeStatistics
		if s.getStale(ctx, fmt.Sprintf(database.TradeStatsStaleKey, countryCode), &stale) {
			s.logger.WithError(err).WithField("country", countryCode).
				Warn("Provider unavailable, serving stale trade statistics")
			stale.Fallback = true
			return &stale, nil
		}
		s.logger.WithError(err).WithField("country", countryCode).
			Warn("Trade statistics unavailable, degrading to no data")
		return nil, nil
	}

	stats.RetrievedAt = time.Now()
	if s.cache != nil {
		if err := s.cache.CacheTradeStatistics(ctx, countryCode, stats, statsCacheTTL); err != nil {
			s.logger.WithError(err).Warn("Failed to cache trade statistics")
		}
		s.setStale(ctx, fmt.Sprintf(database.TradeStatsStaleKey, countryCode), stats)
	}

	return stats, nil
}

// GetMarketData fetches market indicators for the given request, with the
// same cache-then-stale-fallback behavior as statistics.
func (s *Service) GetMarketData(ctx context.Context, req MarketDataRequest) (*MarketData, error) {
	freshKey := fmt.Sprintf(database.MarketDataKey, req.CountryCode)
	staleKey := fmt.Sprintf(database.MarketDataStaleKey, req.CountryCode)

	if s.cache != nil {
		var cached MarketData
		if err := s.cache.Get(ctx, freshKey, &cached); err == nil {
			s.logger.WithField("country", req.CountryCode).Debug("Market data served from cache")
			return &cached, nil
		}
	}

	data, err := s.client.GetMarketDataWithRetry(ctx, req)
	if err != nil {
		var stale MarketData
		if s.getStale(ctx, staleKey, &stale) {
			s.logger.WithError(err).WithField("country", req.CountryCode).
				Warn("Provider unavailable, serving stale market data")
			stale.Fallback = true
			return &stale, nil
		}
		s.logger.WithError(err).WithField("country", req.CountryCode).
			Warn("Market data unavailable, degrading to no data")
		return nil, nil
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, freshKey, data, marketCacheTTL); err != nil {
			s.logger.WithError(err).Warn("Failed to cache market data")
		}
		s.setStale(ctx, staleKey, data)
	}
	return data, nil
}

func (s *Service) getStale(ctx context.Context, key string, result interface{}) bool {
	if s.cache == nil {
		return false
	}
	return s.cache.Get(ctx, key, result) == nil
}

func (s *Service) setStale(ctx context.Context, key string, value interface{}) {
	if err := s.cache.Set(ctx, key, value, staleCacheTTL); err != nil {
		s.logger.WithError(err).Warn("Failed to refresh stale trade cache copy")
	}
}
