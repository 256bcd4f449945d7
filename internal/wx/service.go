package wx

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/skyops/propilot/internal/config"
	"github.com/skyops/propilot/pkg/logger"
)

// Service manages weather fetching and caching. The home base airport is
// refreshed on a timer; any other airport is fetched on demand and served
// from cache until its entry expires.
type Service struct {
	config   config.WeatherConfig
	homeBase string
	client   *Client
	cache    *Cache
	logger   *logger.Logger

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	mu      sync.Mutex
}

// NewService creates a new weather service
func NewService(cfg config.WeatherConfig, homeBase string, log *logger.Logger) *Service {
	return &Service{
		config:   cfg,
		homeBase: strings.ToUpper(homeBase),
		client:   NewClient(cfg, log),
		cache:    NewCache(cfg, log),
		logger:   log.Named("wx-service"),
	}
}

// Start begins the background refresh of the home base weather
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.logger.Info("Starting weather service",
		logger.String("home_base", s.homeBase),
		logger.Int("refresh_interval_minutes", s.config.RefreshIntervalMinutes))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.backgroundRefresh(ctx)
	}()

	s.started = true
	return nil
}

// Stop gracefully shuts down the weather service
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.cancel()
	s.wg.Wait()
	s.started = false
	s.logger.Info("Weather service stopped")
}

// Get returns weather for an airport, fetching when the cache is missing or
// stale. A stale entry is still returned when the refresh fails entirely.
func (s *Service) Get(airport string) *Data {
	airport = strings.ToUpper(airport)

	data, fresh := s.cache.Get(airport)
	if fresh {
		return data
	}

	results := s.client.FetchAll(airport)
	return s.cache.Update(airport, results)
}

// RefreshNow triggers an immediate out-of-band refresh of the home base
func (s *Service) RefreshNow() {
	s.logger.Info("Manual weather refresh triggered")
	go s.refreshHomeBase()
}

// CacheStats returns cache statistics
func (s *Service) CacheStats() map[string]any {
	return s.cache.Stats()
}

// backgroundRefresh runs the periodic home base refresh
func (s *Service) backgroundRefresh(ctx context.Context) {
	interval := time.Duration(s.config.RefreshIntervalMinutes) * time.Minute
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("Background weather refresh started",
		logger.String("interval", interval.String()))

	// Initial fetch before the first tick
	s.refreshHomeBase()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Background weather refresh stopped")
			return
		case <-ticker.C:
			s.logger.Debug("Periodic weather refresh triggered")
			s.refreshHomeBase()
		}
	}
}

// refreshHomeBase fetches all products for the home base and updates the cache
func (s *Service) refreshHomeBase() {
	if s.homeBase == "" {
		return
	}

	start := time.Now()
	results := s.client.FetchAll(s.homeBase)
	s.cache.Update(s.homeBase, results)

	s.logger.Info("Weather data fetch completed",
		logger.String("airport", s.homeBase),
		logger.String("duration", time.Since(start).String()),
		logger.Int("total_requests", len(results)))
}
