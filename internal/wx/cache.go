package wx

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/skyops/propilot/internal/config"
	"github.com/skyops/propilot/pkg/logger"
)

// entry is one airport's cached weather with its expiry
type entry struct {
	data      *Data
	expiresAt time.Time
}

// Cache holds per-airport weather data with expiration
type Cache struct {
	entries map[string]*entry
	config  config.WeatherConfig
	logger  *logger.Logger
	mu      sync.RWMutex
}

// NewCache creates a new weather cache
func NewCache(cfg config.WeatherConfig, log *logger.Logger) *Cache {
	return &Cache{
		entries: make(map[string]*entry),
		config:  cfg,
		logger:  log.Named("wx-cache"),
	}
}

// Get returns the cached weather for an airport. The second return reports
// whether the entry exists and is still fresh.
func (c *Cache) Get(airport string) (*Data, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[strings.ToUpper(airport)]
	if !ok {
		return nil, false
	}
	return e.data, time.Now().Before(e.expiresAt)
}

// Update merges new fetch results into the airport's cached data. Failed
// products keep their previous value; errors are collected for the API.
func (c *Cache) Update(airport string, results []FetchResult) *Data {
	c.mu.Lock()
	defer c.mu.Unlock()

	airport = strings.ToUpper(airport)

	current := &Data{Airport: airport}
	if prev, ok := c.entries[airport]; ok {
		current.METAR = prev.data.METAR
		current.TAF = prev.data.TAF
		current.DATIS = prev.data.DATIS
	}
	current.LastUpdated = time.Now().UTC()
	current.FetchErrors = []string{}

	for _, result := range results {
		if result.Err != nil {
			current.FetchErrors = append(current.FetchErrors,
				fmt.Sprintf("%s: %s", strings.ToUpper(string(result.Type)), result.Err.Error()))
			c.logger.Warn("Failed to fetch weather product",
				logger.String("airport", airport),
				logger.String("type", string(result.Type)),
				logger.Error(result.Err))
			continue
		}

		switch result.Type {
		case TypeMETAR:
			if metar, ok := result.Data.(*METARResponse); ok {
				current.METAR = metar
			}
		case TypeTAF:
			if taf, ok := result.Data.(*TAFResponse); ok {
				current.TAF = taf
			}
		case TypeDATIS:
			if datis, ok := result.Data.([]DATISResponse); ok {
				current.DATIS = datis
			}
		}
	}

	expiry := time.Duration(c.config.CacheExpiryMinutes) * time.Minute
	c.entries[airport] = &entry{
		data:      current,
		expiresAt: time.Now().Add(expiry),
	}

	c.logger.Info("Weather cache updated",
		logger.String("airport", airport),
		logger.Int("successful_fetches", len(results)-len(current.FetchErrors)),
		logger.Int("failed_fetches", len(current.FetchErrors)),
		logger.Time("expires_at", time.Now().Add(expiry)))

	return current
}

// Invalidate clears all cached weather
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
	c.logger.Info("Weather cache invalidated")
}

// Stats returns cache statistics for the API
func (c *Cache) Stats() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	airports := make([]string, 0, len(c.entries))
	for code := range c.entries {
		airports = append(airports, code)
	}

	return map[string]any{
		"airports":       airports,
		"entry_count":    len(c.entries),
		"expiry_minutes": c.config.CacheExpiryMinutes,
	}
}
