package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Server    ServerConfig    `toml:"server"`    // HTTP server settings
	Logging   LoggingConfig   `toml:"logging"`   // Application logging settings
	Storage   StorageConfig   `toml:"storage"`   // Data persistence settings
	Airports  AirportsConfig  `toml:"airports"`  // Airport database settings
	Roster    RosterConfig    `toml:"roster"`    // Roster import and trip grouping settings
	OOOI      OOOIConfig      `toml:"ooi"`       // Automatic OOOI time capture settings
	Weather   WeatherConfig   `toml:"wx"`        // Weather data fetching and caching settings
	Schedules SchedulesConfig `toml:"schedules"` // Flight schedule lookup settings
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port             int    `toml:"port"`                  // HTTP port for the server
	Host             string `toml:"host"`                  // Host address to bind to (e.g., 127.0.0.1 for localhost only, 0.0.0.0 for all interfaces)
	ReadTimeoutSecs  int    `toml:"read_timeout_seconds"`  // Maximum duration for reading the entire request (0 = no timeout)
	WriteTimeoutSecs int    `toml:"write_timeout_seconds"` // Maximum duration for writing the response (0 = no timeout)
	IdleTimeoutSecs  int    `toml:"idle_timeout_seconds"`  // Maximum duration to wait for the next request when keep-alives are enabled
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`  // Log level: "debug", "info", "warn", or "error"
	Format string `toml:"format"` // Log format: "json" (structured) or "console" (human-readable)
}

// StorageConfig contains data persistence configuration
type StorageConfig struct {
	Type             string `toml:"type"`               // Storage backend type (currently only "sqlite" is supported)
	SQLitePath       string `toml:"sqlite_path"`        // Path to the SQLite database file
	MaxTrackPoints   int    `toml:"max_track_points"`   // Maximum GPS track points retained per leg
	BackupDir        string `toml:"backup_dir"`         // Directory for JSON backup exports
	BackupOnShutdown bool   `toml:"backup_on_shutdown"` // Write a JSON backup during graceful shutdown
}

// AirportsConfig contains airport database configuration
type AirportsConfig struct {
	DBPath         string  `toml:"db_path"`          // Path to airport database CSV file (OurAirports format)
	AirportRangeNM float64 `toml:"airport_range_nm"` // Range in nautical miles to consider a position as being at an airport (default: 5.0)
	HomeBase       string  `toml:"home_base"`        // ICAO code of the pilot's home base (e.g., "KDEN")
}

// RosterConfig contains roster import and trip grouping configuration.
// The gap thresholds are duty heuristics, not FAR 117 rest rules; both are
// operator policy and deliberately configurable.
type RosterConfig struct {
	GroupingMode         string  `toml:"grouping_mode"`           // "automatic" (gap-based grouping) or "manual" (one pending trip per row)
	DutyBreakHours       float64 `toml:"duty_break_hours"`        // Gap between arrival and next departure that always starts a new trip (default: 12)
	SeparateDutyGapHours float64 `toml:"separate_duty_gap_hours"` // Gap that starts a new trip when airports do not connect (default: 4)
	MaxCalendarDaySpread int     `toml:"max_calendar_day_spread"` // Legs further apart than this many calendar days never group (default: 1)
}

// OOOIConfig contains automatic OOOI time capture configuration
type OOOIConfig struct {
	Enabled              bool    `toml:"enabled"`                // Enable GPS-based OOOI capture
	TakeoffSpeedKts      float64 `toml:"takeoff_speed_kts"`      // Ground speed at which a takeoff roll is declared (default: 80)
	LandingSpeedKts      float64 `toml:"landing_speed_kts"`      // Ground speed below which a landing rollout is declared (default: 60)
	LandingWindowMinutes int     `toml:"landing_window_minutes"` // Window within which a decel below landing speed counts as a landing (default: 10)
	RoundToFiveMinutes   bool    `toml:"round_to_five_minutes"`  // Round captured times to the nearest 5 minutes
	UseZuluTime          bool    `toml:"use_zulu_time"`          // Record captured times in UTC rather than local time
	MaxSampleAgeSecs     int     `toml:"max_sample_age_seconds"` // Samples older than this are discarded (default: 120)
}

// WeatherConfig contains weather data fetching and caching configuration
type WeatherConfig struct {
	RefreshIntervalMinutes int      `toml:"refresh_interval_minutes"` // Weather data refresh interval in minutes
	APIBaseURL             string   `toml:"api_base_url"`             // Base URL for weather API (e.g., https://aviationweather.gov/api/data)
	RequestTimeoutSeconds  int      `toml:"request_timeout_seconds"`  // HTTP request timeout in seconds
	MaxRetries             int      `toml:"max_retries"`              // Maximum number of retry attempts for failed requests
	FetchMETAR             bool     `toml:"fetch_metar"`              // Whether to fetch METAR data
	FetchTAF               bool     `toml:"fetch_taf"`                // Whether to fetch TAF data
	FetchDATIS             bool     `toml:"fetch_datis"`              // Whether to fetch D-ATIS data
	DATISBaseURLs          []string `toml:"datis_base_urls"`          // D-ATIS endpoints tried in order (clowd.io shape first)
	CacheExpiryMinutes     int      `toml:"cache_expiry_minutes"`     // How long to keep cached data if refresh fails
}

// SchedulesConfig contains flight schedule lookup configuration
type SchedulesConfig struct {
	APIBaseURL            string `toml:"api_base_url"`            // Base URL for the schedule API (AviationStack style)
	APIKey                string `toml:"api_key"`                 // API key passed as the access_key query parameter
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"` // HTTP request timeout in seconds
	MockFallback          bool   `toml:"mock_fallback"`           // Fall back to built-in mock schedules when the API fails
}

// Load loads the configuration from the specified file path
func Load(path string) (*Config, error) {
	var config Config

	// Check if the file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	// Read the config file
	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	return &config, nil
}

// LoadWithFallback loads the configuration by checking multiple locations in order of preference
func LoadWithFallback(preferredPath string) (*Config, error) {
	// List of paths to check in order of preference
	searchPaths := []string{
		preferredPath,         // User-specified path (if provided)
		"configs/config.toml", // configs/ folder
		"config.toml",         // Root directory
	}

	// Remove duplicates while preserving order
	uniquePaths := make([]string, 0, len(searchPaths))
	seen := make(map[string]bool)
	for _, path := range searchPaths {
		if path != "" && !seen[path] {
			uniquePaths = append(uniquePaths, path)
			seen[path] = true
		}
	}

	var lastErr error
	for _, path := range uniquePaths {
		if _, err := os.Stat(path); err == nil {
			// File exists, try to load it
			config, err := Load(path)
			if err != nil {
				lastErr = fmt.Errorf("failed to load config from %s: %w", path, err)
				continue
			}
			return config, nil
		}
		lastErr = fmt.Errorf("config file not found: %s", path)
	}

	return nil, fmt.Errorf("config file not found in any of the expected locations: %v. Last error: %w", uniquePaths, lastErr)
}

// Validate validates the configuration and fills in defaults
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	// Validate logging config
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// Valid log level
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "console":
		// Valid log format
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	// Validate storage config
	if c.Storage.Type == "" {
		c.Storage.Type = "sqlite"
	}
	if c.Storage.Type != "sqlite" {
		return fmt.Errorf("invalid storage type: %s (only 'sqlite' is supported)", c.Storage.Type)
	}
	if c.Storage.SQLitePath == "" {
		return fmt.Errorf("sqlite_path is required when storage type is sqlite")
	}
	if c.Storage.MaxTrackPoints <= 0 {
		c.Storage.MaxTrackPoints = 5000
	}

	// Validate airports config
	if c.Airports.DBPath == "" {
		return fmt.Errorf("airports db_path is required")
	}
	if c.Airports.AirportRangeNM <= 0 {
		c.Airports.AirportRangeNM = 5.0
	}

	// Validate roster config
	if err := c.ValidateRoster(); err != nil {
		return err
	}

	// Validate OOOI config
	if err := c.ValidateOOOI(); err != nil {
		return err
	}

	// Validate weather config
	if err := c.ValidateWeather(); err != nil {
		return err
	}

	// Validate schedules config
	if c.Schedules.RequestTimeoutSeconds <= 0 {
		c.Schedules.RequestTimeoutSeconds = 15
	}
	if c.Schedules.APIKey == "" && !c.Schedules.MockFallback {
		fmt.Printf("WARN: No schedule API key provided and mock fallback disabled - schedule search will be unavailable\n")
	}

	return nil
}

// ValidateRoster validates the roster grouping configuration
func (c *Config) ValidateRoster() error {
	if c.Roster.GroupingMode == "" {
		c.Roster.GroupingMode = "automatic"
	}
	if c.Roster.GroupingMode != "automatic" && c.Roster.GroupingMode != "manual" {
		return fmt.Errorf("invalid roster grouping_mode: %s (must be 'automatic' or 'manual')", c.Roster.GroupingMode)
	}

	if c.Roster.DutyBreakHours == 0 {
		c.Roster.DutyBreakHours = 12
	}
	if c.Roster.DutyBreakHours < 0 {
		return fmt.Errorf("duty_break_hours must be positive: %f", c.Roster.DutyBreakHours)
	}

	if c.Roster.SeparateDutyGapHours == 0 {
		c.Roster.SeparateDutyGapHours = 4
	}
	if c.Roster.SeparateDutyGapHours < 0 {
		return fmt.Errorf("separate_duty_gap_hours must be positive: %f", c.Roster.SeparateDutyGapHours)
	}
	if c.Roster.SeparateDutyGapHours > c.Roster.DutyBreakHours {
		return fmt.Errorf("separate_duty_gap_hours (%f) must not exceed duty_break_hours (%f)",
			c.Roster.SeparateDutyGapHours, c.Roster.DutyBreakHours)
	}

	if c.Roster.MaxCalendarDaySpread == 0 {
		c.Roster.MaxCalendarDaySpread = 1
	}
	if c.Roster.MaxCalendarDaySpread < 0 {
		return fmt.Errorf("max_calendar_day_spread must be positive: %d", c.Roster.MaxCalendarDaySpread)
	}

	return nil
}

// ValidateOOOI validates the OOOI capture configuration
func (c *Config) ValidateOOOI() error {
	if !c.OOOI.Enabled {
		return nil // Skip validation if OOOI capture is disabled
	}

	if c.OOOI.TakeoffSpeedKts == 0 {
		c.OOOI.TakeoffSpeedKts = 80
	}
	if c.OOOI.LandingSpeedKts == 0 {
		c.OOOI.LandingSpeedKts = 60
	}
	if c.OOOI.LandingWindowMinutes == 0 {
		c.OOOI.LandingWindowMinutes = 10
	}
	if c.OOOI.MaxSampleAgeSecs == 0 {
		c.OOOI.MaxSampleAgeSecs = 120
	}

	if c.OOOI.TakeoffSpeedKts <= 0 {
		return fmt.Errorf("takeoff_speed_kts must be positive: %f", c.OOOI.TakeoffSpeedKts)
	}
	if c.OOOI.LandingSpeedKts <= 0 {
		return fmt.Errorf("landing_speed_kts must be positive: %f", c.OOOI.LandingSpeedKts)
	}
	if c.OOOI.LandingSpeedKts >= c.OOOI.TakeoffSpeedKts {
		return fmt.Errorf("landing_speed_kts (%f) must be below takeoff_speed_kts (%f)",
			c.OOOI.LandingSpeedKts, c.OOOI.TakeoffSpeedKts)
	}
	if c.OOOI.LandingWindowMinutes <= 0 {
		return fmt.Errorf("landing_window_minutes must be positive: %d", c.OOOI.LandingWindowMinutes)
	}

	return nil
}

// ValidateWeather validates the weather configuration
func (c *Config) ValidateWeather() error {
	// Weather fetching may be disabled entirely
	if !c.Weather.FetchMETAR && !c.Weather.FetchTAF && !c.Weather.FetchDATIS {
		return nil
	}

	if c.Weather.RefreshIntervalMinutes <= 0 {
		return fmt.Errorf("weather refresh_interval_minutes must be greater than 0: %d", c.Weather.RefreshIntervalMinutes)
	}

	if c.Weather.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("weather request_timeout_seconds must be greater than 0: %d", c.Weather.RequestTimeoutSeconds)
	}

	if c.Weather.MaxRetries < 0 {
		return fmt.Errorf("weather max_retries must be 0 or greater: %d", c.Weather.MaxRetries)
	}

	if c.Weather.CacheExpiryMinutes <= 0 {
		return fmt.Errorf("weather cache_expiry_minutes must be greater than 0: %d", c.Weather.CacheExpiryMinutes)
	}

	if (c.Weather.FetchMETAR || c.Weather.FetchTAF) && c.Weather.APIBaseURL == "" {
		return fmt.Errorf("weather api_base_url cannot be empty")
	}

	if c.Weather.FetchDATIS && len(c.Weather.DATISBaseURLs) == 0 {
		return fmt.Errorf("at least one datis_base_urls entry is required when fetch_datis is enabled")
	}

	// A home base is required so weather has an airport to fetch for
	if c.Airports.HomeBase == "" {
		return fmt.Errorf("airports home_base is required when weather fetching is enabled")
	}

	return nil
}
