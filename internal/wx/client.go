package wx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/skyops/propilot/internal/config"
	"github.com/skyops/propilot/pkg/logger"
)

// Client handles HTTP requests to the weather APIs
type Client struct {
	config     config.WeatherConfig
	httpClient *http.Client
	logger     *logger.Logger
}

// NewClient creates a new weather API client
func NewClient(cfg config.WeatherConfig, log *logger.Logger) *Client {
	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
		},
		logger: log.Named("wx-client"),
	}
}

// FetchMETAR fetches the latest METAR observation for the specified airport
func (c *Client) FetchMETAR(airportCode string) (*METARResponse, error) {
	url := fmt.Sprintf("%s/metar?ids=%s&format=json", c.config.APIBaseURL, airportCode)

	var result []METARResponse // API returns an array
	if err := c.fetchWithRetry(url, TypeMETAR, airportCode, &result); err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("no METAR data found for %s", airportCode)
	}

	// First entry is the latest observation
	return &result[0], nil
}

// FetchTAF fetches the current TAF for the specified airport
func (c *Client) FetchTAF(airportCode string) (*TAFResponse, error) {
	url := fmt.Sprintf("%s/taf?ids=%s&format=json", c.config.APIBaseURL, airportCode)

	var result []TAFResponse
	if err := c.fetchWithRetry(url, TypeTAF, airportCode, &result); err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("no TAF data found for %s", airportCode)
	}
	return &result[0], nil
}

// FetchDATIS fetches digital ATIS for the specified airport, trying each
// configured endpoint in order. Endpoints differ in response shape: some
// return an array of broadcasts, some a single object, so both are tried
// before giving up on a body.
func (c *Client) FetchDATIS(airportCode string) ([]DATISResponse, error) {
	var lastErr error
	for _, base := range c.config.DATISBaseURLs {
		url := fmt.Sprintf("%s/%s", strings.TrimRight(base, "/"), airportCode)

		var raw json.RawMessage
		if err := c.fetchWithRetry(url, TypeDATIS, airportCode, &raw); err != nil {
			lastErr = err
			continue
		}

		broadcasts, err := decodeDATIS(raw)
		if err != nil {
			lastErr = fmt.Errorf("unrecognized D-ATIS response from %s: %w", base, err)
			c.logger.Warn("Unrecognized D-ATIS response shape",
				logger.String("airport", airportCode),
				logger.String("endpoint", base),
				logger.Error(err))
			continue
		}
		if len(broadcasts) == 0 {
			lastErr = fmt.Errorf("no D-ATIS found for %s", airportCode)
			continue
		}
		return broadcasts, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no D-ATIS endpoints configured")
	}
	return nil, lastErr
}

// decodeDATIS accepts the known D-ATIS body shapes: an array of broadcasts
// (datis.clowd.io), a single broadcast object, or an error envelope.
func decodeDATIS(raw json.RawMessage) ([]DATISResponse, error) {
	var list []DATISResponse
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}

	var single DATISResponse
	if err := json.Unmarshal(raw, &single); err == nil && single.Text != "" {
		return []DATISResponse{single}, nil
	}

	var envelope struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error != "" {
		return nil, fmt.Errorf("endpoint error: %s", envelope.Error)
	}

	return nil, fmt.Errorf("body matches no known shape")
}

// fetchWithRetry performs an HTTP request with retry logic and exponential backoff
func (c *Client) fetchWithRetry(url string, wxType Type, airportCode string, target any) error {
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoffDuration := time.Duration(500*(1<<uint(attempt-1))) * time.Millisecond
			c.logger.Info("Retrying weather data fetch",
				logger.String("type", string(wxType)),
				logger.String("airport", airportCode),
				logger.Int("attempt", attempt),
				logger.String("backoff", backoffDuration.String()))
			time.Sleep(backoffDuration)
		}

		resp, err := c.httpClient.Get(url)
		if err != nil {
			lastErr = fmt.Errorf("error making request to weather API: %w", err)
			c.logger.Warn("Weather API request failed, may retry",
				logger.String("type", string(wxType)),
				logger.String("airport", airportCode),
				logger.Error(err),
				logger.Int("attempt", attempt+1),
				logger.Int("max_attempts", c.config.MaxRetries+1))
			continue
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			lastErr = fmt.Errorf("unexpected status code: %d", resp.StatusCode)
			c.logger.Warn("Weather API returned non-OK status, may retry",
				logger.String("type", string(wxType)),
				logger.String("airport", airportCode),
				logger.Int("status_code", resp.StatusCode),
				logger.Int("attempt", attempt+1),
				logger.Int("max_attempts", c.config.MaxRetries+1))
			continue
		}

		err = json.NewDecoder(resp.Body).Decode(target)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("error decoding weather data: %w", err)
			c.logger.Warn("Failed to decode weather data, may retry",
				logger.String("type", string(wxType)),
				logger.String("airport", airportCode),
				logger.Error(err),
				logger.Int("attempt", attempt+1),
				logger.Int("max_attempts", c.config.MaxRetries+1))
			continue
		}

		if attempt > 0 {
			c.logger.Info("Successfully fetched weather data after retries",
				logger.String("type", string(wxType)),
				logger.String("airport", airportCode),
				logger.Int("attempts_needed", attempt+1))
		}
		return nil
	}

	c.logger.Error("All attempts to fetch weather data failed",
		logger.String("type", string(wxType)),
		logger.String("airport", airportCode),
		logger.Error(lastErr),
		logger.Int("max_attempts", c.config.MaxRetries+1))
	return lastErr
}

// FetchAll fetches all enabled weather products concurrently
func (c *Client) FetchAll(airportCode string) []FetchResult {
	results := make(chan FetchResult, 3)
	var fetchCount int

	if c.config.FetchMETAR {
		fetchCount++
		go func() {
			data, err := c.FetchMETAR(airportCode)
			results <- FetchResult{Type: TypeMETAR, Data: data, Err: err}
		}()
	}

	if c.config.FetchTAF {
		fetchCount++
		go func() {
			data, err := c.FetchTAF(airportCode)
			results <- FetchResult{Type: TypeTAF, Data: data, Err: err}
		}()
	}

	if c.config.FetchDATIS {
		fetchCount++
		go func() {
			data, err := c.FetchDATIS(airportCode)
			results <- FetchResult{Type: TypeDATIS, Data: data, Err: err}
		}()
	}

	var fetchResults []FetchResult
	for i := 0; i < fetchCount; i++ {
		fetchResults = append(fetchResults, <-results)
	}
	return fetchResults
}
