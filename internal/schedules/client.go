package schedules

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/skyops/propilot/internal/config"
	"github.com/skyops/propilot/pkg/logger"
)

// scheduledTimeLayout is the timestamp form the API uses, e.g.
// "2026-08-23T14:30:00+00:00"
const scheduledTimeLayout = "2006-01-02T15:04:05-07:00"

// Service looks up flights by number or date. When the API is unreachable,
// keyless, or returns nothing, MockFallback serves deterministic schedules so
// the rest of the app keeps working offline.
type Service struct {
	config     config.SchedulesConfig
	httpClient *http.Client
	logger     *logger.Logger
}

// NewService creates a new schedule lookup service
func NewService(cfg config.SchedulesConfig, log *logger.Logger) *Service {
	return &Service{
		config: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
		},
		logger: log.Named("schedules"),
	}
}

// Search returns scheduled flights matching a flight number on a date. The
// date is optional; a zero value means today.
func (s *Service) Search(flightNumber string, date time.Time) ([]Flight, error) {
	flightNumber = strings.ToUpper(strings.TrimSpace(flightNumber))
	if flightNumber == "" {
		return nil, fmt.Errorf("flight number is required")
	}
	if date.IsZero() {
		date = time.Now().UTC()
	}

	flights, err := s.queryAPI(flightNumber, date)
	if err == nil && len(flights) > 0 {
		return flights, nil
	}

	if err != nil {
		s.logger.Warn("Schedule API lookup failed",
			logger.String("flight", flightNumber),
			logger.Error(err))
	}

	if s.config.MockFallback {
		s.logger.Info("Serving mock schedule",
			logger.String("flight", flightNumber),
			logger.Time("date", date))
		return mockFlights(flightNumber, date), nil
	}
	if err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("no schedule found for %s", flightNumber)
}

// queryAPI performs the AviationStack flights request
func (s *Service) queryAPI(flightNumber string, date time.Time) ([]Flight, error) {
	if s.config.APIKey == "" {
		return nil, fmt.Errorf("no API key configured")
	}

	query := url.Values{}
	query.Set("access_key", s.config.APIKey)
	query.Set("flight_iata", flightNumber)
	query.Set("flight_date", date.Format("2006-01-02"))

	reqURL := fmt.Sprintf("%s/flights?%s", strings.TrimRight(s.config.APIBaseURL, "/"), query.Encode())

	resp, err := s.httpClient.Get(reqURL)
	if err != nil {
		return nil, fmt.Errorf("schedule API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("schedule API returned status %d", resp.StatusCode)
	}

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode schedule response: %w", err)
	}

	flights := make([]Flight, 0, len(body.Data))
	for _, rec := range body.Data {
		f := Flight{
			FlightNumber: rec.Flight.IATA,
			Airline:      rec.Airline.Name,
			Departure:    rec.Departure.code(),
			Arrival:      rec.Arrival.code(),
			Status:       rec.FlightStatus,
		}
		if f.FlightNumber == "" {
			f.FlightNumber = rec.Flight.ICAO
		}
		if rec.Aircraft != nil {
			f.Aircraft = rec.Aircraft.Registration
		}
		if t, err := time.Parse(scheduledTimeLayout, rec.Departure.Scheduled); err == nil {
			f.DepartureTime = t
		}
		if t, err := time.Parse(scheduledTimeLayout, rec.Arrival.Scheduled); err == nil {
			f.ArrivalTime = t
		}
		flights = append(flights, f)
	}
	return flights, nil
}
