package schedules

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyops/propilot/internal/config"
	"github.com/skyops/propilot/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "console"})
	require.NoError(t, err)
	return log
}

func TestMockFlightsDeterministic(t *testing.T) {
	date := time.Date(2026, 8, 23, 0, 0, 0, 0, time.UTC)

	first := mockFlights("UA100", date)
	second := mockFlights("UA100", date)
	require.Len(t, first, 1)
	assert.Equal(t, first, second)

	f := first[0]
	assert.True(t, f.Mock)
	assert.Equal(t, "scheduled", f.Status)
	assert.NotEqual(t, f.Departure, f.Arrival)

	// Departure window and five-minute boundary
	assert.GreaterOrEqual(t, f.DepartureTime.Hour(), 6)
	assert.LessOrEqual(t, f.DepartureTime.Hour(), 20)
	assert.Equal(t, 0, f.DepartureTime.Minute()%5)

	block := f.ArrivalTime.Sub(f.DepartureTime)
	assert.GreaterOrEqual(t, block, 90*time.Minute)
	assert.LessOrEqual(t, block, 265*time.Minute)

	// The route comes from the known pool
	assert.Contains(t, mockRoutes, [2]string{f.Departure, f.Arrival})
}

func TestMockFlightsVaryByDate(t *testing.T) {
	sunday := time.Date(2026, 8, 23, 0, 0, 0, 0, time.UTC)
	monday := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)

	first := mockFlights("UA100", sunday)[0]
	second := mockFlights("UA100", monday)[0]

	// The date is part of the seed, so consecutive days get different schedules
	assert.NotEqual(t,
		first.DepartureTime.Format("15:04"),
		second.DepartureTime.Format("15:04"))
}

func TestSearchFallsBackToMockWithoutKey(t *testing.T) {
	svc := NewService(config.SchedulesConfig{
		MockFallback:          true,
		RequestTimeoutSeconds: 5,
	}, testLogger(t))

	flights, err := svc.Search("ua100", time.Date(2026, 8, 23, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, flights, 1)
	assert.True(t, flights[0].Mock)
	assert.Equal(t, "UA100", flights[0].FlightNumber)
}

func TestSearchRequiresFlightNumber(t *testing.T) {
	svc := NewService(config.SchedulesConfig{MockFallback: true}, testLogger(t))
	_, err := svc.Search("  ", time.Time{})
	assert.Error(t, err)
}

func TestSearchErrorsWithoutKeyOrFallback(t *testing.T) {
	svc := NewService(config.SchedulesConfig{
		MockFallback:          false,
		RequestTimeoutSeconds: 5,
	}, testLogger(t))

	_, err := svc.Search("UA100", time.Time{})
	assert.Error(t, err)
}

func TestSearchQueriesAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/flights", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("access_key"))
		assert.Equal(t, "UA100", r.URL.Query().Get("flight_iata"))
		assert.Equal(t, "2026-08-23", r.URL.Query().Get("flight_date"))

		fmt.Fprint(w, `{
			"pagination": {"limit": 100, "offset": 0, "count": 1, "total": 1},
			"data": [{
				"flight_date": "2026-08-23",
				"flight_status": "scheduled",
				"departure": {"airport": "Denver Intl", "iata": "DEN", "icao": "KDEN", "scheduled": "2026-08-23T06:00:00+00:00"},
				"arrival": {"airport": "Chicago O'Hare Intl", "iata": "ORD", "icao": "KORD", "scheduled": "2026-08-23T08:15:00+00:00"},
				"airline": {"name": "United Airlines", "iata": "UA", "icao": "UAL"},
				"flight": {"number": "100", "iata": "UA100", "icao": "UAL100"},
				"aircraft": {"registration": "N12345", "iata": "B738"}
			}]
		}`)
	}))
	defer srv.Close()

	svc := NewService(config.SchedulesConfig{
		APIBaseURL:            srv.URL,
		APIKey:                "test-key",
		RequestTimeoutSeconds: 5,
	}, testLogger(t))

	flights, err := svc.Search("UA100", time.Date(2026, 8, 23, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, flights, 1)

	f := flights[0]
	assert.False(t, f.Mock)
	assert.Equal(t, "UA100", f.FlightNumber)
	assert.Equal(t, "United Airlines", f.Airline)
	assert.Equal(t, "KDEN", f.Departure)
	assert.Equal(t, "KORD", f.Arrival)
	assert.Equal(t, "N12345", f.Aircraft)
	assert.Equal(t, time.Date(2026, 8, 23, 6, 0, 0, 0, time.UTC), f.DepartureTime.UTC())
}

func TestSearchEmptyAPIResultUsesMock(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"pagination": {}, "data": []}`)
	}))
	defer srv.Close()

	svc := NewService(config.SchedulesConfig{
		APIBaseURL:            srv.URL,
		APIKey:                "test-key",
		RequestTimeoutSeconds: 5,
		MockFallback:          true,
	}, testLogger(t))

	flights, err := svc.Search("UA100", time.Date(2026, 8, 23, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, flights, 1)
	assert.True(t, flights[0].Mock)
}

func TestScheduleItemConversion(t *testing.T) {
	f := Flight{
		FlightNumber:  "UA100",
		Departure:     "KDEN",
		Arrival:       "KORD",
		DepartureTime: time.Date(2026, 8, 23, 6, 0, 0, 0, time.UTC),
		ArrivalTime:   time.Date(2026, 8, 23, 8, 15, 0, 0, time.UTC),
		Aircraft:      "N12345",
	}

	item := f.ScheduleItem()
	assert.Equal(t, "UA100", item.FlightNumber)
	assert.Equal(t, "KDEN", item.Departure)
	assert.True(t, item.Valid())
}
