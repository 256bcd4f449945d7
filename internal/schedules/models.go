// Package schedules looks up scheduled flight data from an AviationStack
// style API, with a deterministic built-in mock as fallback for offline or
// keyless use.
package schedules

import (
	"time"

	"github.com/skyops/propilot/internal/roster"
)

// endpoint is one side of a flight in the API response
type endpoint struct {
	Airport   string `json:"airport"`
	IATA      string `json:"iata"`
	ICAO      string `json:"icao"`
	Scheduled string `json:"scheduled"`
	Estimated string `json:"estimated"`
	Actual    string `json:"actual"`
}

// flightRecord is one entry in the API's data array
type flightRecord struct {
	FlightDate   string   `json:"flight_date"`
	FlightStatus string   `json:"flight_status"`
	Departure    endpoint `json:"departure"`
	Arrival      endpoint `json:"arrival"`
	Airline      struct {
		Name string `json:"name"`
		IATA string `json:"iata"`
		ICAO string `json:"icao"`
	} `json:"airline"`
	Flight struct {
		Number string `json:"number"`
		IATA   string `json:"iata"`
		ICAO   string `json:"icao"`
	} `json:"flight"`
	Aircraft *struct {
		Registration string `json:"registration"`
		IATA         string `json:"iata"`
	} `json:"aircraft"`
}

// apiResponse is the AviationStack envelope
type apiResponse struct {
	Pagination struct {
		Limit  int `json:"limit"`
		Offset int `json:"offset"`
		Count  int `json:"count"`
		Total  int `json:"total"`
	} `json:"pagination"`
	Data []flightRecord `json:"data"`
}

// Flight is one scheduled flight as returned to callers
type Flight struct {
	FlightNumber  string    `json:"flight_number"`
	Airline       string    `json:"airline,omitempty"`
	Departure     string    `json:"departure"` // ICAO preferred, IATA fallback
	Arrival       string    `json:"arrival"`
	DepartureTime time.Time `json:"departure_time"`
	ArrivalTime   time.Time `json:"arrival_time"`
	Aircraft      string    `json:"aircraft,omitempty"`
	Status        string    `json:"status,omitempty"`
	Mock          bool      `json:"mock,omitempty"` // served by the built-in mock
}

// ScheduleItem converts the flight to a roster row so lookups can feed the
// trip builder directly.
func (f *Flight) ScheduleItem() roster.BasicScheduleItem {
	return roster.BasicScheduleItem{
		FlightNumber:  f.FlightNumber,
		Departure:     f.Departure,
		Arrival:       f.Arrival,
		DepartureTime: f.DepartureTime,
		ArrivalTime:   f.ArrivalTime,
		Aircraft:      f.Aircraft,
	}
}

// code prefers the ICAO identifier, falling back to IATA
func (e *endpoint) code() string {
	if e.ICAO != "" {
		return e.ICAO
	}
	return e.IATA
}
