package schedules

import (
	"hash/fnv"
	"time"
)

// mockRoutes is the route pool the mock scheduler draws from
var mockRoutes = [][2]string{
	{"KDEN", "KORD"},
	{"KORD", "KLGA"},
	{"KLGA", "KBOS"},
	{"KBOS", "KDCA"},
	{"KDCA", "KATL"},
	{"KATL", "KMCO"},
	{"KMCO", "KDEN"},
	{"KDEN", "KPHX"},
	{"KPHX", "KLAS"},
	{"KLAS", "KSFO"},
}

// mockFlights builds a deterministic schedule for a flight number and date:
// the same inputs always produce the same route and times, so offline demos
// and tests are reproducible.
func mockFlights(flightNumber string, date time.Time) []Flight {
	h := fnv.New32a()
	h.Write([]byte(flightNumber))
	h.Write([]byte(date.Format("2006-01-02")))
	seed := h.Sum32()

	route := mockRoutes[seed%uint32(len(mockRoutes))]

	// Departure between 06:00 and 20:59 local to the date, minutes on a
	// five-minute boundary; block time between 1h30 and 4h25.
	depHour := 6 + int(seed>>8)%15
	depMin := (int(seed>>16) % 12) * 5
	blockMin := 90 + (int(seed>>4)%36)*5

	dep := time.Date(date.Year(), date.Month(), date.Day(), depHour, depMin, 0, 0, time.UTC)
	arr := dep.Add(time.Duration(blockMin) * time.Minute)

	return []Flight{{
		FlightNumber:  flightNumber,
		Airline:       "Mock Airlines",
		Departure:     route[0],
		Arrival:       route[1],
		DepartureTime: dep,
		ArrivalTime:   arr,
		Status:        "scheduled",
		Mock:          true,
	}}
}
