// Package simulation generates a synthetic GPS feed for development: a full
// flight profile between two airports (taxi, takeoff roll, cruise,
// deceleration, taxi in) pushed into the OOOI monitor at a fixed tick.
package simulation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/skyops/propilot/internal/airport"
	"github.com/skyops/propilot/internal/geo"
	"github.com/skyops/propilot/internal/ooi"
	"github.com/skyops/propilot/pkg/logger"
)

// phase durations and speeds for the synthetic profile
const (
	tickInterval = time.Second

	taxiOutSecs = 30
	climbSecs   = 60
	descentSecs = 60
	taxiInSecs  = 30

	taxiSpeedKts   = 15.0
	cruiseSpeedKts = 420.0
)

// Flight is one simulated flight in progress
type Flight struct {
	Departure string    `json:"departure"`
	Arrival   string    `json:"arrival"`
	Phase     string    `json:"phase"`
	StartedAt time.Time `json:"started_at"`
	Progress  float64   `json:"progress"` // 0..1 along the route
}

// Service runs at most one simulated flight at a time
type Service struct {
	db      *airport.Database
	monitor *ooi.Monitor
	logger  *logger.Logger

	mu      sync.Mutex
	base    context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	current *Flight
}

// NewService creates a new simulation service
func NewService(db *airport.Database, monitor *ooi.Monitor, log *logger.Logger) *Service {
	return &Service{
		db:      db,
		monitor: monitor,
		logger:  log.Named("simulation"),
	}
}

// Start binds the service to the server lifetime. Flights run on this
// context, not on the request that started them.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.base = ctx
	return nil
}

// StartFlight begins a simulated flight between two airports. Cruise duration
// scales with the route distance; the full profile runs automatically.
func (s *Service) StartFlight(departure, arrival string) (*Flight, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		return nil, fmt.Errorf("a simulated flight is already running")
	}

	dep, ok := s.db.Lookup(departure)
	if !ok {
		return nil, fmt.Errorf("unknown departure airport %q", departure)
	}
	arr, ok := s.db.Lookup(arrival)
	if !ok {
		return nil, fmt.Errorf("unknown arrival airport %q", arrival)
	}
	if dep.ICAO == arr.ICAO {
		return nil, fmt.Errorf("departure and arrival must differ")
	}

	flight := &Flight{
		Departure: dep.ICAO,
		Arrival:   arr.ICAO,
		Phase:     "taxi_out",
		StartedAt: time.Now().UTC(),
	}
	s.current = flight

	base := s.base
	if base == nil {
		base = context.Background()
	}
	ctx, cancel := context.WithCancel(base)
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.fly(ctx, dep, arr, flight)
	}()

	s.logger.Info("Simulated flight started",
		logger.String("departure", dep.ICAO),
		logger.String("arrival", arr.ICAO))
	return flight, nil
}

// StopFlight aborts the running simulated flight, if any
func (s *Service) StopFlight() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// Current returns the in-progress flight, if any
func (s *Service) Current() (*Flight, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil, false
	}
	snapshot := *s.current
	return &snapshot, true
}

// fly walks the flight profile, emitting one position sample per tick
func (s *Service) fly(ctx context.Context, dep, arr *airport.Airport, flight *Flight) {
	defer func() {
		s.mu.Lock()
		s.current = nil
		s.cancel = nil
		s.mu.Unlock()
		s.logger.Info("Simulated flight ended",
			logger.String("departure", dep.ICAO),
			logger.String("arrival", arr.ICAO))
	}()

	distM := geo.Haversine(dep.Latitude, dep.Longitude, arr.Latitude, arr.Longitude)

	// Cruise long enough to cover the route at cruise speed
	cruiseSecs := int(distM / (cruiseSpeedKts * geo.KnotsToMs))
	if cruiseSecs < 60 {
		cruiseSecs = 60
	}

	totalSecs := taxiOutSecs + climbSecs + cruiseSecs + descentSecs + taxiInSecs

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for elapsed := 0; elapsed <= totalSecs; elapsed++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		phase, speed := profileAt(elapsed, cruiseSecs)
		progress := float64(elapsed) / float64(totalSecs)

		lat := dep.Latitude + (arr.Latitude-dep.Latitude)*progress
		lon := dep.Longitude + (arr.Longitude-dep.Longitude)*progress

		s.mu.Lock()
		flight.Phase = phase
		flight.Progress = progress
		s.mu.Unlock()

		s.monitor.Ingest(ooi.PositionSample{
			Lat:       lat,
			Lon:       lon,
			SpeedKts:  speed,
			Timestamp: time.Now().UTC(),
		})
	}
}

// profileAt returns the phase name and ground speed at a point in the flight
func profileAt(elapsed, cruiseSecs int) (string, float64) {
	switch {
	case elapsed < taxiOutSecs:
		return "taxi_out", taxiSpeedKts

	case elapsed < taxiOutSecs+climbSecs:
		// Accelerate through the takeoff roll into the climb
		frac := float64(elapsed-taxiOutSecs) / float64(climbSecs)
		return "climb", taxiSpeedKts + (cruiseSpeedKts-taxiSpeedKts)*frac

	case elapsed < taxiOutSecs+climbSecs+cruiseSecs:
		return "cruise", cruiseSpeedKts

	case elapsed < taxiOutSecs+climbSecs+cruiseSecs+descentSecs:
		// Decelerate through the approach and landing rollout
		frac := float64(elapsed-taxiOutSecs-climbSecs-cruiseSecs) / float64(descentSecs)
		return "descent", cruiseSpeedKts - (cruiseSpeedKts-taxiSpeedKts)*frac

	default:
		return "taxi_in", taxiSpeedKts
	}
}
