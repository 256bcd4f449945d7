// Package ooi turns a raw GPS position/speed feed into discrete OOOI capture
// events: takeoff and landing rolls from speed thresholds, gate departure and
// arrival from airport geofencing.
package ooi

import (
	"sync"
	"time"

	"github.com/skyops/propilot/internal/airport"
	"github.com/skyops/propilot/internal/config"
	"github.com/skyops/propilot/internal/events"
	"github.com/skyops/propilot/internal/geo"
	"github.com/skyops/propilot/pkg/logger"
)

// PositionSample is one GPS fix from the device feed. SpeedKts below zero
// means the source had no speed solution; the monitor derives it from the
// previous fix instead.
type PositionSample struct {
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	SpeedKts  float64   `json:"speed_kts"`
	Timestamp time.Time `json:"timestamp"`
}

// TrackSink receives every accepted sample, e.g. for GPX/KML export storage
type TrackSink interface {
	RecordSample(s PositionSample)
}

// Status is a snapshot of the monitor state for the API
type Status struct {
	LastSample     *PositionSample `json:"last_sample,omitempty"`
	CurrentAirport string          `json:"current_airport,omitempty"`
	AirborneArmed  bool            `json:"airborne_armed"` // takeoff fired, landing pending
	LastSpeedKts   float64         `json:"last_speed_kts"`
	SamplesSeen    int64           `json:"samples_seen"`
	SamplesStale   int64           `json:"samples_stale"`
}

// Monitor is the speed/geofence state machine. It fires at most one takeoff
// and one landing per cycle:
//
//   - takeoff: speed crosses the takeoff threshold (default 80 kt) while
//     within range of a known airport
//   - landing: speed drops below the landing threshold (default 60 kt) while
//     near an airport, within the landing window (default 10 min) of the last
//     sample above the takeoff threshold
//
// After a landing fires the machine rearms for the next leg. Geofence
// transitions (entering/leaving airport range) publish arrival/departure
// events independently of the speed machine.
type Monitor struct {
	db      *airport.Database
	bus     *events.Bus
	cfg     config.OOOIConfig
	rangeNM float64
	sink    TrackSink
	logger  *logger.Logger

	mu             sync.Mutex
	lastSample     *PositionSample
	currentAirport string // ICAO of airport currently in range, "" when outside
	takeoffFired   bool
	lastAboveAt    time.Time // last sample at/above the takeoff threshold
	samplesSeen    int64
	samplesStale   int64
}

// NewMonitor creates a new OOOI capture monitor
func NewMonitor(db *airport.Database, bus *events.Bus, cfg config.OOOIConfig, airportRangeNM float64, sink TrackSink, log *logger.Logger) *Monitor {
	return &Monitor{
		db:      db,
		bus:     bus,
		cfg:     cfg,
		rangeNM: airportRangeNM,
		sink:    sink,
		logger:  log.Named("ooi-monitor"),
	}
}

// Ingest processes one position sample. Stale or out-of-order samples are
// dropped. Returns true when the sample was accepted.
func (m *Monitor) Ingest(s PositionSample) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.samplesSeen++

	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now().UTC()
	}

	maxAge := time.Duration(m.cfg.MaxSampleAgeSecs) * time.Second
	if maxAge > 0 && time.Since(s.Timestamp) > maxAge {
		m.samplesStale++
		m.logger.Debug("Dropping stale position sample",
			logger.Time("timestamp", s.Timestamp))
		return false
	}
	if m.lastSample != nil && !s.Timestamp.After(m.lastSample.Timestamp) {
		m.samplesStale++
		return false
	}

	// Derive speed from the previous fix when the source had none
	if s.SpeedKts < 0 {
		if m.lastSample == nil {
			s.SpeedKts = 0
		} else {
			s.SpeedKts = geo.GroundSpeedKts(
				m.lastSample.Lat, m.lastSample.Lon, m.lastSample.Timestamp,
				s.Lat, s.Lon, s.Timestamp)
		}
	}

	if m.sink != nil {
		m.sink.RecordSample(s)
	}

	apt, distNM, inRange := m.db.NearestWithin(s.Lat, s.Lon, m.rangeNM)

	m.updateGeofence(s, apt, inRange)
	m.updateSpeedMachine(s, apt, distNM, inRange)

	m.lastSample = &s
	return true
}

// updateGeofence publishes arrival/departure events on range transitions
func (m *Monitor) updateGeofence(s PositionSample, apt *airport.Airport, inRange bool) {
	switch {
	case inRange && m.currentAirport == "":
		m.currentAirport = apt.ICAO
		m.logger.Info("Arrived at airport",
			logger.String("airport", apt.ICAO),
			logger.Float64("speed_kts", s.SpeedKts))
		m.bus.Publish(events.Event{
			Type:      events.TypeArrivedAtAirport,
			Timestamp: s.Timestamp,
			Airport:   apt.ICAO,
			Lat:       s.Lat,
			Lon:       s.Lon,
			SpeedKts:  s.SpeedKts,
		})

	case !inRange && m.currentAirport != "":
		departed := m.currentAirport
		m.currentAirport = ""
		m.logger.Info("Departed airport",
			logger.String("airport", departed),
			logger.Float64("speed_kts", s.SpeedKts))
		m.bus.Publish(events.Event{
			Type:      events.TypeDepartedAirport,
			Timestamp: s.Timestamp,
			Airport:   departed,
			Lat:       s.Lat,
			Lon:       s.Lon,
			SpeedKts:  s.SpeedKts,
		})

	case inRange && m.currentAirport != apt.ICAO:
		// Moved directly from one airport's range into another's
		m.currentAirport = apt.ICAO
	}
}

// updateSpeedMachine runs the takeoff/landing threshold detection
func (m *Monitor) updateSpeedMachine(s PositionSample, apt *airport.Airport, distNM float64, inRange bool) {
	if s.SpeedKts >= m.cfg.TakeoffSpeedKts {
		m.lastAboveAt = s.Timestamp

		if !m.takeoffFired && inRange {
			m.takeoffFired = true
			m.logger.Info("Takeoff roll detected",
				logger.String("airport", apt.ICAO),
				logger.Float64("speed_kts", s.SpeedKts),
				logger.Float64("distance_nm", distNM))
			m.bus.Publish(events.Event{
				Type:      events.TypeTakeoffRoll,
				Timestamp: s.Timestamp,
				Airport:   apt.ICAO,
				Lat:       s.Lat,
				Lon:       s.Lon,
				SpeedKts:  s.SpeedKts,
			})
		}
		return
	}

	if m.takeoffFired && s.SpeedKts < m.cfg.LandingSpeedKts && inRange {
		window := time.Duration(m.cfg.LandingWindowMinutes) * time.Minute
		if m.lastAboveAt.IsZero() || s.Timestamp.Sub(m.lastAboveAt) > window {
			return
		}

		m.logger.Info("Landing rollout detected",
			logger.String("airport", apt.ICAO),
			logger.Float64("speed_kts", s.SpeedKts),
			logger.Float64("distance_nm", distNM))
		m.bus.Publish(events.Event{
			Type:      events.TypeLandingRoll,
			Timestamp: s.Timestamp,
			Airport:   apt.ICAO,
			Lat:       s.Lat,
			Lon:       s.Lon,
			SpeedKts:  s.SpeedKts,
		})

		// Rearm for the next leg
		m.takeoffFired = false
		m.lastAboveAt = time.Time{}
	}
}

// Reset clears the speed machine, e.g. when the active trip changes
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.takeoffFired = false
	m.lastAboveAt = time.Time{}
}

// Status returns a snapshot of the monitor state
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := Status{
		CurrentAirport: m.currentAirport,
		AirborneArmed:  m.takeoffFired,
		SamplesSeen:    m.samplesSeen,
		SamplesStale:   m.samplesStale,
	}
	if m.lastSample != nil {
		sample := *m.lastSample
		st.LastSample = &sample
		st.LastSpeedKts = sample.SpeedKts
	}
	return st
}
