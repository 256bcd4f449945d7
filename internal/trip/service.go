package trip

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skyops/propilot/internal/config"
	"github.com/skyops/propilot/internal/events"
	"github.com/skyops/propilot/pkg/logger"
)

// Storage defines the interface for trip persistence. SaveTrip must enforce
// the single-current-trip invariant: saving a trip whose status is planning
// or active force-completes every other planning/active trip in the same
// transaction.
type Storage interface {
	SaveTrip(t *Trip) error
	GetTrip(id uuid.UUID) (*Trip, bool)
	GetAllTrips() ([]*Trip, error)
	GetCurrentTrip() (*Trip, bool)
	DeleteTrip(id uuid.UUID) error
}

// Service owns trip mutation. All state changes flow through it so the
// single-current-trip invariant and OOOI capture semantics hold after every
// operation.
type Service struct {
	storage Storage
	bus     *events.Bus
	cfg     config.OOOIConfig
	logger  *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService creates a new trip service
func NewService(storage Storage, bus *events.Bus, cfg config.OOOIConfig, log *logger.Logger) *Service {
	return &Service{
		storage: storage,
		bus:     bus,
		cfg:     cfg,
		logger:  log.Named("trip-service"),
	}
}

// Start subscribes the service to capture events and begins consuming them
func (s *Service) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	ch, unsub := s.bus.Subscribe(
		events.TypeTakeoffRoll,
		events.TypeLandingRoll,
		events.TypeArrivedAtAirport,
		events.TypeDepartedAirport,
	)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer unsub()
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-ch:
				if !ok {
					return
				}
				s.handleEvent(evt)
			}
		}
	}()

	s.logger.Info("Trip service started",
		logger.Bool("auto_capture", s.cfg.Enabled),
		logger.Bool("round_to_five", s.cfg.RoundToFiveMinutes),
		logger.Bool("zulu", s.cfg.UseZuluTime))
	return nil
}

// Stop shuts down the event consumer
func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("Trip service stopped")
}

// handleEvent applies a capture event to the current trip. Events with no
// current trip, no active leg, or an already-populated field are silently
// ignored; capture is at-most-once per leg.
func (s *Service) handleEvent(evt events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.storage.GetCurrentTrip()
	if !ok || current.Status != StatusActive {
		s.logger.Debug("Capture event ignored - no active trip",
			logger.String("type", string(evt.Type)))
		return
	}

	ts := s.captureTime(evt.Timestamp)

	var field OOOIField
	switch evt.Type {
	case events.TypeTakeoffRoll:
		field = FieldOff
	case events.TypeLandingRoll:
		field = FieldOn
	case events.TypeDepartedAirport:
		field = FieldOut
	case events.TypeArrivedAtAirport:
		field = FieldIn
	default:
		return
	}

	var err error
	if field == FieldOff || field == FieldOn {
		err = current.CaptureAutoTime(field, ts)
	} else {
		// Geofence-driven OUT/IN: same set-once discipline, applied to the
		// active leg, and IN advances the state machine. The monitor fires
		// an arrival on any ring entry, including the first gate fix at the
		// departure airport and the arrival-ring crossing on approach, so
		// the capture must hold block order: OUT only before the takeoff,
		// IN only once the landing is on the books.
		leg, hasActive := current.ActiveLeg()
		switch {
		case !hasActive:
			err = ErrNoActiveLeg
		case leg.Times.Get(field) != nil:
			err = ErrAlreadySet
		case field == FieldOut && leg.Times.Off != nil:
			err = ErrOutOfSequence
		case field == FieldIn && leg.Times.On == nil:
			err = ErrOutOfSequence
		default:
			err = current.SetLegTime(leg.ID, field, ts, false)
		}
	}

	switch {
	case err == nil:
		if saveErr := s.storage.SaveTrip(current); saveErr != nil {
			s.logger.Error("Failed to persist captured time",
				logger.Error(saveErr),
				logger.String("field", field.String()))
			return
		}
		s.logger.Info("OOOI time captured",
			logger.String("trip", current.Number),
			logger.String("field", field.String()),
			logger.Time("time", ts),
			logger.String("airport", evt.Airport))
	case errors.Is(err, ErrAlreadySet), errors.Is(err, ErrNoActiveLeg), errors.Is(err, ErrOutOfSequence):
		s.logger.Debug("Capture event ignored",
			logger.String("type", string(evt.Type)),
			logger.Error(err))
	default:
		s.logger.Warn("Capture event rejected",
			logger.String("type", string(evt.Type)),
			logger.Error(err))
	}
}

// captureTime applies the rounding and timezone knobs to a raw event time
func (s *Service) captureTime(t time.Time) time.Time {
	if s.cfg.UseZuluTime {
		t = t.UTC()
	} else {
		t = t.Local()
	}
	if s.cfg.RoundToFiveMinutes {
		t = t.Round(5 * time.Minute)
	}
	return t
}

// Save persists a trip. Transitions into planning/active force-complete every
// other current trip (delegated to storage, which does it transactionally).
func (s *Service) Save(t *Trip) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storage.SaveTrip(t)
}

// Get returns a trip by ID
func (s *Service) Get(id uuid.UUID) (*Trip, bool) {
	return s.storage.GetTrip(id)
}

// GetAll returns all stored trips
func (s *Service) GetAll() ([]*Trip, error) {
	return s.storage.GetAllTrips()
}

// GetCurrent returns the single planning/active trip, if any
func (s *Service) GetCurrent() (*Trip, bool) {
	return s.storage.GetCurrentTrip()
}

// Activate activates a trip (and its first standby leg) and persists it
func (s *Service) Activate(id uuid.UUID, now time.Time) (*Trip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.storage.GetTrip(id)
	if !ok {
		return nil, fmt.Errorf("trip %s not found", id)
	}
	if err := t.Activate(now); err != nil {
		return nil, err
	}
	if err := s.storage.SaveTrip(t); err != nil {
		return nil, err
	}

	s.bus.Publish(events.Event{
		Type:   events.TypeTripStatusChanged,
		TripID: t.ID.String(),
	})
	s.logger.Info("Trip activated", logger.String("trip", t.Number))
	return t, nil
}

// CompleteTrip force-completes a trip and persists it
func (s *Service) CompleteTrip(id uuid.UUID, now time.Time) (*Trip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.storage.GetTrip(id)
	if !ok {
		return nil, fmt.Errorf("trip %s not found", id)
	}
	t.Complete(now)
	if err := s.storage.SaveTrip(t); err != nil {
		return nil, err
	}

	s.bus.Publish(events.Event{
		Type:   events.TypeTripStatusChanged,
		TripID: t.ID.String(),
	})
	s.logger.Info("Trip completed", logger.String("trip", t.Number))
	return t, nil
}

// SetLegTime records a manual OOOI entry and persists the trip
func (s *Service) SetLegTime(tripID, legID uuid.UUID, field OOOIField, ts time.Time, overwrite bool) (*Trip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.storage.GetTrip(tripID)
	if !ok {
		return nil, fmt.Errorf("trip %s not found", tripID)
	}
	if err := t.SetLegTime(legID, field, ts, overwrite); err != nil {
		return nil, err
	}
	if err := s.storage.SaveTrip(t); err != nil {
		return nil, err
	}
	return t, nil
}

// SkipLeg marks a leg skipped and persists the trip
func (s *Service) SkipLeg(tripID, legID uuid.UUID) (*Trip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.storage.GetTrip(tripID)
	if !ok {
		return nil, fmt.Errorf("trip %s not found", tripID)
	}
	if err := t.SkipLeg(legID); err != nil {
		return nil, err
	}
	if err := s.storage.SaveTrip(t); err != nil {
		return nil, err
	}
	return t, nil
}

// Delete removes a trip and its legs
func (s *Service) Delete(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storage.DeleteTrip(id)
}
