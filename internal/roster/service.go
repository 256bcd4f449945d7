package roster

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skyops/propilot/internal/airport"
	"github.com/skyops/propilot/internal/config"
	"github.com/skyops/propilot/internal/trip"
	"github.com/skyops/propilot/pkg/logger"
)

// PendingStorage defines the interface for pending-trip persistence
type PendingStorage interface {
	SavePendingTrip(p *PendingTrip) error
	GetPendingTrips() ([]*PendingTrip, error)
	GetPendingTrip(id uuid.UUID) (*PendingTrip, bool)
	DeletePendingTrip(id uuid.UUID) error
}

// TripSaver is the slice of the trip service the roster importer needs
type TripSaver interface {
	Save(t *trip.Trip) error
}

// Service imports roster feeds and manages the pending-trip lifecycle:
// created on import, then confirmed into a Trip or discarded.
type Service struct {
	storage  PendingStorage
	trips    TripSaver
	mappings *airport.CodeMappings
	cfg      config.RosterConfig
	logger   *logger.Logger

	mu sync.Mutex
}

// NewService creates a new roster service
func NewService(storage PendingStorage, trips TripSaver, mappings *airport.CodeMappings, cfg config.RosterConfig, log *logger.Logger) *Service {
	return &Service{
		storage:  storage,
		trips:    trips,
		mappings: mappings,
		cfg:      cfg,
		logger:   log.Named("roster-service"),
	}
}

// ImportCSV parses a roster CSV feed, resolves airport codes, groups rows per
// the configured mode, and stores the resulting pending trips. Bad rows and
// unknown airport codes never fail the import; they are reported in the
// result.
func (s *Service) ImportCSV(r io.Reader, loc *time.Location) (*ImportResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, rowErrs := parseCSV(r, loc)
	for _, re := range rowErrs {
		s.logger.Warn("Skipping malformed roster row",
			logger.Int("line", re.line),
			logger.Error(re.err))
	}

	unknownSet := make(map[string]bool)
	for i := range items {
		items[i].Departure = s.resolveCode(items[i].Departure, unknownSet)
		items[i].Arrival = s.resolveCode(items[i].Arrival, unknownSet)
	}

	var groups [][]BasicScheduleItem
	if s.cfg.GroupingMode == "manual" {
		// Manual mode: one pending trip per roster row; the user stitches
		// connecting legs together explicitly.
		for _, item := range items {
			groups = append(groups, []BasicScheduleItem{item})
		}
	} else {
		groups = GroupItems(items, s.cfg)
	}

	now := time.Now().UTC()
	result := &ImportResult{
		RowsTotal:    len(items) + len(rowErrs),
		RowsImported: len(items),
		RowsSkipped:  len(rowErrs),
	}
	for code := range unknownSet {
		result.UnknownCodes = append(result.UnknownCodes, code)
	}
	sort.Strings(result.UnknownCodes)

	for _, group := range groups {
		pending := &PendingTrip{
			ID:       uuid.New(),
			Items:    group,
			Status:   PendingOpen,
			Imported: now,
		}
		if err := s.storage.SavePendingTrip(pending); err != nil {
			return nil, fmt.Errorf("failed to store pending trip: %w", err)
		}
		result.Pending = append(result.Pending, pending)
	}

	s.logger.Info("Roster imported",
		logger.Int("rows", result.RowsImported),
		logger.Int("skipped", result.RowsSkipped),
		logger.Int("pending_trips", len(result.Pending)),
		logger.Int("unknown_codes", len(result.UnknownCodes)),
		logger.String("mode", s.cfg.GroupingMode))

	return result, nil
}

// resolveCode maps a feed airport code to ICAO where possible. Unresolvable
// codes stay as-is; the mappings registry records them for the user.
func (s *Service) resolveCode(code string, unknown map[string]bool) string {
	if code == "" {
		return code
	}
	if apt, ok := s.mappings.Resolve(code); ok {
		return apt.ICAO
	}
	unknown[code] = true
	return code
}

// Pending returns all open pending trips
func (s *Service) Pending() ([]*PendingTrip, error) {
	all, err := s.storage.GetPendingTrips()
	if err != nil {
		return nil, err
	}
	open := make([]*PendingTrip, 0, len(all))
	for _, p := range all {
		if p.Status == PendingOpen {
			open = append(open, p)
		}
	}
	return open, nil
}

// Connections returns the open pending trips whose first leg departs from the
// given pending trip's last arrival airport (manual-mode leg stitching).
func (s *Service) Connections(id uuid.UUID) ([]*PendingTrip, error) {
	base, ok := s.storage.GetPendingTrip(id)
	if !ok {
		return nil, fmt.Errorf("pending trip %s not found", id)
	}

	open, err := s.Pending()
	if err != nil {
		return nil, err
	}

	var out []*PendingTrip
	for _, p := range open {
		if p.ID == base.ID {
			continue
		}
		if base.ConnectsTo(p) {
			out = append(out, p)
		}
	}
	return out, nil
}

// Merge appends the source pending trip's legs onto the destination and
// discards the source. Used by manual mode to stitch connecting legs.
func (s *Service) Merge(dstID, srcID uuid.UUID) (*PendingTrip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dst, ok := s.storage.GetPendingTrip(dstID)
	if !ok {
		return nil, fmt.Errorf("pending trip %s not found", dstID)
	}
	src, ok := s.storage.GetPendingTrip(srcID)
	if !ok {
		return nil, fmt.Errorf("pending trip %s not found", srcID)
	}
	if dst.Status != PendingOpen || src.Status != PendingOpen {
		return nil, fmt.Errorf("only open pending trips can be merged")
	}

	dst.Items = append(dst.Items, src.Items...)
	if err := s.storage.SavePendingTrip(dst); err != nil {
		return nil, err
	}
	if err := s.storage.DeletePendingTrip(src.ID); err != nil {
		return nil, err
	}
	return dst, nil
}

// Confirm converts a pending trip into a stored Trip in planning status
func (s *Service) Confirm(id uuid.UUID) (*trip.Trip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending, ok := s.storage.GetPendingTrip(id)
	if !ok {
		return nil, fmt.Errorf("pending trip %s not found", id)
	}
	if pending.Status != PendingOpen {
		return nil, fmt.Errorf("pending trip %s is %s", id, pending.Status)
	}

	t := BuildTrip(pending.Items)
	if err := s.trips.Save(t); err != nil {
		return nil, fmt.Errorf("failed to save confirmed trip: %w", err)
	}

	pending.Status = PendingConfirmed
	if err := s.storage.SavePendingTrip(pending); err != nil {
		return nil, err
	}

	s.logger.Info("Pending trip confirmed",
		logger.String("pending_id", id.String()),
		logger.String("trip", t.Number),
		logger.Int("legs", len(t.Legs())))
	return t, nil
}

// Discard drops a pending trip without creating anything
func (s *Service) Discard(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending, ok := s.storage.GetPendingTrip(id)
	if !ok {
		return fmt.Errorf("pending trip %s not found", id)
	}
	pending.Status = PendingDiscarded
	if err := s.storage.SavePendingTrip(pending); err != nil {
		return err
	}
	return s.storage.DeletePendingTrip(id)
}

// BuildTrip converts a group of roster rows into a planning-status Trip with
// one logpage of standby legs.
func BuildTrip(items []BasicScheduleItem) *trip.Trip {
	t := &trip.Trip{
		ID:     uuid.New(),
		Status: trip.StatusPlanning,
	}

	page := &trip.Logpage{
		ID:     uuid.New(),
		Number: 1,
	}

	for _, item := range items {
		depTime := item.DepartureTime
		arrTime := item.ArrivalTime

		leg := &trip.FlightLeg{
			ID:           uuid.New(),
			FlightNumber: item.FlightNumber,
			Departure:    item.Departure,
			Arrival:      item.Arrival,
			Status:       trip.LegStandby,
		}
		if !depTime.IsZero() {
			leg.ScheduledOut = &depTime
		}
		if !arrTime.IsZero() {
			leg.ScheduledIn = &arrTime
		}
		page.Legs = append(page.Legs, leg)

		if t.Aircraft == "" && item.Aircraft != "" {
			t.Aircraft = item.Aircraft
		}
	}

	t.Logpages = []*trip.Logpage{page}

	if len(items) > 0 {
		t.Date = items[0].DepartureTime
		t.Number = fmt.Sprintf("%s-%s", items[0].FlightNumber, items[0].DepartureTime.Format("20060102"))
	} else {
		t.Date = time.Now().UTC()
		t.Number = fmt.Sprintf("TRIP-%s", t.Date.Format("20060102-150405"))
	}

	return t
}
