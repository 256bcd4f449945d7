package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/skyops/propilot/internal/trip"
	"github.com/skyops/propilot/pkg/logger"
)

// TripStorage is the SQLite-backed trip store. SaveTrip enforces the
// single-current-trip invariant: persisting a trip in planning or active
// status force-completes every other planning/active trip within the same
// transaction, so no two current trips can ever be observed.
type TripStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewTripStorage creates a trip storage on the shared store
func NewTripStorage(store *Store) *TripStorage {
	return &TripStorage{
		db:     store.db,
		logger: store.logger.Named("trips"),
	}
}

// SaveTrip inserts or replaces a trip and its logpages/legs
func (s *TripStorage) SaveTrip(t *trip.Trip) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if t.Status.IsCurrent() {
		res, err := tx.Exec(
			`UPDATE trips SET status = ?, updated_at = CURRENT_TIMESTAMP
			 WHERE status IN (?, ?) AND id != ?`,
			string(trip.StatusCompleted),
			string(trip.StatusPlanning), string(trip.StatusActive),
			t.ID.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to complete displaced trips: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			s.logger.Info("Force-completed displaced current trips",
				logger.Int64("count", n),
				logger.String("trip", t.Number))
		}
	}

	crew, err := json.Marshal(t.Crew)
	if err != nil {
		return fmt.Errorf("failed to encode crew: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO trips (id, number, aircraft, date, crew, status, duty_on, duty_off)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			number = excluded.number,
			aircraft = excluded.aircraft,
			date = excluded.date,
			crew = excluded.crew,
			status = excluded.status,
			duty_on = excluded.duty_on,
			duty_off = excluded.duty_off,
			updated_at = CURRENT_TIMESTAMP`,
		t.ID.String(),
		t.Number,
		t.Aircraft,
		formatTime(&t.Date),
		string(crew),
		string(t.Status),
		formatTime(t.DutyOn),
		formatTime(t.DutyOff),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert trip: %w", err)
	}

	// Logpages and legs are replaced wholesale; the trip is the aggregate
	// and legs have no lifecycle outside it.
	if _, err := tx.Exec(`DELETE FROM legs WHERE trip_id = ?`, t.ID.String()); err != nil {
		return fmt.Errorf("failed to clear legs: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM logpages WHERE trip_id = ?`, t.ID.String()); err != nil {
		return fmt.Errorf("failed to clear logpages: %w", err)
	}

	for pageSeq, page := range t.Logpages {
		_, err := tx.Exec(
			`INSERT INTO logpages (id, trip_id, number, seq) VALUES (?, ?, ?, ?)`,
			page.ID.String(), t.ID.String(), page.Number, pageSeq,
		)
		if err != nil {
			return fmt.Errorf("failed to insert logpage: %w", err)
		}

		for legSeq, leg := range page.Legs {
			_, err := tx.Exec(
				`INSERT INTO legs (id, logpage_id, trip_id, seq, flight_number,
					departure, arrival, scheduled_out, scheduled_in,
					out_time, off_time, on_time, in_time, status)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				leg.ID.String(),
				page.ID.String(),
				t.ID.String(),
				legSeq,
				leg.FlightNumber,
				leg.Departure,
				leg.Arrival,
				formatTime(leg.ScheduledOut),
				formatTime(leg.ScheduledIn),
				formatTime(leg.Times.Out),
				formatTime(leg.Times.Off),
				formatTime(leg.Times.On),
				formatTime(leg.Times.In),
				string(leg.Status),
			)
			if err != nil {
				return fmt.Errorf("failed to insert leg: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit trip: %w", err)
	}
	return nil
}

// GetTrip loads a trip with its logpages and legs
func (s *TripStorage) GetTrip(id uuid.UUID) (*trip.Trip, bool) {
	t, err := s.loadTrip(id)
	if err != nil {
		if err != sql.ErrNoRows {
			s.logger.Error("Failed to load trip",
				logger.String("id", id.String()),
				logger.Error(err))
		}
		return nil, false
	}
	return t, true
}

// GetAllTrips returns all trips, newest first
func (s *TripStorage) GetAllTrips() ([]*trip.Trip, error) {
	rows, err := s.db.Query(`SELECT id FROM trips ORDER BY date DESC, created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query trips: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan trip id: %w", err)
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid stored trip id %q: %w", raw, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate trips: %w", err)
	}

	trips := make([]*trip.Trip, 0, len(ids))
	for _, id := range ids {
		t, err := s.loadTrip(id)
		if err != nil {
			return nil, err
		}
		trips = append(trips, t)
	}
	return trips, nil
}

// GetCurrentTrip returns the single planning/active trip, if any
func (s *TripStorage) GetCurrentTrip() (*trip.Trip, bool) {
	var raw string
	err := s.db.QueryRow(
		`SELECT id FROM trips WHERE status IN (?, ?)
		 ORDER BY updated_at DESC LIMIT 1`,
		string(trip.StatusPlanning), string(trip.StatusActive),
	).Scan(&raw)
	if err != nil {
		if err != sql.ErrNoRows {
			s.logger.Error("Failed to query current trip", logger.Error(err))
		}
		return nil, false
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		s.logger.Error("Invalid stored trip id", logger.String("id", raw), logger.Error(err))
		return nil, false
	}
	return s.GetTrip(id)
}

// DeleteTrip removes a trip; logpages and legs cascade
func (s *TripStorage) DeleteTrip(id uuid.UUID) error {
	res, err := s.db.Exec(`DELETE FROM trips WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete trip: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("trip %s not found", id)
	}
	return nil
}

// loadTrip reassembles the trip aggregate from its three tables
func (s *TripStorage) loadTrip(id uuid.UUID) (*trip.Trip, error) {
	var (
		rawID, number, status string
		aircraft              sql.NullString
		date                  sql.NullString
		crewJSON              sql.NullString
		dutyOn, dutyOff       sql.NullString
	)
	err := s.db.QueryRow(
		`SELECT id, number, aircraft, date, crew, status, duty_on, duty_off
		 FROM trips WHERE id = ?`, id.String(),
	).Scan(&rawID, &number, &aircraft, &date, &crewJSON, &status, &dutyOn, &dutyOff)
	if err != nil {
		return nil, err
	}

	parsedStatus, err := trip.ParseStatus(status)
	if err != nil {
		return nil, err
	}

	t := &trip.Trip{
		ID:       id,
		Number:   number,
		Aircraft: aircraft.String,
		Status:   parsedStatus,
	}
	if d, err := parseTime(date); err != nil {
		return nil, err
	} else if d != nil {
		t.Date = *d
	}
	if t.DutyOn, err = parseTime(dutyOn); err != nil {
		return nil, err
	}
	if t.DutyOff, err = parseTime(dutyOff); err != nil {
		return nil, err
	}
	if crewJSON.Valid && crewJSON.String != "" {
		if err := json.Unmarshal([]byte(crewJSON.String), &t.Crew); err != nil {
			return nil, fmt.Errorf("failed to decode crew: %w", err)
		}
	}

	if t.Logpages, err = s.loadLogpages(id); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *TripStorage) loadLogpages(tripID uuid.UUID) ([]*trip.Logpage, error) {
	rows, err := s.db.Query(
		`SELECT id, number FROM logpages WHERE trip_id = ? ORDER BY seq`,
		tripID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query logpages: %w", err)
	}
	defer rows.Close()

	var pages []*trip.Logpage
	for rows.Next() {
		var rawID string
		page := &trip.Logpage{}
		if err := rows.Scan(&rawID, &page.Number); err != nil {
			return nil, fmt.Errorf("failed to scan logpage: %w", err)
		}
		if page.ID, err = uuid.Parse(rawID); err != nil {
			return nil, fmt.Errorf("invalid stored logpage id %q: %w", rawID, err)
		}
		pages = append(pages, page)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate logpages: %w", err)
	}

	for _, page := range pages {
		if page.Legs, err = s.loadLegs(page.ID); err != nil {
			return nil, err
		}
	}
	return pages, nil
}

func (s *TripStorage) loadLegs(logpageID uuid.UUID) ([]*trip.FlightLeg, error) {
	rows, err := s.db.Query(
		`SELECT id, flight_number, departure, arrival, scheduled_out, scheduled_in,
			out_time, off_time, on_time, in_time, status
		 FROM legs WHERE logpage_id = ? ORDER BY seq`,
		logpageID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query legs: %w", err)
	}
	defer rows.Close()

	var legs []*trip.FlightLeg
	for rows.Next() {
		var (
			rawID, status                       string
			flightNumber                        sql.NullString
			schedOut, schedIn, out, off, on, in sql.NullString
		)
		leg := &trip.FlightLeg{}
		if err := rows.Scan(&rawID, &flightNumber, &leg.Departure, &leg.Arrival,
			&schedOut, &schedIn, &out, &off, &on, &in, &status); err != nil {
			return nil, fmt.Errorf("failed to scan leg: %w", err)
		}
		if leg.ID, err = uuid.Parse(rawID); err != nil {
			return nil, fmt.Errorf("invalid stored leg id %q: %w", rawID, err)
		}
		leg.FlightNumber = flightNumber.String
		if leg.Status, err = trip.ParseLegStatus(status); err != nil {
			return nil, err
		}

		if leg.ScheduledOut, err = parseTime(schedOut); err != nil {
			return nil, err
		}
		if leg.ScheduledIn, err = parseTime(schedIn); err != nil {
			return nil, err
		}
		if leg.Times.Out, err = parseTime(out); err != nil {
			return nil, err
		}
		if leg.Times.Off, err = parseTime(off); err != nil {
			return nil, err
		}
		if leg.Times.On, err = parseTime(on); err != nil {
			return nil, err
		}
		if leg.Times.In, err = parseTime(in); err != nil {
			return nil, err
		}

		legs = append(legs, leg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate legs: %w", err)
	}
	return legs, nil
}
