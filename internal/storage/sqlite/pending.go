package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/skyops/propilot/internal/roster"
	"github.com/skyops/propilot/pkg/logger"
)

// PendingStorage persists pending roster imports. The grouped roster rows are
// stored as a JSON document; pending trips are short-lived staging records and
// nothing queries inside them.
type PendingStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewPendingStorage creates a pending-trip storage on the shared store
func NewPendingStorage(store *Store) *PendingStorage {
	return &PendingStorage{
		db:     store.db,
		logger: store.logger.Named("pending"),
	}
}

// SavePendingTrip inserts or replaces a pending trip
func (s *PendingStorage) SavePendingTrip(p *roster.PendingTrip) error {
	items, err := json.Marshal(p.Items)
	if err != nil {
		return fmt.Errorf("failed to encode pending items: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO pending_trips (id, items, status, imported)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			items = excluded.items,
			status = excluded.status`,
		p.ID.String(),
		string(items),
		string(p.Status),
		p.Imported.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert pending trip: %w", err)
	}
	return nil
}

// GetPendingTrips returns all pending trips, oldest import first
func (s *PendingStorage) GetPendingTrips() ([]*roster.PendingTrip, error) {
	rows, err := s.db.Query(
		`SELECT id, items, status, imported FROM pending_trips ORDER BY imported, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending trips: %w", err)
	}
	defer rows.Close()

	var out []*roster.PendingTrip
	for rows.Next() {
		p, err := scanPending(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pending trips: %w", err)
	}
	return out, nil
}

// GetPendingTrip loads one pending trip by ID
func (s *PendingStorage) GetPendingTrip(id uuid.UUID) (*roster.PendingTrip, bool) {
	row := s.db.QueryRow(
		`SELECT id, items, status, imported FROM pending_trips WHERE id = ?`,
		id.String())

	p, err := scanPending(row)
	if err != nil {
		if err != sql.ErrNoRows {
			s.logger.Error("Failed to load pending trip",
				logger.String("id", id.String()),
				logger.Error(err))
		}
		return nil, false
	}
	return p, true
}

// DeletePendingTrip removes a pending trip
func (s *PendingStorage) DeletePendingTrip(id uuid.UUID) error {
	if _, err := s.db.Exec(`DELETE FROM pending_trips WHERE id = ?`, id.String()); err != nil {
		return fmt.Errorf("failed to delete pending trip: %w", err)
	}
	return nil
}

// scanner covers both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanPending(row scanner) (*roster.PendingTrip, error) {
	var rawID, items, status, imported string
	if err := row.Scan(&rawID, &items, &status, &imported); err != nil {
		return nil, err
	}

	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("invalid stored pending trip id %q: %w", rawID, err)
	}

	p := &roster.PendingTrip{
		ID:     id,
		Status: roster.PendingStatus(status),
	}
	if err := json.Unmarshal([]byte(items), &p.Items); err != nil {
		return nil, fmt.Errorf("failed to decode pending items: %w", err)
	}
	if ts, err := parseTime(sql.NullString{String: imported, Valid: true}); err != nil {
		return nil, err
	} else if ts != nil {
		p.Imported = *ts
	}
	return p, nil
}
