package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/skyops/propilot/internal/ooi"
	"github.com/skyops/propilot/pkg/logger"
)

// TrackStorage records the GPS track fed to the OOOI monitor so flights can
// be exported as GPX/KML later. The buffer is bounded: once maxPoints is
// exceeded the oldest samples are trimmed.
type TrackStorage struct {
	db        *sql.DB
	logger    *logger.Logger
	maxPoints int
}

// NewTrackStorage creates a track storage on the shared store
func NewTrackStorage(store *Store, maxPoints int) *TrackStorage {
	return &TrackStorage{
		db:        store.db,
		logger:    store.logger.Named("track"),
		maxPoints: maxPoints,
	}
}

// RecordSample stores one accepted position sample. Errors are logged, not
// returned; losing a track point must never block OOOI detection.
func (s *TrackStorage) RecordSample(sample ooi.PositionSample) {
	_, err := s.db.Exec(
		`INSERT INTO position_samples (lat, lon, speed_kts, timestamp)
		 VALUES (?, ?, ?, ?)`,
		sample.Lat, sample.Lon, sample.SpeedKts,
		sample.Timestamp.UTC().Format(timeLayout),
	)
	if err != nil {
		s.logger.Error("Failed to record position sample", logger.Error(err))
		return
	}

	if s.maxPoints > 0 {
		_, err = s.db.Exec(
			`DELETE FROM position_samples WHERE id NOT IN (
				SELECT id FROM position_samples ORDER BY id DESC LIMIT ?
			)`, s.maxPoints)
		if err != nil {
			s.logger.Error("Failed to trim position samples", logger.Error(err))
		}
	}
}

// Samples returns stored samples in the given window, oldest first. A zero
// `to` means no upper bound.
func (s *TrackStorage) Samples(from, to time.Time) ([]ooi.PositionSample, error) {
	if to.IsZero() {
		to = time.Now().UTC().Add(24 * time.Hour)
	}

	rows, err := s.db.Query(
		`SELECT lat, lon, speed_kts, timestamp FROM position_samples
		 WHERE timestamp >= ? AND timestamp <= ?
		 ORDER BY timestamp`,
		from.UTC().Format(timeLayout), to.UTC().Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to query position samples: %w", err)
	}
	defer rows.Close()

	var out []ooi.PositionSample
	for rows.Next() {
		var sample ooi.PositionSample
		var ts string
		if err := rows.Scan(&sample.Lat, &sample.Lon, &sample.SpeedKts, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan position sample: %w", err)
		}
		parsed, err := time.Parse(timeLayout, ts)
		if err != nil {
			return nil, fmt.Errorf("invalid stored sample timestamp %q: %w", ts, err)
		}
		sample.Timestamp = parsed
		out = append(out, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate position samples: %w", err)
	}
	return out, nil
}

// Clear drops all stored track points
func (s *TrackStorage) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM position_samples`); err != nil {
		return fmt.Errorf("failed to clear position samples: %w", err)
	}
	return nil
}
