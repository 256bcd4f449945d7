package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/skyops/propilot/internal/trip"
)

// backupVersion guards the backup document layout
const backupVersion = 1

// Backup is the full-restore document: every trip with its logpages, legs,
// and OOOI times. CreatedAt describes the backup itself and is ignored on
// restore, so a backup-restore-backup cycle yields identical trip data.
type Backup struct {
	Version   int          `json:"version"`
	CreatedAt time.Time    `json:"created_at"`
	Trips     []*trip.Trip `json:"trips"`
}

// WriteBackup renders all trips as a JSON backup document
func WriteBackup(w io.Writer, trips []*trip.Trip) error {
	doc := Backup{
		Version:   backupVersion,
		CreatedAt: time.Now().UTC(),
		Trips:     trips,
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode backup: %w", err)
	}
	return nil
}

// ReadBackup parses a JSON backup document and returns its trips
func ReadBackup(r io.Reader) ([]*trip.Trip, error) {
	var doc Backup
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode backup: %w", err)
	}
	if doc.Version > backupVersion {
		return nil, fmt.Errorf("unsupported backup version %d", doc.Version)
	}

	for _, t := range doc.Trips {
		if _, err := trip.ParseStatus(string(t.Status)); err != nil {
			return nil, fmt.Errorf("trip %s: %w", t.Number, err)
		}
		for _, leg := range t.Legs() {
			if _, err := trip.ParseLegStatus(string(leg.Status)); err != nil {
				return nil, fmt.Errorf("trip %s leg %s-%s: %w", t.Number, leg.Departure, leg.Arrival, err)
			}
		}
	}
	return doc.Trips, nil
}
