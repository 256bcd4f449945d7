package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/skyops/propilot/internal/trip"
)

// csvHeader is the logbook row layout (ForeFlight-compatible column names).
// OOOI times travel as free-text HHmm; the date column anchors them.
var csvHeader = []string{
	"Date", "AircraftID", "Flight", "From", "To",
	"TimeOut", "TimeOff", "TimeOn", "TimeIn",
	"TotalTime", "Status",
}

// WriteCSV renders trips as logbook rows, one row per leg. Zulu selects UTC
// rendering of the HHmm fields.
func WriteCSV(w io.Writer, trips []*trip.Trip, zulu bool) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, t := range trips {
		for _, leg := range t.Legs() {
			total := ""
			if block, ok := leg.Times.BlockTime(); ok {
				total = fmt.Sprintf("%.1f", block.Hours())
			}

			row := []string{
				t.Date.Format("2006-01-02"),
				t.Aircraft,
				leg.FlightNumber,
				leg.Departure,
				leg.Arrival,
				trip.FormatHHmm(leg.Times.Out, zulu),
				trip.FormatHHmm(leg.Times.Off, zulu),
				trip.FormatHHmm(leg.Times.On, zulu),
				trip.FormatHHmm(leg.Times.In, zulu),
				total,
				string(leg.Status),
			}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("failed to write CSV row: %w", err)
			}
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadCSV parses logbook rows back into trips. Consecutive rows sharing a
// date and aircraft fold into one trip; times parse from HHmm on the row's
// date in the given location.
func ReadCSV(r io.Reader, loc *time.Location) ([]*trip.Trip, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	// Skip the header row when present
	start := 0
	if strings.EqualFold(strings.TrimSpace(records[0][0]), "date") {
		start = 1
	}

	var trips []*trip.Trip
	var current *trip.Trip
	var currentKey string

	for i := start; i < len(records); i++ {
		record := records[i]
		if len(record) < len(csvHeader) {
			return nil, fmt.Errorf("row %d: expected %d columns, got %d", i+1, len(csvHeader), len(record))
		}

		date, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(record[0]), loc)
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid date %q: %w", i+1, record[0], err)
		}

		key := record[0] + "|" + record[1]
		if current == nil || key != currentKey {
			current = &trip.Trip{
				ID:       uuid.New(),
				Number:   fmt.Sprintf("%s-%s", strings.TrimSpace(record[2]), date.Format("20060102")),
				Aircraft: strings.TrimSpace(record[1]),
				Date:     date,
				Status:   trip.StatusCompleted,
				Logpages: []*trip.Logpage{{ID: uuid.New(), Number: 1}},
			}
			currentKey = key
			trips = append(trips, current)
		}

		leg := &trip.FlightLeg{
			ID:           uuid.New(),
			FlightNumber: strings.TrimSpace(record[2]),
			Departure:    strings.ToUpper(strings.TrimSpace(record[3])),
			Arrival:      strings.ToUpper(strings.TrimSpace(record[4])),
			Status:       trip.LegCompleted,
		}
		if raw := strings.TrimSpace(record[10]); raw != "" {
			if status, err := trip.ParseLegStatus(raw); err == nil {
				leg.Status = status
			}
		}

		fields := []struct {
			col   int
			field trip.OOOIField
		}{
			{5, trip.FieldOut}, {6, trip.FieldOff}, {7, trip.FieldOn}, {8, trip.FieldIn},
		}
		var prev *time.Time
		for _, f := range fields {
			raw := strings.TrimSpace(record[f.col])
			if raw == "" {
				continue
			}
			ts, err := trip.ParseHHmm(raw, date, loc)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i+1, err)
			}
			// A time earlier than its predecessor crossed midnight
			if prev != nil && ts.Before(*prev) {
				ts = ts.Add(24 * time.Hour)
			}
			setLegTime(leg, f.field, ts)
			prev = &ts
		}

		current.Logpages[0].Legs = append(current.Logpages[0].Legs, leg)
	}

	return trips, nil
}

// setLegTime assigns one OOOI timestamp during import
func setLegTime(leg *trip.FlightLeg, field trip.OOOIField, ts time.Time) {
	switch field {
	case trip.FieldOut:
		leg.Times.Out = &ts
	case trip.FieldOff:
		leg.Times.Off = &ts
	case trip.FieldOn:
		leg.Times.On = &ts
	case trip.FieldIn:
		leg.Times.In = &ts
	}
}
