// Package roster imports airline roster feeds ("NOC" schedules) and groups
// their flat flight rows into multi-leg trips.
package roster

import (
	"time"

	"github.com/google/uuid"
)

// BasicScheduleItem is one flat roster row: a single scheduled flight
type BasicScheduleItem struct {
	FlightNumber  string    `json:"flight_number"`
	Departure     string    `json:"departure"` // airport code as it appears in the feed
	Arrival       string    `json:"arrival"`
	DepartureTime time.Time `json:"departure_time"` // scheduled block-out (actual timestamp, never date-only)
	ArrivalTime   time.Time `json:"arrival_time"`   // scheduled block-in
	Aircraft      string    `json:"aircraft,omitempty"`
}

// Valid reports whether the item carries the timestamps grouping needs
func (i *BasicScheduleItem) Valid() bool {
	return !i.DepartureTime.IsZero() && !i.ArrivalTime.IsZero() &&
		i.ArrivalTime.After(i.DepartureTime)
}

// PendingStatus is the lifecycle of an imported-but-unconfirmed trip
type PendingStatus string

const (
	PendingOpen      PendingStatus = "pending"
	PendingConfirmed PendingStatus = "confirmed"
	PendingDiscarded PendingStatus = "discarded"
)

// PendingTrip is a grouped set of roster rows awaiting user confirmation.
// Confirming converts it into a real Trip; discarding drops it.
type PendingTrip struct {
	ID       uuid.UUID           `json:"id"`
	Items    []BasicScheduleItem `json:"items"`
	Status   PendingStatus       `json:"status"`
	Imported time.Time           `json:"imported"`
}

// ConnectsTo reports whether another pending trip's first leg departs from
// this trip's last arrival airport. Used by manual mode's "connects to trip"
// detection (plain string equality on airport codes).
func (p *PendingTrip) ConnectsTo(other *PendingTrip) bool {
	if len(p.Items) == 0 || len(other.Items) == 0 {
		return false
	}
	last := p.Items[len(p.Items)-1]
	first := other.Items[0]
	return last.Arrival != "" && last.Arrival == first.Departure
}

// ImportResult summarizes a roster import
type ImportResult struct {
	Pending      []*PendingTrip `json:"pending"`
	RowsTotal    int            `json:"rows_total"`
	RowsImported int            `json:"rows_imported"`
	RowsSkipped  int            `json:"rows_skipped"`
	UnknownCodes []string       `json:"unknown_codes,omitempty"`
}
