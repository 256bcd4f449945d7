// Package trip contains the trip/leg domain model and its state machine.
//
// A Trip owns an ordered list of logpages, each holding ordered flight legs.
// Legs progress standby -> active -> completed (or skipped); a trip owns its
// legs exclusively and they have no lifecycle outside it. At most one trip may
// be in planning or active status at any time; the storage layer enforces
// that invariant by force-completing every other current trip whenever a trip
// is saved as planning/active.
package trip

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a trip
type Status string

const (
	StatusPlanning  Status = "planning"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// ParseStatus converts a stored raw value back to a Status
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPlanning, StatusActive, StatusCompleted:
		return Status(s), nil
	}
	return "", fmt.Errorf("invalid trip status: %q", s)
}

// IsCurrent reports whether the status counts against the single-current-trip
// invariant
func (s Status) IsCurrent() bool {
	return s == StatusPlanning || s == StatusActive
}

// LegStatus is the lifecycle state of a flight leg
type LegStatus string

const (
	LegStandby   LegStatus = "standby"
	LegActive    LegStatus = "active"
	LegCompleted LegStatus = "completed"
	LegSkipped   LegStatus = "skipped"
)

// ParseLegStatus converts a stored raw value back to a LegStatus
func ParseLegStatus(s string) (LegStatus, error) {
	switch LegStatus(s) {
	case LegStandby, LegActive, LegCompleted, LegSkipped:
		return LegStatus(s), nil
	}
	return "", fmt.Errorf("invalid leg status: %q", s)
}

// IsTerminal reports whether the leg can no longer change state
func (s LegStatus) IsTerminal() bool {
	return s == LegCompleted || s == LegSkipped
}

// OOOIField identifies one of the four block timestamps
type OOOIField int

const (
	FieldOut OOOIField = iota // pushback
	FieldOff                  // takeoff
	FieldOn                   // landing
	FieldIn                   // arrival at gate
)

// String returns the field name used on the wire and in storage
func (f OOOIField) String() string {
	switch f {
	case FieldOut:
		return "out"
	case FieldOff:
		return "off"
	case FieldOn:
		return "on"
	case FieldIn:
		return "in"
	}
	return "unknown"
}

// ParseOOOIField converts a wire name to an OOOIField
func ParseOOOIField(s string) (OOOIField, error) {
	switch s {
	case "out":
		return FieldOut, nil
	case "off":
		return FieldOff, nil
	case "on":
		return FieldOn, nil
	case "in":
		return FieldIn, nil
	}
	return 0, fmt.Errorf("invalid OOOI field: %q", s)
}

// OOOITimes holds the four block timestamps for a leg. Times are kept as
// typed timestamps internally; the "HHmm" text form exists only at the
// storage and JSON boundary.
type OOOITimes struct {
	Out *time.Time `json:"out,omitempty"`
	Off *time.Time `json:"off,omitempty"`
	On  *time.Time `json:"on,omitempty"`
	In  *time.Time `json:"in,omitempty"`
}

// Get returns the timestamp for a field
func (o *OOOITimes) Get(f OOOIField) *time.Time {
	switch f {
	case FieldOut:
		return o.Out
	case FieldOff:
		return o.Off
	case FieldOn:
		return o.On
	case FieldIn:
		return o.In
	}
	return nil
}

// set stores the timestamp for a field unconditionally
func (o *OOOITimes) set(f OOOIField, t time.Time) {
	switch f {
	case FieldOut:
		o.Out = &t
	case FieldOff:
		o.Off = &t
	case FieldOn:
		o.On = &t
	case FieldIn:
		o.In = &t
	}
}

// Complete reports whether all four fields are populated
func (o *OOOITimes) Complete() bool {
	return o.Out != nil && o.Off != nil && o.On != nil && o.In != nil
}

// BlockTime returns the gate-to-gate duration when both OUT and IN are set
func (o *OOOITimes) BlockTime() (time.Duration, bool) {
	if o.Out == nil || o.In == nil {
		return 0, false
	}
	return o.In.Sub(*o.Out), true
}

// FlightTime returns the airborne duration when both OFF and ON are set
func (o *OOOITimes) FlightTime() (time.Duration, bool) {
	if o.Off == nil || o.On == nil {
		return 0, false
	}
	return o.On.Sub(*o.Off), true
}

// FormatHHmm renders a timestamp in the free-text "HHmm" form used by the
// logbook exports. Zulu selects UTC over the timestamp's own location.
func FormatHHmm(t *time.Time, zulu bool) string {
	if t == nil {
		return ""
	}
	if zulu {
		return t.UTC().Format("1504")
	}
	return t.Format("1504")
}

// ParseHHmm parses a free-text "HHmm" value on the given date. Used when
// re-importing logbook CSV rows.
func ParseHHmm(s string, date time.Time, loc *time.Location) (time.Time, error) {
	parsed, err := time.ParseInLocation("1504", s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid HHmm time %q: %w", s, err)
	}
	return time.Date(date.Year(), date.Month(), date.Day(),
		parsed.Hour(), parsed.Minute(), 0, 0, loc), nil
}

// CrewMember is a crew assignment on a trip
type CrewMember struct {
	Name string `json:"name"`
	Role string `json:"role"` // e.g. "CA", "FO", "FA"
}

// FlightLeg is a single flight segment within a trip
type FlightLeg struct {
	ID           uuid.UUID  `json:"id"`
	FlightNumber string     `json:"flight_number,omitempty"`
	Departure    string     `json:"departure"` // ICAO code
	Arrival      string     `json:"arrival"`   // ICAO code
	ScheduledOut *time.Time `json:"scheduled_out,omitempty"`
	ScheduledIn  *time.Time `json:"scheduled_in,omitempty"`
	Times        OOOITimes  `json:"times"`
	Status       LegStatus  `json:"status"`
}

// OutVarianceMinutes returns actual-vs-scheduled pushback variance in minutes
// (positive = late). False when either side is missing.
func (l *FlightLeg) OutVarianceMinutes() (int, bool) {
	if l.ScheduledOut == nil || l.Times.Out == nil {
		return 0, false
	}
	return int(l.Times.Out.Sub(*l.ScheduledOut).Minutes()), true
}

// InVarianceMinutes returns actual-vs-scheduled arrival variance in minutes
func (l *FlightLeg) InVarianceMinutes() (int, bool) {
	if l.ScheduledIn == nil || l.Times.In == nil {
		return 0, false
	}
	return int(l.Times.In.Sub(*l.ScheduledIn).Minutes()), true
}

// Logpage is an ordered group of legs within a trip (one paper logpage)
type Logpage struct {
	ID     uuid.UUID    `json:"id"`
	Number int          `json:"number"`
	Legs   []*FlightLeg `json:"legs"`
}

// Trip is the top-level aggregate: a pilot's multi-leg pairing
type Trip struct {
	ID       uuid.UUID    `json:"id"`
	Number   string       `json:"number"`
	Aircraft string       `json:"aircraft,omitempty"`
	Date     time.Time    `json:"date"`
	Logpages []*Logpage   `json:"logpages"`
	Crew     []CrewMember `json:"crew,omitempty"`
	Status   Status       `json:"status"`
	DutyOn   *time.Time   `json:"duty_on,omitempty"`
	DutyOff  *time.Time   `json:"duty_off,omitempty"`
}

// Legs returns all legs across logpages in trip order
func (t *Trip) Legs() []*FlightLeg {
	var legs []*FlightLeg
	for _, page := range t.Logpages {
		legs = append(legs, page.Legs...)
	}
	return legs
}

// LegByID finds a leg within the trip
func (t *Trip) LegByID(id uuid.UUID) (*FlightLeg, bool) {
	for _, leg := range t.Legs() {
		if leg.ID == id {
			return leg, true
		}
	}
	return nil, false
}

// ActiveLeg returns the currently active leg, if any
func (t *Trip) ActiveLeg() (*FlightLeg, bool) {
	for _, leg := range t.Legs() {
		if leg.Status == LegActive {
			return leg, true
		}
	}
	return nil, false
}

// NextStandbyLeg returns the first leg still in standby
func (t *Trip) NextStandbyLeg() (*FlightLeg, bool) {
	for _, leg := range t.Legs() {
		if leg.Status == LegStandby {
			return leg, true
		}
	}
	return nil, false
}
