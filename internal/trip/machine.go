package trip

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrAlreadySet is returned by auto-capture when the target OOOI field is
// already populated. Callers treat it as a no-op; capture is at-most-once
// per leg.
var ErrAlreadySet = errors.New("time already set")

// ErrNoActiveLeg is returned when an operation needs an active leg and the
// trip has none.
var ErrNoActiveLeg = errors.New("no active leg")

// ErrOutOfSequence is returned by geofence capture when the field would land
// out of block order, e.g. an IN before the landing is on the books.
var ErrOutOfSequence = errors.New("time out of sequence")

// Activate transitions the trip into active status and activates its first
// standby leg. Activating an already-active trip is a no-op. Completed trips
// cannot be reactivated.
func (t *Trip) Activate(now time.Time) error {
	if t.Status == StatusCompleted {
		return fmt.Errorf("trip %s is completed and cannot be activated", t.Number)
	}
	if t.Status == StatusActive {
		return nil
	}

	t.Status = StatusActive
	if t.DutyOn == nil {
		t.DutyOn = &now
	}

	if _, ok := t.ActiveLeg(); !ok {
		if leg, ok := t.NextStandbyLeg(); ok {
			leg.Status = LegActive
		}
	}
	return nil
}

// Complete transitions the trip into completed status. Any still-active leg
// with all four times is marked completed; remaining standby/active legs are
// marked skipped so the trip ends in a terminal state.
func (t *Trip) Complete(now time.Time) {
	for _, leg := range t.Legs() {
		if leg.Status.IsTerminal() {
			continue
		}
		if leg.Times.Complete() {
			leg.Status = LegCompleted
		} else {
			leg.Status = LegSkipped
		}
	}
	t.Status = StatusCompleted
	if t.DutyOff == nil {
		t.DutyOff = &now
	}
}

// SetLegTime records an OOOI timestamp on a leg during manual entry. Partial
// completion in any order is allowed, but a field that is already populated
// may only be changed when overwrite is true. When the IN time lands on the
// active leg the leg completes and the next standby leg activates.
func (t *Trip) SetLegTime(legID uuid.UUID, field OOOIField, ts time.Time, overwrite bool) error {
	leg, ok := t.LegByID(legID)
	if !ok {
		return fmt.Errorf("leg %s not found in trip %s", legID, t.Number)
	}
	if leg.Status == LegSkipped {
		return fmt.Errorf("leg %s is skipped", legID)
	}

	if leg.Times.Get(field) != nil && !overwrite {
		return ErrAlreadySet
	}

	leg.Times.set(field, ts)

	// Auto-advance triggers only on IN capture
	if field == FieldIn && leg.Status == LegActive {
		t.completeLegAndAdvance(leg)
	}
	return nil
}

// CaptureAutoTime records an automatically captured timestamp on the active
// leg. Only OFF (takeoff) and ON (landing) are ever auto-captured; OUT and IN
// remain geofence-driven or manual. The capture is idempotent: a populated
// field is never overwritten.
func (t *Trip) CaptureAutoTime(field OOOIField, ts time.Time) error {
	if field != FieldOff && field != FieldOn {
		return fmt.Errorf("field %s is not auto-capturable", field)
	}

	leg, ok := t.ActiveLeg()
	if !ok {
		return ErrNoActiveLeg
	}

	if leg.Times.Get(field) != nil {
		return ErrAlreadySet
	}

	leg.Times.set(field, ts)
	return nil
}

// SkipLeg marks a leg as skipped. Skipping the active leg activates the next
// standby leg.
func (t *Trip) SkipLeg(legID uuid.UUID) error {
	leg, ok := t.LegByID(legID)
	if !ok {
		return fmt.Errorf("leg %s not found in trip %s", legID, t.Number)
	}
	if leg.Status == LegCompleted {
		return fmt.Errorf("leg %s is already completed", legID)
	}

	wasActive := leg.Status == LegActive
	leg.Status = LegSkipped

	if wasActive {
		if next, ok := t.NextStandbyLeg(); ok {
			next.Status = LegActive
		}
	}
	return nil
}

// completeLegAndAdvance completes a leg and activates the next standby leg.
// When no standby leg remains the whole trip is completed.
func (t *Trip) completeLegAndAdvance(leg *FlightLeg) {
	leg.Status = LegCompleted

	if next, ok := t.NextStandbyLeg(); ok {
		next.Status = LegActive
		return
	}

	// Terminal leg captured its IN time: close out the trip
	allDone := true
	for _, l := range t.Legs() {
		if !l.Status.IsTerminal() {
			allDone = false
			break
		}
	}
	if allDone {
		in := leg.Times.In
		when := time.Now().UTC()
		if in != nil {
			when = *in
		}
		t.Status = StatusCompleted
		if t.DutyOff == nil {
			t.DutyOff = &when
		}
	}
}
