package trip

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestTrip builds a planning trip with one logpage of standby legs
func newTestTrip(legs ...[2]string) *Trip {
	t := &Trip{
		ID:     uuid.New(),
		Number: "UA123-20260823",
		Date:   time.Date(2026, 8, 23, 6, 0, 0, 0, time.UTC),
		Status: StatusPlanning,
		Logpages: []*Logpage{{
			ID:     uuid.New(),
			Number: 1,
		}},
	}
	for _, pair := range legs {
		t.Logpages[0].Legs = append(t.Logpages[0].Legs, &FlightLeg{
			ID:        uuid.New(),
			Departure: pair[0],
			Arrival:   pair[1],
			Status:    LegStandby,
		})
	}
	return t
}

func ts(hour, min int) time.Time {
	return time.Date(2026, 8, 23, hour, min, 0, 0, time.UTC)
}

func TestActivateFirstStandbyLeg(t *testing.T) {
	tr := newTestTrip([2]string{"KDEN", "KORD"}, [2]string{"KORD", "KLGA"})

	require.NoError(t, tr.Activate(ts(7, 0)))

	assert.Equal(t, StatusActive, tr.Status)
	require.NotNil(t, tr.DutyOn)
	assert.Equal(t, ts(7, 0), *tr.DutyOn)

	leg, ok := tr.ActiveLeg()
	require.True(t, ok)
	assert.Equal(t, "KDEN", leg.Departure)
	assert.Equal(t, LegStandby, tr.Legs()[1].Status)
}

func TestActivateIsIdempotent(t *testing.T) {
	tr := newTestTrip([2]string{"KDEN", "KORD"})
	require.NoError(t, tr.Activate(ts(7, 0)))
	require.NoError(t, tr.Activate(ts(8, 0)))

	// Duty-on keeps the first activation time
	assert.Equal(t, ts(7, 0), *tr.DutyOn)

	active := 0
	for _, leg := range tr.Legs() {
		if leg.Status == LegActive {
			active++
		}
	}
	assert.Equal(t, 1, active)
}

func TestCompletedTripCannotReactivate(t *testing.T) {
	tr := newTestTrip([2]string{"KDEN", "KORD"})
	tr.Complete(ts(12, 0))

	err := tr.Activate(ts(13, 0))
	assert.Error(t, err)
	assert.Equal(t, StatusCompleted, tr.Status)
}

func TestCaptureAutoTimeIsIdempotent(t *testing.T) {
	tr := newTestTrip([2]string{"KDEN", "KORD"})
	require.NoError(t, tr.Activate(ts(7, 0)))

	require.NoError(t, tr.CaptureAutoTime(FieldOff, ts(7, 30)))

	err := tr.CaptureAutoTime(FieldOff, ts(7, 45))
	assert.ErrorIs(t, err, ErrAlreadySet)

	// First capture wins
	leg, _ := tr.ActiveLeg()
	assert.Equal(t, ts(7, 30), *leg.Times.Off)
}

func TestCaptureAutoTimeRejectsOutAndIn(t *testing.T) {
	tr := newTestTrip([2]string{"KDEN", "KORD"})
	require.NoError(t, tr.Activate(ts(7, 0)))

	assert.Error(t, tr.CaptureAutoTime(FieldOut, ts(7, 10)))
	assert.Error(t, tr.CaptureAutoTime(FieldIn, ts(9, 0)))
}

func TestCaptureAutoTimeRequiresActiveLeg(t *testing.T) {
	tr := newTestTrip([2]string{"KDEN", "KORD"})

	err := tr.CaptureAutoTime(FieldOff, ts(7, 30))
	assert.ErrorIs(t, err, ErrNoActiveLeg)
}

func TestManualEntryAnyOrderWithOverwriteGuard(t *testing.T) {
	tr := newTestTrip([2]string{"KDEN", "KORD"})
	require.NoError(t, tr.Activate(ts(7, 0)))
	leg := tr.Legs()[0]

	// ON before OFF is fine for manual entry
	require.NoError(t, tr.SetLegTime(leg.ID, FieldOn, ts(9, 0), false))
	require.NoError(t, tr.SetLegTime(leg.ID, FieldOff, ts(7, 30), false))

	err := tr.SetLegTime(leg.ID, FieldOff, ts(7, 35), false)
	assert.ErrorIs(t, err, ErrAlreadySet)

	require.NoError(t, tr.SetLegTime(leg.ID, FieldOff, ts(7, 35), true))
	assert.Equal(t, ts(7, 35), *leg.Times.Off)
}

func TestInTimeAdvancesToNextLeg(t *testing.T) {
	tr := newTestTrip([2]string{"KDEN", "KORD"}, [2]string{"KORD", "KLGA"})
	require.NoError(t, tr.Activate(ts(7, 0)))

	first := tr.Legs()[0]
	require.NoError(t, tr.SetLegTime(first.ID, FieldIn, ts(10, 0), false))

	assert.Equal(t, LegCompleted, first.Status)

	active, ok := tr.ActiveLeg()
	require.True(t, ok)
	assert.Equal(t, "KORD", active.Departure)
	assert.Equal(t, StatusActive, tr.Status)
}

func TestFinalInCompletesTripAndSetsDutyOff(t *testing.T) {
	tr := newTestTrip([2]string{"KDEN", "KORD"})
	require.NoError(t, tr.Activate(ts(7, 0)))

	leg := tr.Legs()[0]
	require.NoError(t, tr.SetLegTime(leg.ID, FieldIn, ts(10, 0), false))

	assert.Equal(t, StatusCompleted, tr.Status)
	require.NotNil(t, tr.DutyOff)
	assert.Equal(t, ts(10, 0), *tr.DutyOff)
}

func TestSkipActiveLegActivatesNext(t *testing.T) {
	tr := newTestTrip([2]string{"KDEN", "KORD"}, [2]string{"KORD", "KLGA"})
	require.NoError(t, tr.Activate(ts(7, 0)))

	first := tr.Legs()[0]
	require.NoError(t, tr.SkipLeg(first.ID))

	assert.Equal(t, LegSkipped, first.Status)
	active, ok := tr.ActiveLeg()
	require.True(t, ok)
	assert.Equal(t, "KORD", active.Departure)
}

func TestSkipCompletedLegFails(t *testing.T) {
	tr := newTestTrip([2]string{"KDEN", "KORD"}, [2]string{"KORD", "KLGA"})
	require.NoError(t, tr.Activate(ts(7, 0)))

	first := tr.Legs()[0]
	require.NoError(t, tr.SetLegTime(first.ID, FieldIn, ts(10, 0), false))

	assert.Error(t, tr.SkipLeg(first.ID))
}

func TestForceCompleteSkipsIncompleteLegs(t *testing.T) {
	tr := newTestTrip([2]string{"KDEN", "KORD"}, [2]string{"KORD", "KLGA"})
	require.NoError(t, tr.Activate(ts(7, 0)))

	// Fully time the first leg, leave the second untouched
	first := tr.Legs()[0]
	require.NoError(t, tr.SetLegTime(first.ID, FieldOut, ts(7, 10), false))
	require.NoError(t, tr.SetLegTime(first.ID, FieldOff, ts(7, 25), false))
	require.NoError(t, tr.SetLegTime(first.ID, FieldOn, ts(9, 40), false))
	require.NoError(t, tr.SetLegTime(first.ID, FieldIn, ts(9, 55), false))

	tr.Complete(ts(12, 0))

	assert.Equal(t, StatusCompleted, tr.Status)
	assert.Equal(t, LegCompleted, tr.Legs()[0].Status)
	assert.Equal(t, LegSkipped, tr.Legs()[1].Status)
}

func TestBlockAndFlightTime(t *testing.T) {
	var times OOOITimes
	_, ok := times.BlockTime()
	assert.False(t, ok)

	out, off := ts(7, 10), ts(7, 25)
	on, in := ts(9, 40), ts(9, 55)
	times = OOOITimes{Out: &out, Off: &off, On: &on, In: &in}

	block, ok := times.BlockTime()
	require.True(t, ok)
	assert.Equal(t, 165*time.Minute, block)

	flight, ok := times.FlightTime()
	require.True(t, ok)
	assert.Equal(t, 135*time.Minute, flight)
	assert.True(t, times.Complete())
}

func TestFormatAndParseHHmm(t *testing.T) {
	when := ts(15, 4)
	assert.Equal(t, "1504", FormatHHmm(&when, true))
	assert.Equal(t, "", FormatHHmm(nil, true))

	parsed, err := ParseHHmm("1504", ts(0, 0), time.UTC)
	require.NoError(t, err)
	assert.Equal(t, when, parsed)

	_, err = ParseHHmm("25x0", ts(0, 0), time.UTC)
	assert.Error(t, err)
}

func TestOutVarianceMinutes(t *testing.T) {
	sched := ts(7, 0)
	actual := ts(7, 12)
	leg := &FlightLeg{ScheduledOut: &sched, Times: OOOITimes{Out: &actual}}

	variance, ok := leg.OutVarianceMinutes()
	require.True(t, ok)
	assert.Equal(t, 12, variance)

	leg.Times.Out = nil
	_, ok = leg.OutVarianceMinutes()
	assert.False(t, ok)
}
