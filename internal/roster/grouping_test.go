package roster

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyops/propilot/internal/config"
)

func defaultRosterConfig() config.RosterConfig {
	return config.RosterConfig{
		GroupingMode:         "automatic",
		DutyBreakHours:       12,
		SeparateDutyGapHours: 4,
		MaxCalendarDaySpread: 1,
	}
}

func item(flight, dep, arr string, depTime, arrTime time.Time) BasicScheduleItem {
	return BasicScheduleItem{
		FlightNumber:  flight,
		Departure:     dep,
		Arrival:       arr,
		DepartureTime: depTime,
		ArrivalTime:   arrTime,
	}
}

func at(day, hour, min int) time.Time {
	return time.Date(2026, 8, day, hour, min, 0, 0, time.UTC)
}

func TestGroupShortSameDayTurnsStayTogether(t *testing.T) {
	// 45 and 50 minute turns on the same day must remain one trip
	items := []BasicScheduleItem{
		item("UA100", "KDEN", "KORD", at(23, 6, 0), at(23, 8, 15)),
		item("UA101", "KORD", "KLGA", at(23, 9, 0), at(23, 11, 10)), // 45 min turn
		item("UA102", "KLGA", "KBOS", at(23, 12, 0), at(23, 13, 0)), // 50 min turn
	}

	groups := GroupItems(items, defaultRosterConfig())

	require.Len(t, groups, 1)
	assert.Len(t, groups[0], 3)
}

func TestGroupDutyBreakSplits(t *testing.T) {
	// 14h overnight gap starts a new trip even though the airports connect
	items := []BasicScheduleItem{
		item("UA100", "KDEN", "KORD", at(23, 6, 0), at(23, 8, 0)),
		item("UA101", "KORD", "KDEN", at(23, 22, 30), at(24, 1, 0)),
	}

	groups := GroupItems(items, defaultRosterConfig())

	require.Len(t, groups, 2)
	assert.Equal(t, "UA100", groups[0][0].FlightNumber)
	assert.Equal(t, "UA101", groups[1][0].FlightNumber)
}

func TestGroupSeparateDutyGapNonConnecting(t *testing.T) {
	// 5h gap with a positioning move (arrival != next departure) splits;
	// the same gap on connecting airports does not.
	cfg := defaultRosterConfig()

	disconnected := []BasicScheduleItem{
		item("UA100", "KDEN", "KORD", at(23, 6, 0), at(23, 8, 0)),
		item("UA200", "KMDW", "KLGA", at(23, 13, 0), at(23, 15, 30)),
	}
	groups := GroupItems(disconnected, cfg)
	require.Len(t, groups, 2)

	connected := []BasicScheduleItem{
		item("UA100", "KDEN", "KORD", at(23, 6, 0), at(23, 8, 0)),
		item("UA101", "KORD", "KLGA", at(23, 13, 0), at(23, 15, 30)),
	}
	groups = GroupItems(connected, cfg)
	require.Len(t, groups, 1)
	assert.Len(t, groups[0], 2)
}

func TestGroupCalendarDaySpreadSplits(t *testing.T) {
	// With a zero-day spread an overnight gap splits even when it is shorter
	// than the duty break and the airports connect.
	cfg := defaultRosterConfig()
	cfg.MaxCalendarDaySpread = 0

	items := []BasicScheduleItem{
		item("UA100", "KDEN", "KORD", at(23, 17, 0), at(23, 20, 0)),
		item("UA101", "KORD", "KDEN", at(24, 6, 0), at(24, 9, 30)),
	}

	groups := GroupItems(items, cfg)
	require.Len(t, groups, 2)

	// The default one-day spread keeps the same pairing together
	groups = GroupItems(items, defaultRosterConfig())
	require.Len(t, groups, 1)
}

func TestGroupSortsByActualTimestamps(t *testing.T) {
	// Out-of-order same-day rows: grouping must sort on block-out times, not
	// keep feed order.
	items := []BasicScheduleItem{
		item("UA101", "KORD", "KLGA", at(23, 9, 0), at(23, 11, 10)),
		item("UA100", "KDEN", "KORD", at(23, 6, 0), at(23, 8, 15)),
	}

	groups := GroupItems(items, defaultRosterConfig())

	require.Len(t, groups, 1)
	require.Len(t, groups[0], 2)
	assert.Equal(t, "UA100", groups[0][0].FlightNumber)
	assert.Equal(t, "UA101", groups[0][1].FlightNumber)
}

func TestGroupInvalidItemsBecomeOwnGroups(t *testing.T) {
	items := []BasicScheduleItem{
		item("UA100", "KDEN", "KORD", at(23, 6, 0), at(23, 8, 15)),
		item("UA999", "KORD", "KLGA", time.Time{}, time.Time{}), // no timestamps
		item("UA101", "KORD", "KLGA", at(23, 9, 0), at(23, 11, 10)),
	}

	groups := GroupItems(items, defaultRosterConfig())

	require.Len(t, groups, 2)
	assert.Len(t, groups[0], 2)
	require.Len(t, groups[1], 1)
	assert.Equal(t, "UA999", groups[1][0].FlightNumber)
}

func TestGroupIsDeterministic(t *testing.T) {
	items := []BasicScheduleItem{
		item("UA100", "KDEN", "KORD", at(23, 6, 0), at(23, 8, 15)),
		item("UA101", "KORD", "KLGA", at(23, 9, 0), at(23, 11, 10)),
		item("UA200", "KLGA", "KBOS", at(24, 7, 0), at(24, 8, 10)),
	}

	first := GroupItems(items, defaultRosterConfig())
	second := GroupItems(items, defaultRosterConfig())
	assert.Equal(t, first, second)
}

func TestConnectsTo(t *testing.T) {
	a := &PendingTrip{Items: []BasicScheduleItem{
		item("UA100", "KDEN", "KORD", at(23, 6, 0), at(23, 8, 0)),
	}}
	b := &PendingTrip{Items: []BasicScheduleItem{
		item("UA101", "KORD", "KLGA", at(23, 9, 0), at(23, 11, 0)),
	}}
	c := &PendingTrip{Items: []BasicScheduleItem{
		item("UA200", "KMDW", "KLGA", at(23, 9, 0), at(23, 11, 0)),
	}}

	assert.True(t, a.ConnectsTo(b))
	assert.False(t, a.ConnectsTo(c))
	assert.False(t, a.ConnectsTo(&PendingTrip{}))
}
