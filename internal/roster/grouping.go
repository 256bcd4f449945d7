package roster

import (
	"sort"
	"time"

	"github.com/skyops/propilot/internal/config"
)

// GroupItems walks a flat roster and splits it into trip-sized groups.
//
// Items are sorted by their actual block-out timestamp before grouping —
// never by midnight-truncated dates, which mis-ordered same-day legs and
// merged trips across days. A new group starts when any of these hold for
// the gap between the previous leg's arrival and the next leg's departure:
//
//   - the gap exceeds the duty-break threshold (default 12h)
//   - the legs are more than MaxCalendarDaySpread calendar days apart
//   - the gap exceeds the separate-duty threshold (default 4h) AND the
//     airports do not connect (previous arrival != next departure)
//
// Items with malformed or missing timestamps cannot be gap-compared; each
// such item becomes its own group, and grouping of the remaining items is
// unaffected. Output order and boundaries are deterministic for a given
// input.
func GroupItems(items []BasicScheduleItem, cfg config.RosterConfig) [][]BasicScheduleItem {
	var valid, invalid []BasicScheduleItem
	for _, item := range items {
		if item.Valid() {
			valid = append(valid, item)
		} else {
			invalid = append(invalid, item)
		}
	}

	sort.SliceStable(valid, func(i, j int) bool {
		return valid[i].DepartureTime.Before(valid[j].DepartureTime)
	})

	dutyBreak := time.Duration(cfg.DutyBreakHours * float64(time.Hour))
	separateDuty := time.Duration(cfg.SeparateDutyGapHours * float64(time.Hour))

	var groups [][]BasicScheduleItem
	var current []BasicScheduleItem

	for _, item := range valid {
		if len(current) == 0 {
			current = []BasicScheduleItem{item}
			continue
		}

		prev := current[len(current)-1]
		if startsNewTrip(prev, item, dutyBreak, separateDuty, cfg.MaxCalendarDaySpread) {
			groups = append(groups, current)
			current = []BasicScheduleItem{item}
			continue
		}

		current = append(current, item)
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}

	// Ungroupable items start their own trip
	for _, item := range invalid {
		groups = append(groups, []BasicScheduleItem{item})
	}

	return groups
}

// startsNewTrip applies the duty-gap heuristics between two consecutive legs
func startsNewTrip(prev, next BasicScheduleItem, dutyBreak, separateDuty time.Duration, maxDaySpread int) bool {
	gap := next.DepartureTime.Sub(prev.ArrivalTime)

	if gap > dutyBreak {
		return true
	}

	if calendarDaysApart(prev.ArrivalTime, next.DepartureTime) > maxDaySpread {
		return true
	}

	if gap > separateDuty && prev.Arrival != next.Departure {
		return true
	}

	return false
}

// calendarDaysApart counts whole calendar-day boundaries between two times,
// compared in the earlier time's location.
func calendarDaysApart(a, b time.Time) int {
	loc := a.Location()
	aDay := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, loc)
	bLocal := b.In(loc)
	bDay := time.Date(bLocal.Year(), bLocal.Month(), bLocal.Day(), 0, 0, 0, 0, loc)

	days := int(bDay.Sub(aDay).Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days
}
