package roster

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"
)

// Roster CSV column layout (NOC feed export):
//
//	Date,Flight,Origin,Destination,STD,STA,Aircraft
//
// Date is 2006-01-02; STD/STA are local "15:04" on that date. An STA earlier
// than its STD is an overnight arrival and rolls to the next day.
const rosterColumns = 7

type rowError struct {
	line int
	err  error
}

// parseCSV reads roster rows best-effort: malformed rows are collected as
// errors and skipped, never aborting the import.
func parseCSV(r io.Reader, loc *time.Location) ([]BasicScheduleItem, []rowError) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var items []BasicScheduleItem
	var errs []rowError

	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			errs = append(errs, rowError{line: line, err: err})
			continue
		}

		// Skip the header row
		if line == 1 && strings.EqualFold(strings.TrimSpace(record[0]), "date") {
			continue
		}

		item, err := parseRow(record, loc)
		if err != nil {
			errs = append(errs, rowError{line: line, err: err})
			continue
		}
		items = append(items, item)
	}

	return items, errs
}

func parseRow(record []string, loc *time.Location) (BasicScheduleItem, error) {
	if len(record) < rosterColumns-1 {
		return BasicScheduleItem{}, fmt.Errorf("expected at least %d columns, got %d", rosterColumns-1, len(record))
	}

	date, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(record[0]), loc)
	if err != nil {
		return BasicScheduleItem{}, fmt.Errorf("invalid date %q: %w", record[0], err)
	}

	item := BasicScheduleItem{
		FlightNumber: strings.TrimSpace(record[1]),
		Departure:    strings.ToUpper(strings.TrimSpace(record[2])),
		Arrival:      strings.ToUpper(strings.TrimSpace(record[3])),
	}
	if len(record) >= rosterColumns {
		item.Aircraft = strings.TrimSpace(record[6])
	}

	item.DepartureTime, err = timeOnDate(strings.TrimSpace(record[4]), date, loc)
	if err != nil {
		return BasicScheduleItem{}, fmt.Errorf("invalid STD %q: %w", record[4], err)
	}

	item.ArrivalTime, err = timeOnDate(strings.TrimSpace(record[5]), date, loc)
	if err != nil {
		return BasicScheduleItem{}, fmt.Errorf("invalid STA %q: %w", record[5], err)
	}

	// Overnight arrival rolls to the next day
	if !item.ArrivalTime.After(item.DepartureTime) {
		item.ArrivalTime = item.ArrivalTime.Add(24 * time.Hour)
	}

	return item, nil
}

func timeOnDate(hhmm string, date time.Time, loc *time.Location) (time.Time, error) {
	parsed, err := time.ParseInLocation("15:04", hhmm, loc)
	if err != nil {
		// Some feeds omit the colon
		parsed, err = time.ParseInLocation("1504", hhmm, loc)
		if err != nil {
			return time.Time{}, err
		}
	}
	return time.Date(date.Year(), date.Month(), date.Day(),
		parsed.Hour(), parsed.Minute(), 0, 0, loc), nil
}
