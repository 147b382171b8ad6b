package ingest

import (
	"fmt"
	"time"
)

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Days lists the days in [start, end). A range whose bounds fall on the same
// day yields that single day.
func Days(start, end time.Time) ([]time.Time, error) {
	start, end = Day(start), Day(end)
	if start.Equal(end) {
		return []time.Time{start}, nil
	}
	if end.Before(start) {
		return nil, fmt.Errorf("end %s is before start %s", end.Format(time.DateOnly), start.Format(time.DateOnly))
	}

	var out []time.Time
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out, nil
}

// ParseDay parses a YYYYMMDD or YYYY-MM-DD date.
func ParseDay(s string) (time.Time, error) {
	for _, layout := range []string{"20060102", time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q, expected YYYYMMDD", s)
}
