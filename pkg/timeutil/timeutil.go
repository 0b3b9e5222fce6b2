// Package timeutil formats and parses the UTC ISO-8601 timestamps and
// YYYY-MM-DD dates used throughout LedgerFlow's persisted records.
package timeutil

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// NowISO returns the current UTC time as ISO-8601 with second precision and
// a literal "Z" suffix, e.g. "2026-02-10T08:00:00Z".
func NowISO() string {
	return FormatISO(time.Now().UTC())
}

// FormatISO renders t in UTC at second precision with a "Z" suffix.
func FormatISO(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format("2006-01-02T15:04:05Z")
}

// ParseISO parses an ISO-8601 timestamp, tolerating a "Z" suffix or an
// explicit numeric offset, and returns it normalized to UTC. An empty
// string parses to the current time, matching the _parse_ts fallback this
// is grounded on.
func ParseISO(value string) (time.Time, error) {
	if value == "" {
		return time.Now().UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02T15:04:05Z07:00", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", value, err)
	}
	return t.UTC(), nil
}

// TodayYMD returns today's date in UTC as YYYY-MM-DD.
func TodayYMD() string {
	return time.Now().UTC().Format(dateLayout)
}

// ParseYMD validates and parses a YYYY-MM-DD date string.
func ParseYMD(value string) (time.Time, error) {
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", value, err)
	}
	return t, nil
}

// FormatYMD renders t as YYYY-MM-DD.
func FormatYMD(t time.Time) string {
	return t.Format(dateLayout)
}

// DateRange returns every YYYY-MM-DD date from fromDate to toDate inclusive.
func DateRange(fromDate, toDate string) ([]string, error) {
	start, err := ParseYMD(fromDate)
	if err != nil {
		return nil, err
	}
	end, err := ParseYMD(toDate)
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, fmt.Errorf("toDate must be >= fromDate")
	}
	var out []string
	for cur := start; !cur.After(end); cur = cur.AddDate(0, 0, 1) {
		out = append(out, FormatYMD(cur))
	}
	return out, nil
}
