package alerts

import (
	"fmt"
	"time"
)

// PeriodKey returns the canonical string identifying the period
// containing at, per the scheme in the glossary: day -> YYYY-MM-DD,
// week -> ISO YYYY-Www, month -> YYYY-MM.
func PeriodKey(period string, at time.Time) (string, error) {
	switch period {
	case "day":
		return at.Format("2006-01-02"), nil
	case "month":
		return at.Format("2006-01"), nil
	case "week":
		year, week := at.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week), nil
	default:
		return "", fmt.Errorf("unknown period: %s", period)
	}
}

// PeriodBounds returns the inclusive [start, end] date pair covering at.
func PeriodBounds(period string, at time.Time) (time.Time, time.Time, error) {
	switch period {
	case "day":
		return at, at, nil
	case "month":
		start := time.Date(at.Year(), at.Month(), 1, 0, 0, 0, 0, time.UTC)
		end := start.AddDate(0, 1, -1)
		return start, end, nil
	case "week":
		// ISO week: Monday is day 1.
		offset := int(at.Weekday())
		if offset == 0 {
			offset = 7
		}
		start := at.AddDate(0, 0, -(offset - 1))
		end := start.AddDate(0, 0, 6)
		return start, end, nil
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("unknown period: %s", period)
	}
}
