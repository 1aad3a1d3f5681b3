// utils/calendar.go
package utils

import (
	"time"

	"github.com/jinzhu/now"
)

// DayLayout is how calendar days are keyed in storage.
const DayLayout = "2006-01-02"

var isoWeek = &now.Config{WeekStartDay: time.Monday}

// DayKey formats t as a calendar day in t's own location.
func DayKey(t time.Time) string {
	return t.Format(DayLayout)
}

// ParseDay parses a stored day key as midnight in loc.
func ParseDay(key string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation(DayLayout, key, loc)
}

// WeekStart returns midnight of the Monday starting t's ISO week.
func WeekStart(t time.Time) time.Time {
	return isoWeek.With(t).BeginningOfWeek()
}

// WeekStartKey is DayKey(WeekStart(t)).
func WeekStartKey(t time.Time) string {
	return DayKey(WeekStart(t))
}

// DaysBetween counts calendar days from a to b (negative when b is earlier).
// Both are day keys, so DST shifts don't matter.
func DaysBetween(a, b string) (int, error) {
	da, err := ParseDay(a, time.UTC)
	if err != nil {
		return 0, err
	}
	db, err := ParseDay(b, time.UTC)
	if err != nil {
		return 0, err
	}
	return int(db.Sub(da).Hours() / 24), nil
}

// LocalNow converts now into the named zone, falling back to fallback
// (and then UTC) when the name is empty or unknown.
func LocalNow(t time.Time, tz, fallback string) time.Time {
	for _, name := range []string{tz, fallback} {
		if name == "" {
			continue
		}
		if loc, err := time.LoadLocation(name); err == nil {
			return t.In(loc)
		}
	}
	return t.UTC()
}
