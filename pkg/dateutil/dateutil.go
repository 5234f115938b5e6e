// Package dateutil holds the day arithmetic shared by the eligibility and
// blood-unit rules. Day counts are ceiling-based: any partial day counts as a
// whole day, so 0.1 days remaining reports as 1 and 55.1 days elapsed as 56.
package dateutil

import (
	"fmt"
	"math"
	"time"
)

// Day is the fixed length used for day-difference arithmetic.
const Day = 24 * time.Hour

// DaysBetween returns the unsigned whole-day distance between a and b, rounded up.
func DaysBetween(a, b time.Time) int {
	d := b.Sub(a)
	if d < 0 {
		d = -d
	}
	return ceilDays(d)
}

// DaysUntil returns the signed whole-day distance from "from" to "to",
// rounded up. The result is negative once "to" lies more than a full day in
// the past and zero for anything in the last partial day before "from".
func DaysUntil(from, to time.Time) int {
	return ceilDays(to.Sub(from))
}

// AddDays adds n calendar days, rolling over month and year boundaries.
func AddDays(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, n)
}

// MaxTime returns the latest of the given times, or nil when none are given.
func MaxTime(times ...time.Time) *time.Time {
	var latest *time.Time
	for i := range times {
		if latest == nil || times[i].After(*latest) {
			t := times[i]
			latest = &t
		}
	}
	return latest
}

// ParseDate accepts a calendar date (2006-01-02, read as UTC midnight) or a
// full RFC 3339 timestamp.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD or RFC 3339", s)
	}
	return t, nil
}

// ParseOptionalDate is ParseDate for optional fields: nil or empty yields nil.
func ParseOptionalDate(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := ParseDate(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func ceilDays(d time.Duration) int {
	v := math.Ceil(float64(d) / float64(Day))
	if v == 0 {
		// normalise -0
		return 0
	}
	return int(v)
}
