// Package datemath resolves relative date expressions against an explicit
// reference time, so parsing stays pure and testable without the wall clock.
package datemath

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var relativeRe = regexp.MustCompile(`^(\d+)\s+(day|week|month)s?\s+ago$`)

// Resolve turns an expression into the midnight of the day it names, in
// now's location. Accepted forms: "today", "yesterday", "N days ago",
// "N weeks ago", "N months ago", "2006-01-02", and RFC 3339 timestamps.
func Resolve(expr string, now time.Time) (time.Time, error) {
	s := strings.ToLower(strings.TrimSpace(expr))
	if s == "" {
		return time.Time{}, fmt.Errorf("datemath: empty expression")
	}

	switch s {
	case "today", "now":
		return dayStart(now), nil
	case "yesterday":
		return dayStart(now.AddDate(0, 0, -1)), nil
	}

	if m := relativeRe.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return time.Time{}, fmt.Errorf("datemath: bad count in %q", expr)
		}
		switch m[2] {
		case "day":
			return dayStart(now.AddDate(0, 0, -n)), nil
		case "week":
			return dayStart(now.AddDate(0, 0, -7*n)), nil
		case "month":
			return dayStart(now.AddDate(0, -n, 0)), nil
		}
	}

	if ts, err := time.ParseInLocation("2006-01-02", s, now.Location()); err == nil {
		return ts, nil
	}
	if ts, err := time.Parse(time.RFC3339, strings.TrimSpace(expr)); err == nil {
		return dayStart(ts.In(now.Location())), nil
	}

	return time.Time{}, fmt.Errorf("datemath: unrecognized expression %q", expr)
}

// EndOfDay returns the last nanosecond of t's day. Used when a resolved
// expression is the inclusive end of a range.
func EndOfDay(t time.Time) time.Time {
	return dayStart(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

func dayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
