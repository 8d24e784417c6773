// Package chrono turns the date and duration strings shown on Japanese
// platform pages into absolute times.
package chrono

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Tokyo is the wall clock every platform renders in. Japan has no DST so a
// fixed zone avoids depending on tzdata being installed.
var Tokyo = time.FixedZone("Asia/Tokyo", 9*60*60)

// Clock returns the reference "now" for relative expressions.
type Clock func() time.Time

// Now returns the current time in Tokyo.
func Now() time.Time {
	return time.Now().In(Tokyo)
}

var (
	weekdayMarker = regexp.MustCompile(`\s*[(（][月火水木金土日][)）]\s*`)
	daysAgo       = regexp.MustCompile(`^(\d+)日前$`)
	hoursAgo      = regexp.MustCompile(`^(\d+)時間前$`)
	minutesAgo    = regexp.MustCompile(`^(\d+)分前$`)
	clockTime     = regexp.MustCompile(`(\d{1,2}):(\d{2})$`)
)

// InferYear picks the year for a month shown without one: a month before the
// current month is next year, anything else is this year.
func InferYear(month time.Month, now time.Time) int {
	if month < now.Month() {
		return now.Year() + 1
	}
	return now.Year()
}

// StripWeekday removes a parenthesized weekday such as "(土)".
func StripWeekday(s string) string {
	return strings.TrimSpace(weekdayMarker.ReplaceAllString(s, " "))
}

// ParseIn parses s with layout in Tokyo time.
func ParseIn(layout, s string) (time.Time, error) {
	return time.ParseInLocation(layout, strings.TrimSpace(s), Tokyo)
}

// ParseYearless parses a layout that omits the year and fills the year in
// with InferYear. February 29 is rejected when the inferred year has none.
func ParseYearless(layout, s string, now time.Time) (time.Time, error) {
	t, err := ParseIn(layout, s)
	if err != nil {
		return time.Time{}, err
	}
	now = now.In(Tokyo)
	year := InferYear(t.Month(), now)
	out := time.Date(year, t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, Tokyo)
	if out.Day() != t.Day() {
		return time.Time{}, fmt.Errorf("%q does not exist in %d", s, year)
	}
	return out, nil
}

// ParseScheduled parses a start caption: "09/16 21:00", "01/15", "今日 21:00"
// or "明日 21:00".
func ParseScheduled(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	now = now.In(Tokyo)

	for _, layout := range []string{"01/02 15:04", "01/02"} {
		if t, err := ParseYearless(layout, s, now); err == nil {
			return t, nil
		}
	}

	var day time.Time
	switch {
	case strings.HasPrefix(s, "今日"):
		day = now
	case strings.HasPrefix(s, "明日"):
		day = now.AddDate(0, 0, 1)
	default:
		return time.Time{}, fmt.Errorf("unrecognized schedule %q", s)
	}

	m := clockTime.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, fmt.Errorf("no time of day in %q", s)
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	if hour > 23 || minute > 59 {
		return time.Time{}, fmt.Errorf("invalid time of day in %q", s)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, Tokyo), nil
}

// ParsePosted parses a posted-at label: "2023/07/06", "2日前", "3時間前" or
// "15分前".
func ParsePosted(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	now = now.In(Tokyo)

	if t, err := ParseIn("2006/01/02", s); err == nil {
		return t, nil
	}
	if m := daysAgo.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		return now.AddDate(0, 0, -n), nil
	}
	if m := hoursAgo.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		return now.Add(-time.Duration(n) * time.Hour), nil
	}
	if m := minutesAgo.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		return now.Add(-time.Duration(n) * time.Minute), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized posted date %q", s)
}

// ParseClock parses "H:MM:SS" or "M:SS". Minutes may exceed 59 in the two part
// form ("115:56").
func ParseClock(s string) (time.Duration, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid duration %q", s)
	}

	var total time.Duration
	units := []time.Duration{time.Second, time.Minute, time.Hour}
	for i := range parts {
		part := parts[len(parts)-1-i]
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		total += time.Duration(n) * units[i]
	}
	return total, nil
}
