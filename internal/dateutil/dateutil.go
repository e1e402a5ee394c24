package dateutil

import (
	"fmt"
	"strings"
	"time"
)

// Layout is the ISO calendar-day format the backend scopes entries by.
const Layout = "2006-01-02"

// Clock returns the current time. Tests swap it for a fixed one.
type Clock func() time.Time

// Today renders the local calendar day of now as YYYY-MM-DD.
func Today(now time.Time) string { return now.Format(Layout) }

// Parse validates an ISO day. "today" and "" resolve against now.
func Parse(s string, now time.Time) (string, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "today":
		return Today(now), nil
	case "yesterday":
		return Today(now.AddDate(0, 0, -1)), nil
	case "tomorrow":
		return Today(now.AddDate(0, 0, 1)), nil
	}
	d, err := time.ParseInLocation(Layout, s, now.Location())
	if err != nil {
		return "", fmt.Errorf("invalid date %q: use YYYY-MM-DD", s)
	}
	return d.Format(Layout), nil
}

// DayFunc yields the YYYY-MM-DD day requests are scoped to.
type DayFunc func() string

// Fixed returns a DayFunc that always yields day.
func Fixed(day string) DayFunc { return func() string { return day } }

// Current returns a DayFunc that re-reads the clock on every call,
// so a session left open past midnight follows the new day.
func Current(clock Clock) DayFunc {
	if clock == nil {
		clock = time.Now
	}
	return func() string { return Today(clock()) }
}
