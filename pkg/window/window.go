package window

import (
	"fmt"
	"time"
)

const minutesPerDay = 24 * 60

// Window is the daily service window of the appliance. Joins are only
// accepted while the wall clock, in Location, is inside [Open, Close).
// Open and Close are minutes since midnight.
type Window struct {
	Open     int
	Close    int
	Location *time.Location
}

// Parse builds a window from "HH:MM" strings and an IANA time zone
// name. An empty zone means the local zone of the process.
func Parse(openTime, closeTime, tz string) (Window, error) {
	openMinute, err := parseClock(openTime)
	if err != nil {
		return Window{}, fmt.Errorf("invalid open time[%v]: %w", openTime, err)
	}

	closeMinute, err := parseClock(closeTime)
	if err != nil {
		return Window{}, fmt.Errorf("invalid close time[%v]: %w", closeTime, err)
	}

	loc := time.Local
	if tz != "" {
		if loc, err = time.LoadLocation(tz); err != nil {
			return Window{}, fmt.Errorf("invalid timezone[%v]: %w", tz, err)
		}
	}

	return Window{Open: openMinute, Close: closeMinute, Location: loc}, nil
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

// IsOpen reports whether now falls inside the window. A window whose
// Open is after its Close wraps midnight, e.g. 22:00-02:00. Equal Open
// and Close means the service never closes.
func (w Window) IsOpen(now time.Time) bool {
	if w.Open == w.Close {
		return true
	}

	minute := w.minuteOfDay(now)
	if w.Open < w.Close {
		return minute >= w.Open && minute < w.Close
	}
	return minute >= w.Open || minute < w.Close
}

// NextBoundary returns the start of the minute following now. A window
// can only flip on a minute boundary, so callers re-evaluate IsOpen there.
func NextBoundary(now time.Time) time.Time {
	return now.Truncate(time.Minute).Add(time.Minute)
}

func (w Window) String() string {
	return fmt.Sprintf("%02d:%02d-%02d:%02d", w.Open/60, w.Open%60, w.Close/60, w.Close%60)
}

func (w Window) minuteOfDay(now time.Time) int {
	if w.Location != nil {
		now = now.In(w.Location)
	}
	return (now.Hour()*60 + now.Minute()) % minutesPerDay
}
