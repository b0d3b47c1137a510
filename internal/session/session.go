// Package session computes exchange-calendar market session state and
// selects the price field that applies to the current session.
package session

import "time"

// State is the trading phase of an exchange at a point in time.
type State string

const (
	StatePre     State = "PRE"
	StateRegular State = "REGULAR"
	StatePost    State = "POST"
	StateClosed  State = "CLOSED"
)

// window is a half-open [open, close) range in minutes of the local day, so
// a boundary instant always belongs to the later session.
type window struct {
	open, close int
}

func (w window) contains(minute int) bool {
	return minute >= w.open && minute < w.close
}

type calendar struct {
	loc     *time.Location
	pre     window
	regular window
	post    window
}

func newCalendar(zone string, pre, regular, post window) *calendar {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		// No tzdata for this zone (e.g. minimal container). StateAt
		// falls back to REGULAR rather than failing the request.
		return nil
	}
	return &calendar{loc: loc, pre: pre, regular: regular, post: post}
}

var (
	// US equities (America/New_York): pre 04:00, regular 09:30-16:00, post until 20:00.
	usCalendar = newCalendar("America/New_York",
		window{4 * 60, 9*60 + 30},
		window{9*60 + 30, 16 * 60},
		window{16 * 60, 20 * 60},
	)

	// LSE (Europe/London): pre 07:00, regular 08:00-16:30, post until 17:30.
	lseCalendar = newCalendar("Europe/London",
		window{7 * 60, 8 * 60},
		window{8 * 60, 16*60 + 30},
		window{16*60 + 30, 17*60 + 30},
	)
)

// calendarFor maps an exchange tag to its calendar. Unknown exchanges use
// the US calendar, matching the tracker's US-centric default.
func calendarFor(exchange string) *calendar {
	if exchange == "LSE" {
		return lseCalendar
	}
	return usCalendar
}

// StateAt returns the session state for an exchange at the given instant.
// Weekends are CLOSED. When timezone data for the exchange is unavailable
// the state defaults to REGULAR so quoting still proceeds.
func StateAt(exchange string, now time.Time) State {
	cal := calendarFor(exchange)
	if cal == nil {
		return StateRegular
	}

	local := now.In(cal.loc)
	if wd := local.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return StateClosed
	}

	minute := local.Hour()*60 + local.Minute()
	switch {
	case cal.pre.contains(minute):
		return StatePre
	case cal.regular.contains(minute):
		return StateRegular
	case cal.post.contains(minute):
		return StatePost
	}
	return StateClosed
}

// ApplicablePrice selects the price field for a session state. Missing
// extended-hours prices (zero) fall back to the regular price rather than
// erroring.
func ApplicablePrice(st State, regular, pre, post float64) float64 {
	switch st {
	case StatePre:
		if pre > 0 {
			return pre
		}
	case StatePost:
		if post > 0 {
			return post
		}
	}
	return regular
}
