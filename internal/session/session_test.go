package session

import (
	"testing"
	"time"
)

// newYork and london mirror the package calendars. Test times are built in
// exchange-local terms so DST never shifts the boundary under test.
var (
	newYork = mustLoadLocation("America/New_York")
	london  = mustLoadLocation("Europe/London")
)

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

func TestStateAt_USBoundaries(t *testing.T) {
	// Wednesday 2026-02-11 in New York.
	day := func(hour, min int) time.Time {
		return time.Date(2026, 2, 11, hour, min, 0, 0, newYork)
	}

	tests := []struct {
		name string
		at   time.Time
		want State
	}{
		{"overnight", day(3, 59), StateClosed},
		{"pre opens", day(4, 0), StatePre},
		{"last pre minute", day(9, 29), StatePre},
		{"regular opens", day(9, 30), StateRegular},
		{"midday", day(12, 0), StateRegular},
		{"post opens", day(16, 0), StatePost},
		{"last post minute", day(19, 59), StatePost},
		{"closed", day(20, 0), StateClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StateAt("US", tt.at); got != tt.want {
				t.Errorf("StateAt(US, %v) = %s, want %s", tt.at, got, tt.want)
			}
		})
	}
}

func TestStateAt_LSEBoundaries(t *testing.T) {
	// Wednesday 2026-02-11 in London.
	day := func(hour, min int) time.Time {
		return time.Date(2026, 2, 11, hour, min, 0, 0, london)
	}

	tests := []struct {
		name string
		at   time.Time
		want State
	}{
		{"overnight", day(6, 59), StateClosed},
		{"pre opens", day(7, 0), StatePre},
		{"regular opens", day(8, 0), StateRegular},
		{"late afternoon", day(16, 29), StateRegular},
		{"post opens", day(16, 30), StatePost},
		{"closed", day(17, 30), StateClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StateAt("LSE", tt.at); got != tt.want {
				t.Errorf("StateAt(LSE, %v) = %s, want %s", tt.at, got, tt.want)
			}
		})
	}
}

func TestStateAt_Weekend(t *testing.T) {
	saturday := time.Date(2026, 2, 14, 12, 0, 0, 0, newYork)
	if got := StateAt("US", saturday); got != StateClosed {
		t.Errorf("StateAt(US, saturday midday) = %s, want CLOSED", got)
	}

	sunday := time.Date(2026, 2, 15, 12, 0, 0, 0, london)
	if got := StateAt("LSE", sunday); got != StateClosed {
		t.Errorf("StateAt(LSE, sunday midday) = %s, want CLOSED", got)
	}
}

func TestStateAt_UnknownExchangeUsesUSCalendar(t *testing.T) {
	midday := time.Date(2026, 2, 11, 12, 0, 0, 0, newYork)
	if got := StateAt("", midday); got != StateRegular {
		t.Errorf("StateAt(unknown, NY midday) = %s, want REGULAR", got)
	}
}

func TestStateAt_CrossTimezone(t *testing.T) {
	// 13:00 London on a weekday is 08:00 in New York, US pre-market.
	at := time.Date(2026, 2, 11, 13, 0, 0, 0, london)
	if got := StateAt("US", at); got != StatePre {
		t.Errorf("StateAt(US, 13:00 London) = %s, want PRE", got)
	}
	if got := StateAt("LSE", at); got != StateRegular {
		t.Errorf("StateAt(LSE, 13:00 London) = %s, want REGULAR", got)
	}
}

func TestApplicablePrice(t *testing.T) {
	tests := []struct {
		name               string
		state              State
		regular, pre, post float64
		want               float64
	}{
		{"pre uses pre price", StatePre, 100, 101.5, 0, 101.5},
		{"pre missing falls back", StatePre, 100, 0, 0, 100},
		{"regular uses regular", StateRegular, 100, 101.5, 102.5, 100},
		{"post uses post price", StatePost, 100, 0, 102.5, 102.5},
		{"post missing falls back", StatePost, 100, 101.5, 0, 100},
		{"closed uses regular", StateClosed, 100, 101.5, 102.5, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApplicablePrice(tt.state, tt.regular, tt.pre, tt.post)
			if got != tt.want {
				t.Errorf("ApplicablePrice(%s) = %v, want %v", tt.state, got, tt.want)
			}
		})
	}
}
