package scheduler

import (
	"fmt"
	"time"
)

// Window is an inclusive range of local hours during which cycles may run.
// StartHour 8 and EndHour 22 allow 08:00 through 22:59.
type Window struct {
	StartHour int
	EndHour   int
	Location  *time.Location
}

// NewWindow validates hours and loads the IANA zone.
func NewWindow(startHour, endHour int, timezone string) (Window, error) {
	if startHour < 0 || startHour > 23 || endHour < 0 || endHour > 23 {
		return Window{}, fmt.Errorf("window hours must be within 0-23, got %d-%d", startHour, endHour)
	}
	if startHour > endHour {
		return Window{}, fmt.Errorf("window start hour %d is after end hour %d", startHour, endHour)
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return Window{}, fmt.Errorf("failed to load timezone %q: %w", timezone, err)
	}
	return Window{StartHour: startHour, EndHour: endHour, Location: loc}, nil
}

// Contains reports whether t falls inside the window in its local zone.
func (w Window) Contains(t time.Time) bool {
	hour := w.local(t).Hour()
	return w.StartHour <= hour && hour <= w.EndHour
}

func (w Window) local(t time.Time) time.Time {
	if w.Location == nil {
		return t
	}
	return t.In(w.Location)
}

func (w Window) String() string {
	name := "Local"
	if w.Location != nil {
		name = w.Location.String()
	}
	return fmt.Sprintf("%02d:00-%02d:59 %s", w.StartHour, w.EndHour, name)
}
