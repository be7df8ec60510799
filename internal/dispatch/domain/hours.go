package domain

import "time"

// WorkingHours is a tenant's allowed sending window, [Start, End) in whole
// hours of the tenant's zone.
type WorkingHours struct {
	Start    int
	End      int
	Location *time.Location
}

// Contains reports whether t falls inside the window. A degenerate window
// (end not after start) never matches, which parks the tenant's queue until
// the config is fixed.
func (w WorkingHours) Contains(t time.Time) bool {
	if w.End <= w.Start {
		return false
	}
	loc := w.Location
	if loc == nil {
		loc = time.UTC
	}
	h := t.In(loc).Hour()
	return h >= w.Start && h < w.End
}
