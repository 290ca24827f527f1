package policy

import (
	"bundy/internal/bundy/types"
)

// Fallback session names used when no configured definition matches.  This
// is a degraded mode for when policy data is unavailable or incomplete, not
// a default session.
const (
	FallbackMorning   = "Morning"
	FallbackAfternoon = "Afternoon"
	FallbackNight     = "Night"
)

// InRange reports whether now falls inside the window [start, end], both
// boundaries inclusive.  When start > end the window crosses midnight and
// now is in-range when it is on either side of the wrap.
func InRange(now, start, end types.TimeOfDay) bool {
	if start > end {
		return now >= start || now <= end
	}
	return now >= start && now <= end
}

// Schedule answers time-window policy questions against a single snapshot
// of session definitions.  It is pure: no I/O and no clock reads, callers
// pass the time of day, so it is cheap to invoke on every capture event.
type Schedule struct {
	defs []types.SessionDefinition
}

func NewSchedule(defs []types.SessionDefinition) Schedule {
	return Schedule{defs: defs}
}

// Definitions returns the snapshot the schedule was built from.
func (s Schedule) Definitions() []types.SessionDefinition { return s.defs }

// DetermineSession resolves the active session name at now.  Definitions
// are scanned in their configured order: first any time-in window match,
// then any time-out window match.  When nothing matches, a built-in
// morning/afternoon/night split keeps the terminal usable.
func (s Schedule) DetermineSession(now types.TimeOfDay) string {
	for _, d := range s.defs {
		if InRange(now, d.TimeInStart, d.TimeInEnd) {
			return d.Name
		}
	}
	for _, d := range s.defs {
		if d.HasTimeOut() && InRange(now, *d.TimeOutStart, *d.TimeOutEnd) {
			return d.Name
		}
	}

	switch h := now.Hour(); {
	case h >= 6 && h < 12:
		return FallbackMorning
	case h >= 12 && h < 18:
		return FallbackAfternoon
	default:
		return FallbackNight
	}
}

// IsAttendanceAllowed reports whether now falls inside any definition's
// time-in or time-out window.  An empty snapshot fails open: attendance is
// never blocked because policy data could not be obtained.
func (s Schedule) IsAttendanceAllowed(now types.TimeOfDay) bool {
	if len(s.defs) == 0 {
		return true
	}
	for _, d := range s.defs {
		if InRange(now, d.TimeInStart, d.TimeInEnd) {
			return true
		}
		if d.HasTimeOut() && InRange(now, *d.TimeOutStart, *d.TimeOutEnd) {
			return true
		}
	}
	return false
}

// IsLate reports whether a time-in at now counts as late for the named
// session.  The late boundary is the session's late cutoff when one is
// configured, otherwise the end of its time-in window.
func (s Schedule) IsLate(now types.TimeOfDay, name string) bool {
	d, ok := s.find(name)
	if !ok {
		return false
	}

	boundary := d.TimeInEnd
	if d.LateTime != nil {
		boundary = *d.LateTime
	}

	if d.TimeInStart > d.TimeInEnd {
		// Midnight-crossing window: late is the gap between the boundary
		// and the window reopening.
		return now > boundary && now < d.TimeInStart
	}
	return now > boundary
}

// IsInTimeInPeriod reports whether now is inside the named session's
// time-in window.
func (s Schedule) IsInTimeInPeriod(now types.TimeOfDay, name string) bool {
	d, ok := s.find(name)
	if !ok {
		return false
	}
	return InRange(now, d.TimeInStart, d.TimeInEnd)
}

// IsInTimeOutPeriod reports whether now is inside the named session's
// time-out window.  False when the session or its time-out fields are
// absent.
func (s Schedule) IsInTimeOutPeriod(now types.TimeOfDay, name string) bool {
	d, ok := s.find(name)
	if !ok || !d.HasTimeOut() {
		return false
	}
	return InRange(now, *d.TimeOutStart, *d.TimeOutEnd)
}

// IsTimeOutConfigured reports whether the named session has a time-out
// window at all.
func (s Schedule) IsTimeOutConfigured(name string) bool {
	d, ok := s.find(name)
	return ok && d.HasTimeOut()
}

// HasDefinition reports whether name is a configured session.  False means
// the name came from the degraded morning/afternoon/night fallback, so no
// window checks apply to it.
func (s Schedule) HasDefinition(name string) bool {
	_, ok := s.find(name)
	return ok
}

func (s Schedule) find(name string) (types.SessionDefinition, bool) {
	for _, d := range s.defs {
		if d.Name == name {
			return d, true
		}
	}
	return types.SessionDefinition{}, false
}
