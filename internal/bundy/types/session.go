package types

// SessionDefinition is one named time-window policy as configured on the
// policy endpoint.  A definition always has a time-in window; the time-out
// window and the late cutoff are optional.
//
// Definitions are immutable once fetched: the policy cache replaces the
// whole slice on refresh and never mutates a definition in place.
type SessionDefinition struct {
	Name         string
	TimeInStart  TimeOfDay
	TimeInEnd    TimeOfDay
	TimeOutStart *TimeOfDay
	TimeOutEnd   *TimeOfDay
	LateTime     *TimeOfDay
}

// HasTimeOut reports whether the session has a configured time-out window.
func (d SessionDefinition) HasTimeOut() bool {
	return d.TimeOutStart != nil && d.TimeOutEnd != nil
}
