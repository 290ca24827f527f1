package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"bundy/internal/bundy/policy"
	"bundy/internal/bundy/store"
	"bundy/internal/bundy/types"
)

// Decision is the ledger's classified answer for one capture.
type Decision struct {
	Outcome types.Outcome
	Reason  types.RejectReason
	Session string
	Status  store.AttendanceStatus
}

// Ledger applies the daily attendance state machine:
//
//	NoRecord -> Open(timeIn) -> Complete(timeIn, timeOut)
//
// per (employee, day).  The read-then-write section is guarded twice: a
// per-key mutex in process, and the store's own constraint/conditional
// semantics underneath.  When the store reports a competing writer, the
// ledger re-reads and re-evaluates from the current row instead of failing.
type Ledger struct {
	store store.AttendanceStore
	locks keyedMutex
}

func NewLedger(st store.AttendanceStore) *Ledger {
	return &Ledger{store: st}
}

// Apply decides and executes the transition for one capture at the given
// instant.  A non-nil error is a storage failure; every policy outcome is a
// Decision, not an error.
func (l *Ledger) Apply(ctx context.Context, employeeID string, at time.Time, sched policy.Schedule) (Decision, error) {
	now := types.TimeOfDayOf(at)
	day := at.Format("2006-01-02")

	if !sched.IsAttendanceAllowed(now) {
		return Decision{Outcome: types.OutcomeRejected, Reason: types.ReasonOutsideHours}, nil
	}
	session := sched.DetermineSession(now)

	unlock := l.locks.lock(employeeID + "/" + day)
	defer unlock()

	rec, err := l.store.GetForDay(ctx, employeeID, day)
	if err != nil {
		return Decision{}, fmt.Errorf("ledger read: %w", err)
	}

	return l.transition(ctx, employeeID, day, now, session, sched, rec, false)
}

// transition applies the state-machine table to the current row.  reread
// marks the second pass after a competing-writer conflict; it never
// recurses further.
func (l *Ledger) transition(
	ctx context.Context,
	employeeID, day string,
	now types.TimeOfDay,
	session string,
	sched policy.Schedule,
	rec *store.AttendanceRecord,
	reread bool,
) (Decision, error) {
	// A session name absent from the definitions is the degraded fallback:
	// policy data could not be obtained.  Window checks do not apply then;
	// the capture is recorded under the fallback name rather than blocked
	// by an infrastructure outage.
	degraded := !sched.HasDefinition(session)

	switch {
	case rec == nil:
		if !degraded && !sched.IsInTimeInPeriod(now, session) {
			return Decision{Outcome: types.OutcomeRejected, Reason: types.ReasonNoTimeIn, Session: session}, nil
		}

		status := store.StatusTimeIn
		if sched.IsLate(now, session) {
			status = store.StatusLate
		}
		t := now
		err := l.store.CreateTimeIn(ctx, store.AttendanceRecord{
			ID:         uuid.NewString(),
			EmployeeID: employeeID,
			Day:        day,
			TimeIn:     &t,
			Status:     status,
			Session:    session,
		})
		if errors.Is(err, store.ErrDuplicateDay) {
			// A competing trigger created the row between our read and
			// write.  Re-evaluate from the current row.
			return l.reevaluate(ctx, employeeID, day, now, session, sched, reread)
		}
		if err != nil {
			return Decision{}, fmt.Errorf("ledger create: %w", err)
		}
		return Decision{Outcome: types.OutcomeTimeInRecorded, Session: session, Status: status}, nil

	case rec.Open():
		if !degraded {
			if sched.IsInTimeInPeriod(now, session) {
				return Decision{Outcome: types.OutcomeRejected, Reason: types.ReasonDuplicateTimeIn, Session: session}, nil
			}
			if !sched.IsTimeOutConfigured(session) {
				return Decision{Outcome: types.OutcomeRejected, Reason: types.ReasonTimeOutNotConfigured, Session: session}, nil
			}
			if !sched.IsInTimeOutPeriod(now, session) {
				// Attendance is allowed via some other definition's
				// window, but this session has nothing applicable at
				// this instant.
				return Decision{Outcome: types.OutcomeRejected, Reason: types.ReasonOutsideHours, Session: session}, nil
			}
		}

		worked := elapsed(*rec.TimeIn, now)
		err := l.store.CompleteTimeOut(ctx, employeeID, day, now, worked, session)
		if errors.Is(err, store.ErrNoOpenRecord) {
			// A competing trigger completed the row first.
			return l.reevaluate(ctx, employeeID, day, now, session, sched, reread)
		}
		if err != nil {
			return Decision{}, fmt.Errorf("ledger complete: %w", err)
		}
		return Decision{Outcome: types.OutcomeTimeOutRecorded, Session: session, Status: store.StatusComplete}, nil

	default: // complete
		return Decision{Outcome: types.OutcomeRejected, Reason: types.ReasonAlreadyComplete, Session: session}, nil
	}
}

func (l *Ledger) reevaluate(
	ctx context.Context,
	employeeID, day string,
	now types.TimeOfDay,
	session string,
	sched policy.Schedule,
	alreadyReread bool,
) (Decision, error) {
	if alreadyReread {
		// Two conflicts in a row should not happen under the keyed mutex;
		// classify conservatively rather than loop.
		return Decision{Outcome: types.OutcomeRejected, Reason: types.ReasonDuplicateTimeIn, Session: session}, nil
	}

	rec, err := l.store.GetForDay(ctx, employeeID, day)
	if err != nil {
		return Decision{}, fmt.Errorf("ledger re-read: %w", err)
	}
	return l.transition(ctx, employeeID, day, now, session, sched, rec, true)
}

// elapsed computes the worked duration between time-in and time-out,
// accounting for a shift that crosses midnight.
func elapsed(timeIn, timeOut types.TimeOfDay) time.Duration {
	d := int(timeOut) - int(timeIn)
	if d < 0 {
		d += 24 * 3600
	}
	return time.Duration(d) * time.Second
}

// keyedMutex hands out one mutex per active key.  Entries are reference
// counted and removed when the last holder unlocks, so the map does not
// grow with one entry per employee-day forever.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyedLock)
	}
	e, ok := k.locks[key]
	if !ok {
		e = &keyedLock{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()

		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
