package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"bundy/internal/bundy/policy"
	"bundy/internal/bundy/service"
	"bundy/internal/bundy/store"
	"bundy/internal/bundy/store/memory"
	"bundy/internal/bundy/types"
)

func tod(h, m, s int) types.TimeOfDay { return types.NewTimeOfDay(h, m, s) }

func todPtr(h, m, s int) *types.TimeOfDay {
	t := types.NewTimeOfDay(h, m, s)
	return &t
}

// at builds a concrete instant on a fixed test day.
func at(h, m, s int) time.Time {
	return time.Date(2026, 3, 2, h, m, s, 0, time.Local)
}

// companySchedule: time-in 08:00-09:00, time-out 17:00-18:00, late 08:30.
func companySchedule() policy.Schedule {
	return policy.NewSchedule([]types.SessionDefinition{{
		Name:         "company",
		TimeInStart:  tod(8, 0, 0),
		TimeInEnd:    tod(9, 0, 0),
		TimeOutStart: todPtr(17, 0, 0),
		TimeOutEnd:   todPtr(18, 0, 0),
		LateTime:     todPtr(8, 30, 0),
	}})
}

// inOnlySchedule has no time-out window configured.
func inOnlySchedule() policy.Schedule {
	return policy.NewSchedule([]types.SessionDefinition{{
		Name:        "in-only",
		TimeInStart: tod(8, 0, 0),
		TimeInEnd:   tod(12, 0, 0),
	}})
}

// ── Time-in ──────────────────────────────────────────────────────────────────

func TestLedger_TimeInCreatesRecord(t *testing.T) {
	as := memory.NewAttendanceStore()
	l := service.NewLedger(as)

	dec, err := l.Apply(context.Background(), "emp-001", at(8, 15, 0), companySchedule())
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if dec.Outcome != types.OutcomeTimeInRecorded {
		t.Fatalf("expected time_in_recorded, got %v (%v)", dec.Outcome, dec.Reason)
	}
	if dec.Status != store.StatusTimeIn {
		t.Errorf("08:15 is before the late cutoff, expected status=time_in, got %v", dec.Status)
	}
	if dec.Session != "company" {
		t.Errorf("expected session=company, got %q", dec.Session)
	}

	recs := as.Records()
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	if recs[0].TimeIn == nil || *recs[0].TimeIn != tod(8, 15, 0) {
		t.Errorf("unexpected time_in: %v", recs[0].TimeIn)
	}
	if !recs[0].Open() {
		t.Error("expected an open record")
	}
}

func TestLedger_TimeInAfterLateCutoffIsLate(t *testing.T) {
	as := memory.NewAttendanceStore()
	l := service.NewLedger(as)

	dec, err := l.Apply(context.Background(), "emp-001", at(8, 45, 0), companySchedule())
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if dec.Outcome != types.OutcomeTimeInRecorded {
		t.Fatalf("expected time_in_recorded, got %v (%v)", dec.Outcome, dec.Reason)
	}
	if dec.Status != store.StatusLate {
		t.Errorf("08:45 is past the 08:30 cutoff, expected status=late, got %v", dec.Status)
	}
}

func TestLedger_OutsideAllowedHoursRejected(t *testing.T) {
	as := memory.NewAttendanceStore()
	l := service.NewLedger(as)

	dec, err := l.Apply(context.Background(), "emp-001", at(19, 0, 0), companySchedule())
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if dec.Outcome != types.OutcomeRejected || dec.Reason != types.ReasonOutsideHours {
		t.Errorf("expected rejected/outside_allowed_hours, got %v/%v", dec.Outcome, dec.Reason)
	}
	if len(as.Records()) != 0 {
		t.Error("no record should be written outside allowed hours")
	}
}

func TestLedger_TimeOutWithoutTimeInRejected(t *testing.T) {
	as := memory.NewAttendanceStore()
	l := service.NewLedger(as)

	dec, err := l.Apply(context.Background(), "emp-001", at(17, 30, 0), companySchedule())
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if dec.Outcome != types.OutcomeRejected || dec.Reason != types.ReasonNoTimeIn {
		t.Errorf("expected rejected/no_time_in_recorded, got %v/%v", dec.Outcome, dec.Reason)
	}
}

// ── Idempotence ──────────────────────────────────────────────────────────────

func TestLedger_DuplicateTimeInRejected(t *testing.T) {
	as := memory.NewAttendanceStore()
	l := service.NewLedger(as)
	ctx := context.Background()

	if _, err := l.Apply(ctx, "emp-001", at(8, 15, 0), companySchedule()); err != nil {
		t.Fatalf("first Apply: %v", err)
	}

	// Replaying the trigger must never create a second row.
	for i := 0; i < 3; i++ {
		dec, err := l.Apply(ctx, "emp-001", at(8, 20, 0), companySchedule())
		if err != nil {
			t.Fatalf("replay %d: %v", i, err)
		}
		if dec.Outcome != types.OutcomeRejected || dec.Reason != types.ReasonDuplicateTimeIn {
			t.Errorf("replay %d: expected rejected/duplicate_time_in, got %v/%v", i, dec.Outcome, dec.Reason)
		}
	}

	if n := len(as.Records()); n != 1 {
		t.Errorf("expected exactly 1 record, got %d", n)
	}
}

// ── Time-out ─────────────────────────────────────────────────────────────────

func TestLedger_RoundTripCompletesRecord(t *testing.T) {
	as := memory.NewAttendanceStore()
	l := service.NewLedger(as)
	ctx := context.Background()

	if _, err := l.Apply(ctx, "emp-001", at(8, 0, 0), companySchedule()); err != nil {
		t.Fatalf("time-in: %v", err)
	}

	dec, err := l.Apply(ctx, "emp-001", at(17, 30, 0), companySchedule())
	if err != nil {
		t.Fatalf("time-out: %v", err)
	}
	if dec.Outcome != types.OutcomeTimeOutRecorded {
		t.Fatalf("expected time_out_recorded, got %v (%v)", dec.Outcome, dec.Reason)
	}
	if dec.Status != store.StatusComplete {
		t.Errorf("expected status=complete, got %v", dec.Status)
	}

	recs := as.Records()
	if len(recs) != 1 {
		t.Fatalf("expected exactly 1 record, got %d", len(recs))
	}
	rec := recs[0]
	if rec.TimeIn == nil || rec.TimeOut == nil {
		t.Fatal("expected both time_in and time_out set")
	}
	if rec.Status != store.StatusComplete {
		t.Errorf("expected complete, got %v", rec.Status)
	}
	if want := 9*time.Hour + 30*time.Minute; rec.Worked != want {
		t.Errorf("expected worked=%v, got %v", want, rec.Worked)
	}

	// A third trigger the same day is rejected.
	dec, err = l.Apply(ctx, "emp-001", at(17, 45, 0), companySchedule())
	if err != nil {
		t.Fatalf("third trigger: %v", err)
	}
	if dec.Outcome != types.OutcomeRejected || dec.Reason != types.ReasonAlreadyComplete {
		t.Errorf("expected rejected/already_completed_today, got %v/%v", dec.Outcome, dec.Reason)
	}
}

// When the policy source has never been reachable the schedule is empty and
// every capture runs in degraded mode: recorded under the fallback session
// name, never blocked by the outage.
func TestLedger_EmptyPolicyRecordsTimeIn(t *testing.T) {
	as := memory.NewAttendanceStore()
	l := service.NewLedger(as)

	dec, err := l.Apply(context.Background(), "emp-001", at(10, 0, 0), policy.NewSchedule(nil))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if dec.Outcome != types.OutcomeTimeInRecorded {
		t.Fatalf("expected time_in_recorded during a policy outage, got %v (%v)", dec.Outcome, dec.Reason)
	}
	if dec.Session != policy.FallbackMorning {
		t.Errorf("expected fallback session %q, got %q", policy.FallbackMorning, dec.Session)
	}
	if dec.Status != store.StatusTimeIn {
		t.Errorf("degraded mode has no late cutoff, expected status=time_in, got %v", dec.Status)
	}
}

func TestLedger_EmptyPolicyCompletesTimeOut(t *testing.T) {
	as := memory.NewAttendanceStore()
	l := service.NewLedger(as)
	ctx := context.Background()

	if _, err := l.Apply(ctx, "emp-001", at(8, 30, 0), inOnlySchedule()); err != nil {
		t.Fatalf("time-in: %v", err)
	}

	// The outage starts after the time-in.  The open row is completed
	// under the fallback session rather than stranded until policy data
	// returns.
	dec, err := l.Apply(ctx, "emp-001", at(17, 30, 0), policy.NewSchedule(nil))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if dec.Outcome != types.OutcomeTimeOutRecorded {
		t.Fatalf("expected time_out_recorded during a policy outage, got %v (%v)", dec.Outcome, dec.Reason)
	}
	if dec.Status != store.StatusComplete {
		t.Errorf("expected status=complete, got %v", dec.Status)
	}

	rec := as.Records()[0]
	if rec.Open() {
		t.Error("record should be complete")
	}
	if want := 9 * time.Hour; rec.Worked != want {
		t.Errorf("expected worked=%v, got %v", want, rec.Worked)
	}
	if rec.Session != policy.FallbackAfternoon {
		t.Errorf("expected fallback session %q, got %q", policy.FallbackAfternoon, rec.Session)
	}
}

func TestLedger_MidnightCrossingShiftWorkedDuration(t *testing.T) {
	as := memory.NewAttendanceStore()
	l := service.NewLedger(as)
	ctx := context.Background()

	sched := policy.NewSchedule([]types.SessionDefinition{{
		Name:         "graveyard",
		TimeInStart:  tod(21, 0, 0),
		TimeInEnd:    tod(23, 0, 0),
		TimeOutStart: todPtr(5, 0, 0),
		TimeOutEnd:   todPtr(7, 0, 0),
	}})

	if _, err := l.Apply(ctx, "emp-001", at(22, 0, 0), sched); err != nil {
		t.Fatalf("time-in: %v", err)
	}

	// Same calendar day in this model (single row per employee per day);
	// the worked duration still accounts for the wrap.
	dec, err := l.Apply(ctx, "emp-001", at(6, 0, 0), sched)
	if err != nil {
		t.Fatalf("time-out: %v", err)
	}
	if dec.Outcome != types.OutcomeTimeOutRecorded {
		t.Fatalf("expected time_out_recorded, got %v (%v)", dec.Outcome, dec.Reason)
	}

	recs := as.Records()
	if want := 8 * time.Hour; recs[0].Worked != want {
		t.Errorf("expected worked=%v across midnight, got %v", want, recs[0].Worked)
	}
}

// ── Concurrency ──────────────────────────────────────────────────────────────

func TestLedger_ConcurrentTimeInsCreateExactlyOneRecord(t *testing.T) {
	as := memory.NewAttendanceStore()
	l := service.NewLedger(as)
	ctx := context.Background()

	const n = 16
	outcomes := make([]service.Decision, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			dec, err := l.Apply(ctx, "emp-001", at(8, 15, 0), companySchedule())
			if err != nil {
				t.Errorf("worker %d: %v", i, err)
				return
			}
			outcomes[i] = dec
		}(i)
	}
	wg.Wait()

	var created, duplicates int
	for _, dec := range outcomes {
		switch {
		case dec.Outcome == types.OutcomeTimeInRecorded:
			created++
		case dec.Outcome == types.OutcomeRejected && dec.Reason == types.ReasonDuplicateTimeIn:
			duplicates++
		default:
			t.Errorf("unexpected outcome %v/%v", dec.Outcome, dec.Reason)
		}
	}
	if created != 1 {
		t.Errorf("expected exactly 1 created, got %d", created)
	}
	if duplicates != n-1 {
		t.Errorf("expected %d duplicates, got %d", n-1, duplicates)
	}
	if len(as.Records()) != 1 {
		t.Errorf("expected exactly 1 stored record, got %d", len(as.Records()))
	}
}

func TestLedger_ConcurrentTimeOutsCompleteExactlyOnce(t *testing.T) {
	as := memory.NewAttendanceStore()
	l := service.NewLedger(as)
	ctx := context.Background()

	if _, err := l.Apply(ctx, "emp-001", at(8, 0, 0), companySchedule()); err != nil {
		t.Fatalf("time-in: %v", err)
	}

	const n = 8
	var wg sync.WaitGroup
	var completed, rejected counter
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dec, err := l.Apply(ctx, "emp-001", at(17, 30, 0), companySchedule())
			if err != nil {
				t.Errorf("Apply: %v", err)
				return
			}
			if dec.Outcome == types.OutcomeTimeOutRecorded {
				completed.inc()
			} else {
				rejected.inc()
			}
		}()
	}
	wg.Wait()

	if completed.get() != 1 {
		t.Errorf("expected exactly 1 completion, got %d", completed.get())
	}
	if rejected.get() != n-1 {
		t.Errorf("expected %d rejections, got %d", n-1, rejected.get())
	}
}

// ── Conflict re-evaluation ───────────────────────────────────────────────────

// racingStore simulates a competing writer that slips in between the
// ledger's read and write on the first attempt.
type racingStore struct {
	*memory.AttendanceStore
	once sync.Once
}

func (s *racingStore) CreateTimeIn(ctx context.Context, rec store.AttendanceRecord) error {
	var raced bool
	s.once.Do(func() {
		raced = true
		other := rec
		other.ID = "competing-writer"
		_ = s.AttendanceStore.CreateTimeIn(ctx, other)
	})
	if raced {
		return store.ErrDuplicateDay
	}
	return s.AttendanceStore.CreateTimeIn(ctx, rec)
}

func TestLedger_ConflictReevaluatesFromCurrentRow(t *testing.T) {
	rs := &racingStore{AttendanceStore: memory.NewAttendanceStore()}
	l := service.NewLedger(rs)

	dec, err := l.Apply(context.Background(), "emp-001", at(8, 15, 0), companySchedule())
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	// The competing writer won; this trigger must classify as a duplicate,
	// not fail and not create a second row.
	if dec.Outcome != types.OutcomeRejected || dec.Reason != types.ReasonDuplicateTimeIn {
		t.Errorf("expected rejected/duplicate_time_in after conflict, got %v/%v", dec.Outcome, dec.Reason)
	}
	if n := len(rs.Records()); n != 1 {
		t.Errorf("expected exactly 1 record after conflict, got %d", n)
	}
}

// counter is a tiny goroutine-safe test counter.
type counter struct {
	mu sync.Mutex
	n  int
}

func (c *counter) inc() { c.mu.Lock(); c.n++; c.mu.Unlock() }
func (c *counter) get() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}
