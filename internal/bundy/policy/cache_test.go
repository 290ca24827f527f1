package policy_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"bundy/internal/bundy/policy"
	"bundy/internal/bundy/types"
)

func silentLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// fakeSource counts fetches and can be told to fail or stall.
type fakeSource struct {
	mu    sync.Mutex
	defs  []types.SessionDefinition
	err   error
	delay time.Duration
	calls atomic.Int64
}

func (f *fakeSource) FetchSessions(_ context.Context) ([]types.SessionDefinition, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.defs, nil
}

func (f *fakeSource) set(defs []types.SessionDefinition, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.defs = defs
	f.err = err
}

func oneSession(name string) []types.SessionDefinition {
	return []types.SessionDefinition{{
		Name:        name,
		TimeInStart: tod(8, 0, 0),
		TimeInEnd:   tod(12, 0, 0),
	}}
}

func TestCache_ServesSnapshotWithoutRefetchInsideTTL(t *testing.T) {
	src := &fakeSource{defs: oneSession("company")}
	c := policy.NewCache(src, time.Hour, silentLogger())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		defs := c.GetSessions(ctx)
		if len(defs) != 1 || defs[0].Name != "company" {
			t.Fatalf("unexpected snapshot on call %d: %+v", i, defs)
		}
	}

	if n := src.calls.Load(); n != 1 {
		t.Errorf("expected exactly 1 fetch inside TTL, got %d", n)
	}
}

func TestCache_FallsBackToPreviousSnapshotOnFailure(t *testing.T) {
	src := &fakeSource{defs: oneSession("company")}
	// Tiny TTL so the second call refreshes.
	c := policy.NewCache(src, 10*time.Millisecond, silentLogger())
	ctx := context.Background()

	first := c.GetSessions(ctx)
	if len(first) != 1 {
		t.Fatalf("expected initial snapshot, got %+v", first)
	}

	src.set(nil, errors.New("policy endpoint down"))
	time.Sleep(30 * time.Millisecond)

	degraded := c.GetSessions(ctx)
	if len(degraded) != 1 || degraded[0].Name != "company" {
		t.Errorf("expected previous snapshot on fetch failure, got %+v", degraded)
	}
}

func TestCache_EmptyWhenNeverFetched(t *testing.T) {
	src := &fakeSource{err: errors.New("down since boot")}
	c := policy.NewCache(src, time.Hour, silentLogger())

	defs := c.GetSessions(context.Background())
	if len(defs) != 0 {
		t.Errorf("expected empty snapshot, got %+v", defs)
	}

	// The fail-open rule lives in the schedule built from that snapshot.
	if !c.Schedule(context.Background()).IsAttendanceAllowed(tod(3, 0, 0)) {
		t.Error("expected attendance allowed on empty snapshot")
	}
}

func TestCache_SingleFlightOnConcurrentRefresh(t *testing.T) {
	src := &fakeSource{defs: oneSession("company"), delay: 50 * time.Millisecond}
	c := policy.NewCache(src, time.Hour, silentLogger())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defs := c.GetSessions(ctx)
			if len(defs) != 1 {
				t.Errorf("unexpected snapshot: %+v", defs)
			}
		}()
	}
	wg.Wait()

	if n := src.calls.Load(); n != 1 {
		t.Errorf("expected 1 shared fetch for 10 concurrent callers, got %d", n)
	}
}

func TestCache_RecoversAfterFailure(t *testing.T) {
	src := &fakeSource{err: errors.New("down")}
	c := policy.NewCache(src, 10*time.Millisecond, silentLogger())
	ctx := context.Background()

	if defs := c.GetSessions(ctx); len(defs) != 0 {
		t.Fatalf("expected empty snapshot while down, got %+v", defs)
	}

	src.set(oneSession("company"), nil)

	// Once the failure backoff lapses, the next call fetches fresh data.
	time.Sleep(30 * time.Millisecond)
	defs := c.GetSessions(ctx)
	if len(defs) != 1 || defs[0].Name != "company" {
		t.Errorf("expected recovery snapshot, got %+v", defs)
	}
}

func TestCache_FailureBackoffSuppressesRefetch(t *testing.T) {
	src := &fakeSource{err: errors.New("down since boot")}
	// Long TTL so the backoff (a tenth of it) comfortably outlasts the
	// test: every call after the first failure serves the re-armed
	// snapshot without touching the source.
	c := policy.NewCache(src, time.Hour, silentLogger())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if defs := c.GetSessions(ctx); len(defs) != 0 {
			t.Fatalf("expected empty degraded snapshot on call %d, got %+v", i, defs)
		}
	}

	if n := src.calls.Load(); n != 1 {
		t.Errorf("expected 1 fetch attempt against the dead endpoint, got %d", n)
	}
}
