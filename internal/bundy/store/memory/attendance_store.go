package memory

import (
	"context"
	"sync"
	"time"

	"bundy/internal/bundy/store"
	"bundy/internal/bundy/types"
)

// AttendanceStore is an in-memory attendance table for tests and dev.  It
// enforces the same one-row-per-(employee, day) and open-row semantics as
// the SQLite store, including the competing-writer sentinels.
type AttendanceStore struct {
	mu   sync.Mutex
	rows map[string]*store.AttendanceRecord // key: employeeID + "/" + day
}

func NewAttendanceStore() *AttendanceStore {
	return &AttendanceStore{rows: make(map[string]*store.AttendanceRecord)}
}

func key(employeeID, day string) string { return employeeID + "/" + day }

func (s *AttendanceStore) GetForDay(_ context.Context, employeeID, day string) (*store.AttendanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.rows[key(employeeID, day)]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (s *AttendanceStore) CreateTimeIn(_ context.Context, rec store.AttendanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(rec.EmployeeID, rec.Day)
	if _, exists := s.rows[k]; exists {
		return store.ErrDuplicateDay
	}
	cp := rec
	s.rows[k] = &cp
	return nil
}

func (s *AttendanceStore) CompleteTimeOut(_ context.Context, employeeID, day string, timeOut types.TimeOfDay, worked time.Duration, session string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.rows[key(employeeID, day)]
	if !ok || rec.TimeOut != nil {
		return store.ErrNoOpenRecord
	}
	t := timeOut
	rec.TimeOut = &t
	rec.Worked = worked
	rec.Status = store.StatusComplete
	rec.Session = session
	return nil
}

// Records returns a copy of all rows.  Test-only helper.
func (s *AttendanceStore) Records() []store.AttendanceRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.AttendanceRecord, 0, len(s.rows))
	for _, rec := range s.rows {
		out = append(out, *rec)
	}
	return out
}
