package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dbpkg "bundy/internal/db"

	"bundy/internal/bundy/store"
	"bundy/internal/bundy/types"
)

type AttendanceStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewAttendanceStore(db *sql.DB, writer *dbpkg.Worker) *AttendanceStore {
	return &AttendanceStore{db: db, writer: writer}
}

func (s *AttendanceStore) GetForDay(ctx context.Context, employeeID, day string) (*store.AttendanceRecord, error) {
	var (
		rec     store.AttendanceRecord
		timeIn  sql.NullInt64
		timeOut sql.NullInt64
		workedS sql.NullInt64
	)

	err := s.db.QueryRowContext(ctx, `
SELECT id, time_in_s, time_out_s, status, session, worked_s
FROM attendance
WHERE employee_id = ? AND day = ?;
`, employeeID, day).Scan(&rec.ID, &timeIn, &timeOut, &rec.Status, &rec.Session, &workedS)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetForDay query: %w", err)
	}

	rec.EmployeeID = employeeID
	rec.Day = day
	if timeIn.Valid {
		t := types.TimeOfDay(timeIn.Int64)
		rec.TimeIn = &t
	}
	if timeOut.Valid {
		t := types.TimeOfDay(timeOut.Int64)
		rec.TimeOut = &t
	}
	if workedS.Valid {
		rec.Worked = time.Duration(workedS.Int64) * time.Second
	}
	return &rec, nil
}

// CreateTimeIn inserts the day's row.  The UNIQUE (employee_id, day)
// constraint makes this the atomic "first writer wins" point: a conflicting
// insert affects zero rows and surfaces as ErrDuplicateDay.
func (s *AttendanceStore) CreateTimeIn(ctx context.Context, rec store.AttendanceRecord) error {
	if rec.TimeIn == nil {
		return fmt.Errorf("CreateTimeIn: time_in is required")
	}
	nowMs := time.Now().UTC().UnixMilli()

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO attendance(
  id, employee_id, day, time_in_s, status, session, created_at_ms, updated_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?);
`, rec.ID, rec.EmployeeID, rec.Day, int64(*rec.TimeIn), string(rec.Status), rec.Session, nowMs, nowMs)
		if err != nil {
			return fmt.Errorf("CreateTimeIn insert: %w", err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("CreateTimeIn rows affected: %w", err)
		}
		if n == 0 {
			return store.ErrDuplicateDay
		}
		return nil
	})
}

// CompleteTimeOut closes the open row.  The time_out_s IS NULL guard makes
// the update conditional: a competing writer that completed the row first
// leaves zero rows affected, surfaced as ErrNoOpenRecord.
func (s *AttendanceStore) CompleteTimeOut(ctx context.Context, employeeID, day string, timeOut types.TimeOfDay, worked time.Duration, session string) error {
	nowMs := time.Now().UTC().UnixMilli()

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE attendance
SET time_out_s    = ?,
    worked_s      = ?,
    status        = ?,
    session       = ?,
    updated_at_ms = ?
WHERE employee_id = ? AND day = ? AND time_out_s IS NULL;
`, int64(timeOut), int64(worked/time.Second), string(store.StatusComplete), session, nowMs, employeeID, day)
		if err != nil {
			return fmt.Errorf("CompleteTimeOut update: %w", err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("CompleteTimeOut rows affected: %w", err)
		}
		if n == 0 {
			return store.ErrNoOpenRecord
		}
		return nil
	})
}
