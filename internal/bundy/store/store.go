package store

import (
	"context"
	"errors"
	"time"

	"bundy/internal/bundy/types"
)

// TemplateRecord pairs an employee with one enrolled fingerprint template.
// The template bytes are opaque to the server; only the matcher interprets
// them.
type TemplateRecord struct {
	EmployeeID string
	Template   []byte
}

// TemplateStore is the bulk source of enrolled templates.
type TemplateStore interface {
	// ListTemplates returns every enrolled template as one complete
	// snapshot, in enrollment order.  Used to (re)build the
	// identification index.
	ListTemplates(ctx context.Context) ([]TemplateRecord, error)

	// EnrollTemplate persists a new template for an employee.
	EnrollTemplate(ctx context.Context, employeeID string, template []byte) error
}

type AttendanceStatus string

const (
	StatusTimeIn   AttendanceStatus = "time_in"
	StatusLate     AttendanceStatus = "late"
	StatusComplete AttendanceStatus = "complete"
)

// AttendanceRecord is one employee's row for one calendar day.  At most one
// row exists per (employee, day); the ledger is its only writer.
type AttendanceRecord struct {
	ID         string
	EmployeeID string
	Day        string // "2006-01-02"
	TimeIn     *types.TimeOfDay
	TimeOut    *types.TimeOfDay
	Status     AttendanceStatus
	Session    string
	Worked     time.Duration
}

// Open reports whether the record has a time-in but no time-out yet.
func (r AttendanceRecord) Open() bool {
	return r.TimeIn != nil && r.TimeOut == nil
}

var (
	// ErrDuplicateDay means a row already exists for the (employee, day)
	// key.  On CreateTimeIn this is competing-writer detection: the caller
	// must re-read and re-evaluate, not fail.
	ErrDuplicateDay = errors.New("attendance row already exists for employee and day")

	// ErrNoOpenRecord means CompleteTimeOut found no open row: either the
	// row is missing or a competing writer already completed it.
	ErrNoOpenRecord = errors.New("no open attendance row for employee and day")
)

// AttendanceStore persists the daily attendance rows.  Implementations must
// make CreateTimeIn and CompleteTimeOut atomic per (employee, day) so that
// two near-simultaneous triggers cannot both create or both complete a row.
type AttendanceStore interface {
	// GetForDay returns the employee's row for the day, or (nil, nil) when
	// none exists.
	GetForDay(ctx context.Context, employeeID, day string) (*AttendanceRecord, error)

	// CreateTimeIn inserts the day's row.  Returns ErrDuplicateDay when a
	// row for the key already exists.
	CreateTimeIn(ctx context.Context, rec AttendanceRecord) error

	// CompleteTimeOut sets time-out, worked duration, session and
	// status=complete on the open row.  Returns ErrNoOpenRecord when there
	// is no open row to complete.
	CompleteTimeOut(ctx context.Context, employeeID, day string, timeOut types.TimeOfDay, worked time.Duration, session string) error
}
