package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type SeedDevOptions struct {
	// Employees to pre-create, as employee_id -> full name.
	Employees map[string]string
}

// SeedDev inserts a small dev roster with one enrolled template each.  The
// dev matcher is byte-equality, so the template is simply the employee ID:
// a capture with feature_set = base64(employee_id) identifies that
// employee.
func SeedDev(ctx context.Context, db *sql.DB, opt SeedDevOptions) error {
	now := time.Now().UTC().UnixMilli()

	employees := opt.Employees
	if len(employees) == 0 {
		employees = map[string]string{
			"emp-001": "Dev Employee One",
			"emp-002": "Dev Employee Two",
		}
	}

	for id, name := range employees {
		if _, err := db.ExecContext(ctx, `
INSERT INTO employees(employee_id, full_name, active, created_at_ms, updated_at_ms)
VALUES (?, ?, 1, ?, ?)
ON CONFLICT(employee_id) DO UPDATE SET
  full_name = excluded.full_name,
  active = 1,
  updated_at_ms = excluded.updated_at_ms;
`, id, name, now, now); err != nil {
			return fmt.Errorf("seed employee %s: %w", id, err)
		}

		var count int
		if err := db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM fingerprint_templates WHERE employee_id = ?;`, id,
		).Scan(&count); err != nil {
			return fmt.Errorf("seed template check %s: %w", id, err)
		}
		if count > 0 {
			continue
		}

		if _, err := db.ExecContext(ctx, `
INSERT INTO fingerprint_templates(employee_id, template, enrolled_at_ms)
VALUES (?, ?, ?);
`, id, []byte(id), now); err != nil {
			return fmt.Errorf("seed template %s: %w", id, err)
		}
	}

	return nil
}
