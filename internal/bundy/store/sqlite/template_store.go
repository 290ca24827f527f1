package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	dbpkg "bundy/internal/db"

	"bundy/internal/bundy/store"
)

type TemplateStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewTemplateStore(db *sql.DB, writer *dbpkg.Worker) *TemplateStore {
	return &TemplateStore{db: db, writer: writer}
}

// ListTemplates returns every template for active employees, in enrollment
// order.  The result is the complete snapshot the identification index is
// rebuilt from.
func (s *TemplateStore) ListTemplates(ctx context.Context) ([]store.TemplateRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT t.employee_id, t.template
FROM fingerprint_templates t
JOIN employees e ON e.employee_id = t.employee_id
WHERE e.active = 1
ORDER BY t.id;
`)
	if err != nil {
		return nil, fmt.Errorf("ListTemplates query: %w", err)
	}
	defer rows.Close()

	var out []store.TemplateRecord
	for rows.Next() {
		var rec store.TemplateRecord
		if err := rows.Scan(&rec.EmployeeID, &rec.Template); err != nil {
			return nil, fmt.Errorf("ListTemplates scan: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListTemplates rows: %w", err)
	}
	return out, nil
}

func (s *TemplateStore) EnrollTemplate(ctx context.Context, employeeID string, template []byte) error {
	employeeID = strings.TrimSpace(employeeID)
	if employeeID == "" || len(template) == 0 {
		return fmt.Errorf("EnrollTemplate: employee_id and template are required")
	}
	nowMs := time.Now().UTC().UnixMilli()

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO fingerprint_templates(employee_id, template, enrolled_at_ms)
VALUES (?, ?, ?);
`, employeeID, template, nowMs); err != nil {
			return fmt.Errorf("EnrollTemplate insert: %w", err)
		}
		return nil
	})
}
