package memory

import (
	"context"
	"strings"
	"sync"

	"bundy/internal/bundy/store"
)

// TemplateStore is an in-memory template set for tests and dev.
type TemplateStore struct {
	mu   sync.RWMutex
	recs []store.TemplateRecord
}

func NewTemplateStore(recs ...store.TemplateRecord) *TemplateStore {
	s := &TemplateStore{}
	s.recs = append(s.recs, recs...)
	return s
}

func (s *TemplateStore) ListTemplates(_ context.Context) ([]store.TemplateRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.TemplateRecord, len(s.recs))
	copy(out, s.recs)
	return out, nil
}

func (s *TemplateStore) EnrollTemplate(_ context.Context, employeeID string, template []byte) error {
	employeeID = strings.TrimSpace(employeeID)
	if employeeID == "" || len(template) == 0 {
		return nil
	}
	tmpl := make([]byte, len(template))
	copy(tmpl, template)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, store.TemplateRecord{EmployeeID: employeeID, Template: tmpl})
	return nil
}
