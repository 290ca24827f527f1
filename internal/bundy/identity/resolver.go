package identity

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"bundy/internal/bundy/store"
)

// Resolver owns the identification index and keeps it loaded from the
// template store.  It never writes to storage: a reload is a read-only bulk
// fetch followed by a snapshot swap.
type Resolver struct {
	index  *Index
	store  store.TemplateStore
	logger *logrus.Logger
}

func NewResolver(ts store.TemplateStore, m Matcher, logger *logrus.Logger) *Resolver {
	return &Resolver{
		index:  NewIndex(m),
		store:  ts,
		logger: logger,
	}
}

// Reload replaces the index with the store's current template set.
func (r *Resolver) Reload(ctx context.Context) error {
	recs, err := r.store.ListTemplates(ctx)
	if err != nil {
		return fmt.Errorf("template reload: %w", err)
	}
	r.index.ReplaceAll(recs)
	r.logger.WithField("templates", len(recs)).Info("template index reloaded")
	return nil
}

// Identify resolves a captured feature set to an employee ID, or reports
// no match.
func (r *Resolver) Identify(sample []byte) (string, bool) {
	return r.index.Identify(sample)
}

// TemplateCount returns the size of the current index snapshot.
func (r *Resolver) TemplateCount() int { return r.index.Len() }
