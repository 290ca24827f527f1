package identity

import (
	"sync"

	"bundy/internal/bundy/store"
)

// Index is the in-memory 1:N identification set.  The record slice is an
// immutable snapshot swapped wholesale by ReplaceAll; an in-flight
// identification always sees either the old or the new complete snapshot,
// never a partial one.
type Index struct {
	matcher Matcher

	mu      sync.RWMutex
	records []store.TemplateRecord
}

func NewIndex(m Matcher) *Index {
	return &Index{matcher: m}
}

// ReplaceAll installs a new complete snapshot of the template set.
func (ix *Index) ReplaceAll(records []store.TemplateRecord) {
	snap := make([]store.TemplateRecord, len(records))
	copy(snap, records)

	ix.mu.Lock()
	ix.records = snap
	ix.mu.Unlock()
}

// Identify scans the template set in enrollment order and stops at the
// first positive verdict.  First-match-wins is the documented
// identification policy here: the matching primitive reports only a
// verdict, so there is no score to rank a best-of-N on.
func (ix *Index) Identify(sample []byte) (string, bool) {
	ix.mu.RLock()
	records := ix.records
	ix.mu.RUnlock()

	if len(sample) == 0 {
		return "", false
	}
	for _, rec := range records {
		if ix.matcher.Match(sample, rec.Template) {
			return rec.EmployeeID, true
		}
	}
	return "", false
}

// Len returns the number of templates in the current snapshot.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.records)
}
