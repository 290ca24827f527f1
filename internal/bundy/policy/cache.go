package policy

import (
	"context"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"bundy/internal/bundy/types"
)

// DefaultTTL is how long a fetched snapshot is served without I/O.
const DefaultTTL = 5 * time.Minute

const snapshotKey = "sessions"

// Cache holds the last-fetched session definitions behind a TTL.  Fetch
// failures never reach callers: the cache degrades to the previous
// snapshot, or to an empty list if nothing was ever fetched (the schedule
// then fails open on the allowed check).  A failed refresh re-arms the
// snapshot for a fraction of the TTL so a dead endpoint is not hammered
// once per capture.
//
// The snapshot is an immutable value replaced wholesale by a single-writer
// refresh; concurrent callers during a refresh share one in-flight fetch.
type Cache struct {
	source  Source
	logger  *logrus.Logger
	failTTL time.Duration

	snap  *gocache.Cache // current snapshot under snapshotKey, TTL-bounded
	last  atomic.Value   // []types.SessionDefinition, last successful fetch
	group singleflight.Group
}

func NewCache(source Source, ttl time.Duration, logger *logrus.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		source:  source,
		logger:  logger,
		failTTL: ttl / 10,
		snap:    gocache.New(ttl, 2*ttl),
	}
}

// GetSessions returns the current session definitions.  It never returns an
// error; all fetch failures degrade per the fallback rules above.
func (c *Cache) GetSessions(ctx context.Context) []types.SessionDefinition {
	if v, ok := c.snap.Get(snapshotKey); ok {
		return v.([]types.SessionDefinition)
	}

	v, _, _ := c.group.Do(snapshotKey, func() (any, error) {
		// A concurrent caller may have completed the refresh while this
		// one waited on the flight.
		if v, ok := c.snap.Get(snapshotKey); ok {
			return v, nil
		}

		defs, err := c.source.FetchSessions(ctx)
		if err != nil {
			c.logger.WithError(err).Warn("policy fetch failed, serving previous snapshot")
			prev := c.previous()
			// Short re-arm: the next refresh attempt waits out the
			// backoff instead of retrying on every capture.
			c.snap.Set(snapshotKey, prev, c.failTTL)
			return prev, nil
		}

		c.snap.Set(snapshotKey, defs, gocache.DefaultExpiration)
		c.last.Store(defs)
		return defs, nil
	})
	return v.([]types.SessionDefinition)
}

// Schedule returns a Schedule over the current snapshot.
func (c *Cache) Schedule(ctx context.Context) Schedule {
	return NewSchedule(c.GetSessions(ctx))
}

func (c *Cache) previous() []types.SessionDefinition {
	if v := c.last.Load(); v != nil {
		return v.([]types.SessionDefinition)
	}
	return []types.SessionDefinition{}
}
