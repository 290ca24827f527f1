package identity

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Refresher periodically reloads the template index so enrollments made
// while the server is running show up without a restart.  It runs as a
// background goroutine and is safe to stop via its context or the Stop
// method.
//
// An interval of 0 disables refreshing entirely.
type Refresher struct {
	resolver *Resolver
	interval time.Duration
	logger   *logrus.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

// RefresherConfig holds the parameters for NewRefresher.
type RefresherConfig struct {
	// IntervalMinutes is how often the index is reloaded.  0 disables the
	// refresher.
	IntervalMinutes int
}

// NewRefresher creates a refresher but does not start it.  Call Start to
// begin the background loop.
func NewRefresher(r *Resolver, cfg RefresherConfig, logger *logrus.Logger) *Refresher {
	return &Refresher{
		resolver: r,
		interval: time.Duration(cfg.IntervalMinutes) * time.Minute,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start begins the background reload loop.  The loop exits when ctx is
// cancelled or Stop is called.
func (f *Refresher) Start(ctx context.Context) {
	if f.interval <= 0 {
		f.logger.Info("template refresher disabled (interval=0)")
		close(f.done)
		return
	}

	ctx, f.cancel = context.WithCancel(ctx)

	go f.loop(ctx)

	f.logger.WithField("interval", f.interval.String()).Info("template refresher started")
}

// Stop signals the refresher to exit and waits for it to finish.
func (f *Refresher) Stop() {
	if f.cancel != nil {
		f.cancel()
	}
	<-f.done
}

func (f *Refresher) loop(ctx context.Context) {
	defer close(f.done)

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := f.resolver.Reload(ctx); err != nil {
				f.logger.WithError(err).Warn("template refresh failed, keeping current index")
			}
		}
	}
}
