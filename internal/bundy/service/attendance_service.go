package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"

	"bundy/internal/bundy/identity"
	"bundy/internal/bundy/policy"
	"bundy/internal/bundy/types"
)

var (
	ErrInvalidFeatureSet = errors.New("feature_set is required")
)

// storageRetryBackoff is the pause before the single retry of a failed
// ledger read or write.
const storageRetryBackoff = 200 * time.Millisecond

// AttendanceService is the orchestrator: it wires a capture event through
// identity resolution, the session policy, and the attendance ledger, then
// fans the classified result out to the presentation layer.  No raw fault
// from a downstream stage ever escapes it; everything becomes one of the
// CaptureResult outcomes.
type AttendanceService struct {
	resolver *identity.Resolver
	policy   *policy.Cache
	ledger   *Ledger
	notifier Notifier
	logger   *logrus.Logger
}

func NewAttendanceService(
	resolver *identity.Resolver,
	cache *policy.Cache,
	ledger *Ledger,
	notifier Notifier,
	logger *logrus.Logger,
) *AttendanceService {
	return &AttendanceService{
		resolver: resolver,
		policy:   cache,
		ledger:   ledger,
		notifier: notifier,
		logger:   logger,
	}
}

// Process handles one capture event to completion or to a classified
// failure.  The only error it returns is request validation; every
// downstream condition is a CaptureResult.
func (s *AttendanceService) Process(ctx context.Context, req types.CaptureRequest) (types.CaptureResult, error) {
	if len(req.FeatureSet) == 0 {
		return types.CaptureResult{}, ErrInvalidFeatureSet
	}

	// Terminals on the local network report their capture instant; fall
	// back to the server clock when absent or unparseable.
	at := time.Now()
	if t := parseOptionalTimestamp(req.CapturedAt); t != nil {
		at = *t
	}

	employeeID, ok := s.resolver.Identify(req.FeatureSet)
	if !ok {
		res := types.CaptureResult{
			Outcome:    types.OutcomeNotRegistered,
			ServerTime: time.Now().UTC().Format(time.RFC3339Nano),
		}
		s.notify(res)
		return res, nil
	}

	sched := s.policy.Schedule(ctx)

	var dec Decision
	err := retry.Do(ctx, retry.WithMaxRetries(1, retry.NewConstant(storageRetryBackoff)), func(ctx context.Context) error {
		d, err := s.ledger.Apply(ctx, employeeID, at, sched)
		if err != nil {
			return retry.RetryableError(err)
		}
		dec = d
		return nil
	})
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"employee_id": employeeID,
			"device_id":   req.DeviceID,
		}).Error("attendance write failed after retry")
		res := types.CaptureResult{
			Outcome:    types.OutcomeStorageError,
			EmployeeID: employeeID,
			ServerTime: time.Now().UTC().Format(time.RFC3339Nano),
		}
		s.notify(res)
		return res, nil
	}

	res := types.CaptureResult{
		Outcome:    dec.Outcome,
		Reason:     dec.Reason,
		EmployeeID: employeeID,
		Session:    dec.Session,
		Status:     string(dec.Status),
		ServerTime: time.Now().UTC().Format(time.RFC3339Nano),
	}
	s.notify(res)
	return res, nil
}

func (s *AttendanceService) notify(res types.CaptureResult) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(res)
}

// parseOptionalTimestamp attempts to parse a device-reported RFC 3339
// timestamp, with or without fractional seconds.  Returns nil if the string
// is empty or unparseable.
func parseOptionalTimestamp(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	local := t.Local()
	return &local
}
