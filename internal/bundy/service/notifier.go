package service

import (
	"github.com/sirupsen/logrus"

	"bundy/internal/bundy/types"
)

// Notifier delivers capture results to the presentation layer (terminal
// display, sound, toast).  Delivery is fire-and-forget: a notifier must not
// block the capture path, and its failures never affect the ledger result.
type Notifier interface {
	Notify(res types.CaptureResult)
}

// LogNotifier writes each result to the structured log.  It stands in for
// a real presentation consumer in deployments that only want the audit
// trail.
type LogNotifier struct {
	logger *logrus.Logger
}

func NewLogNotifier(logger *logrus.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(res types.CaptureResult) {
	n.logger.WithFields(logrus.Fields{
		"outcome":     res.Outcome,
		"reason":      res.Reason,
		"employee_id": res.EmployeeID,
		"session":     res.Session,
		"status":      res.Status,
	}).Info("capture result")
}
