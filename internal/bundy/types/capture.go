package types

// CaptureRequest is what a fingerprint terminal posts after a scan.  The
// terminal runs feature extraction on-device; the server never sees raw
// biometric signal.
type CaptureRequest struct {
	DeviceID   string `json:"device_id"`
	FeatureSet []byte `json:"feature_set"`           // base64 in JSON
	CapturedAt string `json:"captured_at,omitempty"` // optional device timestamp
}

// Outcome classifies what a capture did to the ledger.
type Outcome string

const (
	OutcomeTimeInRecorded  Outcome = "time_in_recorded"
	OutcomeTimeOutRecorded Outcome = "time_out_recorded"
	OutcomeRejected        Outcome = "rejected"
	OutcomeNotRegistered   Outcome = "not_registered"
	OutcomeStorageError    Outcome = "storage_error"
)

// RejectReason narrows OutcomeRejected.  These are expected business
// outcomes of the policy, not errors; the terminal shows them verbatim.
type RejectReason string

const (
	ReasonOutsideHours         RejectReason = "outside_allowed_hours"
	ReasonNoTimeIn             RejectReason = "no_time_in_recorded"
	ReasonDuplicateTimeIn      RejectReason = "duplicate_time_in"
	ReasonTimeOutNotConfigured RejectReason = "time_out_not_configured"
	ReasonAlreadyComplete      RejectReason = "already_completed_today"
)

// CaptureResult is the classified result of one capture event, returned to
// the terminal and fanned out to the presentation layer.
type CaptureResult struct {
	Outcome    Outcome      `json:"outcome"`
	Reason     RejectReason `json:"reason,omitempty"`
	EmployeeID string       `json:"employee_id,omitempty"`
	Session    string       `json:"session,omitempty"`
	Status     string       `json:"status,omitempty"`
	ServerTime string       `json:"server_time"`
}
