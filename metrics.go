package pathpal

import "sync/atomic"

// MetricID identifies one in-process counter.
type MetricID uint16

const (
	MetricLoginSuccess MetricID = iota
	MetricLoginFailure
	MetricRegistrationStarted
	MetricRegistrationCompleted
	MetricPasswordResetRequested
	MetricPasswordResetCompleted
	MetricUnlinkRequested
	MetricUnlinkCompleted
	MetricOTPResent
	MetricOTPInvalid
	MetricOTPExpired
	MetricCSRFIssued
	MetricCSRFRejected
	MetricRateLimitHit
	MetricDeviceLinked
	MetricNotificationRaised

	metricIDCount
)

var metricNames = [metricIDCount]string{
	"login_success",
	"login_failure",
	"registration_started",
	"registration_completed",
	"password_reset_requested",
	"password_reset_completed",
	"unlink_requested",
	"unlink_completed",
	"otp_resent",
	"otp_invalid",
	"otp_expired",
	"csrf_issued",
	"csrf_rejected",
	"rate_limit_hit",
	"device_linked",
	"notification_raised",
}

// Metrics holds lock-free counters. A nil *Metrics is valid and counts
// nothing, so call sites never branch.
type Metrics struct {
	counters [metricIDCount]atomic.Uint64
}

// NewMetrics creates an enabled metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Inc increments one counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || id >= metricIDCount {
		return
	}
	m.counters[id].Add(1)
}

// Snapshot is a point-in-time copy of all counters keyed by metric name.
type Snapshot map[string]uint64

// Snapshot copies the current counter values.
func (m *Metrics) Snapshot() Snapshot {
	out := make(Snapshot, metricIDCount)
	if m == nil {
		return out
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		out[metricNames[id]] = m.counters[id].Load()
	}
	return out
}
