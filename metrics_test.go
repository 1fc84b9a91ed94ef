package pathpal

import (
	"sync"
	"testing"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.Inc(MetricLoginSuccess)
	m.Inc(MetricLoginSuccess)
	m.Inc(MetricOTPInvalid)

	snap := m.Snapshot()
	if snap["login_success"] != 2 {
		t.Fatalf("login_success = %d, want 2", snap["login_success"])
	}
	if snap["otp_invalid"] != 1 {
		t.Fatalf("otp_invalid = %d, want 1", snap["otp_invalid"])
	}
	if snap["login_failure"] != 0 {
		t.Fatalf("login_failure = %d, want 0", snap["login_failure"])
	}
	if len(snap) != int(metricIDCount) {
		t.Fatalf("snapshot has %d entries, want %d", len(snap), metricIDCount)
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.Inc(MetricLoginSuccess)
	if snap := m.Snapshot(); len(snap) != 0 {
		t.Fatalf("nil snapshot has %d entries", len(snap))
	}
}

func TestMetricsOutOfRangeIgnored(t *testing.T) {
	m := NewMetrics()
	m.Inc(metricIDCount)
	m.Inc(metricIDCount + 5)
	for name, v := range m.Snapshot() {
		if v != 0 {
			t.Fatalf("%s = %d after out-of-range increments", name, v)
		}
	}
}

func TestMetricsConcurrentIncrements(t *testing.T) {
	m := NewMetrics()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				m.Inc(MetricRateLimitHit)
			}
		}()
	}
	wg.Wait()
	if got := m.Snapshot()["rate_limit_hit"]; got != 8000 {
		t.Fatalf("rate_limit_hit = %d, want 8000", got)
	}
}
