package metrics_test

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ImagingSolutions/UsageMonitor/adapters/metrics"
)

func TestNew_RegistersOnGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.ObserveRequest("GET", 200, 50*time.Millisecond)
	m.ObserveCharge(9)
	m.ObserveRejection("no_capacity")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather error: %v", err)
	}
	want := map[string]bool{
		"usagemonitor_requests_total":           false,
		"usagemonitor_request_duration_seconds": false,
		"usagemonitor_charges_total":            false,
		"usagemonitor_rejections_total":         false,
		"usagemonitor_remaining_capacity":       false,
	}
	for _, f := range families {
		if _, ok := want[f.GetName()]; ok {
			want[f.GetName()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("%s not found", name)
		}
	}

	// A second collector on a separate registry must not panic.
	metrics.New(prometheus.NewRegistry())
}

func TestObserveCharge(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	m.ObserveCharge(5)
	m.ObserveCharge(4)

	if got := testutil.ToFloat64(m.ChargesTotal); got != 2 {
		t.Errorf("charges_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.RemainingCapacity); got != 4 {
		t.Errorf("remaining_capacity = %v, want 4", got)
	}
}

func TestObserveRequest_StatusClass(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	m.ObserveRequest("POST", 402, time.Millisecond)
	m.ObserveRequest("POST", 404, time.Millisecond)

	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("POST", "4xx")); got != 2 {
		t.Errorf("requests_total{POST,4xx} = %v, want 2", got)
	}
}

func TestObserveReload(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	at := time.Unix(1_700_000_000, 0)

	m.ObserveReload(nil, at)
	m.ObserveReload(errors.New("bad yaml"), at)

	if got := testutil.ToFloat64(m.ConfigReloads); got != 1 {
		t.Errorf("config_reloads_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ConfigReloadErrors); got != 1 {
		t.Errorf("config_reload_errors_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ConfigLastReload); got != float64(at.Unix()) {
		t.Errorf("config_last_reload_timestamp = %v", got)
	}
}

func TestNilCollector(t *testing.T) {
	var m *metrics.Collector
	m.ObserveRequest("GET", 200, time.Millisecond)
	m.ObserveCharge(1)
	m.ObserveRecorded(500)
	m.ObserveRejection("x")
	m.ObserveRetry()
	m.ObservePersistenceFailure("charge")
	m.ObserveUpstreamError("timeout")
	m.ObserveReload(nil, time.Now())
}
