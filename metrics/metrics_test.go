package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func gauge(t *testing.T, name string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name && len(mf.GetMetric()) > 0 {
			return mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatalf("metric %s not registered", name)
	return 0
}

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()

	IncCommandSubmitted("manual")
	IncTransition("schedule_set")

	SetDeviceConnected(true)
	if got := gauge(t, metricPrefix+"device_connected"); got != 1 {
		t.Fatalf("device_connected = %v", got)
	}
	SetDeviceConnected(false)
	if got := gauge(t, metricPrefix+"device_connected"); got != 0 {
		t.Fatalf("device_connected = %v", got)
	}
}
