package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersCollectors(t *testing.T) {
	m := New()
	require.NotNil(t, m)
	require.NotNil(t, m.Registry())

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	// Go and process collectors register immediately.
	assert.NotEmpty(t, families)
}

func TestMetricsRecording(t *testing.T) {
	m := New()

	m.IncrementPollTicks("waiting")
	m.IncrementPollTicks("scanning")
	m.IncrementFileChecks("absent")
	m.AddWebPortsFound(3)
	m.IncrementScans("success")
	m.RecordScanDuration(42 * time.Second)
	m.IncrementDispatches("success")
	m.IncrementDispatches("error")
	m.RecordDispatchDuration(5 * time.Second)
	m.SetPipelineState(StateScanning)
	m.IncrementRuns("success")

	handler := promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	handler.ServeHTTP(rec, req)

	body := rec.Body.String()
	assert.Contains(t, body, "rad_watcher_poll_ticks_total")
	assert.Contains(t, body, "rad_watcher_web_ports_found_total 3")
	assert.Contains(t, body, "rad_dispatch_invocations_total")
	assert.Contains(t, body, "rad_pipeline_state 2")
	assert.Contains(t, body, "rad_pipeline_runs_total")
}

func TestGlobalMetricsSingleton(t *testing.T) {
	first := GetGlobalMetrics()
	second := GetGlobalMetrics()
	assert.Same(t, first, second)
}

func TestStateConstants(t *testing.T) {
	states := []int{StateIdle, StateWaiting, StateScanning, StateDispatching}
	for i, s := range states {
		if s != i {
			t.Errorf("state constant %d has value %d", i, s)
		}
	}
}
