package metrics

import (
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopRecorderIsSafe(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.IncCheck("widget")
	r.IncUpdate("widget")
	r.IncFailure("widget")
	r.IncResolution("acme/widget", true)
	r.ObserveCycleDuration(time.Second)
	r.SetComponentsTracked(3)
	r.SetUpdatesAvailable(1)
}

func TestPrometheusRecorderCounts(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)

	pr.IncCheck("widget")
	pr.IncCheck("widget")
	pr.IncUpdate("widget")
	pr.IncFailure("gadget")
	pr.IncResolution("acme/widget", false)
	pr.SetComponentsTracked(2)
	pr.SetUpdatesAvailable(1)

	assert.Equal(t, 2.0, testutil.ToFloat64(pr.checks.WithLabelValues("widget")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pr.updates.WithLabelValues("widget")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pr.failures.WithLabelValues("gadget")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pr.resolutions.WithLabelValues("acme/widget", "absent")))
	assert.Equal(t, 2.0, testutil.ToFloat64(pr.componentsGauge))
	assert.Equal(t, 1.0, testutil.ToFloat64(pr.updatesAvailable))
}

func TestPrometheusRecorderHandler(t *testing.T) {
	pr := NewPrometheusRecorder(nil)
	require.NotNil(t, pr.Handler())
}
