package healthprobe

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func metricsServer(t *testing.T, body func() string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, body())
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestProgressProbeFirstCheckIsBaseline(t *testing.T) {
	srv := metricsServer(t, func() string {
		return "otelcol_receiver_accepted_metric_points 100\n"
	})
	p := NewProgressProbe(srv.URL, "otelcol_receiver_accepted_metric_points", 3, time.Second)
	require.True(t, p.Check(context.Background()))
}

func TestProgressProbeHealthyWhileIncreasing(t *testing.T) {
	value := 100.0
	srv := metricsServer(t, func() string {
		return fmt.Sprintf("otelcol_receiver_accepted_metric_points %v\n", value)
	})
	p := NewProgressProbe(srv.URL, "otelcol_receiver_accepted_metric_points", 3, time.Second)

	require.True(t, p.Check(context.Background())) // baseline
	value = 150
	require.True(t, p.Check(context.Background()))
	value = 200
	require.True(t, p.Check(context.Background()))
}

func TestProgressProbeUnhealthyAfterStaleRun(t *testing.T) {
	srv := metricsServer(t, func() string {
		return "otelcol_receiver_accepted_metric_points 100\n"
	})
	p := NewProgressProbe(srv.URL, "otelcol_receiver_accepted_metric_points", 3, time.Second)

	require.True(t, p.Check(context.Background()))  // baseline
	require.True(t, p.Check(context.Background()))  // stale 1/3
	require.True(t, p.Check(context.Background()))  // stale 2/3
	require.False(t, p.Check(context.Background())) // stale 3/3 -> unhealthy
}

func TestProgressProbeSumsAcrossLabels(t *testing.T) {
	srv := metricsServer(t, func() string {
		return `otelcol_receiver_accepted_metric_points{receiver="prometheus"} 100
otelcol_receiver_accepted_metric_points{receiver="otlp"} 50
`
	})
	p := NewProgressProbe(srv.URL, "otelcol_receiver_accepted_metric_points", 3, time.Second)
	require.True(t, p.Check(context.Background()))
	require.Equal(t, 150.0, *p.lastValue)
}

func TestProgressProbeUnreachableCountsAsStale(t *testing.T) {
	p := NewProgressProbe("http://127.0.0.1:1/metrics", "any_metric", 2, 100*time.Millisecond)
	require.True(t, p.Check(context.Background()))  // 1/2
	require.False(t, p.Check(context.Background())) // 2/2 -> unhealthy
}

func TestProgressProbeMissingMetricCountsAsStale(t *testing.T) {
	srv := metricsServer(t, func() string {
		return "some_other_metric 5\n"
	})
	p := NewProgressProbe(srv.URL, "otelcol_receiver_accepted_metric_points", 2, time.Second)
	require.True(t, p.Check(context.Background()))
	require.False(t, p.Check(context.Background()))
}
