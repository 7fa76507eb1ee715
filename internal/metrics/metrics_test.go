package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestLeaseWritesIncrementsByLabel(t *testing.T) {
	LeaseWrites.Reset()
	LeaseWrites.WithLabelValues("file", "success").Inc()
	LeaseWrites.WithLabelValues("file", "success").Inc()
	LeaseWrites.WithLabelValues("file", "transient_error").Inc()

	require.Equal(t, float64(2), testutil.ToFloat64(LeaseWrites.WithLabelValues("file", "success")))
	require.Equal(t, float64(1), testutil.ToFloat64(LeaseWrites.WithLabelValues("file", "transient_error")))
}

func TestHandlerServesRegisteredMetrics(t *testing.T) {
	ReconcilerFailbackReady.Set(1)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	require.Contains(t, rec.Body.String(), "dnsfailover_reconciler_failback_ready 1")
}

func TestNewInstrumentedClientRecordsRequests(t *testing.T) {
	clientCounter.Reset()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewInstrumentedClient("test-client", nil)
	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, float64(1), testutil.ToFloat64(clientCounter.WithLabelValues("test-client", "200", "get")))
}
