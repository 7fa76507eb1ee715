package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	clientCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dnsfailover_http_client_requests_total",
			Help: "A counter for requests from the wrapped outbound client.",
		},
		[]string{"client", "code", "method"},
	)
	clientLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dnsfailover_http_client_request_latency_seconds",
			Help:    "A histogram of outbound request latencies.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"client", "code", "method"},
	)
	clientInFlight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dnsfailover_http_client_in_flight_requests",
			Help: "A gauge of in-flight requests for the wrapped outbound client.",
		},
		[]string{"client"},
	)
)

func init() {
	Registry.MustRegister(clientCounter, clientLatency, clientInFlight)
}

// NewInstrumentedClient wraps client's transport with Prometheus request
// counter, latency and in-flight middleware, labelled by name so the
// DNS providers, health probes and webhook notifier show up as distinct
// series (aws, azure, probe, notify). If client is nil, a
// plain *http.Client is instrumented in its place.
func NewInstrumentedClient(name string, client *http.Client) *http.Client {
	if client == nil {
		client = &http.Client{}
	}
	if client.Transport == nil {
		client.Transport = http.DefaultTransport
	}

	latency := clientLatency.MustCurryWith(prometheus.Labels{"client": name})
	counter := clientCounter.MustCurryWith(prometheus.Labels{"client": name})
	inFlight := clientInFlight.With(prometheus.Labels{"client": name})

	client.Transport = promhttp.InstrumentRoundTripperInFlight(inFlight,
		promhttp.InstrumentRoundTripperCounter(counter,
			promhttp.InstrumentRoundTripperDuration(latency, client.Transport),
		),
	)
	return client
}
