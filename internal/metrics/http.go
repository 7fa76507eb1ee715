package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler exposes Registry in the Prometheus text exposition format,
// repurposing a promhttp handler that once instrumented an outbound
// client to instead serve inbound scrapes.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
