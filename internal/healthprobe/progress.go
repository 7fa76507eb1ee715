package healthprobe

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/mikempw/dnsfailover/internal/metrics"
)

// ProgressProbe reports a target healthy as long as a named counter keeps
// advancing between successive calls to Check. It holds state, so a
// single ProgressProbe must be reused across checks rather than
// reconstructed each time — the opposite of TCPProbe.
//
// Grounded on original_source/dns_failover.py's MetricsHealthChecker:
// first observation is a baseline (healthy), an unreachable endpoint or
// a missing metric counts as one stale tick, and StaleAfter consecutive
// stale ticks before the counter advances again is what flips Check to
// false.
type ProgressProbe struct {
	URL        string
	MetricName string
	StaleAfter int
	Timeout    time.Duration

	client *http.Client

	mu          sync.Mutex
	lastValue   *float64
	staleChecks int
}

func NewProgressProbe(url, metricName string, staleAfter int, timeout time.Duration) *ProgressProbe {
	return &ProgressProbe{
		URL:        url,
		MetricName: metricName,
		StaleAfter: staleAfter,
		Timeout:    timeout,
		client:     metrics.NewInstrumentedClient("probe", &http.Client{Timeout: timeout}),
	}
}

// Check fetches the Prometheus exposition text at URL and sums every
// sample of MetricName across all label combinations, the same
// summing-regardless-of-labels behaviour as the Python original.
func (p *ProgressProbe) Check(ctx context.Context) bool {
	value, err := p.fetchValue(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()

	if err != nil {
		p.staleChecks++
		return p.staleChecks < p.staleAfterOrDefault()
	}

	if p.lastValue == nil {
		p.lastValue = &value
		p.staleChecks = 0
		return true
	}

	if value > *p.lastValue {
		p.lastValue = &value
		p.staleChecks = 0
		return true
	}

	p.lastValue = &value
	p.staleChecks++
	return p.staleChecks < p.staleAfterOrDefault()
}

func (p *ProgressProbe) staleAfterOrDefault() int {
	if p.StaleAfter <= 0 {
		return 3
	}
	return p.StaleAfter
}

func (p *ProgressProbe) fetchValue(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "dnsfailover")

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch metrics: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("fetch metrics: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read metrics body: %w", err)
	}

	return sumMetric(body, p.MetricName)
}

// sumMetric parses Prometheus text exposition format and sums every
// sample of the named metric, across all label combinations, counter or
// gauge alike.
func sumMetric(body []byte, metricName string) (float64, error) {
	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("parse exposition text: %w", err)
	}

	family, ok := families[metricName]
	if !ok {
		return 0, fmt.Errorf("metric %q not found", metricName)
	}

	var total float64
	for _, m := range family.Metric {
		total += sampleValue(m)
	}
	return total, nil
}

func sampleValue(m *dto.Metric) float64 {
	switch {
	case m.Counter != nil:
		return m.Counter.GetValue()
	case m.Gauge != nil:
		return m.Gauge.GetValue()
	case m.Untyped != nil:
		return m.Untyped.GetValue()
	default:
		return 0
	}
}
