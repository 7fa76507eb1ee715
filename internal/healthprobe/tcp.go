// Package healthprobe implements the two health checks the DR failover
// controller runs against the primary site: a bare TCP dial, and a
// Prometheus counter that must keep advancing. Grounded on
// internal/probes/worker.go's probe-as-a-type-with-Check shape and on
// original_source/dns_failover.py's check_tcp and MetricsHealthChecker.
package healthprobe

import (
	"context"
	"net"
	"time"
)

// TCPProbe reports a target reachable by dialing it; it carries no state
// between calls.
type TCPProbe struct {
	Address string
	Timeout time.Duration
}

func NewTCPProbe(address string, timeout time.Duration) *TCPProbe {
	return &TCPProbe{Address: address, Timeout: timeout}
}

// Check dials Address and reports whether the connection succeeded
// before ctx or the probe's own timeout elapsed, whichever is sooner.
func (p *TCPProbe) Check(ctx context.Context) bool {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	d := net.Dialer{}
	conn, err := d.DialContext(ctx, "tcp", p.Address)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
