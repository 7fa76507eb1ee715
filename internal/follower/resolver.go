package follower

import (
	"context"
	"net"
	"time"
)

// Resolver resolves the watched DNS name to its current A value.
// Grounded on original_source/otel_watcher.py's get_dns_ip, which shells
// out to `dig @server` when a specific server is configured and falls
// back to the system resolver otherwise; this uses net.Resolver's own
// custom-dialer hook for the same effect instead of an external binary.
type Resolver struct {
	resolver *net.Resolver
}

// NewResolver builds a Resolver. If server is non-empty, lookups are
// sent to that DNS server (host, optionally "host:port") instead of the
// system resolver.
func NewResolver(server string) *Resolver {
	if server == "" {
		return &Resolver{resolver: net.DefaultResolver}
	}
	addr := server
	if _, _, err := net.SplitHostPort(server); err != nil {
		addr = net.JoinHostPort(server, "53")
	}
	return &Resolver{
		resolver: &net.Resolver{
			PreferGo: true,
			Dial: func(ctx context.Context, network, _ string) (net.Conn, error) {
				d := net.Dialer{Timeout: 5 * time.Second}
				return d.DialContext(ctx, network, addr)
			},
		},
	}
}

// Lookup returns the first IPv4 address for name, or the first address
// of any family when none is IPv4, or an error if resolution fails or
// yields no addresses.
func (r *Resolver) Lookup(ctx context.Context, name string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	ips, err := r.resolver.LookupHost(ctx, name)
	if err != nil {
		return "", err
	}
	for _, ip := range ips {
		if net.ParseIP(ip).To4() != nil {
			return ip, nil
		}
	}
	if len(ips) > 0 {
		return ips[0], nil
	}
	return "", &net.DNSError{Err: "no addresses", Name: name}
}
