// Package script implements the script-provider contract: two caller
// supplied executables, one to write the record pair and one to read it.
// Grounded on original_source/dns_failover.py's ScriptProvider and on the
// exec.CommandContext + bounded-timeout pattern used throughout the
// corpus for shelling out (e.g.
// hashicorp-consul-k8s/subcommand/consul-sidecar/command.go).
package script

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/mikempw/dnsfailover/internal/dnsprovider"
	"github.com/mikempw/dnsfailover/internal/lease"
)

// Timeout bounds both the write and read scripts, per the documented
// wire contract in spec.md §6.
const Timeout = 30 * time.Second

// Provider shells out to two caller-supplied scripts.
type Provider struct {
	cfg       dnsprovider.Config
	setScript string
	getScript string
}

var _ dnsprovider.Provider = (*Provider)(nil)

func New(cfg dnsprovider.Config, setScript, getScript string) *Provider {
	return &Provider{cfg: cfg, setScript: setScript, getScript: getScript}
}

func (p *Provider) Name() dnsprovider.Name { return dnsprovider.NameScript }

// SetRecords invokes the write script with the documented positional
// argv (record ip owner expires_at ttl zone) and environment variables.
// A non-zero exit is a transient failure; the controller owns retries.
func (p *Provider) SetRecords(ctx context.Context, ip string, owner lease.Owner, expiresAt int64) error {
	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	args := []string{
		p.cfg.Record,
		ip,
		string(owner),
		strconv.FormatInt(expiresAt, 10),
		strconv.Itoa(p.cfg.TTL),
		p.cfg.Zone,
	}

	cmd := exec.CommandContext(ctx, p.setScript, args...)
	cmd.Env = append(os.Environ(),
		"DNS_RECORD="+p.cfg.Record,
		"DNS_IP="+ip,
		"DNS_OWNER="+string(owner),
		"DNS_EXPIRY="+strconv.FormatInt(expiresAt, 10),
		"DNS_TTL="+strconv.Itoa(p.cfg.TTL),
		"DNS_ZONE="+p.cfg.Zone,
		"DNS_SERVER="+p.cfg.Server,
	)

	out, err := cmd.CombinedOutput()
	if err != nil {
		return dnsprovider.NewTransientError(dnsprovider.NameScript,
			errors.Wrapf(err, "set script failed: %s", bytes.TrimSpace(out)))
	}
	return nil
}

// scriptRecords is the JSON shape the read script must print on stdout.
type scriptRecords struct {
	A   *string `json:"A"`
	TXT *string `json:"TXT"`
}

// GetRecords invokes the read script with argv (record zone) and parses
// its single line of JSON. The read script exits 0 even when records are
// absent, emitting null values.
func (p *Provider) GetRecords(ctx context.Context) (dnsprovider.Records, error) {
	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.getScript, p.cfg.Record, p.cfg.Zone)
	cmd.Env = append(os.Environ(),
		"DNS_RECORD="+p.cfg.Record,
		"DNS_ZONE="+p.cfg.Zone,
		"DNS_SERVER="+p.cfg.Server,
	)

	out, err := cmd.Output()
	if err != nil {
		return dnsprovider.Records{}, dnsprovider.NewTransientError(dnsprovider.NameScript,
			errors.Wrap(err, "get script failed"))
	}

	var rec scriptRecords
	if err := json.Unmarshal(bytes.TrimSpace(out), &rec); err != nil {
		return dnsprovider.Records{}, fmt.Errorf("get script: invalid JSON output: %w", err)
	}
	return dnsprovider.Records{A: rec.A, TXT: rec.TXT}, nil
}

func init() {
	dnsprovider.Register(dnsprovider.NameScript, func(_ context.Context, cfg dnsprovider.Config, creds map[string]string) (dnsprovider.Provider, error) {
		set, get := creds["set_script"], creds["get_script"]
		if set == "" || get == "" {
			return nil, fmt.Errorf("script provider: both set_script and get_script are required")
		}
		return New(cfg, set, get), nil
	})
}
