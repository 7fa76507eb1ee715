// Package controller implements the failover controller (component D):
// the primary heartbeat loop, the DR watch/promote state machine, and the
// one-shot administrative operations (init/promote/failback/show).
// Grounded on original_source/dns_failover.py's heartbeat_primary,
// heartbeat_dr, init_dns, promote_to_dr, failback_to_primary and
// show_dns, and on the select{<-time.After; <-ctx.Done()} loop shape used
// throughout hashicorp-consul-k8s/subcommand/consul-sidecar/command.go.
package controller

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mikempw/dnsfailover/internal/dnsprovider"
	"github.com/mikempw/dnsfailover/internal/jitter"
	"github.com/mikempw/dnsfailover/internal/lease"
	"github.com/mikempw/dnsfailover/internal/metrics"
)

// pollVariance spreads concurrent controllers' DNS reads/writes across
// the interval instead of all firing in lockstep.
const pollVariance = 0.05

// HealthProbe is satisfied by both healthprobe.TCPProbe and
// healthprobe.ProgressProbe.
type HealthProbe interface {
	Check(ctx context.Context) bool
}

// Controller drives one site's half of the failover protocol.
type Controller struct {
	Provider dnsprovider.Provider
	Log      *zap.SugaredLogger

	PrimaryIP string
	DRIP      string
	LeaseTTL  time.Duration

	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
}

func New(provider dnsprovider.Provider, log *zap.SugaredLogger, primaryIP, drIP string, leaseTTL time.Duration) *Controller {
	return &Controller{
		Provider:  provider,
		Log:       log,
		PrimaryIP: primaryIP,
		DRIP:      drIP,
		LeaseTTL:  leaseTTL,
		Now:       time.Now,
	}
}

func (c *Controller) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Controller) write(ctx context.Context, ip string, owner lease.Owner) error {
	exp := c.now().Add(c.LeaseTTL).Unix()
	err := c.Provider.SetRecords(ctx, ip, owner, exp)
	outcome := "success"
	if err != nil {
		outcome = "transient_error"
	}
	metrics.LeaseWrites.WithLabelValues(string(c.Provider.Name()), outcome).Inc()
	if err != nil {
		return errors.Wrap(err, "set records")
	}
	return nil
}

func (c *Controller) read(ctx context.Context) (lease.Lease, error) {
	recs, err := c.Provider.GetRecords(ctx)
	outcome := "success"
	if err != nil {
		outcome = "transient_error"
	}
	metrics.LeaseReads.WithLabelValues(string(c.Provider.Name()), outcome).Inc()
	if err != nil {
		return lease.Lease{}, errors.Wrap(err, "get records")
	}
	return recs.Lease(), nil
}

// Init performs the one-shot `init` administrative command: write
// (primary_ip, "primary", now+L).
func (c *Controller) Init(ctx context.Context) error {
	if err := c.write(ctx, c.PrimaryIP, lease.Primary); err != nil {
		return err
	}
	c.Log.Infow("initialized DNS lease", "a", c.PrimaryIP, "owner", lease.Primary)
	return nil
}

// Promote performs the one-shot `promote` administrative command.
func (c *Controller) Promote(ctx context.Context) error {
	if err := c.write(ctx, c.DRIP, lease.DR); err != nil {
		return err
	}
	c.Log.Infow("promoted DR to active", "a", c.DRIP, "owner", lease.DR)
	return nil
}

// Failback performs the one-shot `failback` administrative command.
func (c *Controller) Failback(ctx context.Context) error {
	if err := c.write(ctx, c.PrimaryIP, lease.Primary); err != nil {
		return err
	}
	c.Log.Infow("restored primary as active", "a", c.PrimaryIP, "owner", lease.Primary)
	return nil
}

// ShowResult is the structured view `show` emits, matching
// original_source/dns_failover.py's show_dns JSON shape.
type ShowResult struct {
	Record        string `json:"record"`
	A             string `json:"A"`
	Owner         string `json:"owner"`
	ExpiresAt     int64  `json:"expires_at"`
	TimeRemaining *int64 `json:"time_remaining"`
}

// Show performs the one-shot `show` administrative command.
func (c *Controller) Show(ctx context.Context, record string) (ShowResult, error) {
	recs, err := c.Provider.GetRecords(ctx)
	if err != nil {
		return ShowResult{}, errors.Wrap(err, "get records")
	}
	l := recs.Lease()

	result := ShowResult{Record: record, Owner: string(l.Owner), ExpiresAt: l.ExpiresAt}
	if recs.A != nil {
		result.A = *recs.A
	}
	if l.ExpiresAt != 0 {
		remaining := l.ExpiresAt - c.now().Unix()
		result.TimeRemaining = &remaining
	}
	return result, nil
}

// sleepOrDone blocks for d or until ctx is cancelled, reporting which
// happened first.
func sleepOrDone(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return true
	case <-timer.C:
		return false
	}
}

// RunPrimary renews the lease every updateInterval until ctx is
// cancelled. A write failure is logged and the loop continues — there is
// no local state to reconcile, the record itself is the state.
func (c *Controller) RunPrimary(ctx context.Context, updateInterval time.Duration) {
	c.Log.Infow("starting primary heartbeat", "update_interval", updateInterval, "lease_ttl", c.LeaseTTL)
	metrics.ControllerState.WithLabelValues(string(lease.Primary), "ACTIVE").Set(1)

	for {
		if err := c.write(ctx, c.PrimaryIP, lease.Primary); err != nil {
			c.Log.Errorw("failed to renew lease", "error", err)
		} else {
			c.Log.Debugw("lease renewed")
		}
		if sleepOrDone(ctx, jitter.Duration(updateInterval, pollVariance)) {
			return
		}
	}
}

// DRState names the states of the §4.D state machine.
type DRState string

const (
	StateWatching     DRState = "WATCHING"
	StateWaitingLease DRState = "WAITING_LEASE"
	StateActive       DRState = "ACTIVE"
)

// RunDR implements the DR loop and its WATCHING/WAITING_LEASE/ACTIVE
// state machine until ctx is cancelled.
func (c *Controller) RunDR(ctx context.Context, probe HealthProbe, updateInterval time.Duration, failThreshold int) {
	c.Log.Infow("starting DR heartbeat", "update_interval", updateInterval, "fail_threshold", failThreshold)

	state := StateWatching
	consecutiveFailures := 0

	for {
		healthy := probe.Check(ctx)
		metrics.ProbeHealthy.WithLabelValues("dr_primary_health").Set(boolToFloat(healthy))

		if healthy {
			if consecutiveFailures > 0 {
				c.Log.Infow("primary healthy again")
			}
			consecutiveFailures = 0
			if state != StateActive {
				state = StateWatching
			}
		} else {
			consecutiveFailures++
			c.Log.Warnw("primary health check failed", "consecutive_failures", consecutiveFailures, "threshold", failThreshold)

			if consecutiveFailures >= failThreshold {
				state = c.tick(ctx, state)
			}
		}

		c.recordState(state)
		if sleepOrDone(ctx, jitter.Duration(updateInterval, pollVariance)) {
			return
		}
	}
}

// tick executes one DR decision per spec.md §4.D step 3, returning the
// resulting state.
func (c *Controller) tick(ctx context.Context, state DRState) DRState {
	l, err := c.read(ctx)
	if err != nil {
		c.Log.Warnw("could not read lease, retrying next tick", "error", err)
		return state
	}

	switch {
	case l.Owner == lease.DR:
		if err := c.write(ctx, c.DRIP, lease.DR); err != nil {
			c.Log.Errorw("failed to renew DR lease", "error", err)
			return state
		}
		c.Log.Infow("DR lease renewed")
		return StateActive

	case l.Expired(c.now().Unix()):
		c.Log.Warnw("primary lease expired, promoting DR")
		if err := c.write(ctx, c.DRIP, lease.DR); err != nil {
			c.Log.Errorw("failed to promote DR", "error", err)
			return state
		}
		c.Log.Infow("FAILOVER: promoted DR to active", "a", c.DRIP)
		return StateActive

	default:
		remaining := l.ExpiresAt - c.now().Unix()
		c.Log.Warnw("primary unreachable but lease still valid, waiting", "seconds_remaining", remaining)
		return StateWaitingLease
	}
}

func (c *Controller) recordState(state DRState) {
	for _, s := range []DRState{StateWatching, StateWaitingLease, StateActive} {
		v := 0.0
		if s == state {
			v = 1
		}
		metrics.ControllerState.WithLabelValues(string(lease.DR), string(s)).Set(v)
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
