// Package follower implements the ownership follower (component E): a
// poll loop that resolves the watched DNS name, edge-triggers a
// workload side-effect when ownership changes, and re-activates on
// crash recovery. Grounded on original_source/otel_watcher.py's main
// loop, generalized over the three side-effect adapters in
// internal/follower/sideeffect.
package follower

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mikempw/dnsfailover/internal/follower/sideeffect"
	"github.com/mikempw/dnsfailover/internal/jitter"
	"github.com/mikempw/dnsfailover/internal/metrics"
)

// pollVariance spreads concurrent followers' DNS lookups across the
// interval instead of all firing in lockstep.
const pollVariance = 0.1

// IPResolver is the DNS-lookup seam, satisfied by *Resolver and by test
// fakes.
type IPResolver interface {
	Lookup(ctx context.Context, name string) (string, error)
}

// Follower drives a single side-effect based on whether the configured
// DNS record currently resolves to this site's IP.
type Follower struct {
	Resolver  IPResolver
	Effect    sideeffect.Effect
	Log       *zap.SugaredLogger
	Record    string
	MyIP      string
	StateFile string
	SiteLabel string

	lastState *bool // nil until the first successful resolution
}

func New(resolver IPResolver, effect sideeffect.Effect, log *zap.SugaredLogger, record, myIP, stateFile, siteLabel string) *Follower {
	f := &Follower{
		Resolver:  resolver,
		Effect:    effect,
		Log:       log,
		Record:    record,
		MyIP:      myIP,
		StateFile: stateFile,
		SiteLabel: siteLabel,
	}
	if active, ok := loadState(stateFile); ok {
		f.lastState = &active
	}
	return f
}

// Tick runs one poll cycle: spec.md §4.E steps 1-5.
func (f *Follower) Tick(ctx context.Context) {
	resolved, err := f.Resolver.Lookup(ctx, f.Record)
	if err != nil {
		f.Log.Warnw("DNS lookup failed, preserving last state", "error", err)
		return
	}

	shouldBeActive := resolved == f.MyIP

	if f.lastState == nil {
		// First observation with no persisted state: establish a
		// baseline rather than firing a side effect for a transition
		// that never actually happened. The crash-recovery check below
		// still re-activates if we should be active but aren't.
		f.lastState = &shouldBeActive
		if err := saveState(f.StateFile, shouldBeActive); err != nil {
			f.Log.Warnw("failed to persist follower state", "error", err)
		}
	} else if *f.lastState != shouldBeActive {
		f.transition(ctx, shouldBeActive)
	}

	if shouldBeActive && !f.Effect.Running(ctx) {
		f.Log.Warnw("managed workload not running while active, re-activating")
		if err := f.Effect.Activate(ctx); err != nil {
			f.Log.Errorw("re-activate failed", "error", err)
		}
	}

	f.recordMetric(shouldBeActive)
}

func (f *Follower) transition(ctx context.Context, shouldBeActive bool) {
	if shouldBeActive {
		f.Log.Infow("DNS now points to us, activating", "record", f.Record)
		if err := f.Effect.Activate(ctx); err != nil {
			f.Log.Errorw("activate failed", "error", err)
			return
		}
		metrics.FollowerSideEffectTransitions.WithLabelValues(f.SiteLabel, "activate").Inc()
	} else {
		f.Log.Infow("DNS points elsewhere, deactivating", "record", f.Record)
		if err := f.Effect.Deactivate(ctx); err != nil {
			f.Log.Errorw("deactivate failed", "error", err)
			return
		}
		metrics.FollowerSideEffectTransitions.WithLabelValues(f.SiteLabel, "deactivate").Inc()
	}

	f.lastState = &shouldBeActive
	if err := saveState(f.StateFile, shouldBeActive); err != nil {
		f.Log.Warnw("failed to persist follower state", "error", err)
	}
}

func (f *Follower) recordMetric(active bool) {
	v := 0.0
	if active {
		v = 1
	}
	metrics.FollowerActive.WithLabelValues(f.SiteLabel).Set(v)
}

// Run polls every interval until ctx is cancelled.
func (f *Follower) Run(ctx context.Context, interval time.Duration) {
	f.Log.Infow("starting ownership follower", "record", f.Record, "my_ip", f.MyIP, "interval", interval)
	for {
		f.Tick(ctx)
		timer := time.NewTimer(jitter.Duration(interval, pollVariance))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
