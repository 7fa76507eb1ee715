// Package reconciler implements the seven-step cycle in spec.md §4.F:
// health check, direction resolution via the DNS lease, unit discovery,
// gap detection, repair, clean-streak accounting, and state persistence.
package reconciler

import (
	"context"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mikempw/dnsfailover/internal/lease"
	"github.com/mikempw/dnsfailover/internal/metrics"
)

// IPResolver is the DNS-lookup seam used to determine the active site.
// Satisfied structurally by *follower.Resolver.
type IPResolver interface {
	Lookup(ctx context.Context, name string) (string, error)
}

// Config is the subset of ReconcilerConfig the cycle logic needs,
// decoupled from internal/config to keep this package importable without
// its viper dependency.
type Config struct {
	Role      lease.Owner
	DNSRecord string
	PrimaryIP string
	DRIP      string

	GapThreshold        float64
	ChunkSize           int64
	FailbackCleanChecks int
	ExcludeUnitPatterns []string
	AutoCreate          bool
	RepairConcurrency   int

	NotifyOnGap           bool
	NotifyOnSync          bool
	NotifyOnFailbackReady bool
	NotifyOnNewUnit       bool
}

// Reconciler drives one parity-checking cycle at a time against a
// Datastore, persisting SyncState to StateFile between cycles.
type Reconciler struct {
	Datastore Datastore
	Resolver  IPResolver
	Notifier  EventSender
	Log       *zap.SugaredLogger
	Config    Config
	StateFile string

	Now func() time.Time
}

// EventSender is the notification seam, satisfied by *Notifier and by
// test fakes.
type EventSender interface {
	Send(ctx context.Context, event Event, state SyncState)
}

func New(ds Datastore, resolver IPResolver, notifier EventSender, log *zap.SugaredLogger, cfg Config, stateFile string) *Reconciler {
	return &Reconciler{
		Datastore: ds,
		Resolver:  resolver,
		Notifier:  notifier,
		Log:       log,
		Config:    cfg,
		StateFile: stateFile,
		Now:       time.Now,
	}
}

func (r *Reconciler) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// LoadState reads the persisted SyncState, defaulting to zero value on a
// missing or corrupt file.
func (r *Reconciler) LoadState() SyncState {
	return loadSyncState(r.StateFile)
}

// RunCycle executes one reconciliation cycle per spec.md §4.F steps 1-7
// and returns the updated state (also persisted to StateFile).
func (r *Reconciler) RunCycle(ctx context.Context, state SyncState) SyncState {
	start := r.now()
	state.LastCheckTS = start.Unix()
	defer func() {
		metrics.ReconcilerCycleSeconds.Observe(time.Since(start).Seconds())
		if err := saveSyncState(r.StateFile, state); err != nil {
			r.Log.Warnw("failed to persist reconciler state", "error", err)
		}
		r.recordFailbackMetric(state)
	}()

	// Step 1: health & direction.
	if err := r.Datastore.Ping(ctx); err != nil {
		r.Log.Warnw("datastore unhealthy, skipping cycle", "error", err)
		state.LastError = err.Error()
		return state
	}

	activeSite, err := r.resolveActiveSite(ctx)
	if err != nil {
		r.Log.Warnw("could not determine active site from DNS", "error", err)
		state.LastError = "DNS lookup failed"
		return state
	}
	state.ActiveSite = activeSite
	state.LastError = ""

	if activeSite == string(r.Config.Role) {
		// We are the source of truth this cycle; the "remote active
		// throughout" precondition for failback readiness is broken, so
		// the clean streak resets rather than accumulates here.
		r.Log.Debugw("we are the active site, nothing to reconcile")
		state.ConsecutiveClean = 0
		state.FailbackReady = false
		state.notifiedFailbackReady = false
		return state
	}

	// Step 2: discover.
	local, err := r.Datastore.Enumerate(ctx, "local")
	if err != nil {
		r.Log.Warnw("failed to enumerate local units", "error", err)
		state.LastError = err.Error()
		return state
	}
	remote, err := r.Datastore.Enumerate(ctx, "remote")
	if err != nil {
		r.Log.Warnw("failed to enumerate remote units", "error", err)
		state.LastError = err.Error()
		return state
	}
	local = excludeUnits(local, r.Config.ExcludeUnitPatterns)
	remote = excludeUnits(remote, r.Config.ExcludeUnitPatterns)

	// Step 3: new-unit handling. Remote ("active") is always the source.
	newUnits := 0
	for key, count := range remote {
		if _, ok := local[key]; ok {
			continue
		}
		if r.Config.AutoCreate {
			if err := r.createUnit(ctx, key); err != nil {
				r.Log.Warnw("failed to auto-create unit", "unit", key, "error", err)
				continue
			}
			local[key] = 0
		} else {
			newUnits++
			if r.Config.NotifyOnNewUnit {
				r.Notifier.Send(ctx, EventNewUnit, state)
			}
		}
	}

	// Step 4: gap detection.
	gapKeys := r.detectGaps(local, remote)
	state.UnitsChecked = len(remote)
	state.UnitsWithGap = len(gapKeys)

	if len(gapKeys) == 0 && newUnits == 0 {
		state.ConsecutiveClean++
		r.Log.Debugw("no gaps detected", "consecutive_clean", state.ConsecutiveClean)
		r.maybeMarkFailbackReady(ctx, &state)
		return state
	}

	// Step 5: repair.
	state.ConsecutiveClean = 0
	state.FailbackReady = false
	state.notifiedFailbackReady = false

	if r.Config.NotifyOnGap && len(gapKeys) > 0 {
		r.Notifier.Send(ctx, EventGapDetected, state)
	}

	repaired := r.repairUnits(ctx, gapKeys)
	state.UnitsSynced = repaired
	state.LastSyncTS = r.now().Unix()

	if r.Config.NotifyOnSync && repaired > 0 {
		r.Notifier.Send(ctx, EventSyncComplete, state)
	}

	return state
}

func (r *Reconciler) resolveActiveSite(ctx context.Context) (string, error) {
	ip, err := r.Resolver.Lookup(ctx, r.Config.DNSRecord)
	if err != nil {
		return "", err
	}
	switch ip {
	case r.Config.PrimaryIP:
		return string(lease.Primary), nil
	case r.Config.DRIP:
		return string(lease.DR), nil
	default:
		return "", errUnexpectedIP(ip)
	}
}

type errUnexpectedIP string

func (e errUnexpectedIP) Error() string { return "unexpected resolved IP: " + string(e) }

func (r *Reconciler) createUnit(ctx context.Context, unitKey string) error {
	ddl, ok, err := r.Datastore.FetchDDL(ctx, unitKey)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	return r.Datastore.Create(ctx, ddl)
}

// detectGaps applies the per-UnitKind gap predicate from spec.md §4.F
// step 4 across the units present on both sides.
func (r *Reconciler) detectGaps(local, remote map[string]float64) []string {
	var gaps []string
	for key, remoteCount := range remote {
		localCount, ok := local[key]
		if !ok {
			continue
		}
		if r.hasGap(localCount, remoteCount) {
			gaps = append(gaps, key)
		}
	}
	return gaps
}

func (r *Reconciler) hasGap(localCount, remoteCount float64) bool {
	switch r.Datastore.Kind() {
	case ExactRow:
		return localCount < remoteCount
	case CountBucketed:
		if remoteCount <= 0 {
			return false
		}
		return localCount/remoteCount < r.Config.GapThreshold
	default:
		return false
	}
}

// repairUnits applies Repair for each gapped unit, merging and chunking
// contiguous timestamp ranges for CountBucketed datastores, and bounding
// concurrency by RepairConcurrency. Returns the count of units repaired.
func (r *Reconciler) repairUnits(ctx context.Context, gapKeys []string) int {
	if r.Datastore.Kind() == CountBucketed {
		return r.repairBucketed(ctx, gapKeys)
	}
	return r.repairExact(ctx, gapKeys)
}

func (r *Reconciler) repairExact(ctx context.Context, gapKeys []string) int {
	sem := make(chan struct{}, concurrencyOrDefault(r.Config.RepairConcurrency))
	var wg sync.WaitGroup
	var mu sync.Mutex
	repaired := 0

	for _, key := range gapKeys {
		wg.Add(1)
		sem <- struct{}{}
		go func(unitKey string) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := r.Datastore.Repair(ctx, "remote", "local", unitKey); err != nil {
				r.Log.Warnw("repair failed", "unit", unitKey, "error", err)
				return
			}
			mu.Lock()
			repaired++
			mu.Unlock()
		}(key)
	}
	wg.Wait()

	metrics.ReconcilerGapsDetected.WithLabelValues("exact_row").Add(float64(len(gapKeys)))
	metrics.ReconcilerUnitsRepaired.WithLabelValues("exact_row").Add(float64(repaired))
	return repaired
}

func (r *Reconciler) repairBucketed(ctx context.Context, gapKeys []string) int {
	var timestamps []int64
	for _, key := range gapKeys {
		if ts, ok := parseUnitTimestamp(key); ok {
			timestamps = append(timestamps, ts)
		}
	}
	step := int64(r.Datastore.BucketStep())
	if step <= 0 {
		step = 300
	}
	ranges := mergeGapTimestamps(timestamps, step)

	repaired := 0
	for _, rng := range ranges {
		for _, chunk := range chunkRange(rng, r.Config.ChunkSize) {
			unitKey := rangeUnitKey(chunk)
			if err := r.Datastore.Repair(ctx, "remote", "local", unitKey); err != nil {
				r.Log.Warnw("repair failed", "range", unitKey, "error", err)
				continue
			}
			repaired++
		}
	}
	metrics.ReconcilerGapsDetected.WithLabelValues("count_bucketed").Add(float64(len(gapKeys)))
	metrics.ReconcilerUnitsRepaired.WithLabelValues("count_bucketed").Add(float64(repaired))
	return repaired
}

// rangeUnitKey renders a repair range as the unit_key a CountBucketed
// Datastore.Repair implementation expects: the start/end unix-second
// boundaries it will re-export from the source and re-import into dest.
func rangeUnitKey(r timeRange) string {
	return strings.Join([]string{strconv.FormatInt(r.Start, 10), strconv.FormatInt(r.End, 10)}, "-")
}

func concurrencyOrDefault(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}

// maybeMarkFailbackReady implements spec.md §4.F step 6's one-shot
// notification: FailbackReady flips true, and the notification fires,
// only the first cycle the threshold is crossed.
func (r *Reconciler) maybeMarkFailbackReady(ctx context.Context, state *SyncState) {
	if state.ConsecutiveClean < r.Config.FailbackCleanChecks {
		return
	}
	state.FailbackReady = true
	if state.notifiedFailbackReady {
		return
	}
	state.notifiedFailbackReady = true
	if r.Config.NotifyOnFailbackReady {
		r.Notifier.Send(ctx, EventFailbackReady, *state)
	}
}

func (r *Reconciler) recordFailbackMetric(state SyncState) {
	v := 0.0
	if state.FailbackReady {
		v = 1
	}
	metrics.ReconcilerFailbackReady.Set(v)
}

// excludeUnits drops any unit key matching one of the configured
// glob-style exclusion patterns.
func excludeUnits(units map[string]float64, patterns []string) map[string]float64 {
	if len(patterns) == 0 {
		return units
	}
	filtered := make(map[string]float64, len(units))
	for key, count := range units {
		excluded := false
		for _, pattern := range patterns {
			if ok, _ := path.Match(pattern, key); ok {
				excluded = true
				break
			}
		}
		if !excluded {
			filtered[key] = count
		}
	}
	return filtered
}
