package reconciler

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mikempw/dnsfailover/internal/lease"
	"github.com/mikempw/dnsfailover/internal/logging"
)

type fakeDatastore struct {
	mu      sync.Mutex
	kind    UnitKind
	step    int
	local   map[string]float64
	remote  map[string]float64
	pingErr error
	repairs []string
}

func (f *fakeDatastore) Ping(context.Context) error      { return f.pingErr }
func (f *fakeDatastore) Kind() UnitKind                  { return f.kind }
func (f *fakeDatastore) BucketStep() int                 { return f.step }
func (f *fakeDatastore) Enumerate(_ context.Context, site string) (map[string]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	src := f.local
	if site == "remote" {
		src = f.remote
	}
	out := make(map[string]float64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out, nil
}

func (f *fakeDatastore) Repair(_ context.Context, source, dest, unitKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.repairs = append(f.repairs, unitKey)
	if source != "remote" || dest != "local" {
		return nil
	}

	if f.kind == CountBucketed {
		start, end, ok := parseRangeKey(unitKey)
		if !ok {
			return nil
		}
		for key, v := range f.remote {
			ts, ok := parseUnitTimestamp(key)
			if ok && ts >= start && ts < end {
				f.local[key] = v
			}
		}
		return nil
	}

	if v, ok := f.remote[unitKey]; ok {
		f.local[unitKey] = v
	}
	return nil
}

func parseRangeKey(key string) (int64, int64, bool) {
	idx := strings.LastIndex(key, "-")
	if idx < 0 {
		return 0, 0, false
	}
	start, err1 := strconv.ParseInt(key[:idx], 10, 64)
	end, err2 := strconv.ParseInt(key[idx+1:], 10, 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return start, end, true
}

func (f *fakeDatastore) FetchDDL(context.Context, string) (string, bool, error) {
	return "", false, nil
}
func (f *fakeDatastore) Create(context.Context, string) error { return nil }

type fakeResolver struct{ ip string }

func (r *fakeResolver) Lookup(context.Context, string) (string, error) { return r.ip, nil }

type fakeErrResolver struct{}

func (fakeErrResolver) Lookup(context.Context, string) (string, error) {
	return "", errors.New("dns down")
}

type fakeSender struct {
	mu     sync.Mutex
	events []Event
}

func (f *fakeSender) Send(_ context.Context, event Event, _ SyncState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeSender) count(e Event) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, ev := range f.events {
		if ev == e {
			n++
		}
	}
	return n
}

func baseConfig() Config {
	return Config{
		Role:                  lease.Primary,
		DNSRecord:             "dns.example.local",
		PrimaryIP:             "10.10.10.10",
		DRIP:                  "10.20.20.10",
		GapThreshold:          0.9,
		ChunkSize:             300,
		FailbackCleanChecks:   3,
		RepairConcurrency:     2,
		NotifyOnGap:           true,
		NotifyOnSync:          true,
		NotifyOnFailbackReady: true,
		NotifyOnNewUnit:       true,
	}
}

// Scenario S5: partition gap repaired in one cycle, clean streak resets
// then grows on the following clean cycle.
func TestRunCycleRepairsExactRowGap(t *testing.T) {
	ds := &fakeDatastore{
		kind:   ExactRow,
		local:  map[string]float64{"db.t:20240102": 600},
		remote: map[string]float64{"db.t:20240102": 1000},
	}
	sender := &fakeSender{}
	r := New(ds, &fakeResolver{ip: "10.20.20.10"}, sender, logging.New(false), baseConfig(),
		filepath.Join(t.TempDir(), "state.json"))

	state := r.RunCycle(context.Background(), SyncState{})
	require.Equal(t, 0, state.ConsecutiveClean)
	require.Equal(t, 1, state.UnitsWithGap)
	require.Equal(t, 1, state.UnitsSynced)
	require.Contains(t, ds.repairs, "db.t:20240102")
	require.Equal(t, float64(1000), ds.local["db.t:20240102"])
	require.Equal(t, 1, sender.count(EventGapDetected))
	require.Equal(t, 1, sender.count(EventSyncComplete))

	state = r.RunCycle(context.Background(), state)
	require.Equal(t, 1, state.ConsecutiveClean)
	require.Equal(t, 0, state.UnitsWithGap)
}

// Scenario S7: failback readiness flips true after the configured clean
// run, fires exactly one notification, then flips back false on a gap.
func TestRunCycleFailbackReadinessOneShot(t *testing.T) {
	ds := &fakeDatastore{
		kind:   ExactRow,
		local:  map[string]float64{"db.t:1": 100},
		remote: map[string]float64{"db.t:1": 100},
	}
	sender := &fakeSender{}
	r := New(ds, &fakeResolver{ip: "10.20.20.10"}, sender, logging.New(false), baseConfig(),
		filepath.Join(t.TempDir(), "state.json"))

	state := SyncState{}
	for i := 0; i < 3; i++ {
		state = r.RunCycle(context.Background(), state)
	}
	require.True(t, state.FailbackReady)
	require.Equal(t, 1, sender.count(EventFailbackReady))

	// A further clean cycle must not re-fire the notification.
	state = r.RunCycle(context.Background(), state)
	require.True(t, state.FailbackReady)
	require.Equal(t, 1, sender.count(EventFailbackReady))

	// Introduce a gap: readiness must flip back to false.
	ds.mu.Lock()
	ds.local["db.t:1"] = 0
	ds.mu.Unlock()
	state = r.RunCycle(context.Background(), state)
	require.False(t, state.FailbackReady)
}

// Property 6: failback_ready requires the remote site to be active
// throughout — a cycle where we are the active site must not accumulate
// toward, or preserve, readiness.
func TestRunCycleWeAreActiveResetsCleanStreak(t *testing.T) {
	ds := &fakeDatastore{kind: ExactRow, local: map[string]float64{}, remote: map[string]float64{}}
	sender := &fakeSender{}
	r := New(ds, &fakeResolver{ip: "10.10.10.10"}, sender, logging.New(false), baseConfig(),
		filepath.Join(t.TempDir(), "state.json"))

	state := r.RunCycle(context.Background(), SyncState{ConsecutiveClean: 5, FailbackReady: true})
	require.Equal(t, 0, state.ConsecutiveClean)
	require.False(t, state.FailbackReady)
}

func TestRunCycleSkipsOnUnhealthyDatastore(t *testing.T) {
	ds := &fakeDatastore{kind: ExactRow, pingErr: errors.New("unreachable")}
	sender := &fakeSender{}
	r := New(ds, &fakeResolver{ip: "10.20.20.10"}, sender, logging.New(false), baseConfig(),
		filepath.Join(t.TempDir(), "state.json"))

	state := r.RunCycle(context.Background(), SyncState{})
	require.NotEmpty(t, state.LastError)
	require.Empty(t, sender.events)
}

func TestRunCycleSkipsOnDNSFailure(t *testing.T) {
	ds := &fakeDatastore{kind: ExactRow, local: map[string]float64{}, remote: map[string]float64{}}
	sender := &fakeSender{}
	r := New(ds, fakeErrResolver{}, sender, logging.New(false), baseConfig(),
		filepath.Join(t.TempDir(), "state.json"))

	state := r.RunCycle(context.Background(), SyncState{})
	require.Equal(t, "DNS lookup failed", state.LastError)
}

// Property 7 at the cycle level: once a repair has brought a unit to
// parity, the next cycle detects no gap and issues no further repair.
func TestRepairIsIdempotent(t *testing.T) {
	ds := &fakeDatastore{
		kind:   CountBucketed,
		step:   300,
		local:  map[string]float64{"100": 50, "400": 60},
		remote: map[string]float64{"100": 100, "400": 60},
	}
	sender := &fakeSender{}
	r := New(ds, &fakeResolver{ip: "10.20.20.10"}, sender, logging.New(false), baseConfig(),
		filepath.Join(t.TempDir(), "state.json"))

	state := r.RunCycle(context.Background(), SyncState{})
	require.Equal(t, 1, state.UnitsWithGap)

	before := len(ds.repairs)
	state2 := r.RunCycle(context.Background(), state)
	require.Equal(t, 0, state2.UnitsWithGap)
	require.Equal(t, before, len(ds.repairs))
}

func TestExcludeUnitsFiltersByGlob(t *testing.T) {
	units := map[string]float64{"db.sessions:1": 10, "db.audit_log:1": 10}
	filtered := excludeUnits(units, []string{"db.audit_log:*"})
	require.Contains(t, filtered, "db.sessions:1")
	require.NotContains(t, filtered, "db.audit_log:1")
}
