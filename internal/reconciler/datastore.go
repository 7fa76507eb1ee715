// Package reconciler implements the parity reconciler (component F) and
// its durable state file (component G). Grounded on
// original_source/victoriametrics/vm_sync.py's run_sync_check (the
// count-bucketed gap-detection path) and original_source/ch-sync's
// exact-row partition sync, generalized behind one Datastore interface
// so the cycle logic in reconciler.go is shared by both unit kinds.
package reconciler

import "context"

// UnitKind selects which gap predicate and repair-batching strategy
// applies to a Datastore's units, per spec.md §4.F step 4.
type UnitKind int

const (
	// ExactRow units (e.g. table partitions) have a gap whenever the
	// local row count is strictly less than the remote's.
	ExactRow UnitKind = iota
	// CountBucketed units (e.g. metric time buckets) have a gap when the
	// local/remote ratio falls below a configured threshold.
	CountBucketed
)

// Datastore is the pair of operations the reconciler needs from a
// concrete backend (ClickHouse partitions, VictoriaMetrics sample
// buckets, or any future unit type): enumerate units with their counts,
// and idempotently repair one unit by copying it from source to dest.
type Datastore interface {
	// Ping reports whether the datastore is reachable and healthy.
	Ping(ctx context.Context) error

	// Kind reports which gap predicate this datastore's units use.
	Kind() UnitKind

	// BucketStep is the bucket width in seconds for CountBucketed units;
	// ignored for ExactRow datastores. Used to merge consecutive gap
	// timestamps into contiguous repair ranges.
	BucketStep() int

	// Enumerate lists the current units on the named site ("local" or
	// "remote") as unit_key -> count.
	Enumerate(ctx context.Context, site string) (map[string]float64, error)

	// Repair idempotently replaces dest's version of unitKey with
	// source's. source and dest are "local"/"remote".
	Repair(ctx context.Context, source, dest, unitKey string) error

	// FetchDDL returns the definition needed to create a unit that
	// exists on the remote but not locally. ok is false when this
	// datastore does not support auto-create (e.g. time-bucketed
	// metrics, which have no DDL to create).
	FetchDDL(ctx context.Context, unitKey string) (ddl string, ok bool, err error)

	// Create materializes a unit locally from a DDL fetched via
	// FetchDDL. Only called when auto-create is enabled and FetchDDL
	// returned ok.
	Create(ctx context.Context, ddl string) error
}
