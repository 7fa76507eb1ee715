// Package sideeffect implements the three workload-activation adapters
// the ownership follower drives: a supervised local subprocess, a named
// container, and a scaled deployment. Grounded on
// original_source/otel_watcher.py (subprocess), otel_watcher_docker.py
// (container) and otel_watcher_k8s.py (deployment scale), all three of
// which differ only in this one seam.
package sideeffect

import "context"

// Effect is the contract the ownership follower drives: Activate starts
// the managed workload, Deactivate stops it, and Running reports whether
// it is currently up (used for the crash-recovery re-activate check).
type Effect interface {
	Activate(ctx context.Context) error
	Deactivate(ctx context.Context) error
	Running(ctx context.Context) bool
}
