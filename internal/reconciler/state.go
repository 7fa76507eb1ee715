package reconciler

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// SyncState is the durable per-reconciler record defined in spec.md §3.
// It is loaded at start, mutated in-memory each cycle, and atomically
// rewritten after each cycle; a missing or corrupt file defaults to the
// zero value, mirroring original_source/victoriametrics/vm_sync.py's
// load_state.
type SyncState struct {
	LastCheckTS      int64  `json:"last_check_ts"`
	LastSyncTS       int64  `json:"last_sync_ts"`
	ConsecutiveClean int    `json:"consecutive_clean"`
	FailbackReady    bool   `json:"failback_ready"`
	ActiveSite       string `json:"active_site"`
	UnitsChecked     int    `json:"units_checked"`
	UnitsWithGap     int    `json:"units_with_gap"`
	UnitsSynced      int    `json:"units_synced"`
	RowsSynced       int64  `json:"rows_synced"`
	LastError        string `json:"last_error"`

	// notifiedFailbackReady is not persisted; it tracks whether the
	// one-shot notification has already fired for the current clean run,
	// reset whenever FailbackReady drops back to false.
	notifiedFailbackReady bool
}

func loadSyncState(path string) SyncState {
	data, err := os.ReadFile(path)
	if err != nil {
		return SyncState{}
	}
	var s SyncState
	if err := json.Unmarshal(data, &s); err != nil {
		return SyncState{}
	}
	return s
}

func saveSyncState(path string, s SyncState) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".reconciler-state-*.json.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
