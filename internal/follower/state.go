package follower

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// persistedState is the on-disk snapshot of last_state, written so a
// restarted follower does not re-fire an activate/deactivate edge it
// already handled before a crash. Grounded on the write-tmp+rename
// idiom used by internal/dnsprovider/file.Provider.
type persistedState struct {
	Active bool `json:"active"`
}

func loadState(path string) (active bool, ok bool) {
	if path == "" {
		return false, false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return false, false
	}
	var s persistedState
	if err := json.Unmarshal(data, &s); err != nil {
		return false, false
	}
	return s.Active, true
}

func saveState(path string, active bool) error {
	if path == "" {
		return nil
	}
	data, err := json.Marshal(persistedState{Active: active})
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".follower-state-*.json.tmp")
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
