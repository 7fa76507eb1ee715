// Package file implements a local JSON file DNSProvider, used for tests
// and for operators who want a dry-run target before wiring a real
// backend. An in-process, factory-registered provider variant in the
// same shape as the cloud providers.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/mikempw/dnsfailover/internal/dnsprovider"
	"github.com/mikempw/dnsfailover/internal/lease"
)

// record is the on-disk shape of the zone file.
type record struct {
	A   string `json:"A"`
	TXT string `json:"TXT"`
}

// Provider stores the (A, TXT) pair as a single JSON document on disk,
// rewritten atomically (write-tmp + rename) on every update.
type Provider struct {
	path string
	mu   sync.Mutex
}

var _ dnsprovider.Provider = (*Provider)(nil)

// New returns a file-backed provider rooted at path.
func New(path string) *Provider {
	return &Provider{path: path}
}

func (p *Provider) Name() dnsprovider.Name { return dnsprovider.NameFile }

func (p *Provider) SetRecords(_ context.Context, ip string, owner lease.Owner, expiresAt int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	rec := record{A: ip, TXT: lease.Encode(owner, expiresAt)}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("file provider: marshal: %w", err)
	}

	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("file provider: mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".zone-*.json.tmp")
	if err != nil {
		return fmt.Errorf("file provider: tempfile: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("file provider: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("file provider: close: %w", err)
	}
	if err := os.Rename(tmpName, p.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("file provider: rename: %w", err)
	}
	return nil
}

func (p *Provider) GetRecords(_ context.Context) (dnsprovider.Records, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := os.ReadFile(p.path)
	if os.IsNotExist(err) {
		return dnsprovider.Records{}, nil
	}
	if err != nil {
		return dnsprovider.Records{}, fmt.Errorf("file provider: read: %w", err)
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		// A partially-written or foreign file is treated the same as
		// "no records" rather than a fatal error — the next successful
		// write will self-heal it.
		return dnsprovider.Records{}, nil
	}

	var recs dnsprovider.Records
	if rec.A != "" {
		a := rec.A
		recs.A = &a
	}
	if rec.TXT != "" {
		txt := rec.TXT
		recs.TXT = &txt
	}
	return recs, nil
}

func init() {
	dnsprovider.Register(dnsprovider.NameFile, func(_ context.Context, cfg dnsprovider.Config, creds map[string]string) (dnsprovider.Provider, error) {
		path := creds["path"]
		if path == "" {
			path = "/state/zone.json"
		}
		return New(path), nil
	})
}
