/*
Copyright 2024.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package dnsprovider defines the two-operation adapter every DNS backend
// implements, and the closed set of recognised provider variants.
package dnsprovider

import (
	"context"
	"fmt"

	"github.com/mikempw/dnsfailover/internal/lease"
)

// Name identifies a registered provider implementation.
type Name string

const (
	NameFile   Name = "file"
	NameScript Name = "script"
	NameAWS    Name = "aws"
	NameAzure  Name = "azure"
	NameGoogle Name = "google"
)

// Records is the pair this design treats as one coordination unit: the A
// record the world resolves, and the TXT record carrying the lease. A nil
// pointer on either field means the record does not currently exist.
type Records struct {
	A   *string
	TXT *string
}

// Lease decodes the TXT member of Records via the lease codec. Absent TXT
// decodes the same way an empty string does (owner=null, exp=0).
func (r Records) Lease() lease.Lease {
	if r.TXT == nil {
		return lease.Parse("")
	}
	return lease.Parse(*r.TXT)
}

// Provider is the adapter every DNS backend variant implements. Both
// operations are total: SetRecords must not fail on "already exists", and
// GetRecords returns nil fields rather than erroring on "not found". A
// TransientError return from either method tells the caller (the failover
// controller) that it owns the outer retry schedule; providers must not
// retry internally beyond a short bounded budget of their own.
type Provider interface {
	// SetRecords upserts the A and TXT records at the configured name
	// with the configured TTL. The two records are not required to
	// commit as a single atomic transaction.
	SetRecords(ctx context.Context, ip string, owner lease.Owner, expiresAt int64) error

	// GetRecords returns the last durably published values, or nil
	// fields for records that do not exist. Implementations may return
	// a cached value no staler than the configured DNS TTL.
	GetRecords(ctx context.Context) (Records, error)

	Name() Name
}

// TransientError wraps a failure the controller should retry on its next
// tick rather than treat as fatal: an unreachable upstream API, a
// timeout, a 5xx. See §7 of the design's error taxonomy.
type TransientError struct {
	Provider Name
	Err      error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s provider: transient error: %v", e.Provider, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

func NewTransientError(name Name, err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Provider: name, Err: err}
}

// Config is the subset of §6 DNS configuration every provider variant
// needs to resolve a single (A, TXT) record pair.
type Config struct {
	Record string // FQDN to manage, e.g. syslog.example.com
	Zone   string // zone name/ID, provider-specific meaning
	TTL    int    // seconds, applied to both A and TXT
	Server string // optional DNS server override, used by some variants
}
