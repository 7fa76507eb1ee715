// Package lease implements the coordination primitive shared by the
// failover controller, the ownership follower and the parity reconciler:
// the (owner, expires_at) tuple carried in the authoritative TXT record.
package lease

import (
	"fmt"
	"strconv"
	"strings"
)

// Owner identifies which site a Lease currently names. The zero value,
// Unknown, is what a malformed or absent TXT record decodes to.
type Owner string

const (
	Unknown Owner = ""
	Primary Owner = "primary"
	DR      Owner = "dr"
)

// Lease is the decoded form of the TXT record co-located with the
// authoritative A record. ExpiresAt is a unix-seconds timestamp.
type Lease struct {
	Owner     Owner
	ExpiresAt int64
}

// Expired reports whether the lease has expired as of now (unix seconds).
func (l Lease) Expired(now int64) bool {
	return l.ExpiresAt < now
}

// Encode renders the lease in the wire format "owner=<role> exp=<unix>".
// It is the inverse of Parse.
func Encode(owner Owner, expiresAt int64) string {
	return fmt.Sprintf("owner=%s exp=%d", owner, expiresAt)
}

// Parse decodes the TXT token. It is total: any input, including the
// empty string or garbage, decodes to a Lease rather than erroring, per
// the logic-error policy in the design ("malformed lease TXT" is treated
// as owner=null, exp=0, which forces a DR reader to prefer waiting).
// Unknown keys are ignored; a missing or unparsable exp defaults to 0.
func Parse(txt string) Lease {
	var l Lease
	for _, tok := range strings.Fields(txt) {
		k, v, ok := strings.Cut(tok, "=")
		if !ok {
			continue
		}
		switch k {
		case "owner":
			switch Owner(v) {
			case Primary, DR:
				l.Owner = Owner(v)
			default:
				l.Owner = Unknown
			}
		case "exp":
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				l.ExpiresAt = n
			}
		}
	}
	return l
}
