// Package config loads the environment-variable configuration for each
// of the three binaries, grounded on cldmnky-oooi's cmd/root.go viper
// wiring (AutomaticEnv, SetDefault) and on original_source/dns_failover.py's
// and victoriametrics/vm_sync.py's Config.from_env/Config.validate, the
// two places the env-var surface this package mirrors was actually
// defined. Config loading/validation is out of scope per spec.md §1; this
// is the minimal plumbing to populate the structs spec.md §6 describes,
// not a general framework.
package config

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"

	"github.com/mikempw/dnsfailover/internal/dnsprovider"
	"github.com/mikempw/dnsfailover/internal/lease"
)

// Error wraps a non-empty set of validation failures. Classified as
// *Config* in spec.md §7's error taxonomy: fatal at startup.
type Error struct {
	*multierror.Error
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	return v
}

func parseRole(v *viper.Viper, def string) lease.Owner {
	switch v.GetString("ROLE") {
	case "primary":
		return lease.Primary
	case "dr":
		return lease.DR
	default:
		if def == "dr" {
			return lease.DR
		}
		return lease.Primary
	}
}

func requireNonEmpty(errs *multierror.Error, value, name string) *multierror.Error {
	if value == "" {
		return multierror.Append(errs, fmt.Errorf("%s is required", name))
	}
	return errs
}
