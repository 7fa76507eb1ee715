package config

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"

	"github.com/mikempw/dnsfailover/internal/dnsprovider"
	"github.com/mikempw/dnsfailover/internal/lease"
)

// ControllerConfig configures the failover controller (component D) and
// its administrative subcommands.
type ControllerConfig struct {
	Role lease.Owner

	Provider      dnsprovider.Name
	DNSServer     string
	DNSZone       string
	DNSRecord     string
	DNSTTL        int
	ProviderCreds map[string]string

	PrimaryIP      string
	DRIP           string
	LeaseTTL       int
	UpdateInterval int
	FailThreshold  int

	HealthMode       string // "tcp" or "metrics"
	HealthHost       string
	HealthPort       int
	HealthTimeout    int
	HealthURL        string
	HealthMetric     string
	HealthStaleCount int

	MetricsAddr string
}

// LoadControllerConfig populates a ControllerConfig from the environment,
// with the same defaults as original_source/dns_failover.py's
// Config.from_env.
func LoadControllerConfig() ControllerConfig {
	v := newViper()

	v.SetDefault("DNS_PROVIDER", "file")
	v.SetDefault("DNS_SERVER", "127.0.0.1")
	v.SetDefault("DNS_ZONE", "example.local")
	v.SetDefault("DNS_RECORD", "syslog.ast.example.local")
	v.SetDefault("DNS_TTL", 30)
	v.SetDefault("PRIMARY_IP", "10.10.10.10")
	v.SetDefault("DR_IP", "10.20.20.10")
	v.SetDefault("LEASE_TTL", 60)
	v.SetDefault("UPDATE_INTERVAL", 10)
	v.SetDefault("FAIL_THRESHOLD", 3)
	v.SetDefault("HEALTH_HOST", "10.10.10.10")
	v.SetDefault("HEALTH_PORT", 6514)
	v.SetDefault("HEALTH_TIMEOUT", 2)
	v.SetDefault("HEALTH_MODE", "tcp")
	v.SetDefault("HEALTH_METRIC", "otelcol_receiver_accepted_metric_points")
	v.SetDefault("HEALTH_STALE_COUNT", 3)
	v.SetDefault("ROLE", "primary")
	v.SetDefault("FILE_STATE_PATH", "/state/zone.json")
	v.SetDefault("AWS_REGION", "us-east-1")

	return ControllerConfig{
		Role: parseRole(v, "primary"),

		Provider:  dnsprovider.Name(v.GetString("DNS_PROVIDER")),
		DNSServer: v.GetString("DNS_SERVER"),
		DNSZone:   v.GetString("DNS_ZONE"),
		DNSRecord: v.GetString("DNS_RECORD"),
		DNSTTL:    v.GetInt("DNS_TTL"),
		ProviderCreds: map[string]string{
			"path":                 v.GetString("FILE_STATE_PATH"),
			"set_script":           v.GetString("SCRIPT_SET"),
			"get_script":           v.GetString("SCRIPT_GET"),
			"access_key_id":        v.GetString("AWS_ACCESS_KEY_ID"),
			"secret_access_key":    v.GetString("AWS_SECRET_ACCESS_KEY"),
			"region":               v.GetString("AWS_REGION"),
			"tenant_id":            v.GetString("AZURE_TENANT_ID"),
			"client_id":            v.GetString("AZURE_CLIENT_ID"),
			"client_secret":        v.GetString("AZURE_CLIENT_SECRET"),
			"subscription_id":      v.GetString("AZURE_SUBSCRIPTION_ID"),
			"resource_group":       v.GetString("AZURE_RESOURCE_GROUP"),
			"project":              v.GetString("GCP_PROJECT_ID"),
			"managed_zone":         v.GetString("GCP_MANAGED_ZONE"),
			"service_account_json": v.GetString("GCP_SERVICE_ACCOUNT_JSON"),
		},

		PrimaryIP:      v.GetString("PRIMARY_IP"),
		DRIP:           v.GetString("DR_IP"),
		LeaseTTL:       v.GetInt("LEASE_TTL"),
		UpdateInterval: v.GetInt("UPDATE_INTERVAL"),
		FailThreshold:  v.GetInt("FAIL_THRESHOLD"),

		HealthMode:       v.GetString("HEALTH_MODE"),
		HealthHost:       v.GetString("HEALTH_HOST"),
		HealthPort:       v.GetInt("HEALTH_PORT"),
		HealthTimeout:    v.GetInt("HEALTH_TIMEOUT"),
		HealthURL:        v.GetString("HEALTH_URL"),
		HealthMetric:     v.GetString("HEALTH_METRIC"),
		HealthStaleCount: v.GetInt("HEALTH_STALE_COUNT"),

		MetricsAddr: v.GetString("METRICS_ADDR"),
	}
}

// Validate ports original_source/dns_failover.py's Config.validate: a
// single aggregated error rather than failing on the first problem, so
// an operator sees every misconfiguration in one run of `validate`.
func (c ControllerConfig) Validate() error {
	var errs *multierror.Error

	if c.Role != lease.Primary && c.Role != lease.DR {
		errs = multierror.Append(errs, fmt.Errorf("invalid ROLE: %q", c.Role))
	}

	switch c.Provider {
	case dnsprovider.NameFile:
		// no required credentials beyond the default path
	case dnsprovider.NameScript:
		errs = requireNonEmpty(errs, c.ProviderCreds["set_script"], "SCRIPT_SET")
		errs = requireNonEmpty(errs, c.ProviderCreds["get_script"], "SCRIPT_GET")
		if p := c.ProviderCreds["set_script"]; p != "" {
			if fi, err := os.Stat(p); err != nil || fi.Mode()&0o111 == 0 {
				errs = multierror.Append(errs, fmt.Errorf("SCRIPT_SET not found or not executable: %s", p))
			}
		}
	case dnsprovider.NameAWS:
		errs = requireNonEmpty(errs, c.ProviderCreds["access_key_id"], "AWS_ACCESS_KEY_ID")
		errs = requireNonEmpty(errs, c.ProviderCreds["secret_access_key"], "AWS_SECRET_ACCESS_KEY")
		errs = requireNonEmpty(errs, c.DNSZone, "DNS_ZONE (route53 hosted zone id)")
	case dnsprovider.NameAzure:
		errs = requireNonEmpty(errs, c.ProviderCreds["subscription_id"], "AZURE_SUBSCRIPTION_ID")
		errs = requireNonEmpty(errs, c.ProviderCreds["resource_group"], "AZURE_RESOURCE_GROUP")
		errs = requireNonEmpty(errs, c.ProviderCreds["tenant_id"], "AZURE_TENANT_ID")
		errs = requireNonEmpty(errs, c.ProviderCreds["client_id"], "AZURE_CLIENT_ID")
		errs = requireNonEmpty(errs, c.ProviderCreds["client_secret"], "AZURE_CLIENT_SECRET")
	case dnsprovider.NameGoogle:
		errs = requireNonEmpty(errs, c.ProviderCreds["project"], "GCP_PROJECT_ID")
		errs = requireNonEmpty(errs, c.ProviderCreds["managed_zone"], "GCP_MANAGED_ZONE")
	default:
		errs = multierror.Append(errs, fmt.Errorf("unknown DNS_PROVIDER: %q", c.Provider))
	}

	if c.HealthMode != "tcp" && c.HealthMode != "metrics" {
		errs = multierror.Append(errs, fmt.Errorf("invalid HEALTH_MODE: %q, valid: tcp, metrics", c.HealthMode))
	}
	if c.HealthMode == "metrics" && c.Role == lease.DR {
		errs = requireNonEmpty(errs, c.HealthURL, "HEALTH_URL")
		errs = requireNonEmpty(errs, c.HealthMetric, "HEALTH_METRIC")
	}

	if c.LeaseTTL <= c.UpdateInterval {
		errs = multierror.Append(errs, fmt.Errorf("LEASE_TTL (%d) must be > UPDATE_INTERVAL (%d)", c.LeaseTTL, c.UpdateInterval))
	}

	if errs != nil {
		return &Error{errs}
	}
	return nil
}
