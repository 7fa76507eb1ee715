package config

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/mikempw/dnsfailover/internal/lease"
)

// ReconcilerConfig configures the parity reconciler (component F).
// Grounded on original_source/victoriametrics/vm_sync.py's Config and
// ch-sync/ch_sync.py's connection/sync parameters; the exclusion-glob and
// auto-create fields are the spec.md §4.F/supplemented features this
// distillation dropped.
type ReconcilerConfig struct {
	Role lease.Owner

	DNSRecord string
	DNSServer string
	PrimaryIP string
	DRIP      string

	Datastore string // "clickhouse" or "victoriametrics"

	LocalDSN  string
	RemoteDSN string

	CHDatabase         string
	CHTable            string
	CHLocalNativePort  string
	CHRemoteNativePort string
	CHUser             string
	CHPassword         string

	VMMetric string

	CheckInterval       int
	GapThreshold        float64
	ChunkSize           int
	FailbackCleanChecks int
	RepairConcurrency   int
	ExcludeUnitPatterns []string
	AutoCreate          bool

	StateFile   string
	MetricsAddr string

	NotifyWebhook         string
	NotifyOnGap           bool
	NotifyOnSync          bool
	NotifyOnFailbackReady bool
	NotifyOnNewUnit       bool
}

func LoadReconcilerConfig() ReconcilerConfig {
	v := newViper()

	v.SetDefault("ROLE", "primary")
	v.SetDefault("DNS_RECORD", "failover.example.com")
	v.SetDefault("PRIMARY_IP", "10.10.10.10")
	v.SetDefault("DR_IP", "10.20.20.10")
	v.SetDefault("RECONCILER_DATASTORE", "victoriametrics")
	v.SetDefault("CH_NATIVE_PORT", "9000")
	v.SetDefault("CH_USER", "default")
	v.SetDefault("VM_METRIC", "app_events_total")
	v.SetDefault("CHECK_INTERVAL", 120)
	v.SetDefault("GAP_THRESHOLD", 0.9)
	v.SetDefault("CHUNK_SIZE", 300)
	v.SetDefault("FAILBACK_CLEAN_CHECKS", 3)
	v.SetDefault("REPAIR_CONCURRENCY", 4)
	v.SetDefault("STATE_FILE", "/state/reconciler-state.json")
	v.SetDefault("RECONCILER_AUTO_CREATE", false)
	v.SetDefault("NOTIFY_ON_GAP", true)
	v.SetDefault("NOTIFY_ON_SYNC", true)
	v.SetDefault("NOTIFY_ON_FAILBACK_READY", true)
	v.SetDefault("NOTIFY_ON_NEW_UNIT", true)

	chLocalPort := v.GetString("CH_LOCAL_NATIVE_PORT")
	if chLocalPort == "" {
		chLocalPort = v.GetString("CH_NATIVE_PORT")
	}
	chRemotePort := v.GetString("CH_REMOTE_NATIVE_PORT")
	if chRemotePort == "" {
		chRemotePort = v.GetString("CH_NATIVE_PORT")
	}

	return ReconcilerConfig{
		Role: parseRole(v, "primary"),

		DNSRecord: v.GetString("DNS_RECORD"),
		DNSServer: v.GetString("DNS_SERVER"),
		PrimaryIP: v.GetString("PRIMARY_IP"),
		DRIP:      v.GetString("DR_IP"),

		Datastore: v.GetString("RECONCILER_DATASTORE"),

		LocalDSN:  v.GetString("LOCAL_DSN"),
		RemoteDSN: v.GetString("REMOTE_DSN"),

		CHDatabase:         v.GetString("CH_DATABASE"),
		CHTable:            v.GetString("CH_TABLE"),
		CHLocalNativePort:  chLocalPort,
		CHRemoteNativePort: chRemotePort,
		CHUser:             v.GetString("CH_USER"),
		CHPassword:         v.GetString("CH_PASSWORD"),

		VMMetric: v.GetString("VM_METRIC"),

		CheckInterval:       v.GetInt("CHECK_INTERVAL"),
		GapThreshold:        v.GetFloat64("GAP_THRESHOLD"),
		ChunkSize:           v.GetInt("CHUNK_SIZE"),
		FailbackCleanChecks: v.GetInt("FAILBACK_CLEAN_CHECKS"),
		RepairConcurrency:   v.GetInt("REPAIR_CONCURRENCY"),
		ExcludeUnitPatterns: v.GetStringSlice("RECONCILER_EXCLUDE_PATTERNS"),
		AutoCreate:          v.GetBool("RECONCILER_AUTO_CREATE"),

		StateFile:   v.GetString("STATE_FILE"),
		MetricsAddr: v.GetString("METRICS_ADDR"),

		NotifyWebhook:         v.GetString("NOTIFY_WEBHOOK"),
		NotifyOnGap:           v.GetBool("NOTIFY_ON_GAP"),
		NotifyOnSync:          v.GetBool("NOTIFY_ON_SYNC"),
		NotifyOnFailbackReady: v.GetBool("NOTIFY_ON_FAILBACK_READY"),
		NotifyOnNewUnit:       v.GetBool("NOTIFY_ON_NEW_UNIT"),
	}
}

func (c ReconcilerConfig) Validate() error {
	var errs *multierror.Error

	if c.Role != lease.Primary && c.Role != lease.DR {
		errs = multierror.Append(errs, fmt.Errorf("invalid ROLE: %q", c.Role))
	}
	errs = requireNonEmpty(errs, c.LocalDSN, "LOCAL_DSN")
	errs = requireNonEmpty(errs, c.RemoteDSN, "REMOTE_DSN")
	errs = requireNonEmpty(errs, c.DNSRecord, "DNS_RECORD")

	switch c.Datastore {
	case "clickhouse":
		errs = requireNonEmpty(errs, c.CHDatabase, "CH_DATABASE")
		errs = requireNonEmpty(errs, c.CHTable, "CH_TABLE")
	case "victoriametrics":
		errs = requireNonEmpty(errs, c.VMMetric, "VM_METRIC")
	default:
		errs = multierror.Append(errs, fmt.Errorf("invalid RECONCILER_DATASTORE: %q, valid: clickhouse, victoriametrics", c.Datastore))
	}

	if c.GapThreshold <= 0 || c.GapThreshold > 1 {
		errs = multierror.Append(errs, fmt.Errorf("GAP_THRESHOLD must be in (0,1], got %v", c.GapThreshold))
	}
	if c.FailbackCleanChecks < 1 {
		errs = multierror.Append(errs, fmt.Errorf("FAILBACK_CLEAN_CHECKS must be >= 1, got %d", c.FailbackCleanChecks))
	}
	if c.RepairConcurrency < 1 {
		errs = multierror.Append(errs, fmt.Errorf("REPAIR_CONCURRENCY must be >= 1, got %d", c.RepairConcurrency))
	}

	if errs != nil {
		return &Error{errs}
	}
	return nil
}
