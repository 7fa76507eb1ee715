// Command dnsreconciler is the parity reconciler binary (component F):
// it runs the seven-step gap-detection-and-repair cycle against either a
// ClickHouse pair (exact-row partitions) or a VictoriaMetrics pair
// (count-bucketed time ranges), persisting SyncState to disk between
// cycles. Grounded on the same kubectl-dns/cmd/main.go cobra shape as the
// other two binaries.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mikempw/dnsfailover/internal/config"
	"github.com/mikempw/dnsfailover/internal/follower"
	"github.com/mikempw/dnsfailover/internal/jitter"
	"github.com/mikempw/dnsfailover/internal/logging"
	"github.com/mikempw/dnsfailover/internal/metrics"
	"github.com/mikempw/dnsfailover/internal/reconciler"
)

// reconcilePollVariance spreads concurrent reconciler replicas' cycles
// across the interval instead of all firing in lockstep.
const reconcilePollVariance = 0.1

var (
	verbose bool
	once    bool
	log     *zap.SugaredLogger
	cfg     config.ReconcilerConfig
)

var rootCmd = &cobra.Command{
	Use:   "dnsreconciler",
	Short: "Parity reconciler for DNS-coordinated active/passive failover",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log = logging.New(verbose)
		cfg = config.LoadReconcilerConfig()
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the reconciliation cycle on CHECK_INTERVAL, or once with --once",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		r, err := buildReconciler()
		if err != nil {
			return err
		}

		if cfg.MetricsAddr != "" {
			go serveMetrics(cfg.MetricsAddr)
		}

		state := r.LoadState()
		if once {
			state = r.RunCycle(ctx, state)
			return printState(state)
		}

		log.Infow("starting reconciliation loop", "check_interval", cfg.CheckInterval)
		interval := time.Duration(cfg.CheckInterval) * time.Second
		for {
			state = r.RunCycle(ctx, state)
			timer := time.NewTimer(jitter.Duration(interval, reconcilePollVariance))
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-timer.C:
			}
		}
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the environment configuration and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		fmt.Println("configuration OK")
		return nil
	},
}

func printState(state reconciler.SyncState) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(state)
}

func buildReconciler() (*reconciler.Reconciler, error) {
	ds, err := buildDatastore()
	if err != nil {
		return nil, err
	}

	var notifier reconciler.EventSender
	if cfg.NotifyWebhook != "" {
		notifier = reconciler.NewNotifier(cfg.NotifyWebhook, logging.Component(log, "notify"))
	} else {
		notifier = noopSender{}
	}

	rc := reconciler.Config{
		Role:                  cfg.Role,
		DNSRecord:             cfg.DNSRecord,
		PrimaryIP:             cfg.PrimaryIP,
		DRIP:                  cfg.DRIP,
		GapThreshold:          cfg.GapThreshold,
		ChunkSize:             int64(cfg.ChunkSize),
		FailbackCleanChecks:   cfg.FailbackCleanChecks,
		ExcludeUnitPatterns:   cfg.ExcludeUnitPatterns,
		AutoCreate:            cfg.AutoCreate,
		RepairConcurrency:     cfg.RepairConcurrency,
		NotifyOnGap:           cfg.NotifyOnGap,
		NotifyOnSync:          cfg.NotifyOnSync,
		NotifyOnFailbackReady: cfg.NotifyOnFailbackReady,
		NotifyOnNewUnit:       cfg.NotifyOnNewUnit,
	}

	resolver := follower.NewResolver(cfg.DNSServer)
	return reconciler.New(ds, resolver, notifier, logging.Component(log, "reconciler"), rc, cfg.StateFile), nil
}

func buildDatastore() (reconciler.Datastore, error) {
	switch cfg.Datastore {
	case "clickhouse":
		localHost, localPort, err := net.SplitHostPort(cfg.LocalDSN)
		if err != nil {
			return nil, fmt.Errorf("LOCAL_DSN must be host:port for clickhouse: %w", err)
		}
		remoteHost, remotePort, err := net.SplitHostPort(cfg.RemoteDSN)
		if err != nil {
			return nil, fmt.Errorf("REMOTE_DSN must be host:port for clickhouse: %w", err)
		}
		local := reconciler.ClickHouseEndpoint{
			Host: localHost, Port: localPort, NativePort: cfg.CHLocalNativePort,
			User: cfg.CHUser, Password: cfg.CHPassword,
		}
		remote := reconciler.ClickHouseEndpoint{
			Host: remoteHost, Port: remotePort, NativePort: cfg.CHRemoteNativePort,
			User: cfg.CHUser, Password: cfg.CHPassword,
		}
		return reconciler.NewClickHouse(local, remote, cfg.CHDatabase, cfg.CHTable), nil

	case "victoriametrics":
		return reconciler.NewVictoriaMetrics(cfg.LocalDSN, cfg.RemoteDSN, cfg.VMMetric, cfg.ChunkSize), nil

	default:
		return nil, fmt.Errorf("unknown RECONCILER_DATASTORE: %q", cfg.Datastore)
	}
}

type noopSender struct{}

func (noopSender) Send(context.Context, reconciler.Event, reconciler.SyncState) {}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Errorw("metrics server stopped", "error", err)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
	runCmd.Flags().BoolVar(&once, "once", false, "run a single cycle and print the resulting state as JSON")
	rootCmd.AddCommand(runCmd, validateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
