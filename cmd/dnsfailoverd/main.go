// Command dnsfailoverd is the failover controller binary (component D):
// a long-running heartbeat for ROLE=primary or ROLE=dr, plus the
// administrative one-shot subcommands init/promote/failback/show.
// Grounded on kubectl-dns/cmd/main.go's cobra root + PersistentPreRun
// wiring, generalized from a kubectl plugin's subcommand tree to a
// daemon with administrative escape hatches.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mikempw/dnsfailover/internal/config"
	"github.com/mikempw/dnsfailover/internal/controller"
	"github.com/mikempw/dnsfailover/internal/dnsprovider"
	"github.com/mikempw/dnsfailover/internal/healthprobe"
	"github.com/mikempw/dnsfailover/internal/lease"
	"github.com/mikempw/dnsfailover/internal/logging"
	"github.com/mikempw/dnsfailover/internal/metrics"

	_ "github.com/mikempw/dnsfailover/internal/dnsprovider/aws"
	_ "github.com/mikempw/dnsfailover/internal/dnsprovider/azure"
	_ "github.com/mikempw/dnsfailover/internal/dnsprovider/file"
	_ "github.com/mikempw/dnsfailover/internal/dnsprovider/gcloud"
	_ "github.com/mikempw/dnsfailover/internal/dnsprovider/script"
)

var (
	verbose bool
	log     *zap.SugaredLogger
	cfg     config.ControllerConfig
)

var rootCmd = &cobra.Command{
	Use:   "dnsfailoverd",
	Short: "DNS-coordinated active/passive failover controller",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log = logging.New(verbose)
		cfg = config.LoadControllerConfig()
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the heartbeat loop for ROLE (primary writes the lease, dr watches and promotes)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		ctrl, err := buildController(ctx)
		if err != nil {
			return err
		}

		if cfg.MetricsAddr != "" {
			go serveMetrics(cfg.MetricsAddr)
		}

		switch cfg.Role {
		case lease.Primary:
			ctrl.RunPrimary(ctx, time.Duration(cfg.UpdateInterval)*time.Second)
		case lease.DR:
			probe, err := buildProbe()
			if err != nil {
				return err
			}
			ctrl.RunDR(ctx, probe, time.Duration(cfg.UpdateInterval)*time.Second, cfg.FailThreshold)
		}
		return nil
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the initial lease: (primary_ip, primary, now+lease_ttl)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		ctrl, err := buildController(ctx)
		if err != nil {
			return err
		}
		return ctrl.Init(ctx)
	},
}

var promoteCmd = &cobra.Command{
	Use:   "promote",
	Short: "Force-promote the DR site to active",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		ctrl, err := buildController(ctx)
		if err != nil {
			return err
		}
		return ctrl.Promote(ctx)
	},
}

var failbackCmd = &cobra.Command{
	Use:   "failback",
	Short: "Restore the primary site to active",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		ctrl, err := buildController(ctx)
		if err != nil {
			return err
		}
		return ctrl.Failback(ctx)
	},
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current lease as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		ctrl, err := buildController(ctx)
		if err != nil {
			return err
		}
		result, err := ctrl.Show(ctx, cfg.DNSRecord)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
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

func buildController(ctx context.Context) (*controller.Controller, error) {
	provider, err := dnsprovider.Build(ctx, cfg.Provider, dnsprovider.Config{
		Record: cfg.DNSRecord,
		Zone:   cfg.DNSZone,
		TTL:    cfg.DNSTTL,
		Server: cfg.DNSServer,
	}, cfg.ProviderCreds)
	if err != nil {
		return nil, fmt.Errorf("build dns provider: %w", err)
	}
	return controller.New(provider, logging.Component(log, "controller"), cfg.PrimaryIP, cfg.DRIP,
		time.Duration(cfg.LeaseTTL)*time.Second), nil
}

func buildProbe() (controller.HealthProbe, error) {
	switch cfg.HealthMode {
	case "metrics":
		return healthprobe.NewProgressProbe(cfg.HealthURL, cfg.HealthMetric, cfg.HealthStaleCount,
			time.Duration(cfg.HealthTimeout)*time.Second), nil
	default:
		addr := fmt.Sprintf("%s:%d", cfg.HealthHost, cfg.HealthPort)
		return healthprobe.NewTCPProbe(addr, time.Duration(cfg.HealthTimeout)*time.Second), nil
	}
}

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
	rootCmd.AddCommand(runCmd, initCmd, promoteCmd, failbackCmd, showCmd, validateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
