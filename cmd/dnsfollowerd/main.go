// Command dnsfollowerd is the ownership follower binary (component E):
// it polls the failover DNS record and drives a side effect (subprocess,
// container, or Kubernetes deployment) to match whichever site currently
// owns it. Grounded on the same kubectl-dns/cmd/main.go cobra shape as
// dnsfailoverd, reduced to a single long-running command since this
// binary has no administrative one-shot operations.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mikempw/dnsfailover/internal/config"
	"github.com/mikempw/dnsfailover/internal/follower"
	"github.com/mikempw/dnsfailover/internal/follower/sideeffect"
	"github.com/mikempw/dnsfailover/internal/logging"
	"github.com/mikempw/dnsfailover/internal/metrics"
)

var (
	verbose bool
	log     *zap.SugaredLogger
	cfg     config.FollowerConfig
)

var rootCmd = &cobra.Command{
	Use:   "dnsfollowerd",
	Short: "Ownership follower for DNS-coordinated active/passive failover",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log = logging.New(verbose)
		cfg = config.LoadFollowerConfig()
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Poll the DNS record and activate/deactivate the configured side effect on change",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		effect, err := buildEffect()
		if err != nil {
			return err
		}
		resolver := follower.NewResolver(cfg.DNSServer)
		f := follower.New(resolver, effect, logging.Component(log, "follower"), cfg.DNSRecord, cfg.MyIP, cfg.StateFile, cfg.SideEffect)

		if cfg.MetricsAddr != "" {
			go serveMetrics(cfg.MetricsAddr)
		}

		f.Run(ctx, time.Duration(cfg.CheckInterval)*time.Second)
		return nil
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

func buildEffect() (sideeffect.Effect, error) {
	switch cfg.SideEffect {
	case "subprocess":
		return sideeffect.NewSubprocess(cfg.Command, logging.Component(log, "sideeffect")), nil
	case "container":
		return sideeffect.NewContainer(cfg.ContainerName, logging.Component(log, "sideeffect")), nil
	case "deployment":
		return sideeffect.NewDeployment(cfg.DeploymentName, cfg.DeploymentNamespace, cfg.ActiveReplicas, cfg.IdleReplicas,
			logging.Component(log, "sideeffect")), nil
	default:
		return nil, fmt.Errorf("unknown side effect: %q", cfg.SideEffect)
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
	rootCmd.AddCommand(runCmd, validateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
