package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/aresch/deluge/internal/component"
	"github.com/aresch/deluge/internal/config"
	"github.com/aresch/deluge/internal/daemon"
	"github.com/aresch/deluge/internal/logging"
)

var (
	configPath      string
	shutdownTimeout time.Duration
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the deluge daemon",
	Long: `Starts the RPC listener and the metrics endpoint under the component
registry, then shuts everything down on SIGINT/SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDaemon(cmd)
	},
}

func init() {
	daemonCmd.Flags().StringVarP(&configPath, "config", "c", "",
		"Path to the daemon YAML config file")
	daemonCmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 30*time.Second,
		"Grace period for shutting down all components")
}

func runDaemon(cmd *cobra.Command) error {
	cfg := config.DefaultConfig()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	// CLI log-level flags win over the config file.
	levels := cfg.LogLevels
	if cmd.Root().PersistentFlags().Changed("log-level") {
		levels = logLevelFlags
	}
	if err := setupLog(levels); err != nil {
		return err
	}
	logger := logging.New("daemon")

	promReg := prometheus.NewRegistry()
	metrics := component.NewMetrics(promReg)
	reg := component.NewRegistry(component.WithMetrics(metrics))

	framesReceived := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "deluge_rpc_frames_received_total",
		Help: "Total number of decoded RPC frames",
	})
	promReg.MustRegister(framesReceived)

	if _, err := component.New(reg, "metrics",
		daemon.NewMetricsServer(cfg.MetricsListen, promReg),
		component.WithInterval(cfg.UpdateInterval()),
	); err != nil {
		return err
	}
	if _, err := component.New(reg, "rpcserver",
		daemon.NewRPCServer(cfg.Listen, daemon.WithFrameCounter(framesReceived)),
		component.WithDepend("metrics"),
		component.WithInterval(cfg.UpdateInterval()),
	); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := reg.Start(ctx); err != nil {
		return err
	}
	logger.Info("deluged %s started", Version)

	<-ctx.Done()
	stop()
	logger.Info("signal received, shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return reg.Shutdown(shutdownCtx)
}
