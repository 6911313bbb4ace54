package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/clivendon/RAD/internal/daemon"
)

var (
	daemonTarget   string
	daemonSchedule string
	daemonAPI      bool
)

// daemonCmd represents the daemon command.
var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run recon on a recurring schedule",
	Long: `Run the recon pipeline repeatedly on a cron schedule. The pipeline runs
once immediately at startup and then on every schedule tick; a tick that
arrives while a run is still in flight is skipped. The status API serves
/healthz, /status and /metrics while the daemon is up.`,
	Example: `  rad daemon --target 10.10.10.10
  rad daemon --target box.htb --schedule "@every 6h"
  rad daemon --target 10.10.10.10 --api=false`,
	Run: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)

	daemonCmd.Flags().StringVarP(&daemonTarget, "target", "t", "", "Target IP address or hostname")
	daemonCmd.Flags().StringVar(&daemonSchedule, "schedule", "", "Cron schedule (robfig/cron syntax, @every accepted)")
	daemonCmd.Flags().BoolVar(&daemonAPI, "api", true, "Serve the status HTTP API")
}

func runDaemon(cmd *cobra.Command, _ []string) {
	cfg := mustLoadConfig()
	applyTargetFlags(cfg, daemonTarget, "", "")
	if daemonSchedule != "" {
		cfg.Daemon.Schedule = daemonSchedule
	}
	cfg.API.Enabled = daemonAPI

	if cfg.Target == "" {
		fmt.Fprintf(os.Stderr, "Error: a target is required (--target flag, RAD_TARGET, or config file)\n\n")
		_ = cmd.Help()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database := mustConnect(ctx, cfg)
	defer func() { _ = database.Close() }()

	d := daemon.New(cfg, database)
	if err := d.RunScheduled(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: daemon failed: %v\n", err)
		os.Exit(1)
	}
}
