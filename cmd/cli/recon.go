package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/clivendon/RAD/internal/daemon"
	"github.com/clivendon/RAD/internal/db"
)

var (
	reconTarget     string
	reconOutputFile string
	reconOutputDir  string
)

// reconCmd represents the recon command.
var reconCmd = &cobra.Command{
	Use:   "recon",
	Short: "Run one full recon pipeline against a target",
	Long: `Run the complete recon pipeline once: validate the target, verify the
required tools are installed, launch the nmap service scan, watch its output
file until the scan completes, then run feroxbuster against every discovered
web service port in order.`,
	Example: `  rad recon --target 10.10.10.10
  rad recon --target box.htb --output nmap_box.txt
  rad recon --target 10.10.10.10 --ferox-output-dir ./loot`,
	Run: runRecon,
}

func init() {
	rootCmd.AddCommand(reconCmd)

	reconCmd.Flags().StringVarP(&reconTarget, "target", "t", "", "Target IP address or hostname")
	reconCmd.Flags().StringVarP(&reconOutputFile, "output", "o", "", "nmap -oN output file (default nmap_<target>.txt)")
	reconCmd.Flags().StringVar(&reconOutputDir, "ferox-output-dir", "", "Directory for feroxbuster output files")
}

func runRecon(cmd *cobra.Command, _ []string) {
	cfg := mustLoadConfig()
	applyTargetFlags(cfg, reconTarget, reconOutputFile, reconOutputDir)

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
	if err := d.RunOnce(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: recon run failed: %v\n", err)
		os.Exit(1)
	}

	printRunSummary(ctx, database)
}

// printRunSummary shows the outcome of the most recent run.
func printRunSummary(ctx context.Context, database *db.DB) {
	runs, err := database.ListRuns(ctx, 1)
	if err != nil || len(runs) == 0 {
		return
	}
	run := runs[0]

	fmt.Printf("\nRun %s finished: %s (%d web ports)\n", run.ID, run.Status, run.WebPorts)

	dispatches, err := database.ListDispatches(ctx, run.ID)
	if err != nil {
		return
	}
	for _, d := range dispatches {
		outcome := "ok"
		if d.Error != "" {
			outcome = d.Error
		}
		fmt.Printf("  %s -> %s (exit %d, %s)\n", d.URL, d.OutputFile, d.ExitCode, outcome)
	}
}
