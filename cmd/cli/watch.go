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
	watchTarget    string
	watchFile      string
	watchOutputDir string
)

// watchCmd represents the watch command.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch an existing nmap output file and dispatch feroxbuster",
	Long: `Watch an nmap -oN output file produced by a scan started elsewhere. The
watcher polls until the file exists and the completion marker appears, then
runs feroxbuster against every web service port the scan found. No nmap
process is launched; pair this with a scan you started by hand.`,
	Example: `  rad watch --target 10.10.10.10
  rad watch --target box.htb --file nmap_box.txt`,
	Run: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVarP(&watchTarget, "target", "t", "", "Target IP address or hostname")
	watchCmd.Flags().StringVarP(&watchFile, "file", "f", "", "nmap output file to poll (default nmap_<target>.txt)")
	watchCmd.Flags().StringVar(&watchOutputDir, "ferox-output-dir", "", "Directory for feroxbuster output files")
}

func runWatch(cmd *cobra.Command, _ []string) {
	cfg := mustLoadConfig()
	applyTargetFlags(cfg, watchTarget, watchFile, watchOutputDir)

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
	if err := d.WatchAndDispatch(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: watch failed: %v\n", err)
		os.Exit(1)
	}

	printRunSummary(ctx, database)
}
