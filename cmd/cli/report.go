package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/clivendon/RAD/internal/db"
)

var reportLimit int

// reportCmd represents the report command.
var reportCmd = &cobra.Command{
	Use:   "report [run-id]",
	Short: "Show recon run history",
	Long: `Show the recorded recon runs, newest first. With a run ID, show the
feroxbuster dispatch history for that run instead.`,
	Example: `  rad report
  rad report --limit 50
  rad report 6df6cfab-6f30-4a3e-9d2a-5a4f9c6d2e11`,
	Args: cobra.MaximumNArgs(1),
	Run:  runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().IntVarP(&reportLimit, "limit", "n", 20, "Maximum number of runs to show")
}

func runReport(_ *cobra.Command, args []string) {
	cfg := mustLoadConfig()

	ctx := context.Background()
	database := mustConnect(ctx, cfg)
	defer func() { _ = database.Close() }()

	if len(args) == 1 {
		printDispatchTable(ctx, database, args[0])
		return
	}
	printRunTable(ctx, database)
}

func printRunTable(ctx context.Context, database *db.DB) {
	runs, err := database.ListRuns(ctx, reportLimit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing runs: %v\n", err)
		os.Exit(1)
	}
	if len(runs) == 0 {
		fmt.Println("No recon runs recorded yet.")
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("ID", "Target", "Status", "Web Ports", "Started", "Duration")

	for _, run := range runs {
		duration := "-"
		if run.FinishedAt != nil {
			duration = run.FinishedAt.Sub(run.StartedAt).Round(time.Second).String()
		}
		_ = table.Append([]string{
			run.ID,
			run.Target,
			run.Status,
			strconv.Itoa(run.WebPorts),
			run.StartedAt.Format(time.RFC3339),
			duration,
		})
	}
	_ = table.Render()
}

func printDispatchTable(ctx context.Context, database *db.DB, runID string) {
	run, err := database.GetRun(ctx, runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Run %s against %s: %s\n\n", run.ID, run.Target, run.Status)

	dispatches, err := database.ListDispatches(ctx, runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing dispatches: %v\n", err)
		os.Exit(1)
	}
	if len(dispatches) == 0 {
		fmt.Println("No feroxbuster dispatches recorded for this run.")
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Port", "URL", "Output File", "Exit Code", "Error")

	for _, d := range dispatches {
		_ = table.Append([]string{
			strconv.Itoa(d.Port),
			d.URL,
			d.OutputFile,
			strconv.Itoa(d.ExitCode),
			d.Error,
		})
	}
	_ = table.Render()
}
