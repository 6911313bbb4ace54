// Package daemon orchestrates the recon pipeline: launch the nmap service
// scan, watch its output file until the scan completes, dispatch content
// discovery against every discovered web port, and persist the run. It also
// provides the scheduled mode that repeats the pipeline on a cron expression.
package daemon

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/clivendon/RAD/internal/api"
	"github.com/clivendon/RAD/internal/config"
	"github.com/clivendon/RAD/internal/db"
	"github.com/clivendon/RAD/internal/dispatch"
	"github.com/clivendon/RAD/internal/errors"
	"github.com/clivendon/RAD/internal/logging"
	"github.com/clivendon/RAD/internal/metrics"
	"github.com/clivendon/RAD/internal/nmapout"
	"github.com/clivendon/RAD/internal/scanning"
	"github.com/clivendon/RAD/internal/watcher"
)

// Daemon drives the recon pipeline against the configured target.
type Daemon struct {
	cfg    *config.Config
	store  *db.DB
	runner dispatch.Runner
	logger *logging.Logger

	mu      sync.RWMutex
	watcher *watcher.Watcher
	lastRun *db.ReconRun
	running bool
}

// New creates a pipeline daemon on top of an open store.
func New(cfg *config.Config, store *db.DB) *Daemon {
	return &Daemon{
		cfg:    cfg,
		store:  store,
		runner: dispatch.ExecRunner{},
		logger: logging.Default().WithComponent("daemon"),
	}
}

// SetRunner replaces the command runner; used by tests.
func (d *Daemon) SetRunner(r dispatch.Runner) {
	d.runner = r
}

// Status implements api.StatusProvider.
func (d *Daemon) Status() api.Status {
	d.mu.RLock()
	defer d.mu.RUnlock()

	status := api.Status{
		State:     "idle",
		Target:    d.cfg.Target,
		WatchFile: d.cfg.WatchFile(),
		LastRun:   d.lastRun,
	}
	if d.running && d.watcher != nil {
		status.State = d.watcher.State().String()
		status.PortsSoFar = d.watcher.PortsSoFar()
	}
	return status
}

func (d *Daemon) tryBegin() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return false
	}
	d.running = true
	return true
}

func (d *Daemon) end() {
	d.mu.Lock()
	d.running = false
	d.mu.Unlock()
	metrics.GetGlobalMetrics().SetPipelineState(metrics.StateIdle)
}

func (d *Daemon) setWatcher(w *watcher.Watcher) {
	d.mu.Lock()
	d.watcher = w
	d.mu.Unlock()
}

func (d *Daemon) setLastRun(run *db.ReconRun) {
	d.mu.Lock()
	d.lastRun = run
	d.mu.Unlock()
}

// RunOnce executes one complete pipeline: preflight, launch nmap, watch the
// output file, dispatch content discovery, persist everything. A second call
// while a run is in flight is skipped.
func (d *Daemon) RunOnce(ctx context.Context) error {
	return d.run(ctx, true)
}

// WatchAndDispatch runs the pipeline against an externally produced nmap
// output file: no scan is launched, the watcher simply waits for the file
// and the completion marker.
func (d *Daemon) WatchAndDispatch(ctx context.Context) error {
	return d.run(ctx, false)
}

func (d *Daemon) run(ctx context.Context, launchScan bool) error {
	if !d.tryBegin() {
		d.logger.Warn("previous run still in progress, skipping", "target", d.cfg.Target)
		return nil
	}
	defer d.end()

	m := metrics.GetGlobalMetrics()

	if err := scanning.ValidateTarget(d.cfg.Target); err != nil {
		m.IncrementRuns(db.RunStatusFailed)
		return err
	}

	tools := []string{d.cfg.Ferox.Binary}
	if launchScan {
		tools = append([]string{d.cfg.Nmap.Binary}, tools...)
	}
	if err := scanning.CheckTools(tools...); err != nil {
		m.IncrementRuns(db.RunStatusFailed)
		return err
	}

	outputFile := d.cfg.WatchFile()
	run, err := d.store.CreateRun(ctx, d.cfg.Target, outputFile)
	if err != nil {
		m.IncrementRuns(db.RunStatusFailed)
		return err
	}
	d.setLastRun(run)

	logger := d.logger.WithRunID(run.ID).WithTarget(d.cfg.Target)
	logger.Info("recon run started", "output_file", outputFile, "scan", launchScan)

	report, err := d.scanAndWatch(ctx, outputFile, launchScan, logger)
	if err != nil {
		d.failRun(run.ID, err, logger)
		return err
	}

	status := d.dispatchAndRecord(ctx, run.ID, report, logger)

	if err := d.store.CompleteRun(context.WithoutCancel(ctx), run.ID, status, len(report.WebPorts)); err != nil {
		logger.Error("failed to record run completion", "error", err)
	}
	if updated, err := d.store.GetRun(context.WithoutCancel(ctx), run.ID); err == nil {
		d.setLastRun(updated)
	}

	m.IncrementRuns(status)
	logger.Info("recon run finished", "status", status, "web_ports", len(report.WebPorts))
	return nil
}

// scanAndWatch launches nmap (when requested) and watches the output file
// until the completion marker appears. A scan failure before the marker
// cancels the watch; a watch failure cancels the scan.
func (d *Daemon) scanAndWatch(ctx context.Context, outputFile string, launchScan bool, logger *logging.Logger) (nmapout.Report, error) {
	scanCtx, cancelScan := context.WithCancel(ctx)
	defer cancelScan()

	var scanErrCh chan error
	if launchScan {
		scanErrCh = make(chan error, 1)
		go func() {
			_, err := scanning.Run(scanCtx, scanning.Config{
				Target:     d.cfg.Target,
				OutputFile: outputFile,
				Timeout:    d.cfg.Nmap.ScanTimeout.Duration(),
			})
			scanErrCh <- err
		}()
	}

	w := watcher.New(watcher.Config{
		File:                 outputFile,
		PollIntervalWaiting:  d.cfg.Watch.PollIntervalWaiting.Duration(),
		PollIntervalScanning: d.cfg.Watch.PollIntervalScanning.Duration(),
	})
	d.setWatcher(w)

	watchCtx, cancelWatch := context.WithCancel(ctx)
	defer cancelWatch()

	type watchOutcome struct {
		report nmapout.Report
		err    error
	}
	watchCh := make(chan watchOutcome, 1)
	go func() {
		report, err := w.Watch(watchCtx)
		watchCh <- watchOutcome{report: report, err: err}
	}()

	var report nmapout.Report
waiting:
	for {
		select {
		case err := <-scanErrCh:
			if err != nil {
				cancelWatch()
				<-watchCh
				return nmapout.Report{}, err
			}
			// Scan finished cleanly; the marker is on disk and the
			// watcher picks it up on the next tick.
			scanErrCh = nil
		case outcome := <-watchCh:
			if outcome.err != nil {
				cancelScan()
				if scanErrCh != nil {
					<-scanErrCh
				}
				return nmapout.Report{}, outcome.err
			}
			report = outcome.report
			break waiting
		}
	}

	// The marker is written before nmap exits, so the process may still be
	// flushing. Give it a moment; a late failure does not invalidate a
	// complete output file.
	if scanErrCh != nil {
		select {
		case err := <-scanErrCh:
			if err != nil {
				logger.Warn("nmap exited with error after output completed", "error", err)
			}
		case <-time.After(5 * time.Second):
			logger.Warn("nmap still running after output completed")
			cancelScan()
		}
	}

	return report, nil
}

// dispatchAndRecord persists discovered web services, runs content discovery
// against each port, and records every invocation outcome. It returns the
// final run status.
func (d *Daemon) dispatchAndRecord(ctx context.Context, runID string, report nmapout.Report, logger *logging.Logger) string {
	if !report.HasWebPorts() {
		return db.RunStatusNoWebServers
	}

	names := serviceNames(report)
	for _, port := range report.WebPorts {
		if err := d.store.RecordWebService(ctx, runID, port, names[port]); err != nil {
			logger.Error("failed to record web service", "port", port, "error", err)
		}
	}

	dispatcher := dispatch.NewWithRunner(dispatch.Config{
		Binary:     d.cfg.Ferox.Binary,
		Extensions: d.cfg.Ferox.Extensions,
		OutputDir:  d.cfg.Ferox.OutputDir,
	}, d.runner)

	results := dispatcher.Dispatch(ctx, d.cfg.Target, report.WebPorts)

	status := db.RunStatusSuccess
	for i := range results {
		result := &results[i]
		record := &db.Dispatch{
			RunID:      runID,
			Port:       result.Port,
			URL:        result.URL,
			OutputFile: result.OutputFile,
			ExitCode:   result.ExitCode,
		}
		if result.Err != nil {
			record.Error = result.Err.Error()
			status = db.RunStatusFailed
		}
		if err := d.store.RecordDispatch(context.WithoutCancel(ctx), record); err != nil {
			logger.Error("failed to record dispatch", "port", result.Port, "error", err)
		}
	}
	if len(results) < len(report.WebPorts) {
		// Interrupted before every port was scanned.
		status = db.RunStatusFailed
	}
	return status
}

func (d *Daemon) failRun(runID string, runErr error, logger *logging.Logger) {
	logger.Error("recon run failed", "error", runErr)
	metrics.GetGlobalMetrics().IncrementRuns(db.RunStatusFailed)
	if err := d.store.CompleteRun(context.Background(), runID, db.RunStatusFailed, 0); err != nil {
		logger.Error("failed to record run failure", "error", err)
	}
	if updated, err := d.store.GetRun(context.Background(), runID); err == nil {
		d.setLastRun(updated)
	}
}

// serviceNames maps each port to the service name nmap printed for it. The
// first occurrence wins when a port is listed more than once.
func serviceNames(report nmapout.Report) map[int]string {
	names := make(map[int]string, len(report.Services))
	for _, svc := range report.Services {
		if _, ok := names[svc.Port]; !ok {
			names[svc.Port] = svc.Name
		}
	}
	return names
}

// RunScheduled repeats the pipeline on the configured cron schedule until the
// context is canceled, running once immediately at startup. The status API is
// served alongside when enabled.
func (d *Daemon) RunScheduled(ctx context.Context) error {
	schedule := d.cfg.Daemon.Schedule
	if schedule == "" {
		schedule = "@every 12h"
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(schedule, func() {
		if err := d.RunOnce(ctx); err != nil {
			d.logger.Error("scheduled run failed", "error", err)
		}
	}); err != nil {
		return errors.ErrConfigInvalid("daemon.schedule", schedule)
	}

	if d.cfg.API.Enabled {
		server := api.New(d.cfg.APIAddress(), d)
		go func() {
			if err := server.Start(ctx); err != nil {
				d.logger.Error("status server failed", "error", err)
			}
		}()
	}

	d.logger.Info("daemon started", "schedule", schedule, "target", d.cfg.Target)

	if err := d.RunOnce(ctx); err != nil {
		d.logger.Error("initial run failed", "error", err)
	}

	scheduler.Start()
	<-ctx.Done()

	d.logger.Info("daemon shutting down")
	stopCtx := scheduler.Stop()

	timeout := d.cfg.Daemon.ShutdownTimeout.Duration()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	select {
	case <-stopCtx.Done():
	case <-time.After(timeout):
		d.logger.Warn("shutdown timeout reached with jobs still running")
	}
	return nil
}
