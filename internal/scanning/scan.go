// Package scanning launches the nmap service scan for the recon pipeline.
// The scan always writes normal-format output with -oN: that file is the
// handoff point the watcher polls, so the library's structured results are
// only used for logging and the run summary.
package scanning

import (
	"context"
	"time"

	"github.com/Ullaakut/nmap/v3"

	"github.com/clivendon/RAD/internal/errors"
	"github.com/clivendon/RAD/internal/logging"
	"github.com/clivendon/RAD/internal/metrics"
)

// Config holds nmap launch settings.
type Config struct {
	// Target is the host or IP to scan.
	Target string

	// OutputFile is the -oN normal-output path consumed by the watcher.
	OutputFile string

	// Timeout bounds the scan; zero means no explicit bound.
	Timeout time.Duration

	// MinRate is the --min-rate packet floor. Zero applies the default.
	MinRate int
}

// defaultMinRate mirrors the upstream pipeline's --min-rate 1000.
const defaultMinRate = 1000

// Result summarizes a finished nmap run.
type Result struct {
	Target     string
	OutputFile string
	HostsUp    int
	OpenPorts  int
	Duration   time.Duration
}

// Run executes nmap with service detection and default scripts against the
// target, writing -oN output to the configured file. It blocks until the
// scan finishes or the context is done.
func Run(ctx context.Context, cfg Config) (*Result, error) {
	m := metrics.GetGlobalMetrics()

	if err := ValidateTarget(cfg.Target); err != nil {
		m.IncrementScans("invalid_target")
		return nil, err
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	minRate := cfg.MinRate
	if minRate <= 0 {
		minRate = defaultMinRate
	}

	logging.InfoScan("starting nmap scan", cfg.Target,
		"output_file", cfg.OutputFile, "min_rate", minRate)

	scanner, err := nmap.NewScanner(ctx,
		nmap.WithTargets(cfg.Target),
		nmap.WithServiceInfo(),
		nmap.WithDefaultScript(),
		nmap.WithTimingTemplate(nmap.TimingAggressive),
		nmap.WithMinRate(minRate),
		nmap.WithCustomArguments("-v", "-oN", cfg.OutputFile),
	)
	if err != nil {
		m.IncrementScans("error")
		return nil, errors.ErrScanFailed(cfg.Target, err)
	}

	start := time.Now()
	run, warnings, err := scanner.Run()
	duration := time.Since(start)
	m.RecordScanDuration(duration)

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			m.IncrementScans("timeout")
			return nil, errors.WrapReconError(errors.CodeTimeout, "scan timed out", err)
		}
		m.IncrementScans("error")
		return nil, errors.ErrScanFailed(cfg.Target, err)
	}
	if warnings != nil && len(*warnings) > 0 {
		logging.Warn("nmap finished with warnings", "warnings", *warnings)
	}

	result := summarize(run, cfg, duration)
	m.IncrementScans("success")
	logging.InfoScan("nmap scan finished", cfg.Target,
		"hosts_up", result.HostsUp,
		"open_ports", result.OpenPorts,
		"duration", duration)

	return result, nil
}

func summarize(run *nmap.Run, cfg Config, duration time.Duration) *Result {
	result := &Result{
		Target:     cfg.Target,
		OutputFile: cfg.OutputFile,
		Duration:   duration,
	}
	if run == nil {
		return result
	}

	for i := range run.Hosts {
		host := &run.Hosts[i]
		if host.Status.State == "up" {
			result.HostsUp++
		}
		for j := range host.Ports {
			if host.Ports[j].State.State == "open" {
				result.OpenPorts++
			}
		}
	}
	return result
}
