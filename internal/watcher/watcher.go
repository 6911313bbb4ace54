// Package watcher polls an nmap -oN output file until the scan completes.
// It implements a two-state loop: Waiting while the file does not exist,
// Scanning while the file exists but the completion marker has not been
// written. Every tick re-reads and re-parses the whole file; no parse state
// survives between iterations.
package watcher

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/clivendon/RAD/internal/errors"
	"github.com/clivendon/RAD/internal/logging"
	"github.com/clivendon/RAD/internal/metrics"
	"github.com/clivendon/RAD/internal/nmapout"
)

// State is the watcher's position in the poll loop.
type State int

const (
	StateWaiting State = iota
	StateScanning
	StateDone
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateScanning:
		return "scanning"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Default poll intervals, applied when the config leaves them zero.
const (
	defaultWaitingInterval  = 5 * time.Second
	defaultScanningInterval = 10 * time.Second
)

// Config holds watcher settings.
type Config struct {
	// File is the nmap output file to poll.
	File string

	// PollIntervalWaiting is the delay between existence checks.
	PollIntervalWaiting time.Duration

	// PollIntervalScanning is the delay between content reads.
	PollIntervalScanning time.Duration
}

// Watcher polls the output file and reports progress.
type Watcher struct {
	cfg    Config
	logger *logging.Logger

	mu        sync.RWMutex
	state     State
	lastPorts []int
}

// New creates a watcher for the given file and intervals.
func New(cfg Config) *Watcher {
	if cfg.PollIntervalWaiting <= 0 {
		cfg.PollIntervalWaiting = defaultWaitingInterval
	}
	if cfg.PollIntervalScanning <= 0 {
		cfg.PollIntervalScanning = defaultScanningInterval
	}
	return &Watcher{
		cfg:    cfg,
		logger: logging.Default().WithComponent("watcher"),
		state:  StateWaiting,
	}
}

// State returns the current loop state.
func (w *Watcher) State() State {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

// PortsSoFar returns a copy of the web ports seen on the most recent tick.
func (w *Watcher) PortsSoFar() []int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	ports := make([]int, len(w.lastPorts))
	copy(ports, w.lastPorts)
	return ports
}

func (w *Watcher) setState(s State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
	metrics.GetGlobalMetrics().SetPipelineState(stateGauge(s))
}

func stateGauge(s State) int {
	switch s {
	case StateScanning:
		return metrics.StateScanning
	case StateDone:
		return metrics.StateIdle
	default:
		return metrics.StateWaiting
	}
}

func (w *Watcher) setPorts(ports []int) {
	w.mu.Lock()
	w.lastPorts = ports
	w.mu.Unlock()
}

// Watch polls until the completion marker appears, then returns the final
// report. A missing file is a wait condition, never an error; an unreadable
// or empty file yields no matches and the loop keeps going. The only error
// returns are context cancellation.
func (w *Watcher) Watch(ctx context.Context) (nmapout.Report, error) {
	m := metrics.GetGlobalMetrics()

	for {
		if _, err := os.Stat(w.cfg.File); err != nil {
			w.setState(StateWaiting)
			m.IncrementFileChecks("absent")
			m.IncrementPollTicks(StateWaiting.String())
			w.logger.Info("output file not present yet",
				"file", w.cfg.File,
				"retry_in", w.cfg.PollIntervalWaiting)
			if err := sleepCtx(ctx, w.cfg.PollIntervalWaiting); err != nil {
				return nmapout.Report{}, err
			}
			continue
		}
		m.IncrementFileChecks("present")
		w.setState(StateScanning)

		data, err := os.ReadFile(w.cfg.File)
		if err != nil {
			// Transient read failures (rotation, partial writes) are
			// retried on the next tick.
			w.logger.Warn("failed to read output file, retrying",
				"file", w.cfg.File, "error", err)
			m.IncrementPollTicks(StateScanning.String())
			if err := sleepCtx(ctx, w.cfg.PollIntervalScanning); err != nil {
				return nmapout.Report{}, err
			}
			continue
		}

		report := nmapout.Parse(string(data))
		w.setPorts(report.WebPorts)

		if len(report.Services) > 0 {
			w.logger.Debug("tcp service lines in report",
				"file", w.cfg.File, "count", len(report.Services))
		}

		if report.Done {
			w.setState(StateDone)
			m.AddWebPortsFound(len(report.WebPorts))
			if report.HasWebPorts() {
				w.logger.Info("scan complete, web services discovered",
					"ports", report.WebPorts)
			} else {
				w.logger.Info("scan complete, no web servers found")
			}
			return report, nil
		}

		if report.HasWebPorts() {
			w.logger.Info("scan in progress, web services so far",
				"ports", report.WebPorts)
		} else {
			w.logger.Info("scan in progress, no web services yet")
		}

		m.IncrementPollTicks(StateScanning.String())
		if err := sleepCtx(ctx, w.cfg.PollIntervalScanning); err != nil {
			return nmapout.Report{}, err
		}
	}
}

// sleepCtx sleeps for d or until the context is canceled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return errors.WrapReconError(errors.CodeCanceled, "watch canceled", ctx.Err())
	case <-timer.C:
		return nil
	}
}
