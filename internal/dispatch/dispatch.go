// Package dispatch invokes feroxbuster content discovery against discovered
// web ports. Invocations are strictly sequential, in extraction order, and
// exit codes are captured per invocation instead of being discarded.
package dispatch

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/clivendon/RAD/internal/errors"
	"github.com/clivendon/RAD/internal/logging"
	"github.com/clivendon/RAD/internal/metrics"
)

// Runner executes an external command and reports its exit code. The error
// return is reserved for failures to start or be interrupted; a non-zero
// exit is reported through the code, not the error.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (int, error)
}

// ExecRunner runs commands through os/exec, streaming output to the
// terminal the way the upstream shell pipeline did.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) (int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}

// Config holds dispatcher settings.
type Config struct {
	// Binary is the feroxbuster executable.
	Binary string

	// Extensions are passed as the -x filter list.
	Extensions []string

	// OutputDir is where per-port output files are written.
	OutputDir string
}

// Result records the outcome of one feroxbuster invocation.
type Result struct {
	Port       int
	URL        string
	OutputFile string
	ExitCode   int
	Duration   time.Duration
	Err        error
}

// Dispatcher runs content discovery sequentially per port.
type Dispatcher struct {
	cfg    Config
	runner Runner
	logger *logging.Logger
}

// New creates a dispatcher that executes real commands.
func New(cfg Config) *Dispatcher {
	return NewWithRunner(cfg, ExecRunner{})
}

// NewWithRunner creates a dispatcher with a custom runner, used by tests.
func NewWithRunner(cfg Config, runner Runner) *Dispatcher {
	if cfg.Binary == "" {
		cfg.Binary = "feroxbuster"
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = []string{"txt", "html", "php"}
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "."
	}
	return &Dispatcher{
		cfg:    cfg,
		runner: runner,
		logger: logging.Default().WithComponent("dispatch"),
	}
}

// TargetURL builds the scan URL for a host and port.
func TargetURL(host string, port int) string {
	return fmt.Sprintf("http://%s:%d", host, port)
}

// OutputFile returns the per-port output file path.
func (d *Dispatcher) OutputFile(host string, port int) string {
	return filepath.Join(d.cfg.OutputDir, fmt.Sprintf("feroxbuster_%s_%d.txt", host, port))
}

// Dispatch invokes feroxbuster once per port, in order, waiting for each to
// finish before starting the next. Duplicate ports are scanned again; the
// port list arrives in extraction order and is used as-is. An empty list is
// reported and produces no invocation. A failed invocation is recorded in
// its result and does not stop the remaining ports; context cancellation
// does.
func (d *Dispatcher) Dispatch(ctx context.Context, host string, ports []int) []Result {
	m := metrics.GetGlobalMetrics()

	if len(ports) == 0 {
		d.logger.Info("no web servers to scan", "host", host)
		return nil
	}

	m.SetPipelineState(metrics.StateDispatching)
	defer m.SetPipelineState(metrics.StateIdle)

	d.logger.Info("dispatching content discovery",
		"host", host, "ports", ports, "binary", d.cfg.Binary)

	results := make([]Result, 0, len(ports))
	for _, port := range ports {
		result := d.dispatchOne(ctx, host, port)
		results = append(results, result)

		status := "success"
		if result.Err != nil {
			status = "error"
		}
		m.IncrementDispatches(status)
		m.RecordDispatchDuration(result.Duration)

		if ctx.Err() != nil {
			d.logger.Warn("dispatch interrupted", "host", host, "completed", len(results))
			break
		}
	}
	return results
}

func (d *Dispatcher) dispatchOne(ctx context.Context, host string, port int) Result {
	url := TargetURL(host, port)
	outputFile := d.OutputFile(host, port)

	args := []string{
		"--url", url,
		"-x", strings.Join(d.cfg.Extensions, ","),
		"-o", outputFile,
	}

	d.logger.InfoDispatch("starting content discovery", url, "output", outputFile)

	start := time.Now()
	exitCode, err := d.runner.Run(ctx, d.cfg.Binary, args...)
	duration := time.Since(start)

	result := Result{
		Port:       port,
		URL:        url,
		OutputFile: outputFile,
		ExitCode:   exitCode,
		Duration:   duration,
	}

	switch {
	case err != nil:
		result.Err = errors.WrapDispatchError(errors.CodeDispatchFailed,
			"scanner invocation failed", url, err)
		d.logger.ErrorDispatch("content discovery failed", url, err)
	case exitCode != 0:
		dispatchErr := errors.NewDispatchError(errors.CodeNonZeroExit,
			"scanner exited non-zero", url)
		dispatchErr.ExitCode = exitCode
		result.Err = dispatchErr
		d.logger.ErrorDispatch("content discovery exited non-zero", url, dispatchErr,
			"exit_code", exitCode)
	default:
		d.logger.InfoDispatch("content discovery finished", url,
			"output", outputFile, "duration", duration)
	}

	return result
}
