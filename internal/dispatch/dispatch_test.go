package dispatch

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clivendon/RAD/internal/errors"
)

// fakeRunner records invocations and replays scripted outcomes.
type fakeRunner struct {
	calls     [][]string
	exitCodes []int
	errs      []error
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (int, error) {
	call := append([]string{name}, args...)
	f.calls = append(f.calls, call)

	idx := len(f.calls) - 1
	code := 0
	if idx < len(f.exitCodes) {
		code = f.exitCodes[idx]
	}
	var err error
	if idx < len(f.errs) {
		err = f.errs[idx]
	}
	return code, err
}

func testDispatcher(runner Runner) *Dispatcher {
	return NewWithRunner(Config{
		Binary:     "feroxbuster",
		Extensions: []string{"txt", "html", "php"},
		OutputDir:  ".",
	}, runner)
}

func TestDispatchInvokesOncePerPort(t *testing.T) {
	runner := &fakeRunner{}
	d := testDispatcher(runner)

	results := d.Dispatch(context.Background(), "10.10.10.10", []int{8080, 8443})

	require.Len(t, results, 2)
	require.Len(t, runner.calls, 2)

	assert.Equal(t, []string{
		"feroxbuster",
		"--url", "http://10.10.10.10:8080",
		"-x", "txt,html,php",
		"-o", "feroxbuster_10.10.10.10_8080.txt",
	}, runner.calls[0])
	assert.Equal(t, []string{
		"feroxbuster",
		"--url", "http://10.10.10.10:8443",
		"-x", "txt,html,php",
		"-o", "feroxbuster_10.10.10.10_8443.txt",
	}, runner.calls[1])

	for _, res := range results {
		assert.NoError(t, res.Err)
		assert.Equal(t, 0, res.ExitCode)
	}
}

func TestDispatchEmptyPortsPerformsNoInvocation(t *testing.T) {
	runner := &fakeRunner{}
	d := testDispatcher(runner)

	results := d.Dispatch(context.Background(), "10.10.10.10", nil)

	assert.Nil(t, results)
	assert.Empty(t, runner.calls)
}

func TestDispatchPreservesDuplicateAndOrder(t *testing.T) {
	runner := &fakeRunner{}
	d := testDispatcher(runner)

	results := d.Dispatch(context.Background(), "host", []int{8080, 80, 8080})

	require.Len(t, results, 3)
	assert.Equal(t, 8080, results[0].Port)
	assert.Equal(t, 80, results[1].Port)
	assert.Equal(t, 8080, results[2].Port)
	require.Len(t, runner.calls, 3)
	assert.Equal(t, "http://host:8080", results[2].URL)
}

func TestDispatchCapturesExitCodes(t *testing.T) {
	runner := &fakeRunner{exitCodes: []int{0, 2}}
	d := testDispatcher(runner)

	results := d.Dispatch(context.Background(), "host", []int{80, 8080})

	require.Len(t, results, 2)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, 2, results[1].ExitCode)
	require.Error(t, results[1].Err)
	assert.True(t, errors.IsCode(results[1].Err, errors.CodeNonZeroExit))
}

func TestDispatchContinuesAfterFailure(t *testing.T) {
	runner := &fakeRunner{errs: []error{fmt.Errorf("exec: not found"), nil}}
	d := testDispatcher(runner)

	results := d.Dispatch(context.Background(), "host", []int{80, 8080})

	// The first invocation fails to start; the second still runs.
	require.Len(t, results, 2)
	require.Error(t, results[0].Err)
	assert.True(t, errors.IsCode(results[0].Err, errors.CodeDispatchFailed))
	assert.NoError(t, results[1].Err)
}

func TestDispatchStopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := &fakeRunner{}
	d := testDispatcher(runner)

	results := d.Dispatch(ctx, "host", []int{80, 8080, 8443})

	// The loop checks the context after each invocation.
	assert.Len(t, results, 1)
	assert.Len(t, runner.calls, 1)
}

func TestOutputFileRespectsOutputDir(t *testing.T) {
	d := NewWithRunner(Config{OutputDir: "/tmp/scans"}, &fakeRunner{})
	assert.Equal(t, "/tmp/scans/feroxbuster_host_8080.txt", d.OutputFile("host", 8080))
}

func TestTargetURL(t *testing.T) {
	assert.Equal(t, "http://10.0.0.1:8080", TargetURL("10.0.0.1", 8080))
}

func TestDefaultsApplied(t *testing.T) {
	d := NewWithRunner(Config{}, &fakeRunner{})
	assert.Equal(t, "feroxbuster", d.cfg.Binary)
	assert.Equal(t, []string{"txt", "html", "php"}, d.cfg.Extensions)
	assert.Equal(t, ".", d.cfg.OutputDir)
}
