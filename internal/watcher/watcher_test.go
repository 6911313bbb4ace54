package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clivendon/RAD/internal/errors"
	"github.com/clivendon/RAD/internal/nmapout"
)

const doneNoWeb = `22/tcp open ssh
Nmap done: 1 IP address (1 host up) scanned in 4.2 seconds
`

const doneTwoWeb = `22/tcp   open ssh
8080/tcp open http
8443/tcp open ssl/http
Nmap done: 1 IP address (1 host up) scanned in 9.1 seconds
`

func testWatcher(file string) *Watcher {
	return New(Config{
		File:                 file,
		PollIntervalWaiting:  10 * time.Millisecond,
		PollIntervalScanning: 10 * time.Millisecond,
	})
}

type watchResult struct {
	report nmapout.Report
	err    error
}

func watchAsync(ctx context.Context, w *Watcher) chan watchResult {
	results := make(chan watchResult, 1)
	go func() {
		report, err := w.Watch(ctx)
		results <- watchResult{report, err}
	}()
	return results
}

func TestWatchWaitsForFileCreation(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "nmap_10.10.10.10.txt")

	w := testWatcher(file)
	results := watchAsync(context.Background(), w)

	// The loop must not proceed while the file is absent.
	select {
	case res := <-results:
		t.Fatalf("Watch returned before the file existed: %+v", res)
	case <-time.After(60 * time.Millisecond):
	}
	assert.Equal(t, StateWaiting, w.State())

	require.NoError(t, os.WriteFile(file, []byte(doneNoWeb), 0o600))

	// After creation it must proceed within roughly one poll interval.
	select {
	case res := <-results:
		require.NoError(t, res.err)
		assert.True(t, res.report.Done)
		assert.Empty(t, res.report.WebPorts)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after the file was created")
	}
}

func TestWatchCompletionWithNoWebPorts(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "nmap.txt")
	require.NoError(t, os.WriteFile(file, []byte(doneNoWeb), 0o600))

	w := testWatcher(file)
	report, err := w.Watch(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Done)
	assert.False(t, report.HasWebPorts())
	assert.Equal(t, StateDone, w.State())
}

func TestWatchCompletionWithWebPorts(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "nmap.txt")
	require.NoError(t, os.WriteFile(file, []byte(doneTwoWeb), 0o600))

	w := testWatcher(file)
	report, err := w.Watch(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Done)
	assert.Equal(t, []int{8080, 8443}, report.WebPorts)
}

func TestWatchPollsUntilMarkerAppears(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "nmap.txt")
	require.NoError(t, os.WriteFile(file, []byte("8080/tcp open http\n"), 0o600))

	w := testWatcher(file)
	results := watchAsync(context.Background(), w)

	// Marker absent: loop keeps scanning and exposes ports-so-far.
	assert.Eventually(t, func() bool {
		ports := w.PortsSoFar()
		return w.State() == StateScanning && len(ports) == 1 && ports[0] == 8080
	}, 2*time.Second, 5*time.Millisecond)

	select {
	case res := <-results:
		t.Fatalf("Watch returned before the completion marker: %+v", res)
	default:
	}

	// Append the marker; the loop must terminate on a later tick.
	f, err := os.OpenFile(file, os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = f.WriteString("Nmap done: 1 IP address\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	select {
	case res := <-results:
		require.NoError(t, res.err)
		assert.True(t, res.report.Done)
		assert.Equal(t, []int{8080}, res.report.WebPorts)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not terminate after the marker appeared")
	}
}

func TestWatchPreservesDuplicatePorts(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "nmap.txt")
	content := "8080/tcp open http\n8080/tcp open http\nNmap done: done\n"
	require.NoError(t, os.WriteFile(file, []byte(content), 0o600))

	w := testWatcher(file)
	report, err := w.Watch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{8080, 8080}, report.WebPorts)
}

func TestWatchCancellation(t *testing.T) {
	t.Run("while waiting for the file", func(t *testing.T) {
		dir := t.TempDir()
		w := testWatcher(filepath.Join(dir, "never.txt"))

		ctx, cancel := context.WithCancel(context.Background())
		results := watchAsync(ctx, w)
		cancel()

		select {
		case res := <-results:
			require.Error(t, res.err)
			assert.True(t, errors.IsCode(res.err, errors.CodeCanceled))
		case <-time.After(2 * time.Second):
			t.Fatal("Watch did not return after cancellation")
		}
	})

	t.Run("while scanning", func(t *testing.T) {
		dir := t.TempDir()
		file := filepath.Join(dir, "nmap.txt")
		require.NoError(t, os.WriteFile(file, []byte("80/tcp open http\n"), 0o600))

		w := testWatcher(file)
		ctx, cancel := context.WithCancel(context.Background())
		results := watchAsync(ctx, w)

		assert.Eventually(t, func() bool {
			return w.State() == StateScanning
		}, 2*time.Second, 5*time.Millisecond)
		cancel()

		select {
		case res := <-results:
			require.Error(t, res.err)
		case <-time.After(2 * time.Second):
			t.Fatal("Watch did not return after cancellation")
		}
	})
}

func TestDefaultIntervalsApplied(t *testing.T) {
	w := New(Config{File: "x"})
	assert.Equal(t, defaultWaitingInterval, w.cfg.PollIntervalWaiting)
	assert.Equal(t, defaultScanningInterval, w.cfg.PollIntervalScanning)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "waiting", StateWaiting.String())
	assert.Equal(t, "scanning", StateScanning.String())
	assert.Equal(t, "done", StateDone.String())
	assert.Equal(t, "unknown", State(99).String())
}
