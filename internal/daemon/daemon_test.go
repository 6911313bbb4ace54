package daemon

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clivendon/RAD/internal/config"
	"github.com/clivendon/RAD/internal/db"
	"github.com/clivendon/RAD/internal/errors"
)

const completedOutput = `# Nmap 7.94 scan initiated
Nmap scan report for 10.10.10.10
PORT     STATE SERVICE
22/tcp   open  ssh
80/tcp   open  http
8080/tcp open  http-proxy
Nmap done: 1 IP address (1 host up) scanned in 12.04 seconds
`

type recordedCall struct {
	name string
	args []string
}

type fakeRunner struct {
	mu       sync.Mutex
	calls    []recordedCall
	exitCode int
}

func (r *fakeRunner) Run(_ context.Context, name string, args ...string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, recordedCall{name: name, args: args})
	return r.exitCode, nil
}

func (r *fakeRunner) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func testConfig(t *testing.T, watchFile string) *config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.Target = "10.10.10.10"
	cfg.Watch.File = watchFile
	cfg.Watch.PollIntervalWaiting = config.Duration(10 * time.Millisecond)
	cfg.Watch.PollIntervalScanning = config.Duration(10 * time.Millisecond)
	// LookPath must succeed for the preflight check; the fake runner does
	// the actual "execution".
	cfg.Ferox.Binary = "true"
	cfg.Ferox.OutputDir = t.TempDir()
	return cfg
}

func testStore(t *testing.T) *db.DB {
	t.Helper()

	store, err := db.Connect(context.Background(), db.Config{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestWatchAndDispatch(t *testing.T) {
	watchFile := filepath.Join(t.TempDir(), "nmap_10.10.10.10.txt")
	require.NoError(t, os.WriteFile(watchFile, []byte(completedOutput), 0o600))

	cfg := testConfig(t, watchFile)
	store := testStore(t)

	d := New(cfg, store)
	runner := &fakeRunner{}
	d.SetRunner(runner)

	require.NoError(t, d.WatchAndDispatch(context.Background()))

	// One invocation per web port, in extraction order.
	require.Equal(t, 2, runner.callCount())
	assert.Equal(t, "true", runner.calls[0].name)
	assert.Contains(t, runner.calls[0].args, "http://10.10.10.10:80")
	assert.Contains(t, runner.calls[1].args, "http://10.10.10.10:8080")

	ctx := context.Background()
	runs, err := store.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, db.RunStatusSuccess, runs[0].Status)
	assert.Equal(t, 2, runs[0].WebPorts)
	require.NotNil(t, runs[0].FinishedAt)

	dispatches, err := store.ListDispatches(ctx, runs[0].ID)
	require.NoError(t, err)
	assert.Len(t, dispatches, 2)
}

func TestWatchAndDispatchNoWebServers(t *testing.T) {
	watchFile := filepath.Join(t.TempDir(), "out.txt")
	content := "22/tcp open ssh\nNmap done: 1 IP address scanned\n"
	require.NoError(t, os.WriteFile(watchFile, []byte(content), 0o600))

	cfg := testConfig(t, watchFile)
	store := testStore(t)

	d := New(cfg, store)
	runner := &fakeRunner{}
	d.SetRunner(runner)

	require.NoError(t, d.WatchAndDispatch(context.Background()))

	assert.Equal(t, 0, runner.callCount())

	runs, err := store.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, db.RunStatusNoWebServers, runs[0].Status)
}

func TestWatchAndDispatchNonZeroExit(t *testing.T) {
	watchFile := filepath.Join(t.TempDir(), "out.txt")
	content := "80/tcp open http\nNmap done: 1 IP address scanned\n"
	require.NoError(t, os.WriteFile(watchFile, []byte(content), 0o600))

	cfg := testConfig(t, watchFile)
	store := testStore(t)

	d := New(cfg, store)
	d.SetRunner(&fakeRunner{exitCode: 2})

	require.NoError(t, d.WatchAndDispatch(context.Background()))

	ctx := context.Background()
	runs, err := store.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, db.RunStatusFailed, runs[0].Status)

	dispatches, err := store.ListDispatches(ctx, runs[0].ID)
	require.NoError(t, err)
	require.Len(t, dispatches, 1)
	assert.Equal(t, 2, dispatches[0].ExitCode)
	assert.NotEmpty(t, dispatches[0].Error)
}

func TestRunRejectsInvalidTarget(t *testing.T) {
	cfg := testConfig(t, filepath.Join(t.TempDir(), "out.txt"))
	cfg.Target = "not a target!"

	d := New(cfg, testStore(t))
	d.SetRunner(&fakeRunner{})

	err := d.WatchAndDispatch(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeTargetInvalid))
}

func TestRunRejectsMissingTool(t *testing.T) {
	cfg := testConfig(t, filepath.Join(t.TempDir(), "out.txt"))
	cfg.Ferox.Binary = "definitely-not-installed-anywhere"

	d := New(cfg, testStore(t))

	err := d.WatchAndDispatch(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeToolMissing))
}

func TestOverlappingRunSkipped(t *testing.T) {
	watchFile := filepath.Join(t.TempDir(), "never-created.txt")

	cfg := testConfig(t, watchFile)
	store := testStore(t)

	d := New(cfg, store)
	d.SetRunner(&fakeRunner{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		close(started)
		done <- d.WatchAndDispatch(ctx)
	}()
	<-started

	// Wait until the first run holds the running flag.
	require.Eventually(t, func() bool {
		return d.Status().State != "idle"
	}, time.Second, 5*time.Millisecond)

	// A concurrent run is skipped without error.
	require.NoError(t, d.WatchAndDispatch(ctx))

	cancel()
	err := <-done
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeCanceled))
}

func TestStatusIdleBeforeRun(t *testing.T) {
	cfg := testConfig(t, "out.txt")
	d := New(cfg, testStore(t))

	status := d.Status()
	assert.Equal(t, "idle", status.State)
	assert.Equal(t, "10.10.10.10", status.Target)
	assert.Equal(t, "out.txt", status.WatchFile)
	assert.Nil(t, status.LastRun)
}
