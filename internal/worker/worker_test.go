package worker_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dqmon/internal/fileutil"
	"dqmon/internal/logging"
	"dqmon/internal/queuedir"
	"dqmon/internal/testsupport"
	"dqmon/internal/worker"
)

func TestMain(m *testing.M) {
	fileutil.RetryDelay = 5 * time.Millisecond
	os.Exit(m.Run())
}

func testOptions(t *testing.T, binary string) (string, worker.Options) {
	t.Helper()
	base := t.TempDir()
	master := filepath.Join(base, "master.par")
	require.NoError(t, os.WriteFile(master, []byte("# master\n"), 0o644))
	return filepath.Join(base, "run"), worker.Options{
		Binary:           binary,
		MasterParams:     master,
		StartQueue:       "start",
		SourceFormat:     "sgm",
		MaxDstFiles:      500,
		ExitPollInterval: 20 * time.Millisecond,
		PIDReadRetries:   3,
		Logger:           logging.NewNop(),
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestStartWritesWorkerDirectory(t *testing.T) {
	root, opts := testOptions(t, testsupport.StubWorker(t, t.TempDir()))

	w, err := worker.Start(root, opts, "start", "values", false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Kill() })

	assert.Equal(t, 1, w.ID)
	assert.Equal(t, worker.Dir(root, 1), w.Dir)
	assert.Positive(t, w.PID())
	assert.Equal(t, "start", w.Src())
	assert.Equal(t, "values", w.Dst())

	par := readFile(t, filepath.Join(w.Dir, "worker.par"))
	assert.Contains(t, par, "disk_queue_src:               "+filepath.Join(root, "queue-start")+"\n")
	assert.Contains(t, par, "disk_queue_dst:               "+filepath.Join(root, "queue-values")+"\n")
	assert.Contains(t, par, "disk_queue_max_dst_files:     500\n")
	assert.Contains(t, par, "disk_queue_worker_ext:        .1\n")
	assert.Contains(t, par, "INCLUDE "+opts.MasterParams+"\n")
	assert.Contains(t, par, "OVERRIDE start_stage:         start+1\n")
	assert.Contains(t, par, "OVERRIDE end_stage:           values\n")
	assert.Contains(t, par, "OVERRIDE source_format:       sgm\n")

	assert.Equal(t, "src_queue: start\ndst_queue: values\n", readFile(t, filepath.Join(w.Dir, "queues")))
	assert.True(t, queuedir.Open(root, "start").Exists())
	assert.True(t, queuedir.Open(root, "values").Exists())

	require.Eventually(t, w.HasTelemetry, 5*time.Second, 20*time.Millisecond)
}

func TestStartFinalStageLiftsDestinationCap(t *testing.T) {
	root, opts := testOptions(t, testsupport.FailingWorker(t, t.TempDir()))

	w, err := worker.Start(root, opts, "parse", "output", true)
	require.NoError(t, err)

	par := readFile(t, filepath.Join(w.Dir, "worker.par"))
	assert.Contains(t, par, "disk_queue_max_dst_files:     0\n")
	assert.Contains(t, par, "OVERRIDE source_format:       serifxml\n")
}

func TestStartAllocatesAfterHighestID(t *testing.T) {
	root, opts := testOptions(t, testsupport.FailingWorker(t, t.TempDir()))
	require.NoError(t, os.MkdirAll(worker.Dir(root, 7), 0o755))

	w, err := worker.Start(root, opts, "start", "values", false)
	require.NoError(t, err)
	assert.Equal(t, 8, w.ID)

	next, err := worker.Start(root, opts, "start", "values", false)
	require.NoError(t, err)
	assert.Equal(t, 9, next.ID)
}

func TestStartWithoutBinaryLeavesNoDirectory(t *testing.T) {
	root, opts := testOptions(t, "")

	_, err := worker.Start(root, opts, "start", "values", false)
	require.Error(t, err)

	_, statErr := os.Stat(worker.Dir(root, 1))
	assert.True(t, os.IsNotExist(statErr))
}

func TestStartLaunchFailureRemovesDirectory(t *testing.T) {
	root, opts := testOptions(t, filepath.Join(t.TempDir(), "missing-binary"))

	_, err := worker.Start(root, opts, "start", "values", false)
	require.Error(t, err)

	_, statErr := os.Stat(worker.Dir(root, 1))
	assert.True(t, os.IsNotExist(statErr))
}

func TestCustomParamTemplate(t *testing.T) {
	root, opts := testOptions(t, testsupport.FailingWorker(t, t.TempDir()))
	tmpl := filepath.Join(t.TempDir(), "custom.tmpl")
	require.NoError(t, os.WriteFile(tmpl, []byte("src={{.SrcDir}} ext={{.WorkerExt}}\n"), 0o644))
	opts.ParamTemplate = tmpl

	w, err := worker.Start(root, opts, "start", "values", false)
	require.NoError(t, err)
	assert.Equal(t, "src="+filepath.Join(root, "queue-start")+" ext=.1\n", readFile(t, filepath.Join(w.Dir, "worker.par")))
}

func TestRenderParamsRejectsUnknownField(t *testing.T) {
	tmpl := filepath.Join(t.TempDir(), "bad.tmpl")
	require.NoError(t, os.WriteFile(tmpl, []byte("{{.NoSuchField}}\n"), 0o644))

	_, err := worker.RenderParams(tmpl, worker.Params{})
	assert.Error(t, err)
}

func TestLoadAndAll(t *testing.T) {
	root, opts := testOptions(t, testsupport.FailingWorker(t, t.TempDir()))

	first, err := worker.Start(root, opts, "start", "values", false)
	require.NoError(t, err)
	second, err := worker.Start(root, opts, "values", "parse", false)
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "worker-abc"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "queue-start"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "worker-12"), nil, 0o644))

	workers, err := worker.All(root, opts)
	require.NoError(t, err)
	require.Len(t, workers, 2)
	assert.Equal(t, first.ID, workers[0].ID)
	assert.Equal(t, second.ID, workers[1].ID)
	assert.Equal(t, "values", workers[1].Src())
	assert.Equal(t, "parse", workers[1].Dst())
	assert.Equal(t, second.PID(), workers[1].PID())

	loaded, err := worker.Load(root, first.ID, opts)
	require.NoError(t, err)
	assert.Equal(t, first.PID(), loaded.PID())

	_, err = worker.Load(root, 99, opts)
	assert.Error(t, err)
}

func TestAllOnMissingRoot(t *testing.T) {
	_, opts := testOptions(t, "")
	workers, err := worker.All(filepath.Join(t.TempDir(), "nope"), opts)
	require.NoError(t, err)
	assert.Empty(t, workers)
}

func TestExitedWorkerIsNotAlive(t *testing.T) {
	root, opts := testOptions(t, testsupport.FailingWorker(t, t.TempDir()))

	w, err := worker.Start(root, opts, "start", "values", false)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return !w.IsAlive() }, 5*time.Second, 20*time.Millisecond)
	assert.Zero(t, w.PID())
	assert.False(t, w.HasTelemetry())
}

func TestCloseBlocksUntilWorkerExits(t *testing.T) {
	root, opts := testOptions(t, testsupport.StubWorker(t, t.TempDir()))

	w, err := worker.Start(root, opts, "start", "values", false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Kill() })
	require.True(t, w.IsAlive())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, w.Close(ctx, true))
	assert.False(t, w.IsAlive())
	assert.FileExists(t, filepath.Join(w.Dir, "quit"))
}

func TestCloseGivesUpWhenContextEnds(t *testing.T) {
	stubborn := filepath.Join(t.TempDir(), "stubborn-worker")
	require.NoError(t, os.WriteFile(stubborn, []byte("#!/bin/sh\nsleep 30\n"), 0o755))
	root, opts := testOptions(t, stubborn)

	w, err := worker.Start(root, opts, "start", "values", false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Kill() })

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, w.Close(ctx, true), context.DeadlineExceeded)
	assert.True(t, w.IsAlive())
}

func TestKillAndCleanup(t *testing.T) {
	root, opts := testOptions(t, testsupport.StubWorker(t, t.TempDir()))

	w, err := worker.Start(root, opts, "start", "values", false)
	require.NoError(t, err)
	require.Positive(t, w.PID())

	require.NoError(t, w.Kill())
	assert.Zero(t, w.PID())
	assert.NoFileExists(t, filepath.Join(w.Dir, "pid"))
	require.Eventually(t, func() bool {
		reloaded, err := worker.Load(root, w.ID, opts)
		return err == nil && !reloaded.IsAlive()
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, w.Cleanup())
	assert.NoDirExists(t, w.Dir)
}

func TestStubWorkerMovesDocumentsDownstream(t *testing.T) {
	root, opts := testOptions(t, testsupport.StubWorker(t, t.TempDir()))
	src := testsupport.SeedQueue(t, root, "start", "doc-a", "doc-b")
	require.NoError(t, src.MarkDone())

	w, err := worker.Start(root, opts, "start", "values", false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Kill() })

	dst := queuedir.Open(root, "values")
	require.Eventually(t, dst.IsDone, 10*time.Second, 50*time.Millisecond)

	counts, err := dst.Counts()
	require.NoError(t, err)
	assert.Equal(t, 2, counts.Ready)
	drained, err := src.Drained()
	require.NoError(t, err)
	assert.True(t, drained)

	loaded, err := worker.Load(root, w.ID, opts)
	require.NoError(t, err)
	assert.EqualValues(t, 2, loaded.Times().Docs)
	assert.True(t, strings.HasPrefix(readFile(t, dst.Path("doc-a.ready")), "<doc>doc-a"))
}
