package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"dqmon/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields, writes an empty master parameter file, keeps
// every interval short and disables throughput history.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.RunRoot = filepath.Join(base, "run")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.MasterParams = filepath.Join(base, "master.par")
	cfgVal.Pipeline.StartQueue = "start"
	cfgVal.Pipeline.Stages = []config.Stage{
		{Queue: "values", Workers: 1},
		{Queue: "parse", Workers: 2},
		{Queue: "output", Workers: 1},
	}
	cfgVal.Worker.SpawnSettleMillis = 0
	cfgVal.Worker.CaptureOutput = false
	cfgVal.Monitor.PollInterval = 1
	cfgVal.Monitor.VerbosePollInterval = 1
	cfgVal.Monitor.ErrorRetryInterval = 1
	cfgVal.Monitor.StartupSettle = 0
	cfgVal.Monitor.CloseTimeout = 10
	cfgVal.Monitor.MinFreeMiB = 0
	cfgVal.Monitor.WatchEvents = false
	cfgVal.Monitor.History = false

	if err := os.WriteFile(cfgVal.Paths.MasterParams, []byte("# master\n"), 0o644); err != nil {
		t.Fatalf("write master params: %v", err)
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithStages replaces the pipeline with the given start queue and stages.
func WithStages(start string, stages ...config.Stage) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.StartQueue = start
		b.cfg.Pipeline.Stages = stages
	}
}

// WithStubWorker installs the cooperative stub worker and points the config
// at it.
func WithStubWorker() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.WorkerBinary = StubWorker(b.t, filepath.Join(b.baseDir, "bin"))
	}
}

// WithFailingWorker installs a worker binary that exits immediately.
func WithFailingWorker() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.WorkerBinary = FailingWorker(b.t, filepath.Join(b.baseDir, "bin"))
	}
}

// WithHistory enables the throughput history database in the run root.
func WithHistory() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Monitor.History = true
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, the default worker binary name
// is stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{b.cfg.Worker.BinaryName}
		}
		binDir := filepath.Join(b.baseDir, "path-bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.RunRoot)
}
