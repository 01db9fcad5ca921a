package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"dqmon/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantRoot := filepath.Join(tempHome, ".local", "share", "dqmon", "run")
	if cfg.Paths.RunRoot != wantRoot {
		t.Fatalf("unexpected run root: got %q want %q", cfg.Paths.RunRoot, wantRoot)
	}
	if cfg.Pipeline.StartQueue != "start" {
		t.Fatalf("unexpected start queue: %q", cfg.Pipeline.StartQueue)
	}
	if len(cfg.Pipeline.Stages) != 3 {
		t.Fatalf("expected default three-stage pipeline, got %v", cfg.Pipeline.Stages)
	}
	if cfg.Pipeline.Stages[1].Queue != "parse" || cfg.Pipeline.Stages[1].Workers != 4 {
		t.Fatalf("unexpected second stage: %+v", cfg.Pipeline.Stages[1])
	}
	if cfg.Worker.MaxDstFiles != 500 {
		t.Fatalf("unexpected max dst files: %d", cfg.Worker.MaxDstFiles)
	}
	if cfg.Paths.MasterParams != "" {
		t.Fatalf("expected empty master params, got %q", cfg.Paths.MasterParams)
	}
}

func TestLoadCustomConfigReplacesStages(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dqmon.toml")
	content := `
[paths]
run_root = "` + filepath.Join(dir, "run") + `"
master_params = "` + filepath.Join(dir, "master.par") + `"

[pipeline]
start_queue = "input"

[[pipeline.stages]]
queue = "q1"
workers = 2

[[pipeline.stages]]
queue = "q2"
workers = 1

[monitor]
poll_interval = 5
watch_events = false

[logging]
format = "JSON"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected existing config at %q, got %q (exists=%v)", path, resolved, exists)
	}
	if len(cfg.Pipeline.Stages) != 2 {
		t.Fatalf("expected configured stages to replace defaults, got %v", cfg.Pipeline.Stages)
	}
	if cfg.Pipeline.StartQueue != "input" {
		t.Fatalf("unexpected start queue %q", cfg.Pipeline.StartQueue)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected lower-cased log format, got %q", cfg.Logging.Format)
	}
	if cfg.Monitor.WatchEvents {
		t.Fatal("expected watch_events override to be honoured")
	}
	if got := cfg.PollInterval(1); got != 5*time.Second {
		t.Fatalf("unexpected poll interval: %v", got)
	}
	if got := cfg.PollInterval(2); got != 3*time.Second {
		t.Fatalf("unexpected verbose poll interval: %v", got)
	}
}

func TestValidateRejectsBadPipelines(t *testing.T) {
	cases := map[string]func(*config.Config){
		"no stages":       func(c *config.Config) { c.Pipeline.Stages = nil },
		"empty queue":     func(c *config.Config) { c.Pipeline.Stages[0].Queue = "" },
		"duplicate queue": func(c *config.Config) { c.Pipeline.Stages[1].Queue = c.Pipeline.Stages[0].Queue },
		"start reused":    func(c *config.Config) { c.Pipeline.Stages[0].Queue = "start" },
		"negative count":  func(c *config.Config) { c.Pipeline.Stages[0].Workers = -1 },
		"slash in name":   func(c *config.Config) { c.Pipeline.Stages[0].Queue = "a/b" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Paths.RunRoot = t.TempDir()
			mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestValidateRejectsNonPositiveIntervals(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.RunRoot = t.TempDir()
	cfg.Monitor.PollInterval = 0
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "monitor.poll_interval") {
		t.Fatalf("expected poll interval error, got %v", err)
	}
}

func TestSampleConfigParses(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var cfg config.Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("sample config does not parse: %v", err)
	}
	if len(cfg.Pipeline.Stages) != 3 {
		t.Fatalf("expected sample to define three stages, got %d", len(cfg.Pipeline.Stages))
	}
}

func TestFinalizeAppliesOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg := config.Default()
	cfg.Paths.RunRoot = "~/runs/a"
	cfg.Logging.Level = " DEBUG "
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if !filepath.IsAbs(cfg.Paths.RunRoot) {
		t.Fatalf("expected absolute run root, got %q", cfg.Paths.RunRoot)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected log level %q", cfg.Logging.Level)
	}
	if cfg.MonitorLockPath() != filepath.Join(cfg.Paths.RunRoot, "monitor.lock") {
		t.Fatalf("unexpected lock path %q", cfg.MonitorLockPath())
	}
}
