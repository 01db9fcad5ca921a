package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains run root, parameter, binary and log locations.
type Paths struct {
	RunRoot      string `toml:"run_root"`
	MasterParams string `toml:"master_params"`
	WorkerBinary string `toml:"worker_binary"`
	LogDir       string `toml:"log_dir"`
}

// Stage is one pipeline edge target: the destination queue and how many
// workers should feed it.
type Stage struct {
	Queue   string `toml:"queue"`
	Workers int    `toml:"workers"`
}

// Pipeline contains the ordered stage list.
type Pipeline struct {
	StartQueue string  `toml:"start_queue"`
	Stages     []Stage `toml:"stages"`
}

// Worker contains settings used when spawning worker processes.
type Worker struct {
	BinaryName        string   `toml:"binary_name"`
	BinarySearchPaths []string `toml:"binary_search_paths"`
	SourceFormat      string   `toml:"source_format"`
	MaxDstFiles       int      `toml:"max_dst_files"`
	ParamTemplate     string   `toml:"param_template"`
	CaptureOutput     bool     `toml:"capture_output"`
	SpawnSettleMillis int      `toml:"spawn_settle_ms"`
	ExitPollInterval  int      `toml:"exit_poll_interval"`
	PIDReadRetries    int      `toml:"pid_read_retries"`
}

// Monitor contains reconciliation loop timing and telemetry settings.
type Monitor struct {
	PollInterval        int  `toml:"poll_interval"`
	VerbosePollInterval int  `toml:"verbose_poll_interval"`
	ErrorRetryInterval  int  `toml:"error_retry_interval"`
	StartupSettle       int  `toml:"startup_settle"`
	CloseTimeout        int  `toml:"close_timeout"`
	ThroughputSamples   int  `toml:"throughput_samples"`
	MinFreeMiB          int  `toml:"min_free_mib"`
	WatchEvents         bool `toml:"watch_events"`
	History             bool `toml:"history"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for dqmon.
//
// Configuration sections by subsystem:
//   - Paths: run root, master parameter file, worker binary, logs
//   - Pipeline: start queue and ordered stages with worker targets
//   - Worker: how worker processes are parameterized and spawned
//   - Monitor: poll intervals, shutdown windows and telemetry
//   - Logging: log format and level
type Config struct {
	Paths    Paths    `toml:"paths"`
	Pipeline Pipeline `toml:"pipeline"`
	Worker   Worker   `toml:"worker"`
	Monitor  Monitor  `toml:"monitor"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		// Array tables would otherwise merge into the default stage list.
		defaultStages := cfg.Pipeline.Stages
		cfg.Pipeline.Stages = nil

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
		if len(cfg.Pipeline.Stages) == 0 {
			cfg.Pipeline.Stages = defaultStages
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// Finalize normalizes and validates a config after callers applied
// overrides (for example command-line flags).
func (c *Config) Finalize() error {
	if err := c.normalize(); err != nil {
		return err
	}
	return c.Validate()
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("dqmon.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the run root and log directory.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.RunRoot, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// PollInterval returns the sleep between reconciliation cycles for the
// given verbosity.
func (c *Config) PollInterval(verbosity int) time.Duration {
	if verbosity > 1 {
		return time.Duration(c.Monitor.VerbosePollInterval) * time.Second
	}
	return time.Duration(c.Monitor.PollInterval) * time.Second
}

// ErrorRetryInterval returns the delay after an unexpected loop error.
func (c *Config) ErrorRetryInterval() time.Duration {
	return time.Duration(c.Monitor.ErrorRetryInterval) * time.Second
}

// StartupSettle returns the delay after spawning or stopping workers.
func (c *Config) StartupSettle() time.Duration {
	return time.Duration(c.Monitor.StartupSettle) * time.Second
}

// CloseTimeout returns how long closed workers get to exit before they are killed.
func (c *Config) CloseTimeout() time.Duration {
	return time.Duration(c.Monitor.CloseTimeout) * time.Second
}

// SpawnSettle returns the pause after launching a single worker process.
func (c *Config) SpawnSettle() time.Duration {
	return time.Duration(c.Worker.SpawnSettleMillis) * time.Millisecond
}

// ExitPollInterval returns the polling interval used while waiting for a worker to exit.
func (c *Config) ExitPollInterval() time.Duration {
	return time.Duration(c.Worker.ExitPollInterval) * time.Second
}

// MonitorLockPath is the exclusive lock held by mutating commands.
func (c *Config) MonitorLockPath() string {
	return filepath.Join(c.Paths.RunRoot, "monitor.lock")
}

// LogPath is the monitor's log file inside LogDir, empty when file
// logging is disabled.
func (c *Config) LogPath() string {
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return ""
	}
	return filepath.Join(c.Paths.LogDir, "dqmon.log")
}

// HistoryPath is the throughput journal database inside the run root.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.RunRoot, "history.db")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
