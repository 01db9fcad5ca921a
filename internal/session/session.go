package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"dqmon/internal/config"
	"dqmon/internal/history"
	"dqmon/internal/logging"
	"dqmon/internal/monitor"
	"dqmon/internal/pipeline"
	"dqmon/internal/preflight"
	"dqmon/internal/worker"
)

// ErrLocked is returned when another supervisor holds the run root lock.
var ErrLocked = errors.New("another dqmon monitor is already running against this run root")

// Options configures Open.
type Options struct {
	Verbosity int
	// Exclusive holds monitor.lock until Close.
	Exclusive bool
	// RequireWorker fails Open when the worker binary cannot be resolved.
	RequireWorker bool
	Reporter      monitor.Reporter
	// Logger overrides the logger built from configuration.
	Logger *slog.Logger
}

// Session holds everything one command needs to drive the monitor.
type Session struct {
	cfg     *config.Config
	logger  *slog.Logger
	runID   string
	binary  string
	lock    *flock.Flock
	store   *history.Store
	monitor *monitor.Monitor
}

// Open prepares directories, logging, the lock and the monitor for cfg.
func Open(ctx context.Context, cfg *config.Config, opts Options) (*Session, error) {
	if cfg == nil {
		return nil, errors.New("session: config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	p, err := pipeline.FromConfig(cfg)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger, err = logging.NewFromConfig(cfg, logging.LevelForVerbosity(opts.Verbosity))
		if err != nil {
			return nil, fmt.Errorf("init logger: %w", err)
		}
	}
	s := &Session{cfg: cfg, runID: uuid.NewString()}
	s.logger = logger.With(logging.String(logging.FieldRunID, s.runID))

	if opts.Exclusive {
		lock := flock.New(cfg.MonitorLockPath())
		ok, err := lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("acquire lock: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("%w (lock %s)", ErrLocked, cfg.MonitorLockPath())
		}
		s.lock = lock
	}

	binary, err := preflight.WorkerBinary(cfg)
	if err != nil {
		if opts.RequireWorker {
			s.Close()
			return nil, err
		}
		binary = ""
	}
	s.binary = binary

	if cfg.Monitor.History {
		store, err := history.Open(ctx, cfg.HistoryPath())
		if err != nil {
			logging.WarnWithContext(s.logger, "throughput history unavailable",
				"history_open_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check "+cfg.HistoryPath()),
				logging.String(logging.FieldImpact, "throughput starts from zero for this session"),
			)
		} else {
			s.store = store
		}
	}

	logDependencySnapshot(s.logger, cfg, binary)

	workerOpts := worker.OptionsFromConfig(cfg, binary, s.logger)
	monitorOpts := monitor.OptionsFromConfig(cfg, p, workerOpts, opts.Verbosity)
	monitorOpts.History = s.store
	monitorOpts.RunID = s.runID
	monitorOpts.Reporter = opts.Reporter
	monitorOpts.Logger = s.logger
	m, err := monitor.New(ctx, monitorOpts)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.monitor = m
	return s, nil
}

// Monitor is the session's monitor.
func (s *Session) Monitor() *monitor.Monitor { return s.monitor }

// Logger is the session logger, tagged with the run id.
func (s *Session) Logger() *slog.Logger { return s.logger }

// RunID identifies this session in logs and the throughput journal.
func (s *Session) RunID() string { return s.runID }

// WorkerBinary is the resolved worker executable, empty when unresolved.
func (s *Session) WorkerBinary() string { return s.binary }

// Close releases the throughput journal and the run root lock.
func (s *Session) Close() error {
	var errs []error
	if s.store != nil {
		errs = append(errs, s.store.Close())
		s.store = nil
	}
	if s.lock != nil {
		if err := s.lock.Unlock(); err != nil {
			s.logger.Warn("failed to release monitor lock", logging.Error(err))
			errs = append(errs, err)
		}
		s.lock = nil
	}
	return errors.Join(errs...)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config, binary string) {
	logger.Debug("dependency snapshot",
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.String("worker_binary", binary),
		logging.Bool("worker_available", binaryAvailable(binary)),
		logging.String("master_params", cfg.Paths.MasterParams),
		logging.String("run_root", cfg.Paths.RunRoot),
		logging.Bool("history", cfg.Monitor.History),
		logging.Bool("watch_events", cfg.Monitor.WatchEvents),
	)
}

func binaryAvailable(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	_, err := exec.LookPath(name)
	return err == nil
}
