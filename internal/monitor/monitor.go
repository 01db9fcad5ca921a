package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"dqmon/internal/config"
	"dqmon/internal/history"
	"dqmon/internal/logging"
	"dqmon/internal/pipeline"
	"dqmon/internal/worker"
)

const defaultThroughputSamples = 5000

// Reporter receives what an operator should see. The command layer renders
// it; tests record it.
type Reporter interface {
	Status(Snapshot)
	Failures([]Failure)
	Interrupted(running int)
}

// Options configures a Monitor.
type Options struct {
	Root               string
	Pipeline           *pipeline.Pipeline
	Worker             worker.Options
	Verbosity          int
	PollInterval       time.Duration
	ErrorRetryInterval time.Duration
	StartupSettle      time.Duration
	CloseTimeout       time.Duration
	ThroughputSamples  int
	WatchEvents        bool
	History            *history.Store
	RunID              string
	Reporter           Reporter
	Logger             *slog.Logger
}

// OptionsFromConfig derives monitor options from configuration. Reporter,
// History, RunID and Logger are left for the caller.
func OptionsFromConfig(cfg *config.Config, p *pipeline.Pipeline, workerOpts worker.Options, verbosity int) Options {
	return Options{
		Root:               cfg.Paths.RunRoot,
		Pipeline:           p,
		Worker:             workerOpts,
		Verbosity:          verbosity,
		PollInterval:       cfg.PollInterval(verbosity),
		ErrorRetryInterval: cfg.ErrorRetryInterval(),
		StartupSettle:      cfg.StartupSettle(),
		CloseTimeout:       cfg.CloseTimeout(),
		ThroughputSamples:  cfg.Monitor.ThroughputSamples,
		WatchEvents:        cfg.Monitor.WatchEvents,
	}
}

// Monitor reconciles the workers under one run root against a pipeline.
type Monitor struct {
	opts     Options
	root     string
	pipeline *pipeline.Pipeline
	reporter Reporter
	logger   *slog.Logger
	now      func() time.Time

	workers []*worker.Worker

	samples       []history.Sample
	appended      int
	maxTotalKB    int64
	maxResidentKB int64
}

// New validates opts and returns a monitor. When a history store is
// configured the throughput buffer is seeded from it.
func New(ctx context.Context, opts Options) (*Monitor, error) {
	if opts.Root == "" {
		return nil, errors.New("monitor: run root is required")
	}
	if opts.Pipeline == nil {
		return nil, errors.New("monitor: pipeline is required")
	}
	if opts.ThroughputSamples <= 0 {
		opts.ThroughputSamples = defaultThroughputSamples
	}
	reporter := opts.Reporter
	if reporter == nil {
		reporter = nopReporter{}
	}
	logger := logging.NewComponentLogger(opts.Logger, "monitor")
	if opts.RunID != "" {
		logger = logger.With(logging.String(logging.FieldRunID, opts.RunID))
	}
	if opts.Worker.Logger == nil {
		opts.Worker.Logger = opts.Logger
	}
	m := &Monitor{
		opts:     opts,
		root:     opts.Root,
		pipeline: opts.Pipeline,
		reporter: reporter,
		logger:   logger,
		now:      time.Now,
	}
	if opts.History != nil {
		recent, err := opts.History.Recent(ctx, opts.ThroughputSamples)
		if err != nil {
			return nil, fmt.Errorf("seed throughput: %w", err)
		}
		m.samples = recent
	}
	return m, nil
}

// Refresh rebuilds the worker set from the run root.
func (m *Monitor) Refresh() error {
	workers, err := worker.All(m.root, m.opts.Worker)
	if err != nil {
		return err
	}
	m.workers = workers
	return nil
}

func (m *Monitor) liveIDs() map[int]bool {
	alive := make(map[int]bool, len(m.workers))
	for _, w := range m.workers {
		if w.IsAlive() {
			alive[w.ID] = true
		}
	}
	return alive
}

func (m *Monitor) running() int {
	n := 0
	for _, w := range m.workers {
		if w.IsAlive() {
			n++
		}
	}
	return n
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type nopReporter struct{}

func (nopReporter) Status(Snapshot)    {}
func (nopReporter) Failures([]Failure) {}
func (nopReporter) Interrupted(int)    {}
