package monitor

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"dqmon/internal/logging"
	"dqmon/internal/queuedir"
)

// minWakeGap bounds how often filesystem events can cut a poll sleep short.
const minWakeGap = time.Second

// WatchOnce runs one reconciliation cycle. It reports whether any stage is
// still unfinished.
func (m *Monitor) WatchOnce(ctx context.Context) (bool, error) {
	if err := m.Refresh(); err != nil {
		return false, err
	}
	if err := m.CheckAbandonedJobs(); err != nil {
		return false, err
	}
	changed, allDone, err := m.CheckPipeline(ctx)
	if err != nil {
		return false, err
	}
	m.recordThroughput(ctx)

	if m.opts.Verbosity > 0 && (changed || allDone || m.opts.Verbosity > 1) {
		snap, err := m.Snapshot()
		if err != nil {
			return false, err
		}
		m.reporter.Status(snap)
	} else {
		m.trackMemory()
	}
	return !allDone, nil
}

// Watch reconciles until every stage is done. Unexpected cycle errors are
// logged and retried; a StartupError ends the loop. Cancelling ctx stops
// monitoring without touching the workers, which keep running.
func (m *Monitor) Watch(ctx context.Context) error {
	m.logger.Info("monitoring pipeline",
		logging.String("run_root", m.root),
		logging.Int("stages", len(m.pipeline.Stages())),
	)

	var (
		events *waker
		wake   <-chan struct{}
	)
	if m.opts.WatchEvents {
		w, err := newWaker(m.root)
		if err != nil {
			logging.WarnWithContext(m.logger, "filesystem events unavailable; polling only",
				"watch_events_unavailable",
				logging.Error(err),
				logging.String(logging.FieldImpact, "state changes are noticed at the next poll"),
			)
		} else {
			defer w.Close()
			go w.run(ctx, m.logger)
			events, wake = w, w.C
		}
	}

	for {
		more, err := m.WatchOnce(ctx)
		switch {
		case err == nil:
		case ctx.Err() != nil:
			return m.interrupted(ctx)
		case errors.Is(err, ErrWorkerStartup):
			logging.ErrorWithContext(m.logger, "worker startup failed", "worker_startup_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the worker binary and master parameter file"),
			)
			m.finish()
			return err
		default:
			logging.ErrorWithContext(m.logger, "monitor cycle failed; retrying", "monitor_cycle_failed",
				logging.Error(err),
				logging.Duration("retry_in", m.opts.ErrorRetryInterval),
				logging.String(logging.FieldErrorHint, "check run root permissions and free space"),
			)
			if err := sleepCtx(ctx, m.opts.ErrorRetryInterval); err != nil {
				return m.interrupted(ctx)
			}
			continue
		}
		if !more {
			m.logger.Info("pipeline finished", logging.Int64("documents", m.DocsProcessed()))
			m.finish()
			return nil
		}
		if events != nil {
			events.trackQueues(m.root)
		}
		if err := m.pause(ctx, m.opts.PollInterval, wake); err != nil {
			return m.interrupted(ctx)
		}
	}
}

// pause sleeps for d, or until wake fires but no sooner than minWakeGap.
func (m *Monitor) pause(ctx context.Context, d time.Duration, wake <-chan struct{}) error {
	started := time.Now()
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	case <-wake:
		m.logger.Debug("woken by filesystem event")
		return sleepCtx(ctx, minWakeGap-time.Since(started))
	}
}

func (m *Monitor) finish() {
	if m.opts.Verbosity < 0 {
		return
	}
	snap, err := m.Snapshot()
	if err != nil {
		m.logger.Warn("final status unavailable", logging.Error(err))
	} else {
		m.reporter.Status(snap)
	}
	failures, err := m.Failures()
	if err != nil {
		m.logger.Warn("failure report unavailable", logging.Error(err))
		return
	}
	m.reporter.Failures(failures)
}

// interrupted reports how many workers outlive the monitor and returns the
// context's error.
func (m *Monitor) interrupted(ctx context.Context) error {
	running := 0
	if err := m.Refresh(); err == nil {
		running = m.running()
	}
	m.logger.Info("monitoring interrupted", logging.Int("running", running))
	if running > 0 {
		m.reporter.Interrupted(running)
	}
	return ctx.Err()
}

// waker turns the filesystem events that matter to reconciliation into a
// wake signal: a done sentinel or gave-up document appearing in a queue,
// or a worker directory disappearing from the run root.
type waker struct {
	watcher *fsnotify.Watcher
	watched map[string]struct{}
	C       chan struct{}
}

func newWaker(root string) (*waker, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(root); err != nil {
		_ = watcher.Close()
		return nil, err
	}
	return &waker{
		watcher: watcher,
		watched: map[string]struct{}{root: {}},
		C:       make(chan struct{}, 1),
	}, nil
}

func (w *waker) Close() error {
	return w.watcher.Close()
}

// trackQueues adds a watch for every queue directory not yet watched.
func (w *waker) trackQueues(root string) {
	queues, err := queuedir.List(root)
	if err != nil {
		return
	}
	dirs := make([]string, 0, len(queues))
	for _, q := range queues {
		dirs = append(dirs, q.Dir)
	}
	w.track(dirs)
}

func (w *waker) track(dirs []string) {
	for _, dir := range dirs {
		if _, ok := w.watched[dir]; ok {
			continue
		}
		if err := w.watcher.Add(dir); err == nil {
			w.watched[dir] = struct{}{}
		}
	}
}

func (w *waker) run(ctx context.Context, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !relevantEvent(event) {
				continue
			}
			logger.Debug("filesystem event", logging.String("event", event.String()))
			select {
			case w.C <- struct{}{}:
			default:
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Debug("filesystem watch error", logging.Error(err))
		}
	}
}

func relevantEvent(event fsnotify.Event) bool {
	base := filepath.Base(event.Name)
	switch {
	case event.Has(fsnotify.Create):
		return base == queuedir.DoneSentinel || strings.HasSuffix(base, queuedir.SuffixGaveUp)
	case event.Has(fsnotify.Remove):
		return strings.HasPrefix(base, "worker-")
	}
	return false
}
