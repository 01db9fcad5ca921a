package monitor

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"dqmon/internal/logging"
	"dqmon/internal/queuedir"
)

// Failure lists the documents a queue gave up on.
type Failure struct {
	Queue string
	Docs  []string
}

// Failures lists gave-up documents for every queue under the run root that
// has any, sorted by queue name.
func (m *Monitor) Failures() ([]Failure, error) {
	queues, err := queuedir.List(m.root)
	if err != nil {
		return nil, err
	}
	var failures []Failure
	for _, q := range queues {
		docs, err := q.GaveUp()
		if err != nil {
			return nil, err
		}
		if len(docs) > 0 {
			failures = append(failures, Failure{Queue: q.Name, Docs: docs})
		}
	}
	return failures, nil
}

// Show recovers abandoned work and returns the current status without
// starting or stopping anything.
func (m *Monitor) Show() (Snapshot, error) {
	if err := m.Refresh(); err != nil {
		return Snapshot{}, err
	}
	if err := m.CheckAbandonedJobs(); err != nil {
		return Snapshot{}, err
	}
	return m.Snapshot()
}

// StartOnce runs a single reconciliation pass and returns the resulting
// status. Workers already running are left alone.
func (m *Monitor) StartOnce(ctx context.Context) (Snapshot, error) {
	if err := m.Refresh(); err != nil {
		return Snapshot{}, err
	}
	if err := m.CheckAbandonedJobs(); err != nil {
		return Snapshot{}, err
	}
	if _, _, err := m.CheckPipeline(ctx); err != nil {
		return Snapshot{}, err
	}
	return m.Snapshot()
}

// CloseAll asks every worker to quit, waits for them (killing any that
// outlast the close timeout) and, with cleanup, removes their directories.
// Abandoned claims are recovered afterwards. It returns how many workers
// were running.
func (m *Monitor) CloseAll(ctx context.Context, cleanup bool) (int, error) {
	if err := m.Refresh(); err != nil {
		return 0, err
	}
	if len(m.workers) == 0 {
		m.logger.Info("no workers found")
		return 0, nil
	}
	running := m.running()
	m.logger.Info("sending exit signal to workers", logging.Int("running", running))
	for _, w := range m.workers {
		if err := w.Close(ctx, false); err != nil {
			return running, err
		}
	}

	waitCtx := ctx
	if m.opts.CloseTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, m.opts.CloseTimeout)
		defer cancel()
	}
	var g errgroup.Group
	for _, w := range m.workers {
		g.Go(func() error {
			if err := w.Close(waitCtx, true); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				m.logger.Warn("worker did not exit in time; killing", logging.Int(logging.FieldWorkerID, w.ID))
				if err := w.Kill(); err != nil {
					return err
				}
			}
			if cleanup {
				return w.Cleanup()
			}
			return nil
		})
	}
	err := g.Wait()
	return running, errors.Join(err, m.recoverAfter())
}

// KillAll kills every worker immediately and, with cleanup, removes their
// directories. Abandoned claims are recovered afterwards. It returns how
// many workers were running.
func (m *Monitor) KillAll(cleanup bool) (int, error) {
	if err := m.Refresh(); err != nil {
		return 0, err
	}
	if len(m.workers) == 0 {
		m.logger.Info("no workers found")
		return 0, nil
	}
	running := m.running()
	m.logger.Info("killing workers", logging.Int("running", running))

	var g errgroup.Group
	for _, w := range m.workers {
		g.Go(func() error {
			if cleanup {
				return w.Cleanup()
			}
			return w.Kill()
		})
	}
	err := g.Wait()
	return running, errors.Join(err, m.recoverAfter())
}

func (m *Monitor) recoverAfter() error {
	if err := m.Refresh(); err != nil {
		return err
	}
	return m.CheckAbandonedJobs()
}
