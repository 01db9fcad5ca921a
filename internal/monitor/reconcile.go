package monitor

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"dqmon/internal/logging"
	"dqmon/internal/pipeline"
	"dqmon/internal/queuedir"
	"dqmon/internal/worker"
)

// ErrWorkerStartup reports that the worker binary cannot start at all.
var ErrWorkerStartup = errors.New("worker binary could not start")

// StartupError names the stage whose workers all died without ever writing
// telemetry. It is not retried.
type StartupError struct {
	Src string
	Dst string
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("workers could not start up between queues: %s %s", e.Src, e.Dst)
}

func (e *StartupError) Unwrap() error { return ErrWorkerStartup }

type edge struct {
	src string
	dst string
}

func edgeOf(w *worker.Worker) edge {
	return edge{src: w.Src(), dst: w.Dst()}
}

// CheckAbandonedJobs returns claims held by dead workers to their queues
// and deletes their partial outputs.
func (m *Monitor) CheckAbandonedJobs() error {
	alive := m.liveIDs()
	queues, err := queuedir.List(m.root)
	if err != nil {
		return err
	}
	var errs []error
	for _, q := range queues {
		recovered, err := q.Recover(func(id int) bool { return alive[id] })
		for _, r := range recovered {
			m.logger.Info("recovered abandoned document",
				logging.String(logging.FieldQueue, r.Queue),
				logging.String(logging.FieldDocument, r.Doc),
				logging.Int(logging.FieldWorkerID, r.WorkerID),
				logging.String("action", string(r.Action)),
			)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// StageIsDone reports whether both queues of src->dst carry the done
// sentinel and src has nothing ready, failed, claimed or being written.
func (m *Monitor) StageIsDone(src, dst string) (bool, error) {
	srcQ, dstQ := queuedir.Open(m.root, src), queuedir.Open(m.root, dst)
	for _, q := range []queuedir.Queue{srcQ, dstQ} {
		if !q.Exists() || !q.IsDone() {
			return false, nil
		}
	}
	return srcQ.Drained()
}

// CheckPipeline starts and closes workers until every stage runs its
// configured count, or none once the stage is done. Workers bound to edges
// outside the pipeline are closed. It reports whether anything changed and
// whether every stage is finished.
func (m *Monitor) CheckPipeline(ctx context.Context) (changed, allDone bool, err error) {
	live := make(map[edge][]*worker.Worker)
	dead := make(map[edge][]*worker.Worker)
	for _, w := range m.workers {
		if w.IsAlive() {
			live[edgeOf(w)] = append(live[edgeOf(w)], w)
		} else {
			dead[edgeOf(w)] = append(dead[edgeOf(w)], w)
		}
	}

	allDone = true
	var closed []*worker.Worker
	for _, stage := range m.pipeline.Stages() {
		key := edge{src: stage.Src, dst: stage.Dst}
		done, err := m.StageIsDone(stage.Src, stage.Dst)
		if err != nil {
			return changed, false, err
		}
		want := stage.Workers
		if done {
			want = 0
		} else if want > 0 {
			allDone = false
			if neverStarted(dead[key]) {
				return changed, false, &StartupError{Src: stage.Src, Dst: stage.Dst}
			}
		}

		running := live[key]
		for i := len(running); i < want; i++ {
			w, err := m.startWorker(stage)
			if err != nil {
				return changed, false, err
			}
			m.workers = append(m.workers, w)
			changed = true
		}
		for _, w := range surplus(running, want) {
			m.logger.Info("stopping surplus worker",
				logging.Int(logging.FieldWorkerID, w.ID),
				logging.String(logging.FieldStage, stage.Label()),
			)
			if err := w.Close(ctx, false); err != nil {
				return changed, false, err
			}
			closed = append(closed, w)
		}
		delete(live, key)
	}

	for _, key := range sortedEdges(live) {
		for _, w := range live[key] {
			m.logger.Info("stopping worker outside pipeline",
				logging.Int(logging.FieldWorkerID, w.ID),
				logging.String(logging.FieldStage, key.src+"->"+key.dst),
			)
			if err := w.Close(ctx, false); err != nil {
				return changed, false, err
			}
			closed = append(closed, w)
		}
	}

	if len(closed) > 0 {
		changed = true
		m.logger.Info("waiting for closed workers to exit", logging.Int("workers", len(closed)))
		if err := m.awaitClosed(ctx, closed); err != nil {
			return changed, allDone, err
		}
	}
	if changed {
		if err := sleepCtx(ctx, m.opts.StartupSettle); err != nil {
			return changed, allDone, err
		}
	}
	return changed, allDone, nil
}

func (m *Monitor) startWorker(stage pipeline.Stage) (*worker.Worker, error) {
	m.logger.Info("starting worker", logging.String(logging.FieldStage, stage.Label()))
	w, err := worker.Start(m.root, m.opts.Worker, stage.Src, stage.Dst, m.pipeline.IsFinal(stage.Dst))
	if err != nil {
		return nil, fmt.Errorf("start worker for %s: %w", stage.Label(), err)
	}
	return w, nil
}

// neverStarted reports whether there are dead workers and none of them
// ever wrote telemetry.
func neverStarted(dead []*worker.Worker) bool {
	if len(dead) == 0 {
		return false
	}
	for _, w := range dead {
		if w.HasTelemetry() {
			return false
		}
	}
	return true
}

func surplus(running []*worker.Worker, want int) []*worker.Worker {
	if len(running) <= want {
		return nil
	}
	return running[want:]
}

func sortedEdges[V any](m map[edge]V) []edge {
	keys := make([]edge, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].src != keys[j].src {
			return keys[i].src < keys[j].src
		}
		return keys[i].dst < keys[j].dst
	})
	return keys
}

// awaitClosed waits for closed workers to exit. Workers still running when
// the close timeout expires are killed.
func (m *Monitor) awaitClosed(ctx context.Context, closed []*worker.Worker) error {
	waitCtx := ctx
	if m.opts.CloseTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, m.opts.CloseTimeout)
		defer cancel()
	}
	var errs []error
	for _, w := range closed {
		if err := w.Close(waitCtx, true); err == nil {
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logging.WarnWithContext(m.logger, "worker ignored quit request; killing",
			"worker_close_timeout",
			logging.Int(logging.FieldWorkerID, w.ID),
			logging.Duration("timeout", m.opts.CloseTimeout),
			logging.String(logging.FieldErrorHint, "inspect the worker output in its directory"),
			logging.String(logging.FieldImpact, "the worker's in-flight document is requeued"),
		)
		if err := w.Kill(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
