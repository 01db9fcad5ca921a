package queuedir

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// RecoveryAction says what Recover did with an abandoned file.
type RecoveryAction string

const (
	// Requeued means an abandoned working claim was renamed back to ready.
	Requeued RecoveryAction = "requeued"
	// Discarded means a partial write of a dead worker was deleted.
	Discarded RecoveryAction = "discarded"
)

// Recovery describes one abandoned file handled by Recover.
type Recovery struct {
	Queue    string
	Doc      string
	WorkerID int
	Action   RecoveryAction
}

// Recover returns work abandoned by dead workers to the queue. Working
// claims held by an id for which alive returns false become <doc>.ready
// again; their partial .writing.xml outputs are deleted. Claims without a
// worker id have no owner and are always recovered. Files that vanish
// while recovering (the owner finished after all) are skipped.
func (q Queue) Recover(alive func(workerID int) bool) ([]Recovery, error) {
	names, err := q.fileNames()
	if err != nil {
		return nil, err
	}
	var (
		recovered []Recovery
		errs      []error
	)
	for _, name := range names {
		e, ok := Parse(name)
		if !ok {
			e, ok = parseOrphan(name)
		}
		if !ok || (e.State != StateWorking && e.State != StateWriting) {
			continue
		}
		if e.WorkerID != 0 && alive(e.WorkerID) {
			continue
		}
		rec := Recovery{Queue: q.Name, Doc: e.Doc, WorkerID: e.WorkerID}
		var opErr error
		if e.State == StateWorking {
			rec.Action = Requeued
			opErr = os.Rename(q.Path(e.Name), q.Path(readyName(e.Doc)))
		} else {
			rec.Action = Discarded
			opErr = os.Remove(q.Path(e.Name))
		}
		if opErr != nil {
			if errors.Is(opErr, fs.ErrNotExist) {
				continue
			}
			errs = append(errs, fmt.Errorf("recover %s in %s: %w", e.Name, q.Name, opErr))
			continue
		}
		recovered = append(recovered, rec)
	}
	return recovered, errors.Join(errs...)
}
