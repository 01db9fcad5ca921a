package monitor

import (
	"time"

	"dqmon/internal/pipeline"
	"dqmon/internal/procutil"
	"dqmon/internal/queuedir"
	"dqmon/internal/worker"
)

// WorkerStatus is one worker as shown to the operator.
type WorkerStatus struct {
	ID     int
	PID    int
	Alive  bool
	Src    string
	Dst    string
	Memory procutil.Memory
	Times  worker.Times
}

// QueueStatus is a queue's name and tallies.
type QueueStatus struct {
	Name   string
	Counts queuedir.Counts
}

// StageStatus groups a pipeline edge with its source queue and workers.
type StageStatus struct {
	Stage   pipeline.Stage
	Done    bool
	Source  QueueStatus
	Workers []WorkerStatus
}

// Snapshot is the full status display: stages in pipeline order, the final
// queue, workers on edges outside the pipeline, and run-wide statistics.
type Snapshot struct {
	Taken         time.Time
	Stages        []StageStatus
	Final         QueueStatus
	Unassigned    []WorkerStatus
	MaxTotalKB    int64
	MaxResidentKB int64
	DocsProcessed int64
	Throughput    Throughput
	HasThroughput bool
}

// Running counts live workers in the snapshot.
func (s Snapshot) Running() int {
	n := 0
	for _, stage := range s.Stages {
		for _, w := range stage.Workers {
			if w.Alive {
				n++
			}
		}
	}
	for _, w := range s.Unassigned {
		if w.Alive {
			n++
		}
	}
	return n
}

// Snapshot builds the status display from the current worker set and
// queue contents, updating the memory high-water marks on the way.
func (m *Monitor) Snapshot() (Snapshot, error) {
	byEdge := make(map[edge][]WorkerStatus)
	var total, resident int64
	for _, w := range m.workers {
		alive := w.IsAlive()
		status := WorkerStatus{
			ID:    w.ID,
			PID:   w.PID(),
			Alive: alive,
			Src:   w.Src(),
			Dst:   w.Dst(),
			Times: w.Times(),
		}
		if alive {
			if mem, ok := procutil.ReadMemory(w.PID()); ok {
				status.Memory = mem
				total += mem.VirtualKB
				resident += mem.ResidentKB
			}
		}
		byEdge[edgeOf(w)] = append(byEdge[edgeOf(w)], status)
	}
	m.noteMemory(total, resident)

	snap := Snapshot{Taken: m.now()}
	for _, stage := range m.pipeline.Stages() {
		key := edge{src: stage.Src, dst: stage.Dst}
		done, err := m.StageIsDone(stage.Src, stage.Dst)
		if err != nil {
			return Snapshot{}, err
		}
		source, err := queueStatus(m.root, stage.Src)
		if err != nil {
			return Snapshot{}, err
		}
		snap.Stages = append(snap.Stages, StageStatus{
			Stage:   stage,
			Done:    done,
			Source:  source,
			Workers: byEdge[key],
		})
		delete(byEdge, key)
	}
	final, err := queueStatus(m.root, m.pipeline.FinalQueue())
	if err != nil {
		return Snapshot{}, err
	}
	snap.Final = final
	for _, key := range sortedEdges(byEdge) {
		snap.Unassigned = append(snap.Unassigned, byEdge[key]...)
	}

	snap.MaxTotalKB = m.maxTotalKB
	snap.MaxResidentKB = m.maxResidentKB
	snap.DocsProcessed = m.DocsProcessed()
	snap.Throughput, snap.HasThroughput = m.Throughput()
	return snap, nil
}

func queueStatus(root, name string) (QueueStatus, error) {
	counts, err := queuedir.Open(root, name).Counts()
	if err != nil {
		return QueueStatus{}, err
	}
	return QueueStatus{Name: name, Counts: counts}, nil
}

// trackMemory updates the memory high-water marks without building a
// snapshot.
func (m *Monitor) trackMemory() {
	var total, resident int64
	for _, w := range m.workers {
		if !w.IsAlive() {
			continue
		}
		if mem, ok := procutil.ReadMemory(w.PID()); ok {
			total += mem.VirtualKB
			resident += mem.ResidentKB
		}
	}
	m.noteMemory(total, resident)
}

func (m *Monitor) noteMemory(total, resident int64) {
	m.maxTotalKB = max(m.maxTotalKB, total)
	m.maxResidentKB = max(m.maxResidentKB, resident)
}
