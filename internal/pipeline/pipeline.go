package pipeline

import (
	"errors"
	"fmt"

	"dqmon/internal/config"
)

// Target is one pipeline entry: a destination queue and how many workers
// should feed it.
type Target struct {
	Queue   string
	Workers int
}

// Stage is a pipeline edge: workers consume Src and produce Dst.
type Stage struct {
	Src     string
	Dst     string
	Workers int
}

// Label renders the edge as "src->dst" for logs and tables.
func (s Stage) Label() string {
	return s.Src + "->" + s.Dst
}

// Pipeline is an immutable ordered chain of stages starting at the start queue.
type Pipeline struct {
	start  string
	stages []Stage
}

// New builds a pipeline from the start queue and ordered targets. Each
// target's source is the previous target's queue.
func New(start string, targets []Target) (*Pipeline, error) {
	if start == "" {
		return nil, errors.New("pipeline: start queue is empty")
	}
	if len(targets) == 0 {
		return nil, errors.New("pipeline: no stages")
	}
	seen := map[string]struct{}{start: {}}
	stages := make([]Stage, 0, len(targets))
	src := start
	for i, t := range targets {
		if t.Queue == "" {
			return nil, fmt.Errorf("pipeline: stage %d has an empty queue name", i)
		}
		if _, dup := seen[t.Queue]; dup {
			return nil, fmt.Errorf("pipeline: queue %q appears more than once", t.Queue)
		}
		if t.Workers < 0 {
			return nil, fmt.Errorf("pipeline: stage %q has negative worker count %d", t.Queue, t.Workers)
		}
		seen[t.Queue] = struct{}{}
		stages = append(stages, Stage{Src: src, Dst: t.Queue, Workers: t.Workers})
		src = t.Queue
	}
	return &Pipeline{start: start, stages: stages}, nil
}

// FromConfig builds the pipeline described by cfg.
func FromConfig(cfg *config.Config) (*Pipeline, error) {
	targets := make([]Target, 0, len(cfg.Pipeline.Stages))
	for _, s := range cfg.Pipeline.Stages {
		targets = append(targets, Target{Queue: s.Queue, Workers: s.Workers})
	}
	return New(cfg.Pipeline.StartQueue, targets)
}

// Start is the name of the first source queue.
func (p *Pipeline) Start() string {
	return p.start
}

// Stages returns a copy of the ordered edges.
func (p *Pipeline) Stages() []Stage {
	out := make([]Stage, len(p.stages))
	copy(out, p.stages)
	return out
}

// FinalQueue is the destination of the last stage.
func (p *Pipeline) FinalQueue() string {
	return p.stages[len(p.stages)-1].Dst
}

// IsFinal reports whether dst is the pipeline's final queue.
func (p *Pipeline) IsFinal(dst string) bool {
	return dst == p.FinalQueue()
}

// Queues lists every queue in pipeline order, start first.
func (p *Pipeline) Queues() []string {
	out := make([]string, 0, len(p.stages)+1)
	out = append(out, p.start)
	for _, s := range p.stages {
		out = append(out, s.Dst)
	}
	return out
}
