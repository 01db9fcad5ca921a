package worker

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"dqmon/internal/config"
	"dqmon/internal/fileutil"
	"dqmon/internal/logging"
	"dqmon/internal/procutil"
)

const (
	dirPrefix     = "worker-"
	parFile       = "worker.par"
	pidFile       = "pid"
	queuesFile    = "queues"
	timesFile     = "times"
	quitFile      = "quit"
	outputFile    = "out.txt"
	timesRetries  = 1
	cleanupRetry  = time.Second
	defaultPIDTry = 3
)

// Options configures how workers are spawned and inspected.
type Options struct {
	Binary           string
	MasterParams     string
	StartQueue       string
	SourceFormat     string
	MaxDstFiles      int
	ParamTemplate    string
	CaptureOutput    bool
	SpawnSettle      time.Duration
	ExitPollInterval time.Duration
	PIDReadRetries   int
	Logger           *slog.Logger
}

// OptionsFromConfig derives worker options from configuration and the
// resolved worker binary.
func OptionsFromConfig(cfg *config.Config, binary string, logger *slog.Logger) Options {
	return Options{
		Binary:           binary,
		MasterParams:     cfg.Paths.MasterParams,
		StartQueue:       cfg.Pipeline.StartQueue,
		SourceFormat:     cfg.Worker.SourceFormat,
		MaxDstFiles:      cfg.Worker.MaxDstFiles,
		ParamTemplate:    cfg.Worker.ParamTemplate,
		CaptureOutput:    cfg.Worker.CaptureOutput,
		SpawnSettle:      cfg.SpawnSettle(),
		ExitPollInterval: cfg.ExitPollInterval(),
		PIDReadRetries:   cfg.Worker.PIDReadRetries,
		Logger:           logger,
	}
}

func (o Options) logger() *slog.Logger {
	return logging.NewComponentLogger(o.Logger, "worker")
}

// Worker is a handle on one worker process and its directory. All state is
// read back from the directory so any monitor can rebuild it.
type Worker struct {
	ID  int
	Dir string

	pid    int
	src    string
	dst    string
	times  Times
	opts   Options
	logger *slog.Logger
}

// Dir returns the directory of worker id under root.
func Dir(root string, id int) string {
	return filepath.Join(root, dirPrefix+strconv.Itoa(id))
}

// OutputPath is where worker id's captured stdout and stderr are written.
func OutputPath(root string, id int) string {
	return filepath.Join(Dir(root, id), outputFile)
}

func timesPath(dir string) string { return filepath.Join(dir, timesFile) }
func quitPath(dir string) string { return filepath.Join(dir, quitFile) }

// Load reads worker id's pid, queues and telemetry from disk.
func Load(root string, id int, opts Options) (*Worker, error) {
	dir := Dir(root, id)
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("load worker %d: %w", id, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("load worker %d: %s is not a directory", id, dir)
	}
	w := &Worker{
		ID:     id,
		Dir:    dir,
		opts:   opts,
		logger: opts.logger().With(logging.Int(logging.FieldWorkerID, id)),
	}
	if err := w.refresh(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Worker) refresh() error {
	retries := w.opts.PIDReadRetries
	if retries <= 0 {
		retries = defaultPIDTry
	}
	pidContent, err := fileutil.ReadWithRetry(filepath.Join(w.Dir, pidFile), retries)
	if err != nil {
		return fmt.Errorf("read worker %d pid: %w", w.ID, err)
	}
	w.pid, _ = procutil.ParsePID(pidContent)

	queuesContent, err := fileutil.ReadWithRetry(filepath.Join(w.Dir, queuesFile), defaultPIDTry)
	if err != nil {
		return fmt.Errorf("read worker %d queues: %w", w.ID, err)
	}
	w.src, w.dst = parseQueues(queuesContent)

	timesContent, err := fileutil.ReadWithRetry(timesPath(w.Dir), timesRetries)
	if err != nil {
		return fmt.Errorf("read worker %d times: %w", w.ID, err)
	}
	w.times = ParseTimes(timesContent)
	return nil
}

type queuesDoc struct {
	Src string `yaml:"src_queue"`
	Dst string `yaml:"dst_queue"`
}

func parseQueues(content string) (string, string) {
	var doc queuesDoc
	if err := yaml.Unmarshal([]byte(content), &doc); err != nil {
		return "", ""
	}
	return strings.TrimSpace(doc.Src), strings.TrimSpace(doc.Dst)
}

// All loads every worker directory under root, sorted by id. Directories
// whose suffix is not a number are ignored, as are workers removed while
// scanning.
func All(root string, opts Options) ([]*Worker, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list workers: %w", err)
	}
	ids := make([]int, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), dirPrefix) {
			continue
		}
		id, err := strconv.Atoi(strings.TrimPrefix(entry.Name(), dirPrefix))
		if err != nil || id <= 0 {
			continue
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)

	workers := make([]*Worker, 0, len(ids))
	for _, id := range ids {
		w, err := Load(root, id, opts)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}
		workers = append(workers, w)
	}
	return workers, nil
}

// PID is the recorded process id, 0 once the worker is known dead.
func (w *Worker) PID() int { return w.pid }

// Src is the queue the worker consumes.
func (w *Worker) Src() string { return w.src }

// Dst is the queue the worker produces into.
func (w *Worker) Dst() string { return w.dst }

// Times is the telemetry read when the worker was loaded.
func (w *Worker) Times() Times { return w.times }

// IsAlive probes the recorded pid. The first time this handle finds the
// process dead it logs it and clears the cached pid.
func (w *Worker) IsAlive() bool {
	if w.pid == 0 {
		return false
	}
	if procutil.Alive(w.pid) {
		return true
	}
	w.logger.Debug("worker exited",
		logging.Int(logging.FieldPID, w.pid),
		logging.String(logging.FieldStage, w.src+"->"+w.dst),
	)
	w.pid = 0
	return false
}

// HasTelemetry reports whether the worker ever wrote its times file.
func (w *Worker) HasTelemetry() bool {
	return fileutil.Exists(timesPath(w.Dir))
}

// Close asks the worker to exit by dropping its quit file. With block set
// it waits until the process is gone or ctx ends.
func (w *Worker) Close(ctx context.Context, block bool) error {
	if err := fileutil.Touch(quitPath(w.Dir)); err != nil {
		return fmt.Errorf("close worker %d: %w", w.ID, err)
	}
	if !block {
		return nil
	}
	interval := w.opts.ExitPollInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for w.IsAlive() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// Kill sends SIGKILL to a live worker and removes its pid file.
func (w *Worker) Kill() error {
	if w.IsAlive() {
		if err := procutil.Kill(w.pid); err != nil {
			return fmt.Errorf("kill worker %d: %w", w.ID, err)
		}
		w.logger.Info("worker killed", logging.Int(logging.FieldPID, w.pid))
		w.pid = 0
	}
	if err := os.Remove(filepath.Join(w.Dir, pidFile)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove worker %d pid file: %w", w.ID, err)
	}
	return nil
}

// Cleanup kills the worker and removes its directory, retrying the removal
// once after a short pause.
func (w *Worker) Cleanup() error {
	if err := w.Kill(); err != nil {
		return err
	}
	if err := os.RemoveAll(w.Dir); err != nil {
		time.Sleep(cleanupRetry)
		if err := os.RemoveAll(w.Dir); err != nil {
			return fmt.Errorf("remove worker %d directory: %w", w.ID, err)
		}
	}
	return nil
}
