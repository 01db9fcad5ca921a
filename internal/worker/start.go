package worker

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"dqmon/internal/fileutil"
	"dqmon/internal/logging"
	"dqmon/internal/procutil"
	"dqmon/internal/queuedir"
)

const idAllocationAttempts = 100

// Start allocates a worker id, writes the worker's parameter and queues
// files, ensures both queues exist and launches the worker binary detached
// from the caller. isFinal lifts the destination file cap.
func Start(root string, opts Options, src, dst string, isFinal bool) (*Worker, error) {
	if strings.TrimSpace(opts.Binary) == "" {
		return nil, errors.New("start worker: no worker binary configured")
	}
	id, err := allocateID(root)
	if err != nil {
		return nil, err
	}
	dir := Dir(root, id)
	launched := false
	defer func() {
		if !launched {
			_ = os.RemoveAll(dir)
		}
	}()
	logger := opts.logger().With(
		logging.Int(logging.FieldWorkerID, id),
		logging.String(logging.FieldStage, src+"->"+dst),
	)

	params, err := RenderParams(opts.ParamTemplate, buildParams(root, id, opts, src, dst, isFinal))
	if err != nil {
		return nil, err
	}
	parPath := filepath.Join(dir, parFile)
	if err := fileutil.WriteFileAtomic(parPath, params, 0o644); err != nil {
		return nil, fmt.Errorf("write worker %d parameters: %w", id, err)
	}
	queues, err := yaml.Marshal(queuesDoc{Src: src, Dst: dst})
	if err != nil {
		return nil, fmt.Errorf("encode worker %d queues: %w", id, err)
	}
	if err := fileutil.WriteFileAtomic(filepath.Join(dir, queuesFile), queues, 0o644); err != nil {
		return nil, fmt.Errorf("write worker %d queues: %w", id, err)
	}
	for _, name := range []string{src, dst} {
		if err := queuedir.Open(root, name).Ensure(); err != nil {
			return nil, err
		}
	}

	outPath := ""
	if opts.CaptureOutput {
		outPath = OutputPath(root, id)
	}
	pid, err := procutil.Launch(opts.Binary, []string{parPath}, procutil.LaunchOptions{OutputPath: outPath})
	if err != nil {
		return nil, fmt.Errorf("start worker %d: %w", id, err)
	}
	if err := procutil.WritePIDFile(filepath.Join(dir, pidFile), pid); err != nil {
		_ = procutil.Kill(pid)
		return nil, fmt.Errorf("write worker %d pid: %w", id, err)
	}
	launched = true
	logger.Info("worker started", logging.Int(logging.FieldPID, pid))

	if opts.SpawnSettle > 0 {
		time.Sleep(opts.SpawnSettle)
	}

	return &Worker{
		ID:     id,
		Dir:    dir,
		pid:    pid,
		src:    src,
		dst:    dst,
		opts:   opts,
		logger: opts.logger().With(logging.Int(logging.FieldWorkerID, id)),
	}, nil
}

// allocateID claims max(existing id)+1 by creating its directory. mkdir is
// exclusive, so concurrent allocators retry with the next id.
func allocateID(root string) (int, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return 0, fmt.Errorf("create run root: %w", err)
	}
	for attempt := 0; attempt < idAllocationAttempts; attempt++ {
		next, err := maxID(root)
		if err != nil {
			return 0, err
		}
		next++
		err = os.Mkdir(Dir(root, next), 0o755)
		if err == nil {
			return next, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return 0, fmt.Errorf("create worker directory: %w", err)
		}
	}
	return 0, fmt.Errorf("allocate worker id: gave up after %d attempts", idAllocationAttempts)
}

func maxID(root string) (int, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return 0, fmt.Errorf("list workers: %w", err)
	}
	highest := 0
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, dirPrefix) {
			continue
		}
		id, err := strconv.Atoi(strings.TrimPrefix(name, dirPrefix))
		if err != nil {
			continue
		}
		highest = max(highest, id)
	}
	return highest, nil
}
