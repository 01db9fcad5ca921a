package queuedir

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"dqmon/internal/fileutil"
)

const dirPrefix = "queue-"

// Queue is one filesystem-backed queue under a run root.
type Queue struct {
	Name string
	Dir  string
}

// Counts summarizes a queue's contents by state.
type Counts struct {
	Ready   int
	Failed  int
	Working int
	Writing int
	GaveUp  int
	Done    bool
}

// Waiting is the number of documents eligible for a claim.
func (c Counts) Waiting() int {
	return c.Ready + c.Failed
}

// Open returns the queue named name under root. The directory is not
// created until Ensure.
func Open(root, name string) Queue {
	return Queue{Name: name, Dir: filepath.Join(root, DirName(name))}
}

// DirName is the directory name of a queue inside the run root.
func DirName(name string) string {
	return dirPrefix + name
}

// List returns every queue directory present under root, sorted by name.
func List(root string) ([]Queue, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list queues: %w", err)
	}
	var queues []Queue
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), dirPrefix) {
			continue
		}
		name := strings.TrimPrefix(entry.Name(), dirPrefix)
		if name == "" {
			continue
		}
		queues = append(queues, Queue{Name: name, Dir: filepath.Join(root, entry.Name())})
	}
	sort.Slice(queues, func(i, j int) bool { return queues[i].Name < queues[j].Name })
	return queues, nil
}

// Ensure creates the queue directory if missing.
func (q Queue) Ensure() error {
	if err := os.MkdirAll(q.Dir, 0o755); err != nil {
		return fmt.Errorf("create queue %s: %w", q.Name, err)
	}
	return nil
}

// Exists reports whether the queue directory exists.
func (q Queue) Exists() bool {
	info, err := os.Stat(q.Dir)
	return err == nil && info.IsDir()
}

// Path joins name onto the queue directory.
func (q Queue) Path(name string) string {
	return filepath.Join(q.Dir, name)
}

// fileNames lists the plain files in the queue. A missing directory lists
// as empty.
func (q Queue) fileNames() ([]string, error) {
	dirEntries, err := os.ReadDir(q.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan queue %s: %w", q.Name, err)
	}
	names := make([]string, 0, len(dirEntries))
	for _, de := range dirEntries {
		if !de.IsDir() {
			names = append(names, de.Name())
		}
	}
	return names, nil
}

// Scan classifies every protocol file in the queue. A missing directory
// scans as empty.
func (q Queue) Scan() ([]Entry, error) {
	names, err := q.fileNames()
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		if entry, ok := Parse(name); ok {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// Counts tallies the queue by state.
func (q Queue) Counts() (Counts, error) {
	entries, err := q.Scan()
	if err != nil {
		return Counts{}, err
	}
	var c Counts
	for _, e := range entries {
		switch e.State {
		case StateReady:
			c.Ready++
		case StateFailed:
			c.Failed++
		case StateWorking:
			c.Working++
		case StateWriting:
			c.Writing++
		case StateGaveUp:
			c.GaveUp++
		case StateDone:
			c.Done = true
		}
	}
	return c, nil
}

// pendingSuffixes keep a queue from draining. They are matched against
// raw names, so malformed claims count too.
var pendingSuffixes = []string{SuffixWriting, SuffixWorking, SuffixReady, SuffixFailed}

// Drained reports whether no file in the queue is waiting, in progress or
// being written. Gave-up documents do not block draining.
func (q Queue) Drained() (bool, error) {
	names, err := q.fileNames()
	if err != nil {
		return false, err
	}
	for _, name := range names {
		for _, suffix := range pendingSuffixes {
			if strings.HasSuffix(name, suffix) {
				return false, nil
			}
		}
	}
	return true, nil
}

// IsDone reports whether the done sentinel is present.
func (q Queue) IsDone() bool {
	return fileutil.Exists(q.Path(DoneSentinel))
}

// MarkDone drops the done sentinel, creating the queue if needed.
func (q Queue) MarkDone() error {
	if err := q.Ensure(); err != nil {
		return err
	}
	if err := fileutil.Touch(q.Path(DoneSentinel)); err != nil {
		return fmt.Errorf("mark queue %s done: %w", q.Name, err)
	}
	return nil
}

// GaveUp returns the sorted names of documents that failed twice.
func (q Queue) GaveUp() ([]string, error) {
	entries, err := q.Scan()
	if err != nil {
		return nil, err
	}
	var docs []string
	for _, e := range entries {
		if e.State == StateGaveUp {
			docs = append(docs, e.Doc)
		}
	}
	sort.Strings(docs)
	return docs, nil
}
