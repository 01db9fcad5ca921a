package queuedir

import (
	"strconv"
	"strings"
)

// State is the lifecycle position of a queue item, encoded in its filename.
type State int

const (
	StateReady State = iota
	StateWorking
	StateWriting
	StateFailed
	StateGaveUp
	StateDone
)

// Filename suffixes and the sentinel that encode item state.
const (
	SuffixReady   = ".ready"
	SuffixWorking = ".working"
	SuffixWriting = ".writing.xml"
	SuffixFailed  = ".failed"
	SuffixGaveUp  = ".failed_twice"
	DoneSentinel  = "done"
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateWorking:
		return "working"
	case StateWriting:
		return "writing"
	case StateFailed:
		return "failed"
	case StateGaveUp:
		return "gave_up"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Entry is one classified file in a queue directory.
type Entry struct {
	Name  string
	Doc   string
	State State
	// WorkerID is the claiming worker for working/writing entries, 0 otherwise.
	WorkerID int
}

// Parse classifies a queue directory filename. Files that do not follow the
// protocol (staging files, stray output, claims without a worker id)
// return false.
func Parse(name string) (Entry, bool) {
	if name == DoneSentinel {
		return Entry{Name: name, State: StateDone}, true
	}
	switch {
	case strings.HasSuffix(name, SuffixWriting):
		return parseClaimed(name, SuffixWriting, StateWriting)
	case strings.HasSuffix(name, SuffixWorking):
		return parseClaimed(name, SuffixWorking, StateWorking)
	case strings.HasSuffix(name, SuffixGaveUp):
		return parsePlain(name, SuffixGaveUp, StateGaveUp)
	case strings.HasSuffix(name, SuffixFailed):
		return parsePlain(name, SuffixFailed, StateFailed)
	case strings.HasSuffix(name, SuffixReady):
		return parsePlain(name, SuffixReady, StateReady)
	}
	return Entry{}, false
}

func parsePlain(name, suffix string, state State) (Entry, bool) {
	doc := strings.TrimSuffix(name, suffix)
	if doc == "" {
		return Entry{}, false
	}
	return Entry{Name: name, Doc: doc, State: state}, true
}

// parseClaimed splits "<doc>.<id><suffix>".
func parseClaimed(name, suffix string, state State) (Entry, bool) {
	stem := strings.TrimSuffix(name, suffix)
	idx := strings.LastIndexByte(stem, '.')
	if idx <= 0 {
		return Entry{}, false
	}
	id, err := strconv.Atoi(stem[idx+1:])
	if err != nil || id <= 0 {
		return Entry{}, false
	}
	return Entry{Name: name, Doc: stem[:idx], State: state, WorkerID: id}, true
}

// parseOrphan classifies a working or writing file whose worker id is
// missing or malformed. No worker can own it, so it is always abandoned.
func parseOrphan(name string) (Entry, bool) {
	for _, c := range []struct {
		suffix string
		state  State
	}{{SuffixWriting, StateWriting}, {SuffixWorking, StateWorking}} {
		if !strings.HasSuffix(name, c.suffix) {
			continue
		}
		doc := strings.TrimSuffix(name, c.suffix)
		if doc == "" {
			return Entry{}, false
		}
		return Entry{Name: name, Doc: doc, State: c.state}, true
	}
	return Entry{}, false
}

// WorkerExt is the filename extension a worker adds to claims it owns.
func WorkerExt(workerID int) string {
	return "." + strconv.Itoa(workerID)
}

func readyName(doc string) string { return doc + SuffixReady }
func failedName(doc string) string { return doc + SuffixFailed }
func gaveUpName(doc string) string { return doc + SuffixGaveUp }
func workingName(doc string, id int) string { return doc + WorkerExt(id) + SuffixWorking }
func writingName(doc string, id int) string { return doc + WorkerExt(id) + SuffixWriting }
