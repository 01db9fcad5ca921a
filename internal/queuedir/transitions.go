package queuedir

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"dqmon/internal/fileutil"
)

var (
	// ErrEmpty is returned by Claim when no ready or failed document is available.
	ErrEmpty = errors.New("queue has no claimable documents")
	// ErrNotClaimed is returned when a claim file no longer exists.
	ErrNotClaimed = errors.New("document is not claimed")
)

// Claim is a document renamed into the working state by one worker.
type Claim struct {
	Queue    Queue
	Doc      string
	WorkerID int
	// Retry is set when the claim was taken from a failed document.
	Retry bool
}

// Path is the claim's working file.
func (c Claim) Path() string {
	return c.Queue.Path(workingName(c.Doc, c.WorkerID))
}

// Enqueue writes a new ready document. Content is staged under a hidden
// temp name and renamed into place so consumers never see partial input.
func (q Queue) Enqueue(doc string, r io.Reader) error {
	if err := validateDoc(doc); err != nil {
		return err
	}
	if err := q.Ensure(); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(q.Dir, "."+doc+".enqueue*")
	if err != nil {
		return fmt.Errorf("stage %s: %w", doc, err)
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("stage %s: %w", doc, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("stage %s: %w", doc, err)
	}
	if err := os.Rename(tmpName, q.Path(readyName(doc))); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("enqueue %s: %w", doc, err)
	}
	return nil
}

// EnqueueFile copies path into the queue as a ready document named after
// the file's base name, and returns that name.
func (q Queue) EnqueueFile(path string) (string, error) {
	doc := filepath.Base(path)
	if err := validateDoc(doc); err != nil {
		return "", err
	}
	if err := q.Ensure(); err != nil {
		return "", err
	}
	staged := q.Path("." + doc + ".enqueue")
	if err := fileutil.CopyFileVerified(path, staged); err != nil {
		_ = os.Remove(staged)
		return "", fmt.Errorf("stage %s: %w", path, err)
	}
	if err := os.Rename(staged, q.Path(readyName(doc))); err != nil {
		_ = os.Remove(staged)
		return "", fmt.Errorf("enqueue %s: %w", doc, err)
	}
	return doc, nil
}

func validateDoc(doc string) error {
	if doc == "" || doc == "." || doc == ".." || doc == DoneSentinel || strings.HasPrefix(doc, ".") {
		return fmt.Errorf("invalid document name %q", doc)
	}
	if strings.ContainsRune(doc, filepath.Separator) {
		return fmt.Errorf("invalid document name %q: contains path separator", doc)
	}
	return nil
}

// Claim takes one document for workerID: ready documents first, then
// failed ones for a second attempt. Losing a rename race to another worker
// moves on to the next candidate.
func (q Queue) Claim(workerID int) (Claim, error) {
	entries, err := q.Scan()
	if err != nil {
		return Claim{}, err
	}
	var ready, failed []string
	for _, e := range entries {
		switch e.State {
		case StateReady:
			ready = append(ready, e.Doc)
		case StateFailed:
			failed = append(failed, e.Doc)
		}
	}
	sort.Strings(ready)
	sort.Strings(failed)

	try := func(doc, from string, retry bool) (Claim, bool, error) {
		claim := Claim{Queue: q, Doc: doc, WorkerID: workerID, Retry: retry}
		err := os.Rename(q.Path(from), claim.Path())
		if err == nil {
			return claim, true, nil
		}
		if errors.Is(err, fs.ErrNotExist) {
			return Claim{}, false, nil
		}
		return Claim{}, false, fmt.Errorf("claim %s: %w", doc, err)
	}

	for _, doc := range ready {
		if claim, ok, err := try(doc, readyName(doc), false); err != nil || ok {
			return claim, err
		}
	}
	for _, doc := range failed {
		if claim, ok, err := try(doc, failedName(doc), true); err != nil || ok {
			return claim, err
		}
	}
	return Claim{}, ErrEmpty
}

// Open opens the claimed document for reading.
func (c Claim) Open() (*os.File, error) {
	f, err := os.Open(c.Path())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotClaimed, c.Doc)
		}
		return nil, err
	}
	return f, nil
}

// Complete writes the claim's result into dst and releases the claim. The
// result is staged as <doc>.<id>.writing.xml and renamed to <doc>.ready,
// replacing any earlier output of the same document.
func Complete(c Claim, dst Queue, write func(io.Writer) error) error {
	if _, err := os.Stat(c.Path()); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotClaimed, c.Doc)
		}
		return err
	}
	if err := dst.Ensure(); err != nil {
		return err
	}

	writing := dst.Path(writingName(c.Doc, c.WorkerID))
	out, err := os.Create(writing)
	if err != nil {
		return fmt.Errorf("write %s: %w", c.Doc, err)
	}
	if err := write(out); err != nil {
		_ = out.Close()
		_ = os.Remove(writing)
		return fmt.Errorf("write %s: %w", c.Doc, err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(writing)
		return fmt.Errorf("write %s: %w", c.Doc, err)
	}
	if err := os.Rename(writing, dst.Path(readyName(c.Doc))); err != nil {
		return fmt.Errorf("publish %s: %w", c.Doc, err)
	}
	if err := os.Remove(c.Path()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("release %s: %w", c.Doc, err)
	}
	return nil
}

// Fail records a processing failure. A first failure parks the document as
// failed for one retry; failing a retry gives up on it for good.
func Fail(c Claim) error {
	if c.Retry {
		if err := os.Remove(c.Path()); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("%w: %s", ErrNotClaimed, c.Doc)
			}
			return fmt.Errorf("release %s: %w", c.Doc, err)
		}
		if err := fileutil.Touch(c.Queue.Path(gaveUpName(c.Doc))); err != nil {
			return fmt.Errorf("give up on %s: %w", c.Doc, err)
		}
		return nil
	}
	if err := os.Rename(c.Path(), c.Queue.Path(failedName(c.Doc))); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotClaimed, c.Doc)
		}
		return fmt.Errorf("fail %s: %w", c.Doc, err)
	}
	return nil
}
