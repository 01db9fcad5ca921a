package fileutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCopyFileVerified(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "doc.sgm")
	dst := filepath.Join(dir, "copy.sgm")

	content := []byte("<DOC>body</DOC>")
	if err := os.WriteFile(src, content, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := CopyFileVerified(src, dst); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Fatalf("content mismatch: got %q, want %q", got, content)
	}
}

func TestCopyFileVerified_MissingSource(t *testing.T) {
	dir := t.TempDir()
	if err := CopyFileVerified(filepath.Join(dir, "nope"), filepath.Join(dir, "dst")); err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestReadWithRetryMissingFileYieldsEmpty(t *testing.T) {
	restore := RetryDelay
	RetryDelay = time.Millisecond
	t.Cleanup(func() { RetryDelay = restore })

	got, err := ReadWithRetry(filepath.Join(t.TempDir(), "pid"), 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "" {
		t.Fatalf("expected empty content, got %q", got)
	}
}

func TestReadWithRetryPausesBeforeEveryReread(t *testing.T) {
	restore := RetryDelay
	RetryDelay = 20 * time.Millisecond
	t.Cleanup(func() { RetryDelay = restore })

	start := time.Now()
	if _, err := ReadWithRetry(filepath.Join(t.TempDir(), "times"), 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 3*RetryDelay {
		t.Fatalf("expected three pauses of %s, returned after %s", RetryDelay, elapsed)
	}
}

func TestReadWithRetryZeroRetriesReadsOnce(t *testing.T) {
	restore := RetryDelay
	RetryDelay = time.Second
	t.Cleanup(func() { RetryDelay = restore })

	start := time.Now()
	if _, err := ReadWithRetry(filepath.Join(t.TempDir(), "times"), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed >= RetryDelay {
		t.Fatalf("expected a single read without pausing, took %s", elapsed)
	}
}

func TestReadWithRetryPicksUpLateWrite(t *testing.T) {
	restore := RetryDelay
	RetryDelay = 50 * time.Millisecond
	t.Cleanup(func() { RetryDelay = restore })

	path := filepath.Join(t.TempDir(), "pid")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		time.Sleep(10 * time.Millisecond)
		_ = os.WriteFile(path, []byte("1234\n"), 0o644)
	}()

	got, err := ReadWithRetry(path, 1)
	<-done
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "1234\n" {
		t.Fatalf("expected late content, got %q", got)
	}
}

func TestWriteFileAtomicReplacesContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "worker.par")
	if err := os.WriteFile(path, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := WriteFileAtomic(path, []byte("new"), 0o600); err != nil {
		t.Fatalf("WriteFileAtomic: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "new" {
		t.Fatalf("unexpected content %q", got)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected temp file to be renamed away, got %d entries", len(entries))
	}
}

func TestTouchAndExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "done")
	if Exists(path) {
		t.Fatal("expected missing file")
	}
	if err := Touch(path); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	if !Exists(path) {
		t.Fatal("expected file after Touch")
	}
	if err := Touch(path); err != nil {
		t.Fatalf("second Touch: %v", err)
	}
}
