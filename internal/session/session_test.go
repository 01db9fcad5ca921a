package session_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"dqmon/internal/logging"
	"dqmon/internal/session"
	"dqmon/internal/testsupport"
)

func TestExclusiveSessionHoldsLock(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubWorker())
	opts := session.Options{Exclusive: true, Logger: logging.NewNop()}

	first, err := session.Open(context.Background(), cfg, opts)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer first.Close()
	if _, err := os.Stat(cfg.MonitorLockPath()); err != nil {
		t.Fatalf("lock file missing: %v", err)
	}

	if _, err := session.Open(context.Background(), cfg, opts); !errors.Is(err, session.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}

	shared, err := session.Open(context.Background(), cfg, session.Options{Logger: logging.NewNop()})
	if err != nil {
		t.Fatalf("shared Open while locked: %v", err)
	}
	shared.Close()

	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	again, err := session.Open(context.Background(), cfg, opts)
	if err != nil {
		t.Fatalf("Open after release: %v", err)
	}
	again.Close()
}

func TestRequireWorkerFailsWithoutBinary(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.WorkerBinary = filepath.Join(testsupport.BaseDir(cfg), "missing", "Serif")

	_, err := session.Open(context.Background(), cfg, session.Options{
		Exclusive:     true,
		RequireWorker: true,
		Logger:        logging.NewNop(),
	})
	if err == nil {
		t.Fatal("expected error for unresolvable worker binary")
	}

	// The failed open must not leave the lock held.
	s, err := session.Open(context.Background(), cfg, session.Options{Exclusive: true, Logger: logging.NewNop()})
	if err != nil {
		t.Fatalf("lenient Open: %v", err)
	}
	defer s.Close()
	if s.WorkerBinary() != "" {
		t.Fatalf("expected empty worker binary, got %q", s.WorkerBinary())
	}
}

func TestSessionOpensHistoryWhenEnabled(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubWorker(), testsupport.WithHistory())

	s, err := session.Open(context.Background(), cfg, session.Options{Logger: logging.NewNop()})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(cfg.HistoryPath()); err != nil {
		t.Fatalf("history database missing: %v", err)
	}
	if s.RunID() == "" {
		t.Fatal("expected run id")
	}
	if s.Monitor() == nil {
		t.Fatal("expected monitor")
	}
}
