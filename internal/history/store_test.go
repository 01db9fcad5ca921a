package history_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"dqmon/internal/history"
)

func openStore(t *testing.T) *history.Store {
	t.Helper()
	store, err := history.Open(context.Background(), filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestAppendAndRecentChronological(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := range 5 {
		sample := history.Sample{RunID: "run-a", Time: base.Add(time.Duration(i) * time.Minute), Docs: int64(i * 10)}
		if err := store.Append(ctx, sample); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	recent, err := store.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(recent))
	}
	for i, want := range []int64{20, 30, 40} {
		if recent[i].Docs != want {
			t.Fatalf("sample %d: got docs %d want %d", i, recent[i].Docs, want)
		}
	}
	if !recent[0].Time.Equal(base.Add(2 * time.Minute)) {
		t.Fatalf("unexpected first sample time %v", recent[0].Time)
	}
	if recent[2].RunID != "run-a" {
		t.Fatalf("unexpected run id %q", recent[2].RunID)
	}
}

func TestRecentZeroLimit(t *testing.T) {
	store := openStore(t)
	samples, err := store.Recent(context.Background(), 0)
	if err != nil || samples != nil {
		t.Fatalf("expected nil samples, got %v err=%v", samples, err)
	}
}

func TestPruneKeepsNewest(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)
	for i := range 10 {
		if err := store.Append(ctx, history.Sample{RunID: "r", Time: base.Add(time.Duration(i) * time.Second), Docs: int64(i)}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	removed, err := store.Prune(ctx, 4)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 6 {
		t.Fatalf("expected 6 rows removed, got %d", removed)
	}
	recent, err := store.Recent(ctx, 100)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 4 || recent[0].Docs != 6 {
		t.Fatalf("unexpected survivors %+v", recent)
	}
}

func TestReopenKeepsSamples(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	store, err := history.Open(ctx, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.Append(ctx, history.Sample{RunID: "first", Time: time.Now(), Docs: 7}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := history.Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	recent, err := reopened.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 1 || recent[0].Docs != 7 {
		t.Fatalf("expected persisted sample, got %+v", recent)
	}
}
