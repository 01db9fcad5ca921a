package testsupport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dqmon/internal/queuedir"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(strings.Repeat("B", int(size))), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// SeedQueue enqueues one small ready document per name into queue under root.
func SeedQueue(t testing.TB, root, queue string, docs ...string) queuedir.Queue {
	t.Helper()

	q := queuedir.Open(root, queue)
	for _, doc := range docs {
		if err := q.Enqueue(doc, strings.NewReader("<doc>"+doc+"</doc>\n")); err != nil {
			t.Fatalf("enqueue %s into %s: %v", doc, queue, err)
		}
	}
	return q
}

// WriteFake creates an empty file named name inside queue, bypassing the
// protocol, for tests that stage claims or sentinels directly.
func WriteFake(t testing.TB, q queuedir.Queue, name string) {
	t.Helper()
	if err := q.Ensure(); err != nil {
		t.Fatalf("ensure %s: %v", q.Name, err)
	}
	if err := os.WriteFile(q.Path(name), nil, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}
