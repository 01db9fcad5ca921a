package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// stubWorkerScript speaks the disk queue protocol well enough for tests.
// It claims ready documents first and failed ones second, copies each into
// the destination queue through a writing file, and marks the destination
// done once the source is done and drained. Documents whose name contains
// "poison" always fail. The quit file stops it between documents.
const stubWorkerScript = `#!/bin/sh
par="$1"
get() { sed -n "s/^$1:[[:space:]]*//p" "$par" | head -n 1; }
src=$(get disk_queue_src)
dst=$(get disk_queue_dst)
timer=$(get disk_queue_timer_file)
quit=$(get disk_queue_quit_file)
ext=$(get disk_queue_worker_ext)
docs=0

write_times() {
	printf 'Work\t%d\nWait\t5\nBlock\t0\nOverhead\t1\nDocs\t%d\n' $((docs * 10)) "$docs" > "$timer.tmp"
	mv "$timer.tmp" "$timer"
}

claim() {
	for f in "$src"/*."$1"; do
		[ -e "$f" ] || continue
		base=${f%."$1"}
		if mv "$f" "$base$ext.working" 2>/dev/null; then
			doc=$(basename "$base")
			retry=$2
			return 0
		fi
	done
	return 1
}

write_times
while :; do
	[ -e "$quit" ] && exit 0
	if claim ready 0 || claim failed 1; then
		working="$src/$doc$ext.working"
		case "$doc" in
		*poison*)
			if [ "$retry" = 1 ]; then
				rm -f "$working"
				touch "$src/$doc.failed_twice"
			else
				mv "$working" "$src/$doc.failed"
			fi
			;;
		*)
			cp "$working" "$dst/$doc$ext.writing.xml"
			mv "$dst/$doc$ext.writing.xml" "$dst/$doc.ready"
			rm -f "$working"
			docs=$((docs + 1))
			write_times
			;;
		esac
		continue
	fi
	if [ -e "$src/done" ]; then
		pending=0
		for f in "$src"/*.ready "$src"/*.failed "$src"/*.working "$src"/*.writing.xml; do
			[ -e "$f" ] && pending=1
		done
		if [ "$pending" = 0 ]; then
			touch "$dst/done"
			exit 0
		fi
	fi
	sleep 0.1
done
`

const failingWorkerScript = "#!/bin/sh\nexit 1\n"

// StubWorker writes the stub worker script into dir and returns its path.
func StubWorker(t testing.TB, dir string) string {
	t.Helper()
	return writeScript(t, filepath.Join(dir, "stub-worker"), stubWorkerScript)
}

// FailingWorker writes a worker that exits before writing any telemetry.
func FailingWorker(t testing.TB, dir string) string {
	t.Helper()
	return writeScript(t, filepath.Join(dir, "failing-worker"), failingWorkerScript)
}

func writeScript(t testing.TB, path, body string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
