package procutil

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
)

// LaunchOptions controls how a detached child process is started.
type LaunchOptions struct {
	// Dir is the working directory of the child. Empty inherits ours.
	Dir string
	// OutputPath receives the child's combined stdout and stderr. Empty
	// discards output.
	OutputPath string
	// Env is appended to the current environment.
	Env []string
}

// Launch starts binary with args in its own session so it survives the
// caller exiting, and returns its pid. A background goroutine waits on
// the child so an exited process never lingers as a zombie while we are
// still its parent.
func Launch(binary string, args []string, opts LaunchOptions) (int, error) {
	if strings.TrimSpace(binary) == "" {
		return 0, fmt.Errorf("launch: binary path is empty")
	}

	out, err := openOutput(opts.OutputPath)
	if err != nil {
		return 0, err
	}
	defer out.Close()

	proc := exec.Command(binary, args...)
	proc.Dir = opts.Dir
	proc.Stdin = nil
	proc.Stdout = out
	proc.Stderr = out
	if len(opts.Env) > 0 {
		proc.Env = append(os.Environ(), opts.Env...)
	}
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := proc.Start(); err != nil {
		return 0, fmt.Errorf("launch %s: %w", binary, err)
	}
	pid := proc.Process.Pid
	go func() {
		_ = proc.Wait()
	}()
	return pid, nil
}

func openOutput(path string) (*os.File, error) {
	if strings.TrimSpace(path) == "" {
		f, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", os.DevNull, err)
		}
		return f, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open output file %q: %w", path, err)
	}
	return f, nil
}

// Alive reports whether pid names a running process. Zombies (exited but
// not yet reaped) count as dead.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	switch {
	case err == nil:
	case errors.Is(err, unix.EPERM):
		// Exists but belongs to someone else.
	default:
		return false
	}
	return !isZombie(pid)
}

func isZombie(pid int) bool {
	data, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/stat")
	if err != nil {
		return false
	}
	// The command name may contain spaces and parentheses; the state
	// follows the last ')'.
	stat := string(data)
	idx := strings.LastIndexByte(stat, ')')
	if idx < 0 || idx+2 >= len(stat) {
		return false
	}
	state := stat[idx+2]
	return state == 'Z' || state == 'X'
}

// Kill sends SIGKILL to pid. A process that is already gone is not an error.
func Kill(pid int) error {
	if pid <= 0 {
		return fmt.Errorf("kill: invalid pid %d", pid)
	}
	if pid == os.Getpid() {
		return fmt.Errorf("refusing to kill current process (pid %d)", pid)
	}
	if err := unix.Kill(pid, unix.SIGKILL); err != nil {
		if errors.Is(err, unix.ESRCH) {
			return nil
		}
		return fmt.Errorf("kill process %d: %w", pid, err)
	}
	return nil
}

// WritePIDFile records pid followed by a newline.
func WritePIDFile(path string, pid int) error {
	return os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0o644)
}

// ParsePID parses pid file content. Empty or malformed content yields false.
func ParsePID(content string) (int, bool) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return 0, false
	}
	pid, err := strconv.Atoi(trimmed)
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}
