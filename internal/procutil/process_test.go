package procutil

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLaunchAliveKill(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "out.txt")

	pid, err := Launch("/bin/sh", []string{"-c", "echo started; sleep 30"}, LaunchOptions{OutputPath: outPath})
	require.NoError(t, err)
	require.Positive(t, pid)

	assert.True(t, Alive(pid))
	require.Eventually(t, func() bool {
		data, _ := os.ReadFile(outPath)
		return strings.Contains(string(data), "started")
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, Kill(pid))
	require.Eventually(t, func() bool { return !Alive(pid) }, 5*time.Second, 20*time.Millisecond)

	// Already gone.
	assert.NoError(t, Kill(pid))
}

func TestLaunchedProcessIsReapedAfterExit(t *testing.T) {
	pid, err := Launch("/bin/sh", []string{"-c", "exit 0"}, LaunchOptions{})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return !Alive(pid) }, 5*time.Second, 20*time.Millisecond)
}

func TestLaunchRejectsEmptyBinary(t *testing.T) {
	_, err := Launch("  ", nil, LaunchOptions{})
	assert.Error(t, err)
}

func TestAliveRejectsNonPositive(t *testing.T) {
	assert.False(t, Alive(0))
	assert.False(t, Alive(-4))
}

func TestKillRefusesSelf(t *testing.T) {
	assert.Error(t, Kill(os.Getpid()))
}

func TestPIDFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pid")
	require.NoError(t, WritePIDFile(path, 4242))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "4242\n", string(data))

	pid, ok := ParsePID(string(data))
	assert.True(t, ok)
	assert.Equal(t, 4242, pid)
}

func TestParsePIDRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "  \n", "abc", "-3", "0"} {
		_, ok := ParsePID(in)
		assert.False(t, ok, "input %q", in)
	}
}

func TestParseStatusExtractsMemory(t *testing.T) {
	status := "Name:\tSerif\nVmPeak:\t  999 kB\nVmSize:\t  204800 kB\nVmRSS:\t   51200 kB\nThreads:\t1\n"
	mem, ok := parseStatus(bufio.NewScanner(strings.NewReader(status)))
	require.True(t, ok)
	assert.Equal(t, int64(204800), mem.VirtualKB)
	assert.Equal(t, int64(51200), mem.ResidentKB)
}

func TestReadMemoryOfSelf(t *testing.T) {
	if _, err := os.Stat("/proc/self/status"); err != nil {
		t.Skip("procfs not available")
	}
	mem, ok := ReadMemory(os.Getpid())
	require.True(t, ok)
	assert.Positive(t, mem.VirtualKB)
}
