package procutil

import (
	"bufio"
	"os"
	"strconv"
	"strings"
)

// Memory is a process's virtual and resident size in kilobytes.
type Memory struct {
	VirtualKB  int64
	ResidentKB int64
}

// ReadMemory reads VmSize and VmRSS from /proc/<pid>/status. Processes
// that have exited or do not expose the fields return a zero Memory and
// false.
func ReadMemory(pid int) (Memory, bool) {
	if pid <= 0 {
		return Memory{}, false
	}
	f, err := os.Open("/proc/" + strconv.Itoa(pid) + "/status")
	if err != nil {
		return Memory{}, false
	}
	defer f.Close()
	return parseStatus(bufio.NewScanner(f))
}

func parseStatus(scanner *bufio.Scanner) (Memory, bool) {
	var mem Memory
	var found bool
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		var dst *int64
		switch key {
		case "VmSize":
			dst = &mem.VirtualKB
		case "VmRSS":
			dst = &mem.ResidentKB
		default:
			continue
		}
		fields := strings.Fields(value)
		if len(fields) == 0 {
			continue
		}
		n, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			continue
		}
		*dst = n
		found = true
	}
	return mem, found
}
