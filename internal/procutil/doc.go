// Package procutil launches detached worker processes and inspects them by
// pid: liveness probes, SIGKILL, pid files and /proc memory readings.
package procutil
