// Package worker manages worker processes through their directories under
// the run root.
//
// Each worker owns worker-<id>/ holding its rendered parameter file
// (worker.par), its pid, the queues it is bound to, the telemetry it writes
// (times), an optional quit sentinel and captured output (out.txt). The
// directory is the only source of truth: Load and All rebuild a Worker from
// it, so a restarted monitor sees exactly what the previous one left.
package worker
