// Package session wires one dqmon invocation together: configuration,
// logging, the run root lock, the throughput journal, the resolved worker
// binary and the monitor that uses them.
//
// Commands that start or stop workers open an exclusive session, which
// holds monitor.lock in the run root for its lifetime so two supervisors
// never reconcile the same pipeline. Read-only commands open a shared
// session and take no lock.
package session
