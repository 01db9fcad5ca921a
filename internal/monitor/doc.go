// Package monitor supervises a pipeline of worker processes.
//
// Every cycle the monitor rebuilds its view of the workers from the run
// root, returns claims held by dead workers to their queues, starts or
// closes workers until each stage runs its configured count, and samples
// throughput from the final stage. The filesystem is the only shared state,
// so a monitor can be stopped and restarted at any point.
package monitor
