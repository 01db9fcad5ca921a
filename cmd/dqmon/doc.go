// Command dqmon supervises a disk-queue document pipeline: it keeps the
// configured number of worker processes running on each stage, restarts
// them when they die, recovers documents they abandoned and reports
// progress until the final stage completes.
//
// Usage:
//
//	dqmon [flags] [run|start|stop|kill|show]
//
// Without a command dqmon runs "run".
package main
