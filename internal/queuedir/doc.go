// Package queuedir implements the on-disk queue protocol shared by the
// supervisor and its workers.
//
// A queue is a directory named queue-<name> inside the run root. Each
// document lives as exactly one file whose suffix encodes its state:
//
//	<doc>.ready              waiting for a worker
//	<doc>.<id>.working       claimed by worker <id>
//	<doc>.<id>.writing.xml   result being written by worker <id> (in the next queue)
//	<doc>.failed             failed once, eligible for one retry
//	<doc>.failed_twice       given up on
//	done                     the producer side has finished
//
// Every transition is a single rename (or the creation/removal of a file
// that is not a claim), so concurrent workers never share a claim and a
// crashed worker leaves its claims behind for Recover to return.
package queuedir
