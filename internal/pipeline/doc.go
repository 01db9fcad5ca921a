// Package pipeline describes the ordered chain of queues documents flow
// through, from the start queue to the final queue, with a desired worker
// count per edge.
package pipeline
