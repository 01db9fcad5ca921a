// Package logs reads line-oriented log files incrementally: the last N
// lines of a file, the complete lines appended after an offset, and a
// follow loop that wakes on filesystem events.
//
// Offsets always point just past the last newline consumed, so a line the
// writer has not finished is returned once it is complete. A file that
// shrinks below the offset is treated as truncated and read from the start.
package logs
