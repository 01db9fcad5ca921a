// Package history journals pipeline throughput samples in a SQLite database
// under the run root. The monitor appends one row per reconciliation cycle
// and seeds its rolling throughput window from the newest rows on restart.
package history
