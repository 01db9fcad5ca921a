// Package preflight provides readiness checks for the filesystem paths and
// binaries dqmon depends on.
//
// These checks run in two contexts:
//   - `dqmon run` and `dqmon start` call RunAll before spawning workers and
//     refuse to continue when any check fails.
//   - `dqmon check` prints every result as a table.
package preflight
