package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"dqmon/internal/monitor"
)

const clearScreen = "\x1b[H\x1b[2J"

const interruptMessage = `
%d processes are still running.

          To kill them, run: "%s kill"
  To resume monitoring, run: "%s run"
`

// statusReporter prints monitor updates to the command's output streams.
type statusReporter struct {
	out       io.Writer
	errOut    io.Writer
	prog      string
	verbosity int
	clear     bool
}

func newStatusReporter(cmd *cobra.Command, verbosity int) *statusReporter {
	out := cmd.OutOrStdout()
	return &statusReporter{
		out:       out,
		errOut:    cmd.ErrOrStderr(),
		prog:      cmd.Root().Name(),
		verbosity: verbosity,
		clear:     verbosity > 1 && shouldColorize(out),
	}
}

func (r *statusReporter) Status(snap monitor.Snapshot) {
	if r.clear {
		fmt.Fprint(r.out, clearScreen)
	}
	fmt.Fprintln(r.out, strings.Join(renderSnapshot(snap), "\n"))
}

func (r *statusReporter) Failures(failures []monitor.Failure) {
	fmt.Fprintln(r.out, strings.Join(renderFailures(failures, r.verbosity), "\n"))
}

func (r *statusReporter) Interrupted(running int) {
	fmt.Fprintln(r.errOut, "Exiting because of interrupt...")
	fmt.Fprintf(r.errOut, interruptMessage, running, r.prog, r.prog)
}
