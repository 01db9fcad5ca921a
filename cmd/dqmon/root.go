package main

import (
	"github.com/spf13/cobra"
)

type rootFlags struct {
	config    string
	root      string
	par       string
	workerBin string
	verbose   int
	quiet     int
	noCleanup bool
}

func newRootCommand() *cobra.Command {
	flags := &rootFlags{}
	ctx := newCommandContext(flags)

	rootCmd := &cobra.Command{
		Use:   "dqmon",
		Short: "Supervise a disk-queue document pipeline",
		Long: `dqmon keeps worker processes running between the queues of a document
pipeline, restarting them when they die, until every stage is done.

Commands:
  run    Start missing workers, then keep monitoring until the pipeline completes
  start  Start missing workers once and show their status
  stop   Ask every worker to exit and wait for it
  kill   Kill every worker immediately
  show   Show worker and queue status without starting or stopping anything`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, ctx)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.config, "config", "c", "", "Configuration file path")
	pf.StringVar(&flags.root, "root", "", "Run root holding queue and worker directories")
	pf.StringVar(&flags.root, "queue-dir", "", "Alias for --root")
	_ = pf.MarkHidden("queue-dir")
	pf.StringVar(&flags.par, "par", "", "Master parameter file")
	pf.StringVar(&flags.workerBin, "serif-bin", "", "Path to the worker binary")
	pf.CountVarP(&flags.verbose, "verbose", "v", "Generate more verbose output (repeatable)")
	pf.CountVarP(&flags.quiet, "quiet", "q", "Generate less verbose output (repeatable)")
	pf.BoolVar(&flags.noCleanup, "no-cleanup", false, "Do not remove worker directories when stopping or killing workers")

	for _, cmd := range newMonitorCommands(ctx) {
		rootCmd.AddCommand(cmd)
	}
	rootCmd.AddCommand(newAddCommand(ctx))
	rootCmd.AddCommand(newFinishCommand(ctx))
	rootCmd.AddCommand(newCheckCommand(ctx))
	rootCmd.AddCommand(newLogsCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
