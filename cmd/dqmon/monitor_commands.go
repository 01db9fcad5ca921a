package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"dqmon/internal/config"
	"dqmon/internal/logging"
	"dqmon/internal/preflight"
	"dqmon/internal/session"
)

func newMonitorCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		{
			Use:   "run",
			Short: "Start missing workers and monitor the pipeline until it completes",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runPipeline(cmd, ctx)
			},
		},
		{
			Use:   "start",
			Short: "Start missing workers once and show their status",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return startPipeline(cmd, ctx)
			},
		},
		{
			Use:   "stop",
			Short: "Ask every worker to exit and wait for it",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return stopPipeline(cmd, ctx)
			},
		},
		{
			Use:   "kill",
			Short: "Kill every worker immediately",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return killPipeline(cmd, ctx)
			},
		},
		{
			Use:   "show",
			Short: "Show worker and queue status",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return showPipeline(cmd, ctx)
			},
		},
	}
}

func runPipeline(cmd *cobra.Command, ctx *commandContext) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	if err := runPreflight(cfg); err != nil {
		return err
	}

	sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess, err := ctx.openSession(sigCtx, cmd, sessionMode{exclusive: true, requireWorker: true})
	if err != nil {
		return err
	}
	defer sess.Close()

	err = sess.Monitor().Watch(sigCtx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func startPipeline(cmd *cobra.Command, ctx *commandContext) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	if err := runPreflight(cfg); err != nil {
		return err
	}

	sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess, err := ctx.openSession(sigCtx, cmd, sessionMode{exclusive: true, requireWorker: true})
	if err != nil {
		return err
	}
	defer sess.Close()

	snap, err := sess.Monitor().StartOnce(sigCtx)
	if err != nil {
		return err
	}
	reporter := newStatusReporter(cmd, ctx.verbosity())
	reporter.Status(snap)
	return nil
}

func stopPipeline(cmd *cobra.Command, ctx *commandContext) error {
	sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess, err := ctx.openSession(sigCtx, cmd, sessionMode{exclusive: true})
	if err != nil {
		return err
	}
	defer sess.Close()

	count, err := sess.Monitor().CloseAll(sigCtx, ctx.cleanup())
	if err != nil {
		return err
	}
	reportStopped(cmd, ctx, sess, "Stopped", count)
	return nil
}

func killPipeline(cmd *cobra.Command, ctx *commandContext) error {
	sess, err := ctx.openSession(cmd.Context(), cmd, sessionMode{exclusive: true})
	if err != nil {
		return err
	}
	defer sess.Close()

	count, err := sess.Monitor().KillAll(ctx.cleanup())
	if err != nil {
		return err
	}
	reportStopped(cmd, ctx, sess, "Killed", count)
	return nil
}

func showPipeline(cmd *cobra.Command, ctx *commandContext) error {
	sess, err := ctx.openSession(cmd.Context(), cmd, sessionMode{})
	if err != nil {
		return err
	}
	defer sess.Close()

	m := sess.Monitor()
	snap, err := m.Show()
	if err != nil {
		return err
	}
	reporter := newStatusReporter(cmd, ctx.verbosity())
	reporter.Status(snap)
	if ctx.verbosity() > 1 {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out)
		fmt.Fprintln(out, renderQueueTable(snap))
		failures, err := m.Failures()
		if err != nil {
			return err
		}
		reporter.Failures(failures)
	}
	return nil
}

func reportStopped(cmd *cobra.Command, ctx *commandContext, sess *session.Session, verb string, count int) {
	sess.Logger().Info("workers shut down",
		logging.String("action", strings.ToLower(verb)),
		logging.Int("workers", count),
		logging.Bool("cleanup", ctx.cleanup()),
	)
	if ctx.verbosity() < 1 {
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %d %s\n", verb, count, plural(count, "worker", "workers"))
}

func runPreflight(cfg *config.Config) error {
	return preflight.Failed(preflight.RunAll(cfg))
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
