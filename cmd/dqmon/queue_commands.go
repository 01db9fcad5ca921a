package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"dqmon/internal/queuedir"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add <file>...",
		Short: "Queue documents at the start of the pipeline",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			q := queuedir.Open(cfg.Paths.RunRoot, cfg.Pipeline.StartQueue)
			if q.IsDone() {
				return fmt.Errorf("queue %q is already marked done; no more documents can be added", q.Name)
			}
			out := cmd.OutOrStdout()
			for _, arg := range args {
				absPath, err := filepath.Abs(arg)
				if err != nil {
					return fmt.Errorf("resolve path: %w", err)
				}
				info, err := os.Stat(absPath)
				if err != nil {
					if errors.Is(err, os.ErrNotExist) {
						return fmt.Errorf("file does not exist: %s", absPath)
					}
					return fmt.Errorf("inspect file: %w", err)
				}
				if info.IsDir() {
					return fmt.Errorf("%s is a directory", absPath)
				}
				doc, err := q.EnqueueFile(absPath)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Queued %s in %s\n", doc, q.Name)
			}
			return nil
		},
	}
}

func newFinishCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "finish",
		Short: "Mark the start queue done so stages can complete once drained",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			q := queuedir.Open(cfg.Paths.RunRoot, cfg.Pipeline.StartQueue)
			if err := q.MarkDone(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Marked queue %s done\n", q.Name)
			return nil
		},
	}
}
