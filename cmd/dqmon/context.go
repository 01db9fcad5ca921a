package main

import (
	"context"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"dqmon/internal/config"
	"dqmon/internal/session"
)

type commandContext struct {
	flags *rootFlags

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(flags *rootFlags) *commandContext {
	return &commandContext{flags: flags}
}

// ensureConfig loads the configuration once, applies command-line
// overrides and creates the run root and log directory.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(strings.TrimSpace(c.flags.config))
		if err != nil {
			c.configErr = err
			return
		}
		c.applyOverrides(cfg)
		if err := cfg.Finalize(); err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) applyOverrides(cfg *config.Config) {
	if root := strings.TrimSpace(c.flags.root); root != "" {
		cfg.Paths.RunRoot = root
	}
	if par := strings.TrimSpace(c.flags.par); par != "" {
		cfg.Paths.MasterParams = par
	}
	if bin := strings.TrimSpace(c.flags.workerBin); bin != "" {
		cfg.Paths.WorkerBinary = bin
	}
	if c.verbosity() < 1 {
		cfg.Worker.CaptureOutput = false
	}
}

// verbosity is 1 by default, raised by each -v and lowered by each -q.
func (c *commandContext) verbosity() int {
	return 1 + c.flags.verbose - c.flags.quiet
}

func (c *commandContext) cleanup() bool {
	return !c.flags.noCleanup
}

type sessionMode struct {
	exclusive     bool
	requireWorker bool
}

func (c *commandContext) openSession(ctx context.Context, cmd *cobra.Command, mode sessionMode) (*session.Session, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return session.Open(ctx, cfg, session.Options{
		Verbosity:     c.verbosity(),
		Exclusive:     mode.exclusive,
		RequireWorker: mode.requireWorker,
		Reporter:      newStatusReporter(cmd, c.verbosity()),
	})
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
