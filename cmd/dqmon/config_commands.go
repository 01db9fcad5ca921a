package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"dqmon/internal/config"
	"dqmon/internal/fileutil"
	"dqmon/internal/pipeline"
	"dqmon/internal/preflight"
	"dqmon/internal/queuedir"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}
	configCmd.AddCommand(newConfigValidateCommand(ctx))
	configCmd.AddCommand(newConfigInitCommand())
	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a sample configuration file",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := configTarget(targetPath)
			if err != nil {
				return err
			}
			if err := writeSampleConfig(target, overwrite); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Set paths.master_params (or pass --par) before running dqmon.")
			fmt.Fprintf(out, "Check it with: %s --config %s config validate\n", cmd.Root().Name(), target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

// configTarget resolves where init writes, defaulting to the per-user path.
func configTarget(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		target, err := config.DefaultConfigPath()
		if err != nil {
			return "", fmt.Errorf("determine default config path: %w", err)
		}
		return target, nil
	}
	target, err := config.ExpandPath(path)
	if err != nil {
		return "", fmt.Errorf("resolve config path: %w", err)
	}
	return target, nil
}

func writeSampleConfig(target string, overwrite bool) error {
	if !overwrite && fileutil.Exists(target) {
		return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := config.CreateSample(target); err != nil {
		return fmt.Errorf("create sample config: %w", err)
	}
	return nil
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "validate",
		Short:       "Validate the configuration and show the resolved pipeline",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := loadConfigReport(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, strings.Join(report.render(shouldColorize(out)), "\n"))
			return nil
		},
	}
}

// configReport is what validate learned about the effective configuration.
type configReport struct {
	path     string
	exists   bool
	runRoot  string
	pipeline *pipeline.Pipeline
	present  int
	binary   preflight.Result
}

// loadConfigReport loads the configuration with command-line overrides
// applied, builds its pipeline and resolves the worker binary. A missing
// binary is reported, not fatal: show, stop and kill run without one.
func loadConfigReport(ctx *commandContext) (configReport, error) {
	cfg, path, exists, err := config.Load(strings.TrimSpace(ctx.flags.config))
	if err != nil {
		return configReport{}, fmt.Errorf("load config: %w", err)
	}
	ctx.applyOverrides(cfg)
	if err := cfg.Finalize(); err != nil {
		return configReport{}, fmt.Errorf("validate overrides: %w", err)
	}
	p, err := pipeline.FromConfig(cfg)
	if err != nil {
		return configReport{}, fmt.Errorf("build pipeline: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return configReport{}, fmt.Errorf("ensure directories: %w", err)
	}

	report := configReport{
		path:     path,
		exists:   exists,
		runRoot:  cfg.Paths.RunRoot,
		pipeline: p,
		binary:   preflight.CheckWorkerBinary(cfg),
	}
	for _, name := range p.Queues() {
		if queuedir.Open(cfg.Paths.RunRoot, name).Exists() {
			report.present++
		}
	}
	return report, nil
}

func (r configReport) render(colorize bool) []string {
	lines := []string{"Config path: " + r.path}
	if !r.exists {
		lines = append(lines, "Config file did not exist; defaults were used")
	}
	hops := []string{r.pipeline.Start()}
	for _, stage := range r.pipeline.Stages() {
		hops = append(hops, fmt.Sprintf("%s(%d)", stage.Dst, stage.Workers))
	}
	lines = append(lines,
		"Run root: "+r.runRoot,
		"Pipeline: "+strings.Join(hops, " -> "),
		fmt.Sprintf("Queues present: %d of %d", r.present, len(r.pipeline.Queues())),
	)
	kind := statusOK
	if !r.binary.Passed {
		kind = statusWarn
	}
	lines = append(lines, renderStatusLine(r.binary.Name, kind, r.binary.Detail, colorize))
	return append(lines, "Configuration valid")
}
