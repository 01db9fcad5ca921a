package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateWorker(); err != nil {
		return err
	}
	if err := c.validateMonitor(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.RunRoot) == "" {
		return errors.New("paths.run_root must be set (or pass --root)")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if len(c.Pipeline.Stages) == 0 {
		return errors.New("pipeline.stages must include at least one stage")
	}
	seen := map[string]struct{}{c.Pipeline.StartQueue: {}}
	for i, stage := range c.Pipeline.Stages {
		if stage.Queue == "" {
			return fmt.Errorf("pipeline.stages[%d].queue must be set", i)
		}
		if err := validateQueueName(stage.Queue); err != nil {
			return fmt.Errorf("pipeline.stages[%d].queue: %w", i, err)
		}
		if _, dup := seen[stage.Queue]; dup {
			return fmt.Errorf("pipeline.stages[%d].queue %q appears more than once", i, stage.Queue)
		}
		seen[stage.Queue] = struct{}{}
		if stage.Workers < 0 {
			return fmt.Errorf("pipeline.stages[%d].workers must be >= 0", i)
		}
	}
	return validateQueueName(c.Pipeline.StartQueue)
}

func validateQueueName(name string) error {
	if strings.ContainsAny(name, "/\\ \t") {
		return fmt.Errorf("queue name %q must not contain path separators or whitespace", name)
	}
	return nil
}

func (c *Config) validateWorker() error {
	if c.Worker.MaxDstFiles < 0 {
		return errors.New("worker.max_dst_files must be >= 0")
	}
	if c.Worker.SpawnSettleMillis < 0 {
		return errors.New("worker.spawn_settle_ms must be >= 0")
	}
	if c.Worker.PIDReadRetries < 0 {
		return errors.New("worker.pid_read_retries must be >= 0")
	}
	return ensurePositiveMap(map[string]int{
		"worker.exit_poll_interval": c.Worker.ExitPollInterval,
	})
}

func (c *Config) validateMonitor() error {
	if err := ensurePositiveMap(map[string]int{
		"monitor.poll_interval":         c.Monitor.PollInterval,
		"monitor.verbose_poll_interval": c.Monitor.VerbosePollInterval,
		"monitor.error_retry_interval":  c.Monitor.ErrorRetryInterval,
		"monitor.close_timeout":         c.Monitor.CloseTimeout,
		"monitor.throughput_samples":    c.Monitor.ThroughputSamples,
	}); err != nil {
		return err
	}
	if c.Monitor.StartupSettle < 0 {
		return errors.New("monitor.startup_settle must be >= 0")
	}
	if c.Monitor.MinFreeMiB < 0 {
		return errors.New("monitor.min_free_mib must be >= 0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
