package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizePipeline()
	if err := c.normalizeWorker(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.RunRoot) == "" {
		if value, ok := os.LookupEnv("DQMON_ROOT"); ok && strings.TrimSpace(value) != "" {
			c.Paths.RunRoot = value
		}
	}
	if c.Paths.RunRoot, err = expandPath(strings.TrimSpace(c.Paths.RunRoot)); err != nil {
		return fmt.Errorf("paths.run_root: %w", err)
	}
	if c.Paths.MasterParams, err = expandPath(strings.TrimSpace(c.Paths.MasterParams)); err != nil {
		return fmt.Errorf("paths.master_params: %w", err)
	}
	if c.Paths.WorkerBinary, err = expandPath(strings.TrimSpace(c.Paths.WorkerBinary)); err != nil {
		return fmt.Errorf("paths.worker_binary: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizePipeline() {
	c.Pipeline.StartQueue = strings.TrimSpace(c.Pipeline.StartQueue)
	if c.Pipeline.StartQueue == "" {
		c.Pipeline.StartQueue = defaultStartQueue
	}
	for i := range c.Pipeline.Stages {
		c.Pipeline.Stages[i].Queue = strings.TrimSpace(c.Pipeline.Stages[i].Queue)
	}
}

func (c *Config) normalizeWorker() error {
	c.Worker.BinaryName = strings.TrimSpace(c.Worker.BinaryName)
	if c.Worker.BinaryName == "" {
		c.Worker.BinaryName = defaultWorkerBinaryName
	}
	c.Worker.SourceFormat = strings.TrimSpace(c.Worker.SourceFormat)
	if c.Worker.SourceFormat == "" {
		c.Worker.SourceFormat = defaultSourceFormat
	}
	if strings.TrimSpace(c.Worker.ParamTemplate) != "" {
		expanded, err := expandPath(strings.TrimSpace(c.Worker.ParamTemplate))
		if err != nil {
			return fmt.Errorf("worker.param_template: %w", err)
		}
		c.Worker.ParamTemplate = expanded
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
