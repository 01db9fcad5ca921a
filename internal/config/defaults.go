package config

const (
	defaultConfigPath          = "~/.config/dqmon/config.toml"
	defaultRunRoot             = "~/.local/share/dqmon/run"
	defaultLogDir              = "~/.local/share/dqmon/logs"
	defaultStartQueue          = "start"
	defaultWorkerBinaryName    = "Serif"
	defaultSourceFormat        = "sgm"
	defaultMaxDstFiles         = 500
	defaultSpawnSettleMillis   = 100
	defaultExitPollInterval    = 1
	defaultPIDReadRetries      = 3
	defaultPollInterval        = 10
	defaultVerbosePollInterval = 3
	defaultErrorRetryInterval  = 10
	defaultStartupSettle       = 2
	defaultCloseTimeout        = 600
	defaultThroughputSamples   = 5000
	defaultMinFreeMiB          = 512
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			RunRoot: defaultRunRoot,
			LogDir:  defaultLogDir,
		},
		Pipeline: Pipeline{
			StartQueue: defaultStartQueue,
			Stages: []Stage{
				{Queue: "values", Workers: 1},
				{Queue: "parse", Workers: 4},
				{Queue: "output", Workers: 2},
			},
		},
		Worker: Worker{
			BinaryName: defaultWorkerBinaryName,
			BinarySearchPaths: []string{
				"../bin/x86_64",
				"../../../Core/SERIF/build/bin",
			},
			SourceFormat:      defaultSourceFormat,
			MaxDstFiles:       defaultMaxDstFiles,
			CaptureOutput:     true,
			SpawnSettleMillis: defaultSpawnSettleMillis,
			ExitPollInterval:  defaultExitPollInterval,
			PIDReadRetries:    defaultPIDReadRetries,
		},
		Monitor: Monitor{
			PollInterval:        defaultPollInterval,
			VerbosePollInterval: defaultVerbosePollInterval,
			ErrorRetryInterval:  defaultErrorRetryInterval,
			StartupSettle:       defaultStartupSettle,
			CloseTimeout:        defaultCloseTimeout,
			ThroughputSamples:   defaultThroughputSamples,
			MinFreeMiB:          defaultMinFreeMiB,
			WatchEvents:         true,
			History:             true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
