package config

const (
	defaultRuntimeDir            = "."
	defaultProfileDir            = "profiles"
	defaultLogDir                = "~/.local/share/streamhalt/logs"
	defaultProfile               = "sim"
	defaultStreamCount           = 6
	defaultTempOutputDir         = "./output/temp/"
	defaultFinalOutputDir        = "/mnt/raid5"
	defaultSampleIntervalSeconds = 1
	defaultMaxSamples            = 15
	defaultRequiredStableSamples = 3
	defaultSweepMaxPasses        = 20
	defaultSweepIntervalSeconds  = 1
	defaultProducerGraceSeconds  = 10
	defaultMoverGraceSeconds     = 5
	defaultMoverDrainSeconds     = 3
	defaultRelayCheckSeconds     = 3
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultJournalPath           = "~/.local/share/streamhalt/journal.db"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			RuntimeDir: defaultRuntimeDir,
			ProfileDir: defaultProfileDir,
			LogDir:     defaultLogDir,
		},
		Streams: Streams{
			Count:           defaultStreamCount,
			Profile:         defaultProfile,
			DefaultTempDir:  defaultTempOutputDir,
			DefaultFinalDir: defaultFinalOutputDir,
		},
		Stability: Stability{
			SampleIntervalSeconds: defaultSampleIntervalSeconds,
			MaxSamples:            defaultMaxSamples,
			RequiredStableSamples: defaultRequiredStableSamples,
		},
		Sweep: Sweep{
			MaxPasses:           defaultSweepMaxPasses,
			PassIntervalSeconds: defaultSweepIntervalSeconds,
		},
		Termination: Termination{
			ProducerPatterns:     []string{"rtsp_stream", "run.py"},
			ProducerGraceSeconds: defaultProducerGraceSeconds,
			MoverPatterns:        []string{"rtsp_file_mover", "file_mover.py"},
			MoverGraceSeconds:    defaultMoverGraceSeconds,
			MoverDrainSeconds:    defaultMoverDrainSeconds,
			RelayPatterns:        []string{"mediamtx"},
			RelayCheckSeconds:    defaultRelayCheckSeconds,
		},
		Journal: Journal{
			Enabled: true,
			Path:    defaultJournalPath,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
