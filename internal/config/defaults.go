package config

const (
	defaultSourceDir              = "~/data/sourcedata"
	defaultRawDir                 = "~/data/rawdata"
	defaultDerivativesDir         = "~/data/derivatives"
	defaultLogDir                 = "~/.local/share/rawbids/logs"
	defaultQueueDBPath            = "~/.local/share/rawbids/queue.db"
	defaultConversionBinary       = "dcm2niix"
	defaultConversionTimeout      = 1800
	defaultDefaceBinary           = "@afni_refacer_run"
	defaultDefaceTimeout          = 1200
	defaultPhysioBinary           = "acq2txt"
	defaultPhysioTimeout          = 300
	defaultFieldmapSplitThreshold = 4
	defaultFieldmapOverridesPath  = "~/.config/rawbids/overrides/fieldmaps.json"
	defaultWorkflowWorkers        = 1
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			SourceDir:      defaultSourceDir,
			RawDir:         defaultRawDir,
			DerivativesDir: defaultDerivativesDir,
			LogDir:         defaultLogDir,
			QueueDBPath:    defaultQueueDBPath,
		},
		Conversion: Conversion{
			Binary:         defaultConversionBinary,
			TimeoutSeconds: defaultConversionTimeout,
		},
		Deface: Deface{
			Enabled:        true,
			Binary:         defaultDefaceBinary,
			TimeoutSeconds: defaultDefaceTimeout,
		},
		Physio: Physio{
			Binary:         defaultPhysioBinary,
			TimeoutSeconds: defaultPhysioTimeout,
		},
		Fieldmap: Fieldmap{
			SplitThreshold: defaultFieldmapSplitThreshold,
			OverridesPath:  defaultFieldmapOverridesPath,
		},
		Workflow: Workflow{
			Workers: defaultWorkflowWorkers,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
