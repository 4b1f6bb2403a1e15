package config

const (
	defaultWorkspaceDir  = "~/.local/share/montage/workspace"
	defaultLogDir        = "~/.local/share/montage/logs"
	defaultHistoryDB     = "~/.local/share/montage/history.db"
	defaultFFmpegBinary  = "ffmpeg"
	defaultFFprobeBinary = "ffprobe"
	defaultProbeTimeout  = 30
	defaultProbeWorkers  = 4
	defaultFetchTimeout  = 60
	defaultEpsilonMS     = 1
	defaultGapTolerance  = 1
	defaultSpeedMin      = 0.25
	defaultSpeedMax      = 4.0
	defaultDuckingDB     = -12.0
	defaultDuckFade      = 0.25
	defaultOutputWidth   = 1920
	defaultOutputHeight  = 1080
	defaultOutputFPS     = 30
	defaultPreset        = "medium"
	defaultCRF           = 20
	defaultAudioBitrate  = "192k"
	defaultLogFormat     = "console"
	defaultLogLevel      = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkspaceDir: defaultWorkspaceDir,
			LogDir:       defaultLogDir,
			HistoryDB:    defaultHistoryDB,
		},
		Tools: Tools{
			FFmpegBinary:  defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
			ProbeTimeout:  defaultProbeTimeout,
			ProbeWorkers:  defaultProbeWorkers,
			FetchTimeout:  defaultFetchTimeout,
		},
		Compiler: Compiler{
			EpsilonMS:      defaultEpsilonMS,
			GapToleranceMS: defaultGapTolerance,
			SpeedMin:       defaultSpeedMin,
			SpeedMax:       defaultSpeedMax,
			PreferTrim:     true,
			DuckingDB:      defaultDuckingDB,
			DuckFade:       defaultDuckFade,
		},
		Output: Output{
			Width:        defaultOutputWidth,
			Height:       defaultOutputHeight,
			FPS:          defaultOutputFPS,
			Preset:       defaultPreset,
			CRF:          defaultCRF,
			AudioBitrate: defaultAudioBitrate,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
