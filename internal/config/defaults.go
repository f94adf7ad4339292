package config

const (
	defaultConfigPath               = "~/.config/scenecast/config.toml"
	defaultDataDir                  = "~/.local/share/scenecast"
	defaultLogDir                   = "~/.local/share/scenecast/logs"
	defaultMediaDir                 = "~/.local/share/scenecast/media"
	defaultAPIBind                  = "127.0.0.1:7600"
	defaultSpeechConcurrency        = 2
	defaultTranscriptionConcurrency = 1
	defaultCompositionConcurrency   = 1
	defaultStatusLogInterval        = 30
	defaultHistorySize              = 50
	defaultProviderTimeout          = 120
	defaultImageWidth               = 1080
	defaultImageHeight              = 1920
	defaultVoice                    = "en_US-lessac-medium"
	defaultLanguage                 = "en"
	defaultSpeechCommand            = "piper"
	defaultTranscriptionCommand     = "whisper"
	defaultTranscriptionModel       = "base"
	defaultTranscriptionDevice      = "cpu"
	defaultMaxParallelJobs          = 4
	defaultPurgeInterval            = 60
	defaultCompletedRetentionHours  = 168
	defaultNotifyRequestTimeout     = 10
	defaultLogFormat                = "console"
	defaultLogLevel                 = "info"
	defaultLogRetentionDays         = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:  defaultDataDir,
			LogDir:   defaultLogDir,
			MediaDir: defaultMediaDir,
			APIBind:  defaultAPIBind,
		},
		Queues: Queues{
			SpeechConcurrency:        defaultSpeechConcurrency,
			TranscriptionConcurrency: defaultTranscriptionConcurrency,
			CompositionConcurrency:   defaultCompositionConcurrency,
			StatusLogInterval:        defaultStatusLogInterval,
			HistorySize:              defaultHistorySize,
		},
		Providers: Providers{
			RequestTimeout: defaultProviderTimeout,
			ImageWidth:     defaultImageWidth,
			ImageHeight:    defaultImageHeight,
			Voice:          defaultVoice,
			Language:       defaultLanguage,
		},
		Speech: Speech{
			Command: defaultSpeechCommand,
		},
		Transcription: Transcription{
			Command: defaultTranscriptionCommand,
			Model:   defaultTranscriptionModel,
			Device:  defaultTranscriptionDevice,
		},
		Workflow: Workflow{
			MaxParallelJobs:         defaultMaxParallelJobs,
			PurgeInterval:           defaultPurgeInterval,
			CompletedRetentionHours: defaultCompletedRetentionHours,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			JobCompleted:   true,
			JobFailed:      true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
