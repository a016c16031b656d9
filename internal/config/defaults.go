package config

// Storage backends.
const (
	StorageFilesystem = "filesystem"
	StorageS3         = "s3"
)

// Telemetry sinks.
const (
	SinkLog   = "log"
	SinkKafka = "kafka"
	SinkNone  = "none"
)

const (
	defaultConfigPath         = "~/.config/sermoncast/config.toml"
	defaultStateDir           = "~/.local/share/sermoncast"
	defaultScratchDir         = "~/.local/share/sermoncast/scratch"
	defaultLogDir             = "~/.local/share/sermoncast/logs"
	defaultLocalStorageDir    = "~/.local/share/sermoncast/media"
	defaultIngestDir          = "~/.local/share/sermoncast/inbox"
	defaultAPIBind            = "127.0.0.1:7490"
	defaultFFmpegBinary       = "ffmpeg"
	defaultFFprobeBinary      = "ffprobe"
	defaultQuality            = "medium"
	defaultThumbnailSeconds   = 5.0
	defaultWaveformWidth      = 800
	defaultWaveformHeight     = 120
	defaultWaveformColor      = "#3b82f6"
	defaultMediaRoot          = "sermons"
	defaultS3Region           = "us-east-1"
	defaultKafkaTopic         = "sermon-playback-events"
	defaultQueuePollInterval  = 5
	defaultErrorRetryInterval = 10
	defaultQueueCapacity      = 1
	defaultScratchRetention   = 24
	defaultIngestSettleMillis = 2000
	defaultNtfyRequestTimeout = 10
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir:   defaultStateDir,
			ScratchDir: defaultScratchDir,
			LogDir:     defaultLogDir,
			APIBind:    defaultAPIBind,
		},
		Media: Media{
			FFmpegBinary:     defaultFFmpegBinary,
			FFprobeBinary:    defaultFFprobeBinary,
			DefaultQuality:   defaultQuality,
			ThumbnailSeconds: defaultThumbnailSeconds,
			WaveformWidth:    defaultWaveformWidth,
			WaveformHeight:   defaultWaveformHeight,
			WaveformColor:    defaultWaveformColor,
			ProbeDuration:    true,
		},
		Storage: Storage{
			Backend:   StorageFilesystem,
			MediaRoot: defaultMediaRoot,
			LocalDir:  defaultLocalStorageDir,
			S3Region:  defaultS3Region,
		},
		Telemetry: Telemetry{
			Sink:       SinkLog,
			KafkaTopic: defaultKafkaTopic,
		},
		Workflow: Workflow{
			QueuePollInterval:     defaultQueuePollInterval,
			ErrorRetryInterval:    defaultErrorRetryInterval,
			QueueCapacity:         defaultQueueCapacity,
			ScratchRetentionHours: defaultScratchRetention,
		},
		Ingest: Ingest{
			WatchDir:     defaultIngestDir,
			SettleMillis: defaultIngestSettleMillis,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyRequestTimeout,
			NotifySuccess:  true,
		},
		Metrics: Metrics{
			Enabled: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
