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
	c.normalizeMedia()
	if err := c.normalizeStorage(); err != nil {
		return err
	}
	c.normalizeTelemetry()
	if err := c.normalizeIngest(); err != nil {
		return err
	}
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ScratchDir) == "" {
		c.Paths.ScratchDir = defaultScratchDir
	}
	if c.Paths.ScratchDir, err = expandPath(c.Paths.ScratchDir); err != nil {
		return fmt.Errorf("paths.scratch_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("SERMONCAST_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeMedia() {
	c.Media.FFmpegBinary = strings.TrimSpace(c.Media.FFmpegBinary)
	if c.Media.FFmpegBinary == "" {
		c.Media.FFmpegBinary = defaultFFmpegBinary
	}
	c.Media.FFprobeBinary = strings.TrimSpace(c.Media.FFprobeBinary)
	if c.Media.FFprobeBinary == "" {
		c.Media.FFprobeBinary = defaultFFprobeBinary
	}
	c.Media.DefaultQuality = strings.ToLower(strings.TrimSpace(c.Media.DefaultQuality))
	if c.Media.DefaultQuality == "" {
		c.Media.DefaultQuality = defaultQuality
	}
	if c.Media.ThumbnailSeconds <= 0 {
		c.Media.ThumbnailSeconds = defaultThumbnailSeconds
	}
	if c.Media.WaveformWidth <= 0 {
		c.Media.WaveformWidth = defaultWaveformWidth
	}
	if c.Media.WaveformHeight <= 0 {
		c.Media.WaveformHeight = defaultWaveformHeight
	}
	c.Media.WaveformColor = strings.TrimSpace(c.Media.WaveformColor)
	if c.Media.WaveformColor == "" {
		c.Media.WaveformColor = defaultWaveformColor
	}
}

func (c *Config) normalizeStorage() error {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = StorageFilesystem
	}
	c.Storage.MediaRoot = strings.Trim(strings.TrimSpace(c.Storage.MediaRoot), "/")
	if c.Storage.MediaRoot == "" {
		c.Storage.MediaRoot = defaultMediaRoot
	}
	if strings.TrimSpace(c.Storage.LocalDir) == "" {
		c.Storage.LocalDir = defaultLocalStorageDir
	}
	var err error
	if c.Storage.LocalDir, err = expandPath(c.Storage.LocalDir); err != nil {
		return fmt.Errorf("storage.local_dir: %w", err)
	}
	c.Storage.PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.Storage.PublicBaseURL), "/")
	c.Storage.S3Bucket = strings.TrimSpace(c.Storage.S3Bucket)
	if c.Storage.S3Bucket == "" {
		if value, ok := os.LookupEnv("SERMONCAST_S3_BUCKET"); ok {
			c.Storage.S3Bucket = strings.TrimSpace(value)
		}
	}
	c.Storage.S3Region = strings.TrimSpace(c.Storage.S3Region)
	if c.Storage.S3Region == "" {
		if value, ok := os.LookupEnv("AWS_REGION"); ok && strings.TrimSpace(value) != "" {
			c.Storage.S3Region = strings.TrimSpace(value)
		} else {
			c.Storage.S3Region = defaultS3Region
		}
	}
	c.Storage.S3Endpoint = strings.TrimRight(strings.TrimSpace(c.Storage.S3Endpoint), "/")
	return nil
}

func (c *Config) normalizeTelemetry() {
	c.Telemetry.Sink = strings.ToLower(strings.TrimSpace(c.Telemetry.Sink))
	if c.Telemetry.Sink == "" {
		c.Telemetry.Sink = SinkLog
	}
	if len(c.Telemetry.KafkaBrokers) == 0 {
		if value, ok := os.LookupEnv("KAFKA_BROKERS"); ok {
			c.Telemetry.KafkaBrokers = strings.Split(value, ",")
		}
	}
	brokers := make([]string, 0, len(c.Telemetry.KafkaBrokers))
	seen := make(map[string]struct{}, len(c.Telemetry.KafkaBrokers))
	for _, broker := range c.Telemetry.KafkaBrokers {
		broker = strings.TrimSpace(broker)
		if broker == "" {
			continue
		}
		if _, exists := seen[broker]; exists {
			continue
		}
		seen[broker] = struct{}{}
		brokers = append(brokers, broker)
	}
	c.Telemetry.KafkaBrokers = brokers
	c.Telemetry.KafkaTopic = strings.TrimSpace(c.Telemetry.KafkaTopic)
	if c.Telemetry.KafkaTopic == "" {
		c.Telemetry.KafkaTopic = defaultKafkaTopic
	}
}

func (c *Config) normalizeIngest() error {
	var err error
	if strings.TrimSpace(c.Ingest.WatchDir) == "" {
		c.Ingest.WatchDir = defaultIngestDir
	}
	if c.Ingest.WatchDir, err = expandPath(c.Ingest.WatchDir); err != nil {
		return fmt.Errorf("ingest.watch_dir: %w", err)
	}
	if c.Ingest.SettleMillis <= 0 {
		c.Ingest.SettleMillis = defaultIngestSettleMillis
	}
	return nil
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("SERMONCAST_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNtfyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
