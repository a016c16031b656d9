package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateMedia(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateTelemetry(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.NtfyTopic == "" {
		return nil
	}
	parsed, err := url.ParseRequestURI(c.Notifications.NtfyTopic)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return fmt.Errorf("notifications.ntfy_topic must be an http(s) URL (got %q)", c.Notifications.NtfyTopic)
	}
	return nil
}

func (c *Config) validateMedia() error {
	switch c.Media.DefaultQuality {
	case "low", "medium", "high":
	default:
		return fmt.Errorf("media.default_quality must be low, medium, or high (got %q)", c.Media.DefaultQuality)
	}
	if c.Media.ThumbnailSeconds < 0 {
		return errors.New("media.thumbnail_seconds must be >= 0")
	}
	if c.Media.WaveformWidth > 8192 || c.Media.WaveformHeight > 4096 {
		return errors.New("media.waveform_width/height exceed the supported canvas")
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case StorageFilesystem:
		if strings.TrimSpace(c.Storage.LocalDir) == "" {
			return errors.New("storage.local_dir must be set when storage.backend is filesystem")
		}
	case StorageS3:
		if c.Storage.S3Bucket == "" {
			defaultPath, err := DefaultConfigPath()
			if err != nil {
				defaultPath = defaultConfigPath
			}
			return fmt.Errorf("storage.s3_bucket is required for the s3 backend. Set SERMONCAST_S3_BUCKET or edit %s", defaultPath)
		}
		if c.Storage.S3Endpoint != "" {
			if _, err := url.ParseRequestURI(c.Storage.S3Endpoint); err != nil {
				return fmt.Errorf("storage.s3_endpoint: %w", err)
			}
		}
	default:
		return fmt.Errorf("storage.backend must be filesystem or s3 (got %q)", c.Storage.Backend)
	}
	if c.Storage.PublicBaseURL != "" {
		if _, err := url.ParseRequestURI(c.Storage.PublicBaseURL); err != nil {
			return fmt.Errorf("storage.public_base_url: %w", err)
		}
	}
	return nil
}

func (c *Config) validateTelemetry() error {
	switch c.Telemetry.Sink {
	case SinkLog, SinkNone:
	case SinkKafka:
		if len(c.Telemetry.KafkaBrokers) == 0 {
			return errors.New("telemetry.kafka_brokers must be set when telemetry.sink is kafka (or set KAFKA_BROKERS)")
		}
	default:
		return fmt.Errorf("telemetry.sink must be log, kafka, or none (got %q)", c.Telemetry.Sink)
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.queue_poll_interval":     c.Workflow.QueuePollInterval,
		"workflow.error_retry_interval":    c.Workflow.ErrorRetryInterval,
		"workflow.queue_capacity":          c.Workflow.QueueCapacity,
		"workflow.scratch_retention_hours": c.Workflow.ScratchRetentionHours,
	}); err != nil {
		return err
	}
	if c.Ingest.Enabled && c.Ingest.SettleMillis <= 0 {
		return errors.New("ingest.settle_millis must be positive when ingest.enabled is true")
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
