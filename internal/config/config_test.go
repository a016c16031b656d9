package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"sermoncast/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantState := filepath.Join(tempHome, ".local", "share", "sermoncast")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.Paths.APIBind != "127.0.0.1:7490" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Storage.Backend != config.StorageFilesystem {
		t.Fatalf("expected filesystem backend by default, got %q", cfg.Storage.Backend)
	}
	if cfg.Storage.MediaRoot != "sermons" {
		t.Fatalf("unexpected media root: %q", cfg.Storage.MediaRoot)
	}
	if cfg.Media.DefaultQuality != "medium" {
		t.Fatalf("unexpected default quality: %q", cfg.Media.DefaultQuality)
	}
	if cfg.Media.ThumbnailSeconds != 5 {
		t.Fatalf("unexpected thumbnail offset: %v", cfg.Media.ThumbnailSeconds)
	}
	if cfg.Media.WaveformWidth != 800 || cfg.Media.WaveformHeight != 120 {
		t.Fatalf("unexpected waveform size: %dx%d", cfg.Media.WaveformWidth, cfg.Media.WaveformHeight)
	}
	if cfg.Telemetry.Sink != config.SinkLog {
		t.Fatalf("unexpected telemetry sink: %q", cfg.Telemetry.Sink)
	}
	if cfg.Ingest.Enabled {
		t.Fatal("expected ingest disabled by default")
	}
	if cfg.DatabasePath() != filepath.Join(wantState, "sermoncast.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StateDir, cfg.Paths.ScratchDir, cfg.Paths.LogDir, cfg.Storage.LocalDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "sermoncast.toml")

	type payload struct {
		Media struct {
			DefaultQuality string `toml:"default_quality"`
			RawFallback    bool   `toml:"raw_fallback"`
		} `toml:"media"`
		Storage struct {
			Backend   string `toml:"backend"`
			MediaRoot string `toml:"media_root"`
			S3Bucket  string `toml:"s3_bucket"`
		} `toml:"storage"`
		Workflow struct {
			QueuePollInterval int `toml:"queue_poll_interval"`
		} `toml:"workflow"`
	}
	custom := payload{}
	custom.Media.DefaultQuality = "HIGH"
	custom.Media.RawFallback = true
	custom.Storage.Backend = "s3"
	custom.Storage.MediaRoot = "/sermons/"
	custom.Storage.S3Bucket = "church-media"
	custom.Workflow.QueuePollInterval = 2
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Media.DefaultQuality != "high" {
		t.Fatalf("expected quality to be lowercased, got %q", cfg.Media.DefaultQuality)
	}
	if !cfg.Media.RawFallback {
		t.Fatal("expected raw fallback enabled")
	}
	if cfg.Storage.Backend != config.StorageS3 || cfg.Storage.S3Bucket != "church-media" {
		t.Fatalf("unexpected storage: %+v", cfg.Storage)
	}
	if cfg.Storage.MediaRoot != "sermons" {
		t.Fatalf("expected media root slashes trimmed, got %q", cfg.Storage.MediaRoot)
	}
	if cfg.Workflow.QueuePollInterval != 2 {
		t.Fatalf("expected poll interval 2, got %d", cfg.Workflow.QueuePollInterval)
	}
}

func TestEnvFallbacks(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "sermoncast.toml")
	contents := "[storage]\nbackend = \"s3\"\n\n[telemetry]\nsink = \"kafka\"\n"
	if err := os.WriteFile(configPath, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("SERMONCAST_S3_BUCKET", "env-bucket")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,k1:9092")
	t.Setenv("SERMONCAST_NTFY_TOPIC", " https://ntfy.example.org/media ")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Storage.S3Bucket != "env-bucket" {
		t.Fatalf("expected bucket from env, got %q", cfg.Storage.S3Bucket)
	}
	if got := strings.Join(cfg.Telemetry.KafkaBrokers, ","); got != "k1:9092,k2:9092" {
		t.Fatalf("unexpected brokers: %q", got)
	}
	if cfg.Notifications.NtfyTopic != "https://ntfy.example.org/media" {
		t.Fatalf("expected ntfy topic from env, got %q", cfg.Notifications.NtfyTopic)
	}
	if cfg.Notifications.RequestTimeout != 10 {
		t.Fatalf("unexpected ntfy timeout: %d", cfg.Notifications.RequestTimeout)
	}
}

func TestDotEnvBesideConfigIsLoaded(t *testing.T) {
	tempDir := t.TempDir()
	t.Chdir(t.TempDir())
	configPath := filepath.Join(tempDir, "sermoncast.toml")
	if err := os.WriteFile(configPath, []byte("[storage]\nbackend = \"s3\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(tempDir, ".env"), []byte("SERMONCAST_S3_BUCKET=dotenv-bucket\n"), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	// Register cleanup for the variable godotenv will set.
	t.Setenv("SERMONCAST_S3_BUCKET", "")
	os.Unsetenv("SERMONCAST_S3_BUCKET")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Storage.S3Bucket != "dotenv-bucket" {
		t.Fatalf("expected bucket from .env, got %q", cfg.Storage.S3Bucket)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"quality", func(c *config.Config) { c.Media.DefaultQuality = "ultra" }, "media.default_quality"},
		{"backend", func(c *config.Config) { c.Storage.Backend = "ftp" }, "storage.backend"},
		{"bucket", func(c *config.Config) { c.Storage.Backend = config.StorageS3 }, "storage.s3_bucket"},
		{"sink", func(c *config.Config) { c.Telemetry.Sink = "pigeon" }, "telemetry.sink"},
		{"brokers", func(c *config.Config) { c.Telemetry.Sink = config.SinkKafka }, "telemetry.kafka_brokers"},
		{"poll", func(c *config.Config) { c.Workflow.QueuePollInterval = 0 }, "workflow.queue_poll_interval"},
		{"ntfy", func(c *config.Config) { c.Notifications.NtfyTopic = "church-alerts" }, "notifications.ntfy_topic"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected %q in %v", tt.want, err)
			}
		})
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	for _, section := range []string{"[paths]", "[media]", "[storage]", "[telemetry]", "[workflow]", "[ingest]", "[notifications]", "[logging]"} {
		if !strings.Contains(string(contents), section) {
			t.Fatalf("expected %s in sample config", section)
		}
	}

	var parsed config.Config
	if err := toml.Unmarshal(contents, &parsed); err != nil {
		t.Fatalf("sample config should parse: %v", err)
	}
	if parsed.Storage.MediaRoot != "sermons" {
		t.Fatalf("unexpected sample media root: %q", parsed.Storage.MediaRoot)
	}
}
