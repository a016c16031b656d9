package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	StateDir   string `toml:"state_dir"`
	ScratchDir string `toml:"scratch_dir"`
	LogDir     string `toml:"log_dir"`
	APIBind    string `toml:"api_bind"`
	APIToken   string `toml:"api_token"`
}

// Media contains engine binaries and artifact generation defaults.
type Media struct {
	FFmpegBinary     string  `toml:"ffmpeg_binary"`
	FFprobeBinary    string  `toml:"ffprobe_binary"`
	DefaultQuality   string  `toml:"default_quality"`
	ThumbnailSeconds float64 `toml:"thumbnail_seconds"`
	WaveformWidth    int     `toml:"waveform_width"`
	WaveformHeight   int     `toml:"waveform_height"`
	WaveformColor    string  `toml:"waveform_color"`
	ProbeDuration    bool    `toml:"probe_duration"`
	RawFallback      bool    `toml:"raw_fallback"`
	KeepWorkdir      bool    `toml:"keep_workdir"`
}

// Storage selects and configures the object storage backend.
type Storage struct {
	Backend       string `toml:"backend"`
	MediaRoot     string `toml:"media_root"`
	LocalDir      string `toml:"local_dir"`
	PublicBaseURL string `toml:"public_base_url"`
	S3Bucket      string `toml:"s3_bucket"`
	S3Region      string `toml:"s3_region"`
	S3Endpoint    string `toml:"s3_endpoint"`
	S3PathStyle   bool   `toml:"s3_path_style"`
}

// Telemetry selects where analytics events are delivered.
type Telemetry struct {
	Sink         string   `toml:"sink"`
	KafkaBrokers []string `toml:"kafka_brokers"`
	KafkaTopic   string   `toml:"kafka_topic"`
}

// Workflow contains configuration for daemon timing and intervals.
type Workflow struct {
	QueuePollInterval     int `toml:"queue_poll_interval"`
	ErrorRetryInterval    int `toml:"error_retry_interval"`
	QueueCapacity         int `toml:"queue_capacity"`
	ScratchRetentionHours int `toml:"scratch_retention_hours"`
}

// Ingest configures the watch folder that enqueues new uploads.
type Ingest struct {
	Enabled      bool   `toml:"enabled"`
	WatchDir     string `toml:"watch_dir"`
	SettleMillis int    `toml:"settle_millis"`
}

// Notifications configures operator alerts published to ntfy.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	NotifySuccess  bool   `toml:"notify_success"`
}

// Metrics toggles the Prometheus endpoint.
type Metrics struct {
	Enabled bool `toml:"enabled"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for sermoncast.
//
// Configuration sections by subsystem:
//   - Paths: state, scratch and log directories plus the API bind address
//   - Media: ffmpeg/ffprobe binaries and artifact defaults
//   - Storage: filesystem or S3-compatible object storage
//   - Telemetry: analytics sink selection
//   - Workflow: queue polling and worker channel sizing
//   - Ingest: watch folder settings
//   - Notifications: ntfy alerts for finished and failed jobs
//   - Metrics: Prometheus endpoint
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Media         Media         `toml:"media"`
	Storage       Storage       `toml:"storage"`
	Telemetry     Telemetry     `toml:"telemetry"`
	Workflow      Workflow      `toml:"workflow"`
	Ingest        Ingest        `toml:"ingest"`
	Notifications Notifications `toml:"notifications"`
	Metrics       Metrics       `toml:"metrics"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if err := loadDotEnv(filepath.Dir(resolvedPath)); err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// loadDotEnv reads .env files beside the config and in the working directory.
// Variables already present in the environment are left untouched.
func loadDotEnv(configDir string) error {
	candidates := []string{filepath.Join(configDir, ".env")}
	if cwd, err := os.Getwd(); err == nil {
		local := filepath.Join(cwd, ".env")
		if local != candidates[0] {
			candidates = append(candidates, local)
		}
	}
	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err != nil || info.IsDir() {
			continue
		}
		if err := godotenv.Load(candidate); err != nil {
			return fmt.Errorf("load %s: %w", candidate, err)
		}
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("sermoncast.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// The ingest directory is only created when the watcher is enabled.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.StateDir, c.Paths.ScratchDir, c.Paths.LogDir}
	if c.Storage.Backend == StorageFilesystem {
		dirs = append(dirs, c.Storage.LocalDir)
	}
	if c.Ingest.Enabled {
		dirs = append(dirs, c.Ingest.WatchDir)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite file holding jobs and playback positions.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.StateDir, "sermoncast.db")
}

// EngineLockPath returns the file lock guarding the engine workspace.
func (c *Config) EngineLockPath() string {
	return filepath.Join(c.Paths.ScratchDir, "engine.lock")
}

// JobScratchDir returns the parent of the per-run working directories.
func (c *Config) JobScratchDir() string {
	return filepath.Join(c.Paths.ScratchDir, "jobs")
}

// DaemonLockPath returns the file lock that keeps a single daemon running.
func (c *Config) DaemonLockPath() string {
	return filepath.Join(c.Paths.StateDir, "sermoncast.lock")
}

// FFmpegBinary returns the ffmpeg executable used by the engine.
func (c *Config) FFmpegBinary() string {
	if bin := strings.TrimSpace(c.Media.FFmpegBinary); bin != "" {
		return bin
	}
	return defaultFFmpegBinary
}

// FFprobeBinary returns the ffprobe executable used for duration probing.
func (c *Config) FFprobeBinary() string {
	if bin := strings.TrimSpace(c.Media.FFprobeBinary); bin != "" {
		return bin
	}
	return defaultFFprobeBinary
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
