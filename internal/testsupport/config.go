package testsupport

import (
	"path/filepath"
	"testing"

	"sermoncast/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.ScratchDir = filepath.Join(base, "scratch")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Storage.LocalDir = filepath.Join(base, "media")
	cfgVal.Storage.PublicBaseURL = "https://cdn.test"
	cfgVal.Ingest.WatchDir = filepath.Join(base, "inbox")
	cfgVal.Ingest.SettleMillis = 50
	cfgVal.Media.ProbeDuration = false
	cfgVal.Telemetry.Sink = config.SinkNone
	cfgVal.Workflow.QueuePollInterval = 1
	cfgVal.Workflow.ErrorRetryInterval = 1

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithRawFallback enables uploading the original file when the engine fails to load.
func WithRawFallback() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Media.RawFallback = true
	}
}

// WithIngest enables the watch folder.
func WithIngest() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Ingest.Enabled = true
	}
}

// WithPublicBaseURL overrides the URL prefix used for resolved media URLs.
func WithPublicBaseURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Storage.PublicBaseURL = url
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
