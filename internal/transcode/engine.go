package transcode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"

	"sermoncast/internal/logging"
	"sermoncast/internal/services"
)

// Option configures the engine.
type Option func(*Engine)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(e *Engine) {
		if exec != nil {
			e.exec = exec
		}
	}
}

// WithLogger attaches a logger to the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logging.NewComponentLogger(logger, "engine")
		}
	}
}

// Engine is the single shared handle to the ffmpeg process engine. It loads
// lazily on first use, runs one command at a time, and holds a file lock on
// its workspace so two processes never share it. A failed load is cached and
// returned to every caller until Reset.
type Engine struct {
	binary   string
	lockPath string
	exec     Executor
	logger   *slog.Logger

	mu      sync.Mutex
	loaded  bool
	loadErr error
	lock    *flock.Flock
	runs    int
}

// NewEngine constructs an unloaded engine handle.
func NewEngine(binary, lockPath string, opts ...Option) *Engine {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	engine := &Engine{
		binary:   binary,
		lockPath: strings.TrimSpace(lockPath),
		exec:     commandExecutor{},
		logger:   logging.NewComponentLogger(nil, "engine"),
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

// Binary returns the ffmpeg executable the engine drives.
func (e *Engine) Binary() string {
	return e.binary
}

// Load initializes the engine if it is not already loaded.
func (e *Engine) Load(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ensureLoadedLocked(ctx)
}

// Loaded reports whether the engine finished loading successfully.
func (e *Engine) Loaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loaded
}

// Runs returns the number of commands executed after load.
func (e *Engine) Runs() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runs
}

func (e *Engine) ensureLoadedLocked(ctx context.Context) error {
	if e.loaded {
		return nil
	}
	if e.loadErr != nil {
		return e.loadErr
	}
	if err := e.acquireLockLocked(); err != nil {
		e.loadErr = err
		return err
	}
	if err := e.exec.Run(ctx, e.binary, []string{"-hide_banner", "-version"}, nil); err != nil {
		e.releaseLockLocked()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.loadErr = services.Wrap(services.ErrEngineLoad, "init", "load engine", e.binary, err)
		logging.ErrorWithContext(e.logger, "media engine failed to load", "engine_load_failed",
			logging.String("binary", e.binary),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "install ffmpeg or set media.ffmpeg_binary"),
		)
		return e.loadErr
	}
	e.loaded = true
	e.logger.Info("media engine loaded", logging.String("binary", e.binary))
	return nil
}

func (e *Engine) acquireLockLocked() error {
	if e.lockPath == "" || e.lock != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(e.lockPath), 0o755); err != nil {
		return services.Wrap(services.ErrEngineLoad, "init", "engine workspace", "", err)
	}
	lock := flock.New(e.lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return services.Wrap(services.ErrEngineLoad, "init", "engine workspace", "acquire lock", err)
	}
	if !ok {
		return services.Wrap(services.ErrEngineLoad, "init", "engine workspace",
			fmt.Sprintf("%s is locked by another process", e.lockPath), nil)
	}
	e.lock = lock
	return nil
}

func (e *Engine) releaseLockLocked() {
	if e.lock == nil {
		return
	}
	if err := e.lock.Unlock(); err != nil {
		e.logger.Warn("failed to release engine lock", logging.Error(err))
	}
	e.lock = nil
}

// Run executes one engine command, loading the engine first when needed.
// Commands are serialized; onLine receives every stdout/stderr line.
func (e *Engine) Run(ctx context.Context, args []string, onLine func(string)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ensureLoadedLocked(ctx); err != nil {
		return err
	}
	e.runs++
	e.logger.Debug("engine command", logging.String("args", strings.Join(args, " ")))
	return e.exec.Run(ctx, e.binary, args, onLine)
}

// Reset clears a cached load failure and releases the workspace lock so the
// next command attempts a fresh load.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loaded = false
	e.loadErr = nil
	e.releaseLockLocked()
}

// Close releases the workspace lock.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loaded = false
	if e.lock == nil {
		return nil
	}
	err := e.lock.Unlock()
	e.lock = nil
	if err != nil && !errors.Is(err, os.ErrClosed) {
		return fmt.Errorf("release engine lock: %w", err)
	}
	return nil
}
