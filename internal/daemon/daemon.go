package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"sermoncast/internal/api"
	"sermoncast/internal/config"
	"sermoncast/internal/deps"
	"sermoncast/internal/ingest"
	"sermoncast/internal/logging"
	"sermoncast/internal/metrics"
	"sermoncast/internal/playback"
	"sermoncast/internal/preflight"
	"sermoncast/internal/queue"
	"sermoncast/internal/scratch"
	"sermoncast/internal/telemetry"
	"sermoncast/internal/workflow"
)

// maxPlaybackSessions bounds the server-side session registry.
const maxPlaybackSessions = 1024

// Deps are the collaborators a Daemon coordinates.
type Deps struct {
	Store    *queue.Store
	Workflow *workflow.Manager
	Emitter  *telemetry.Emitter
	Metrics  *metrics.Registry
	Logger   *slog.Logger
}

// Daemon coordinates the worker, the ingest watcher and the HTTP API, and
// enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	workflow *workflow.Manager
	jobs     *api.JobService
	emitter  *telemetry.Emitter
	metrics  *metrics.Registry
	sessions *playback.Sessions

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	server  *apiServer

	mu     sync.RWMutex
	deps   []deps.Status
	checks []preflight.Result
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Workflow     workflow.StatusSummary
	DatabasePath string
	LockFilePath string
	Dependencies []deps.Status
	Checks       []preflight.Result
	Sessions     int
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, d Deps) (*Daemon, error) {
	if cfg == nil || d.Store == nil || d.Workflow == nil {
		return nil, errors.New("daemon requires config, store, and workflow manager")
	}
	emitter := d.Emitter
	if emitter == nil {
		emitter = telemetry.NewEmitter(telemetry.Nop{})
	}
	lockPath := cfg.DaemonLockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(d.Logger, "daemon"),
		store:    d.Store,
		workflow: d.Workflow,
		jobs:     api.NewJobService(d.Store),
		emitter:  emitter,
		metrics:  d.Metrics,
		sessions: playback.NewSessions(maxPlaybackSessions),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, runs preflight checks, and launches the
// worker, the API server and, when enabled, the ingest watcher.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another sermoncast daemon instance is already running")
	}

	d.runPreflight(ctx)
	d.cleanScratch(ctx)

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.workflow.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start workflow: %w", err)
	}

	server, err := newAPIServer(d.cfg, d, d.logger)
	if err == nil {
		err = server.start(runCtx)
	}
	if err != nil {
		cancel()
		d.workflow.Stop()
		_ = d.lock.Unlock()
		return err
	}
	d.server = server

	if d.cfg.Ingest.Enabled {
		watcher := ingest.New(d.cfg, d.jobs, d.store, d.logger, ingest.WithNotify(d.workflow.Wake))
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			if err := watcher.Run(runCtx); err != nil {
				logging.ErrorWithContext(d.logger, "ingest watcher stopped", "ingest_failed",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check ingest.watch_dir exists and is readable"),
				)
			}
		}()
	}

	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("sermoncast daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api", d.Addr()),
	)
	return nil
}

func (d *Daemon) cleanScratch(ctx context.Context) {
	retention := time.Duration(d.cfg.Workflow.ScratchRetentionHours) * time.Hour
	sweep, err := scratch.CleanStale(ctx, d.cfg.JobScratchDir(), retention, d.logger)
	if err != nil {
		d.logger.Warn("scratch cleanup skipped", logging.Error(err))
		return
	}
	if len(sweep.Removed) > 0 {
		d.logger.Info("scratch cleanup finished", logging.Int("removed", len(sweep.Removed)))
	}
}

func (d *Daemon) runPreflight(ctx context.Context) {
	depStatuses := preflight.CheckSystemDeps(ctx, d.cfg)
	checks := preflight.RunAll(ctx, d.cfg)
	for _, dep := range depStatuses {
		if !dep.Satisfied() {
			logging.WarnWithContext(d.logger, "required binary missing", "dependency_missing",
				logging.String("dependency", dep.Name),
				logging.String("command", dep.Command),
				logging.String(logging.FieldErrorHint, "install it or set media.ffmpeg_binary / media.ffprobe_binary"),
				logging.String(logging.FieldImpact, "jobs will fail until the binary is available"),
			)
		}
	}
	for _, check := range preflight.Failed(checks) {
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String("check", check.Name),
			logging.String("detail", check.Detail),
			logging.String(logging.FieldImpact, "dependent features may fail"),
		)
	}
	d.mu.Lock()
	d.deps = depStatuses
	d.checks = checks
	d.mu.Unlock()
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.server.stop()
	d.workflow.Stop()
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("sermoncast daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return d.store.Close()
}

// Addr returns the address the API server listens on, or "" when stopped.
func (d *Daemon) Addr() string {
	if d.server == nil || d.server.listener == nil {
		return ""
	}
	return d.server.listener.Addr().String()
}

// Status reports daemon runtime information.
func (d *Daemon) Status(ctx context.Context) Status {
	d.mu.RLock()
	depStatuses := append([]deps.Status(nil), d.deps...)
	checks := append([]preflight.Result(nil), d.checks...)
	d.mu.RUnlock()
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Workflow:     d.workflow.Status(ctx),
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
		Dependencies: depStatuses,
		Checks:       checks,
		Sessions:     d.sessions.Len(),
	}
}
