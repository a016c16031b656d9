package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"sermoncast/internal/api"
	"sermoncast/internal/blob"
	"sermoncast/internal/config"
	"sermoncast/internal/logging"
	"sermoncast/internal/media"
	"sermoncast/internal/queue"
)

const (
	defaultSettle = 2 * time.Second
	maxAssetIDLen = 128
)

// Enqueuer submits uploads; *api.JobService satisfies it.
type Enqueuer interface {
	Enqueue(ctx context.Context, req api.EnqueueRequest) (*api.Job, error)
}

// History reports the most recent job for an asset; *queue.Store satisfies it.
type History interface {
	LatestByAsset(ctx context.Context, assetID string) (*queue.Item, error)
}

// Watcher queues media files dropped into a directory.
type Watcher struct {
	dir      string
	settle   time.Duration
	enqueuer Enqueuer
	history  History
	logger   *slog.Logger
	notify   func()
	now      func() time.Time

	pending map[string]time.Time
}

// Option customizes a Watcher.
type Option func(*Watcher)

// WithNotify registers fn to run after each successful enqueue.
func WithNotify(fn func()) Option {
	return func(w *Watcher) { w.notify = fn }
}

// New builds a watcher for cfg.Ingest.WatchDir.
func New(cfg *config.Config, enqueuer Enqueuer, history History, logger *slog.Logger, opts ...Option) *Watcher {
	settle := time.Duration(cfg.Ingest.SettleMillis) * time.Millisecond
	if settle <= 0 {
		settle = defaultSettle
	}
	w := &Watcher{
		dir:      cfg.Ingest.WatchDir,
		settle:   settle,
		enqueuer: enqueuer,
		history:  history,
		logger:   logging.NewComponentLogger(logger, "ingest"),
		now:      time.Now,
		pending:  make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches the directory until ctx is cancelled. Files already present
// when Run starts are considered too.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()
	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.logger.Info("watching for uploads",
		logging.String("dir", w.dir),
		logging.Duration("settle", w.settle),
	)

	if err := w.scanExisting(); err != nil {
		w.logger.Warn("failed to scan watch directory", logging.Error(err))
	}

	ticker := time.NewTicker(w.settle / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", logging.Error(err))
		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

func (w *Watcher) scanExisting() error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		w.track(filepath.Join(w.dir, entry.Name()))
	}
	return nil
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		delete(w.pending, event.Name)
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		w.track(event.Name)
	}
}

// track marks path as changed now. Hidden files and unknown extensions are ignored.
func (w *Watcher) track(path string) {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return
	}
	if _, ok := media.KindForPath(path); !ok {
		return
	}
	w.pending[path] = w.now()
}

// flush enqueues every pending file that has been quiet for the settle delay.
func (w *Watcher) flush(ctx context.Context) {
	now := w.now()
	for path, touched := range w.pending {
		if now.Sub(touched) < w.settle {
			continue
		}
		delete(w.pending, path)
		w.submit(ctx, path)
	}
}

func (w *Watcher) submit(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}
	kind, ok := media.KindForPath(path)
	if !ok {
		return
	}
	assetID := AssetIDFromPath(path)
	if err := blob.ValidateAssetID(assetID); err != nil {
		logging.WarnWithContext(w.logger, "skipping upload with unusable name", "ingest_skipped",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "rename the file using letters, digits, '.', '_' or '-'"),
		)
		return
	}

	if w.history != nil {
		latest, err := w.history.LatestByAsset(ctx, assetID)
		if err != nil {
			w.logger.Warn("failed to read job history", logging.AssetID(assetID), logging.Error(err))
			return
		}
		if latest != nil && latest.SourcePath == path {
			w.logger.Debug("upload already processed", logging.AssetID(assetID), logging.JobID(latest.ID))
			return
		}
	}

	job, err := w.enqueuer.Enqueue(ctx, api.EnqueueRequest{
		AssetID:    assetID,
		Kind:       string(kind),
		SourcePath: path,
	})
	if errors.Is(err, api.ErrAlreadyQueued) {
		w.logger.Debug("upload already queued", logging.AssetID(assetID))
		return
	}
	if err != nil {
		logging.WarnWithContext(w.logger, "failed to queue upload", "ingest_enqueue_failed",
			logging.String("path", path),
			logging.AssetID(assetID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the file type and permissions"),
		)
		return
	}
	w.logger.Info("queued upload",
		logging.AssetID(assetID),
		logging.JobID(job.ID),
		logging.String("kind", string(kind)),
		logging.String(logging.FieldEventType, "ingest_enqueued"),
	)
	if w.notify != nil {
		w.notify()
	}
}

var unsafeAssetChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// AssetIDFromPath derives an asset id from a file name: the extension is
// dropped, runs of unsupported characters become '-', and the result is
// trimmed to the asset id length limit.
func AssetIDFromPath(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	id := unsafeAssetChars.ReplaceAllString(base, "-")
	for strings.Contains(id, "..") {
		id = strings.ReplaceAll(id, "..", ".")
	}
	id = strings.Trim(id, "-.")
	if len(id) > maxAssetIDLen {
		id = strings.TrimRight(id[:maxAssetIDLen], "-.")
	}
	return id
}
