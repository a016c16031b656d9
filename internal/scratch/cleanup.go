// Package scratch manages the per-run working directories under the
// scratch root.
package scratch

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"sermoncast/internal/logging"
)

// Dir describes one run directory.
type Dir struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	ModTime time.Time `json:"modTime"`
	Size    int64     `json:"size"`
}

// Failure pairs a directory with the error that kept it on disk.
type Failure struct {
	Path string
	Err  error
}

// Sweep is the outcome of a cleanup pass.
type Sweep struct {
	Removed []string
	Failed  []Failure
}

// List returns the run directories in root, oldest first. A missing root
// is not an error.
func List(root string) ([]Dir, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	dirs := make([]Dir, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(root, entry.Name())
		dirs = append(dirs, Dir{
			Name:    entry.Name(),
			Path:    path,
			ModTime: info.ModTime(),
			Size:    treeSize(path),
		})
	}
	sortByAge(dirs)
	return dirs, nil
}

// CleanStale removes run directories in root last modified before maxAge
// ago. It stops early when ctx is cancelled.
func CleanStale(ctx context.Context, root string, maxAge time.Duration, logger *slog.Logger) (Sweep, error) {
	var sweep Sweep
	dirs, err := List(root)
	if err != nil {
		return sweep, err
	}
	logger = logging.NewComponentLogger(logger, "scratch")
	cutoff := time.Now().Add(-maxAge)
	for _, dir := range dirs {
		if err := ctx.Err(); err != nil {
			return sweep, err
		}
		if !dir.ModTime.Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(dir.Path); err != nil {
			sweep.Failed = append(sweep.Failed, Failure{Path: dir.Path, Err: err})
			logging.WarnWithContext(logger, "failed to remove stale run directory", "scratch_cleanup_failed",
				logging.String("path", dir.Path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check scratch_dir permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		sweep.Removed = append(sweep.Removed, dir.Path)
		logger.Info("removed stale run directory",
			logging.String("path", dir.Path),
			logging.Duration("age", time.Since(dir.ModTime)),
			logging.Int64("bytes", dir.Size),
			logging.String(logging.FieldEventType, "scratch_cleanup"),
		)
	}
	return sweep, nil
}

func treeSize(path string) int64 {
	var size int64
	_ = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			size += info.Size()
		}
		return nil
	})
	return size
}

func sortByAge(dirs []Dir) {
	slices.SortFunc(dirs, func(a, b Dir) int { return a.ModTime.Compare(b.ModTime) })
}
