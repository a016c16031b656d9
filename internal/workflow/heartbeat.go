package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"sermoncast/internal/logging"
	"sermoncast/internal/queue"
)

const defaultHeartbeatInterval = 15 * time.Second

// HeartbeatMonitor keeps last_heartbeat fresh for the in-flight job so status
// output can tell a slow encode from a hung one.
type HeartbeatMonitor struct {
	store    *queue.Store
	logger   *slog.Logger
	interval time.Duration
}

// NewHeartbeatMonitor creates a new monitor.
func NewHeartbeatMonitor(store *queue.Store, logger *slog.Logger, interval time.Duration) *HeartbeatMonitor {
	if interval <= 0 {
		interval = defaultHeartbeatInterval
	}
	return &HeartbeatMonitor{store: store, logger: logger, interval: interval}
}

// StartLoop runs a heartbeat updater for a specific job until context cancellation.
func (h *HeartbeatMonitor) StartLoop(ctx context.Context, wg *sync.WaitGroup, jobID int64) {
	defer wg.Done()
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	logger := logging.WithContext(ctx, h.logger.With(logging.String(logging.FieldComponent, "workflow-heartbeat")))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.store.UpdateHeartbeat(ctx, jobID); err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				logger.Warn("heartbeat update failed", logging.Error(err))
			}
		}
	}
}
