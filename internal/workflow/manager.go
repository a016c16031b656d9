package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"sermoncast/internal/config"
	"sermoncast/internal/logging"
	"sermoncast/internal/notifications"
	"sermoncast/internal/pipeline"
	"sermoncast/internal/queue"
)

// Processor runs one asset to completion.
type Processor interface {
	Process(ctx context.Context, asset pipeline.Asset, onUpdate pipeline.UpdateFunc) (pipeline.Result, error)
}

// Manager coordinates queue processing with a single worker.
type Manager struct {
	cfg           *config.Config
	store         *queue.Store
	processor     Processor
	logger        *slog.Logger
	hub           *Hub
	notifier      notifications.Service
	heartbeat     *HeartbeatMonitor
	pollInterval  time.Duration
	retryInterval time.Duration
	capacity      int
	wake          chan struct{}

	mu       sync.RWMutex
	running  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	lastErr  error
	lastItem *queue.Item
	current  *queue.Item
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithHub shares an existing progress hub.
func WithHub(hub *Hub) ManagerOption {
	return func(m *Manager) {
		if hub != nil {
			m.hub = hub
		}
	}
}

// WithNotifier replaces the ntfy service built from configuration.
func WithNotifier(notifier notifications.Service) ManagerOption {
	return func(m *Manager) {
		if notifier != nil {
			m.notifier = notifier
		}
	}
}

// WithHeartbeatInterval overrides how often in-flight jobs refresh their heartbeat.
func WithHeartbeatInterval(interval time.Duration) ManagerOption {
	return func(m *Manager) {
		m.heartbeat = NewHeartbeatMonitor(m.store, m.logger, interval)
	}
}

// NewManager constructs a workflow manager.
func NewManager(cfg *config.Config, store *queue.Store, processor Processor, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "workflow")
	capacity := cfg.Workflow.QueueCapacity
	if capacity <= 0 {
		capacity = 1
	}
	m := &Manager{
		cfg:           cfg,
		store:         store,
		processor:     processor,
		logger:        logger,
		hub:           NewHub(),
		notifier:      notifications.NewService(cfg),
		pollInterval:  time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		retryInterval: time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second,
		capacity:      capacity,
		wake:          make(chan struct{}, 1),
	}
	m.heartbeat = NewHeartbeatMonitor(store, logger, defaultHeartbeatInterval)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Hub returns the progress hub fed by the worker.
func (m *Manager) Hub() *Hub {
	return m.hub
}

// Start resets jobs interrupted by a previous run and begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if m.processor == nil {
		m.mu.Unlock()
		return errors.New("workflow processor not configured")
	}

	reset, err := m.store.ResetStuckProcessing(ctx)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	if reset > 0 {
		m.logger.Info("requeued interrupted jobs",
			logging.Int64("count", reset),
			logging.String(logging.FieldEventType, "jobs_requeued"),
		)
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	jobs := make(chan *queue.Item, m.capacity)
	m.wg.Add(2)
	m.mu.Unlock()

	go m.dispatch(runCtx, jobs)
	go m.work(runCtx, jobs)
	return nil
}

// Stop terminates background processing and waits for completion.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// Wake skips the current poll wait so newly enqueued jobs start promptly.
func (m *Manager) Wake() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Manager) dispatch(ctx context.Context, jobs chan<- *queue.Item) {
	defer m.wg.Done()
	for {
		if ctx.Err() != nil {
			return
		}

		item, err := m.store.NextPending(ctx)
		if err != nil {
			m.handleNextItemError(ctx, err)
			continue
		}
		if item == nil {
			m.waitForItemOrShutdown(ctx)
			continue
		}

		item.MarkProcessing(time.Now())
		item.SetProgress("QUEUED", "Waiting for worker", 0)
		if err := m.store.Update(ctx, item); err != nil {
			m.handleNextItemError(ctx, err)
			continue
		}
		m.hub.Publish(EventFromItem(item))

		select {
		case jobs <- item:
		case <-ctx.Done():
			return
		}
	}
}

func (m *Manager) work(ctx context.Context, jobs <-chan *queue.Item) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case item := <-jobs:
			m.processItem(ctx, item)
		}
	}
}

func (m *Manager) handleNextItemError(ctx context.Context, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	m.setLastError(err)
	m.logger.Error("failed to fetch next job",
		logging.Error(err),
		logging.String(logging.FieldEventType, "queue_fetch_failed"),
		logging.String(logging.FieldErrorHint, "check queue database access"),
	)
	select {
	case <-ctx.Done():
	case <-time.After(m.retryInterval):
	}
}

func (m *Manager) waitForItemOrShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-m.wake:
	case <-time.After(m.pollInterval):
	}
}
