package workflow

import (
	"context"

	"sermoncast/internal/logging"
	"sermoncast/internal/queue"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running    bool
	LastError  string
	LastItem   *queue.Item
	Current    *queue.Item
	QueueStats map[queue.Status]int
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	summary := StatusSummary{
		Running:  m.running,
		LastItem: copyItem(m.lastItem),
		Current:  copyItem(m.current),
	}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	m.mu.RUnlock()

	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.logger.Warn("failed to read queue stats", logging.Error(err))
	}
	summary.QueueStats = stats
	return summary
}

func copyItem(item *queue.Item) *queue.Item {
	if item == nil {
		return nil
	}
	cp := *item
	return &cp
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastItem(item *queue.Item) {
	m.mu.Lock()
	m.lastItem = copyItem(item)
	m.mu.Unlock()
}

func (m *Manager) setCurrent(item *queue.Item) {
	m.mu.Lock()
	m.current = copyItem(item)
	m.mu.Unlock()
}
