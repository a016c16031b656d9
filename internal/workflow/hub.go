package workflow

import (
	"encoding/json"
	"sync"

	"sermoncast/internal/pipeline"
	"sermoncast/internal/queue"
)

const subscriberBuffer = 32

// Event is one progress or lifecycle change for a job.
type Event struct {
	JobID     int64            `json:"jobId"`
	AssetID   string           `json:"assetId"`
	Status    queue.Status     `json:"status"`
	Stage     string           `json:"stage,omitempty"`
	Percent   int              `json:"percent"`
	Message   string           `json:"message,omitempty"`
	ErrorKind string           `json:"errorKind,omitempty"`
	Result    *pipeline.Result `json:"result,omitempty"`
}

// Terminal reports whether no further events follow for the job.
func (e Event) Terminal() bool {
	return e.Status == queue.StatusCompleted || e.Status == queue.StatusFailed
}

// EventFromItem snapshots a stored job as an event. The result of a
// completed job is decoded when present.
func EventFromItem(item *queue.Item) Event {
	event := Event{
		JobID:     item.ID,
		AssetID:   item.AssetID,
		Status:    item.Status,
		Stage:     item.ProgressStage,
		Percent:   item.ProgressPercent,
		Message:   item.ProgressMessage,
		ErrorKind: item.ErrorKind,
	}
	if item.Status == queue.StatusCompleted && item.ResultJSON != "" {
		var result pipeline.Result
		if err := json.Unmarshal([]byte(item.ResultJSON), &result); err == nil {
			event.Result = &result
		}
	}
	return event
}

// Hub fans job events out to subscribers. Slow subscribers lose intermediate
// events but always receive the latest one.
type Hub struct {
	mu   sync.Mutex
	subs map[int64]map[chan Event]struct{}
	last map[int64]Event
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		subs: make(map[int64]map[chan Event]struct{}),
		last: make(map[int64]Event),
	}
}

// Subscribe returns a channel of events for jobID, primed with the most
// recent event when one exists. Call cancel to release the subscription.
func (h *Hub) Subscribe(jobID int64) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	h.mu.Lock()
	if h.subs[jobID] == nil {
		h.subs[jobID] = make(map[chan Event]struct{})
	}
	h.subs[jobID][ch] = struct{}{}
	if last, ok := h.last[jobID]; ok {
		ch <- last
	}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if set := h.subs[jobID]; set != nil {
				delete(set, ch)
				if len(set) == 0 {
					delete(h.subs, jobID)
				}
			}
		})
	}
	return ch, cancel
}

// Publish delivers event to every subscriber of its job without blocking.
// Terminal events are not cached; the stored job carries the final state.
func (h *Hub) Publish(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if event.Terminal() {
		delete(h.last, event.JobID)
	} else {
		h.last[event.JobID] = event
	}
	for ch := range h.subs[event.JobID] {
		deliver(ch, event)
	}
}

// Last returns the most recent event published for jobID.
func (h *Hub) Last(jobID int64) (Event, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	event, ok := h.last[jobID]
	return event, ok
}

// Forget drops the cached event for jobID.
func (h *Hub) Forget(jobID int64) {
	h.mu.Lock()
	delete(h.last, jobID)
	h.mu.Unlock()
}

func deliver(ch chan Event, event Event) {
	for {
		select {
		case ch <- event:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
