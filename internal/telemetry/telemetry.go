package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"sermoncast/internal/config"
	"sermoncast/internal/logging"
)

// Event names emitted by the pipeline and the playback controller.
const (
	EventProcessingCompleted = "media_processing_completed"
	EventProcessingFailed    = "media_processing_failed"
	EventPlaybackStarted     = "playback_started"
	EventPlaybackProgress    = "playback_progress"
	EventPlaybackCompleted   = "playback_completed"
	EventQualityChange       = "quality_change"
	EventSpeedChange         = "speed_change"
	EventDownload            = "download"
	EventPlaybackError       = "playback_error"
)

// MilestoneEvent names the quarter milestones (25, 50, 75).
func MilestoneEvent(percent int) string {
	return fmt.Sprintf("sermon_%d_percent_complete", percent)
}

// Event is one analytics record.
type Event struct {
	Name    string         `json:"event"`
	AssetID string         `json:"assetId"`
	Fields  map[string]any `json:"fields,omitempty"`
	Time    time.Time      `json:"time"`
}

// MarshalJSON flattens Fields next to the event name and asset id.
func (e Event) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Fields)+3)
	for k, v := range e.Fields {
		out[k] = v
	}
	out["event"] = e.Name
	out["assetId"] = e.AssetID
	if !e.Time.IsZero() {
		out["time"] = e.Time.UTC().Format(time.RFC3339Nano)
	}
	return json.Marshal(out)
}

// Sink receives analytics events. Delivery is fire-and-forget: Emit never
// blocks the caller on the network and never reports failure.
type Sink interface {
	Emit(ctx context.Context, event Event)
	Close() error
}

// NewSink builds the sink named by telemetry.sink. The log sink is the default.
func NewSink(cfg *config.Config, logger *slog.Logger) (Sink, error) {
	if cfg == nil {
		return NewLogSink(logger), nil
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Telemetry.Sink)) {
	case config.SinkNone:
		return Nop{}, nil
	case config.SinkKafka:
		if len(cfg.Telemetry.KafkaBrokers) == 0 {
			return nil, fmt.Errorf("telemetry: kafka sink requires brokers")
		}
		return NewKafkaSink(cfg.Telemetry.KafkaBrokers, cfg.Telemetry.KafkaTopic, logger), nil
	case config.SinkLog, "":
		return NewLogSink(logger), nil
	default:
		return nil, fmt.Errorf("telemetry: unknown sink %q", cfg.Telemetry.Sink)
	}
}

// Nop discards every event.
type Nop struct{}

func (Nop) Emit(context.Context, Event) {}

func (Nop) Close() error { return nil }

// LogSink writes events as structured log lines.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink returns a sink that logs each event at info level.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logging.NewComponentLogger(logger, "telemetry")}
}

func (s *LogSink) Emit(ctx context.Context, event Event) {
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, event.Name),
		logging.AssetID(event.AssetID),
	}
	for k, v := range event.Fields {
		attrs = append(attrs, logging.Any(k, v))
	}
	s.logger.InfoContext(ctx, "analytics event", logging.Args(attrs...)...)
}

func (s *LogSink) Close() error { return nil }

// Memory keeps events in order. Useful for tests and for the API's recent
// event view.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

func (m *Memory) Emit(_ context.Context, event Event) {
	m.mu.Lock()
	m.events = append(m.events, event)
	m.mu.Unlock()
}

func (m *Memory) Close() error { return nil }

// Events returns a copy of the recorded events.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// Names returns the recorded event names in emission order.
func (m *Memory) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	for i, e := range m.events {
		out[i] = e.Name
	}
	return out
}

// Reset drops all recorded events.
func (m *Memory) Reset() {
	m.mu.Lock()
	m.events = nil
	m.mu.Unlock()
}

// Emitter stamps events with a clock before handing them to a sink.
type Emitter struct {
	sink    Sink
	now     func() time.Time
	observe func(name string)
}

// EmitterOption customizes an Emitter.
type EmitterOption func(*Emitter)

// WithObserver calls fn with the name of every emitted event.
func WithObserver(fn func(name string)) EmitterOption {
	return func(e *Emitter) {
		e.observe = fn
	}
}

// NewEmitter wraps sink. A nil sink discards events.
func NewEmitter(sink Sink, opts ...EmitterOption) *Emitter {
	if sink == nil {
		sink = Nop{}
	}
	e := &Emitter{sink: sink, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Emit sends name for assetID with the given fields.
func (e *Emitter) Emit(ctx context.Context, name, assetID string, fields map[string]any) {
	if e == nil {
		return
	}
	if e.observe != nil {
		e.observe(name)
	}
	e.sink.Emit(ctx, Event{Name: name, AssetID: assetID, Fields: fields, Time: e.now()})
}
