package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"

	"sermoncast/internal/logging"
	"sermoncast/internal/telemetry"
)

// ErrUnplayable is returned once a session has exhausted its recovery attempts.
var ErrUnplayable = errors.New("playback: media is unplayable")

// ErrorKind classifies fatal errors reported by the streaming engine.
type ErrorKind string

const (
	ErrorNetwork ErrorKind = "network"
	ErrorMedia   ErrorKind = "media"
)

// ParseErrorKind converts client input into an ErrorKind.
func ParseErrorKind(value string) (ErrorKind, error) {
	switch ErrorKind(strings.ToLower(strings.TrimSpace(value))) {
	case ErrorNetwork:
		return ErrorNetwork, nil
	case ErrorMedia:
		return ErrorMedia, nil
	default:
		return "", fmt.Errorf("unknown playback error kind %q", value)
	}
}

// Action is what the client should do after a fatal engine error.
type Action string

const (
	ActionNone    Action = "none"
	ActionReload  Action = "reload"
	ActionRecover Action = "recover"
)

// State is the session's coarse playback state.
type State string

const (
	StateIdle       State = "idle"
	StatePlaying    State = "playing"
	StatePaused     State = "paused"
	StateEnded      State = "ended"
	StateUnplayable State = "unplayable"
)

// AutoQuality selects adaptive rendition switching.
const AutoQuality = -1

// Milestones are the completion percentages reported once per session.
var Milestones = []int{25, 50, 75, 95}

// completionMilestone fires playback_completed instead of a quarter event.
const completionMilestone = 95

// PositionStore persists the resume position per asset.
type PositionStore interface {
	LoadPosition(ctx context.Context, assetID string) (float64, bool, error)
	SavePosition(ctx context.Context, assetID string, seconds float64) error
	DeletePosition(ctx context.Context, assetID string) error
}

// Element is the media element driven by the controller. Server-side
// sessions run without one and return Actions to the client instead.
type Element interface {
	Seek(seconds float64)
	Reload() error
	Recover() error
}

// Controller tracks one playback session of one asset.
type Controller struct {
	assetID    string
	duration   float64
	renditions []Rendition
	store      PositionStore
	emitter    *telemetry.Emitter
	element    Element
	logger     *slog.Logger

	mu        sync.Mutex
	state     State
	position  float64
	resumedAt float64
	started   bool
	fired     map[int]bool
	selected  int
	rate      float64
	fatal     int
}

// Option customizes a Controller.
type Option func(*Controller)

// WithStore enables resume and position persistence.
func WithStore(store PositionStore) Option {
	return func(c *Controller) { c.store = store }
}

// WithEmitter routes engagement events to an analytics sink.
func WithEmitter(emitter *telemetry.Emitter) Option {
	return func(c *Controller) { c.emitter = emitter }
}

// WithElement attaches a media element.
func WithElement(element Element) Option {
	return func(c *Controller) { c.element = element }
}

// WithRenditions lists the selectable renditions, lowest first.
func WithRenditions(renditions []Rendition) Option {
	return func(c *Controller) { c.renditions = renditions }
}

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// NewController creates a session for assetID. duration is in seconds; zero
// means unknown and disables percentage tracking.
func NewController(assetID string, duration float64, opts ...Option) *Controller {
	c := &Controller{
		assetID:  assetID,
		duration: math.Max(duration, 0),
		state:    StateIdle,
		fired:    make(map[int]bool, len(Milestones)),
		selected: AutoQuality,
		rate:     1,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, "playback").With(logging.AssetID(assetID))
	return c
}

// Snapshot is a copy of the session state.
type Snapshot struct {
	AssetID    string          `json:"assetId"`
	State      State           `json:"state"`
	Position   float64         `json:"position"`
	Duration   float64         `json:"duration"`
	Percent    int             `json:"percent"`
	Rendition  int             `json:"rendition"`
	Rate       float64         `json:"rate"`
	Milestones map[string]bool `json:"milestones"`
}

// Snapshot returns the current session state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	flags := map[string]bool{
		"quarter":      c.fired[25],
		"half":         c.fired[50],
		"threeQuarter": c.fired[75],
		"complete":     c.fired[95],
	}
	return Snapshot{
		AssetID:    c.assetID,
		State:      c.state,
		Position:   c.position,
		Duration:   c.duration,
		Percent:    c.percentLocked(),
		Rendition:  c.selected,
		Rate:       c.rate,
		Milestones: flags,
	}
}

// Mount restores the persisted position and seeks to it. It returns the
// position playback will start from.
func (c *Controller) Mount(ctx context.Context) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		return 0, nil
	}
	pos, ok, err := c.store.LoadPosition(ctx, c.assetID)
	if err != nil {
		return 0, fmt.Errorf("load position: %w", err)
	}
	if !ok {
		return 0, nil
	}
	if c.duration > 0 && pos >= c.duration {
		pos = 0
	}
	c.position = pos
	c.resumedAt = pos
	if c.element != nil && pos > 0 {
		c.element.Seek(pos)
	}
	c.logger.Debug("resuming playback", logging.Float64("position", pos))
	return pos, nil
}

// Play starts or resumes playback. The first play of a session emits
// playback_started.
func (c *Controller) Play(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateUnplayable {
		return ErrUnplayable
	}
	c.state = StatePlaying
	if c.started {
		return nil
	}
	c.started = true
	c.emit(ctx, telemetry.EventPlaybackStarted, map[string]any{
		"position": c.position,
		"resumed":  c.resumedAt > 0,
		"duration": c.duration,
	})
	return nil
}

// Pause pauses playback and reports progress unless the position is within
// one second of the end.
func (c *Controller) Pause(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateUnplayable {
		return ErrUnplayable
	}
	c.state = StatePaused
	if c.duration > 0 && c.duration-c.position <= 1 {
		return nil
	}
	c.emit(ctx, telemetry.EventPlaybackProgress, map[string]any{
		"percent":  c.percentLocked(),
		"position": c.position,
	})
	return nil
}

// TimeUpdate records the current position, persists it and fires any
// milestones crossed since the last update, lowest first.
func (c *Controller) TimeUpdate(ctx context.Context, current float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateUnplayable {
		return ErrUnplayable
	}
	if current < 0 || math.IsNaN(current) {
		current = 0
	}
	c.position = current

	var saveErr error
	if c.store != nil {
		if err := c.store.SavePosition(ctx, c.assetID, current); err != nil {
			saveErr = fmt.Errorf("save position: %w", err)
			c.logger.Warn("failed to persist playback position", logging.Error(err))
		}
	}

	if c.duration <= 0 {
		return saveErr
	}
	percent := c.percentLocked()
	for _, milestone := range Milestones {
		if percent < milestone || c.fired[milestone] {
			continue
		}
		c.fired[milestone] = true
		if milestone == completionMilestone {
			c.emit(ctx, telemetry.EventPlaybackCompleted, map[string]any{
				"trigger":  "threshold",
				"percent":  percent,
				"position": current,
			})
			continue
		}
		c.emit(ctx, telemetry.MilestoneEvent(milestone), map[string]any{
			"percent":  percent,
			"position": current,
		})
	}
	return saveErr
}

// Ended records the end of the media. Completion is always reported, even
// when the threshold milestone already fired. The stored position is cleared
// so the next session starts from the beginning.
func (c *Controller) Ended(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateUnplayable {
		return ErrUnplayable
	}
	c.state = StateEnded
	if c.duration > 0 {
		c.position = c.duration
	}
	c.emit(ctx, telemetry.EventPlaybackCompleted, map[string]any{
		"trigger":  "ended",
		"position": c.position,
	})
	if c.store != nil {
		if err := c.store.DeletePosition(ctx, c.assetID); err != nil {
			return fmt.Errorf("clear position: %w", err)
		}
	}
	return nil
}

// SetQuality reports a rendition switch. AutoQuality hands control back to
// the adaptive layer and is reported as "auto" with bitrate 0.
func (c *Controller) SetQuality(ctx context.Context, index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	label, bitrate := "auto", 0
	if index != AutoQuality {
		if index < 0 || index >= len(c.renditions) {
			return fmt.Errorf("rendition index %d out of range (have %d)", index, len(c.renditions))
		}
		label = c.renditions[index].Label
		bitrate = c.renditions[index].Bitrate
	}
	c.selected = index
	c.emit(ctx, telemetry.EventQualityChange, map[string]any{
		"quality": label,
		"bitrate": bitrate,
		"index":   index,
	})
	return nil
}

// SetSpeed reports a playback-rate change. The rate is not validated here.
func (c *Controller) SetSpeed(ctx context.Context, rate float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rate = rate
	c.emit(ctx, telemetry.EventSpeedChange, map[string]any{"rate": rate})
}

// Download reports that the viewer downloaded the media file at url.
func (c *Controller) Download(ctx context.Context, url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fields := map[string]any{}
	if url != "" {
		fields["url"] = url
	}
	c.emit(ctx, telemetry.EventDownload, fields)
}

// HandleError reacts to a fatal engine error. The first fatal error of a
// session gets one reload (network) or recovery (media) attempt; the second
// is terminal.
func (c *Controller) HandleError(ctx context.Context, kind ErrorKind, detail string) (Action, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateUnplayable {
		return ActionNone, ErrUnplayable
	}
	c.fatal++
	if c.fatal > 1 {
		c.state = StateUnplayable
		c.emit(ctx, telemetry.EventPlaybackError, map[string]any{
			"kind":     string(kind),
			"detail":   detail,
			"terminal": true,
		})
		logging.WarnWithContext(c.logger, "playback unplayable after repeated fatal errors", "playback_unplayable",
			logging.String("kind", string(kind)),
			logging.String("detail", detail),
			logging.String(logging.FieldErrorHint, "check the HLS output and CDN reachability for this asset"),
			logging.String(logging.FieldImpact, "viewer cannot play this sermon"),
		)
		return ActionNone, ErrUnplayable
	}

	action := ActionRecover
	if kind == ErrorNetwork {
		action = ActionReload
	}
	c.emit(ctx, telemetry.EventPlaybackError, map[string]any{
		"kind":     string(kind),
		"detail":   detail,
		"action":   string(action),
		"terminal": false,
	})
	if c.element != nil {
		var err error
		if action == ActionReload {
			err = c.element.Reload()
		} else {
			err = c.element.Recover()
		}
		if err != nil {
			c.state = StateUnplayable
			return ActionNone, fmt.Errorf("%w: %s failed: %v", ErrUnplayable, action, err)
		}
	}
	return action, nil
}

func (c *Controller) percentLocked() int {
	if c.duration <= 0 {
		return 0
	}
	p := int(math.Floor(c.position * 100 / c.duration))
	return min(max(p, 0), 100)
}

func (c *Controller) emit(ctx context.Context, name string, fields map[string]any) {
	c.emitter.Emit(ctx, name, c.assetID, fields)
}
