package playback_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"sermoncast/internal/hls"
	"sermoncast/internal/playback"
	"sermoncast/internal/telemetry"
	"sermoncast/internal/testsupport"
)

type memoryPositions struct {
	mu        sync.Mutex
	positions map[string]float64
	saves     int
}

func newMemoryPositions() *memoryPositions {
	return &memoryPositions{positions: make(map[string]float64)}
}

func (m *memoryPositions) LoadPosition(_ context.Context, assetID string) (float64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pos, ok := m.positions[assetID]
	return pos, ok, nil
}

func (m *memoryPositions) SavePosition(_ context.Context, assetID string, seconds float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions[assetID] = seconds
	m.saves++
	return nil
}

func (m *memoryPositions) DeletePosition(_ context.Context, assetID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.positions, assetID)
	return nil
}

type fakeElement struct {
	seeks      []float64
	reloads    int
	recoveries int
	failReload bool
}

func (f *fakeElement) Seek(seconds float64) { f.seeks = append(f.seeks, seconds) }

func (f *fakeElement) Reload() error {
	f.reloads++
	if f.failReload {
		return errors.New("manifest unreachable")
	}
	return nil
}

func (f *fakeElement) Recover() error {
	f.recoveries++
	return nil
}

func newController(duration float64, opts ...playback.Option) (*playback.Controller, *telemetry.Memory) {
	events := &telemetry.Memory{}
	opts = append([]playback.Option{playback.WithEmitter(telemetry.NewEmitter(events))}, opts...)
	return playback.NewController("sermon-1", duration, opts...), events
}

func equalNames(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestFullSessionFiresMilestonesOnceInOrder(t *testing.T) {
	ctx := context.Background()
	store := newMemoryPositions()
	ctrl, events := newController(300, playback.WithStore(store))

	if _, err := ctrl.Mount(ctx); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	if err := ctrl.Play(ctx); err != nil {
		t.Fatalf("Play: %v", err)
	}
	for second := 0; second <= 300; second++ {
		if err := ctrl.TimeUpdate(ctx, float64(second)); err != nil {
			t.Fatalf("TimeUpdate(%d): %v", second, err)
		}
	}
	if err := ctrl.Ended(ctx); err != nil {
		t.Fatalf("Ended: %v", err)
	}

	want := []string{
		"playback_started",
		"sermon_25_percent_complete",
		"sermon_50_percent_complete",
		"sermon_75_percent_complete",
		"playback_completed",
		"playback_completed",
	}
	if got := events.Names(); !equalNames(got, want) {
		t.Fatalf("events = %v, want %v", got, want)
	}

	all := events.Events()
	if all[4].Fields["trigger"] != "threshold" {
		t.Fatalf("threshold completion trigger = %v", all[4].Fields["trigger"])
	}
	if all[5].Fields["trigger"] != "ended" {
		t.Fatalf("ended completion trigger = %v", all[5].Fields["trigger"])
	}
	if all[1].Fields["position"] != float64(75) {
		t.Fatalf("quarter fired at %v, want 75", all[1].Fields["position"])
	}
	for _, ev := range all {
		if ev.AssetID != "sermon-1" {
			t.Fatalf("event %s has asset id %q", ev.Name, ev.AssetID)
		}
	}

	snap := ctrl.Snapshot()
	if snap.State != playback.StateEnded || snap.Percent != 100 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	for name, fired := range snap.Milestones {
		if !fired {
			t.Fatalf("milestone %s not recorded", name)
		}
	}
	if store.saves != 301 {
		t.Fatalf("saves = %d, want 301", store.saves)
	}
	if _, ok, _ := store.LoadPosition(ctx, "sermon-1"); ok {
		t.Fatal("expected position cleared after ended")
	}
}

func TestSeekPastSeveralMilestonesFiresAllInOrder(t *testing.T) {
	ctx := context.Background()
	ctrl, events := newController(300)

	_ = ctrl.Play(ctx)
	_ = ctrl.TimeUpdate(ctx, 10)
	_ = ctrl.TimeUpdate(ctx, 240)
	_ = ctrl.TimeUpdate(ctx, 30)
	_ = ctrl.TimeUpdate(ctx, 245)

	want := []string{
		"playback_started",
		"sermon_25_percent_complete",
		"sermon_50_percent_complete",
		"sermon_75_percent_complete",
	}
	if got := events.Names(); !equalNames(got, want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
}

func TestEndedFiresCompletionWithoutThreshold(t *testing.T) {
	ctx := context.Background()
	ctrl, events := newController(300)

	_ = ctrl.Play(ctx)
	_ = ctrl.TimeUpdate(ctx, 284.9)
	if err := ctrl.Ended(ctx); err != nil {
		t.Fatalf("Ended: %v", err)
	}

	names := events.Names()
	last := names[len(names)-1]
	if last != "playback_completed" {
		t.Fatalf("last event = %q", last)
	}
	count := 0
	for _, name := range names {
		if name == "playback_completed" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("completion count = %d, want 1", count)
	}
}

func TestMountResumesFromStoredPosition(t *testing.T) {
	ctx := context.Background()
	store := newMemoryPositions()
	_ = store.SavePosition(ctx, "sermon-1", 123.5)
	element := &fakeElement{}
	ctrl, events := newController(300, playback.WithStore(store), playback.WithElement(element))

	pos, err := ctrl.Mount(ctx)
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	if pos != 123.5 {
		t.Fatalf("resume position = %v", pos)
	}
	if len(element.seeks) != 1 || element.seeks[0] != 123.5 {
		t.Fatalf("seeks = %v", element.seeks)
	}

	_ = ctrl.Play(ctx)
	_ = ctrl.Play(ctx)
	started := events.Events()
	if len(started) != 1 || started[0].Fields["resumed"] != true {
		t.Fatalf("expected one resumed start event, got %+v", started)
	}
}

func TestMountIgnoresPositionAtEnd(t *testing.T) {
	ctx := context.Background()
	store := newMemoryPositions()
	_ = store.SavePosition(ctx, "sermon-1", 300)
	ctrl, _ := newController(300, playback.WithStore(store))

	pos, err := ctrl.Mount(ctx)
	if err != nil || pos != 0 {
		t.Fatalf("Mount = %v, %v", pos, err)
	}
}

func TestPauseReportsProgressUnlessAtEnd(t *testing.T) {
	ctx := context.Background()
	ctrl, events := newController(300)

	_ = ctrl.Play(ctx)
	_ = ctrl.TimeUpdate(ctx, 60)
	_ = ctrl.Pause(ctx)
	_ = ctrl.TimeUpdate(ctx, 299.5)
	_ = ctrl.Pause(ctx)

	var progress []telemetry.Event
	for _, ev := range events.Events() {
		if ev.Name == telemetry.EventPlaybackProgress {
			progress = append(progress, ev)
		}
	}
	if len(progress) != 1 {
		t.Fatalf("progress events = %d, want 1", len(progress))
	}
	if progress[0].Fields["percent"] != 20 {
		t.Fatalf("progress percent = %v", progress[0].Fields["percent"])
	}
}

func TestQualityChange(t *testing.T) {
	ctx := context.Background()
	renditions, err := playback.RenditionsFromMaster(hls.BuildMaster(hls.Ladder()))
	if err != nil {
		t.Fatalf("RenditionsFromMaster: %v", err)
	}
	if len(renditions) != 5 {
		t.Fatalf("renditions = %d", len(renditions))
	}
	for i := 1; i < len(renditions); i++ {
		if renditions[i].Bitrate <= renditions[i-1].Bitrate {
			t.Fatalf("renditions not ascending: %+v", renditions)
		}
	}

	ctrl, events := newController(300, playback.WithRenditions(renditions))
	if err := ctrl.SetQuality(ctx, len(renditions)-1); err != nil {
		t.Fatalf("SetQuality: %v", err)
	}
	if err := ctrl.SetQuality(ctx, playback.AutoQuality); err != nil {
		t.Fatalf("SetQuality auto: %v", err)
	}
	if err := ctrl.SetQuality(ctx, 9); err == nil {
		t.Fatal("expected out of range index to fail")
	}

	all := events.Events()
	if len(all) != 2 {
		t.Fatalf("events = %v", events.Names())
	}
	top := renditions[len(renditions)-1]
	if all[0].Fields["quality"] != top.Label || all[0].Fields["bitrate"] != top.Bitrate {
		t.Fatalf("unexpected top quality event: %+v", all[0].Fields)
	}
	if all[1].Fields["quality"] != "auto" || all[1].Fields["bitrate"] != 0 {
		t.Fatalf("unexpected auto quality event: %+v", all[1].Fields)
	}
	if ctrl.Snapshot().Rendition != playback.AutoQuality {
		t.Fatal("expected auto rendition selected")
	}
}

func TestSpeedAndDownload(t *testing.T) {
	ctx := context.Background()
	ctrl, events := newController(300)

	ctrl.SetSpeed(ctx, 3.5)
	ctrl.Download(ctx, "https://cdn.test/sermons/video/sermon-1.mp4")

	all := events.Events()
	if len(all) != 2 {
		t.Fatalf("events = %v", events.Names())
	}
	if all[0].Name != telemetry.EventSpeedChange || all[0].Fields["rate"] != 3.5 {
		t.Fatalf("unexpected speed event: %+v", all[0])
	}
	if all[1].Name != telemetry.EventDownload {
		t.Fatalf("unexpected download event: %+v", all[1])
	}
	if playback.ValidRate(3.5) || !playback.ValidRate(1.25) {
		t.Fatal("rate menu mismatch")
	}
}

func TestFatalErrorsRecoverOnceThenUnplayable(t *testing.T) {
	cases := []struct {
		name       string
		first      playback.ErrorKind
		wantAction playback.Action
	}{
		{"network reloads", playback.ErrorNetwork, playback.ActionReload},
		{"media recovers", playback.ErrorMedia, playback.ActionRecover},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			element := &fakeElement{}
			ctrl, _ := newController(300, playback.WithElement(element))

			action, err := ctrl.HandleError(ctx, tc.first, "fatal")
			if err != nil {
				t.Fatalf("first error: %v", err)
			}
			if action != tc.wantAction {
				t.Fatalf("action = %s, want %s", action, tc.wantAction)
			}
			if element.reloads+element.recoveries != 1 {
				t.Fatalf("expected one recovery attempt, got reloads=%d recoveries=%d", element.reloads, element.recoveries)
			}

			action, err = ctrl.HandleError(ctx, playback.ErrorMedia, "fatal again")
			if !errors.Is(err, playback.ErrUnplayable) || action != playback.ActionNone {
				t.Fatalf("second error = %s, %v", action, err)
			}
			if element.reloads+element.recoveries != 1 {
				t.Fatal("no further automatic retries expected")
			}
			if ctrl.Snapshot().State != playback.StateUnplayable {
				t.Fatal("expected unplayable state")
			}
			if err := ctrl.Play(ctx); !errors.Is(err, playback.ErrUnplayable) {
				t.Fatalf("Play after unplayable = %v", err)
			}
		})
	}
}

func TestFailedReloadIsTerminal(t *testing.T) {
	element := &fakeElement{failReload: true}
	ctrl, _ := newController(300, playback.WithElement(element))
	_, err := ctrl.HandleError(context.Background(), playback.ErrorNetwork, "offline")
	if !errors.Is(err, playback.ErrUnplayable) {
		t.Fatalf("expected unplayable, got %v", err)
	}
}

func TestParseErrorKind(t *testing.T) {
	if kind, err := playback.ParseErrorKind(" Network "); err != nil || kind != playback.ErrorNetwork {
		t.Fatalf("ParseErrorKind = %q, %v", kind, err)
	}
	if _, err := playback.ParseErrorKind("disk"); err == nil {
		t.Fatal("expected unknown kind to fail")
	}
}

func TestPositionsPersistInQueueStore(t *testing.T) {
	ctx := context.Background()
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))

	first, _ := newController(600, playback.WithStore(store))
	_ = first.Play(ctx)
	_ = first.TimeUpdate(ctx, 95.25)

	raw, err := store.RawPosition(ctx, "sermon-1")
	if err != nil {
		t.Fatalf("RawPosition: %v", err)
	}
	if raw != "95.25" {
		t.Fatalf("stored position = %q", raw)
	}

	second, _ := newController(600, playback.WithStore(store))
	pos, err := second.Mount(ctx)
	if err != nil || pos != 95.25 {
		t.Fatalf("Mount = %v, %v", pos, err)
	}
}

func TestSessionsRegistry(t *testing.T) {
	sessions := playback.NewSessions(2)
	a := sessions.Add(playback.NewController("a", 10))
	b := sessions.Add(playback.NewController("b", 10))
	if a == b {
		t.Fatal("expected unique session ids")
	}
	c := sessions.Add(playback.NewController("c", 10))
	if _, ok := sessions.Get(a); ok {
		t.Fatal("expected oldest session evicted")
	}
	if _, ok := sessions.Get(c); !ok {
		t.Fatal("expected newest session present")
	}
	if !sessions.Remove(b) || sessions.Remove(b) {
		t.Fatal("Remove should succeed once")
	}
	if sessions.Len() != 1 {
		t.Fatalf("Len = %d", sessions.Len())
	}
}
