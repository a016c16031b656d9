package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"sermoncast/internal/config"
	"sermoncast/internal/hls"
	"sermoncast/internal/logging"
	"sermoncast/internal/media"
	"sermoncast/internal/pipeline"
	"sermoncast/internal/services"
	"sermoncast/internal/telemetry"
	"sermoncast/internal/testsupport"
)

type harness struct {
	cfg    *config.Config
	fake   *testsupport.FakeFFmpeg
	events *telemetry.Memory
	proc   *pipeline.Processor
}

func newHarness(t *testing.T, fake *testsupport.FakeFFmpeg, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	if fake == nil {
		fake = &testsupport.FakeFFmpeg{}
	}
	cfg := testsupport.NewConfig(t, opts...)
	events := &telemetry.Memory{}
	proc, err := pipeline.Build(context.Background(), cfg, pipeline.Deps{
		Logger:   logging.NewNop(),
		Emitter:  telemetry.NewEmitter(events),
		Executor: fake,
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { _ = proc.Close() })
	return &harness{cfg: cfg, fake: fake, events: events, proc: proc}
}

func (h *harness) stored(t *testing.T, key string) bool {
	t.Helper()
	_, err := os.Stat(filepath.Join(h.cfg.Storage.LocalDir, filepath.FromSlash(key)))
	return err == nil
}

type recorder struct {
	mu      sync.Mutex
	updates []pipeline.Update
}

func (r *recorder) record(u pipeline.Update) {
	r.mu.Lock()
	r.updates = append(r.updates, u)
	r.mu.Unlock()
}

func (r *recorder) percents() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, len(r.updates))
	for i, u := range r.updates {
		out[i] = u.Percent
	}
	return out
}

func (r *recorder) states() []pipeline.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []pipeline.State
	for _, u := range r.updates {
		if len(out) == 0 || out[len(out)-1] != u.State {
			out = append(out, u.State)
		}
	}
	return out
}

func assertMonotonicToHundred(t *testing.T, percents []int) {
	t.Helper()
	if len(percents) == 0 {
		t.Fatal("no progress reported")
	}
	for i := 1; i < len(percents); i++ {
		if percents[i] < percents[i-1] {
			t.Fatalf("progress decreased at %d: %v", i, percents)
		}
	}
	if last := percents[len(percents)-1]; last != 100 {
		t.Fatalf("progress ended at %d, want 100: %v", last, percents)
	}
}

func videoAsset(t *testing.T, id string, size int64, opts pipeline.Options) pipeline.Asset {
	t.Helper()
	src := testsupport.NewSource(t, t.TempDir(), "sermon.mp4", size)
	return pipeline.Asset{ID: id, Kind: media.KindVideo, Source: src, Options: opts}
}

func TestVideoWithThumbnailPublishesLadder(t *testing.T) {
	h := newHarness(t, nil)
	opts := pipeline.DefaultOptions(media.KindVideo)
	opts.Quality = "medium"
	opts.ThumbnailTime = 5
	asset := videoAsset(t, "easter-2024", 10<<20, opts)

	rec := &recorder{}
	result, err := h.proc.Process(context.Background(), asset, rec.record)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if result.MediaURL != "https://cdn.test/sermons/video/easter-2024/master.m3u8" {
		t.Fatalf("unexpected media url %q", result.MediaURL)
	}
	if result.FallbackURL != "https://cdn.test/sermons/video/easter-2024.mp4" {
		t.Fatalf("unexpected fallback url %q", result.FallbackURL)
	}
	if result.ThumbnailURL != "https://cdn.test/sermons/thumbnails/easter-2024.jpg" {
		t.Fatalf("unexpected thumbnail url %q", result.ThumbnailURL)
	}
	if result.Path != "sermons/video/easter-2024/master.m3u8" {
		t.Fatalf("unexpected path %q", result.Path)
	}
	for _, key := range []string{
		"sermons/video/easter-2024.mp4",
		"sermons/video/easter-2024/master.m3u8",
		"sermons/thumbnails/easter-2024.jpg",
	} {
		if !h.stored(t, key) {
			t.Fatalf("expected %s in storage", key)
		}
	}

	master, err := os.ReadFile(filepath.Join(h.cfg.Storage.LocalDir, "sermons", "video", "easter-2024", "master.m3u8"))
	if err != nil {
		t.Fatalf("read master: %v", err)
	}
	variants, err := hls.ParseMaster(string(master))
	if err != nil {
		t.Fatalf("ParseMaster: %v", err)
	}
	ladder := hls.Ladder()
	if len(variants) != len(ladder) {
		t.Fatalf("expected %d variants, got %d", len(ladder), len(variants))
	}
	for i, v := range variants {
		if v.URI != ladder[i].PlaylistName() {
			t.Fatalf("variant %d = %q, want %q", i, v.URI, ladder[i].PlaylistName())
		}
		if i > 0 && v.Bandwidth <= variants[i-1].Bandwidth {
			t.Fatalf("bandwidth not ascending: %+v", variants)
		}
		data, err := os.ReadFile(filepath.Join(h.cfg.Storage.LocalDir, "sermons", "video", "easter-2024", v.URI))
		if err != nil {
			t.Fatalf("read playlist: %v", err)
		}
		playlist, err := hls.ParseMediaPlaylist(string(data))
		if err != nil {
			t.Fatalf("ParseMediaPlaylist: %v", err)
		}
		for _, seg := range playlist.Segments {
			if !strings.HasPrefix(seg.URI, "segment_"+ladder[i].Name+"_") {
				t.Fatalf("segment %q not namespaced for %s", seg.URI, ladder[i].Name)
			}
			if !h.stored(t, "sermons/video/easter-2024/"+seg.URI) {
				t.Fatalf("dangling segment reference %q", seg.URI)
			}
		}
	}

	assertMonotonicToHundred(t, rec.percents())
	wantStates := []pipeline.State{
		pipeline.StateInit, pipeline.StateTranscodeMP4, pipeline.StateUploadMP4,
		pipeline.StatePackageHLS, pipeline.StateUploadHLS, pipeline.StateThumbnail, pipeline.StateDone,
	}
	if got := rec.states(); !slices.Equal(got, wantStates) {
		t.Fatalf("states = %v, want %v", got, wantStates)
	}

	var mp4Args []string
	for _, call := range h.fake.EncodeCalls() {
		if strings.HasSuffix(call[len(call)-1], "video.mp4") {
			mp4Args = call
		}
	}
	if testsupport.ArgValue(mp4Args, "-b:v") != "2500k" || testsupport.ArgValue(mp4Args, "-movflags") != "+faststart" {
		t.Fatalf("unexpected mp4 args %v", mp4Args)
	}

	if names := h.events.Names(); !slices.Equal(names, []string{telemetry.EventProcessingCompleted}) {
		t.Fatalf("unexpected events %v", names)
	}

	entries, err := os.ReadDir(filepath.Join(h.cfg.Paths.ScratchDir, "jobs"))
	if err != nil {
		t.Fatalf("read jobs dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected job workspace removed, found %d entries", len(entries))
	}
}

func TestThumbnailOnlyVideoLeavesMediaURLUnset(t *testing.T) {
	h := newHarness(t, nil)
	opts := pipeline.DefaultOptions(media.KindVideo)
	opts.TranscodeVideo = false
	asset := videoAsset(t, "thumb-only", 1<<20, opts)

	result, err := h.proc.Process(context.Background(), asset, nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.MediaURL != "" {
		t.Fatalf("expected media url unset, got %q", result.MediaURL)
	}
	if result.ThumbnailURL == "" {
		t.Fatal("expected thumbnail url")
	}
	if h.stored(t, "sermons/video/thumb-only.mp4") {
		t.Fatal("did not expect an mp4 upload")
	}
	if len(h.fake.EncodeCalls()) != 1 {
		t.Fatalf("expected only the thumbnail command, got %d", len(h.fake.EncodeCalls()))
	}
}

func TestHLSDisabledKeepsMP4Canonical(t *testing.T) {
	h := newHarness(t, nil)
	opts := pipeline.DefaultOptions(media.KindVideo)
	opts.GenerateHLS = false
	opts.GenerateThumbnail = false
	result, err := h.proc.Process(context.Background(), videoAsset(t, "mp4-only", 1<<20, opts), nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.MediaURL != "https://cdn.test/sermons/video/mp4-only.mp4" || result.FallbackURL != "" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestReprocessingUsesSamePaths(t *testing.T) {
	h := newHarness(t, nil)
	opts := pipeline.DefaultOptions(media.KindVideo)
	asset := videoAsset(t, "repeat", 1<<20, opts)

	first, err := h.proc.Process(context.Background(), asset, nil)
	if err != nil {
		t.Fatalf("first Process: %v", err)
	}
	countFiles := func() int {
		n := 0
		_ = filepath.WalkDir(h.cfg.Storage.LocalDir, func(_ string, d os.DirEntry, err error) error {
			if err == nil && !d.IsDir() {
				n++
			}
			return nil
		})
		return n
	}
	before := countFiles()
	second, err := h.proc.Process(context.Background(), asset, nil)
	if err != nil {
		t.Fatalf("second Process: %v", err)
	}
	if first.MediaURL != second.MediaURL || first.ThumbnailURL != second.ThumbnailURL || first.Path != second.Path {
		t.Fatalf("paths changed across runs: %+v vs %+v", first, second)
	}
	if after := countFiles(); after != before {
		t.Fatalf("storage grew from %d to %d files", before, after)
	}
}

func TestAudioLowQualityProducesMP3AndWaveform(t *testing.T) {
	h := newHarness(t, nil)
	opts := pipeline.DefaultOptions(media.KindAudio)
	opts.Quality = "low"
	src := testsupport.NewSource(t, t.TempDir(), "sermon.wav", 4<<20)
	rec := &recorder{}

	result, err := h.proc.Process(context.Background(), pipeline.Asset{ID: "psalm-23", Kind: media.KindAudio, Source: src, Options: opts}, rec.record)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.Path != "sermons/audio/psalm-23.mp3" {
		t.Fatalf("unexpected path %q", result.Path)
	}
	if result.WaveformURL != "https://cdn.test/sermons/audio/psalm-23_waveform.png" {
		t.Fatalf("unexpected waveform url %q", result.WaveformURL)
	}
	var mp3Args []string
	for _, call := range h.fake.EncodeCalls() {
		if strings.HasSuffix(call[len(call)-1], "audio.mp3") {
			mp3Args = call
		}
	}
	if testsupport.ArgValue(mp3Args, "-b:a") != "96k" || testsupport.ArgValue(mp3Args, "-c:a") != "libmp3lame" {
		t.Fatalf("unexpected mp3 args %v", mp3Args)
	}
	assertMonotonicToHundred(t, rec.percents())
	wantStates := []pipeline.State{pipeline.StateInit, pipeline.StateTranscodeMP3, pipeline.StateUploadMP3, pipeline.StateWaveform, pipeline.StateDone}
	if got := rec.states(); !slices.Equal(got, wantStates) {
		t.Fatalf("states = %v, want %v", got, wantStates)
	}
}

func TestTextFileAsVideoRejectedBeforeEngine(t *testing.T) {
	h := newHarness(t, nil)
	src := testsupport.NewSource(t, t.TempDir(), "notes.txt", 128)
	src.MIMEType = "text/plain"

	_, err := h.proc.Process(context.Background(), pipeline.Asset{
		ID: "notes", Kind: media.KindVideo, Source: src, Options: pipeline.DefaultOptions(media.KindVideo),
	}, nil)
	if !errors.Is(err, services.ErrInvalidFileType) {
		t.Fatalf("expected invalid file type, got %v", err)
	}
	if calls := h.fake.Calls(); len(calls) != 0 {
		t.Fatalf("expected no engine invocation, got %v", calls)
	}
	if h.proc.Engine().Loaded() {
		t.Fatal("engine should not have loaded")
	}
	if names := h.events.Names(); !slices.Equal(names, []string{telemetry.EventProcessingFailed}) {
		t.Fatalf("unexpected events %v", names)
	}
}

func TestContradictoryOptionsRejected(t *testing.T) {
	h := newHarness(t, nil)
	opts := pipeline.DefaultOptions(media.KindVideo)
	opts.TranscodeAudio = true
	_, err := h.proc.Process(context.Background(), videoAsset(t, "bad-opts", 1024, opts), nil)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if pipeline.FailedState(err) != pipeline.StateInit {
		t.Fatalf("expected INIT failure, got %q", pipeline.FailedState(err))
	}
	if len(h.fake.Calls()) != 0 {
		t.Fatal("expected no engine invocation")
	}
}

func TestThumbnailFailureDegradesGracefully(t *testing.T) {
	fake := &testsupport.FakeFFmpeg{FailWhen: testsupport.FailOnOutputSuffix("thumbnail.jpg")}
	h := newHarness(t, fake)
	rec := &recorder{}
	result, err := h.proc.Process(context.Background(), videoAsset(t, "no-thumb", 1<<20, pipeline.DefaultOptions(media.KindVideo)), rec.record)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.ThumbnailURL != "" {
		t.Fatalf("expected no thumbnail url, got %q", result.ThumbnailURL)
	}
	if !strings.HasSuffix(result.MediaURL, "/master.m3u8") {
		t.Fatalf("expected master url, got %q", result.MediaURL)
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("expected one warning, got %v", result.Warnings)
	}
	assertMonotonicToHundred(t, rec.percents())
}

func TestWaveformFailureDegradesGracefully(t *testing.T) {
	fake := &testsupport.FakeFFmpeg{NoOutput: func(args []string) bool {
		return strings.HasSuffix(args[len(args)-1], "waveform.png")
	}}
	h := newHarness(t, fake)
	src := testsupport.NewSource(t, t.TempDir(), "sermon.mp3", 1<<20)
	result, err := h.proc.Process(context.Background(), pipeline.Asset{
		ID: "no-wave", Kind: media.KindAudio, Source: src, Options: pipeline.DefaultOptions(media.KindAudio),
	}, nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.WaveformURL != "" || result.MediaURL == "" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestRenditionFailureFailsWholeRun(t *testing.T) {
	fake := &testsupport.FakeFFmpeg{FailWhen: testsupport.FailOnOutputSuffix("720p.m3u8")}
	h := newHarness(t, fake)
	_, err := h.proc.Process(context.Background(), videoAsset(t, "broken", 1<<20, pipeline.DefaultOptions(media.KindVideo)), nil)
	if !errors.Is(err, services.ErrEncode) {
		t.Fatalf("expected encode error, got %v", err)
	}
	if pipeline.FailedState(err) != pipeline.StatePackageHLS {
		t.Fatalf("expected PACKAGE_HLS failure, got %q", pipeline.FailedState(err))
	}
	if !h.stored(t, "sermons/video/broken.mp4") {
		t.Fatal("expected already uploaded mp4 to remain")
	}
	if h.stored(t, "sermons/video/broken/master.m3u8") {
		t.Fatal("did not expect a partial ladder")
	}
	events := h.events.Events()
	if len(events) != 1 || events[0].Name != telemetry.EventProcessingFailed {
		t.Fatalf("unexpected events %+v", events)
	}
	if events[0].Fields["stage"] != string(pipeline.StatePackageHLS) || events[0].Fields["errorKind"] != "encode" {
		t.Fatalf("unexpected failure fields %+v", events[0].Fields)
	}
}

func TestEngineLoadFailure(t *testing.T) {
	h := newHarness(t, &testsupport.FakeFFmpeg{Missing: true})
	_, err := h.proc.Process(context.Background(), videoAsset(t, "no-engine", 1<<20, pipeline.DefaultOptions(media.KindVideo)), nil)
	if !errors.Is(err, services.ErrEngineLoad) {
		t.Fatalf("expected engine load error, got %v", err)
	}
	if pipeline.FailedState(err) != pipeline.StateTranscodeMP4 {
		t.Fatalf("unexpected failed state %q", pipeline.FailedState(err))
	}
}

func TestEngineLoadFailureIsFatalForOptionalArtifacts(t *testing.T) {
	thumbOnly := pipeline.DefaultOptions(media.KindVideo)
	thumbOnly.TranscodeVideo = false

	waveOnly := pipeline.DefaultOptions(media.KindAudio)
	waveOnly.TranscodeAudio = false

	cases := []struct {
		name  string
		asset func(t *testing.T) pipeline.Asset
		state pipeline.State
	}{
		{
			name:  "thumbnail only",
			asset: func(t *testing.T) pipeline.Asset { return videoAsset(t, "thumb-no-engine", 1<<20, thumbOnly) },
			state: pipeline.StateThumbnail,
		},
		{
			name: "waveform only",
			asset: func(t *testing.T) pipeline.Asset {
				src := testsupport.NewSource(t, t.TempDir(), "sermon.mp3", 1<<20)
				return pipeline.Asset{ID: "wave-no-engine", Kind: media.KindAudio, Source: src, Options: waveOnly}
			},
			state: pipeline.StateWaveform,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, &testsupport.FakeFFmpeg{Missing: true})
			result, err := h.proc.Process(context.Background(), tc.asset(t), nil)
			if !errors.Is(err, services.ErrEngineLoad) {
				t.Fatalf("expected engine load error, got %v (result %+v)", err, result)
			}
			if pipeline.FailedState(err) != tc.state {
				t.Fatalf("failed state = %q, want %q", pipeline.FailedState(err), tc.state)
			}
			events := h.events.Events()
			if len(events) != 1 || events[0].Name != telemetry.EventProcessingFailed {
				t.Fatalf("unexpected events %+v", events)
			}
		})
	}
}

func TestWaveformOnlyEngineLoadFailureFallsBackToRawUpload(t *testing.T) {
	h := newHarness(t, &testsupport.FakeFFmpeg{Missing: true}, testsupport.WithRawFallback())
	opts := pipeline.DefaultOptions(media.KindAudio)
	opts.TranscodeAudio = false
	src := testsupport.NewSource(t, t.TempDir(), "sermon.mp3", 1<<20)

	result, err := h.proc.Process(context.Background(), pipeline.Asset{ID: "wave-raw", Kind: media.KindAudio, Source: src, Options: opts}, nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !result.RawFallback {
		t.Fatalf("expected raw fallback result, got %+v", result)
	}
	if !h.stored(t, "sermons/audio/wave-raw_original.mp3") {
		t.Fatal("expected original in storage")
	}
}

func TestEngineLoadFailureFallsBackToRawUpload(t *testing.T) {
	h := newHarness(t, &testsupport.FakeFFmpeg{Missing: true}, testsupport.WithRawFallback())
	rec := &recorder{}
	result, err := h.proc.Process(context.Background(), videoAsset(t, "raw", 1<<20, pipeline.DefaultOptions(media.KindVideo)), rec.record)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !result.RawFallback {
		t.Fatal("expected raw fallback result")
	}
	if result.MediaURL != "https://cdn.test/sermons/video/raw_original.mp4" {
		t.Fatalf("unexpected media url %q", result.MediaURL)
	}
	if !h.stored(t, "sermons/video/raw_original.mp4") {
		t.Fatal("expected original in storage")
	}
	assertMonotonicToHundred(t, rec.percents())
	events := h.events.Events()
	if len(events) != 1 || events[0].Fields["rawFallback"] != true {
		t.Fatalf("unexpected events %+v", events)
	}
}

func TestMissingSourceFails(t *testing.T) {
	h := newHarness(t, nil)
	asset := pipeline.Asset{
		ID:      "ghost",
		Kind:    media.KindAudio,
		Source:  media.Source{Path: filepath.Join(t.TempDir(), "ghost.mp3"), MIMEType: "audio/mpeg"},
		Options: pipeline.DefaultOptions(media.KindAudio),
	}
	_, err := h.proc.Process(context.Background(), asset, nil)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCanceledContextStopsRun(t *testing.T) {
	h := newHarness(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.proc.Process(ctx, videoAsset(t, "canceled", 1<<20, pipeline.DefaultOptions(media.KindVideo)), nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}
