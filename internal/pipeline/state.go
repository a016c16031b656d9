package pipeline

import (
	"sync"

	"sermoncast/internal/media"
)

// State is one step of an asset's processing run.
type State string

const (
	StateInit         State = "INIT"
	StateTranscodeMP4 State = "TRANSCODE_MP4"
	StateUploadMP4    State = "UPLOAD_MP4"
	StatePackageHLS   State = "PACKAGE_HLS"
	StateUploadHLS    State = "UPLOAD_HLS"
	StateThumbnail    State = "THUMBNAIL"
	StateTranscodeMP3 State = "TRANSCODE_MP3"
	StateUploadMP3    State = "UPLOAD_MP3"
	StateWaveform     State = "WAVEFORM"
	StateRawUpload    State = "RAW_UPLOAD"
	StateDone         State = "DONE"
	StateFailed       State = "FAILED"
)

// Terminal reports whether s ends a run.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Slice is the share of the overall 0-100 scale allotted to a state.
type Slice struct {
	Start int
	End   int
}

// Scale maps a 0-100 sub-progress value into the slice.
func (s Slice) Scale(sub int) int {
	sub = min(max(sub, 0), 100)
	return s.Start + sub*(s.End-s.Start)/100
}

var stageSlices = map[media.Kind]map[State]Slice{
	media.KindVideo: {
		StateInit:         {0, 5},
		StateTranscodeMP4: {5, 30},
		StateUploadMP4:    {30, 40},
		StatePackageHLS:   {40, 80},
		StateUploadHLS:    {80, 90},
		StateThumbnail:    {90, 100},
		StateRawUpload:    {5, 100},
	},
	media.KindAudio: {
		StateInit:         {0, 5},
		StateTranscodeMP3: {5, 60},
		StateUploadMP3:    {60, 90},
		StateWaveform:     {90, 100},
		StateRawUpload:    {5, 100},
	},
}

// SliceFor returns the progress slice of state for kind. Unknown pairs map to
// an empty slice at 100 for DONE and at 0 otherwise.
func SliceFor(kind media.Kind, state State) Slice {
	if s, ok := stageSlices[kind][state]; ok {
		return s
	}
	if state == StateDone {
		return Slice{100, 100}
	}
	return Slice{}
}

// Plan lists the states a run will visit for kind and opts, in order,
// excluding the terminal state.
func Plan(kind media.Kind, opts Options) []State {
	plan := []State{StateInit}
	switch kind {
	case media.KindVideo:
		if opts.TranscodeVideo {
			plan = append(plan, StateTranscodeMP4, StateUploadMP4)
			if opts.GenerateHLS {
				plan = append(plan, StatePackageHLS, StateUploadHLS)
			}
		}
		if opts.GenerateThumbnail {
			plan = append(plan, StateThumbnail)
		}
	case media.KindAudio:
		if opts.TranscodeAudio {
			plan = append(plan, StateTranscodeMP3, StateUploadMP3)
		}
		if opts.GenerateWaveform {
			plan = append(plan, StateWaveform)
		}
	}
	return plan
}

// Update is one progress report for a run.
type Update struct {
	State   State `json:"state"`
	Percent int   `json:"percent"`
}

// UpdateFunc receives progress reports.
type UpdateFunc func(Update)

// aggregator folds per-stage progress into one non-decreasing overall value.
type aggregator struct {
	mu    sync.Mutex
	kind  media.Kind
	state State
	last  int
	sent  bool
	fn    UpdateFunc
}

func newAggregator(kind media.Kind, fn UpdateFunc) *aggregator {
	return &aggregator{kind: kind, fn: fn}
}

// Enter switches to state and reports the start of its slice.
func (a *aggregator) Enter(state State) {
	a.mu.Lock()
	a.state = state
	a.mu.Unlock()
	a.report(SliceFor(a.kind, state).Start, true)
}

// Stage returns a sub-progress callback for the current state.
func (a *aggregator) Stage() media.ProgressFunc {
	a.mu.Lock()
	slice := SliceFor(a.kind, a.state)
	a.mu.Unlock()
	return func(sub int) {
		a.report(slice.Scale(sub), false)
	}
}

// Finish reports exactly 100 under DONE.
func (a *aggregator) Finish() {
	a.mu.Lock()
	a.state = StateDone
	a.mu.Unlock()
	a.report(100, true)
}

// Last returns the highest value reported so far.
func (a *aggregator) Last() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last
}

// report forwards overall when it advances progress. State transitions are
// forwarded even without an advance so listeners see the new state.
func (a *aggregator) report(overall int, transition bool) {
	a.mu.Lock()
	if overall < a.last {
		overall = a.last
	}
	if a.sent && overall == a.last && !transition {
		a.mu.Unlock()
		return
	}
	a.last = overall
	a.sent = true
	update := Update{State: a.state, Percent: overall}
	fn := a.fn
	a.mu.Unlock()
	if fn != nil {
		fn(update)
	}
}
