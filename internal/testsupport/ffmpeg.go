package testsupport

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// FakeFFmpeg is a scripted engine executor. It answers -version probes,
// emits ffmpeg-style time= stats lines, and writes plausible outputs: a file
// at the final argument, or a playlist plus segments for HLS commands.
type FakeFFmpeg struct {
	// Duration is the simulated media length in seconds (default 40).
	Duration float64
	// Segments is the number of HLS segments per rendition (default 2).
	Segments int
	// Missing simulates a binary that cannot be executed.
	Missing bool
	// FailWhen returns a non-nil error to fail a matching command.
	FailWhen func(args []string) error
	// NoOutput suppresses writing output files for matching commands.
	NoOutput func(args []string) bool

	mu    sync.Mutex
	calls [][]string
}

// Run implements the transcode executor contract.
func (f *FakeFFmpeg) Run(ctx context.Context, binary string, args []string, onLine func(string)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	f.calls = append(f.calls, slices.Clone(args))
	f.mu.Unlock()

	if slices.Contains(args, "-version") {
		if f.Missing {
			return fmt.Errorf("exec: %q: executable file not found in $PATH", binary)
		}
		emit(onLine, "ffmpeg version 7.1-fake Copyright (c) 2000-2024 the FFmpeg developers")
		return nil
	}
	if f.FailWhen != nil {
		if err := f.FailWhen(args); err != nil {
			emit(onLine, "Conversion failed!")
			return err
		}
	}

	duration := f.Duration
	if duration <= 0 {
		duration = 40
	}
	for _, frac := range []float64{0.25, 0.5, 0.75, 1.0} {
		emit(onLine, fmt.Sprintf("frame=  120 fps= 60 q=28.0 size=    1024kB time=%s bitrate= 800.0kbits/s speed=2.0x", clock(duration*frac)))
	}

	if f.NoOutput != nil && f.NoOutput(args) {
		return nil
	}
	out := args[len(args)-1]
	if pattern := ArgValue(args, "-hls_segment_filename"); pattern != "" {
		return f.writeHLS(pattern, out)
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return err
	}
	return os.WriteFile(out, []byte("fake "+filepath.Ext(out)+" payload"), 0o644)
}

func (f *FakeFFmpeg) writeHLS(pattern, playlist string) error {
	segments := f.Segments
	if segments <= 0 {
		segments = 2
	}
	var b strings.Builder
	b.WriteString("#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-TARGETDURATION:10\n#EXT-X-MEDIA-SEQUENCE:0\n#EXT-X-PLAYLIST-TYPE:VOD\n")
	for i := 0; i < segments; i++ {
		path := fmt.Sprintf(pattern, i)
		if err := os.WriteFile(path, []byte("ts"), 0o644); err != nil {
			return err
		}
		fmt.Fprintf(&b, "#EXTINF:10.000000,\n%s\n", filepath.Base(path))
	}
	b.WriteString("#EXT-X-ENDLIST\n")
	return os.WriteFile(playlist, []byte(b.String()), 0o644)
}

// Calls returns a copy of every recorded argument list.
func (f *FakeFFmpeg) Calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = slices.Clone(c)
	}
	return out
}

// EncodeCalls returns recorded commands excluding -version probes.
func (f *FakeFFmpeg) EncodeCalls() [][]string {
	var out [][]string
	for _, c := range f.Calls() {
		if !slices.Contains(c, "-version") {
			out = append(out, c)
		}
	}
	return out
}

// FailOnOutputSuffix fails any command whose output path ends with suffix.
func FailOnOutputSuffix(suffix string) func([]string) error {
	return func(args []string) error {
		if len(args) > 0 && strings.HasSuffix(args[len(args)-1], suffix) {
			return fmt.Errorf("exit status 1")
		}
		return nil
	}
}

// ArgValue returns the value following flag, or "".
func ArgValue(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func emit(onLine func(string), line string) {
	if onLine != nil {
		onLine(line)
	}
}

func clock(seconds float64) string {
	h := int(seconds) / 3600
	m := (int(seconds) % 3600) / 60
	s := seconds - float64(h*3600+m*60)
	return fmt.Sprintf("%02d:%02d:%05.2f", h, m, s)
}
