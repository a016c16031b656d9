package transcode

import (
	"regexp"
	"strconv"

	"sermoncast/internal/media"
)

var timePattern = regexp.MustCompile(`time=(\d+):(\d{2}):(\d{2}(?:\.\d+)?)`)

// ParseProgressTime extracts the elapsed media time in seconds from an ffmpeg
// stats line.
func ParseProgressTime(line string) (float64, bool) {
	match := timePattern.FindStringSubmatch(line)
	if match == nil {
		return 0, false
	}
	hours, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, false
	}
	minutes, err := strconv.Atoi(match[2])
	if err != nil {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(match[3], 64)
	if err != nil {
		return 0, false
	}
	return float64(hours*3600+minutes*60) + seconds, true
}

// progressTracker converts engine lines into a monotonic 0-100 signal. Parsed
// values are capped at 99 so only Done reports completion.
type progressTracker struct {
	total float64
	last  int
	fn    media.ProgressFunc
}

func newProgressTracker(totalSeconds float64, fn media.ProgressFunc) *progressTracker {
	return &progressTracker{total: totalSeconds, last: -1, fn: fn}
}

func (p *progressTracker) Line(line string) {
	if p.fn == nil || p.total <= 0 {
		return
	}
	elapsed, ok := ParseProgressTime(line)
	if !ok {
		return
	}
	pct := int(elapsed / p.total * 100)
	if pct > 99 {
		pct = 99
	}
	p.emit(pct)
}

func (p *progressTracker) Done() {
	p.emit(100)
}

func (p *progressTracker) emit(pct int) {
	if p.fn == nil || pct <= p.last {
		return
	}
	if pct < 0 {
		pct = 0
	}
	p.last = pct
	p.fn(pct)
}
