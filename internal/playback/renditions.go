package playback

import (
	"fmt"
	"slices"

	"sermoncast/internal/hls"
)

// Rendition is one selectable quality level.
type Rendition struct {
	Label   string `json:"label"`
	Bitrate int    `json:"bitrate"`
	URI     string `json:"uri"`
}

// RenditionsFromMaster lists the variants of a master manifest as
// renditions, lowest bandwidth first.
func RenditionsFromMaster(text string) ([]Rendition, error) {
	variants, err := hls.ParseMaster(text)
	if err != nil {
		return nil, err
	}
	out := make([]Rendition, 0, len(variants))
	for _, v := range variants {
		label := fmt.Sprintf("%dp", v.Height)
		if v.Height == 0 {
			label = fmt.Sprintf("%dk", v.Bandwidth/1000)
		}
		out = append(out, Rendition{Label: label, Bitrate: v.Bandwidth, URI: v.URI})
	}
	slices.SortStableFunc(out, func(a, b Rendition) int { return a.Bitrate - b.Bitrate })
	return out, nil
}

// AllowedRates is the playback-rate menu offered to viewers.
var AllowedRates = []float64{0.75, 1, 1.25, 1.5, 1.75, 2}

// ValidRate reports whether rate is on the menu.
func ValidRate(rate float64) bool {
	return slices.Contains(AllowedRates, rate)
}
