package hls

import (
	"bufio"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Variant is one EXT-X-STREAM-INF entry of a master manifest.
type Variant struct {
	Bandwidth int
	Width     int
	Height    int
	URI       string
}

// Segment is one EXTINF entry of a media playlist.
type Segment struct {
	Duration float64
	URI      string
}

// MediaPlaylist is a parsed rendition playlist.
type MediaPlaylist struct {
	Version        int
	TargetDuration int
	PlaylistType   string
	Segments       []Segment
	EndList        bool
}

// BuildMaster renders the master manifest for the given renditions, in order.
func BuildMaster(renditions []Rendition) string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n#EXT-X-VERSION:3\n")
	for _, r := range renditions {
		fmt.Fprintf(&b, "#EXT-X-STREAM-INF:BANDWIDTH=%d,RESOLUTION=%s\n", r.Bandwidth(), r.Resolution())
		b.WriteString(r.PlaylistName())
		b.WriteByte('\n')
	}
	return b.String()
}

// ParseMaster reads the variant streams from a master manifest.
func ParseMaster(text string) ([]Variant, error) {
	scanner := bufio.NewScanner(strings.NewReader(text))
	if !scanner.Scan() || strings.TrimSpace(scanner.Text()) != "#EXTM3U" {
		return nil, errors.New("hls: master manifest missing #EXTM3U header")
	}
	var (
		variants []Variant
		pending  *Variant
	)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "#EXT-X-STREAM-INF:"):
			v, err := parseStreamInf(strings.TrimPrefix(line, "#EXT-X-STREAM-INF:"))
			if err != nil {
				return nil, err
			}
			pending = &v
		case strings.HasPrefix(line, "#"):
			continue
		default:
			if pending == nil {
				return nil, fmt.Errorf("hls: uri %q without EXT-X-STREAM-INF", line)
			}
			pending.URI = line
			variants = append(variants, *pending)
			pending = nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("hls: read master: %w", err)
	}
	if pending != nil {
		return nil, errors.New("hls: trailing EXT-X-STREAM-INF without uri")
	}
	return variants, nil
}

func parseStreamInf(attrs string) (Variant, error) {
	var v Variant
	for _, attr := range splitAttributes(attrs) {
		key, value, ok := strings.Cut(attr, "=")
		if !ok {
			continue
		}
		switch strings.ToUpper(strings.TrimSpace(key)) {
		case "BANDWIDTH":
			bw, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return Variant{}, fmt.Errorf("hls: invalid BANDWIDTH %q", value)
			}
			v.Bandwidth = bw
		case "RESOLUTION":
			w, h, ok := strings.Cut(strings.TrimSpace(value), "x")
			if !ok {
				return Variant{}, fmt.Errorf("hls: invalid RESOLUTION %q", value)
			}
			width, errW := strconv.Atoi(w)
			height, errH := strconv.Atoi(h)
			if errW != nil || errH != nil {
				return Variant{}, fmt.Errorf("hls: invalid RESOLUTION %q", value)
			}
			v.Width, v.Height = width, height
		}
	}
	if v.Bandwidth <= 0 {
		return Variant{}, errors.New("hls: EXT-X-STREAM-INF missing BANDWIDTH")
	}
	return v, nil
}

// splitAttributes splits an attribute list on commas outside quoted strings.
func splitAttributes(attrs string) []string {
	var (
		parts   []string
		current strings.Builder
		quoted  bool
	)
	for _, r := range attrs {
		switch {
		case r == '"':
			quoted = !quoted
			current.WriteRune(r)
		case r == ',' && !quoted:
			parts = append(parts, current.String())
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}

// ParseMediaPlaylist reads a rendition playlist.
func ParseMediaPlaylist(text string) (MediaPlaylist, error) {
	scanner := bufio.NewScanner(strings.NewReader(text))
	if !scanner.Scan() || strings.TrimSpace(scanner.Text()) != "#EXTM3U" {
		return MediaPlaylist{}, errors.New("hls: media playlist missing #EXTM3U header")
	}
	var (
		playlist MediaPlaylist
		duration float64
		inSeg    bool
	)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "#EXT-X-VERSION:"):
			playlist.Version, _ = strconv.Atoi(strings.TrimPrefix(line, "#EXT-X-VERSION:"))
		case strings.HasPrefix(line, "#EXT-X-TARGETDURATION:"):
			playlist.TargetDuration, _ = strconv.Atoi(strings.TrimPrefix(line, "#EXT-X-TARGETDURATION:"))
		case strings.HasPrefix(line, "#EXT-X-PLAYLIST-TYPE:"):
			playlist.PlaylistType = strings.TrimPrefix(line, "#EXT-X-PLAYLIST-TYPE:")
		case line == "#EXT-X-ENDLIST":
			playlist.EndList = true
		case strings.HasPrefix(line, "#EXTINF:"):
			value, _, _ := strings.Cut(strings.TrimPrefix(line, "#EXTINF:"), ",")
			d, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
			if err != nil {
				return MediaPlaylist{}, fmt.Errorf("hls: invalid EXTINF %q", line)
			}
			duration, inSeg = d, true
		case strings.HasPrefix(line, "#"):
			continue
		default:
			if !inSeg {
				return MediaPlaylist{}, fmt.Errorf("hls: segment %q without EXTINF", line)
			}
			playlist.Segments = append(playlist.Segments, Segment{Duration: duration, URI: line})
			inSeg = false
		}
	}
	if err := scanner.Err(); err != nil {
		return MediaPlaylist{}, fmt.Errorf("hls: read playlist: %w", err)
	}
	return playlist, nil
}
