package media

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Kind distinguishes audio from video sermons.
type Kind string

const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

// ParseKind converts user input into a Kind.
func ParseKind(value string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(value))) {
	case KindAudio:
		return KindAudio, nil
	case KindVideo:
		return KindVideo, nil
	default:
		return "", fmt.Errorf("unknown media kind %q", value)
	}
}

// Source is the uploaded input file as declared by the submitter.
type Source struct {
	Path     string
	MIMEType string
	Size     int64
}

// Ext returns the lowercased file extension including the dot.
func (s Source) Ext() string {
	return strings.ToLower(filepath.Ext(s.Path))
}

// Blob is a locally produced artifact ready to be uploaded.
type Blob struct {
	Path        string
	ContentType string
	Size        int64
}

var contentTypes = map[string]string{
	".m3u8": "application/vnd.apple.mpegurl",
	".ts":   "video/mp2t",
	".mp4":  "video/mp4",
	".mp3":  "audio/mpeg",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".wav":  "audio/wav",
	".m4a":  "audio/mp4",
	".mov":  "video/quicktime",
	".webm": "video/webm",
}

// ContentTypeFor returns the MIME type served for an artifact name.
func ContentTypeFor(name string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// ProgressFunc receives a 0-100 completion estimate scoped to one operation.
type ProgressFunc func(percent int)
