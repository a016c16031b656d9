package media

import (
	"fmt"
	"mime"
	"strings"
)

var kindExtensions = map[Kind]map[string]struct{}{
	KindAudio: setOf(".mp3", ".wav", ".m4a", ".aac", ".ogg", ".oga", ".opus", ".flac", ".wma", ".aif", ".aiff"),
	KindVideo: setOf(".mp4", ".m4v", ".mov", ".mkv", ".webm", ".avi", ".mpg", ".mpeg", ".wmv", ".3gp", ".ts"),
}

func setOf(values ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

// CheckFileType reports whether src plausibly holds media of the given kind.
// The declared MIME type must belong to the kind's top-level type and the
// extension, when present, must be a known container for that kind. A generic
// octet-stream MIME type defers to the extension.
func CheckFileType(kind Kind, src Source) error {
	exts, ok := kindExtensions[kind]
	if !ok {
		return fmt.Errorf("unknown media kind %q", kind)
	}

	mimeType := normalizeMIME(src.MIMEType)
	ext := src.Ext()

	mimeKnown := mimeType != "" && mimeType != "application/octet-stream"
	if mimeKnown && !strings.HasPrefix(mimeType, string(kind)+"/") {
		return fmt.Errorf("mime type %q is not %s", mimeType, kind)
	}
	if ext != "" {
		if _, ok := exts[ext]; !ok {
			return fmt.Errorf("extension %q is not a supported %s container", ext, kind)
		}
		return nil
	}
	if !mimeKnown {
		return fmt.Errorf("cannot determine file type for %q", src.Path)
	}
	return nil
}

// GuessMIME derives a MIME type from the file extension when the submitter
// did not provide one.
func GuessMIME(path string) string {
	src := Source{Path: path}
	ext := src.Ext()
	if ct, ok := contentTypes[ext]; ok && ext != ".m3u8" {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return normalizeMIME(ct)
	}
	for kind, exts := range kindExtensions {
		if _, ok := exts[ext]; ok {
			return string(kind) + "/" + strings.TrimPrefix(ext, ".")
		}
	}
	return "application/octet-stream"
}

// KindForPath infers the media kind from a file extension.
func KindForPath(path string) (Kind, bool) {
	ext := Source{Path: path}.Ext()
	for kind, exts := range kindExtensions {
		if _, ok := exts[ext]; ok {
			return kind, true
		}
	}
	return "", false
}

func normalizeMIME(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if parsed, _, err := mime.ParseMediaType(value); err == nil {
		return strings.ToLower(parsed)
	}
	return strings.ToLower(value)
}
