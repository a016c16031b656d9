package blob

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"sermoncast/internal/media"
)

var assetIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// ValidateAssetID rejects identifiers that cannot form a single path element.
func ValidateAssetID(id string) error {
	if !assetIDPattern.MatchString(id) || strings.Contains(id, "..") {
		return fmt.Errorf("asset id %q must be 1-128 characters of letters, digits, '.', '_' or '-'", id)
	}
	return nil
}

// Paths builds the canonical storage keys for an asset. Keys depend only on
// the asset id, so reprocessing overwrites the previous artifacts.
type Paths struct {
	Root string
}

// NewPaths returns key builders rooted at root (default "sermons").
func NewPaths(root string) Paths {
	root = strings.Trim(strings.TrimSpace(root), "/")
	if root == "" {
		root = "sermons"
	}
	return Paths{Root: root}
}

// VideoMP4 is the compatibility MP4 key.
func (p Paths) VideoMP4(id string) string {
	return path.Join(p.Root, "video", id+".mp4")
}

// HLSDir is the directory holding the master manifest, playlists and segments.
func (p Paths) HLSDir(id string) string {
	return path.Join(p.Root, "video", id)
}

// HLSFile is the key of one HLS artifact.
func (p Paths) HLSFile(id, name string) string {
	return path.Join(p.HLSDir(id), name)
}

// AudioMP3 is the MP3 key.
func (p Paths) AudioMP3(id string) string {
	return path.Join(p.Root, "audio", id+".mp3")
}

// Thumbnail is the JPEG thumbnail key.
func (p Paths) Thumbnail(id string) string {
	return path.Join(p.Root, "thumbnails", id+".jpg")
}

// Waveform is the waveform PNG key.
func (p Paths) Waveform(id string) string {
	return path.Join(p.Root, "audio", id+"_waveform.png")
}

// RawOriginal is where the untouched upload lands when the engine is unavailable.
func (p Paths) RawOriginal(kind media.Kind, id, ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return path.Join(p.Root, string(kind), id+"_original"+ext)
}
