package hls

import (
	"fmt"
	"path/filepath"
)

// RenditionOutput is one packaged rung: its playlist and segment files.
type RenditionOutput struct {
	Rendition    Rendition
	PlaylistPath string
	PlaylistText string
	Segments     []string
}

// Bundle is the complete local output of a packaging run.
type Bundle struct {
	Dir        string
	Master     string
	Renditions []RenditionOutput
}

// File is one bundle artifact addressed by its name relative to the bundle.
type File struct {
	Name string
	Path string
}

// Validate checks that the master references every playlist exactly once in
// ladder order and that every playlist segment exists among its files.
func (b *Bundle) Validate() error {
	variants, err := ParseMaster(b.Master)
	if err != nil {
		return err
	}
	if len(variants) != len(b.Renditions) {
		return fmt.Errorf("hls: master lists %d variants for %d renditions", len(variants), len(b.Renditions))
	}
	seen := make(map[string]struct{}, len(variants))
	for i, variant := range variants {
		out := b.Renditions[i]
		if variant.URI != out.Rendition.PlaylistName() {
			return fmt.Errorf("hls: variant %d references %q, want %q", i, variant.URI, out.Rendition.PlaylistName())
		}
		if _, dup := seen[variant.URI]; dup {
			return fmt.Errorf("hls: playlist %q referenced twice", variant.URI)
		}
		seen[variant.URI] = struct{}{}
		if i > 0 && variant.Bandwidth <= variants[i-1].Bandwidth {
			return fmt.Errorf("hls: variant %q out of ascending order", variant.URI)
		}

		playlist, err := ParseMediaPlaylist(out.PlaylistText)
		if err != nil {
			return fmt.Errorf("hls: %s: %w", out.Rendition.Name, err)
		}
		if len(playlist.Segments) == 0 {
			return fmt.Errorf("hls: %s has no segments", out.Rendition.Name)
		}
		files := make(map[string]struct{}, len(out.Segments))
		for _, path := range out.Segments {
			files[filepath.Base(path)] = struct{}{}
		}
		for _, seg := range playlist.Segments {
			if _, ok := files[seg.URI]; !ok {
				return fmt.Errorf("hls: %s references missing segment %q", out.Rendition.Name, seg.URI)
			}
		}
	}
	return nil
}

// Files lists every artifact with the master last, so a published master
// never points at playlists that are not uploaded yet.
func (b *Bundle) Files() []File {
	var files []File
	for _, out := range b.Renditions {
		for _, seg := range out.Segments {
			files = append(files, File{Name: filepath.Base(seg), Path: seg})
		}
		files = append(files, File{Name: out.Rendition.PlaylistName(), Path: out.PlaylistPath})
	}
	files = append(files, File{Name: MasterName, Path: filepath.Join(b.Dir, MasterName)})
	return files
}
