package hls

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"sermoncast/internal/logging"
	"sermoncast/internal/media"
	"sermoncast/internal/services"
)

// Encoder produces one rendition's playlist and segments inside dir and
// returns the playlist path.
type Encoder interface {
	EncodeRendition(ctx context.Context, src media.Source, r Rendition, dir string, progress media.ProgressFunc) (string, error)
}

// Packager turns a source video into the full adaptive ladder.
type Packager struct {
	encoder Encoder
	logger  *slog.Logger
}

// NewPackager constructs a packager backed by encoder.
func NewPackager(encoder Encoder, logger *slog.Logger) *Packager {
	return &Packager{encoder: encoder, logger: logging.NewComponentLogger(logger, "hls")}
}

// Package encodes every rung in ascending order into dir and writes the
// master manifest. Any rung failure fails the whole package.
func (p *Packager) Package(ctx context.Context, src media.Source, dir string, progress media.ProgressFunc) (*Bundle, error) {
	if p.encoder == nil {
		return nil, services.Wrap(services.ErrEngineLoad, "package_hls", "encoder", "no encoder configured", nil)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create hls dir: %w", err)
	}

	rungs := Ladder()
	bundle := &Bundle{Dir: dir}
	report := func(done int, sub int) {
		if progress == nil {
			return
		}
		progress((done*100 + sub) / len(rungs))
	}

	for i, r := range rungs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		logger := logging.WithContext(ctx, p.logger)
		logger.Debug("encoding rendition",
			logging.String("rendition", r.Name),
			logging.Int("bitrate_kbps", r.BitrateKbps),
		)
		playlistPath, err := p.encoder.EncodeRendition(ctx, src, r, dir, func(sub int) {
			report(i, clampPercent(sub))
		})
		if err != nil {
			if errors.Is(err, services.ErrEngineLoad) || errors.Is(err, services.ErrEncode) {
				return nil, err
			}
			return nil, services.Wrap(services.ErrEncode, "package_hls", r.Name, "encode rendition", err)
		}
		out, err := collectRendition(r, playlistPath)
		if err != nil {
			return nil, services.Wrap(services.ErrEncode, "package_hls", r.Name, "collect rendition", err)
		}
		bundle.Renditions = append(bundle.Renditions, out)
		report(i+1, 0)
	}

	bundle.Master = BuildMaster(rungs)
	if err := os.WriteFile(filepath.Join(dir, MasterName), []byte(bundle.Master), 0o644); err != nil {
		return nil, fmt.Errorf("write master manifest: %w", err)
	}
	if err := bundle.Validate(); err != nil {
		return nil, services.Wrap(services.ErrEncode, "package_hls", "validate", "", err)
	}
	p.logger.Info("hls ladder packaged",
		logging.Int("renditions", len(bundle.Renditions)),
		logging.String("dir", dir),
	)
	return bundle, nil
}

func collectRendition(r Rendition, playlistPath string) (RenditionOutput, error) {
	data, err := os.ReadFile(playlistPath)
	if err != nil {
		return RenditionOutput{}, fmt.Errorf("read playlist: %w", err)
	}
	playlist, err := ParseMediaPlaylist(string(data))
	if err != nil {
		return RenditionOutput{}, err
	}
	if len(playlist.Segments) == 0 {
		return RenditionOutput{}, errors.New("playlist has no segments")
	}
	dir := filepath.Dir(playlistPath)
	segments := make([]string, 0, len(playlist.Segments))
	for _, seg := range playlist.Segments {
		path := filepath.Join(dir, seg.URI)
		if _, err := os.Stat(path); err != nil {
			return RenditionOutput{}, fmt.Errorf("segment %s: %w", seg.URI, err)
		}
		segments = append(segments, path)
	}
	return RenditionOutput{
		Rendition:    r,
		PlaylistPath: playlistPath,
		PlaylistText: string(data),
		Segments:     segments,
	}, nil
}

func clampPercent(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
