package transcoder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/pseudotv/pseudotv/internal/config"
	"github.com/pseudotv/pseudotv/internal/models"
)

// URLResolver resolves a video descriptor into a directly streamable URL at
// the requested quality.
type URLResolver interface {
	ResolveURL(ctx context.Context, video models.VideoDescriptor, quality string) (string, error)
}

// MediaProvider opens transcoded MPEG-TS media streams for schedule entries.
// It implements the stream package's MediaProvider contract: resolve the
// direct media URL, then remux it through ffmpeg seeked to the requested
// offset.
type MediaProvider struct {
	resolver URLResolver
	binary   string
	profile  config.OutputProfile
	logger   *slog.Logger
}

// NewMediaProvider creates a media provider bound to one channel's output
// profile.
func NewMediaProvider(resolver URLResolver, binary string, profile config.OutputProfile, logger *slog.Logger) *MediaProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &MediaProvider{resolver: resolver, binary: binary, profile: profile, logger: logger}
}

// Open resolves the video's direct URL and starts an ffmpeg remux seeked to
// offset, returning its MPEG-TS output stream.
func (p *MediaProvider) Open(ctx context.Context, video models.VideoDescriptor, quality string, offset time.Duration) (io.ReadCloser, error) {
	url, err := p.resolver.ResolveURL(ctx, video, quality)
	if err != nil {
		return nil, fmt.Errorf("resolving media URL for %q: %w", video.ID, err)
	}

	p.logger.Debug("starting transcode",
		slog.String("video_id", video.ID),
		slog.Duration("offset", offset),
		slog.String("resolution", p.profile.Resolution))

	return NewCommand(p.binary).
		Seek(offset).
		Input(url).
		Profile(p.profile).
		Start(ctx)
}
