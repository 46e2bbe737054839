// Package stream assembles a continuous broadcast byte stream for one
// channel by resolving the airing program, opening its media, and piping it
// to an output sink until cancelled.
package stream

import (
	"context"
	"io"
	"time"

	"github.com/pseudotv/pseudotv/internal/models"
)

// MediaProvider resolves a video descriptor into a readable byte stream
// positioned at the requested offset. Implementations perform network I/O.
type MediaProvider interface {
	// Open returns a media stream for the video at the given quality
	// selector, seeked to offset. The stream signals end-of-media with
	// io.EOF.
	Open(ctx context.Context, video models.VideoDescriptor, quality string, offset time.Duration) (io.ReadCloser, error)
}

// MediaProviderFunc adapts a function to the MediaProvider interface.
type MediaProviderFunc func(ctx context.Context, video models.VideoDescriptor, quality string, offset time.Duration) (io.ReadCloser, error)

// Open implements MediaProvider.
func (f MediaProviderFunc) Open(ctx context.Context, video models.VideoDescriptor, quality string, offset time.Duration) (io.ReadCloser, error) {
	return f(ctx, video, quality, offset)
}
