// Package catalog turns raw source metadata into the ordered program
// material a channel schedule is built from: filtering, sorting, mixing,
// publicity interleaving, and TTL caching of resolved video lists.
package catalog

import (
	"context"

	"github.com/pseudotv/pseudotv/internal/models"
)

// MetadataProvider resolves a source catalog URL into a list of video
// descriptors. Implementations perform network I/O and are expected to be
// safe for concurrent use.
type MetadataProvider interface {
	// Videos returns up to max descriptors for the given source URL,
	// newest first.
	Videos(ctx context.Context, sourceURL string, max int) ([]models.VideoDescriptor, error)
}

// MetadataProviderFunc adapts a function to the MetadataProvider interface.
type MetadataProviderFunc func(ctx context.Context, sourceURL string, max int) ([]models.VideoDescriptor, error)

// Videos implements MetadataProvider.
func (f MetadataProviderFunc) Videos(ctx context.Context, sourceURL string, max int) ([]models.VideoDescriptor, error) {
	return f(ctx, sourceURL, max)
}
