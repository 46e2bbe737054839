package stream

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pseudotv/pseudotv/internal/config"
	"github.com/pseudotv/pseudotv/internal/models"
	"github.com/pseudotv/pseudotv/internal/schedule"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testChannel() *config.ChannelConfig {
	return &config.ChannelConfig{ID: "test", Name: "Test", Quality: "best"}
}

// fixedSchedule builds n contiguous 10-second entries starting at epoch.
func fixedSchedule(n int) *schedule.Schedule {
	entries := make([]schedule.Entry, 0, n)
	cursor := epoch
	for i := 0; i < n; i++ {
		end := cursor.Add(10 * time.Second)
		entries = append(entries, schedule.Entry{
			Kind:  models.KindRegular,
			Video: models.VideoDescriptor{ID: string(rune('1' + i)), Duration: 10},
			Start: cursor,
			End:   end,
		})
		cursor = end
	}
	return &schedule.Schedule{ChannelID: "test", Entries: entries, GeneratedAt: epoch}
}

// cancelOnRefresh cancels the session when the schedule runs out, so tests
// terminate at the first exhaustion instead of waiting out the retry loop.
func cancelOnRefresh(cancel context.CancelFunc) RefreshFunc {
	return func(context.Context, string) error {
		cancel()
		return nil
	}
}

func TestRunStreamsEntriesInOrder(t *testing.T) {
	registry := schedule.NewRegistry()
	registry.Set(fixedSchedule(3))

	media := MediaProviderFunc(func(_ context.Context, video models.VideoDescriptor, _ string, _ time.Duration) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(video.ID)), nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := NewAssembler(testChannel(), registry, media, cancelOnRefresh(cancel), discardLogger()).
		WithClock(func() time.Time { return epoch })

	var out bytes.Buffer
	err := a.Run(ctx, &out)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "123", out.String())
}

func TestRunSkipsUnopenableEntries(t *testing.T) {
	registry := schedule.NewRegistry()
	registry.Set(fixedSchedule(5))

	media := MediaProviderFunc(func(_ context.Context, video models.VideoDescriptor, _ string, _ time.Duration) (io.ReadCloser, error) {
		if video.ID == "3" {
			return nil, errors.New("media unavailable")
		}
		return io.NopCloser(strings.NewReader(video.ID)), nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := NewAssembler(testChannel(), registry, media, cancelOnRefresh(cancel), discardLogger()).
		WithClock(func() time.Time { return epoch })

	var out bytes.Buffer
	err := a.Run(ctx, &out)

	// The broken entry is skipped; everything around it still airs.
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "1245", out.String())
}

func TestRunSkipsEntryOnMidStreamReadFailure(t *testing.T) {
	registry := schedule.NewRegistry()
	registry.Set(fixedSchedule(2))

	media := MediaProviderFunc(func(_ context.Context, video models.VideoDescriptor, _ string, _ time.Duration) (io.ReadCloser, error) {
		if video.ID == "1" {
			return io.NopCloser(io.MultiReader(
				strings.NewReader("partial"),
				&failingReader{},
			)), nil
		}
		return io.NopCloser(strings.NewReader(video.ID)), nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := NewAssembler(testChannel(), registry, media, cancelOnRefresh(cancel), discardLogger()).
		WithClock(func() time.Time { return epoch })

	var out bytes.Buffer
	err := a.Run(ctx, &out)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "partial2", out.String())
}

func TestRunOpensMidEntryAtOffset(t *testing.T) {
	registry := schedule.NewRegistry()
	registry.Set(fixedSchedule(1))

	var mu sync.Mutex
	var offsets []time.Duration
	media := MediaProviderFunc(func(_ context.Context, _ models.VideoDescriptor, _ string, offset time.Duration) (io.ReadCloser, error) {
		mu.Lock()
		offsets = append(offsets, offset)
		mu.Unlock()
		return io.NopCloser(strings.NewReader("x")), nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Join 4 seconds into the only entry.
	a := NewAssembler(testChannel(), registry, media, cancelOnRefresh(cancel), discardLogger()).
		WithClock(func() time.Time { return epoch.Add(4 * time.Second) })

	var out bytes.Buffer
	_ = a.Run(ctx, &out)

	require.NotEmpty(t, offsets)
	assert.Equal(t, 4*time.Second, offsets[0])
}

func TestRunSinkFailureIsFatal(t *testing.T) {
	registry := schedule.NewRegistry()
	registry.Set(fixedSchedule(3))

	media := MediaProviderFunc(func(_ context.Context, video models.VideoDescriptor, _ string, _ time.Duration) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(video.ID)), nil
	})

	a := NewAssembler(testChannel(), registry, media, nil, discardLogger()).
		WithClock(func() time.Time { return epoch })

	err := a.Run(context.Background(), &brokenWriter{})
	assert.ErrorIs(t, err, ErrSink)
}

func TestRunRequestsRefreshWhenNoSchedule(t *testing.T) {
	registry := schedule.NewRegistry()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	refreshed := false
	refresh := func(context.Context, string) error {
		refreshed = true
		cancel()
		return nil
	}

	media := MediaProviderFunc(func(context.Context, models.VideoDescriptor, string, time.Duration) (io.ReadCloser, error) {
		return nil, errors.New("should not be called")
	})

	a := NewAssembler(testChannel(), registry, media, refresh, discardLogger()).
		WithClock(func() time.Time { return epoch })

	err := a.Run(ctx, io.Discard)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, refreshed)
}

func TestRunCancelledBeforeStart(t *testing.T) {
	registry := schedule.NewRegistry()
	registry.Set(fixedSchedule(1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	media := MediaProviderFunc(func(context.Context, models.VideoDescriptor, string, time.Duration) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader("x")), nil
	})

	a := NewAssembler(testChannel(), registry, media, nil, discardLogger())
	err := a.Run(ctx, io.Discard)
	assert.ErrorIs(t, err, context.Canceled)
}

type failingReader struct{}

func (*failingReader) Read([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

type brokenWriter struct{}

func (*brokenWriter) Write(p []byte) (int, error) {
	return 0, errors.New("client went away")
}
