package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/pseudotv/pseudotv/internal/config"
	"github.com/pseudotv/pseudotv/internal/schedule"
)

// Sentinel errors surfaced by a streaming session.
var (
	// ErrSink reports a broken output sink. Fatal to the session only.
	ErrSink = errors.New("output sink failed")
)

const (
	// copyChunkSize bounds each sink write so cancellation is checked at a
	// steady cadence even on fast sources.
	copyChunkSize = 64 * 1024

	// exhaustedRetryDelay paces retries while waiting for an overdue
	// refresh to restore the schedule.
	exhaustedRetryDelay = 2 * time.Second

	// maxExhaustedRetries bounds how long a session waits on an exhausted
	// schedule before giving up.
	maxExhaustedRetries = 5
)

// RefreshFunc triggers an on-demand refresh for a channel whose schedule ran
// out mid-stream.
type RefreshFunc func(ctx context.Context, channelID string) error

// Assembler drives one continuous streaming session for a channel. It
// re-resolves the airing entry against the wall clock at every transition,
// so a session self-corrects if playback fell behind, and skips entries
// whose media cannot be resolved without ever stalling the output.
type Assembler struct {
	channel  *config.ChannelConfig
	registry *schedule.Registry
	media    MediaProvider
	refresh  RefreshFunc
	logger   *slog.Logger

	// now is injectable for tests.
	now func() time.Time
}

// NewAssembler creates a streaming session assembler for the channel.
// refresh may be nil when no on-demand regeneration is available.
func NewAssembler(channel *config.ChannelConfig, registry *schedule.Registry, media MediaProvider, refresh RefreshFunc, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{
		channel:  channel,
		registry: registry,
		media:    media,
		refresh:  refresh,
		logger:   logger.With(slog.String("channel", channel.ID)),
		now:      time.Now,
	}
}

// WithClock overrides the assembler's clock. Intended for tests.
func (a *Assembler) WithClock(now func() time.Time) *Assembler {
	a.now = now
	return a
}

// Run streams the channel into out until ctx is cancelled or a fatal error
// occurs. Media resolution failures skip the affected entry; only sink
// failures and an unrecoverable schedule end the session.
func (a *Assembler) Run(ctx context.Context, out io.Writer) error {
	a.logger.Info("streaming session started")
	defer a.logger.Info("streaming session stopped")

	// cursor tracks how far the session has played. When a skipped or
	// short entry puts playback ahead of the wall clock, the next entry is
	// resolved at the cursor instead so nothing replays.
	var cursor time.Time
	exhaustedRetries := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		resolveAt := a.now()
		if cursor.After(resolveAt) {
			resolveAt = cursor
		}

		entry, offset, err := a.registry.Resolve(a.channel.ID, resolveAt)
		if err != nil {
			if !errors.Is(err, schedule.ErrScheduleExhausted) && !errors.Is(err, schedule.ErrNoSchedule) {
				return fmt.Errorf("resolving position: %w", err)
			}
			if exhaustedRetries >= maxExhaustedRetries {
				return fmt.Errorf("channel %q: %w", a.channel.ID, err)
			}
			exhaustedRetries++
			if rerr := a.requestRefresh(ctx); rerr != nil {
				a.logger.Warn("on-demand refresh failed", slog.Any("error", rerr))
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(exhaustedRetryDelay):
			}
			continue
		}
		exhaustedRetries = 0

		if err := a.streamEntry(ctx, entry, offset, out); err != nil {
			if errors.Is(err, ErrSink) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			// Media failure: skip this entry so one unavailable source
			// never stalls the channel.
			a.logger.Warn("skipping entry after media failure",
				slog.String("video_id", entry.Video.ID),
				slog.String("title", entry.Video.Title),
				slog.Any("error", err))
		}

		cursor = entry.End
	}
}

// streamEntry opens the entry's media at the given offset and pipes it to
// out until end-of-media. Cancellation is checked at every write.
func (a *Assembler) streamEntry(ctx context.Context, entry schedule.Entry, offset time.Duration, out io.Writer) error {
	a.logger.Info("streaming entry",
		slog.String("video_id", entry.Video.ID),
		slog.String("title", entry.Video.Title),
		slog.String("kind", string(entry.Kind)),
		slog.Duration("offset", offset))

	handle, err := a.media.Open(ctx, entry.Video, a.channel.Quality, offset)
	if err != nil {
		return fmt.Errorf("opening media for %q: %w", entry.Video.ID, err)
	}
	defer handle.Close()

	buf := make([]byte, copyChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, rerr := handle.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return fmt.Errorf("%w: %v", ErrSink, werr)
			}
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			// A mid-stream read failure ends this entry; the session
			// transitions to the next one rather than failing.
			return fmt.Errorf("reading media for %q: %w", entry.Video.ID, rerr)
		}
	}
}

func (a *Assembler) requestRefresh(ctx context.Context) error {
	if a.refresh == nil {
		return nil
	}
	a.logger.Info("schedule exhausted, requesting on-demand refresh")
	return a.refresh(ctx, a.channel.ID)
}
