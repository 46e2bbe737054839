package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/pseudotv/pseudotv/internal/catalog"
	"github.com/pseudotv/pseudotv/internal/config"
	"github.com/pseudotv/pseudotv/internal/models"
)

// Builder generates schedules from channel configuration and resolved
// catalog metadata. It is safe for concurrent use across channels; the
// Registry serializes refreshes of the same channel.
type Builder struct {
	cfg      *config.Config
	provider catalog.MetadataProvider
	cache    *catalog.Cache
	logger   *slog.Logger

	// newRand supplies a fresh random source per generation pass so
	// concurrent refreshes never share one and tests can inject a seed.
	newRand func() *rand.Rand
}

// NewBuilder creates a schedule builder.
func NewBuilder(cfg *config.Config, provider catalog.MetadataProvider, cache *catalog.Cache, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		cfg:      cfg,
		provider: provider,
		cache:    cache,
		logger:   logger,
		newRand: func() *rand.Rand {
			return rand.New(rand.NewSource(time.Now().UnixNano()))
		},
	}
}

// WithRandSource overrides the random source factory. Intended for tests.
func (b *Builder) WithRandSource(newRand func() *rand.Rand) *Builder {
	b.newRand = newRand
	return b
}

// Rebuild discards any prior schedule for the channel and generates a fresh
// one covering [now, now + horizon].
func (b *Builder) Rebuild(ctx context.Context, ch *config.ChannelConfig, now time.Time) (*Schedule, error) {
	entries, err := b.generate(ctx, ch, now, b.horizonEnd(now), nil, 0)
	if err != nil {
		return nil, err
	}
	return &Schedule{ChannelID: ch.ID, Entries: entries, GeneratedAt: now}, nil
}

// Roll preserves, verbatim and by identity, every entry of prev still airing
// or yet to air at now, then appends newly generated entries after the
// preserved tail until the horizon is covered. Videos already committed in
// the tail are not scheduled a second time, unless excluding them would
// leave nothing to schedule.
func (b *Builder) Roll(ctx context.Context, ch *config.ChannelConfig, prev *Schedule, now time.Time) (*Schedule, error) {
	if prev == nil || len(prev.Entries) == 0 {
		return b.Rebuild(ctx, ch, now)
	}

	tail := prev.futureTail(now)

	cursor := now
	if len(tail) > 0 {
		cursor = tail[len(tail)-1].End
	}

	exclude := make(map[string]bool, len(tail))
	for _, e := range tail {
		exclude[e.Video.ID] = true
	}

	entries, err := b.generate(ctx, ch, cursor, b.horizonEnd(now), exclude, countSinceLastPublicity(tail))
	if err != nil {
		return nil, err
	}

	merged := make([]Entry, 0, len(tail)+len(entries))
	merged = append(merged, tail...)
	merged = append(merged, entries...)
	if len(merged) == 0 {
		return nil, fmt.Errorf("channel %q: %w", ch.ID, ErrSourceExhausted)
	}

	return &Schedule{ChannelID: ch.ID, Entries: merged, GeneratedAt: now}, nil
}

func (b *Builder) horizonEnd(now time.Time) time.Time {
	return now.Add(time.Duration(b.cfg.EPG.HorizonDays) * 24 * time.Hour)
}

// generate produces timestamped entries from startCursor until horizonEnd,
// cycling the program material as often as needed. startCount seeds the
// publicity cadence counter.
func (b *Builder) generate(ctx context.Context, ch *config.ChannelConfig, startCursor, horizonEnd time.Time, exclude map[string]bool, startCount int) ([]Entry, error) {
	rnd := b.newRand()

	regular, err := b.channelMaterial(ctx, ch, rnd)
	if err != nil {
		return nil, err
	}

	if len(exclude) > 0 {
		filtered := regular[:0:0]
		for _, v := range regular {
			if !exclude[v.ID] {
				filtered = append(filtered, v)
			}
		}
		// When the preserved tail already committed every available video,
		// a small catalog cycles again instead of starving the channel.
		if len(filtered) > 0 {
			regular = filtered
		}
	}

	if len(regular) == 0 {
		return nil, fmt.Errorf("channel %q: %w", ch.ID, ErrSourceExhausted)
	}

	totalSeconds := 0
	for _, v := range regular {
		totalSeconds += v.Duration
	}
	if totalSeconds == 0 {
		return nil, fmt.Errorf("channel %q: %w", ch.ID, ErrSourceExhausted)
	}

	pool, err := b.poolMaterial(ctx, ch, rnd)
	if err != nil {
		// A broken publicity pool degrades to no interstitials rather than
		// failing the channel.
		b.logger.Warn("publicity pool resolution failed",
			slog.String("channel", ch.ID),
			slog.String("pool", ch.PublicityPool),
			slog.Any("error", err))
		pool = nil
	}

	var entries []Entry
	cursor := startCursor
	count := startCount

	for cursor.Before(horizonEnd) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var programs []catalog.Program
		programs, count = catalog.InterleavePublicity(regular, pool, ch.ProgramsPerPublicity, count, rnd)

		for _, p := range programs {
			if p.Video.Duration <= 0 {
				continue
			}
			end := cursor.Add(p.Video.DurationTime())
			entries = append(entries, Entry{
				Kind:  p.Kind,
				Video: p.Video,
				Start: cursor,
				End:   end,
			})
			cursor = end
		}
	}

	return entries, nil
}

// channelMaterial resolves, filters and mixes the channel's per-source
// lists.
func (b *Builder) channelMaterial(ctx context.Context, ch *config.ChannelConfig, rnd *rand.Rand) ([]models.VideoDescriptor, error) {
	opts, err := catalog.ChannelFilterOptions(ch, time.Now(), rnd)
	if err != nil {
		return nil, fmt.Errorf("channel %q: %w", ch.ID, err)
	}

	ttl := ch.CacheTTL(b.cfg.Cache)
	lists := make([][]models.VideoDescriptor, 0, len(ch.Sources))
	for _, src := range ch.Sources {
		src := src
		// Cache scope includes the channel: per-channel caps and TTLs may
		// differ for the same underlying source.
		key := "channel:" + ch.ID + "|" + src
		videos, fromCache, err := b.cache.Get(ctx, key, ttl, func(ctx context.Context) ([]models.VideoDescriptor, error) {
			return b.provider.Videos(ctx, src, ch.MaxVideosPerSource)
		})
		if err != nil {
			b.logger.Warn("source fetch failed",
				slog.String("channel", ch.ID),
				slog.String("source", src),
				slog.Any("error", err))
			continue
		}
		b.logger.Debug("source resolved",
			slog.String("channel", ch.ID),
			slog.String("source", src),
			slog.Int("videos", len(videos)),
			slog.Bool("from_cache", fromCache))
		lists = append(lists, catalog.Filter(videos, opts))
	}

	return catalog.Mix(lists, ch.MixingAlgorithm), nil
}

// poolMaterial resolves the channel's publicity pool with the pool's own
// filters. Returns nil when no pool is configured.
func (b *Builder) poolMaterial(ctx context.Context, ch *config.ChannelConfig, rnd *rand.Rand) ([]models.VideoDescriptor, error) {
	pool := b.cfg.Pool(ch)
	if pool == nil || ch.ProgramsPerPublicity <= 0 {
		return nil, nil
	}

	opts := catalog.PoolFilterOptions(pool, rnd)
	ttl := pool.CacheTTL(b.cfg.Cache)

	var videos []models.VideoDescriptor
	for _, src := range pool.Sources {
		src := src
		key := "pool:" + ch.PublicityPool + "|" + src
		list, _, err := b.cache.Get(ctx, key, ttl, func(ctx context.Context) ([]models.VideoDescriptor, error) {
			return b.provider.Videos(ctx, src, pool.MaxVideosPerSource)
		})
		if err != nil {
			return nil, fmt.Errorf("pool source %q: %w", src, err)
		}
		videos = append(videos, list...)
	}

	return catalog.Filter(videos, opts), nil
}
