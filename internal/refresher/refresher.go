// Package refresher owns schedule regeneration: the background fleet
// refresh loop, on-demand single-channel refreshes, and EPG export after
// every successful pass.
package refresher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pseudotv/pseudotv/internal/config"
	"github.com/pseudotv/pseudotv/internal/epg"
	"github.com/pseudotv/pseudotv/internal/schedule"
)

// Service coordinates schedule refreshes across the channel fleet.
// Refreshes of different channels run concurrently; refreshes of the same
// channel serialize through the registry's per-channel lock. Readers are
// never blocked: each refresh swaps in a new snapshot atomically.
type Service struct {
	cfg      *config.Config
	builder  *schedule.Builder
	registry *schedule.Registry
	exporter *epg.Exporter
	logger   *slog.Logger

	parser cron.Parser

	// now is injectable for tests.
	now func() time.Time

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService creates a refresh service.
func NewService(cfg *config.Config, builder *schedule.Builder, registry *schedule.Registry, exporter *epg.Exporter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:      cfg,
		builder:  builder,
		registry: registry,
		exporter: exporter,
		logger:   logger,
		parser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		now:      time.Now,
	}
}

// WithClock overrides the service clock. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// RefreshChannel refreshes one channel per its configured strategy and, on
// success, swaps the new snapshot in and rewrites the EPG file. On failure
// the previous schedule is left untouched.
func (s *Service) RefreshChannel(ctx context.Context, channelID string) error {
	ch := s.cfg.Channel(channelID)
	if ch == nil {
		return fmt.Errorf("unknown channel %q", channelID)
	}

	if err := s.refreshOne(ctx, ch, s.now(), ch.RefreshStrategy); err != nil {
		return err
	}
	return s.export()
}

// RefreshAll refreshes every channel per its own strategy, concurrently.
// Per-channel failures never abort the rest of the fleet; the joined errors
// are returned after the EPG file is rewritten for whatever succeeded.
func (s *Service) RefreshAll(ctx context.Context) error {
	return s.refreshFleet(ctx, "")
}

// RebuildAll discards and regenerates every channel's schedule from now,
// regardless of configured strategy.
func (s *Service) RebuildAll(ctx context.Context) error {
	return s.refreshFleet(ctx, config.RefreshRebuild)
}

// refreshFleet refreshes all channels, forcing the given strategy when
// non-empty.
func (s *Service) refreshFleet(ctx context.Context, force config.RefreshStrategy) error {
	now := s.now()
	s.logger.Info("starting fleet refresh", slog.Int("channels", len(s.cfg.Channels)))

	var (
		wg    sync.WaitGroup
		errMu sync.Mutex
		errs  []error
	)

	for i := range s.cfg.Channels {
		ch := &s.cfg.Channels[i]
		strategy := ch.RefreshStrategy
		if force != "" {
			strategy = force
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.refreshOne(ctx, ch, now, strategy); err != nil {
				errMu.Lock()
				errs = append(errs, err)
				errMu.Unlock()
			}
		}()
	}
	wg.Wait()

	if err := s.export(); err != nil {
		errs = append(errs, err)
	}

	s.logger.Info("fleet refresh complete",
		slog.Int("channels", len(s.cfg.Channels)),
		slog.Int("failures", len(errs)))

	return errors.Join(errs...)
}

// refreshOne regenerates a single channel's schedule under its refresh
// lock. Failures leave the previous snapshot in place.
func (s *Service) refreshOne(ctx context.Context, ch *config.ChannelConfig, now time.Time, strategy config.RefreshStrategy) error {
	lock := s.registry.RefreshLock(ch.ID)
	lock.Lock()
	defer lock.Unlock()

	prev := s.registry.Get(ch.ID)

	var (
		next *schedule.Schedule
		err  error
	)
	switch strategy {
	case config.RefreshRebuild:
		next, err = s.builder.Rebuild(ctx, ch, now)
	default:
		next, err = s.builder.Roll(ctx, ch, prev, now)
	}
	if err != nil {
		s.logger.Error("channel refresh failed, keeping previous schedule",
			slog.String("channel", ch.ID),
			slog.String("strategy", string(strategy)),
			slog.Any("error", err))
		return fmt.Errorf("refreshing channel %q: %w", ch.ID, err)
	}

	s.registry.Set(next)
	s.logger.Info("channel schedule refreshed",
		slog.String("channel", ch.ID),
		slog.String("strategy", string(strategy)),
		slog.Int("entries", len(next.Entries)),
		slog.Time("horizon", next.Horizon()))

	return nil
}

func (s *Service) export() error {
	if s.exporter == nil {
		return nil
	}
	if err := s.exporter.ExportFile(); err != nil {
		return fmt.Errorf("exporting EPG: %w", err)
	}
	return nil
}

// Start begins the background refresh loop.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx != nil {
		return fmt.Errorf("refresher already started")
	}

	if s.cfg.EPG.RefreshCron != "" {
		if _, err := s.parser.Parse(s.cfg.EPG.RefreshCron); err != nil {
			return fmt.Errorf("invalid refresh_cron: %w", err)
		}
	}

	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.loop()

	s.logger.Info("refresher started",
		slog.Int("interval_hours", s.cfg.EPG.RefreshIntervalHours),
		slog.String("cron", s.cfg.EPG.RefreshCron))

	return nil
}

// Stop stops the background refresh loop and waits for it to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	s.wg.Wait()

	s.mu.Lock()
	s.ctx = nil
	s.cancel = nil
	s.mu.Unlock()

	s.logger.Info("refresher stopped")
}

// loop sleeps until the next refresh instant and runs a fleet refresh.
func (s *Service) loop() {
	defer s.wg.Done()

	for {
		wait := s.nextWait()
		select {
		case <-s.ctx.Done():
			return
		case <-time.After(wait):
		}

		if err := s.RefreshAll(s.ctx); err != nil {
			s.logger.Error("scheduled fleet refresh finished with errors", slog.Any("error", err))
		}
	}
}

// nextWait computes the sleep until the next refresh: the cron schedule when
// configured, otherwise the fixed interval.
func (s *Service) nextWait() time.Duration {
	now := s.now()
	if s.cfg.EPG.RefreshCron != "" {
		if sched, err := s.parser.Parse(s.cfg.EPG.RefreshCron); err == nil {
			return sched.Next(now).Sub(now)
		}
	}
	return time.Duration(s.cfg.EPG.RefreshIntervalHours) * time.Hour
}
