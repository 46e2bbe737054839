package cmd

import (
	"log/slog"
	"time"

	"github.com/pseudotv/pseudotv/internal/catalog"
	"github.com/pseudotv/pseudotv/internal/config"
	"github.com/pseudotv/pseudotv/internal/epg"
	"github.com/pseudotv/pseudotv/internal/observability"
	"github.com/pseudotv/pseudotv/internal/refresher"
	"github.com/pseudotv/pseudotv/internal/schedule"
	"github.com/pseudotv/pseudotv/internal/ytdlp"
)

// app bundles the wired core components shared by the CLI commands.
type app struct {
	cfg       *config.Config
	registry  *schedule.Registry
	refresher *refresher.Service
	ytdlp     *ytdlp.Client
	logger    *slog.Logger
}

// newApp wires the core: the yt-dlp metadata provider behind the TTL cache,
// the schedule builder and registry, the EPG exporter, and the refresh
// service.
func newApp(cfg *config.Config) *app {
	logger := slog.Default()

	client := ytdlp.NewClient(cfg.Binaries.Ytdlp, observability.WithComponent(logger, "ytdlp"))
	cache := catalog.NewCache()
	registry := schedule.NewRegistry()

	builder := schedule.NewBuilder(cfg, client, cache, observability.WithComponent(logger, "builder"))
	exporter := epg.NewExporter(cfg, registry, observability.WithComponent(logger, "epg"))
	svc := refresher.NewService(cfg, builder, registry, exporter, observability.WithComponent(logger, "refresher"))

	return &app{
		cfg:       cfg,
		registry:  registry,
		refresher: svc,
		ytdlp:     client,
		logger:    logger,
	}
}

// primeFromEPGFile restores future programmes from a previously written EPG
// file so roll refreshes keep their published commitments across restarts.
// A missing or unreadable file is not an error; schedules regenerate from
// scratch.
func (a *app) primeFromEPGFile(now time.Time) error {
	return epg.ImportFile(a.cfg.EPG.OutputFile, a.registry, now, observability.WithComponent(a.logger, "epg"))
}
