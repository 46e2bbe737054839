package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pseudotv/pseudotv/internal/http"
	"github.com/pseudotv/pseudotv/internal/observability"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server and background schedule refresher",
	Long: `Serve exposes the XMLTV guide at /epg.xml, the channel lineup at /m3u,
and a continuous MPEG-TS stream per channel at /stream/{channelID}. Schedules
are restored from the existing EPG file when present, regenerated otherwise,
and kept fresh by the background refresher.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	a := newApp(cfg)
	ctx := cmd.Context()

	// Restore future programmes from a previous run so clients keep seeing
	// the guide they were promised.
	if err := a.primeFromEPGFile(time.Now()); err != nil {
		a.logger.Warn("could not restore schedules from EPG file", slog.Any("error", err))
	}

	// The first generation runs synchronously so the guide and streams are
	// usable as soon as the server accepts connections.
	if err := a.refresher.RefreshAll(ctx); err != nil {
		a.logger.Error("initial schedule generation finished with errors", slog.Any("error", err))
	}

	if err := a.refresher.Start(ctx); err != nil {
		return err
	}
	defer a.refresher.Stop()

	server := http.NewServer(cfg, a.registry, a.ytdlp, a.refresher.RefreshChannel,
		observability.WithComponent(a.logger, "http"))

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		a.logger.Info("received shutdown signal", slog.String("signal", sig.String()))
	}

	return server.Shutdown(context.Background())
}
