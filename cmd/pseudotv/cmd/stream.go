package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pseudotv/pseudotv/internal/observability"
	"github.com/pseudotv/pseudotv/internal/stream"
	"github.com/pseudotv/pseudotv/internal/transcoder"
)

var streamCmd = &cobra.Command{
	Use:   "stream <channel-id>",
	Short: "Stream a channel as MPEG-TS to stdout",
	Long: `Stream writes the channel's continuous MPEG-TS output to stdout,
joining whatever is currently airing mid-program. Pipe it into a player:

  pseudotv stream news | mpv -`,
	Args: cobra.ExactArgs(1),
	RunE: runStream,
}

func init() {
	rootCmd.AddCommand(streamCmd)
}

func runStream(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ch := cfg.Channel(args[0])
	if ch == nil {
		return fmt.Errorf("unknown channel %q", args[0])
	}

	a := newApp(cfg)
	ctx := cmd.Context()

	if err := a.primeFromEPGFile(time.Now()); err != nil {
		a.logger.Warn("could not restore schedules from EPG file", slog.Any("error", err))
	}

	// Make sure this channel has a usable schedule before the first byte.
	if a.registry.Get(ch.ID) == nil {
		if err := a.refresher.RefreshChannel(ctx, ch.ID); err != nil {
			return err
		}
	}

	media := transcoder.NewMediaProvider(a.ytdlp, cfg.Binaries.FFmpeg, ch.Output,
		observability.WithComponent(a.logger, "transcoder"))
	assembler := stream.NewAssembler(ch, a.registry, media, a.refresher.RefreshChannel,
		observability.WithComponent(a.logger, "assembler"))

	return assembler.Run(ctx, os.Stdout)
}
