// Package epg exports the schedule registry as an XMLTV document and primes
// it back from one. The XMLTV file is the system's only durable state: a
// restart re-reads it so a roll refresh can preserve future programmes.
package epg

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pseudotv/pseudotv/internal/config"
	"github.com/pseudotv/pseudotv/internal/models"
	"github.com/pseudotv/pseudotv/internal/schedule"
	"github.com/pseudotv/pseudotv/pkg/xmltv"
)

// publicityCategory marks publicity entries in the exported document so the
// interleaver cadence can be reconstructed after a restart.
const publicityCategory = "Publicity"

// Exporter writes the current schedules of all configured channels to the
// XMLTV output file.
type Exporter struct {
	cfg      *config.Config
	registry *schedule.Registry
	logger   *slog.Logger
}

// NewExporter creates an EPG exporter.
func NewExporter(cfg *config.Config, registry *schedule.Registry, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{cfg: cfg, registry: registry, logger: logger}
}

// Export writes the XMLTV document for every configured channel to w.
func (e *Exporter) Export(w io.Writer) error {
	writer := xmltv.NewWriter(w)

	if err := writer.WriteHeader(); err != nil {
		return fmt.Errorf("writing XMLTV header: %w", err)
	}

	for i := range e.cfg.Channels {
		ch := &e.cfg.Channels[i]
		if err := writer.WriteChannel(&xmltv.Channel{ID: ch.ID, DisplayName: ch.Name}); err != nil {
			return fmt.Errorf("writing channel %s: %w", ch.ID, err)
		}
	}

	programCount := 0
	for i := range e.cfg.Channels {
		ch := &e.cfg.Channels[i]
		s := e.registry.Get(ch.ID)
		if s == nil {
			continue
		}
		for _, entry := range s.Entries {
			prog := programmeFromEntry(ch.ID, entry)
			if err := writer.WriteProgramme(prog); err != nil {
				return fmt.Errorf("writing programme %q: %w", entry.Video.Title, err)
			}
			programCount++
		}
	}

	if err := writer.WriteFooter(); err != nil {
		return fmt.Errorf("writing XMLTV footer: %w", err)
	}

	e.logger.Info("EPG exported",
		slog.Int("channel_count", len(e.cfg.Channels)),
		slog.Int("program_count", programCount))

	return nil
}

// ExportFile atomically writes the XMLTV document to the configured output
// path via a temp file rename.
func (e *Exporter) ExportFile() error {
	path := e.cfg.EPG.OutputFile

	tmp, err := os.CreateTemp(filepath.Dir(path), ".epg-*.xml")
	if err != nil {
		return fmt.Errorf("creating temp EPG file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := e.Export(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp EPG file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing EPG file: %w", err)
	}
	return nil
}

func programmeFromEntry(channelID string, entry schedule.Entry) *xmltv.Programme {
	desc := entry.Video.Description
	if desc == "" {
		desc = "No description available."
	}
	prog := &xmltv.Programme{
		Start:       entry.Start,
		Stop:        entry.End,
		Channel:     channelID,
		Title:       entry.Video.Title,
		Description: desc,
		VideoSrc:    entry.Video.WatchURL(),
	}
	if entry.Kind == models.KindPublicity {
		prog.Category = publicityCategory
	}
	return prog
}

// Import parses an existing XMLTV document and returns, per channel, the
// entries whose stop time is after now. Past entries are dropped.
func Import(r io.Reader, now time.Time) (map[string][]schedule.Entry, error) {
	entries := make(map[string][]schedule.Entry)

	parser := &xmltv.Parser{
		OnProgramme: func(prog *xmltv.Programme) error {
			if !prog.Stop.After(now) {
				return nil
			}
			kind := models.KindRegular
			if prog.Category == publicityCategory {
				kind = models.KindPublicity
			}
			entries[prog.Channel] = append(entries[prog.Channel], schedule.Entry{
				Kind: kind,
				Video: models.VideoDescriptor{
					ID:          videoIDFromSrc(prog.VideoSrc),
					Title:       prog.Title,
					Description: prog.Description,
					Duration:    int(prog.Stop.Sub(prog.Start).Seconds()),
				},
				Start: prog.Start,
				End:   prog.Stop,
			})
			return nil
		},
	}

	if err := parser.Parse(r); err != nil {
		return nil, fmt.Errorf("parsing EPG file: %w", err)
	}

	for _, list := range entries {
		sort.Slice(list, func(i, j int) bool { return list[i].Start.Before(list[j].Start) })
	}
	return entries, nil
}

// ImportFile primes the registry from the EPG file at path, if it exists.
// Parse failures are non-fatal: a fresh EPG is generated instead.
func ImportFile(path string, registry *schedule.Registry, now time.Time, logger *slog.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("opening EPG file: %w", err)
	}
	defer f.Close()

	entries, err := Import(f, now)
	if err != nil {
		logger.Warn("could not parse existing EPG file, regenerating from scratch",
			slog.String("path", path),
			slog.Any("error", err))
		return nil
	}

	for channelID, list := range entries {
		registry.Set(&schedule.Schedule{
			ChannelID:   channelID,
			Entries:     list,
			GeneratedAt: now,
		})
		logger.Info("restored future programmes from EPG file",
			slog.String("channel", channelID),
			slog.Int("entries", len(list)))
	}
	return nil
}

// videoIDFromSrc extracts the video id from a watch URL.
func videoIDFromSrc(src string) string {
	if idx := strings.LastIndex(src, "v="); idx >= 0 {
		return src[idx+2:]
	}
	return src
}
