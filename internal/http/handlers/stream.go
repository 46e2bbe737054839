package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pseudotv/pseudotv/internal/config"
	"github.com/pseudotv/pseudotv/internal/schedule"
	"github.com/pseudotv/pseudotv/internal/stream"
	"github.com/pseudotv/pseudotv/internal/transcoder"
)

// StreamHandler runs a live MPEG-TS streaming session per request. Each
// consumer gets its own independent assembler and transcoder pipeline.
type StreamHandler struct {
	cfg      *config.Config
	registry *schedule.Registry
	resolver transcoder.URLResolver
	refresh  stream.RefreshFunc
	logger   *slog.Logger
}

// NewStreamHandler creates the /stream/{channelID} handler.
func NewStreamHandler(cfg *config.Config, registry *schedule.Registry, resolver transcoder.URLResolver, refresh stream.RefreshFunc, logger *slog.Logger) *StreamHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamHandler{
		cfg:      cfg,
		registry: registry,
		resolver: resolver,
		refresh:  refresh,
		logger:   logger,
	}
}

// ServeHTTP streams the channel until the client disconnects.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "channelID")
	ch := h.cfg.Channel(channelID)
	if ch == nil {
		http.Error(w, "unknown channel", http.StatusNotFound)
		return
	}

	sessionID := uuid.New().String()
	logger := h.logger.With(slog.String("session_id", sessionID))

	media := transcoder.NewMediaProvider(h.resolver, h.cfg.Binaries.FFmpeg, ch.Output, logger)
	assembler := stream.NewAssembler(ch, h.registry, media, h.refresh, logger)

	w.Header().Set("Content-Type", "video/MP2T")

	// Client disconnect cancels the request context, which tears down the
	// in-flight media handle and transcoder.
	err := assembler.Run(r.Context(), &flushWriter{w: w})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("streaming session failed",
			slog.String("channel", channelID),
			slog.Any("error", err))
	}
}

// flushWriter flushes after every write so transport-stream bytes reach the
// consumer without buffering delay.
type flushWriter struct {
	w io.Writer
}

func (fw *flushWriter) Write(p []byte) (int, error) {
	n, err := fw.w.Write(p)
	if f, ok := fw.w.(http.Flusher); ok {
		f.Flush()
	}
	return n, err
}
