package handlers

import (
	"fmt"
	"net/http"

	"github.com/pseudotv/pseudotv/internal/config"
	"github.com/pseudotv/pseudotv/pkg/m3u"
)

// PlaylistHandler serves the M3U channel lineup.
type PlaylistHandler struct {
	cfg *config.Config
}

// NewPlaylistHandler creates the /m3u handler.
func NewPlaylistHandler(cfg *config.Config) *PlaylistHandler {
	return &PlaylistHandler{cfg: cfg}
}

// ServeHTTP writes one playlist entry per configured channel, pointing at
// this server's stream endpoint.
func (h *PlaylistHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")

	writer := m3u.NewWriter(w)
	base := h.baseURL(r)

	for i := range h.cfg.Channels {
		ch := &h.cfg.Channels[i]
		entry := &m3u.Entry{
			TvgID:      ch.ID,
			TvgName:    ch.Name,
			GroupTitle: ch.GroupTitle,
			Title:      ch.Name,
			URL:        fmt.Sprintf("%s/stream/%s", base, ch.ID),
		}
		if err := writer.WriteEntry(entry); err != nil {
			// The client went away mid-playlist; nothing to clean up.
			return
		}
	}
}

// baseURL derives the externally visible URL prefix: the configured
// base_url if set, otherwise the request's scheme and host.
func (h *PlaylistHandler) baseURL(r *http.Request) string {
	if h.cfg.Server.BaseURL != "" {
		return h.cfg.Server.BaseURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, r.Host)
}
