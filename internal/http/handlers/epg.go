// Package handlers implements the HTTP endpoints for pseudotv: the XMLTV
// guide, the M3U lineup, and the live channel streams.
package handlers

import (
	"net/http"
	"os"
	"time"

	"github.com/pseudotv/pseudotv/internal/config"
)

// EPGHandler serves the generated XMLTV document.
type EPGHandler struct {
	cfg *config.Config
}

// NewEPGHandler creates the /epg.xml handler.
func NewEPGHandler(cfg *config.Config) *EPGHandler {
	return &EPGHandler{cfg: cfg}
}

// ServeHTTP serves the EPG file.
func (h *EPGHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f, err := os.Open(h.cfg.EPG.OutputFile)
	if err != nil {
		http.Error(w, "EPG not found. It may be generating. Please try again in a moment.", http.StatusNotFound)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/xml")
	http.ServeContent(w, r, "epg.xml", modTime(f), f)
}

func modTime(f *os.File) time.Time {
	if info, err := f.Stat(); err == nil {
		return info.ModTime()
	}
	return time.Time{}
}
