// Package ytdlp shells out to yt-dlp to resolve source catalogs into video
// metadata and videos into directly streamable URLs.
package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/pseudotv/pseudotv/internal/models"
)

// DefaultBinary is the yt-dlp binary resolved from PATH.
const DefaultBinary = "yt-dlp"

// Client invokes yt-dlp. It is safe for concurrent use.
type Client struct {
	binary string
	logger *slog.Logger
}

// NewClient creates a yt-dlp client. An empty binary falls back to PATH
// lookup.
func NewClient(binary string, logger *slog.Logger) *Client {
	if binary == "" {
		binary = DefaultBinary
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{binary: binary, logger: logger}
}

// playlistInfo is the subset of yt-dlp's JSON dump we consume.
type playlistInfo struct {
	Entries []videoInfo `json:"entries"`
}

type videoInfo struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Duration    float64 `json:"duration"`
	Timestamp   int64   `json:"timestamp"`
	UploadDate  string  `json:"upload_date"`
	WebpageURL  string  `json:"webpage_url"`
}

// Videos lists up to max videos for the source catalog URL, newest first.
// Channel-page URLs are normalized to their /videos tab; on failure the raw
// URL is retried before giving up.
func (c *Client) Videos(ctx context.Context, sourceURL string, max int) ([]models.VideoDescriptor, error) {
	processed := NormalizeSourceURL(sourceURL)

	videos, err := c.fetch(ctx, processed, max)
	if err != nil && processed != sourceURL {
		c.logger.Warn("catalog fetch failed, retrying original URL",
			slog.String("url", processed),
			slog.Any("error", err))
		videos, err = c.fetch(ctx, sourceURL, max)
	}
	if err != nil {
		return nil, err
	}
	return videos, nil
}

func (c *Client) fetch(ctx context.Context, url string, max int) ([]models.VideoDescriptor, error) {
	args := []string{
		"--dump-single-json",
		"--quiet",
		"--no-warnings",
		"--playlist-end", strconv.Itoa(max),
		url,
	}

	out, err := c.run(ctx, args)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", url, err)
	}

	var info playlistInfo
	if err := json.Unmarshal(out, &info); err != nil {
		return nil, fmt.Errorf("parsing yt-dlp output for %s: %w", url, err)
	}

	videos := make([]models.VideoDescriptor, 0, len(info.Entries))
	for _, e := range info.Entries {
		if e.ID == "" {
			continue
		}
		videos = append(videos, models.VideoDescriptor{
			ID:          e.ID,
			Title:       e.Title,
			Description: e.Description,
			Duration:    int(e.Duration),
			PublishedAt: publishTime(e),
			SourceURL:   url,
		})
	}
	return videos, nil
}

// ResolveURL resolves the video into a direct media URL at the requested
// quality.
func (c *Client) ResolveURL(ctx context.Context, video models.VideoDescriptor, quality string) (string, error) {
	if quality == "" {
		quality = "best"
	}
	args := []string{
		"--get-url",
		"--quiet",
		"--no-warnings",
		"--format", quality,
		video.WatchURL(),
	}

	out, err := c.run(ctx, args)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", video.ID, err)
	}

	// yt-dlp may print one URL per selected stream; the first is the muxed
	// or video stream.
	url, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	if url == "" {
		return "", fmt.Errorf("resolving %s: yt-dlp returned no URL", video.ID)
	}
	return url, nil
}

func (c *Client) run(ctx context.Context, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, c.binary, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}

// publishTime prefers the exact upload timestamp, falling back to the
// date-only upload_date field.
func publishTime(e videoInfo) time.Time {
	if e.Timestamp > 0 {
		return time.Unix(e.Timestamp, 0).UTC()
	}
	if t, err := time.Parse("20060102", e.UploadDate); err == nil {
		return t
	}
	return time.Time{}
}

// NormalizeSourceURL rewrites YouTube channel-page URLs (@handle, /c/, or
// /user/ forms) to their uploads tab so listing returns videos rather than
// the channel home layout. Other URLs pass through unchanged.
func NormalizeSourceURL(url string) string {
	switch {
	case strings.Contains(url, "youtube.com/@"):
		handle := strings.SplitN(strings.SplitN(url, "@", 2)[1], "/", 2)[0]
		return "https://www.youtube.com/@" + handle + "/videos"
	case strings.Contains(url, "youtube.com/c/"):
		name := strings.SplitN(strings.SplitN(url, "/c/", 2)[1], "/", 2)[0]
		return "https://www.youtube.com/c/" + name + "/videos"
	case strings.Contains(url, "youtube.com/user/"):
		name := strings.SplitN(strings.SplitN(url, "/user/", 2)[1], "/", 2)[0]
		return "https://www.youtube.com/user/" + name + "/videos"
	}
	return url
}
