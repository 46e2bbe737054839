// Package models defines the core value types shared across pseudotv.
package models

import "time"

// VideoDescriptor describes a single on-demand video resolved from a source
// catalog. Descriptors are immutable value snapshots: once produced by a
// metadata provider they are never edited, only replaced wholesale.
type VideoDescriptor struct {
	// ID is the stable source-assigned video identifier.
	ID string `json:"id"`

	// Title is the video title.
	Title string `json:"title"`

	// Description is the full video description, if available.
	Description string `json:"description,omitempty"`

	// Duration is the video length in seconds.
	Duration int `json:"duration"`

	// PublishedAt is the upload/publish timestamp.
	PublishedAt time.Time `json:"published_at"`

	// SourceURL is the catalog URL this descriptor was resolved from.
	SourceURL string `json:"source_url,omitempty"`
}

// WatchURL returns the canonical watch page URL for the video.
func (v VideoDescriptor) WatchURL() string {
	return "https://www.youtube.com/watch?v=" + v.ID
}

// DurationTime returns the duration as a time.Duration.
func (v VideoDescriptor) DurationTime() time.Duration {
	return time.Duration(v.Duration) * time.Second
}
