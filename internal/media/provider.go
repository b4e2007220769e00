// Package media resolves a pasted URL to track metadata via pluggable
// platform providers.
package media

import (
	"context"
	"errors"
)

var (
	ErrUnsupportedURL = errors.New("unsupported media url")
	ErrNoResult       = errors.New("no media found for url")
)

// Metadata is what a provider knows about one track.
type Metadata struct {
	SourceID        string `json:"source_id"`
	Title           string `json:"title"`
	Artist          string `json:"artist"`
	ThumbnailURL    string `json:"thumbnail_url"`
	DurationSeconds int    `json:"duration_seconds"`
	Platform        string `json:"platform"`
	MediaURL        string `json:"media_url"`
}

// Provider handles one media platform.
type Provider interface {
	// Platform names the provider for cache keys and track records.
	Platform() string
	// Validate reports whether the URL belongs to this platform.
	Validate(url string) bool
	// ExtractID pulls the platform-native media id out of the URL.
	ExtractID(url string) (string, error)
	// FetchMetadata resolves an id to metadata via the platform API.
	FetchMetadata(ctx context.Context, id string) (Metadata, error)
}

// ForURL picks the first provider claiming the URL.
func ForURL(providers []Provider, url string) (Provider, error) {
	for _, p := range providers {
		if p.Validate(url) {
			return p, nil
		}
	}
	return nil, ErrUnsupportedURL
}
