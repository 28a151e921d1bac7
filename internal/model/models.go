// Package model defines the artist aggregate shared by the ingestion pipeline.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Artist is the core artist record.
type Artist struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	Slug       string     `json:"slug"`
	Bio        string     `json:"bio"`
	Gender     string     `json:"gender"`
	Country    string     `json:"country"`
	BirthDate  *time.Time `json:"birth_date"` // nullable
	ImageURL   string     `json:"image_url"`
	Genres     []string   `json:"genres"`
	IsComplete bool       `json:"is_complete"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// PlatformID maps an artist to its identifier on one platform.
// At most one row exists per (artist, platform).
type PlatformID struct {
	ArtistID   uuid.UUID `json:"artist_id"`
	Platform   Platform  `json:"platform"`
	PlatformID string    `json:"platform_id"`
}

// URL is an artist's profile link on one platform, unique per (artist, platform).
type URL struct {
	ArtistID uuid.UUID `json:"artist_id"`
	Platform Platform  `json:"platform"`
	URL      string    `json:"url"`
}

// Metric is one point of an append-only time series.
type Metric struct {
	ArtistID   uuid.UUID  `json:"artist_id"`
	Platform   Platform   `json:"platform"`
	MetricType MetricType `json:"metric_type"`
	Value      float64    `json:"value"`
	Date       time.Time  `json:"date"`
}

// Track is a platform-native track, shared across artists.
type Track struct {
	Platform     Platform   `json:"platform"`
	TrackID      string     `json:"track_id"`
	Title        string     `json:"title"`
	ThumbnailURL string     `json:"thumbnail_url"`
	Popularity   int        `json:"popularity"`
	ReleaseDate  *time.Time `json:"release_date"` // nullable
}

// Video is a platform-native video, shared across artists.
type Video struct {
	Platform     Platform   `json:"platform"`
	VideoID      string     `json:"video_id"`
	Title        string     `json:"title"`
	ThumbnailURL string     `json:"thumbnail_url"`
	ViewCount    int64      `json:"view_count"`
	LikeCount    int64      `json:"like_count"`
	CommentCount int64      `json:"comment_count"`
	PublishedAt  *time.Time `json:"published_at"` // nullable
}

// Role describes how an artist relates to a track or video.
type Role string

// Known roles.
const (
	RolePrimary  Role = "primary"
	RoleFeatured Role = "featured"
)

// ArtistTrack links an artist to a shared track row.
type ArtistTrack struct {
	ArtistID uuid.UUID `json:"artist_id"`
	Platform Platform  `json:"platform"`
	TrackID  string    `json:"track_id"`
	Role     Role      `json:"role"`
	Track    *Track    `json:"track,omitempty"`
}

// ArtistVideo links an artist to a shared video row.
type ArtistVideo struct {
	ArtistID uuid.UUID `json:"artist_id"`
	Platform Platform  `json:"platform"`
	VideoID  string    `json:"video_id"`
	Role     Role      `json:"role"`
	Video    *Video    `json:"video,omitempty"`
}
