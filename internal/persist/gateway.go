// Package persist writes an aggregated artist and everything it owns as one
// atomic unit, then runs best-effort enrichment outside the transaction.
package persist

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/justestif/artist-pulse/internal/model"
)

// ErrNotFound is returned by gateways when a record does not exist.
var ErrNotFound = errors.New("not found")

// Tx is the set of writes available inside one transaction.
type Tx interface {
	// ArtistByPlatformID returns the artist holding the platform id, or
	// ErrNotFound.
	ArtistByPlatformID(ctx context.Context, platform model.Platform, platformID string) (*model.Artist, error)
	// ArtistBySlug returns the artist with the slug, or ErrNotFound.
	ArtistBySlug(ctx context.Context, slug string) (*model.Artist, error)
	// UpsertArtist updates the row a.ID names, or inserts a new row when
	// a.ID is zero, and returns the artist id. is_complete is reset to
	// false. A slug held by another artist is an error.
	UpsertArtist(ctx context.Context, a *model.Artist) (uuid.UUID, error)
	// UpsertPlatformIDs sets one id per platform. A (platform, id) pair
	// held by another artist is an error.
	UpsertPlatformIDs(ctx context.Context, artistID uuid.UUID, ids []model.PlatformID) error
	UpsertURLs(ctx context.Context, artistID uuid.UUID, urls []model.URL) error
	// InsertMetrics appends; it never updates existing points.
	InsertMetrics(ctx context.Context, artistID uuid.UUID, metrics []model.Metric) error
	// MetricsSince lists the artist's metrics dated at or after since.
	MetricsSince(ctx context.Context, artistID uuid.UUID, since time.Time) ([]model.Metric, error)
	UpsertTrack(ctx context.Context, t model.Track) error
	LinkTrack(ctx context.Context, link model.ArtistTrack) error
	UpsertVideo(ctx context.Context, v model.Video) error
	LinkVideo(ctx context.Context, link model.ArtistVideo) error
}

// Gateway is the storage boundary used by the Orchestrator.
type Gateway interface {
	// WithTx runs fn in a transaction. It commits only if fn returns nil
	// and rolls back on error or panic.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	MarkComplete(ctx context.Context, artistID uuid.UUID) error
	UpdateBio(ctx context.Context, artistID uuid.UUID, bio string) error
	GetArtistBySlug(ctx context.Context, slug string) (*model.PersistedArtist, error)
	Ping(ctx context.Context) error
}
