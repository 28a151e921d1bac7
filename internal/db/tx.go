package db

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/justestif/artist-pulse/internal/model"
	"github.com/justestif/artist-pulse/internal/persist"
)

// txn adapts the repositories bound to one pgx transaction to persist.Tx.
type txn struct {
	artists *ArtistRepository
	metrics *MetricRepository
	tracks  *TrackRepository
	videos  *VideoRepository
}

var _ persist.Tx = (*txn)(nil)

func (t *txn) ArtistByPlatformID(ctx context.Context, platform model.Platform, platformID string) (*model.Artist, error) {
	return t.artists.GetByPlatformID(ctx, platform, platformID)
}

func (t *txn) ArtistBySlug(ctx context.Context, slug string) (*model.Artist, error) {
	return t.artists.GetBySlug(ctx, slug)
}

func (t *txn) UpsertArtist(ctx context.Context, a *model.Artist) (uuid.UUID, error) {
	return t.artists.Upsert(ctx, a)
}

func (t *txn) UpsertPlatformIDs(ctx context.Context, artistID uuid.UUID, ids []model.PlatformID) error {
	return t.artists.UpsertPlatformIDs(ctx, artistID, ids)
}

func (t *txn) UpsertURLs(ctx context.Context, artistID uuid.UUID, urls []model.URL) error {
	return t.artists.UpsertURLs(ctx, artistID, urls)
}

func (t *txn) InsertMetrics(ctx context.Context, artistID uuid.UUID, metrics []model.Metric) error {
	return t.metrics.InsertBatch(ctx, artistID, metrics)
}

func (t *txn) MetricsSince(ctx context.Context, artistID uuid.UUID, since time.Time) ([]model.Metric, error) {
	return t.metrics.Since(ctx, artistID, since)
}

func (t *txn) UpsertTrack(ctx context.Context, tr model.Track) error {
	return t.tracks.Upsert(ctx, tr)
}

func (t *txn) LinkTrack(ctx context.Context, link model.ArtistTrack) error {
	return t.tracks.Link(ctx, link)
}

func (t *txn) UpsertVideo(ctx context.Context, v model.Video) error {
	return t.videos.Upsert(ctx, v)
}

func (t *txn) LinkVideo(ctx context.Context, link model.ArtistVideo) error {
	return t.videos.Link(ctx, link)
}
