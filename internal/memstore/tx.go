package memstore

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/justestif/artist-pulse/internal/model"
	"github.com/justestif/artist-pulse/internal/persist"
)

// txn writes to a private copy of the store state.
type txn struct {
	st       *state
	failures map[string]error
	now      func() time.Time
}

func (t *txn) fail(op string) error {
	if err, ok := t.failures[op]; ok {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (t *txn) ArtistByPlatformID(ctx context.Context, platform model.Platform, platformID string) (*model.Artist, error) {
	if err := t.fail("ArtistByPlatformID"); err != nil {
		return nil, err
	}
	id, ok := t.st.platformOwner(platform, platformID)
	if !ok {
		return nil, persist.ErrNotFound
	}
	a := t.st.artists[id]
	return &a, nil
}

func (t *txn) ArtistBySlug(ctx context.Context, slug string) (*model.Artist, error) {
	if err := t.fail("ArtistBySlug"); err != nil {
		return nil, err
	}
	id, ok := t.st.slugs[slug]
	if !ok {
		return nil, persist.ErrNotFound
	}
	a := t.st.artists[id]
	return &a, nil
}

func (t *txn) UpsertArtist(ctx context.Context, a *model.Artist) (uuid.UUID, error) {
	if err := t.fail("UpsertArtist"); err != nil {
		return uuid.Nil, err
	}
	if owner, ok := t.st.slugs[a.Slug]; ok && owner != a.ID {
		return uuid.Nil, fmt.Errorf("slug %q belongs to another artist", a.Slug)
	}

	now := t.now()
	row := *a
	row.Genres = slices.Clone(a.Genres)
	row.IsComplete = false
	row.UpdatedAt = now

	if a.ID != uuid.Nil {
		prev, ok := t.st.artists[a.ID]
		if !ok {
			return uuid.Nil, persist.ErrNotFound
		}
		row.CreatedAt = prev.CreatedAt
		delete(t.st.slugs, prev.Slug)
	} else {
		row.ID = uuid.New()
		row.CreatedAt = now
	}
	t.st.slugs[row.Slug] = row.ID
	t.st.artists[row.ID] = row

	a.ID, a.CreatedAt, a.UpdatedAt, a.IsComplete = row.ID, row.CreatedAt, row.UpdatedAt, false
	return row.ID, nil
}

func (t *txn) UpsertPlatformIDs(ctx context.Context, artistID uuid.UUID, ids []model.PlatformID) error {
	if err := t.fail("UpsertPlatformIDs"); err != nil {
		return err
	}
	for _, p := range ids {
		if owner, ok := t.st.platformOwner(p.Platform, p.PlatformID); ok && owner != artistID {
			return fmt.Errorf("%s id %s belongs to another artist", p.Platform, p.PlatformID)
		}
	}
	m := t.st.platformIDs[artistID]
	if m == nil {
		m = map[model.Platform]string{}
		t.st.platformIDs[artistID] = m
	}
	for _, p := range ids {
		m[p.Platform] = p.PlatformID
	}
	return nil
}

func (t *txn) UpsertURLs(ctx context.Context, artistID uuid.UUID, urls []model.URL) error {
	if err := t.fail("UpsertURLs"); err != nil {
		return err
	}
	m := t.st.urls[artistID]
	if m == nil {
		m = map[model.Platform]string{}
		t.st.urls[artistID] = m
	}
	for _, u := range urls {
		m[u.Platform] = u.URL
	}
	return nil
}

func (t *txn) InsertMetrics(ctx context.Context, artistID uuid.UUID, metrics []model.Metric) error {
	if err := t.fail("InsertMetrics"); err != nil {
		return err
	}
	for _, m := range metrics {
		m.ArtistID = artistID
		if m.Date.IsZero() {
			m.Date = t.now()
		}
		t.st.metrics = append(t.st.metrics, m)
	}
	return nil
}

func (t *txn) MetricsSince(ctx context.Context, artistID uuid.UUID, since time.Time) ([]model.Metric, error) {
	if err := t.fail("MetricsSince"); err != nil {
		return nil, err
	}
	var out []model.Metric
	for _, m := range t.st.metrics {
		if m.ArtistID == artistID && !m.Date.Before(since) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (t *txn) UpsertTrack(ctx context.Context, tr model.Track) error {
	if err := t.fail("UpsertTrack"); err != nil {
		return err
	}
	t.st.tracks[mediaKey{tr.Platform, tr.TrackID}] = tr
	return nil
}

func (t *txn) LinkTrack(ctx context.Context, link model.ArtistTrack) error {
	if err := t.fail("LinkTrack"); err != nil {
		return err
	}
	if _, ok := t.st.tracks[mediaKey{link.Platform, link.TrackID}]; !ok {
		return fmt.Errorf("track %s/%s does not exist", link.Platform, link.TrackID)
	}
	link.Track = nil
	t.st.artistTracks[linkKey{link.ArtistID, link.Platform, link.TrackID}] = link
	return nil
}

func (t *txn) UpsertVideo(ctx context.Context, v model.Video) error {
	if err := t.fail("UpsertVideo"); err != nil {
		return err
	}
	t.st.videos[mediaKey{v.Platform, v.VideoID}] = v
	return nil
}

func (t *txn) LinkVideo(ctx context.Context, link model.ArtistVideo) error {
	if err := t.fail("LinkVideo"); err != nil {
		return err
	}
	if _, ok := t.st.videos[mediaKey{link.Platform, link.VideoID}]; !ok {
		return fmt.Errorf("video %s/%s does not exist", link.Platform, link.VideoID)
	}
	link.Video = nil
	t.st.artistVideos[linkKey{link.ArtistID, link.Platform, link.VideoID}] = link
	return nil
}
