package persist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/justestif/artist-pulse/internal/model"
)

// Enricher fetches optional metadata after the artist is committed.
type Enricher interface {
	Biography(ctx context.Context, name string) (string, error)
}

// Orchestrator persists ingestion results through a Gateway.
type Orchestrator struct {
	gw          Gateway
	enricher    Enricher
	dailyDedupe bool
	logger      *zap.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithEnricher sets the post-commit enrichment source.
func WithEnricher(e Enricher) Option {
	return func(o *Orchestrator) {
		o.enricher = e
	}
}

// WithDailyMetricDedupe skips metrics already recorded for the same
// (platform, metric type) on the same UTC day.
func WithDailyMetricDedupe() Option {
	return func(o *Orchestrator) {
		o.dailyDedupe = true
	}
}

// New creates an Orchestrator.
func New(gw Gateway, logger *zap.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		gw:     gw,
		logger: logger.With(zap.String("pkg", "persist")),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Persist writes res atomically and returns the stored artist.
// Steps up to the commit either all apply or none do; enrichment failures
// are logged and do not fail the call.
func (o *Orchestrator) Persist(ctx context.Context, res *model.IngestionResult) (*model.PersistedArtist, error) {
	if res == nil {
		return nil, &PersistenceError{Step: StepArtist, Err: errors.New("nothing to persist")}
	}

	artist := res.Artist
	artist.ID = uuid.Nil
	spotifyID := res.SpotifyID()
	if artist.Slug == "" {
		artist.Slug = model.Slugify(artist.Name)
	}
	if artist.Slug == "" {
		artist.Slug = model.FallbackSlug(spotifyID)
	}
	if artist.Slug == "" {
		return nil, &PersistenceError{Step: StepArtist, Err: fmt.Errorf("artist %q has no usable slug", artist.Name)}
	}

	var artistID uuid.UUID
	err := o.gw.WithTx(ctx, func(tx Tx) error {
		if err := identify(ctx, tx, &artist, spotifyID); err != nil {
			return &PersistenceError{Step: StepArtist, Err: err}
		}
		id, err := tx.UpsertArtist(ctx, &artist)
		if err != nil {
			return &PersistenceError{Step: StepArtist, Err: err}
		}
		artistID = id

		ids, err := o.claimPlatformIDs(ctx, tx, id, res.PlatformIDs)
		if err != nil {
			return &PersistenceError{Step: StepPlatformIDs, Err: err}
		}
		if err := tx.UpsertPlatformIDs(ctx, id, ids); err != nil {
			return &PersistenceError{Step: StepPlatformIDs, Err: err}
		}
		if err := tx.UpsertURLs(ctx, id, res.URLs); err != nil {
			return &PersistenceError{Step: StepURLs, Err: err}
		}

		metrics := res.Metrics
		if o.dailyDedupe && len(metrics) > 0 {
			day := metrics[0].Date
			if day.IsZero() {
				day = time.Now()
			}
			existing, err := tx.MetricsSince(ctx, id, startOfDay(day))
			if err != nil {
				return &PersistenceError{Step: StepMetrics, Err: err}
			}
			metrics = DedupeMetrics(existing, metrics, day)
		}
		if err := tx.InsertMetrics(ctx, id, metrics); err != nil {
			return &PersistenceError{Step: StepMetrics, Err: err}
		}

		for _, t := range res.Tracks {
			if err := tx.UpsertTrack(ctx, t); err != nil {
				return &PersistenceError{Step: StepTracks, Err: fmt.Errorf("track %s/%s: %w", t.Platform, t.TrackID, err)}
			}
			link := model.ArtistTrack{ArtistID: id, Platform: t.Platform, TrackID: t.TrackID, Role: model.RolePrimary}
			if err := tx.LinkTrack(ctx, link); err != nil {
				return &PersistenceError{Step: StepTracks, Err: fmt.Errorf("linking track %s: %w", t.TrackID, err)}
			}
		}

		for _, v := range res.Videos {
			if err := tx.UpsertVideo(ctx, v); err != nil {
				return &PersistenceError{Step: StepVideos, Err: fmt.Errorf("video %s/%s: %w", v.Platform, v.VideoID, err)}
			}
			link := model.ArtistVideo{ArtistID: id, Platform: v.Platform, VideoID: v.VideoID, Role: model.RolePrimary}
			if err := tx.LinkVideo(ctx, link); err != nil {
				return &PersistenceError{Step: StepVideos, Err: fmt.Errorf("linking video %s: %w", v.VideoID, err)}
			}
		}
		return nil
	})
	if err != nil {
		var pe *PersistenceError
		if errors.As(err, &pe) {
			return nil, pe
		}
		return nil, &PersistenceError{Step: StepCommit, Err: err}
	}

	o.enrich(ctx, artistID, artist)

	if err := o.gw.MarkComplete(ctx, artistID); err != nil {
		return nil, &PersistenceError{Step: StepComplete, Err: err}
	}

	persisted, err := o.gw.GetArtistBySlug(ctx, artist.Slug)
	if err != nil {
		return nil, &PersistenceError{Step: StepRead, Err: err}
	}
	return persisted, nil
}

// identify points artist at the stored row for its Spotify id, if any,
// and otherwise picks a slug no other artist holds. A known artist keeps
// the slug it was first stored under.
func identify(ctx context.Context, tx Tx, artist *model.Artist, spotifyID string) error {
	if spotifyID != "" {
		existing, err := tx.ArtistByPlatformID(ctx, model.PlatformSpotify, spotifyID)
		switch {
		case err == nil:
			artist.ID = existing.ID
			artist.Slug = existing.Slug
			return nil
		case !errors.Is(err, ErrNotFound):
			return fmt.Errorf("looking up spotify id %s: %w", spotifyID, err)
		}
	}

	for _, slug := range slugCandidates(artist.Slug, spotifyID) {
		owner, err := tx.ArtistBySlug(ctx, slug)
		if errors.Is(err, ErrNotFound) {
			artist.Slug = slug
			return nil
		}
		if err != nil {
			return fmt.Errorf("looking up slug %s: %w", slug, err)
		}
		if spotifyID == "" {
			// Nothing but the slug to go on.
			artist.ID = owner.ID
			artist.Slug = slug
			return nil
		}
	}
	return fmt.Errorf("slug %q and its variants belong to other artists", artist.Slug)
}

// slugCandidates lists base followed by variants disambiguated with the
// Spotify id.
func slugCandidates(base, spotifyID string) []string {
	out := []string{base}
	suffix := model.Slugify(spotifyID)
	if suffix == "" {
		return out
	}
	if len(suffix) > 8 {
		out = append(out, base+"-"+suffix[:8])
	}
	return append(out, base+"-"+suffix)
}

// claimPlatformIDs drops ids already held by another artist. A shared
// Spotify id cannot happen after identify, so it is an error.
func (o *Orchestrator) claimPlatformIDs(ctx context.Context, tx Tx, artistID uuid.UUID, ids []model.PlatformID) ([]model.PlatformID, error) {
	out := make([]model.PlatformID, 0, len(ids))
	for _, p := range ids {
		owner, err := tx.ArtistByPlatformID(ctx, p.Platform, p.PlatformID)
		switch {
		case errors.Is(err, ErrNotFound):
		case err != nil:
			return nil, fmt.Errorf("looking up %s id %s: %w", p.Platform, p.PlatformID, err)
		case owner.ID != artistID:
			if p.Platform == model.PlatformSpotify {
				return nil, fmt.Errorf("spotify id %s belongs to artist %s", p.PlatformID, owner.Slug)
			}
			o.logger.Warn("platform id held by another artist",
				zap.String("platform", string(p.Platform)),
				zap.String("platform_id", p.PlatformID),
				zap.String("owner", owner.Slug),
			)
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// enrich replaces the bio with a longer one from the enricher, if any.
func (o *Orchestrator) enrich(ctx context.Context, artistID uuid.UUID, artist model.Artist) {
	if o.enricher == nil {
		return
	}

	bio, err := o.enricher.Biography(ctx, artist.Name)
	if err != nil {
		o.logger.Warn("enrichment failed", zap.Error(&EnrichmentError{Artist: artist.Slug, Err: err}))
		return
	}
	bio = strings.TrimSpace(bio)
	if len(bio) <= len(artist.Bio) {
		return
	}
	if err := o.gw.UpdateBio(ctx, artistID, bio); err != nil {
		o.logger.Warn("enrichment failed", zap.Error(&EnrichmentError{Artist: artist.Slug, Err: err}))
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DedupeMetrics drops incoming metrics whose (platform, metric type) already
// has a point in existing on the UTC day of day. Duplicates within incoming
// are dropped too.
func DedupeMetrics(existing, incoming []model.Metric, day time.Time) []model.Metric {
	type key struct {
		platform model.Platform
		metric   model.MetricType
	}

	start := startOfDay(day)
	end := start.Add(24 * time.Hour)

	seen := make(map[key]bool, len(existing))
	for _, m := range existing {
		if !m.Date.Before(start) && m.Date.Before(end) {
			seen[key{m.Platform, m.MetricType}] = true
		}
	}

	out := make([]model.Metric, 0, len(incoming))
	for _, m := range incoming {
		k := key{m.Platform, m.MetricType}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, m)
	}
	return out
}
