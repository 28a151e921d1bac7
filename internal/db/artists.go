package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/justestif/artist-pulse/internal/model"
)

// ArtistRepository handles artist and per-platform identity rows.
type ArtistRepository struct {
	q querier
}

// Upsert updates the artist a.ID names, or inserts a new one when a.ID is
// zero, and returns its id. A re-ingested artist is incomplete again until
// MarkComplete.
func (r *ArtistRepository) Upsert(ctx context.Context, a *model.Artist) (uuid.UUID, error) {
	query := `
		INSERT INTO artists (id, name, slug, bio, gender, country, birth_date, image_url, genres, is_complete, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, FALSE, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	id := uuid.New()
	if a.ID != uuid.Nil {
		id = a.ID
		query = `
			UPDATE artists SET
				name = $2,
				slug = $3,
				bio = $4,
				gender = $5,
				country = $6,
				birth_date = $7,
				image_url = $8,
				genres = $9,
				is_complete = FALSE,
				updated_at = NOW()
			WHERE id = $1
			RETURNING id, created_at, updated_at
		`
	}
	genres := a.Genres
	if genres == nil {
		genres = []string{}
	}

	err := r.q.QueryRow(ctx, query,
		id,
		a.Name,
		a.Slug,
		a.Bio,
		a.Gender,
		a.Country,
		a.BirthDate,
		a.ImageURL,
		genres,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return uuid.Nil, fmt.Errorf("upserting artist: %w", notFound(err))
	}
	a.IsComplete = false
	return a.ID, nil
}

const artistColumns = `a.id, a.name, a.slug, a.bio, a.gender, a.country, a.birth_date, a.image_url, a.genres, a.is_complete, a.created_at, a.updated_at`

// GetBySlug retrieves an artist by slug.
func (r *ArtistRepository) GetBySlug(ctx context.Context, slug string) (*model.Artist, error) {
	return r.get(ctx, `SELECT `+artistColumns+` FROM artists a WHERE a.slug = $1`, slug)
}

// GetByPlatformID retrieves the artist holding a platform id.
func (r *ArtistRepository) GetByPlatformID(ctx context.Context, platform model.Platform, platformID string) (*model.Artist, error) {
	return r.get(ctx, `
		SELECT `+artistColumns+`
		FROM artists a
		JOIN artist_platform_ids p ON p.artist_id = a.id
		WHERE p.platform = $1 AND p.platform_id = $2
	`, string(platform), platformID)
}

func (r *ArtistRepository) get(ctx context.Context, query string, args ...any) (*model.Artist, error) {
	var a model.Artist
	err := r.q.QueryRow(ctx, query, args...).Scan(
		&a.ID,
		&a.Name,
		&a.Slug,
		&a.Bio,
		&a.Gender,
		&a.Country,
		&a.BirthDate,
		&a.ImageURL,
		&a.Genres,
		&a.IsComplete,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("querying artist: %w", notFound(err))
	}
	return &a, nil
}

// MarkComplete flags the artist as fully persisted.
func (r *ArtistRepository) MarkComplete(ctx context.Context, id uuid.UUID) error {
	return r.touch(ctx, `UPDATE artists SET is_complete = TRUE, updated_at = NOW() WHERE id = $1`, id)
}

// UpdateBio replaces the artist's biography.
func (r *ArtistRepository) UpdateBio(ctx context.Context, id uuid.UUID, bio string) error {
	return r.touch(ctx, `UPDATE artists SET bio = $2, updated_at = NOW() WHERE id = $1`, id, bio)
}

func (r *ArtistRepository) touch(ctx context.Context, query string, args ...any) error {
	tag, err := r.q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating artist: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertPlatformIDs inserts or overwrites the artist's platform identifiers.
func (r *ArtistRepository) UpsertPlatformIDs(ctx context.Context, artistID uuid.UUID, ids []model.PlatformID) error {
	if len(ids) == 0 {
		return nil
	}

	query := `
		INSERT INTO artist_platform_ids (artist_id, platform, platform_id)
		SELECT $1, * FROM unnest($2::text[], $3::text[])
		ON CONFLICT (artist_id, platform) DO UPDATE SET
			platform_id = EXCLUDED.platform_id
	`
	platforms := make([]string, len(ids))
	values := make([]string, len(ids))
	for i, p := range ids {
		platforms[i] = string(p.Platform)
		values[i] = p.PlatformID
	}

	if _, err := r.q.Exec(ctx, query, artistID, platforms, values); err != nil {
		return fmt.Errorf("upserting platform ids: %w", err)
	}
	return nil
}

// UpsertURLs inserts or overwrites the artist's profile links.
func (r *ArtistRepository) UpsertURLs(ctx context.Context, artistID uuid.UUID, urls []model.URL) error {
	if len(urls) == 0 {
		return nil
	}

	query := `
		INSERT INTO artist_urls (artist_id, platform, url)
		SELECT $1, * FROM unnest($2::text[], $3::text[])
		ON CONFLICT (artist_id, platform) DO UPDATE SET
			url = EXCLUDED.url
	`
	platforms := make([]string, len(urls))
	values := make([]string, len(urls))
	for i, u := range urls {
		platforms[i] = string(u.Platform)
		values[i] = u.URL
	}

	if _, err := r.q.Exec(ctx, query, artistID, platforms, values); err != nil {
		return fmt.Errorf("upserting urls: %w", err)
	}
	return nil
}

// PlatformIDs lists the artist's platform identifiers.
func (r *ArtistRepository) PlatformIDs(ctx context.Context, artistID uuid.UUID) ([]model.PlatformID, error) {
	rows, err := r.q.Query(ctx, `
		SELECT artist_id, platform, platform_id
		FROM artist_platform_ids
		WHERE artist_id = $1
		ORDER BY platform
	`, artistID)
	if err != nil {
		return nil, fmt.Errorf("querying platform ids: %w", err)
	}
	defer rows.Close()

	var out []model.PlatformID
	for rows.Next() {
		var p model.PlatformID
		if err := rows.Scan(&p.ArtistID, &p.Platform, &p.PlatformID); err != nil {
			return nil, fmt.Errorf("scanning platform id: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// URLs lists the artist's profile links.
func (r *ArtistRepository) URLs(ctx context.Context, artistID uuid.UUID) ([]model.URL, error) {
	rows, err := r.q.Query(ctx, `
		SELECT artist_id, platform, url
		FROM artist_urls
		WHERE artist_id = $1
		ORDER BY platform
	`, artistID)
	if err != nil {
		return nil, fmt.Errorf("querying urls: %w", err)
	}
	defer rows.Close()

	var out []model.URL
	for rows.Next() {
		var u model.URL
		if err := rows.Scan(&u.ArtistID, &u.Platform, &u.URL); err != nil {
			return nil, fmt.Errorf("scanning url: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// MetricRepository handles the append-only metric time series.
type MetricRepository struct {
	q querier
}

// InsertBatch appends metric points for the artist.
func (r *MetricRepository) InsertBatch(ctx context.Context, artistID uuid.UUID, metrics []model.Metric) error {
	if len(metrics) == 0 {
		return nil
	}

	query := `
		INSERT INTO artist_metrics (artist_id, platform, metric_type, value, date)
		SELECT $1, * FROM unnest($2::text[], $3::text[], $4::float8[], $5::timestamptz[])
	`
	platforms := make([]string, len(metrics))
	types := make([]string, len(metrics))
	values := make([]float64, len(metrics))
	dates := make([]time.Time, len(metrics))

	now := time.Now()
	for i, m := range metrics {
		platforms[i] = string(m.Platform)
		types[i] = string(m.MetricType)
		values[i] = m.Value
		dates[i] = m.Date
		if m.Date.IsZero() {
			dates[i] = now
		}
	}

	if _, err := r.q.Exec(ctx, query, artistID, platforms, types, values, dates); err != nil {
		return fmt.Errorf("inserting metrics: %w", err)
	}
	return nil
}

// Since lists the artist's metrics dated at or after since.
func (r *MetricRepository) Since(ctx context.Context, artistID uuid.UUID, since time.Time) ([]model.Metric, error) {
	return r.list(ctx, `
		SELECT artist_id, platform, metric_type, value, date
		FROM artist_metrics
		WHERE artist_id = $1 AND date >= $2
		ORDER BY date, id
	`, artistID, since)
}

// ForArtist lists every metric point of the artist, oldest first.
func (r *MetricRepository) ForArtist(ctx context.Context, artistID uuid.UUID) ([]model.Metric, error) {
	return r.list(ctx, `
		SELECT artist_id, platform, metric_type, value, date
		FROM artist_metrics
		WHERE artist_id = $1
		ORDER BY date, id
	`, artistID)
}

func (r *MetricRepository) list(ctx context.Context, query string, args ...any) ([]model.Metric, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying metrics: %w", err)
	}
	defer rows.Close()

	var out []model.Metric
	for rows.Next() {
		var m model.Metric
		if err := rows.Scan(&m.ArtistID, &m.Platform, &m.MetricType, &m.Value, &m.Date); err != nil {
			return nil, fmt.Errorf("scanning metric: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
