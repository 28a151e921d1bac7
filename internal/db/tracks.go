package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/justestif/artist-pulse/internal/model"
)

// TrackRepository handles shared track rows and their artist links.
type TrackRepository struct {
	q querier
}

// Upsert creates or updates a track keyed by (platform, track_id).
func (r *TrackRepository) Upsert(ctx context.Context, t model.Track) error {
	query := `
		INSERT INTO tracks (platform, track_id, title, thumbnail_url, popularity, release_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (platform, track_id) DO UPDATE SET
			title = EXCLUDED.title,
			thumbnail_url = EXCLUDED.thumbnail_url,
			popularity = EXCLUDED.popularity,
			release_date = EXCLUDED.release_date
	`
	_, err := r.q.Exec(ctx, query,
		t.Platform,
		t.TrackID,
		t.Title,
		t.ThumbnailURL,
		t.Popularity,
		t.ReleaseDate,
	)
	if err != nil {
		return fmt.Errorf("upserting track: %w", err)
	}
	return nil
}

// Link attaches a track to an artist.
func (r *TrackRepository) Link(ctx context.Context, link model.ArtistTrack) error {
	query := `
		INSERT INTO artist_tracks (artist_id, platform, track_id, role)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (artist_id, platform, track_id) DO UPDATE SET role = EXCLUDED.role
	`
	_, err := r.q.Exec(ctx, query, link.ArtistID, link.Platform, link.TrackID, link.Role)
	if err != nil {
		return fmt.Errorf("linking track to artist: %w", err)
	}
	return nil
}

// ForArtist retrieves the artist's tracks, most popular first.
func (r *TrackRepository) ForArtist(ctx context.Context, artistID uuid.UUID) ([]model.ArtistTrack, error) {
	query := `
		SELECT at.artist_id, at.platform, at.track_id, at.role,
		       t.title, t.thumbnail_url, t.popularity, t.release_date
		FROM artist_tracks at
		JOIN tracks t ON t.platform = at.platform AND t.track_id = at.track_id
		WHERE at.artist_id = $1
		ORDER BY t.popularity DESC, t.track_id
	`
	rows, err := r.q.Query(ctx, query, artistID)
	if err != nil {
		return nil, fmt.Errorf("querying artist tracks: %w", err)
	}
	defer rows.Close()

	var out []model.ArtistTrack
	for rows.Next() {
		var link model.ArtistTrack
		var t model.Track
		if err := rows.Scan(
			&link.ArtistID,
			&link.Platform,
			&link.TrackID,
			&link.Role,
			&t.Title,
			&t.ThumbnailURL,
			&t.Popularity,
			&t.ReleaseDate,
		); err != nil {
			return nil, fmt.Errorf("scanning track: %w", err)
		}
		t.Platform = link.Platform
		t.TrackID = link.TrackID
		link.Track = &t
		out = append(out, link)
	}
	return out, rows.Err()
}

// VideoRepository handles shared video rows and their artist links.
type VideoRepository struct {
	q querier
}

// Upsert creates or updates a video keyed by (platform, video_id).
func (r *VideoRepository) Upsert(ctx context.Context, v model.Video) error {
	query := `
		INSERT INTO videos (platform, video_id, title, thumbnail_url, view_count, like_count, comment_count, published_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (platform, video_id) DO UPDATE SET
			title = EXCLUDED.title,
			thumbnail_url = EXCLUDED.thumbnail_url,
			view_count = EXCLUDED.view_count,
			like_count = EXCLUDED.like_count,
			comment_count = EXCLUDED.comment_count,
			published_at = EXCLUDED.published_at
	`
	_, err := r.q.Exec(ctx, query,
		v.Platform,
		v.VideoID,
		v.Title,
		v.ThumbnailURL,
		v.ViewCount,
		v.LikeCount,
		v.CommentCount,
		v.PublishedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting video: %w", err)
	}
	return nil
}

// Link attaches a video to an artist.
func (r *VideoRepository) Link(ctx context.Context, link model.ArtistVideo) error {
	query := `
		INSERT INTO artist_videos (artist_id, platform, video_id, role)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (artist_id, platform, video_id) DO UPDATE SET role = EXCLUDED.role
	`
	_, err := r.q.Exec(ctx, query, link.ArtistID, link.Platform, link.VideoID, link.Role)
	if err != nil {
		return fmt.Errorf("linking video to artist: %w", err)
	}
	return nil
}

// ForArtist retrieves the artist's videos, newest first.
func (r *VideoRepository) ForArtist(ctx context.Context, artistID uuid.UUID) ([]model.ArtistVideo, error) {
	query := `
		SELECT av.artist_id, av.platform, av.video_id, av.role,
		       v.title, v.thumbnail_url, v.view_count, v.like_count, v.comment_count, v.published_at
		FROM artist_videos av
		JOIN videos v ON v.platform = av.platform AND v.video_id = av.video_id
		WHERE av.artist_id = $1
		ORDER BY v.published_at DESC NULLS LAST, v.video_id
	`
	rows, err := r.q.Query(ctx, query, artistID)
	if err != nil {
		return nil, fmt.Errorf("querying artist videos: %w", err)
	}
	defer rows.Close()

	var out []model.ArtistVideo
	for rows.Next() {
		var link model.ArtistVideo
		var v model.Video
		if err := rows.Scan(
			&link.ArtistID,
			&link.Platform,
			&link.VideoID,
			&link.Role,
			&v.Title,
			&v.ThumbnailURL,
			&v.ViewCount,
			&v.LikeCount,
			&v.CommentCount,
			&v.PublishedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning video: %w", err)
		}
		v.Platform = link.Platform
		v.VideoID = link.VideoID
		link.Video = &v
		out = append(out, link)
	}
	return out, rows.Err()
}
