// Package db provides PostgreSQL access for artist ingestion.
package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/justestif/artist-pulse/internal/model"
	"github.com/justestif/artist-pulse/internal/persist"
)

// Common errors.
var (
	ErrNotFound = persist.ErrNotFound
)

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB wraps a PostgreSQL connection pool and implements persist.Gateway.
type DB struct {
	pool *pgxpool.Pool
}

var _ persist.Gateway = (*DB)(nil)

// New creates a new database connection pool.
func New(ctx context.Context, databaseURL string) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the database connection pool.
func (db *DB) Close() {
	db.pool.Close()
}

// Ping verifies the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// Artists returns an ArtistRepository.
func (db *DB) Artists() *ArtistRepository {
	return &ArtistRepository{q: db.pool}
}

// Metrics returns a MetricRepository.
func (db *DB) Metrics() *MetricRepository {
	return &MetricRepository{q: db.pool}
}

// Tracks returns a TrackRepository.
func (db *DB) Tracks() *TrackRepository {
	return &TrackRepository{q: db.pool}
}

// Videos returns a VideoRepository.
func (db *DB) Videos() *VideoRepository {
	return &VideoRepository{q: db.pool}
}

// WithTx implements persist.Gateway. The transaction is rolled back unless
// fn returns nil and the commit succeeds, including when fn panics.
func (db *DB) WithTx(ctx context.Context, fn func(tx persist.Tx) error) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	// No-op once committed.
	defer tx.Rollback(context.WithoutCancel(ctx))

	if err := fn(&txn{
		artists: &ArtistRepository{q: tx},
		metrics: &MetricRepository{q: tx},
		tracks:  &TrackRepository{q: tx},
		videos:  &VideoRepository{q: tx},
	}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// MarkComplete implements persist.Gateway.
func (db *DB) MarkComplete(ctx context.Context, artistID uuid.UUID) error {
	return db.Artists().MarkComplete(ctx, artistID)
}

// UpdateBio implements persist.Gateway.
func (db *DB) UpdateBio(ctx context.Context, artistID uuid.UUID, bio string) error {
	return db.Artists().UpdateBio(ctx, artistID, bio)
}

// GetArtistBySlug implements persist.Gateway.
func (db *DB) GetArtistBySlug(ctx context.Context, slug string) (*model.PersistedArtist, error) {
	artists := db.Artists()

	artist, err := artists.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	out := &model.PersistedArtist{Artist: *artist}

	if out.PlatformIDs, err = artists.PlatformIDs(ctx, artist.ID); err != nil {
		return nil, err
	}
	if out.URLs, err = artists.URLs(ctx, artist.ID); err != nil {
		return nil, err
	}
	if out.Metrics, err = db.Metrics().ForArtist(ctx, artist.ID); err != nil {
		return nil, err
	}
	if out.Tracks, err = db.Tracks().ForArtist(ctx, artist.ID); err != nil {
		return nil, err
	}
	if out.Videos, err = db.Videos().ForArtist(ctx, artist.ID); err != nil {
		return nil, err
	}
	return out, nil
}

// notFound maps pgx.ErrNoRows to ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
