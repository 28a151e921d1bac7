// Package memstore is an in-process persistence gateway used in dev mode
// and tests. Transactions work on a copy of the state that replaces the
// original only on commit.
package memstore

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/justestif/artist-pulse/internal/model"
	"github.com/justestif/artist-pulse/internal/persist"
)

type mediaKey struct {
	platform model.Platform
	id       string
}

type linkKey struct {
	artist   uuid.UUID
	platform model.Platform
	id       string
}

type state struct {
	artists      map[uuid.UUID]model.Artist
	slugs        map[string]uuid.UUID
	platformIDs  map[uuid.UUID]map[model.Platform]string
	urls         map[uuid.UUID]map[model.Platform]string
	metrics      []model.Metric
	tracks       map[mediaKey]model.Track
	artistTracks map[linkKey]model.ArtistTrack
	videos       map[mediaKey]model.Video
	artistVideos map[linkKey]model.ArtistVideo
}

func newState() *state {
	return &state{
		artists:      map[uuid.UUID]model.Artist{},
		slugs:        map[string]uuid.UUID{},
		platformIDs:  map[uuid.UUID]map[model.Platform]string{},
		urls:         map[uuid.UUID]map[model.Platform]string{},
		tracks:       map[mediaKey]model.Track{},
		artistTracks: map[linkKey]model.ArtistTrack{},
		videos:       map[mediaKey]model.Video{},
		artistVideos: map[linkKey]model.ArtistVideo{},
	}
}

func (s *state) clone() *state {
	c := &state{
		artists:      maps.Clone(s.artists),
		slugs:        maps.Clone(s.slugs),
		platformIDs:  make(map[uuid.UUID]map[model.Platform]string, len(s.platformIDs)),
		urls:         make(map[uuid.UUID]map[model.Platform]string, len(s.urls)),
		metrics:      slices.Clone(s.metrics),
		tracks:       maps.Clone(s.tracks),
		artistTracks: maps.Clone(s.artistTracks),
		videos:       maps.Clone(s.videos),
		artistVideos: maps.Clone(s.artistVideos),
	}
	for id, m := range s.platformIDs {
		c.platformIDs[id] = maps.Clone(m)
	}
	for id, m := range s.urls {
		c.urls[id] = maps.Clone(m)
	}
	return c
}

// platformOwner finds the artist holding a platform id.
func (s *state) platformOwner(platform model.Platform, platformID string) (uuid.UUID, bool) {
	for id, m := range s.platformIDs {
		if v, ok := m[platform]; ok && v == platformID {
			return id, true
		}
	}
	return uuid.Nil, false
}

var (
	_ persist.Gateway = (*Store)(nil)
	_ persist.Tx      = (*txn)(nil)
)

// Store implements persist.Gateway in memory.
type Store struct {
	mu       sync.Mutex
	state    *state
	failures map[string]error
	now      func() time.Time
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		state:    newState(),
		failures: map[string]error{},
		now:      time.Now,
	}
}

// FailOn makes every later call of the named Tx method (e.g. "UpsertTrack")
// return err. A nil err clears the failure.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// WithTx implements persist.Gateway. Transactions are serialized.
func (s *Store) WithTx(ctx context.Context, fn func(tx persist.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	// A panic or error drops the working copy, which is the rollback.
	t := &txn{st: s.state.clone(), failures: s.failures, now: s.now}
	if err := fn(t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	s.state = t.st
	return nil
}

// Ping implements persist.Gateway.
func (s *Store) Ping(ctx context.Context) error {
	return nil
}

// MarkComplete implements persist.Gateway.
func (s *Store) MarkComplete(ctx context.Context, artistID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.state.artists[artistID]
	if !ok {
		return persist.ErrNotFound
	}
	a.IsComplete = true
	a.UpdatedAt = s.now()
	s.state.artists[artistID] = a
	return nil
}

// UpdateBio implements persist.Gateway.
func (s *Store) UpdateBio(ctx context.Context, artistID uuid.UUID, bio string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.state.artists[artistID]
	if !ok {
		return persist.ErrNotFound
	}
	a.Bio = bio
	a.UpdatedAt = s.now()
	s.state.artists[artistID] = a
	return nil
}

// GetArtistBySlug implements persist.Gateway.
func (s *Store) GetArtistBySlug(ctx context.Context, slug string) (*model.PersistedArtist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.state
	id, ok := st.slugs[slug]
	if !ok {
		return nil, persist.ErrNotFound
	}

	out := &model.PersistedArtist{Artist: st.artists[id]}
	out.Genres = slices.Clone(out.Genres)

	for p, v := range st.platformIDs[id] {
		out.PlatformIDs = append(out.PlatformIDs, model.PlatformID{ArtistID: id, Platform: p, PlatformID: v})
	}
	slices.SortFunc(out.PlatformIDs, func(a, b model.PlatformID) int { return strings.Compare(string(a.Platform), string(b.Platform)) })

	for p, v := range st.urls[id] {
		out.URLs = append(out.URLs, model.URL{ArtistID: id, Platform: p, URL: v})
	}
	slices.SortFunc(out.URLs, func(a, b model.URL) int { return strings.Compare(string(a.Platform), string(b.Platform)) })

	for _, m := range st.metrics {
		if m.ArtistID == id {
			out.Metrics = append(out.Metrics, m)
		}
	}

	for k, link := range st.artistTracks {
		if k.artist != id {
			continue
		}
		t := st.tracks[mediaKey{k.platform, k.id}]
		link.Track = &t
		out.Tracks = append(out.Tracks, link)
	}
	slices.SortFunc(out.Tracks, func(a, b model.ArtistTrack) int { return strings.Compare(a.TrackID, b.TrackID) })

	for k, link := range st.artistVideos {
		if k.artist != id {
			continue
		}
		v := st.videos[mediaKey{k.platform, k.id}]
		link.Video = &v
		out.Videos = append(out.Videos, link)
	}
	slices.SortFunc(out.Videos, func(a, b model.ArtistVideo) int { return strings.Compare(a.VideoID, b.VideoID) })

	return out, nil
}

// Counts reports the number of stored rows per table.
type Counts struct {
	Artists      int
	PlatformIDs  int
	URLs         int
	Metrics      int
	Tracks       int
	ArtistTracks int
	Videos       int
	ArtistVideos int
}

// Counts returns the current row counts.
func (s *Store) Counts() Counts {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.state
	c := Counts{
		Artists:      len(st.artists),
		Metrics:      len(st.metrics),
		Tracks:       len(st.tracks),
		ArtistTracks: len(st.artistTracks),
		Videos:       len(st.videos),
		ArtistVideos: len(st.artistVideos),
	}
	for _, m := range st.platformIDs {
		c.PlatformIDs += len(m)
	}
	for _, m := range st.urls {
		c.URLs += len(m)
	}
	return c
}
