// Package provider defines the contract shared by every external artist data source.
//
// An Adapter fetches one provider's view of an artist. Call wraps a fetch so
// that timeouts, panics and errors all come back as a Result, never as a
// panic or an unbounded wait.
package provider

import (
	"context"
	"strings"
	"time"

	"github.com/justestif/artist-pulse/internal/model"
)

// Name identifies a provider.
type Name string

// Known providers.
const (
	Spotify       Name = "spotify"
	LastFM        Name = "lastfm"
	MusicBrainz   Name = "musicbrainz"
	Deezer        Name = "deezer"
	Genius        Name = "genius"
	YouTube       Name = "youtube"
	Wikipedia     Name = "wikipedia"
	Kworb         Name = "kworb"
	Viberate      Name = "viberate"
	YouTubeCharts Name = "youtube_charts"
)

// Default per-call timeouts by adapter class.
const (
	APITimeout     = 15 * time.Second
	ScrapeTimeout  = 30 * time.Second
	BrowserTimeout = 60 * time.Second
)

// UserAgent is sent by every HTTP-based adapter.
const UserAgent = "artist-pulse/1.0 (+https://github.com/justestif/artist-pulse)"

// Query identifies the artist an adapter should look up.
// Adapters use whichever field their provider understands.
type Query struct {
	ArtistName string `json:"artist_name"`
	SpotifyID  string `json:"spotify_id"`
	Slug       string `json:"slug"`
	MBID       string `json:"mbid,omitempty"`
}

// Normalized returns a lower-cased, trimmed rendition of q suitable for cache keys.
func (q Query) Normalized() string {
	parts := []string{
		strings.ToLower(strings.TrimSpace(q.ArtistName)),
		strings.TrimSpace(q.SpotifyID),
		strings.ToLower(strings.TrimSpace(q.Slug)),
		strings.ToLower(strings.TrimSpace(q.MBID)),
	}
	return strings.Join(parts, "|")
}

// Data is the normalized, partial artist record returned by one provider.
// Every field is optional.
type Data struct {
	Name      string     `json:"name,omitempty"`
	ImageURL  string     `json:"image_url,omitempty"`
	Country   string     `json:"country,omitempty"`
	Gender    string     `json:"gender,omitempty"`
	BirthDate *time.Time `json:"birth_date,omitempty"`
	Genres    []string   `json:"genres,omitempty"`
	Bio       string     `json:"bio,omitempty"`
	// MBID is the MusicBrainz artist id, when the provider knows it.
	MBID string `json:"mbid,omitempty"`

	PlatformIDs []model.PlatformID `json:"platform_ids,omitempty"`
	URLs        []model.URL        `json:"urls,omitempty"`
	Metrics     []model.Metric     `json:"metrics,omitempty"`
	Tracks      []model.Track      `json:"tracks,omitempty"`
	Videos      []model.Video      `json:"videos,omitempty"`
}

// AddPlatformID records the artist's identifier on p. Empty ids are ignored.
func (d *Data) AddPlatformID(p model.Platform, id string) {
	if id == "" {
		return
	}
	d.PlatformIDs = append(d.PlatformIDs, model.PlatformID{Platform: p, PlatformID: id})
}

// AddURL records the artist's profile link on p. Empty links are ignored.
func (d *Data) AddURL(p model.Platform, u string) {
	if u == "" {
		return
	}
	d.URLs = append(d.URLs, model.URL{Platform: p, URL: u})
}

// AddMetric appends a metric sample. The date is stamped later by the aggregator.
func (d *Data) AddMetric(p model.Platform, t model.MetricType, v float64) {
	d.Metrics = append(d.Metrics, model.Metric{Platform: p, MetricType: t, Value: v})
}

// Adapter fetches one provider's data for an artist.
type Adapter interface {
	Name() Name
	Fetch(ctx context.Context, q Query) (*Data, error)
}

// Result is the outcome of one adapter call: exactly one of Data or Err is set.
type Result struct {
	Provider Name   `json:"provider"`
	Data     *Data  `json:"data,omitempty"`
	Err      *Error `json:"error,omitempty"`
}

// OK reports whether the call succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Success builds a successful Result.
func Success(name Name, data *Data) Result {
	if data == nil {
		data = &Data{}
	}
	return Result{Provider: name, Data: data}
}

// Failure builds a failed Result from err.
func Failure(name Name, err error) Result {
	return Result{Provider: name, Err: NewError(name, err)}
}
