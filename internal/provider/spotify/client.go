// Package spotify provides the Spotify Web API adapter. Spotify is the
// required provider: an artist unknown to Spotify cannot be ingested.
package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/justestif/artist-pulse/internal/model"
	"github.com/justestif/artist-pulse/internal/provider"
)

// ErrMissingCredentials is returned when the client id or secret is empty.
var ErrMissingCredentials = errors.New("missing spotify client id or secret")

const (
	defaultMarket = "US"
	maxTopTracks  = 10
)

// Config holds Spotify application credentials.
type Config struct {
	ClientID     string
	ClientSecret string
	Market       string
}

// Client wraps the Spotify API client and implements provider.Adapter.
type Client struct {
	api    *spotify.Client
	market string
}

// New creates a new Spotify adapter around an authenticated API client.
func New(api *spotify.Client, market string) *Client {
	if market == "" {
		market = defaultMarket
	}
	return &Client{api: api, market: market}
}

// NewClientCredentials authenticates with the client-credentials flow.
// The returned client refreshes its token automatically.
func NewClientCredentials(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, ErrMissingCredentials
	}

	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	if _, err := cc.Token(ctx); err != nil {
		return nil, fmt.Errorf("getting spotify token: %w", err)
	}

	hc := cc.Client(context.WithoutCancel(ctx))
	hc.Timeout = provider.APITimeout
	return New(spotify.New(hc, spotify.WithRetry(true)), cfg.Market), nil
}

// Name implements provider.Adapter.
func (c *Client) Name() provider.Name {
	return provider.Spotify
}

// Fetch implements provider.Adapter. Top tracks are best effort: a failure
// there still returns the artist.
func (c *Client) Fetch(ctx context.Context, q provider.Query) (*provider.Data, error) {
	if q.SpotifyID == "" {
		return nil, provider.ErrNotFound
	}

	artist, err := c.api.GetArtist(ctx, spotify.ID(q.SpotifyID))
	if err != nil {
		if isNotFound(err) {
			return nil, provider.ErrNotFound
		}
		return nil, fmt.Errorf("getting artist: %w", err)
	}

	data := convertArtist(artist)

	tracks, err := c.api.GetArtistsTopTracks(ctx, artist.ID, c.market)
	if err == nil {
		for i, t := range tracks {
			if i == maxTopTracks {
				break
			}
			data.Tracks = append(data.Tracks, convertTrack(t))
		}
	}

	return data, nil
}

func isNotFound(err error) bool {
	var se spotify.Error
	if errors.As(err, &se) {
		return se.Status == http.StatusNotFound || se.Status == http.StatusBadRequest
	}
	return false
}

// convertArtist converts a Spotify FullArtist to provider data.
func convertArtist(a *spotify.FullArtist) *provider.Data {
	data := &provider.Data{
		Name:     a.Name,
		ImageURL: firstImage(a.Images),
		Genres:   append([]string(nil), a.Genres...),
	}
	data.AddPlatformID(model.PlatformSpotify, a.ID.String())
	if u, ok := a.ExternalURLs["spotify"]; ok {
		data.AddURL(model.PlatformSpotify, u)
	} else if a.ID != "" {
		data.AddURL(model.PlatformSpotify, "https://open.spotify.com/artist/"+a.ID.String())
	}
	data.AddMetric(model.PlatformSpotify, model.MetricFollowers, float64(a.Followers.Count))
	data.AddMetric(model.PlatformSpotify, model.MetricPopularity, float64(a.Popularity))
	return data
}

// convertTrack converts a Spotify FullTrack to a model.Track.
func convertTrack(t spotify.FullTrack) model.Track {
	return model.Track{
		Platform:     model.PlatformSpotify,
		TrackID:      t.ID.String(),
		Title:        t.Name,
		ThumbnailURL: firstImage(t.Album.Images),
		Popularity:   int(t.Popularity),
		ReleaseDate:  parseReleaseDate(t.Album.ReleaseDate),
	}
}

// firstImage returns the largest image URL; Spotify orders images widest first.
func firstImage(images []spotify.Image) string {
	if len(images) == 0 {
		return ""
	}
	return images[0].URL
}

// parseReleaseDate handles Spotify's day, month and year precisions.
// Returns nil when the date is missing or malformed.
func parseReleaseDate(s string) *time.Time {
	for _, layout := range []string{"2006-01-02", "2006-01", "2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
