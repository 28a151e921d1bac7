// Package musicbrainz provides the MusicBrainz adapter: identity, origin and
// social links.
package musicbrainz

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/justestif/artist-pulse/internal/model"
	"github.com/justestif/artist-pulse/internal/provider"
)

const baseURL = "https://musicbrainz.org/ws/2"

// Client is a MusicBrainz web service client.
type Client struct {
	fetcher   *provider.Fetcher
	baseURL   string
	userAgent string
}

// New creates a MusicBrainz client. MusicBrainz requires an identifying user agent.
func New(userAgent string) *Client {
	if userAgent == "" {
		userAgent = provider.UserAgent
	}
	return &Client{
		fetcher:   provider.NewFetcher(&http.Client{Timeout: provider.APITimeout}),
		baseURL:   baseURL,
		userAgent: userAgent,
	}
}

// Name implements provider.Adapter.
func (c *Client) Name() provider.Name {
	return provider.MusicBrainz
}

// Fetch implements provider.Adapter. The artist is resolved by MBID when
// known, then by the artist linked to its Spotify profile, and otherwise by
// the best-scoring name search hit.
func (c *Client) Fetch(ctx context.Context, q provider.Query) (*provider.Data, error) {
	mbid := q.MBID
	if mbid == "" && q.SpotifyID != "" {
		id, err := c.bySpotifyID(ctx, q.SpotifyID)
		if err != nil && !errors.Is(err, provider.ErrNotFound) {
			return nil, err
		}
		mbid = id
	}
	if mbid == "" {
		hit, err := c.search(ctx, q.ArtistName)
		if err != nil {
			return nil, err
		}
		mbid = hit.ID
	}

	a, err := c.lookup(ctx, mbid)
	if err != nil {
		return nil, err
	}
	return convertArtist(a), nil
}

// bySpotifyID returns the MBID of the artist whose url relations include
// the Spotify profile.
func (c *Client) bySpotifyID(ctx context.Context, spotifyID string) (string, error) {
	params := url.Values{
		"resource": {"https://open.spotify.com/artist/" + spotifyID},
		"inc":      {"artist-rels"},
		"fmt":      {"json"},
	}

	var resp urlResponse
	if err := c.fetcher.GetJSON(ctx, c.baseURL+"/url?"+params.Encode(), c.header(), &resp); err != nil {
		return "", fmt.Errorf("resolving spotify id %s: %w", spotifyID, err)
	}
	for _, rel := range resp.Relations {
		if rel.TargetType == "artist" && rel.Artist != nil && rel.Artist.ID != "" {
			return rel.Artist.ID, nil
		}
	}
	return "", provider.ErrNotFound
}

func (c *Client) search(ctx context.Context, name string) (*artist, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, provider.Permanent(provider.ErrNotFound)
	}

	params := url.Values{
		"query": {fmt.Sprintf("artist:%q", name)},
		"limit": {"5"},
		"fmt":   {"json"},
	}

	var resp searchResponse
	if err := c.fetcher.GetJSON(ctx, c.baseURL+"/artist?"+params.Encode(), c.header(), &resp); err != nil {
		return nil, fmt.Errorf("searching artist: %w", err)
	}

	var best *artist
	for i := range resp.Artists {
		a := &resp.Artists[i]
		if strings.EqualFold(a.Name, name) && (best == nil || a.Score > best.Score) {
			best = a
		}
	}
	if best == nil && len(resp.Artists) > 0 && resp.Artists[0].Score >= minScore {
		best = &resp.Artists[0]
	}
	if best == nil {
		return nil, provider.ErrNotFound
	}
	return best, nil
}

// minScore is the search score accepted when no hit matches the name exactly.
const minScore = 90

func (c *Client) lookup(ctx context.Context, mbid string) (*artist, error) {
	params := url.Values{
		"inc": {"url-rels"},
		"fmt": {"json"},
	}

	var a artist
	if err := c.fetcher.GetJSON(ctx, c.baseURL+"/artist/"+url.PathEscape(mbid)+"?"+params.Encode(), c.header(), &a); err != nil {
		return nil, fmt.Errorf("looking up artist %s: %w", mbid, err)
	}
	return &a, nil
}

func (c *Client) header() http.Header {
	return http.Header{
		"User-Agent": {c.userAgent},
		"Accept":     {"application/json"},
	}
}

func convertArtist(a *artist) *provider.Data {
	data := &provider.Data{
		Name:    a.Name,
		Country: a.Country,
		Gender:  strings.ToLower(a.Gender),
		MBID:    a.ID,
	}
	if data.Country == "" && len(a.Area.ISO31661) > 0 {
		data.Country = a.Area.ISO31661[0]
	}
	if a.Type == "Person" {
		data.BirthDate = parseLifeSpan(a.LifeSpan.Begin)
	}

	data.AddURL(model.PlatformMusicBrainz, "https://musicbrainz.org/artist/"+a.ID)

	seen := map[model.Platform]bool{model.PlatformMusicBrainz: true}
	for _, rel := range a.Relations {
		p, ok := classifyRelation(rel.Type, rel.URL.Resource)
		if !ok || seen[p] {
			continue
		}
		seen[p] = true
		data.AddURL(p, rel.URL.Resource)
	}
	return data
}

// classifyRelation maps a MusicBrainz url relation onto a platform.
func classifyRelation(relType, resource string) (model.Platform, bool) {
	u, err := url.Parse(resource)
	if err != nil || u.Host == "" {
		return "", false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")

	switch {
	case strings.HasSuffix(host, "instagram.com"):
		return model.PlatformInstagram, true
	case strings.HasSuffix(host, "tiktok.com"):
		return model.PlatformTikTok, true
	case host == "twitter.com" || host == "x.com":
		return model.PlatformTwitter, true
	case strings.HasSuffix(host, "facebook.com"):
		return model.PlatformFacebook, true
	case strings.HasSuffix(host, "soundcloud.com"):
		return model.PlatformSoundCloud, true
	case strings.HasSuffix(host, "youtube.com"):
		return model.PlatformYouTube, true
	case host == "music.apple.com" || host == "itunes.apple.com":
		return model.PlatformAppleMusic, true
	case strings.HasSuffix(host, "deezer.com"):
		return model.PlatformDeezer, true
	case strings.HasSuffix(host, "genius.com"):
		return model.PlatformGenius, true
	case strings.HasSuffix(host, "wikipedia.org"):
		return model.PlatformWikipedia, true
	case relType == "official homepage":
		return model.PlatformWebsite, true
	}
	return "", false
}

// parseLifeSpan accepts the full, month and year forms MusicBrainz uses.
func parseLifeSpan(s string) *time.Time {
	for _, layout := range []string{"2006-01-02", "2006-01", "2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
