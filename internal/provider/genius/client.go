// Package genius provides the Genius adapter, resolving the artist's Genius
// id and profile link from song search hits.
package genius

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/justestif/artist-pulse/internal/model"
	"github.com/justestif/artist-pulse/internal/provider"
)

const baseURL = "https://api.genius.com"

// Client is a Genius API client.
type Client struct {
	fetcher *provider.Fetcher
	baseURL string
	token   string
}

// New creates a Genius client authenticating with an access token.
func New(token string) *Client {
	return &Client{
		fetcher: provider.NewFetcher(&http.Client{Timeout: provider.APITimeout}),
		baseURL: baseURL,
		token:   token,
	}
}

// Name implements provider.Adapter.
func (c *Client) Name() provider.Name {
	return provider.Genius
}

// Fetch implements provider.Adapter.
func (c *Client) Fetch(ctx context.Context, q provider.Query) (*provider.Data, error) {
	if c.token == "" {
		return nil, provider.ErrNotConfigured
	}

	header := http.Header{"Authorization": {"Bearer " + c.token}}
	params := url.Values{"q": {q.ArtistName}}

	var resp searchResponse
	if err := c.fetcher.GetJSON(ctx, c.baseURL+"/search?"+params.Encode(), header, &resp); err != nil {
		return nil, fmt.Errorf("searching songs: %w", err)
	}

	name := strings.TrimSpace(q.ArtistName)
	for _, hit := range resp.Response.Hits {
		a := hit.Result.PrimaryArtist
		if !strings.EqualFold(a.Name, name) {
			continue
		}
		data := &provider.Data{Name: a.Name}
		data.AddPlatformID(model.PlatformGenius, strconv.FormatInt(a.ID, 10))
		data.AddURL(model.PlatformGenius, a.URL)
		return data, nil
	}
	return nil, provider.ErrNotFound
}

type searchResponse struct {
	Response struct {
		Hits []struct {
			Type   string `json:"type"`
			Result struct {
				PrimaryArtist struct {
					ID       int64  `json:"id"`
					Name     string `json:"name"`
					URL      string `json:"url"`
					ImageURL string `json:"image_url"`
				} `json:"primary_artist"`
			} `json:"result"`
		} `json:"hits"`
	} `json:"response"`
}
