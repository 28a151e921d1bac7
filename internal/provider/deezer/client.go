// Package deezer provides the Deezer adapter: fan counts and a fallback image.
package deezer

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

const baseURL = "https://api.deezer.com"

// Client is a Deezer public API client. No credentials are needed.
type Client struct {
	fetcher *provider.Fetcher
	baseURL string
}

// New creates a Deezer client.
func New() *Client {
	return &Client{
		fetcher: provider.NewFetcher(&http.Client{Timeout: provider.APITimeout}),
		baseURL: baseURL,
	}
}

// Name implements provider.Adapter.
func (c *Client) Name() provider.Name {
	return provider.Deezer
}

// Fetch implements provider.Adapter.
func (c *Client) Fetch(ctx context.Context, q provider.Query) (*provider.Data, error) {
	params := url.Values{"q": {q.ArtistName}, "limit": {"5"}}

	var resp searchResponse
	if err := c.fetcher.GetJSON(ctx, c.baseURL+"/search/artist?"+params.Encode(), nil, &resp); err != nil {
		return nil, fmt.Errorf("searching artist: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("deezer error %d: %s", resp.Error.Code, resp.Error.Message)
	}

	var match *artist
	for i := range resp.Data {
		if strings.EqualFold(resp.Data[i].Name, strings.TrimSpace(q.ArtistName)) {
			match = &resp.Data[i]
			break
		}
	}
	if match == nil {
		return nil, provider.ErrNotFound
	}

	data := &provider.Data{
		Name:     match.Name,
		ImageURL: match.PictureXL,
	}
	data.AddPlatformID(model.PlatformDeezer, strconv.FormatInt(match.ID, 10))
	data.AddURL(model.PlatformDeezer, match.Link)
	data.AddMetric(model.PlatformDeezer, model.MetricFans, float64(match.NbFan))
	return data, nil
}

type artist struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Link      string `json:"link"`
	PictureXL string `json:"picture_xl"`
	NbAlbum   int    `json:"nb_album"`
	NbFan     int64  `json:"nb_fan"`
}

type searchResponse struct {
	Data  []artist `json:"data"`
	Total int      `json:"total"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error,omitempty"`
}
