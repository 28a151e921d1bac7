// Package youtube provides the YouTube Data API v3 adapter: channel
// statistics and the artist's latest videos.
package youtube

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/justestif/artist-pulse/internal/model"
	"github.com/justestif/artist-pulse/internal/provider"
)

const (
	baseURL   = "https://www.googleapis.com/youtube/v3"
	maxVideos = 10
)

// Client is a YouTube Data API client.
type Client struct {
	fetcher *provider.Fetcher
	baseURL string
	apiKey  string
}

// New creates a YouTube client authenticating with an API key.
func New(apiKey string) *Client {
	return &Client{
		fetcher: provider.NewFetcher(&http.Client{Timeout: provider.APITimeout}),
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

// Name implements provider.Adapter.
func (c *Client) Name() provider.Name {
	return provider.YouTube
}

// Fetch implements provider.Adapter. Video lookup failures degrade to a
// result without videos.
func (c *Client) Fetch(ctx context.Context, q provider.Query) (*provider.Data, error) {
	if c.apiKey == "" {
		return nil, provider.ErrNotConfigured
	}

	channelID, err := c.findChannel(ctx, q.ArtistName)
	if err != nil {
		return nil, err
	}

	ch, err := c.channel(ctx, channelID)
	if err != nil {
		return nil, err
	}

	data := &provider.Data{}
	data.AddPlatformID(model.PlatformYouTube, ch.ID)
	if ch.Snippet.CustomURL != "" {
		data.AddURL(model.PlatformYouTube, "https://www.youtube.com/"+ch.Snippet.CustomURL)
	} else {
		data.AddURL(model.PlatformYouTube, "https://www.youtube.com/channel/"+ch.ID)
	}
	addCount(data, model.MetricSubscribers, ch.Statistics.SubscriberCount)
	addCount(data, model.MetricTotalViews, ch.Statistics.ViewCount)
	addCount(data, model.MetricVideoCount, ch.Statistics.VideoCount)

	if videos, err := c.latestVideos(ctx, ch.ID); err == nil {
		data.Videos = videos
	}
	return data, nil
}

func (c *Client) findChannel(ctx context.Context, name string) (string, error) {
	params := url.Values{
		"part":       {"snippet"},
		"type":       {"channel"},
		"q":          {name},
		"maxResults": {"1"},
	}

	var resp searchResponse
	if err := c.get(ctx, "search", params, &resp); err != nil {
		return "", fmt.Errorf("searching channel: %w", err)
	}
	if len(resp.Items) == 0 || resp.Items[0].ID.ChannelID == "" {
		return "", provider.ErrNotFound
	}
	return resp.Items[0].ID.ChannelID, nil
}

func (c *Client) channel(ctx context.Context, id string) (*channel, error) {
	params := url.Values{
		"part": {"snippet,statistics"},
		"id":   {id},
	}

	var resp channelsResponse
	if err := c.get(ctx, "channels", params, &resp); err != nil {
		return nil, fmt.Errorf("getting channel: %w", err)
	}
	if len(resp.Items) == 0 {
		return nil, provider.ErrNotFound
	}
	return &resp.Items[0], nil
}

func (c *Client) latestVideos(ctx context.Context, channelID string) ([]model.Video, error) {
	params := url.Values{
		"part":       {"snippet"},
		"type":       {"video"},
		"channelId":  {channelID},
		"order":      {"date"},
		"maxResults": {strconv.Itoa(maxVideos)},
	}

	var search searchResponse
	if err := c.get(ctx, "search", params, &search); err != nil {
		return nil, fmt.Errorf("searching videos: %w", err)
	}

	ids := make([]string, 0, len(search.Items))
	for _, item := range search.Items {
		if item.ID.VideoID != "" {
			ids = append(ids, item.ID.VideoID)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	var resp videosResponse
	if err := c.get(ctx, "videos", url.Values{"part": {"snippet,statistics"}, "id": {strings.Join(ids, ",")}}, &resp); err != nil {
		return nil, fmt.Errorf("getting videos: %w", err)
	}

	videos := make([]model.Video, 0, len(resp.Items))
	for _, v := range resp.Items {
		videos = append(videos, convertVideo(v))
	}
	return videos, nil
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, v any) error {
	params.Set("key", c.apiKey)
	return c.fetcher.GetJSON(ctx, c.baseURL+"/"+endpoint+"?"+params.Encode(), nil, v)
}

func convertVideo(v video) model.Video {
	out := model.Video{
		Platform:     model.PlatformYouTube,
		VideoID:      v.ID,
		Title:        v.Snippet.Title,
		ThumbnailURL: v.Snippet.Thumbnails.best(),
		ViewCount:    parseCount(v.Statistics.ViewCount),
		LikeCount:    parseCount(v.Statistics.LikeCount),
		CommentCount: parseCount(v.Statistics.CommentCount),
	}
	if t, err := time.Parse(time.RFC3339, v.Snippet.PublishedAt); err == nil {
		out.PublishedAt = &t
	}
	return out
}

// addCount records a metric when the API returned a parseable count.
// Hidden subscriber counts come back empty and are skipped.
func addCount(d *provider.Data, t model.MetricType, s string) {
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		d.AddMetric(model.PlatformYouTube, t, n)
	}
}

func parseCount(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}
