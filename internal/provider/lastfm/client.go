// Package lastfm provides the Last.fm artist adapter: biography, tags and
// listener statistics.
package lastfm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/justestif/artist-pulse/internal/model"
	"github.com/justestif/artist-pulse/internal/provider"
)

const baseURL = "https://ws.audioscrobbler.com/2.0/"

// Last.fm API error codes.
const (
	errCodeInvalidParams = 6
	errCodeInvalidAPIKey = 10
	errCodeRateLimited   = 29
)

// Sentinel errors.
var (
	// ErrInvalidAPIKey is returned when the API key is invalid.
	ErrInvalidAPIKey = errors.New("invalid API key")
)

// Config holds Last.fm API configuration.
type Config struct {
	APIKey string
}

// Client is a Last.fm API client.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	retryBase  time.Duration
}

// NewClient creates a new Last.fm API client from the provided configuration.
func NewClient(cfg Config) *Client {
	return &Client{
		apiKey: cfg.APIKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL:   baseURL,
		retryBase: provider.DefaultRetryBase,
	}
}

// Name implements provider.Adapter.
func (c *Client) Name() provider.Name {
	return provider.LastFM
}

// Fetch implements provider.Adapter. The biography, listener counts and
// profile link come from artist.getInfo, genres from artist.getTopTags.
func (c *Client) Fetch(ctx context.Context, q provider.Query) (*provider.Data, error) {
	if c.apiKey == "" {
		return nil, provider.ErrNotConfigured
	}

	info, err := c.GetInfo(ctx, q.ArtistName)
	if err != nil {
		return nil, err
	}

	data := &provider.Data{
		Name: info.Name,
		Bio:  CleanBio(info.Bio.Summary),
		MBID: info.MBID,
	}
	data.AddURL(model.PlatformLastFM, info.URL)
	if n, err := strconv.ParseFloat(info.Stats.Listeners, 64); err == nil {
		data.AddMetric(model.PlatformLastFM, model.MetricListeners, n)
	}
	if n, err := strconv.ParseFloat(info.Stats.Playcount, 64); err == nil {
		data.AddMetric(model.PlatformLastFM, model.MetricPlaycount, n)
	}

	// Top tags are a richer genre source than the handful embedded in getInfo.
	tags, err := c.GetTopTags(ctx, q.ArtistName)
	if err != nil || len(tags) == 0 {
		tags = info.Tags.Tag
	}
	for i, tag := range tags {
		if i == maxGenres {
			break
		}
		data.Genres = append(data.Genres, strings.ToLower(tag.Name))
	}

	return data, nil
}

const maxGenres = 5

// GetInfo fetches artist.getInfo for artist.
func (c *Client) GetInfo(ctx context.Context, artist string) (*ArtistInfo, error) {
	params := url.Values{
		"method":      {"artist.getInfo"},
		"artist":      {artist},
		"autocorrect": {"1"},
		"format":      {"json"},
		"api_key":     {c.apiKey},
	}

	body, err := c.doRequest(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("fetching artist info: %w", err)
	}

	var resp artistInfoResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing artist info response: %w", err)
	}
	if resp.Artist.Name == "" {
		return nil, provider.ErrNotFound
	}
	return &resp.Artist, nil
}

// GetTopTags fetches the artist's top tags. Returns an empty slice (not nil)
// if no tags are found.
func (c *Client) GetTopTags(ctx context.Context, artist string) ([]Tag, error) {
	params := url.Values{
		"method":      {"artist.getTopTags"},
		"artist":      {artist},
		"autocorrect": {"1"},
		"format":      {"json"},
		"api_key":     {c.apiKey},
	}

	body, err := c.doRequest(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("fetching artist tags: %w", err)
	}

	var resp artistTagsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing artist tags response: %w", err)
	}

	tags := resp.TopTags.Tag
	if tags == nil {
		tags = []Tag{}
	}
	return tags, nil
}

// doRequest performs an HTTP GET request with retry on rate limit.
// Retries up to 3 times with exponential backoff (1s, 2s, 4s).
func (c *Client) doRequest(ctx context.Context, params url.Values) ([]byte, error) {
	reqURL := c.baseURL + "?" + params.Encode()

	var body []byte
	err := provider.Retry(ctx, provider.DefaultRetries, c.retryBase, func(ctx context.Context) error {
		b, err := c.doSingleRequest(ctx, reqURL)
		if err != nil {
			if errors.Is(err, provider.ErrRateLimited) {
				return err
			}
			return provider.Permanent(err)
		}
		body = b
		return nil
	})
	return body, err
}

// doSingleRequest performs a single HTTP request.
func (c *Client) doSingleRequest(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("User-Agent", provider.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	// Check for API error in response
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != 0 {
		switch apiErr.Error {
		case errCodeRateLimited:
			return nil, provider.ErrRateLimited
		case errCodeInvalidAPIKey:
			return nil, ErrInvalidAPIKey
		case errCodeInvalidParams:
			return nil, provider.ErrNotFound
		default:
			return nil, fmt.Errorf("API error %d: %s", apiErr.Error, apiErr.Message)
		}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &provider.StatusError{StatusCode: resp.StatusCode, URL: req.URL.Redacted()}
	}

	return body, nil
}

var readMoreLink = regexp.MustCompile(`(?s)\s*<a href="[^"]*">Read more on Last\.fm</a>\.?`)

// CleanBio strips the trailing "Read more on Last.fm" anchor Last.fm appends
// to every summary.
func CleanBio(s string) string {
	return strings.TrimSpace(readMoreLink.ReplaceAllString(s, ""))
}
