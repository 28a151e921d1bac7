// Package viberate scrapes the artist's Viberate page, which only renders
// its statistics client-side.
package viberate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/justestif/artist-pulse/internal/model"
	"github.com/justestif/artist-pulse/internal/provider"
	"github.com/justestif/artist-pulse/internal/provider/scrape"
)

const (
	baseURL      = "https://www.viberate.com/artist"
	waitSelector = ".artist-rank"
)

// Renderer returns the rendered HTML of a page once waitSelector is visible.
type Renderer interface {
	RenderHTML(ctx context.Context, pageURL, waitSelector string) (string, error)
}

// Client is a Viberate page scraper.
type Client struct {
	renderer  Renderer
	baseURL   string
	retryBase time.Duration
}

// New creates a Viberate scraper rendering pages through r.
func New(r Renderer) *Client {
	return &Client{renderer: r, baseURL: baseURL, retryBase: provider.DefaultRetryBase}
}

// Name implements provider.Adapter.
func (c *Client) Name() provider.Name {
	return provider.Viberate
}

// Fetch implements provider.Adapter. Rendering is retried because the
// statistics widgets load late and intermittently.
func (c *Client) Fetch(ctx context.Context, q provider.Query) (*provider.Data, error) {
	slug := q.Slug
	if slug == "" {
		slug = model.Slugify(q.ArtistName)
	}
	pageURL := fmt.Sprintf("%s/%s/", c.baseURL, slug)

	var data *provider.Data
	err := provider.Retry(ctx, provider.DefaultRetries, c.retryBase, func(ctx context.Context) error {
		doc, err := c.renderer.RenderHTML(ctx, pageURL, waitSelector)
		if err != nil {
			return err
		}
		root, err := scrape.Parse([]byte(doc))
		if err != nil {
			return provider.Permanent(err)
		}
		d, err := parseArtistPage(root)
		if err != nil {
			return err
		}
		data = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	data.AddURL(model.PlatformViberate, pageURL)
	return data, nil
}

func parseArtistPage(doc *html.Node) (*provider.Data, error) {
	rank := scrape.Find(doc, scrape.Class("artist-rank"))
	if rank == nil {
		return nil, fmt.Errorf("artist rank: %w", provider.ErrSelectorNotFound)
	}
	value := scrape.Find(rank, scrape.Class("value"))
	if value == nil {
		value = rank
	}
	v, err := scrape.ParseNumber(scrape.Text(value))
	if err != nil {
		return nil, fmt.Errorf("artist rank: %w", err)
	}

	data := &provider.Data{}
	data.AddMetric(model.PlatformViberate, model.MetricRank, v)

	for _, n := range scrape.FindAll(doc, scrape.Class("genre")) {
		if g := strings.ToLower(scrape.Text(n)); g != "" {
			data.Genres = append(data.Genres, g)
		}
	}
	return data, nil
}
