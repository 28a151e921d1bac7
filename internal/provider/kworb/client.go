// Package kworb scrapes kworb.net for Spotify stream counts and monthly listeners.
package kworb

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/justestif/artist-pulse/internal/model"
	"github.com/justestif/artist-pulse/internal/provider"
	"github.com/justestif/artist-pulse/internal/provider/scrape"
)

const baseURL = "https://kworb.net/spotify"

// Client scrapes kworb.net pages keyed by Spotify artist id.
type Client struct {
	fetcher *provider.Fetcher
	baseURL string
}

// New creates a kworb scraper.
func New() *Client {
	return &Client{
		fetcher: provider.NewFetcher(&http.Client{Timeout: provider.ScrapeTimeout}),
		baseURL: baseURL,
	}
}

// Name implements provider.Adapter.
func (c *Client) Name() provider.Name {
	return provider.Kworb
}

// Fetch implements provider.Adapter. The stream totals page is required; the
// monthly listeners chart only lists the top few thousand artists and is
// optional.
func (c *Client) Fetch(ctx context.Context, q provider.Query) (*provider.Data, error) {
	if q.SpotifyID == "" {
		return nil, provider.ErrNotFound
	}

	songsURL := fmt.Sprintf("%s/artist/%s_songs.html", c.baseURL, url.PathEscape(q.SpotifyID))
	body, err := c.fetcher.Get(ctx, songsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching songs page: %w", err)
	}
	doc, err := scrape.Parse(body)
	if err != nil {
		return nil, err
	}

	totals, err := parseTotals(doc)
	if err != nil {
		return nil, err
	}

	data := &provider.Data{}
	data.AddURL(model.PlatformKworb, songsURL)
	data.AddMetric(model.PlatformKworb, model.MetricTotalStreams, totals.streams)
	data.AddMetric(model.PlatformKworb, model.MetricDailyStreams, totals.daily)

	if body, err := c.fetcher.Get(ctx, c.baseURL+"/listeners.html", nil); err == nil {
		if doc, err := scrape.Parse(body); err == nil {
			if listeners, ok := findListeners(doc, q.SpotifyID); ok {
				data.AddMetric(model.PlatformKworb, model.MetricMonthlyListeners, listeners)
			}
		}
	}

	return data, nil
}

type totals struct {
	streams float64
	daily   float64
}

// parseTotals reads the summary table whose rows are labelled "Streams" and
// "Daily"; the first numeric column is the all-credits total.
func parseTotals(doc *html.Node) (totals, error) {
	var t totals
	var found int

	for _, row := range scrape.FindAll(doc, scrape.Tag("tr")) {
		cells := scrape.FindAll(row, scrape.Tag("td"))
		if len(cells) < 2 {
			continue
		}
		label := strings.ToLower(scrape.Text(cells[0]))
		if label != "streams" && label != "daily" {
			continue
		}
		v, err := scrape.ParseNumber(scrape.Text(cells[1]))
		if err != nil {
			continue
		}
		if label == "streams" {
			t.streams = v
		} else {
			t.daily = v
		}
		found++
	}

	if found == 0 {
		return t, fmt.Errorf("streams summary: %w", provider.ErrSelectorNotFound)
	}
	return t, nil
}

// findListeners locates the chart row linking to the artist's page.
func findListeners(doc *html.Node, spotifyID string) (float64, bool) {
	for _, row := range scrape.FindAll(doc, scrape.Tag("tr")) {
		link := scrape.Find(row, scrape.Tag("a"))
		if link == nil || !strings.Contains(scrape.Attr(link, "href"), spotifyID) {
			continue
		}
		cells := scrape.FindAll(row, scrape.Tag("td"))
		if len(cells) < 3 {
			return 0, false
		}
		v, err := scrape.ParseNumber(scrape.Text(cells[2]))
		return v, err == nil
	}
	return 0, false
}
