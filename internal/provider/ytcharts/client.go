// Package ytcharts scrapes the YouTube Charts weekly top artists chart for
// the artist's current rank.
package ytcharts

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
	chartURL     = "https://charts.youtube.com/charts/TopArtists/global/weekly"
	waitSelector = "ytmc-entry-row"
)

// Renderer returns the rendered HTML of a page once waitSelector is visible.
type Renderer interface {
	RenderHTML(ctx context.Context, pageURL, waitSelector string) (string, error)
}

// Client is a YouTube Charts scraper.
type Client struct {
	renderer  Renderer
	chartURL  string
	retryBase time.Duration
}

// New creates a YouTube Charts scraper rendering pages through r.
func New(r Renderer) *Client {
	return &Client{renderer: r, chartURL: chartURL, retryBase: provider.DefaultRetryBase}
}

// Name implements provider.Adapter.
func (c *Client) Name() provider.Name {
	return provider.YouTubeCharts
}

// Fetch implements provider.Adapter. An artist absent from the chart is
// reported as not found.
func (c *Client) Fetch(ctx context.Context, q provider.Query) (*provider.Data, error) {
	var doc *html.Node
	err := provider.Retry(ctx, provider.DefaultRetries, c.retryBase, func(ctx context.Context) error {
		page, err := c.renderer.RenderHTML(ctx, c.chartURL, waitSelector)
		if err != nil {
			return err
		}
		root, err := scrape.Parse([]byte(page))
		if err != nil {
			return provider.Permanent(err)
		}
		if scrape.Find(root, scrape.Tag(waitSelector)) == nil {
			return fmt.Errorf("chart rows: %w", provider.ErrSelectorNotFound)
		}
		doc = root
		return nil
	})
	if err != nil {
		return nil, err
	}

	rank, ok := findRank(doc, q.ArtistName)
	if !ok {
		return nil, provider.ErrNotFound
	}

	data := &provider.Data{}
	data.AddMetric(model.PlatformYouTubeCharts, model.MetricChartRank, rank)
	data.AddURL(model.PlatformYouTubeCharts, c.chartURL)
	return data, nil
}

// findRank scans chart rows for an entity title matching name.
func findRank(doc *html.Node, name string) (float64, bool) {
	name = strings.TrimSpace(name)
	for _, row := range scrape.FindAll(doc, scrape.Tag(waitSelector)) {
		title := scrape.Find(row, byID("entity-title"))
		if title == nil || !strings.EqualFold(scrape.Text(title), name) {
			continue
		}
		rank := scrape.Find(row, byID("rank"))
		if rank == nil {
			return 0, false
		}
		v, err := scrape.ParseNumber(scrape.Text(rank))
		return v, err == nil
	}
	return 0, false
}

func byID(id string) func(*html.Node) bool {
	return func(n *html.Node) bool { return scrape.Attr(n, "id") == id }
}
