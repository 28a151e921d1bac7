// Package wikipedia provides the Wikipedia adapter (summary bio and link)
// and the long-form biography used for post-commit enrichment.
package wikipedia

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

const (
	baseURL            = "https://en.wikipedia.org/api/rest_v1"
	maxBioParagraphs   = 4
	disambiguationType = "disambiguation"
)

// Client is a Wikipedia REST API client.
type Client struct {
	fetcher *provider.Fetcher
	baseURL string
}

// New creates a Wikipedia client.
func New() *Client {
	return &Client{
		fetcher: provider.NewFetcher(&http.Client{Timeout: provider.APITimeout}),
		baseURL: baseURL,
	}
}

// Name implements provider.Adapter.
func (c *Client) Name() provider.Name {
	return provider.Wikipedia
}

// Fetch implements provider.Adapter using the page summary endpoint.
func (c *Client) Fetch(ctx context.Context, q provider.Query) (*provider.Data, error) {
	s, err := c.summary(ctx, q.ArtistName)
	if err != nil {
		return nil, err
	}

	data := &provider.Data{Bio: strings.TrimSpace(s.Extract)}
	data.AddURL(model.PlatformWikipedia, s.ContentURLs.Desktop.Page)
	if s.Thumbnail.Source != "" {
		data.ImageURL = s.Thumbnail.Source
	}
	return data, nil
}

// Biography returns the lead section of the artist's article as plain text.
func (c *Client) Biography(ctx context.Context, name string) (string, error) {
	body, err := c.fetcher.Get(ctx, c.baseURL+"/page/html/"+title(name), nil)
	if err != nil {
		return "", fmt.Errorf("fetching article: %w", err)
	}

	doc, err := scrape.Parse(body)
	if err != nil {
		return "", err
	}

	bio := leadParagraphs(doc)
	if bio == "" {
		return "", fmt.Errorf("lead section: %w", provider.ErrSelectorNotFound)
	}
	return bio, nil
}

func (c *Client) summary(ctx context.Context, name string) (*summary, error) {
	var s summary
	if err := c.fetcher.GetJSON(ctx, c.baseURL+"/page/summary/"+title(name), nil, &s); err != nil {
		return nil, fmt.Errorf("fetching summary: %w", err)
	}
	if s.Type == disambiguationType || s.Extract == "" {
		return nil, provider.ErrNotFound
	}
	return &s, nil
}

// title converts an artist name to a Wikipedia page title path segment.
func title(name string) string {
	return url.PathEscape(strings.ReplaceAll(strings.TrimSpace(name), " ", "_"))
}

// leadParagraphs collects the non-empty paragraphs of section 0, dropping
// citation markers.
func leadParagraphs(doc *html.Node) string {
	root := scrape.Find(doc, func(n *html.Node) bool {
		return n.Data == "section" && scrape.Attr(n, "data-mw-section-id") == "0"
	})
	if root == nil {
		root = doc
	}

	for _, sup := range scrape.FindAll(root, scrape.Tag("sup")) {
		if sup.Parent != nil {
			sup.Parent.RemoveChild(sup)
		}
	}

	var paras []string
	for _, p := range scrape.FindAll(root, scrape.Tag("p")) {
		text := scrape.Text(p)
		if text == "" {
			continue
		}
		paras = append(paras, text)
		if len(paras) == maxBioParagraphs {
			break
		}
	}
	return strings.Join(paras, "\n\n")
}

type summary struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	Extract   string `json:"extract"`
	Thumbnail struct {
		Source string `json:"source"`
	} `json:"thumbnail"`
	ContentURLs struct {
		Desktop struct {
			Page string `json:"page"`
		} `json:"desktop"`
	} `json:"content_urls"`
}
