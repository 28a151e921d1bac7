package musicbrainz

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/justestif/artist-pulse/internal/model"
	"github.com/justestif/artist-pulse/internal/provider"
)

const searchBody = `{
  "count": 2,
  "artists": [
    {"id": "other-id", "name": "Dua Lipa Tribute", "score": 95},
    {"id": "6f1a58bf-9b1b-49cf-a44a-6cefad7ae04f", "name": "Dua Lipa", "score": 100}
  ]
}`

const lookupBody = `{
  "id": "6f1a58bf-9b1b-49cf-a44a-6cefad7ae04f",
  "name": "Dua Lipa",
  "type": "Person",
  "gender": "Female",
  "country": "GB",
  "life-span": {"begin": "1995-08-22"},
  "relations": [
    {"type": "social network", "url": {"resource": "https://www.instagram.com/dualipa/"}},
    {"type": "social network", "url": {"resource": "https://twitter.com/DUALIPA"}},
    {"type": "official homepage", "url": {"resource": "https://www.dualipa.com/"}},
    {"type": "social network", "url": {"resource": "https://www.instagram.com/dualipa_backup/"}}
  ]
}`

func newTestClient(server *httptest.Server) *Client {
	c := New("artist-pulse-test/1.0 (test@example.com)")
	c.fetcher = &provider.Fetcher{Client: server.Client(), Retries: 1, RetryBase: time.Millisecond}
	c.baseURL = server.URL
	return c
}

func TestFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); !strings.HasPrefix(ua, "artist-pulse-test") {
			t.Errorf("User-Agent = %q", ua)
		}
		switch {
		case r.URL.Path == "/artist":
			w.Write([]byte(searchBody))
		case r.URL.Path == "/artist/6f1a58bf-9b1b-49cf-a44a-6cefad7ae04f":
			if inc := r.URL.Query().Get("inc"); inc != "url-rels" {
				t.Errorf("inc = %q", inc)
			}
			w.Write([]byte(lookupBody))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	data, err := newTestClient(server).Fetch(context.Background(), provider.Query{ArtistName: "Dua Lipa"})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if data.Country != "GB" {
		t.Errorf("Country = %q, want GB", data.Country)
	}
	if data.Gender != "female" {
		t.Errorf("Gender = %q, want female", data.Gender)
	}
	if data.BirthDate == nil || !data.BirthDate.Equal(time.Date(1995, 8, 22, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("BirthDate = %v", data.BirthDate)
	}
	if data.MBID != "6f1a58bf-9b1b-49cf-a44a-6cefad7ae04f" {
		t.Errorf("MBID = %q", data.MBID)
	}

	urls := map[model.Platform]string{}
	for _, u := range data.URLs {
		if _, dup := urls[u.Platform]; dup {
			t.Errorf("duplicate url for %s", u.Platform)
		}
		urls[u.Platform] = u.URL
	}
	want := map[model.Platform]string{
		model.PlatformMusicBrainz: "https://musicbrainz.org/artist/6f1a58bf-9b1b-49cf-a44a-6cefad7ae04f",
		model.PlatformInstagram:   "https://www.instagram.com/dualipa/",
		model.PlatformTwitter:     "https://twitter.com/DUALIPA",
		model.PlatformWebsite:     "https://www.dualipa.com/",
	}
	for p, u := range want {
		if urls[p] != u {
			t.Errorf("url[%s] = %q, want %q", p, urls[p], u)
		}
	}
}

func TestFetch_NoMatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"count": 1, "artists": [{"id": "x", "name": "Someone Else", "score": 40}]}`))
	}))
	defer server.Close()

	_, err := newTestClient(server).Fetch(context.Background(), provider.Query{ArtistName: "Dua Lipa"})
	if !errors.Is(err, provider.ErrNotFound) {
		t.Errorf("Fetch() error = %v, want ErrNotFound", err)
	}
}

func TestClassifyRelation(t *testing.T) {
	tests := []struct {
		relType  string
		resource string
		want     model.Platform
		wantOK   bool
	}{
		{"social network", "https://www.tiktok.com/@dualipa", model.PlatformTikTok, true},
		{"social network", "https://x.com/dualipa", model.PlatformTwitter, true},
		{"streaming", "https://music.apple.com/gb/artist/dua-lipa/1031397873", model.PlatformAppleMusic, true},
		{"official homepage", "https://dualipa.com", model.PlatformWebsite, true},
		{"discogs", "https://www.discogs.com/artist/123", "", false},
		{"social network", "not a url", "", false},
	}

	for _, tt := range tests {
		got, ok := classifyRelation(tt.relType, tt.resource)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("classifyRelation(%q, %q) = %q, %v; want %q, %v", tt.relType, tt.resource, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestFetch_BySpotifyID(t *testing.T) {
	const urlBody = `{
  "id": "b5b5e6a4-0000-4000-8000-000000000001",
  "resource": "https://open.spotify.com/artist/6M2wZ9GZgrQXHCFfjv46we",
  "relations": [
    {"type": "free streaming", "target-type": "artist", "artist": {"id": "6f1a58bf-9b1b-49cf-a44a-6cefad7ae04f", "name": "Dua Lipa"}}
  ]
}`

	tests := []struct {
		name       string
		urlStatus  int
		wantSearch bool
	}{
		{"linked profile skips search", http.StatusOK, false},
		{"unknown profile falls back to search", http.StatusNotFound, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var searched bool
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				switch r.URL.Path {
				case "/url":
					if res := r.URL.Query().Get("resource"); res != "https://open.spotify.com/artist/6M2wZ9GZgrQXHCFfjv46we" {
						t.Errorf("resource = %q", res)
					}
					if tt.urlStatus != http.StatusOK {
						http.Error(w, "not found", tt.urlStatus)
						return
					}
					w.Write([]byte(urlBody))
				case "/artist":
					searched = true
					w.Write([]byte(searchBody))
				case "/artist/6f1a58bf-9b1b-49cf-a44a-6cefad7ae04f":
					w.Write([]byte(lookupBody))
				default:
					http.NotFound(w, r)
				}
			}))
			defer server.Close()

			data, err := newTestClient(server).Fetch(context.Background(), provider.Query{
				ArtistName: "Dua Lipa",
				SpotifyID:  "6M2wZ9GZgrQXHCFfjv46we",
			})
			if err != nil {
				t.Fatalf("Fetch() error = %v", err)
			}
			if data.MBID != "6f1a58bf-9b1b-49cf-a44a-6cefad7ae04f" {
				t.Errorf("MBID = %q", data.MBID)
			}
			if searched != tt.wantSearch {
				t.Errorf("searched = %v, want %v", searched, tt.wantSearch)
			}
		})
	}
}

func TestFetch_ByMBID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/artist/6f1a58bf-9b1b-49cf-a44a-6cefad7ae04f" {
			t.Errorf("unexpected request %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(lookupBody))
	}))
	defer server.Close()

	data, err := newTestClient(server).Fetch(context.Background(), provider.Query{
		ArtistName: "Dua Lipa",
		SpotifyID:  "6M2wZ9GZgrQXHCFfjv46we",
		MBID:       "6f1a58bf-9b1b-49cf-a44a-6cefad7ae04f",
	})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if data.Country != "GB" {
		t.Errorf("Country = %q", data.Country)
	}
}
