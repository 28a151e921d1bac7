package youtube

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/justestif/artist-pulse/internal/model"
	"github.com/justestif/artist-pulse/internal/provider"
)

func TestFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("key") != "yt-key" {
			t.Errorf("key = %q", q.Get("key"))
		}
		switch {
		case r.URL.Path == "/search" && q.Get("type") == "channel":
			w.Write([]byte(`{"items": [{"id": {"kind": "youtube#channel", "channelId": "UC-J-KZfRV8c13fOCkhXdLiQ"}}]}`))
		case r.URL.Path == "/channels":
			w.Write([]byte(`{"items": [{"id": "UC-J-KZfRV8c13fOCkhXdLiQ",
				"snippet": {"title": "Dua Lipa", "customUrl": "@dualipa"},
				"statistics": {"viewCount": "17000000000", "subscriberCount": "", "videoCount": "250"}}]}`))
		case r.URL.Path == "/search" && q.Get("type") == "video":
			w.Write([]byte(`{"items": [{"id": {"videoId": "TUVcZfQe-Kw"}}, {"id": {"videoId": "WHuBW3qKm9g"}}]}`))
		case r.URL.Path == "/videos":
			if q.Get("id") != "TUVcZfQe-Kw,WHuBW3qKm9g" {
				t.Errorf("video ids = %q", q.Get("id"))
			}
			w.Write([]byte(`{"items": [
				{"id": "TUVcZfQe-Kw", "snippet": {"title": "Levitating", "publishedAt": "2020-12-14T17:00:11Z",
				 "thumbnails": {"high": {"url": "https://i.ytimg.com/vi/TUVcZfQe-Kw/hqdefault.jpg"}}},
				 "statistics": {"viewCount": "1200000000", "likeCount": "9000000", "commentCount": "300000"}},
				{"id": "WHuBW3qKm9g", "snippet": {"title": "Houdini", "publishedAt": "bad-date",
				 "thumbnails": {"default": {"url": "https://i.ytimg.com/vi/WHuBW3qKm9g/default.jpg"}}},
				 "statistics": {"viewCount": "150000000"}}
			]}`))
		default:
			t.Errorf("unexpected request %s", r.URL)
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	c := New("yt-key")
	c.fetcher = &provider.Fetcher{Client: server.Client(), Retries: 1, RetryBase: time.Millisecond}
	c.baseURL = server.URL

	data, err := c.Fetch(context.Background(), provider.Query{ArtistName: "Dua Lipa"})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if len(data.URLs) != 1 || data.URLs[0].URL != "https://www.youtube.com/@dualipa" {
		t.Errorf("URLs = %+v", data.URLs)
	}

	metrics := map[model.MetricType]float64{}
	for _, m := range data.Metrics {
		metrics[m.MetricType] = m.Value
	}
	if _, ok := metrics[model.MetricSubscribers]; ok {
		t.Error("hidden subscriber count should be skipped")
	}
	if metrics[model.MetricTotalViews] != 17000000000 || metrics[model.MetricVideoCount] != 250 {
		t.Errorf("metrics = %v", metrics)
	}

	if len(data.Videos) != 2 {
		t.Fatalf("Videos = %d, want 2", len(data.Videos))
	}
	lev := data.Videos[0]
	if lev.ViewCount != 1200000000 || lev.LikeCount != 9000000 || lev.CommentCount != 300000 {
		t.Errorf("Levitating stats = %+v", lev)
	}
	if lev.PublishedAt == nil || lev.PublishedAt.Year() != 2020 {
		t.Errorf("PublishedAt = %v", lev.PublishedAt)
	}
	if data.Videos[1].PublishedAt != nil {
		t.Error("bad date should leave PublishedAt nil")
	}
	if data.Videos[1].ThumbnailURL != "https://i.ytimg.com/vi/WHuBW3qKm9g/default.jpg" {
		t.Errorf("thumbnail fallback = %q", data.Videos[1].ThumbnailURL)
	}
}
