package wikipedia

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/justestif/artist-pulse/internal/provider"
)

func newTestServer(t *testing.T, summaryBody, htmlBody string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/page/summary/Dua_Lipa":
			w.Write([]byte(summaryBody))
		case "/page/html/Dua_Lipa":
			w.Write([]byte(htmlBody))
		default:
			http.NotFound(w, r)
		}
	}))
}

func newTestClient(server *httptest.Server) *Client {
	return &Client{
		fetcher: &provider.Fetcher{Client: server.Client(), Retries: 1, RetryBase: time.Millisecond},
		baseURL: server.URL,
	}
}

func TestFetch(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantBio string
		wantErr error
	}{
		{
			name: "standard page",
			body: `{"type": "standard", "title": "Dua Lipa",
				"extract": "Dua Lipa is an English singer and songwriter. ",
				"content_urls": {"desktop": {"page": "https://en.wikipedia.org/wiki/Dua_Lipa"}}}`,
			wantBio: "Dua Lipa is an English singer and songwriter.",
		},
		{
			name:    "disambiguation",
			body:    `{"type": "disambiguation", "extract": "Dua Lipa may refer to:"}`,
			wantErr: provider.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newTestServer(t, tt.body, "")
			defer server.Close()

			data, err := newTestClient(server).Fetch(context.Background(), provider.Query{ArtistName: "Dua Lipa"})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Fetch() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if data.Bio != tt.wantBio {
				t.Errorf("Bio = %q, want %q", data.Bio, tt.wantBio)
			}
			if len(data.URLs) != 1 || data.URLs[0].URL != "https://en.wikipedia.org/wiki/Dua_Lipa" {
				t.Errorf("URLs = %+v", data.URLs)
			}
		})
	}
}

func TestFetch_MissingPage(t *testing.T) {
	server := newTestServer(t, "", "")
	defer server.Close()

	_, err := newTestClient(server).Fetch(context.Background(), provider.Query{ArtistName: "Nobody Here"})
	if !errors.Is(err, provider.ErrNotFound) {
		t.Errorf("Fetch() error = %v, want ErrNotFound", err)
	}
}

func TestBiography(t *testing.T) {
	article := `<html><body>
		<section data-mw-section-id="0">
		  <p></p>
		  <p>Dua Lipa (born 22 August 1995) is an English singer.<sup class="mw-ref reference"><a>[1]</a></sup></p>
		  <p>Her debut album was released in 2017.</p>
		</section>
		<section data-mw-section-id="1"><h2>Early life</h2><p>Not part of the lead.</p></section>
	</body></html>`

	server := newTestServer(t, "", article)
	defer server.Close()

	bio, err := newTestClient(server).Biography(context.Background(), "Dua Lipa")
	if err != nil {
		t.Fatalf("Biography() error = %v", err)
	}
	want := "Dua Lipa (born 22 August 1995) is an English singer.\n\nHer debut album was released in 2017."
	if bio != want {
		t.Errorf("Biography() = %q, want %q", bio, want)
	}
}

func TestBiography_NoParagraphs(t *testing.T) {
	server := newTestServer(t, "", `<html><body><div>stub</div></body></html>`)
	defer server.Close()

	_, err := newTestClient(server).Biography(context.Background(), "Dua Lipa")
	if !errors.Is(err, provider.ErrSelectorNotFound) {
		t.Errorf("Biography() error = %v, want ErrSelectorNotFound", err)
	}
}
