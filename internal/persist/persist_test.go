package persist_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/justestif/artist-pulse/internal/memstore"
	"github.com/justestif/artist-pulse/internal/model"
	"github.com/justestif/artist-pulse/internal/persist"
)

func sampleResult() *model.IngestionResult {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return &model.IngestionResult{
		Artist: model.Artist{
			Name:    "Dua Lipa",
			Slug:    "dua-lipa",
			Bio:     "English singer.",
			Gender:  "female",
			Country: "GB",
			Genres:  []string{"pop"},
		},
		PlatformIDs: []model.PlatformID{
			{Platform: model.PlatformSpotify, PlatformID: "6M2wZ9GZgrQXHCFfjv46we"},
			{Platform: model.PlatformYouTube, PlatformID: "UC-J-KZfRV8c13fOCkhXdLiQ"},
		},
		URLs: []model.URL{
			{Platform: model.PlatformSpotify, URL: "https://open.spotify.com/artist/6M2wZ9GZgrQXHCFfjv46we"},
		},
		Metrics: []model.Metric{
			{Platform: model.PlatformSpotify, MetricType: model.MetricFollowers, Value: 40000000, Date: now},
			{Platform: model.PlatformSpotify, MetricType: model.MetricPopularity, Value: 86, Date: now},
		},
		Tracks: []model.Track{
			{Platform: model.PlatformSpotify, TrackID: "t1", Title: "Levitating"},
			{Platform: model.PlatformSpotify, TrackID: "t2", Title: "Houdini"},
		},
		Videos: []model.Video{
			{Platform: model.PlatformYouTube, VideoID: "v1", Title: "Houdini", ViewCount: 100},
		},
	}
}

func TestPersist_WritesEverything(t *testing.T) {
	store := memstore.New()
	o := persist.New(store, zap.NewNop())

	got, err := o.Persist(context.Background(), sampleResult())
	if err != nil {
		t.Fatalf("Persist() error = %v", err)
	}

	if !got.IsComplete {
		t.Error("artist not marked complete")
	}
	if got.Slug != "dua-lipa" || got.ID.String() == "" {
		t.Errorf("artist = %+v", got.Artist)
	}
	if len(got.PlatformIDs) != 2 || len(got.URLs) != 1 || len(got.Metrics) != 2 {
		t.Errorf("children = %d ids, %d urls, %d metrics", len(got.PlatformIDs), len(got.URLs), len(got.Metrics))
	}
	if len(got.Tracks) != 2 || got.Tracks[0].Track == nil || got.Tracks[0].Role != model.RolePrimary {
		t.Errorf("tracks = %+v", got.Tracks)
	}
	if len(got.Videos) != 1 || got.Videos[0].Video.ViewCount != 100 {
		t.Errorf("videos = %+v", got.Videos)
	}
	for _, m := range got.Metrics {
		if m.ArtistID != got.ID {
			t.Errorf("metric not owned by artist: %+v", m)
		}
	}
}

func TestPersist_Idempotent(t *testing.T) {
	store := memstore.New()
	o := persist.New(store, zap.NewNop())

	first, err := o.Persist(context.Background(), sampleResult())
	if err != nil {
		t.Fatal(err)
	}
	second, err := o.Persist(context.Background(), sampleResult())
	if err != nil {
		t.Fatal(err)
	}

	if first.ID != second.ID {
		t.Errorf("artist id changed: %s -> %s", first.ID, second.ID)
	}

	c := store.Counts()
	want := memstore.Counts{
		Artists:      1,
		PlatformIDs:  2,
		URLs:         1,
		Metrics:      4, // append-only
		Tracks:       2,
		ArtistTracks: 2,
		Videos:       1,
		ArtistVideos: 1,
	}
	if c != want {
		t.Errorf("Counts() = %+v, want %+v", c, want)
	}
}

func TestPersist_UpsertOverwritesPlatformID(t *testing.T) {
	store := memstore.New()
	o := persist.New(store, zap.NewNop())

	if _, err := o.Persist(context.Background(), sampleResult()); err != nil {
		t.Fatal(err)
	}

	res := sampleResult()
	res.PlatformIDs = []model.PlatformID{{Platform: model.PlatformYouTube, PlatformID: "UCnew"}}
	got, err := o.Persist(context.Background(), res)
	if err != nil {
		t.Fatal(err)
	}

	for _, p := range got.PlatformIDs {
		if p.Platform == model.PlatformYouTube && p.PlatformID != "UCnew" {
			t.Errorf("youtube id = %q, want overwritten", p.PlatformID)
		}
	}
	if len(got.PlatformIDs) != 2 {
		t.Errorf("PlatformIDs = %d, want 2", len(got.PlatformIDs))
	}
}

func TestPersist_RollsBackOnFailure(t *testing.T) {
	tests := []struct {
		op   string
		step persist.Step
	}{
		{"ArtistByPlatformID", persist.StepArtist},
		{"ArtistBySlug", persist.StepArtist},
		{"UpsertArtist", persist.StepArtist},
		{"UpsertPlatformIDs", persist.StepPlatformIDs},
		{"UpsertURLs", persist.StepURLs},
		{"InsertMetrics", persist.StepMetrics},
		{"UpsertTrack", persist.StepTracks},
		{"LinkTrack", persist.StepTracks},
		{"UpsertVideo", persist.StepVideos},
		{"LinkVideo", persist.StepVideos},
	}

	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			store := memstore.New()
			boom := errors.New("disk full")
			store.FailOn(tt.op, boom)
			o := persist.New(store, zap.NewNop())

			got, err := o.Persist(context.Background(), sampleResult())
			if got != nil {
				t.Errorf("Persist() returned %+v on failure", got)
			}

			var pe *persist.PersistenceError
			if !errors.As(err, &pe) {
				t.Fatalf("error = %v, want *PersistenceError", err)
			}
			if pe.Step != tt.step {
				t.Errorf("Step = %s, want %s", pe.Step, tt.step)
			}
			if !errors.Is(err, boom) {
				t.Errorf("error chain lost cause: %v", err)
			}

			if c := store.Counts(); c != (memstore.Counts{}) {
				t.Errorf("store not rolled back: %+v", c)
			}
			if _, err := store.GetArtistBySlug(context.Background(), "dua-lipa"); !errors.Is(err, persist.ErrNotFound) {
				t.Errorf("artist visible after rollback: %v", err)
			}
		})
	}
}

func TestPersist_FailureKeepsEarlierRun(t *testing.T) {
	store := memstore.New()
	o := persist.New(store, zap.NewNop())

	if _, err := o.Persist(context.Background(), sampleResult()); err != nil {
		t.Fatal(err)
	}
	before := store.Counts()

	store.FailOn("UpsertVideo", errors.New("constraint"))
	if _, err := o.Persist(context.Background(), sampleResult()); err == nil {
		t.Fatal("expected failure")
	}

	if after := store.Counts(); after != before {
		t.Errorf("Counts() = %+v, want unchanged %+v", after, before)
	}
	got, err := store.GetArtistBySlug(context.Background(), "dua-lipa")
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsComplete {
		t.Error("failed re-run reset is_complete of the committed artist")
	}
}

func artistResult(name, spotifyID string) *model.IngestionResult {
	return &model.IngestionResult{
		Artist: model.Artist{Name: name, Slug: model.Slugify(name), Bio: name + " bio"},
		PlatformIDs: []model.PlatformID{
			{Platform: model.PlatformSpotify, PlatformID: spotifyID},
		},
		Tracks: []model.Track{
			{Platform: model.PlatformSpotify, TrackID: "track-" + spotifyID, Title: name + " song"},
		},
	}
}

func spotifyIDOf(a *model.PersistedArtist) string {
	for _, p := range a.PlatformIDs {
		if p.Platform == model.PlatformSpotify {
			return p.PlatformID
		}
	}
	return ""
}

func TestPersist_SameSpotifyIDUnderAnotherName(t *testing.T) {
	store := memstore.New()
	o := persist.New(store, zap.NewNop())
	ctx := context.Background()

	first, err := o.Persist(ctx, artistResult("The Weeknd", "1Xyo4u8uXC1ZmMpatF05PJ"))
	if err != nil {
		t.Fatal(err)
	}
	second, err := o.Persist(ctx, artistResult("Weeknd", "1Xyo4u8uXC1ZmMpatF05PJ"))
	if err != nil {
		t.Fatal(err)
	}

	if second.ID != first.ID {
		t.Errorf("artist id = %s, want %s", second.ID, first.ID)
	}
	if second.Slug != "the-weeknd" {
		t.Errorf("Slug = %q, want the stored slug kept", second.Slug)
	}
	if second.Name != "Weeknd" {
		t.Errorf("Name = %q, want latest name", second.Name)
	}
	if c := store.Counts(); c.Artists != 1 || c.PlatformIDs != 1 {
		t.Errorf("Counts() = %+v, want one artist with one platform id", c)
	}
	if _, err := store.GetArtistBySlug(ctx, "weeknd"); !errors.Is(err, persist.ErrNotFound) {
		t.Errorf("second slug created: %v", err)
	}
}

func TestPersist_SameNameDifferentSpotifyIDs(t *testing.T) {
	store := memstore.New()
	o := persist.New(store, zap.NewNop())
	ctx := context.Background()

	a, err := o.Persist(ctx, artistResult("Nirvana", "6olE6TJLqED3rqDCT0FyPh"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := o.Persist(ctx, artistResult("Nirvana", "0CLeyIf0ZOtGEtPkNn1Uid"))
	if err != nil {
		t.Fatal(err)
	}

	if a.ID == b.ID {
		t.Fatal("two spotify artists merged into one row")
	}
	if a.Slug != "nirvana" || b.Slug != "nirvana-0cleyif0" {
		t.Errorf("slugs = %q, %q; want nirvana, nirvana-0cleyif0", a.Slug, b.Slug)
	}

	// Re-running either artist resolves to its own row.
	again, err := o.Persist(ctx, artistResult("Nirvana", "6olE6TJLqED3rqDCT0FyPh"))
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != a.ID || again.Slug != "nirvana" {
		t.Errorf("re-run = %s/%s, want %s/nirvana", again.ID, again.Slug, a.ID)
	}

	first, err := store.GetArtistBySlug(ctx, "nirvana")
	if err != nil {
		t.Fatal(err)
	}
	if got := spotifyIDOf(first); got != "6olE6TJLqED3rqDCT0FyPh" {
		t.Errorf("first artist spotify id = %q, overwritten", got)
	}
	if len(first.Tracks) != 1 || first.Tracks[0].TrackID != "track-6olE6TJLqED3rqDCT0FyPh" {
		t.Errorf("first artist tracks = %+v", first.Tracks)
	}
	if got := spotifyIDOf(b); got != "0CLeyIf0ZOtGEtPkNn1Uid" {
		t.Errorf("second artist spotify id = %q", got)
	}
	if c := store.Counts(); c.Artists != 2 || c.PlatformIDs != 2 {
		t.Errorf("Counts() = %+v, want two artists", c)
	}
}

func TestPersist_SharedSecondaryIDIsSkipped(t *testing.T) {
	store := memstore.New()
	o := persist.New(store, zap.NewNop())
	ctx := context.Background()

	a := artistResult("Nirvana", "6olE6TJLqED3rqDCT0FyPh")
	a.PlatformIDs = append(a.PlatformIDs, model.PlatformID{Platform: model.PlatformYouTube, PlatformID: "UCshared"})
	if _, err := o.Persist(ctx, a); err != nil {
		t.Fatal(err)
	}

	b := artistResult("Nirvana", "0CLeyIf0ZOtGEtPkNn1Uid")
	b.PlatformIDs = append(b.PlatformIDs, model.PlatformID{Platform: model.PlatformYouTube, PlatformID: "UCshared"})
	got, err := o.Persist(ctx, b)
	if err != nil {
		t.Fatalf("Persist() error = %v", err)
	}
	if len(got.PlatformIDs) != 1 || got.PlatformIDs[0].Platform != model.PlatformSpotify {
		t.Errorf("PlatformIDs = %+v, want only spotify", got.PlatformIDs)
	}
}

func TestPersist_SlugFallback(t *testing.T) {
	tests := []struct {
		name     string
		artist   string
		wantSlug string
	}{
		{"punctuation only", "!!!", "artist-0ai5ey7ht7cvwqbmrzfpet"},
		{"non-latin letters kept", "BTS 방탄소년단", "bts-방탄소년단"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memstore.New()
			o := persist.New(store, zap.NewNop())

			res := artistResult(tt.artist, "0Ai5eY7HT7CVWQBmRzFpET")
			got, err := o.Persist(context.Background(), res)
			if err != nil {
				t.Fatalf("Persist() error = %v", err)
			}
			if got.Slug != tt.wantSlug {
				t.Errorf("Slug = %q, want %q", got.Slug, tt.wantSlug)
			}
			if got.Name != tt.artist {
				t.Errorf("Name = %q", got.Name)
			}
		})
	}
}

func TestPersist_NoUsableSlug(t *testing.T) {
	o := persist.New(memstore.New(), zap.NewNop())

	res := artistResult("!!!", "")
	res.PlatformIDs = nil
	_, err := o.Persist(context.Background(), res)

	var pe *persist.PersistenceError
	if !errors.As(err, &pe) || pe.Step != persist.StepArtist {
		t.Errorf("Persist() error = %v, want artist step failure", err)
	}
}

type enricher struct {
	bio string
	err error
}

func (e enricher) Biography(ctx context.Context, name string) (string, error) {
	return e.bio, e.err
}

func TestPersist_Enrichment(t *testing.T) {
	long := "Dua Lipa is an English and Albanian singer. Her accolades include seven Brit Awards."

	tests := []struct {
		name    string
		e       enricher
		wantBio string
	}{
		{"longer bio replaces", enricher{bio: long}, long},
		{"shorter bio ignored", enricher{bio: "Singer."}, "English singer."},
		{"failure is tolerated", enricher{err: errors.New("wikipedia down")}, "English singer."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memstore.New()
			o := persist.New(store, zap.NewNop(), persist.WithEnricher(tt.e))

			got, err := o.Persist(context.Background(), sampleResult())
			if err != nil {
				t.Fatalf("Persist() error = %v", err)
			}
			if got.Bio != tt.wantBio {
				t.Errorf("Bio = %q, want %q", got.Bio, tt.wantBio)
			}
			if !got.IsComplete {
				t.Error("artist not marked complete")
			}
		})
	}
}

func TestPersist_DailyMetricDedupe(t *testing.T) {
	store := memstore.New()
	o := persist.New(store, zap.NewNop(), persist.WithDailyMetricDedupe())

	for i := 0; i < 3; i++ {
		if _, err := o.Persist(context.Background(), sampleResult()); err != nil {
			t.Fatal(err)
		}
	}
	if n := store.Counts().Metrics; n != 2 {
		t.Errorf("Metrics = %d, want 2 with daily dedupe", n)
	}

	next := sampleResult()
	for i := range next.Metrics {
		next.Metrics[i].Date = next.Metrics[i].Date.Add(24 * time.Hour)
	}
	if _, err := o.Persist(context.Background(), next); err != nil {
		t.Fatal(err)
	}
	if n := store.Counts().Metrics; n != 4 {
		t.Errorf("Metrics = %d, want 4 after a new day", n)
	}
}

func TestDedupeMetrics(t *testing.T) {
	day := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	existing := []model.Metric{
		{Platform: model.PlatformSpotify, MetricType: model.MetricFollowers, Date: day.Add(-time.Hour)},
		{Platform: model.PlatformYouTube, MetricType: model.MetricSubscribers, Date: day.Add(-24 * time.Hour)},
	}
	incoming := []model.Metric{
		{Platform: model.PlatformSpotify, MetricType: model.MetricFollowers, Value: 1, Date: day},
		{Platform: model.PlatformSpotify, MetricType: model.MetricPopularity, Value: 2, Date: day},
		{Platform: model.PlatformSpotify, MetricType: model.MetricPopularity, Value: 3, Date: day},
		{Platform: model.PlatformYouTube, MetricType: model.MetricSubscribers, Value: 4, Date: day},
	}

	got := persist.DedupeMetrics(existing, incoming, day)
	if len(got) != 2 {
		t.Fatalf("DedupeMetrics() = %+v, want popularity and subscribers", got)
	}
	if got[0].Value != 2 || got[1].Value != 4 {
		t.Errorf("DedupeMetrics() kept %v and %v", got[0].Value, got[1].Value)
	}
}
