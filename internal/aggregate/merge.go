package aggregate

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/justestif/artist-pulse/internal/model"
	"github.com/justestif/artist-pulse/internal/provider"
)

// ordered returns successful data with the preferred providers first and
// the rest in registration order.
func (s settled) ordered(preferred ...provider.Name) []*provider.Data {
	out := make([]*provider.Data, 0, len(s.results))
	for _, name := range preferred {
		if d := s.data(name); d != nil {
			out = append(out, d)
		}
	}
	for _, r := range s.results {
		if r.OK() && !slices.Contains(preferred, r.Provider) {
			out = append(out, r.Data)
		}
	}
	return out
}

func firstString(fallback string, ds []*provider.Data, field func(*provider.Data) string) string {
	if v := strings.TrimSpace(fallback); v != "" {
		return v
	}
	for _, d := range ds {
		if v := strings.TrimSpace(field(d)); v != "" {
			return v
		}
	}
	return ""
}

// merge applies the field precedence rules. Provider data may be shared
// with the result cache, so nothing reachable from settled is modified.
func (a *Aggregator) merge(ctx context.Context, req Request, s settled) *model.IngestionResult {
	now := a.now().UTC()
	all := s.ordered(provider.Spotify)

	artist := model.Artist{
		Name: firstString(req.Name, all, func(d *provider.Data) string { return d.Name }),
		ImageURL: firstString(req.ImageURL, s.ordered(provider.Spotify, provider.Deezer),
			func(d *provider.Data) string { return d.ImageURL }),
		Bio: firstString("", s.ordered(provider.LastFM, provider.Wikipedia),
			func(d *provider.Data) string { return d.Bio }),
	}
	if sp := s.data(provider.Spotify); sp != nil && strings.TrimSpace(sp.Name) != "" {
		artist.Name = strings.TrimSpace(sp.Name)
	}
	artist.Slug = model.Slugify(artist.Name)
	artist.Genres = mergeGenres(req.Genres, s.ordered(provider.Spotify, provider.LastFM))

	facts := s.ordered(provider.MusicBrainz)
	artist.Country = strings.ToUpper(firstString("", facts, func(d *provider.Data) string { return d.Country }))
	artist.Gender = strings.ToLower(firstString("", facts, func(d *provider.Data) string { return d.Gender }))
	for _, d := range facts {
		if d.BirthDate != nil {
			t := *d.BirthDate
			artist.BirthDate = &t
			break
		}
	}

	if artist.Bio == "" && a.bio != nil {
		text, err := a.bio.WriteBio(ctx, artist.Name, artist.Genres)
		if err != nil {
			a.logger.Warn("writing fallback bio", zap.String("artist", artist.Name), zap.Error(err))
		}
		artist.Bio = strings.TrimSpace(text)
	}
	if artist.Country == "" {
		artist.Country = model.DefaultCountry
	}
	if artist.Gender == "" {
		artist.Gender = model.DefaultGender
	}

	res := &model.IngestionResult{Artist: artist}

	seenID := map[model.Platform]bool{}
	addID := func(p model.PlatformID) {
		if p.PlatformID == "" || seenID[p.Platform] {
			return
		}
		seenID[p.Platform] = true
		res.PlatformIDs = append(res.PlatformIDs, model.PlatformID{Platform: p.Platform, PlatformID: p.PlatformID})
	}
	addID(model.PlatformID{Platform: model.PlatformSpotify, PlatformID: req.SpotifyID})
	addID(model.PlatformID{Platform: model.PlatformMusicBrainz, PlatformID: req.MBID})
	for _, d := range s.ordered(provider.MusicBrainz, provider.LastFM) {
		addID(model.PlatformID{Platform: model.PlatformMusicBrainz, PlatformID: d.MBID})
	}

	seenURL := map[model.Platform]bool{}
	for _, d := range all {
		for _, p := range d.PlatformIDs {
			addID(p)
		}
		for _, u := range d.URLs {
			if u.URL == "" || seenURL[u.Platform] {
				continue
			}
			seenURL[u.Platform] = true
			res.URLs = append(res.URLs, model.URL{Platform: u.Platform, URL: u.URL})
		}
	}

	res.Metrics = mergeMetrics(req, all, s.data(provider.Spotify), now)
	res.Tracks, res.Videos = mergeMedia(all)
	return res
}

// mergeGenres keeps the trigger's genres if any, otherwise the first
// provider that supplied some. Duplicates are dropped case-insensitively.
func mergeGenres(trigger []string, ds []*provider.Data) []string {
	src := trigger
	if len(src) == 0 {
		for _, d := range ds {
			if len(d.Genres) > 0 {
				src = d.Genres
				break
			}
		}
	}

	out := []string{}
	seen := map[string]bool{}
	for _, g := range src {
		g = strings.TrimSpace(g)
		k := strings.ToLower(g)
		if g == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, g)
	}
	return out
}

// mergeMetrics concatenates every provider's metrics stamped with now.
// Spotify followers and popularity are always present, falling back to the
// trigger values and then to zero.
func mergeMetrics(req Request, ds []*provider.Data, sp *provider.Data, now time.Time) []model.Metric {
	var out []model.Metric
	for _, d := range ds {
		for _, m := range d.Metrics {
			m.ArtistID = uuid.Nil
			m.Date = now
			out = append(out, m)
		}
	}

	has := func(t model.MetricType) bool {
		if sp == nil {
			return false
		}
		return slices.ContainsFunc(sp.Metrics, func(m model.Metric) bool {
			return m.Platform == model.PlatformSpotify && m.MetricType == t
		})
	}
	fallback := func(t model.MetricType, v *int) {
		if has(t) {
			return
		}
		var value float64
		if v != nil {
			value = float64(*v)
		}
		out = append(out, model.Metric{Platform: model.PlatformSpotify, MetricType: t, Value: value, Date: now})
	}
	fallback(model.MetricFollowers, req.Followers)
	fallback(model.MetricPopularity, req.Popularity)
	return out
}

// mergeMedia dedupes tracks and videos by (platform, id); the first one wins.
func mergeMedia(ds []*provider.Data) ([]model.Track, []model.Video) {
	type key struct {
		platform model.Platform
		id       string
	}

	var tracks []model.Track
	var videos []model.Video
	seenTrack := map[key]bool{}
	seenVideo := map[key]bool{}

	for _, d := range ds {
		for _, t := range d.Tracks {
			k := key{t.Platform, t.TrackID}
			if t.TrackID == "" || seenTrack[k] {
				continue
			}
			seenTrack[k] = true
			tracks = append(tracks, t)
		}
		for _, v := range d.Videos {
			k := key{v.Platform, v.VideoID}
			if v.VideoID == "" || seenVideo[k] {
				continue
			}
			seenVideo[k] = true
			videos = append(videos, v)
		}
	}
	return tracks, videos
}
