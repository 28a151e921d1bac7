package model

// IngestionResult is the merged output of one aggregation run, ready to persist.
// ArtistID fields of the sub-records are zero until persistence assigns them.
type IngestionResult struct {
	Artist      Artist       `json:"artist"`
	PlatformIDs []PlatformID `json:"platform_data"`
	URLs        []URL        `json:"url_data"`
	Metrics     []Metric     `json:"metric_data"`
	Tracks      []Track      `json:"tracks"`
	Videos      []Video      `json:"videos"`
}

// PersistedArtist is the read model of an artist and everything it owns.
type PersistedArtist struct {
	Artist
	PlatformIDs []PlatformID  `json:"artist_platform_ids"`
	URLs        []URL         `json:"artist_urls"`
	Metrics     []Metric      `json:"artist_metrics"`
	Tracks      []ArtistTrack `json:"artist_tracks"`
	Videos      []ArtistVideo `json:"artist_videos"`
}

// SpotifyID returns the result's Spotify artist id, or "" if it has none.
func (r *IngestionResult) SpotifyID() string {
	for _, p := range r.PlatformIDs {
		if p.Platform == PlatformSpotify {
			return p.PlatformID
		}
	}
	return ""
}
