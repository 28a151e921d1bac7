package lastfm

// Tag represents a Last.fm tag.
type Tag struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ArtistInfo is the artist object of artist.getInfo.
type ArtistInfo struct {
	Name  string `json:"name"`
	MBID  string `json:"mbid"`
	URL   string `json:"url"`
	Stats struct {
		Listeners string `json:"listeners"` // Last.fm encodes counts as strings
		Playcount string `json:"playcount"`
	} `json:"stats"`
	Tags struct {
		Tag []Tag `json:"tag"`
	} `json:"tags"`
	Bio struct {
		Summary string `json:"summary"`
		Content string `json:"content"`
	} `json:"bio"`
}

// artistInfoResponse is the JSON response for artist.getInfo.
type artistInfoResponse struct {
	Artist ArtistInfo `json:"artist"`
}

// artistTagsResponse is the JSON response for artist.getTopTags.
type artistTagsResponse struct {
	TopTags struct {
		Tag  []Tag `json:"tag"`
		Attr struct {
			Artist string `json:"artist"`
		} `json:"@attr"`
	} `json:"toptags"`
}

// apiError represents a Last.fm API error response.
type apiError struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
}
