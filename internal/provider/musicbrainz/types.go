package musicbrainz

type artist struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Type      string     `json:"type,omitempty"`
	Gender    string     `json:"gender,omitempty"`
	Country   string     `json:"country,omitempty"`
	Area      area       `json:"area,omitempty"`
	LifeSpan  lifeSpan   `json:"life-span,omitempty"`
	Relations []relation `json:"relations,omitempty"`
	Score     int        `json:"score,omitempty"`
}

type area struct {
	Name     string   `json:"name"`
	ISO31661 []string `json:"iso-3166-1-codes,omitempty"`
}

type lifeSpan struct {
	Begin string `json:"begin,omitempty"`
	End   string `json:"end,omitempty"`
	Ended bool   `json:"ended,omitempty"`
}

type relation struct {
	Type       string `json:"type"`
	TargetType string `json:"target-type,omitempty"`
	URL        struct {
		Resource string `json:"resource"`
	} `json:"url,omitempty"`
	Artist *artist `json:"artist,omitempty"`
}

// urlResponse is a url entity looked up with inc=artist-rels.
type urlResponse struct {
	ID        string     `json:"id"`
	Resource  string     `json:"resource"`
	Relations []relation `json:"relations"`
}

type searchResponse struct {
	Count   int      `json:"count"`
	Artists []artist `json:"artists"`
}
