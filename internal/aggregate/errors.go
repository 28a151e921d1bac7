package aggregate

import "errors"

var (
	// ErrArtistNotFound is returned when Spotify has no record of the artist.
	ErrArtistNotFound = errors.New("artist not found on spotify")

	// ErrRequiredProvider marks the failure of a provider the run cannot do without.
	ErrRequiredProvider = errors.New("required provider failed")
)

// Fault is an unrecoverable aggregation failure. Message is safe to show users.
type Fault struct {
	Message string
	Err     error
}

func (f *Fault) Error() string {
	if f.Err == nil {
		return f.Message
	}
	return f.Message + ": " + f.Err.Error()
}

func (f *Fault) Unwrap() error {
	return f.Err
}
