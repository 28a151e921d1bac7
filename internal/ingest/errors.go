package ingest

import (
	"errors"
	"strings"

	"github.com/justestif/artist-pulse/internal/aggregate"
	"github.com/justestif/artist-pulse/internal/persist"
)

// Common errors.
var (
	// ErrAlreadyRunning is returned when an ingestion for the same artist is in flight.
	ErrAlreadyRunning = errors.New("ingestion already running")

	// ErrQueueFull is returned when no worker can accept the request.
	ErrQueueFull = errors.New("ingestion queue is full")

	// ErrShuttingDown is returned once Shutdown has been called.
	ErrShuttingDown = errors.New("coordinator is shutting down")
)

// ValidationError reports a request missing required fields.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

// Validate checks that req carries the identifiers an ingestion needs.
func Validate(req aggregate.Request) error {
	var missing []string
	if strings.TrimSpace(req.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(req.SpotifyID) == "" {
		missing = append(missing, "spotify_id")
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}
	return nil
}

// UserMessage returns the text shown to clients for a failed run.
// It never includes internal identifiers or causes.
func UserMessage(err error) string {
	var (
		ve    *ValidationError
		fault *aggregate.Fault
		pe    *persist.PersistenceError
	)
	switch {
	case errors.As(err, &ve):
		return "Missing required fields"
	case errors.As(err, &fault):
		return fault.Message
	case errors.As(err, &pe):
		return pe.Message()
	case errors.Is(err, ErrQueueFull):
		return "Server is busy, try again later"
	case errors.Is(err, ErrShuttingDown):
		return "Server is shutting down"
	default:
		return "Ingestion failed"
	}
}
