package persist

import "fmt"

// Step names a write of the persistence sequence.
type Step string

// Persistence steps in execution order.
const (
	StepArtist      Step = "artist"
	StepPlatformIDs Step = "platform_ids"
	StepURLs        Step = "urls"
	StepMetrics     Step = "metrics"
	StepTracks      Step = "tracks"
	StepVideos      Step = "videos"
	StepCommit      Step = "commit"
	StepComplete    Step = "mark_complete"
	StepRead        Step = "read"
)

// PersistenceError reports the step at which persistence failed. Failures
// up to and including StepCommit leave nothing behind.
type PersistenceError struct {
	Step Step
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persisting %s: %v", e.Step, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Message is the user-facing description of the failure.
func (e *PersistenceError) Message() string {
	return fmt.Sprintf("Failed to save artist data (%s)", e.Step)
}

// EnrichmentError reports a failed post-commit enrichment. It is logged,
// never returned to callers.
type EnrichmentError struct {
	Artist string
	Err    error
}

func (e *EnrichmentError) Error() string {
	return fmt.Sprintf("enriching %s: %v", e.Artist, e.Err)
}

func (e *EnrichmentError) Unwrap() error {
	return e.Err
}
