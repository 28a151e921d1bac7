// Package progress carries per-ingestion stage updates from the pipeline to
// whoever is watching.
//
// Each correlation id has one retained snapshot. Stages only move forward;
// COMPLETE and ERROR are terminal and the snapshot expires a fixed time
// after reaching one. Subscribers receive snapshots, not events: the same
// stage may arrive twice and only the latest value matters.
package progress

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Stage is a step of an ingestion run.
type Stage string

// Known stages.
const (
	StageInit      Stage = "INIT"
	StageMetadata  Stage = "METADATA"
	StageAnalytics Stage = "ANALYTICS"
	StageMedia     Stage = "MEDIA"
	StageTrackData Stage = "TRACK_DATA"
	StageVideoData Stage = "VIDEO_DATA"
	StageStore     Stage = "STORE"
	StageComplete  Stage = "COMPLETE"
	StageError     Stage = "ERROR"
)

// DefaultExpiry is how long a terminal snapshot is retained.
const DefaultExpiry = 300 * time.Second

var ranks = map[Stage]int{
	StageInit:      0,
	StageMetadata:  1,
	StageAnalytics: 2,
	StageMedia:     3,
	StageTrackData: 3,
	StageVideoData: 3,
	StageStore:     4,
	StageComplete:  5,
	StageError:     5,
}

// Rank orders stages; media stages share a rank. Unknown stages rank -1.
func (s Stage) Rank() int {
	if r, ok := ranks[s]; ok {
		return r
	}
	return -1
}

// Terminal reports whether no update may follow s.
func (s Stage) Terminal() bool {
	return s == StageComplete || s == StageError
}

// Errors returned by Publish.
var (
	ErrStageRegression = errors.New("stage regression")
	ErrTerminal        = errors.New("progress already terminal")
	ErrUnknownStage    = errors.New("unknown stage")
)

// Update is one progress snapshot.
type Update struct {
	CorrelationID string    `json:"correlation_id"`
	Stage         Stage     `json:"stage"`
	Message       string    `json:"message"`
	Details       string    `json:"details"`
	Progress      int       `json:"progress"`
	Payload       any       `json:"payload,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Notifier publishes and streams progress snapshots.
type Notifier interface {
	// Publish replaces the snapshot for u.CorrelationID.
	Publish(ctx context.Context, u Update) error
	// Latest returns the retained snapshot, if any.
	Latest(ctx context.Context, id string) (Update, bool, error)
	// Subscribe streams snapshots for id, starting with the retained one.
	// The channel closes after a terminal update or when ctx ends.
	Subscribe(ctx context.Context, id string) (<-chan Update, error)
	// Reset drops the retained snapshot so a new run can start from INIT.
	Reset(ctx context.Context, id string) error
}

// checkTransition validates moving from prev (if any) to next.
func checkTransition(prev *Update, next Stage) error {
	if next.Rank() < 0 {
		return fmt.Errorf("%w: %q", ErrUnknownStage, next)
	}
	if prev == nil {
		return nil
	}
	if prev.Stage.Terminal() {
		return fmt.Errorf("%w: %s after %s", ErrTerminal, next, prev.Stage)
	}
	if next == StageError {
		return nil
	}
	if next.Rank() < prev.Stage.Rank() {
		return fmt.Errorf("%w: %s after %s", ErrStageRegression, next, prev.Stage)
	}
	return nil
}

// clampProgress keeps percentages within 0..100.
func clampProgress(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}
