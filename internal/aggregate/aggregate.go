// Package aggregate fans an artist lookup out to every registered provider
// and merges the settled results into one ingestion record.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/justestif/artist-pulse/internal/metrics"
	"github.com/justestif/artist-pulse/internal/model"
	"github.com/justestif/artist-pulse/internal/progress"
	"github.com/justestif/artist-pulse/internal/provider"
)

// Group is a set of providers whose completion is reported as one stage.
type Group string

// Provider groups, reported in this order.
const (
	GroupMetadata  Group = "metadata"
	GroupAnalytics Group = "analytics"
	GroupMedia     Group = "media"
)

var groupOrder = []Group{GroupMetadata, GroupAnalytics, GroupMedia}

// Source registers an adapter with the aggregator.
type Source struct {
	Adapter provider.Adapter
	Group   Group
	// Timeout bounds one call; zero uses provider.APITimeout.
	Timeout time.Duration
	// Required sources fail the whole run when they fail.
	Required bool
}

// Request is the trigger input for one aggregation run.
type Request struct {
	Name          string   `json:"name"`
	SpotifyID     string   `json:"spotify_id"`
	Popularity    *int     `json:"popularity,omitempty"`
	Followers     *int     `json:"followers,omitempty"`
	ImageURL      string   `json:"image_url,omitempty"`
	Genres        []string `json:"genres,omitempty"`
	MBID          string   `json:"mbid,omitempty"`
	CorrelationID string   `json:"-"`
}

// ID returns the correlation id, defaulting to the Spotify id.
func (r Request) ID() string {
	if r.CorrelationID != "" {
		return r.CorrelationID
	}
	return r.SpotifyID
}

// Query builds the provider query for r.
func (r Request) Query() provider.Query {
	return provider.Query{
		ArtistName: r.Name,
		SpotifyID:  r.SpotifyID,
		Slug:       model.Slugify(r.Name),
		MBID:       r.MBID,
	}
}

// BioWriter produces a biography when no provider supplied one.
type BioWriter interface {
	WriteBio(ctx context.Context, name string, genres []string) (string, error)
}

// Aggregator merges provider results into an IngestionResult.
type Aggregator struct {
	sources  []Source
	notifier progress.Notifier
	bio      BioWriter
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithNotifier publishes stage updates as provider groups settle.
func WithNotifier(n progress.Notifier) Option {
	return func(a *Aggregator) {
		a.notifier = n
	}
}

// WithBioWriter sets the fallback biography author.
func WithBioWriter(w BioWriter) Option {
	return func(a *Aggregator) {
		a.bio = w
	}
}

// WithClock overrides the time used to stamp metrics.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		a.now = now
	}
}

// New creates an Aggregator. Source order is merge precedence: for fields
// without an explicit policy the earliest source that supplied a value wins.
func New(sources []Source, logger *zap.Logger, opts ...Option) *Aggregator {
	a := &Aggregator{
		sources: sources,
		logger:  logger.With(zap.String("pkg", "aggregate")),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Sources returns the registered sources.
func (a *Aggregator) Sources() []Source {
	return a.sources
}

// Aggregate runs every source concurrently, waits for all of them and
// merges what came back. Individual provider failures are tolerated; only
// a required provider failing or a merge fault ends the run.
func (a *Aggregator) Aggregate(ctx context.Context, req Request) (res *model.IngestionResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = &Fault{Message: "Failed to aggregate artist data", Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	q := req.Query()
	settled := a.fanOut(ctx, req.ID(), q)

	for _, s := range a.sources {
		if !s.Required {
			continue
		}
		r := settled.byName[s.Adapter.Name()]
		if !r.OK() {
			return nil, requiredFault(s.Adapter.Name(), r.Err)
		}
	}

	return a.merge(ctx, req, settled), nil
}

// requiredFault describes a required provider's failure.
func requiredFault(name provider.Name, cause *provider.Error) *Fault {
	var err error = ErrRequiredProvider
	if cause != nil {
		err = fmt.Errorf("%w: %w", ErrRequiredProvider, cause)
	}
	if name == provider.Spotify {
		return &Fault{Message: "Artist not found on Spotify", Err: fmt.Errorf("%w: %w", ErrArtistNotFound, err)}
	}
	return &Fault{Message: fmt.Sprintf("Required provider %s failed", name), Err: err}
}

// settled holds every source's outcome in registration order.
type settled struct {
	results []provider.Result
	byName  map[provider.Name]provider.Result
}

// data returns the successful data of name, or nil.
func (s settled) data(name provider.Name) *provider.Data {
	r, ok := s.byName[name]
	if !ok || !r.OK() {
		return nil
	}
	return r.Data
}

func (a *Aggregator) fanOut(ctx context.Context, id string, q provider.Query) settled {
	results := make([]provider.Result, len(a.sources))
	done := make(map[Group]chan struct{}, len(groupOrder))
	groups := make(map[Group]*errgroup.Group, len(groupOrder))
	for _, g := range groupOrder {
		done[g] = make(chan struct{})
		groups[g] = &errgroup.Group{}
	}

	for i, s := range a.sources {
		g, ok := groups[s.Group]
		if !ok {
			g = groups[GroupMetadata]
		}
		g.Go(func() error {
			results[i] = a.call(ctx, s, q)
			return nil
		})
	}

	// Groups run side by side; each closes its channel once every member settled.
	for _, name := range groupOrder {
		go func() {
			groups[name].Wait()
			close(done[name])
		}()
	}

	<-done[GroupMetadata]
	a.publish(ctx, id, progress.StageMetadata, "Fetched artist metadata", 25)

	<-done[GroupAnalytics]
	a.publish(ctx, id, progress.StageAnalytics, "Fetched artist analytics", 50)

	<-done[GroupMedia]
	// Every group has settled by now; tracks may come from any of them.
	var tracks, videos bool
	for _, r := range results {
		if r.OK() {
			tracks = tracks || len(r.Data.Tracks) > 0
			videos = videos || len(r.Data.Videos) > 0
		}
	}
	if tracks {
		a.publish(ctx, id, progress.StageTrackData, "Fetched top tracks", 60)
	}
	if videos {
		a.publish(ctx, id, progress.StageVideoData, "Fetched latest videos", 65)
	}

	byName := make(map[provider.Name]provider.Result, len(results))
	for _, r := range results {
		if _, dup := byName[r.Provider]; !dup {
			byName[r.Provider] = r
		}
	}
	return settled{results: results, byName: byName}
}

func (a *Aggregator) call(ctx context.Context, s Source, q provider.Query) provider.Result {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = provider.APITimeout
	}
	name := s.Adapter.Name()

	start := time.Now()
	r := provider.Call(ctx, s.Adapter, q, timeout)
	metrics.ProviderCallDuration.WithLabelValues(string(name)).Observe(time.Since(start).Seconds())

	if !r.OK() {
		metrics.ProviderCallsTotal.WithLabelValues(string(name), "error").Inc()
		a.logger.Warn("provider failed",
			zap.String("provider", string(name)),
			zap.String("artist", q.ArtistName),
			zap.String("reason", r.Err.Message),
		)
		return r
	}
	metrics.ProviderCallsTotal.WithLabelValues(string(name), "ok").Inc()
	a.logger.Debug("provider succeeded", zap.String("provider", string(name)), zap.Duration("took", time.Since(start)))
	return r
}

func (a *Aggregator) publish(ctx context.Context, id string, stage progress.Stage, msg string, pct int) {
	if a.notifier == nil || id == "" {
		return
	}
	err := a.notifier.Publish(ctx, progress.Update{CorrelationID: id, Stage: stage, Message: msg, Progress: pct})
	if err != nil && !errors.Is(err, progress.ErrStageRegression) {
		a.logger.Warn("publishing progress", zap.String("id", id), zap.String("stage", string(stage)), zap.Error(err))
	}
}
