// Command artist-pulse runs the artist ingestion service.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/justestif/artist-pulse/internal/aggregate"
	"github.com/justestif/artist-pulse/internal/cache"
	"github.com/justestif/artist-pulse/internal/config"
	"github.com/justestif/artist-pulse/internal/db"
	"github.com/justestif/artist-pulse/internal/ingest"
	"github.com/justestif/artist-pulse/internal/logging"
	"github.com/justestif/artist-pulse/internal/memstore"
	"github.com/justestif/artist-pulse/internal/persist"
	"github.com/justestif/artist-pulse/internal/progress"
	"github.com/justestif/artist-pulse/internal/provider/browser"
	"github.com/justestif/artist-pulse/internal/provider/deezer"
	"github.com/justestif/artist-pulse/internal/provider/genius"
	"github.com/justestif/artist-pulse/internal/provider/kworb"
	"github.com/justestif/artist-pulse/internal/provider/lastfm"
	"github.com/justestif/artist-pulse/internal/provider/musicbrainz"
	"github.com/justestif/artist-pulse/internal/provider/spotify"
	"github.com/justestif/artist-pulse/internal/provider/viberate"
	"github.com/justestif/artist-pulse/internal/provider/wikipedia"
	"github.com/justestif/artist-pulse/internal/provider/youtube"
	"github.com/justestif/artist-pulse/internal/provider/ytcharts"
	"github.com/justestif/artist-pulse/internal/web"
)

var version = "v0.0.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.New(version)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := logging.New(cfg.LogConfig)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checks := map[string]web.Checker{}

	var rdb *redis.Client
	if cfg.UsesRedis() {
		rdb = redis.NewClient(&redis.Options{
			Addr:        cfg.RedisURL,
			Password:    cfg.RedisPassword,
			DB:          cfg.RedisDatabase,
			DialTimeout: cfg.RedisDialTimeout,
		})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("pinging redis: %w", err)
		}
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	gateway, closeGateway, err := newGateway(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeGateway()
	checks["store"] = gateway.Ping

	var notifier progress.Notifier
	if cfg.ProgressBackend == config.BackendRedis {
		notifier = progress.NewRedisStore(rdb, logger, cfg.ProgressExpiry)
	} else {
		notifier = progress.NewHub(progress.WithExpiry(cfg.ProgressExpiry))
	}

	var resultCache cache.Cache
	if cfg.CacheBackend == config.BackendRedis {
		resultCache = cache.NewRedis(rdb, cache.WithNegativeTTL(cfg.CacheNegativeTTL), cache.WithPrefix("artist-pulse:"))
	} else {
		resultCache = cache.NewMemory(cache.WithNegativeTTL(cfg.CacheNegativeTTL))
	}

	wiki := wikipedia.New()
	sources, err := buildSources(ctx, cfg, wiki, logger)
	if err != nil {
		return err
	}
	for i := range sources {
		sources[i].Adapter = cache.Wrap(sources[i].Adapter, resultCache, cfg.CacheTTL)
	}

	agg := aggregate.New(sources, logger, aggregate.WithNotifier(notifier))

	persistOpts := []persist.Option{persist.WithEnricher(wiki)}
	if cfg.DailyMetricDedupe {
		persistOpts = append(persistOpts, persist.WithDailyMetricDedupe())
	}
	persister := persist.New(gateway, logger, persistOpts...)

	coordOpts := []ingest.Option{
		ingest.WithWorkers(cfg.Workers),
		ingest.WithQueueSize(cfg.QueueSize),
	}
	if cfg.LockBackend == config.BackendRedis {
		coordOpts = append(coordOpts, ingest.WithLocker(ingest.NewRedisLocker(redislock.New(rdb), cfg.LockTTL, logger)))
	}
	coordinator := ingest.New(agg, persister, notifier, logger, coordOpts...)

	handlers := web.NewHandlers(coordinator, notifier, gateway, checks, logger)
	server := web.NewServer(cfg.ListenAddress, handlers, logger)

	serveErr := server.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if err := coordinator.Shutdown(shutdownCtx); err != nil {
		logger.Error("draining ingestion queue", zap.Error(err))
	}

	return serveErr
}

// newGateway opens the configured persistence backend.
func newGateway(ctx context.Context, cfg *config.Config, logger *zap.Logger) (persist.Gateway, func(), error) {
	if cfg.Store == config.StoreMemory {
		logger.Warn("using in-memory store; data is lost on exit")
		return memstore.New(), func() {}, nil
	}

	database, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}
	if cfg.Migrate {
		if err := database.Migrate(ctx, logger); err != nil {
			database.Close()
			return nil, nil, fmt.Errorf("migrating database: %w", err)
		}
	}
	return database, database.Close, nil
}

// buildSources registers every provider with its group and timeout.
// Providers without credentials are skipped.
func buildSources(ctx context.Context, cfg *config.Config, wiki *wikipedia.Client, logger *zap.Logger) ([]aggregate.Source, error) {
	sp, err := spotify.NewClientCredentials(ctx, spotify.Config{
		ClientID:     cfg.SpotifyClientID,
		ClientSecret: cfg.SpotifyClientSecret,
		Market:       cfg.SpotifyMarket,
	})
	if err != nil {
		return nil, fmt.Errorf("creating spotify client: %w", err)
	}

	sources := []aggregate.Source{
		{Adapter: sp, Group: aggregate.GroupMetadata, Timeout: cfg.APITimeout, Required: true},
		{Adapter: musicbrainz.New(cfg.MusicBrainzUserAgent), Group: aggregate.GroupMetadata, Timeout: cfg.APITimeout},
		{Adapter: deezer.New(), Group: aggregate.GroupMetadata, Timeout: cfg.APITimeout},
		{Adapter: wiki, Group: aggregate.GroupMetadata, Timeout: cfg.APITimeout},
		{Adapter: kworb.New(), Group: aggregate.GroupAnalytics, Timeout: cfg.ScrapeTimeout},
	}

	if cfg.GeniusToken != "" {
		sources = append(sources, aggregate.Source{Adapter: genius.New(cfg.GeniusToken), Group: aggregate.GroupMetadata, Timeout: cfg.APITimeout})
	} else {
		logger.Info("genius token not set, skipping provider")
	}
	if cfg.LastFMAPIKey != "" {
		sources = append(sources, aggregate.Source{Adapter: lastfm.NewClient(lastfm.Config{APIKey: cfg.LastFMAPIKey}), Group: aggregate.GroupAnalytics, Timeout: cfg.APITimeout})
	} else {
		logger.Info("last.fm API key not set, skipping provider")
	}
	if cfg.YouTubeAPIKey != "" {
		sources = append(sources, aggregate.Source{Adapter: youtube.New(cfg.YouTubeAPIKey), Group: aggregate.GroupMedia, Timeout: cfg.APITimeout})
	} else {
		logger.Info("youtube API key not set, skipping provider")
	}

	if cfg.BrowserEnabled {
		b := browser.New(browser.Config{
			Enabled:     true,
			ExecPath:    cfg.BrowserExecPath,
			MaxSessions: cfg.BrowserMaxSessions,
		})
		sources = append(sources,
			aggregate.Source{Adapter: viberate.New(b), Group: aggregate.GroupAnalytics, Timeout: cfg.BrowserTimeout},
			aggregate.Source{Adapter: ytcharts.New(b), Group: aggregate.GroupMedia, Timeout: cfg.BrowserTimeout},
		)
	}

	return sources, nil
}
