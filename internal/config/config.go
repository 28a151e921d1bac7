// Package config loads service configuration from flags, environment and .env.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
)

const (
	EnvFile         = ".env"
	EnvConfigPrefix = "ARTIST_PULSE"
)

// Backend choices.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"

	BackendMemory = "memory"
	BackendRedis  = "redis"
)

type Config struct {
	Version       kong.VersionFlag `help:"Show version and exit" short:"v" env:"-"`
	ListenAddress string           `kong:"help='HTTP listen address.',default='127.0.0.1:8080'"`
	LogConfig     string           `kong:"help='Logging config to use.',enum='dev,prod',default='dev'"`

	Store       string `kong:"help='Persistence backend.',enum='postgres,memory',default='memory'"`
	DatabaseURL string `kong:"help='PostgreSQL connection URL.'"`
	Migrate     bool   `kong:"help='Apply embedded schema migrations on start.',default=true"`

	RedisURL         string        `kong:"help='Redis address.',default=localhost:6379"`
	RedisPassword    string        `kong:"help='Redis password.'"`
	RedisDatabase    int           `kong:"help='Redis database.',default=0"`
	RedisDialTimeout time.Duration `kong:"help='Redis dial timeout.',default=5s"`

	ProgressBackend  string        `kong:"help='Progress notifier backend.',enum='memory,redis',default='memory'"`
	ProgressExpiry   time.Duration `kong:"help='How long terminal progress is kept.',default=300s"`
	CacheBackend     string        `kong:"help='Provider result cache backend.',enum='memory,redis',default='memory'"`
	CacheTTL         time.Duration `kong:"help='Provider result cache TTL.',default=1h"`
	CacheNegativeTTL time.Duration `kong:"help='TTL for failed provider results.',default=60s"`
	LockBackend      string        `kong:"help='Per-artist lock backend.',enum='memory,redis',default='memory'"`
	LockTTL          time.Duration `kong:"help='Per-artist lock TTL.',default=10m"`

	Workers           int  `kong:"help='Concurrent ingestions.',default=4"`
	QueueSize         int  `kong:"help='Ingestion requests that may wait for a worker.',default=100"`
	DailyMetricDedupe bool `kong:"help='Keep one metric point per platform and type per day.',default=false"`

	SpotifyClientID      string `kong:"help='Spotify client ID.'"`
	SpotifyClientSecret  string `kong:"help='Spotify client secret.'"`
	SpotifyMarket        string `kong:"help='Spotify market for top tracks.',default=US"`
	LastFMAPIKey         string `kong:"name='lastfm-api-key',help='Last.fm API key.'"`
	YouTubeAPIKey        string `kong:"name='youtube-api-key',help='YouTube Data API key.'"`
	GeniusToken          string `kong:"help='Genius API access token.'"`
	MusicBrainzUserAgent string `kong:"name='musicbrainz-user-agent',help='User agent sent to MusicBrainz.'"`

	BrowserEnabled     bool   `kong:"help='Enable headless browser scraping (Viberate, YouTube Charts).',default=false"`
	BrowserExecPath    string `kong:"help='Chrome executable path.'"`
	BrowserMaxSessions int    `kong:"help='Concurrent browser sessions.',default=2"`

	APITimeout     time.Duration `kong:"help='Timeout for API providers.',default=15s"`
	ScrapeTimeout  time.Duration `kong:"help='Timeout for HTML scraping providers.',default=30s"`
	BrowserTimeout time.Duration `kong:"help='Timeout for browser providers.',default=60s"`

	KongContext *kong.Context `kong:"-"`
}

// New loads .env if present, then parses the command line and
// ARTIST_PULSE_* variables.
func New(version string) (*Config, error) {
	if err := godotenv.Load(EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading %s: %w", EnvFile, err)
	}
	return Parse(os.Args[1:], version)
}

// Parse builds a Config from args and the environment.
func Parse(args []string, version string) (*Config, error) {
	cfg := &Config{}
	parser, err := kong.New(
		cfg,
		kong.Name("artist-pulse"),
		kong.Description("Multi-source artist ingestion service"),
		kong.DefaultEnvars(EnvConfigPrefix),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("building parser: %w", err)
	}

	cfg.KongContext, err = parser.Parse(args)
	if err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// UsesRedis reports whether any component needs a Redis client.
func (c *Config) UsesRedis() bool {
	return c.ProgressBackend == BackendRedis || c.CacheBackend == BackendRedis || c.LockBackend == BackendRedis
}

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config cannot be nil")
	}

	var errs []error
	if c.Store == StorePostgres && c.DatabaseURL == "" {
		errs = append(errs, errors.New("database URL is required when store is postgres"))
	}
	if c.UsesRedis() && c.RedisURL == "" {
		errs = append(errs, errors.New("redis URL is required by a redis backend"))
	}
	if c.SpotifyClientID == "" || c.SpotifyClientSecret == "" {
		errs = append(errs, errors.New("spotify client ID and secret are required"))
	}
	if c.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", c.Workers))
	}
	if c.QueueSize <= 0 {
		errs = append(errs, fmt.Errorf("queue size must be positive, got %d", c.QueueSize))
	}
	if c.CacheTTL <= 0 {
		errs = append(errs, errors.New("cache TTL must be positive"))
	}
	for name, d := range map[string]time.Duration{"api": c.APITimeout, "scrape": c.ScrapeTimeout, "browser": c.BrowserTimeout} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s timeout must be positive", name))
		}
	}

	return errors.Join(errs...)
}
