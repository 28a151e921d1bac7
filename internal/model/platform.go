package model

// Platform identifies an external data source or profile host.
type Platform string

// Known platforms.
const (
	PlatformSpotify       Platform = "spotify"
	PlatformYouTube       Platform = "youtube"
	PlatformMusicBrainz   Platform = "musicbrainz"
	PlatformDeezer        Platform = "deezer"
	PlatformLastFM        Platform = "lastfm"
	PlatformGenius        Platform = "genius"
	PlatformViberate      Platform = "viberate"
	PlatformKworb         Platform = "kworb"
	PlatformWikipedia     Platform = "wikipedia"
	PlatformYouTubeCharts Platform = "youtube_charts"
	PlatformInstagram     Platform = "instagram"
	PlatformTikTok        Platform = "tiktok"
	PlatformTwitter       Platform = "twitter"
	PlatformFacebook      Platform = "facebook"
	PlatformSoundCloud    Platform = "soundcloud"
	PlatformAppleMusic    Platform = "apple_music"
	PlatformWebsite       Platform = "website"
)

// MetricType names the measured quantity of a Metric.
type MetricType string

// Known metric types.
const (
	MetricFollowers        MetricType = "followers"
	MetricPopularity       MetricType = "popularity"
	MetricMonthlyListeners MetricType = "monthly_listeners"
	MetricListeners        MetricType = "listeners"
	MetricPlaycount        MetricType = "playcount"
	MetricSubscribers      MetricType = "subscribers"
	MetricTotalViews       MetricType = "total_views"
	MetricVideoCount       MetricType = "video_count"
	MetricFans             MetricType = "fans"
	MetricDailyStreams     MetricType = "daily_streams"
	MetricTotalStreams     MetricType = "total_streams"
	MetricChartRank        MetricType = "chart_rank"
	MetricRank             MetricType = "rank"
	MetricLikes            MetricType = "likes"
)

// Defaults applied when no provider supplies a value.
const (
	DefaultCountry = "US"
	DefaultGender  = "unknown"
)
