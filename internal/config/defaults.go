package config

const (
	defaultConfigPath            = "~/.config/podvoice/config.toml"
	defaultDataDir               = "~/.local/share/podvoice"
	defaultLogDir                = "~/.local/share/podvoice/logs"
	defaultBind                  = "127.0.0.1:7488"
	defaultReadTimeoutSeconds    = 15
	defaultShutdownTimeout       = 10
	defaultPodcastIndexBaseURL   = "https://api.podcastindex.org/api/1.0"
	defaultPodcastIndexUserAgent = "podvoice/1.0"
	defaultPodcastIndexTimeout   = 15
	defaultEpisodeLimit          = 10
	defaultTrendingMax           = 25
	defaultTrendingLang          = "en"
	defaultStoreDriver           = "sqlite"
	defaultSeekSeconds           = 10
	defaultVolume                = 0
	defaultSpeechProvider        = "console"
	defaultSpeechLocale          = "en-US"
	defaultRestartDelayMillis    = 100
	defaultMaxRestarts           = 50
	defaultSpeechSampleRate      = 16000
	defaultSpeechModel           = "ink-whisper"
	defaultRateLimitRequests     = 50
	defaultRateLimitWindow       = 30
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

var (
	defaultTrendingCategories = []string{"9", "11", "12", "102", "112"}
	defaultPlaybackRates      = []float64{1, 1.25, 1.5, 1.75, 2}
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:  defaultDataDir,
			CacheDir: defaultCacheDir(),
			LogDir:   defaultLogDir,
		},
		Server: Server{
			Bind:                   defaultBind,
			ReadTimeoutSeconds:     defaultReadTimeoutSeconds,
			ShutdownTimeoutSeconds: defaultShutdownTimeout,
		},
		PodcastIndex: PodcastIndex{
			BaseURL:            defaultPodcastIndexBaseURL,
			UserAgent:          defaultPodcastIndexUserAgent,
			TimeoutSeconds:     defaultPodcastIndexTimeout,
			EpisodeLimit:       defaultEpisodeLimit,
			TrendingMax:        defaultTrendingMax,
			TrendingLang:       defaultTrendingLang,
			TrendingCategories: append([]string(nil), defaultTrendingCategories...),
		},
		Store: Store{
			Driver: defaultStoreDriver,
		},
		Player: Player{
			PlaybackRates: append([]float64(nil), defaultPlaybackRates...),
			SeekSeconds:   defaultSeekSeconds,
			Volume:        defaultVolume,
		},
		Speech: Speech{
			Provider:           defaultSpeechProvider,
			Locale:             defaultSpeechLocale,
			RestartDelayMillis: defaultRestartDelayMillis,
			MaxRestarts:        defaultMaxRestarts,
			Model:              defaultSpeechModel,
			SampleRate:         defaultSpeechSampleRate,
		},
		RateLimit: RateLimit{
			Enabled:       true,
			Requests:      defaultRateLimitRequests,
			WindowSeconds: defaultRateLimitWindow,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
