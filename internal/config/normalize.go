package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeServer()
	c.normalizePodcastIndex()
	c.normalizeStore()
	c.normalizePlayer()
	c.normalizeSpeech()
	c.normalizeRateLimit()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		c.Paths.CacheDir = defaultCacheDir()
	}
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeServer() {
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Server.Bind == "" {
		c.Server.Bind = defaultBind
	}
	c.Server.APIToken = strings.TrimSpace(c.Server.APIToken)
	if c.Server.APIToken == "" {
		if value, ok := os.LookupEnv("PODVOICE_API_TOKEN"); ok {
			c.Server.APIToken = strings.TrimSpace(value)
		}
	}
	if c.Server.ReadTimeoutSeconds <= 0 {
		c.Server.ReadTimeoutSeconds = defaultReadTimeoutSeconds
	}
	if c.Server.ShutdownTimeoutSeconds <= 0 {
		c.Server.ShutdownTimeoutSeconds = defaultShutdownTimeout
	}
}

func (c *Config) normalizePodcastIndex() {
	pi := &c.PodcastIndex
	pi.APIKey = strings.TrimSpace(pi.APIKey)
	if pi.APIKey == "" {
		if value, ok := os.LookupEnv("PODCAST_INDEX_API_KEY"); ok {
			pi.APIKey = strings.TrimSpace(value)
		}
	}
	pi.APISecret = strings.TrimSpace(pi.APISecret)
	if pi.APISecret == "" {
		if value, ok := os.LookupEnv("PODCAST_INDEX_API_SECRET"); ok {
			pi.APISecret = strings.TrimSpace(value)
		}
	}
	pi.BaseURL = strings.TrimRight(strings.TrimSpace(pi.BaseURL), "/")
	if pi.BaseURL == "" {
		pi.BaseURL = defaultPodcastIndexBaseURL
	}
	pi.UserAgent = strings.TrimSpace(pi.UserAgent)
	if pi.UserAgent == "" {
		pi.UserAgent = defaultPodcastIndexUserAgent
	}
	if pi.TimeoutSeconds <= 0 {
		pi.TimeoutSeconds = defaultPodcastIndexTimeout
	}
	if pi.EpisodeLimit <= 0 {
		pi.EpisodeLimit = defaultEpisodeLimit
	}
	if pi.TrendingMax <= 0 {
		pi.TrendingMax = defaultTrendingMax
	}
	pi.TrendingLang = strings.ToLower(strings.TrimSpace(pi.TrendingLang))
	if pi.TrendingLang == "" {
		pi.TrendingLang = defaultTrendingLang
	}
	cats := make([]string, 0, len(pi.TrendingCategories))
	for _, cat := range pi.TrendingCategories {
		if trimmed := strings.TrimSpace(cat); trimmed != "" {
			cats = append(cats, trimmed)
		}
	}
	if len(cats) == 0 {
		cats = append(cats, defaultTrendingCategories...)
	}
	pi.TrendingCategories = cats
}

func (c *Config) normalizeStore() {
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	c.Store.DSN = strings.TrimSpace(c.Store.DSN)
	if c.Store.DSN == "" {
		if value, ok := os.LookupEnv("DATABASE_URL"); ok {
			c.Store.DSN = strings.TrimSpace(value)
		}
	}
	switch c.Store.Driver {
	case "":
		if strings.HasPrefix(c.Store.DSN, "postgres://") || strings.HasPrefix(c.Store.DSN, "postgresql://") {
			c.Store.Driver = "postgres"
		} else {
			c.Store.Driver = defaultStoreDriver
		}
	case "postgresql", "pgx":
		c.Store.Driver = "postgres"
	case "sqlite3":
		c.Store.Driver = "sqlite"
	}
}

func (c *Config) normalizePlayer() {
	if len(c.Player.PlaybackRates) == 0 {
		c.Player.PlaybackRates = append([]float64(nil), defaultPlaybackRates...)
	}
	if c.Player.SeekSeconds <= 0 {
		c.Player.SeekSeconds = defaultSeekSeconds
	}
}

func (c *Config) normalizeSpeech() {
	s := &c.Speech
	s.Provider = strings.ToLower(strings.TrimSpace(s.Provider))
	if s.Provider == "" {
		s.Provider = defaultSpeechProvider
	}
	s.Locale = strings.TrimSpace(s.Locale)
	if s.Locale == "" {
		s.Locale = defaultSpeechLocale
	}
	if s.RestartDelayMillis <= 0 {
		s.RestartDelayMillis = defaultRestartDelayMillis
	}
	if s.MaxRestarts < 0 {
		s.MaxRestarts = 0
	}
	s.StreamURL = strings.TrimSpace(s.StreamURL)
	s.APIKey = strings.TrimSpace(s.APIKey)
	if s.APIKey == "" {
		if value, ok := os.LookupEnv("STT_API_KEY"); ok {
			s.APIKey = strings.TrimSpace(value)
		}
	}
	s.Model = strings.TrimSpace(s.Model)
	if s.Model == "" {
		s.Model = defaultSpeechModel
	}
	if s.SampleRate <= 0 {
		s.SampleRate = defaultSpeechSampleRate
	}
}

func (c *Config) normalizeRateLimit() {
	if c.RateLimit.Requests <= 0 {
		c.RateLimit.Requests = defaultRateLimitRequests
	}
	if c.RateLimit.WindowSeconds <= 0 {
		c.RateLimit.WindowSeconds = defaultRateLimitWindow
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
