package config

import (
	"errors"
	"fmt"
	"math"
	"net"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validatePodcastIndex(); err != nil {
		return err
	}
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validatePlayer(); err != nil {
		return err
	}
	if err := c.validateSpeech(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateServer() error {
	if _, _, err := net.SplitHostPort(c.Server.Bind); err != nil {
		return fmt.Errorf("server.bind must be host:port: %w", err)
	}
	return nil
}

func (c *Config) validatePodcastIndex() error {
	parsed, err := url.Parse(c.PodcastIndex.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("podcast_index.base_url must be an absolute URL, got %q", c.PodcastIndex.BaseURL)
	}
	return ensurePositiveMap(map[string]int{
		"podcast_index.timeout_seconds": c.PodcastIndex.TimeoutSeconds,
		"podcast_index.episode_limit":   c.PodcastIndex.EpisodeLimit,
		"podcast_index.trending_max":    c.PodcastIndex.TrendingMax,
	})
}

func (c *Config) validateStore() error {
	switch c.Store.Driver {
	case "sqlite":
		return nil
	case "postgres":
		if c.Store.DSN == "" {
			return errors.New("store.dsn must be set when store.driver is postgres (or set DATABASE_URL)")
		}
		return nil
	default:
		return fmt.Errorf("store.driver must be sqlite or postgres, got %q", c.Store.Driver)
	}
}

func (c *Config) validatePlayer() error {
	rates := c.Player.PlaybackRates
	for i, rate := range rates {
		if !(rate > 0) || math.IsInf(rate, 0) {
			return fmt.Errorf("player.playback_rates[%d] must be positive", i)
		}
		if i > 0 && rate <= rates[i-1] {
			return fmt.Errorf("player.playback_rates must be strictly ascending (entry %d)", i)
		}
	}
	return nil
}

func (c *Config) validateSpeech() error {
	switch c.Speech.Provider {
	case "console", "none":
	case "stream":
		if c.Speech.StreamURL == "" {
			return errors.New("speech.stream_url must be set when speech.provider is stream")
		}
		parsed, err := url.Parse(c.Speech.StreamURL)
		if err != nil || (parsed.Scheme != "ws" && parsed.Scheme != "wss") {
			return fmt.Errorf("speech.stream_url must be a ws:// or wss:// URL, got %q", c.Speech.StreamURL)
		}
	default:
		return fmt.Errorf("speech.provider must be console, stream or none, got %q", c.Speech.Provider)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", strings.TrimSpace(c.Logging.Level))
	}
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
