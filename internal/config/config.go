package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory locations.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	CacheDir string `toml:"cache_dir"`
	LogDir   string `toml:"log_dir"`
}

// Server contains HTTP listener configuration.
type Server struct {
	Bind                   string `toml:"bind"`
	APIToken               string `toml:"api_token"`
	ReadTimeoutSeconds     int    `toml:"read_timeout_seconds"`
	ShutdownTimeoutSeconds int    `toml:"shutdown_timeout_seconds"`
}

// PodcastIndex contains credentials and query defaults for the podcast directory.
type PodcastIndex struct {
	APIKey             string   `toml:"api_key"`
	APISecret          string   `toml:"api_secret"`
	BaseURL            string   `toml:"base_url"`
	UserAgent          string   `toml:"user_agent"`
	TimeoutSeconds     int      `toml:"timeout_seconds"`
	EpisodeLimit       int      `toml:"episode_limit"`
	TrendingMax        int      `toml:"trending_max"`
	TrendingLang       string   `toml:"trending_lang"`
	TrendingCategories []string `toml:"trending_categories"`
}

// Store selects the relational catalog backend.
type Store struct {
	Driver string `toml:"driver"`
	DSN    string `toml:"dsn"`
}

// Player contains playback defaults shared by the terminal and browser players.
type Player struct {
	PlaybackRates []float64 `toml:"playback_rates"`
	SeekSeconds   float64   `toml:"seek_seconds"`
	Volume        float64   `toml:"volume"`
}

// Speech selects and tunes the speech recognizer used for voice commands.
type Speech struct {
	Provider           string `toml:"provider"`
	Locale             string `toml:"locale"`
	RestartDelayMillis int    `toml:"restart_delay_ms"`
	MaxRestarts        int    `toml:"max_restarts"`
	StreamURL          string `toml:"stream_url"`
	APIKey             string `toml:"api_key"`
	Model              string `toml:"model"`
	SampleRate         int    `toml:"sample_rate"`
}

// RateLimit bounds API requests per client address.
type RateLimit struct {
	Enabled       bool `toml:"enabled"`
	Requests      int  `toml:"requests"`
	WindowSeconds int  `toml:"window_seconds"`
	// TrustForwardedFor keys clients by the first X-Forwarded-For hop. Only
	// enable it behind a reverse proxy that overwrites the header.
	TrustForwardedFor bool `toml:"trust_forwarded_for"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for podvoice.
//
// Configuration sections by subsystem:
//   - Paths: data, cache and log directories
//   - Server: HTTP bind address and bearer token
//   - PodcastIndex: directory credentials and query defaults
//   - Store: catalog driver (sqlite or postgres)
//   - Player: playback rate ladder and seek step
//   - Speech: voice recognizer backend
//   - RateLimit: per-client API request window
//   - Logging: log format and level
type Config struct {
	Paths        Paths        `toml:"paths"`
	Server       Server       `toml:"server"`
	PodcastIndex PodcastIndex `toml:"podcast_index"`
	Store        Store        `toml:"store"`
	Player       Player       `toml:"player"`
	Speech       Speech       `toml:"speech"`
	RateLimit    RateLimit    `toml:"rate_limit"`
	Logging      Logging      `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return nil, "", false, fmt.Errorf("parse config: %s", strict.String())
			}
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("podvoice.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data, cache and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.CacheDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath is the sqlite catalog file.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "podvoice.db")
}

// LockPath returns the single-instance lock file for name (server, player).
func (c *Config) LockPath(name string) string {
	return filepath.Join(c.Paths.DataDir, name+".lock")
}

// LogPath is the file the logger appends to alongside stdout.
func (c *Config) LogPath() string {
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return ""
	}
	return filepath.Join(c.Paths.LogDir, "podvoice.log")
}

// RequirePodcastIndex reports a field-named error when directory credentials
// are missing. Commands that never touch the directory skip this check.
func (c *Config) RequirePodcastIndex() error {
	defaultPath, err := DefaultConfigPath()
	if err != nil {
		defaultPath = defaultConfigPath
	}
	if strings.TrimSpace(c.PodcastIndex.APIKey) == "" {
		return fmt.Errorf("podcast_index.api_key is required. Set PODCAST_INDEX_API_KEY env var or edit %s (create with 'podvoice config init')", defaultPath)
	}
	if strings.TrimSpace(c.PodcastIndex.APISecret) == "" {
		return fmt.Errorf("podcast_index.api_secret is required. Set PODCAST_INDEX_API_SECRET env var or edit %s", defaultPath)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func defaultCacheDir() string {
	if base, ok := os.LookupEnv("XDG_CACHE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "podvoice")
	}
	return "~/.cache/podvoice"
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// SampleConfig returns the embedded sample configuration text.
func SampleConfig() string {
	return sampleConfig
}
