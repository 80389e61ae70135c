package testsupport

import (
	"path/filepath"
	"testing"

	"podvoice/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Directory credentials are filled with placeholders so RequirePodcastIndex
// passes; the base URL still points at the public API and must be overridden
// with WithDirectoryURL before any request is made.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.CacheDir = filepath.Join(base, "cache")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Server.Bind = "127.0.0.1:0"
	cfgVal.PodcastIndex.APIKey = "test-key"
	cfgVal.PodcastIndex.APISecret = "test-secret"
	cfgVal.Store.Driver = "sqlite"
	cfgVal.Store.DSN = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithDirectoryURL points the podcast directory client at a test server.
func WithDirectoryURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.PodcastIndex.BaseURL = url
	}
}

// WithAPIToken enables bearer authentication on mutating routes.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Server.APIToken = token
	}
}

// WithRateLimit overrides the per-client request budget.
func WithRateLimit(requests, windowSeconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.RateLimit.Enabled = requests > 0
		b.cfg.RateLimit.Requests = requests
		b.cfg.RateLimit.WindowSeconds = windowSeconds
	}
}

// WithTrustedProxy makes the rate limiter key clients by X-Forwarded-For.
func WithTrustedProxy() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.RateLimit.TrustForwardedFor = true
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
