package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"podvoice/internal/api"
	"podvoice/internal/catalog"
	"podvoice/internal/config"
	"podvoice/internal/logging"
	"podvoice/internal/podcastindex"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	// newDirectory and newMedia are replaced in tests.
	newDirectory func(cfg *config.Config, logger *slog.Logger) (podcastindex.Directory, error)
	newMedia     func(cfg *config.Config, logger *slog.Logger) playerMedia
}

// contextOption swaps command dependencies.
type contextOption func(*commandContext)

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		newDirectory: defaultDirectory,
		newMedia:     newSpeakerMedia,
	}
}

func defaultDirectory(cfg *config.Config, logger *slog.Logger) (podcastindex.Directory, error) {
	if err := cfg.RequirePodcastIndex(); err != nil {
		return nil, err
	}
	return podcastindex.NewFromConfig(cfg.PodcastIndex, podcastindex.WithLogger(logger))
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// logger builds the command logger. hub may be nil.
func (c *commandContext) logger(hub *logging.StreamHub) (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewFromConfig(cfg, hub)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return logger, nil
}

func (c *commandContext) directory(logger *slog.Logger) (podcastindex.Directory, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return c.newDirectory(cfg, logger)
}

// withStore opens the catalog for the duration of fn.
func (c *commandContext) withStore(ctx context.Context, fn func(*catalog.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := catalog.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer store.Close()
	return fn(store)
}

func (c *commandContext) apiClient() (*api.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return api.NewClient(cfg.Server.Bind, cfg.Server.APIToken), nil
}

// acquireLock takes the named single-instance lock or reports who holds it.
func (c *commandContext) acquireLock(name, holder string) (*flock.Flock, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	lock := flock.New(cfg.LockPath(name))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire %s lock: %w", name, err)
	}
	if !ok {
		return nil, fmt.Errorf("another podvoice %s is already running (lock %s)", holder, lock.Path())
	}
	return lock, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
