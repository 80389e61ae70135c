package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"podvoice/internal/audio"
	"podvoice/internal/catalog"
	"podvoice/internal/config"
	"podvoice/internal/logging"
	"podvoice/internal/playback"
	"podvoice/internal/speech"
	"podvoice/internal/voice"
)

// playerMedia is a playback.Media that owns an output device.
type playerMedia interface {
	playback.Media
	Close() error
}

func newSpeakerMedia(cfg *config.Config, logger *slog.Logger) playerMedia {
	return audio.NewDevice(
		audio.WithCacheDir(cfg.Paths.CacheDir),
		audio.WithVolume(cfg.Player.Volume),
		audio.WithLogger(logger),
	)
}

type playOptions struct {
	mimeType string
	title    string
	rate     float64
	noVoice  bool
}

func newPlayCommand(ctx *commandContext) *cobra.Command {
	var opts playOptions

	cmd := &cobra.Command{
		Use:   "play <episode-id|url|path>",
		Short: "Play an episode on the local speaker with voice control",
		Long: "Play a stored episode (by catalog id) or any mp3/wav URL or file.\n" +
			"With the console speech provider, type commands such as \"pause\", \"forward\"\n" +
			"or \"faster\" at the prompt; Ctrl-C stops listening and exits.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlayer(cmd, ctx, args[0], opts)
		},
	}
	cmd.Flags().StringVar(&opts.mimeType, "type", "", "MIME type of the audio (audio/mpeg, audio/wav)")
	cmd.Flags().StringVar(&opts.title, "title", "", "Title shown for a URL or file")
	cmd.Flags().Float64Var(&opts.rate, "rate", 0, "Initial playback rate")
	cmd.Flags().BoolVar(&opts.noVoice, "no-voice", false, "Play without voice control")
	return cmd
}

func runPlayer(cmd *cobra.Command, ctx *commandContext, target string, opts playOptions) error {
	cmdCtx := cmd.Context()
	if cmdCtx == nil {
		cmdCtx = context.Background()
	}
	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	lock, err := ctx.acquireLock("player", "player")
	if err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	logger, err := ctx.logger(nil)
	if err != nil {
		return err
	}
	track, err := ctx.resolveTrack(signalCtx, target, opts)
	if err != nil {
		return err
	}
	rates, err := playback.NewRateLadder(cfg.Player.PlaybackRates)
	if err != nil {
		return fmt.Errorf("player.playback_rates: %w", err)
	}
	initialRate := opts.rate
	if initialRate <= 0 {
		initialRate = rates.NormalRate()
	}

	media := ctx.newMedia(cfg, logger)
	defer media.Close()

	session := playback.NewSession(media,
		playback.WithLogger(logger),
		playback.WithInitialRate(initialRate),
	)
	player := session.For(track)

	out := cmd.ErrOrStderr()
	colorize := shouldColorize(out)
	finished := make(chan struct{})
	var finishOnce sync.Once
	finish := func() { finishOnce.Do(func() { close(finished) }) }

	unsubscribe := session.Subscribe(func(st playback.State) {
		if trackEnded(st) {
			finish()
		}
	})
	defer unsubscribe()

	logger.Info("playback started",
		logging.String("source", track.Source),
		logging.String("title", track.Title),
		logging.Float64("rate", initialRate),
	)
	fmt.Fprintf(out, "Playing %s\n", trackLabel(track))
	player.Play()

	if !opts.noVoice {
		ctrl := voice.NewController(player, speech.NewFactory(cfg.Speech, cmd.InOrStdin(), logger),
			voice.WithLogger(logger),
			voice.WithRates(rates),
			voice.WithLocale(cfg.Speech.Locale),
			voice.WithSeekSeconds(cfg.Player.SeekSeconds),
			voice.WithRestartDelay(time.Duration(cfg.Speech.RestartDelayMillis)*time.Millisecond),
			voice.WithMaxRestarts(cfg.Speech.MaxRestarts),
			voice.WithListeningHook(func(listening bool) {
				if !listening {
					finish()
				}
			}),
			voice.WithCommandHook(func(c voice.Command, transcript string) {
				if c == voice.CommandNone {
					fmt.Fprintf(out, "Unrecognized command %q\n", transcript)
					return
				}
				fmt.Fprintln(out, renderPlaybackLine(player.Snapshot(), colorize))
			}),
		)
		defer ctrl.Close()
		if ctrl.Supported() {
			fmt.Fprintf(out, "Voice commands: %s\n", strings.Join(commandHints(), ", "))
			ctrl.Toggle()
		} else {
			fmt.Fprintln(out, renderStatusLine("Voice", statusWarn, "speech recognition unavailable", colorize))
		}
	}

	select {
	case <-signalCtx.Done():
	case <-finished:
	}
	player.Pause()
	fmt.Fprintln(out, renderPlaybackLine(player.Snapshot(), colorize))
	return nil
}

// trackEnded reports a paused session whose position reached the duration.
func trackEnded(st playback.State) bool {
	return st.ActiveTrack != nil && !st.Playing && st.Duration > 0 && st.CurrentTime >= st.Duration
}

// resolveTrack turns a catalog episode id or a URL/path into a track.
func (c *commandContext) resolveTrack(ctx context.Context, target string, opts playOptions) (*playback.TrackRef, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, errors.New("episode id or url is required")
	}
	if id, err := strconv.ParseInt(target, 10, 64); err == nil {
		var track *playback.TrackRef
		err := c.withStore(ctx, func(store *catalog.Store) error {
			episode, err := store.GetEpisode(ctx, id)
			if err != nil {
				return err
			}
			track = &playback.TrackRef{
				ID:       episode.ID,
				Source:   episode.EnclosureURL,
				MIMEType: episode.EnclosureType,
				Title:    episode.Title,
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("load episode %d: %w", id, err)
		}
		if opts.mimeType != "" {
			track.MIMEType = opts.mimeType
		}
		return track, nil
	}
	if _, err := audio.CodecFor(opts.mimeType, target); err != nil {
		return nil, err
	}
	title := opts.title
	if title == "" {
		title = target
	}
	return &playback.TrackRef{Source: target, MIMEType: opts.mimeType, Title: title}, nil
}

func trackLabel(track *playback.TrackRef) string {
	if track.Title != "" && track.Title != track.Source {
		return fmt.Sprintf("%q (%s)", track.Title, track.Source)
	}
	return track.Source
}

// commandHints lists the first keyword of every command in evaluation order.
func commandHints() []string {
	keywords := voice.Keywords()
	hints := make([]string, 0, len(keywords))
	for _, entry := range keywords {
		if len(entry.Keywords) > 0 {
			hints = append(hints, entry.Keywords[0])
		}
	}
	return hints
}

var _ playerMedia = (*audio.Device)(nil)
