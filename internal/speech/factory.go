package speech

import (
	"io"
	"log/slog"

	"podvoice/internal/config"
	"podvoice/internal/voice"
)

// NewFactory selects a recognizer backend from the [speech] config section.
// audio feeds the stream provider and is ignored otherwise.
func NewFactory(cfg config.Speech, audio io.Reader, logger *slog.Logger) voice.Factory {
	switch cfg.Provider {
	case "console", "":
		return NewConsoleFactory(ConsoleOptions{Logger: logger})
	case "stream":
		return NewStreamFactory(StreamOptions{
			URL:        cfg.StreamURL,
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			SampleRate: cfg.SampleRate,
			Audio:      audio,
			Logger:     logger,
		})
	default:
		return voice.UnsupportedFactory
	}
}
