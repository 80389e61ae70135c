package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"podvoice/internal/api"
	"podvoice/internal/logging"
	"podvoice/internal/logs"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the status of a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			status, err := client.Status(cmd.Context())
			if err != nil && !isServerUnavailable(err) {
				return err
			}
			if jsonOutput {
				if status == nil {
					return writeJSON(cmd, map[string]any{"running": false, "bind": cfg.Server.Bind})
				}
				return writeJSON(cmd, status)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range renderSectionHeader("Server", colorize) {
				fmt.Fprintln(out, line)
			}
			if status == nil {
				fmt.Fprintln(out, renderStatusLine("Server", statusError, fmt.Sprintf("not reachable at %s; start it with `podvoice serve`", cfg.Server.Bind), colorize))
				return nil
			}
			fmt.Fprintln(out, renderStatusLine("Server", statusOK, "running at "+cfg.Server.Bind, colorize))
			fmt.Fprintln(out, renderStatusLine("Version", statusInfo, status.Version, colorize))
			fmt.Fprintln(out, renderStatusLine("Auth required", statusInfo, yesNo(status.AuthRequired), colorize))
			fmt.Fprintln(out, renderStatusLine("Player sessions", statusInfo, strconv.Itoa(status.Sessions), colorize))
			fmt.Fprintln(out, renderStatusLine("Speech provider", statusInfo, status.SpeechProvider, colorize))

			for _, line := range renderSectionHeader("Catalog", colorize) {
				fmt.Fprintln(out, line)
			}
			fmt.Fprintln(out, renderStatusLine("Store", statusInfo, fmt.Sprintf("%s (schema v%d)", status.Dialect, status.SchemaVersion), colorize))
			kind := statusOK
			if status.Podcasts == 0 {
				kind = statusWarn
			}
			fmt.Fprintln(out, renderStatusLine("Podcasts", kind, strconv.Itoa(status.Podcasts), colorize))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output JSON")
	return cmd
}

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var lines int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Display logs from a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			query := api.LogQuery{Limit: lines, Tail: true}
			if query.Limit <= 0 {
				query.Limit = 200
			}
			out := cmd.OutOrStdout()
			printed := false
			for {
				resp, err := client.Logs(cmd.Context(), query)
				if err != nil {
					if cmd.Context() != nil && cmd.Context().Err() != nil {
						return nil
					}
					if isServerUnavailable(err) && !printed {
						return tailLogFile(cmd, ctx, lines, follow)
					}
					return err
				}
				for _, evt := range resp.Events {
					if jsonOutput {
						if err := writeJSON(cmd, evt); err != nil {
							return err
						}
					} else {
						fmt.Fprintln(out, formatLogEvent(evt))
					}
					printed = true
				}
				if !follow {
					if !printed && !jsonOutput {
						fmt.Fprintln(out, "No log entries available")
					}
					return nil
				}
				query = api.LogQuery{Since: resp.Next, Limit: 200, Follow: true}
			}
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&lines, "lines", "n", 10, "Number of lines to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output one JSON event per line")
	return cmd
}

func formatLogEvent(evt logging.LogEvent) string {
	ts := evt.Timestamp.Format("2006-01-02 15:04:05")
	level := strings.ToUpper(strings.TrimSpace(evt.Level))
	if level == "" {
		level = "INFO"
	}
	parts := []string{ts, level}
	if component := strings.TrimSpace(evt.Component); component != "" {
		parts = append(parts, fmt.Sprintf("[%s]", component))
	}
	line := strings.Join(parts, " ")
	if subject := logSubject(evt); subject != "" {
		line += " " + subject
	}
	if message := strings.TrimSpace(evt.Message); message != "" {
		line += " - " + message
	}
	var builder strings.Builder
	builder.WriteString(line)
	for _, detail := range evt.Details {
		if strings.TrimSpace(detail.Label) == "" || strings.TrimSpace(detail.Value) == "" {
			continue
		}
		builder.WriteString("\n    - ")
		builder.WriteString(detail.Label)
		builder.WriteString(": ")
		builder.WriteString(detail.Value)
	}
	return builder.String()
}

func logSubject(evt logging.LogEvent) string {
	switch {
	case evt.FeedID > 0 && evt.SessionID != "":
		return fmt.Sprintf("Feed #%d (session %s)", evt.FeedID, evt.SessionID)
	case evt.FeedID > 0:
		return fmt.Sprintf("Feed #%d", evt.FeedID)
	case evt.SessionID != "":
		return "Session " + evt.SessionID
	case evt.RequestID != "":
		return "Request " + evt.RequestID
	default:
		return ""
	}
}

// tailLogFile shows the local log file when no server answers.
func tailLogFile(cmd *cobra.Command, ctx *commandContext, lines int, follow bool) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	path := cfg.LogPath()
	if path == "" {
		return errors.New("server is not running and paths.log_dir is not set")
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(cmd.ErrOrStderr(), "Server not running; reading %s\n", path)

	opts := logs.Options{Offset: -1, Limit: lines}
	if opts.Limit <= 0 {
		opts.Limit = 200
	}
	printed := false
	for {
		page, err := logs.Tail(cmd.Context(), path, opts)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("tail logs: %w", err)
		}
		for _, line := range page.Lines {
			fmt.Fprintln(out, line)
			printed = true
		}
		if !follow {
			if !printed {
				fmt.Fprintln(out, "No log entries available")
			}
			return nil
		}
		opts = logs.Options{Offset: page.Offset, Follow: true, Wait: time.Second}
	}
}

// isServerUnavailable reports a dial failure rather than an HTTP error.
func isServerUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
