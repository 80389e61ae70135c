package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"podvoice/internal/catalog"
	"podvoice/internal/library"
	"podvoice/internal/podcastindex"
	"podvoice/internal/textutil"
)

func newDirectoryCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newSearchCommand(ctx),
		newTrendingCommand(ctx),
		newEpisodesCommand(ctx),
		newSyncCommand(ctx),
		newFetchCommand(ctx),
		newFindCommand(ctx),
	}
}

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "search <title>",
		Short: "Search the podcast directory by title",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.logger(nil)
			if err != nil {
				return err
			}
			directory, err := ctx.directory(logger)
			if err != nil {
				return err
			}
			resp, err := directory.SearchByTitle(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, resp)
			}
			printFeeds(cmd, resp.Feeds, false)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output raw directory JSON")
	return cmd
}

func newTrendingCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	var store bool
	var max int
	cmd := &cobra.Command{
		Use:   "trending",
		Short: "List trending podcasts from the directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if max > 0 {
				cfg.PodcastIndex.TrendingMax = max
			}
			logger, err := ctx.logger(nil)
			if err != nil {
				return err
			}
			directory, err := ctx.directory(logger)
			if err != nil {
				return err
			}

			if store {
				return ctx.withStore(cmd.Context(), func(s *catalog.Store) error {
					result, err := library.NewFromConfig(cfg, directory, s, logger).RefreshTrending(cmd.Context())
					if err != nil {
						return err
					}
					if jsonOutput {
						return writeJSON(cmd, result)
					}
					out := cmd.OutOrStdout()
					fmt.Fprintf(out, "Stored %d trending podcasts with %d episodes\n", result.Trending, result.Episodes)
					if len(result.Failed) > 0 {
						fmt.Fprintf(out, "Episodes failed for feeds: %s\n", strings.Join(result.Failed, ", "))
					}
					return nil
				})
			}

			resp, err := directory.Trending(cmd.Context(), podcastindex.TrendingOptions{
				Max:        cfg.PodcastIndex.TrendingMax,
				Lang:       cfg.PodcastIndex.TrendingLang,
				Categories: cfg.PodcastIndex.TrendingCategories,
			})
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, resp)
			}
			printFeeds(cmd, resp.Feeds, true)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output JSON")
	cmd.Flags().BoolVar(&store, "store", false, "Store the trending podcasts and their latest episodes in the catalog")
	cmd.Flags().IntVar(&max, "max", 0, "Override podcast_index.trending_max")
	return cmd
}

func newEpisodesCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	var limit int
	cmd := &cobra.Command{
		Use:   "episodes <feed-id>",
		Short: "List the latest episodes of a directory feed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			feedID, err := parseFeedID(args[0])
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if limit <= 0 {
				limit = cfg.PodcastIndex.EpisodeLimit
			}
			logger, err := ctx.logger(nil)
			if err != nil {
				return err
			}
			directory, err := ctx.directory(logger)
			if err != nil {
				return err
			}
			resp, err := directory.EpisodesByFeedID(cmd.Context(), feedID, limit)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, resp)
			}
			if len(resp.Items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No episodes found")
				return nil
			}
			rows := make([][]string, 0, len(resp.Items))
			for _, item := range resp.Items {
				rows = append(rows, []string{
					strconv.FormatInt(item.ID, 10),
					textutil.StripHTMLAndURLs(item.Title),
					formatUnixDate(item.DatePublished),
					formatDurationPtr(item.Duration),
					item.EnclosureType,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]column{
				{header: "ID", align: alignRight},
				{header: "Title", maxWidth: titleWidth},
				{header: "Published"},
				{header: "Length", align: alignRight},
				{header: "Type"},
			}, rows))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output raw directory JSON")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Number of episodes (defaults to podcast_index.episode_limit)")
	return cmd
}

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "sync <feed-id>",
		Short: "Store a directory feed and its latest episodes in the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			feedID, err := parseFeedID(args[0])
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger(nil)
			if err != nil {
				return err
			}
			directory, err := ctx.directory(logger)
			if err != nil {
				return err
			}
			return ctx.withStore(cmd.Context(), func(s *catalog.Store) error {
				result, err := library.NewFromConfig(cfg, directory, s, logger).SyncFeed(cmd.Context(), feedID)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, result)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Synced %q (podcast #%d) with %d episodes\n",
					result.Podcast.Title, result.Podcast.ID, len(result.Episodes))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output JSON")
	return cmd
}

func newFetchCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "fetch <title>",
		Short: "Find a podcast by title and store it with its latest episodes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger(nil)
			if err != nil {
				return err
			}
			directory, err := ctx.directory(logger)
			if err != nil {
				return err
			}
			return ctx.withStore(cmd.Context(), func(s *catalog.Store) error {
				result, err := library.NewFromConfig(cfg, directory, s, logger).FetchPodcast(cmd.Context(), strings.Join(args, " "))
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, result)
				}
				verb := "Added"
				if result.Source == library.SourceDatabase {
					verb = "Already stored"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %q (podcast #%d), %d episodes fetched\n",
					verb, result.Podcast.Title, result.Podcast.ID, result.EpisodeCount)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output JSON")
	return cmd
}

// newFindCommand searches the local catalog rather than the directory.
func newFindCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	var limit int
	var minSimilarity float64
	cmd := &cobra.Command{
		Use:   "find <query>",
		Short: "Search stored podcasts by title, author and description",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(s *catalog.Store) error {
				results, err := s.Search(cmd.Context(), strings.Join(args, " "), limit, minSimilarity)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, results)
				}
				if len(results) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No stored podcasts match")
					return nil
				}
				rows := make([][]string, 0, len(results))
				for _, r := range results {
					rows = append(rows, []string{
						strconv.FormatInt(r.ID, 10),
						r.Title,
						r.Author,
						strconv.FormatFloat(r.Rank, 'f', 3, 64),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]column{
					{header: "ID", align: alignRight},
					{header: "Title", maxWidth: titleWidth},
					{header: "Author", maxWidth: 32},
					{header: "Rank", align: alignRight},
				}, rows))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output JSON")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum results")
	cmd.Flags().Float64Var(&minSimilarity, "min-similarity", 0.3, "Minimum match score between 0 and 1")
	return cmd
}

func printFeeds(cmd *cobra.Command, feeds []podcastindex.Feed, withScore bool) {
	out := cmd.OutOrStdout()
	if len(feeds) == 0 {
		fmt.Fprintln(out, "No podcasts found")
		return
	}
	columns := []column{
		{header: "Feed ID", align: alignRight},
		{header: "Title", maxWidth: titleWidth},
		{header: "Author", maxWidth: 32},
		{header: "Language"},
	}
	if withScore {
		columns = append(columns, column{header: "Score", align: alignRight})
	}
	rows := make([][]string, 0, len(feeds))
	for _, feed := range feeds {
		row := []string{
			strconv.FormatInt(feed.ID, 10),
			feed.Title,
			feed.Author,
			feed.Language,
		}
		if withScore {
			row = append(row, strconv.FormatFloat(feed.TrendScore, 'f', -1, 64))
		}
		rows = append(rows, row)
	}
	fmt.Fprintln(out, renderTable(columns, rows))
}

func parseFeedID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid feed id %q", raw)
	}
	return id, nil
}

func formatUnixDate(ts int64) string {
	if ts <= 0 {
		return "-"
	}
	return time.Unix(ts, 0).UTC().Format("2006-01-02")
}

func formatDurationPtr(seconds *int64) string {
	if seconds == nil {
		return "-"
	}
	return formatClock(int(*seconds))
}
