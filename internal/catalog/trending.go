package catalog

import (
	"context"
	"database/sql"
	"strings"
)

// ReplaceTrending swaps the whole trending list for entries in one
// transaction. Duplicate podcast ids keep their first entry.
func (s *Store) ReplaceTrending(ctx context.Context, entries []TrendingEntry) (int, error) {
	ctx = ensureContext(ctx)
	trendingAt := s.timestamp()
	seen := make(map[int64]bool, len(entries))
	inserted := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		inserted = 0
		if _, err := tx.ExecContext(ctx, "DELETE FROM trending_podcasts"); err != nil {
			return err
		}
		clear(seen)
		const insert = "INSERT INTO trending_podcasts (podcast_id, trend_score, trending_at) VALUES (?, ?, ?)"
		for _, entry := range entries {
			if entry.PodcastID <= 0 || seen[entry.PodcastID] {
				continue
			}
			seen[entry.PodcastID] = true
			if _, err := s.execWithRetry(ctx, tx, insert, entry.PodcastID, entry.TrendScore, trendingAt); err != nil {
				return err
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, wrapDB("replace trending", err)
	}
	return inserted, nil
}

// ListTrending returns the trending list joined with podcasts, highest score
// first.
func (s *Store) ListTrending(ctx context.Context) ([]TrendingPodcast, error) {
	ctx = ensureContext(ctx)
	cols := make([]string, 0, 33)
	for _, col := range strings.Split(podcastColumns, ", ") {
		cols = append(cols, "p."+col)
	}
	query := "SELECT t.id, t.podcast_id, t.trend_score, t.trending_at, " + strings.Join(cols, ", ") +
		" FROM trending_podcasts t JOIN podcasts p ON p.id = t.podcast_id ORDER BY t.trend_score DESC, t.id ASC"
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, wrapDB("list trending", err)
	}
	defer rows.Close()

	out := []TrendingPodcast{}
	for rows.Next() {
		var tp TrendingPodcast
		p, err := scanPodcast(prefixScanner{rows: rows, prefix: []any{&tp.ID, &tp.PodcastID, &tp.TrendScore, &tp.TrendingAt}})
		if err != nil {
			return nil, wrapDB("list trending", err)
		}
		tp.Podcast = *p
		out = append(out, tp)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDB("list trending", err)
	}
	return out, nil
}

// prefixScanner scans leading columns into prefix before handing the rest to
// the wrapped scan.
type prefixScanner struct {
	rows   *sql.Rows
	prefix []any
}

func (p prefixScanner) Scan(dest ...any) error {
	return p.rows.Scan(append(append([]any{}, p.prefix...), dest...)...)
}
