package catalog

import (
	"context"
	"sort"
	"strings"

	"podvoice/internal/services"
	"podvoice/internal/textutil"
)

const (
	DefaultSearchLimit   = 10
	DefaultMinSimilarity = 0.3
)

type searchCandidate struct {
	result      SearchResult
	fingerprint *textutil.Fingerprint
}

// Search ranks stored podcasts against query. A podcast scores the best of
// its title and author trigram similarity and the TF-IDF cosine similarity of
// its description. limit <= 0 uses DefaultSearchLimit and minSimilarity < 0
// uses DefaultMinSimilarity.
func (s *Store) Search(ctx context.Context, query string, limit int, minSimilarity float64) ([]SearchResult, error) {
	ctx = ensureContext(ctx)
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, services.Wrap(services.ErrValidation, component, "search", "query must not be empty", nil)
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if minSimilarity < 0 {
		minSimilarity = DefaultMinSimilarity
	}

	rows, err := s.db.QueryContext(ctx, "SELECT id, title, author, description FROM podcasts")
	if err != nil {
		return nil, wrapDB("search", err)
	}
	defer rows.Close()

	corpus := textutil.NewCorpus()
	var candidates []searchCandidate
	for rows.Next() {
		var c searchCandidate
		if err := rows.Scan(&c.result.ID, &c.result.Title, &c.result.Author, &c.result.Description); err != nil {
			return nil, wrapDB("search", err)
		}
		c.fingerprint = textutil.NewFingerprint(textutil.StripHTMLAndURLs(c.result.Description))
		corpus.Add(c.fingerprint)
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDB("search", err)
	}

	idf := corpus.IDF()
	queryFP := textutil.NewFingerprint(query).WithIDF(idf)
	results := []SearchResult{}
	for _, c := range candidates {
		rank := max(
			textutil.TrigramSimilarity(query, c.result.Title),
			textutil.TrigramSimilarity(query, c.result.Author),
			textutil.CosineSimilarity(queryFP, c.fingerprint.WithIDF(idf)),
		)
		if rank < minSimilarity || rank == 0 {
			continue
		}
		c.result.Rank = rank
		results = append(results, c.result)
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Rank != results[j].Rank {
			return results[i].Rank > results[j].Rank
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}
