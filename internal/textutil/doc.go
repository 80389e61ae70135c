// Package textutil provides text processing utilities for search ranking,
// HTML cleanup and caseless matching.
//
// The primary use cases are:
//   - Token fingerprints with TF-IDF weighting and cosine similarity
//   - Word trigram similarity for fuzzy title and author matching
//   - Sanitizing directory-supplied HTML down to basic formatting
//   - Stripping markup and URLs for plain-text listings
//
// Tokens are Unicode case-folded via golang.org/x/text/cases.
package textutil
