package textutil

import "golang.org/x/text/cases"

// Fold returns s case-folded for caseless matching. Folding handles the
// Unicode special cases (ß, final sigma, Turkish dotless i) that ToLower
// leaves distinct.
func Fold(s string) string {
	return cases.Fold().String(s)
}
