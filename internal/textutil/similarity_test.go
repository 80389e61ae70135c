package textutil

import (
	"math"
	"testing"
)

const epsilon = 1e-9

func TestCosineSimilarityNil(t *testing.T) {
	tests := []struct {
		name string
		a    *Fingerprint
		b    *Fingerprint
	}{
		{"both nil", nil, nil},
		{"a nil", nil, NewFingerprint("hello world")},
		{"b nil", NewFingerprint("hello world"), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CosineSimilarity(tt.a, tt.b); got != 0 {
				t.Errorf("CosineSimilarity() = %v, want 0", got)
			}
		})
	}
}

func TestCosineSimilarityIdentical(t *testing.T) {
	text := "The Daily tech news podcast for developers"
	got := CosineSimilarity(NewFingerprint(text), NewFingerprint(text))
	if math.Abs(got-1) > epsilon {
		t.Errorf("CosineSimilarity(identical) = %v, want 1", got)
	}
}

func TestCosineSimilarityDisjointAndPartial(t *testing.T) {
	if got := CosineSimilarity(NewFingerprint("apple banana cherry"), NewFingerprint("dog elephant frog")); got != 0 {
		t.Errorf("disjoint = %v, want 0", got)
	}
	a := NewFingerprint("the quick brown fox")
	b := NewFingerprint("the slow brown cat")
	ab, ba := CosineSimilarity(a, b), CosineSimilarity(b, a)
	if ab <= 0 || ab >= 1 {
		t.Errorf("partial = %v, want between 0 and 1", ab)
	}
	if math.Abs(ab-ba) > epsilon {
		t.Errorf("not symmetric: %v vs %v", ab, ba)
	}
}

func TestNewFingerprint(t *testing.T) {
	if NewFingerprint("") != nil {
		t.Error("expected nil for empty text")
	}
	if NewFingerprint("a an it to") != nil {
		t.Error("expected nil for text with only short tokens")
	}
	fp := NewFingerprint("hello hello world")
	if fp == nil || fp.TokenCount() != 2 {
		t.Fatalf("unexpected fingerprint %+v", fp)
	}
	if math.Abs(fp.norm-math.Sqrt(5)) > epsilon {
		t.Errorf("norm = %v, want sqrt(5)", fp.norm)
	}
}

func TestTokenizeFoldsUnicode(t *testing.T) {
	got := Tokenize("STRASSE Straße, über-Podcast! a1 xyz")
	want := []string{"strasse", "strasse", "über", "podcast", "xyz"}
	if len(got) != len(want) {
		t.Fatalf("Tokenize = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Tokenize[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestIDFDownweightsCommonTerms(t *testing.T) {
	corpus := NewCorpus()
	for _, doc := range []string{"podcast about history", "podcast about science", "podcast about cooking"} {
		corpus.Add(NewFingerprint(doc))
	}
	idf := corpus.IDF()
	if idf["podcast"] >= idf["history"] {
		t.Fatalf("expected common term weighted lower: podcast=%v history=%v", idf["podcast"], idf["history"])
	}
	query := NewFingerprint("history podcast").WithIDF(idf)
	hist := NewFingerprint("podcast about history").WithIDF(idf)
	sci := NewFingerprint("podcast about science").WithIDF(idf)
	if CosineSimilarity(query, hist) <= CosineSimilarity(query, sci) {
		t.Fatal("expected the history document to rank first")
	}
}

func TestTrigramSimilarity(t *testing.T) {
	if got := TrigramSimilarity("Hard Fork", "hard fork"); math.Abs(got-1) > epsilon {
		t.Fatalf("identical ignoring case = %v", got)
	}
	if got := TrigramSimilarity("", "anything"); got != 0 {
		t.Fatalf("empty = %v", got)
	}
	near := TrigramSimilarity("darknet diaries", "Darknet Diaries Podcast")
	far := TrigramSimilarity("darknet diaries", "The Cooking Hour")
	if near < 0.3 || far >= near {
		t.Fatalf("near=%v far=%v", near, far)
	}
	// "word" -> "  w", " wo", "wor", "ord", "rd "
	if n := len(Trigrams("word")); n != 5 {
		t.Fatalf("expected 5 trigrams, got %d", n)
	}
}
