package podcastindex

import (
	"encoding/json"
	"testing"
)

func TestFlagAcceptsNumbersAndBools(t *testing.T) {
	cases := map[string]bool{`0`: false, `1`: true, `true`: true, `false`: false, `null`: false, `"1"`: true}
	for raw, want := range cases {
		var f Flag
		if err := json.Unmarshal([]byte(raw), &f); err != nil {
			t.Fatalf("unmarshal %s: %v", raw, err)
		}
		if bool(f) != want {
			t.Fatalf("Flag(%s) = %v, want %v", raw, f, want)
		}
	}
	var f Flag
	if err := json.Unmarshal([]byte(`"yes"`), &f); err == nil {
		t.Fatal("expected error for non-numeric string")
	}
}

func TestStatusAcceptsStringAndBool(t *testing.T) {
	for raw, want := range map[string]bool{`true`: true, `"true"`: true, `false`: false, `"false"`: false} {
		var s Status
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			t.Fatalf("unmarshal %s: %v", raw, err)
		}
		if bool(s) != want {
			t.Fatalf("Status(%s) = %v, want %v", raw, s, want)
		}
	}
}

func TestValidateExportedHelpers(t *testing.T) {
	if err := ValidateFeed(Feed{ID: 1, URL: "https://example.com/feed.xml"}); err != nil {
		t.Fatalf("expected valid feed, got %v", err)
	}
	if err := ValidateFeed(Feed{ID: 1, URL: "not a url"}); err == nil {
		t.Fatal("expected relative url to fail")
	}
	bad := []Episode{{ID: 1, GUID: "g", EnclosureURL: "https://cdn.example.com/a.mp3", EpisodeType: "teaser"}}
	if err := ValidateEpisodes(bad); err == nil {
		t.Fatal("expected episode type to fail")
	}
}
