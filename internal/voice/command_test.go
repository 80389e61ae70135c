package voice

import "testing"

func TestClassifyKeywords(t *testing.T) {
	cases := map[string]Command{
		"play":                     CommandPlay,
		"Please PLAY the episode":  CommandPlay,
		"pause":                    CommandPause,
		"stop it":                  CommandPause,
		"skip forward":             CommandForward,
		"go forward a bit":         CommandForward,
		"rewind":                   CommandRewind,
		"go back":                  CommandRewind,
		"speed up":                 CommandSpeedUp,
		"a little faster":          CommandSpeedUp,
		"slow down":                CommandSlowDown,
		"slower please":            CommandSlowDown,
		"normal speed":             CommandNormalSpeed,
		"unmute":                   CommandUnmute,
		"Unmute the sound":         CommandUnmute,
		"mute":                     CommandMute,
		"hello there":              CommandNone,
		"   ":                      CommandNone,
		"play then pause":          CommandPlay,
		"stop going faster":        CommandPause,
		"back to normal speed now": CommandNormalSpeed,
	}
	for transcript, want := range cases {
		if got := Classify(transcript); got != want {
			t.Fatalf("Classify(%q) = %v, want %v", transcript, got, want)
		}
	}
}

func TestKeywordsFollowEvaluationOrder(t *testing.T) {
	want := []Command{CommandPlay, CommandPause, CommandForward, CommandRewind, CommandSpeedUp, CommandSlowDown, CommandNormalSpeed, CommandUnmute, CommandMute}
	kw := Keywords()
	if len(kw) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(kw))
	}
	for i, entry := range kw {
		if entry.Command != want[i] {
			t.Fatalf("entry %d: got %v, want %v", i, entry.Command, want[i])
		}
		if len(entry.Keywords) == 0 {
			t.Fatalf("no keywords for %v", entry.Command)
		}
		for _, phrase := range entry.Keywords {
			if got := Classify(phrase); got != entry.Command {
				t.Fatalf("Classify(%q) = %v, want %v", phrase, got, entry.Command)
			}
		}
	}
}
