package voice

import (
	"strings"

	"podvoice/internal/textutil"
)

// Command is the playback action a transcript maps to.
type Command int

const (
	CommandNone Command = iota
	CommandPlay
	CommandPause
	CommandForward
	CommandRewind
	CommandSpeedUp
	CommandSlowDown
	CommandNormalSpeed
	CommandUnmute
	CommandMute
)

func (c Command) String() string {
	switch c {
	case CommandPlay:
		return "play"
	case CommandPause:
		return "pause"
	case CommandForward:
		return "forward"
	case CommandRewind:
		return "rewind"
	case CommandSpeedUp:
		return "speed up"
	case CommandSlowDown:
		return "slow down"
	case CommandNormalSpeed:
		return "normal speed"
	case CommandUnmute:
		return "unmute"
	case CommandMute:
		return "mute"
	default:
		return "none"
	}
}

type keywordRule struct {
	command  Command
	keywords []string
}

// Order matters: the first rule with a matching keyword wins. "unmute" sits
// ahead of "mute" since it contains it.
var keywordRules = []keywordRule{
	{CommandPlay, []string{"play"}},
	{CommandPause, []string{"pause", "stop"}},
	{CommandForward, []string{"forward", "skip forward"}},
	{CommandRewind, []string{"rewind", "go back"}},
	{CommandSpeedUp, []string{"speed up", "faster"}},
	{CommandSlowDown, []string{"slow down", "slower"}},
	{CommandNormalSpeed, []string{"normal speed"}},
	{CommandUnmute, []string{"unmute"}},
	{CommandMute, []string{"mute"}},
}

// Classify maps a transcript to a command by case-insensitive keyword
// containment.
func Classify(transcript string) Command {
	folded := textutil.Fold(strings.TrimSpace(transcript))
	if folded == "" {
		return CommandNone
	}
	for _, rule := range keywordRules {
		for _, kw := range rule.keywords {
			if strings.Contains(folded, kw) {
				return rule.command
			}
		}
	}
	return CommandNone
}

// CommandKeywords pairs a command with the phrases that select it.
type CommandKeywords struct {
	Command  Command
	Keywords []string
}

// Keywords lists the phrases recognised for each command in evaluation
// order. Used for help output.
func Keywords() []CommandKeywords {
	out := make([]CommandKeywords, 0, len(keywordRules))
	for _, rule := range keywordRules {
		out = append(out, CommandKeywords{
			Command:  rule.command,
			Keywords: append([]string(nil), rule.keywords...),
		})
	}
	return out
}
