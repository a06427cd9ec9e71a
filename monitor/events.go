package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/RagnarLothbrok-Odin/FusionFall-Bot/telemetry"
)

// chatPattern splits a chat line remainder into timestamp, optional role,
// username, optional identifier, and message:
//
//	[12:00] (Mod) Alice [id1]: hello there
var chatPattern = regexp.MustCompile(`^\[(.+?)\](?: \((.+?)\))? (.+?)(?: \[(.+?)\])?: (.*)$`)

// chatEvent is a parsed chat line. Role and Identifier are empty when absent.
type chatEvent struct {
	Timestamp  string
	Role       string
	Username   string
	Identifier string
	Message    string
}

func parseChat(rest string) (chatEvent, bool) {
	m := chatPattern.FindStringSubmatch(rest)
	if m == nil {
		return chatEvent{}, false
	}
	return chatEvent{
		Timestamp:  m[1],
		Role:       m[2],
		Username:   m[3],
		Identifier: m[4],
		Message:    m[5],
	}, true
}

// formatChat renders the public relay form:
//
//	**[12:00]** *(Mod)* Alice *[id1]*: `hello there`
func formatChat(ev chatEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**[%s]**", ev.Timestamp)
	if ev.Role != "" {
		fmt.Fprintf(&b, " *(%s)*", ev.Role)
	}
	b.WriteString(" ")
	b.WriteString(ev.Username)
	if ev.Identifier != "" {
		fmt.Fprintf(&b, " *[%s]*", ev.Identifier)
	}
	fmt.Fprintf(&b, ": `%s`", ev.Message)
	return b.String()
}

func codeBlock(text string) string {
	return "```\n" + text + "\n```"
}

// dispatchBlock interprets each line of a completed block keyed on its first
// token. Email handling consumes continuation lines, so the loop index can
// jump forward. The population stored on the session is the player count of
// this block alone.
func (s *Session) dispatchBlock(ctx context.Context, lines []string) {
	population := 0
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		kind, rest, _ := strings.Cut(line, " ")
		switch kind {
		case "player":
			population++
			telemetry.CountEvent("player")
		case "chat":
			s.handleChat(ctx, line, rest)
			telemetry.CountEvent("chat")
		case "email":
			i = s.handleEmail(ctx, lines, i, rest)
			telemetry.CountEvent("email")
		default:
			slog.Warn("unknown token", slog.String("token", kind), slog.String("line", line))
			telemetry.CountEvent("unknown")
		}
	}
	s.setPopulation(population)
}

// handleChat parses and relays one chat line. The banned-word check runs
// before the noise filters, so flagged content is reported even when the
// message would otherwise be skipped as a command or too short.
func (s *Session) handleChat(ctx context.Context, raw, rest string) {
	ev, ok := parseChat(rest)
	if !ok {
		return
	}

	if word, hit := s.words.Match(ev.Message); hit {
		telemetry.FlaggedMessages.Inc()
		slog.Info("chat message flagged", slog.String("word", word), slog.String("user", ev.Username))
		s.send(ctx, s.moderation, "Flagged message:\n"+codeBlock(raw))
		return
	}

	if len(ev.Message) < 3 || strings.HasPrefix(ev.Message, "/") || strings.HasPrefix(ev.Message, "redeem") {
		return
	}

	s.send(ctx, s.public, formatChat(ev))
}

// handleEmail assembles an in-game mail notice: the header token plus any
// tab-prefixed continuation lines, terminated by a line containing
// "endemail". Returns the index of the last line consumed.
func (s *Session) handleEmail(ctx context.Context, lines []string, i int, rest string) int {
	header, _, _ := strings.Cut(rest, " ")

	var body []string
	j := i + 1
	for j < len(lines) && strings.HasPrefix(lines[j], "\t") {
		body = append(body, strings.TrimPrefix(lines[j], "\t"))
		j++
	}

	last := j - 1
	if j < len(lines) && strings.Contains(lines[j], emailSentinel) {
		last = j // terminator consumed
	} else {
		slog.Warn("malformed email: missing endemail terminator", slog.String("header", header))
	}

	text := header
	if len(body) > 0 {
		text += "\n" + strings.Join(body, "\n")
	}
	s.send(ctx, s.public, codeBlock(text))

	return last
}
