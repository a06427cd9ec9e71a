package monitor

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/RagnarLothbrok-Odin/FusionFall-Bot/config"
	"github.com/RagnarLothbrok-Odin/FusionFall-Bot/filter"
	"github.com/RagnarLothbrok-Odin/FusionFall-Bot/testutil"
)

func newTestSession(words ...string) (*Session, *testutil.RecordingSink, *testutil.RecordingSink, *testutil.RecordingPresence) {
	cfg := &config.Config{
		MonitorAddr:    "127.0.0.1:8003",
		ServerName:     "TestServer",
		ReconnectDelay: 10 * time.Second,
	}
	public := &testutil.RecordingSink{}
	moderation := &testutil.RecordingSink{}
	presence := &testutil.RecordingPresence{}
	s := NewSession(cfg, filter.New(words), public, moderation, presence)
	return s, public, moderation, presence
}

func TestDispatchCountsPlayers(t *testing.T) {
	s, _, _, _ := newTestSession()
	s.dispatchBlock(context.Background(), []string{
		"player Alice",
		"chat [12:00] Bob: hello there",
		"player Bob",
		"bogus line here",
		"player Carol",
	})
	if got := s.Snapshot().Population; got != 3 {
		t.Errorf("population = %d, want 3", got)
	}
}

func TestDispatchResetsPopulationPerBlock(t *testing.T) {
	s, _, _, _ := newTestSession()
	s.dispatchBlock(context.Background(), []string{"player a", "player b"})
	s.dispatchBlock(context.Background(), []string{"player c"})
	if got := s.Snapshot().Population; got != 1 {
		t.Errorf("population = %d, want 1 (not cumulative)", got)
	}
}

func TestChatRelayFullForm(t *testing.T) {
	s, public, _, _ := newTestSession()
	s.dispatchBlock(context.Background(), []string{"chat [12:00] (Mod) Alice [id1]: hello there"})
	msgs := public.Messages()
	if len(msgs) != 1 {
		t.Fatalf("got %d public sends, want 1", len(msgs))
	}
	want := "**[12:00]** *(Mod)* Alice *[id1]*: `hello there`"
	if msgs[0] != want {
		t.Errorf("relayed = %q, want %q", msgs[0], want)
	}
}

func TestChatRelayWithoutRoleAndIdentifier(t *testing.T) {
	s, public, _, _ := newTestSession()
	s.dispatchBlock(context.Background(), []string{"chat [12:00] Bob: hello there"})
	msgs := public.Messages()
	if len(msgs) != 1 {
		t.Fatalf("got %d public sends, want 1", len(msgs))
	}
	want := "**[12:00]** Bob: `hello there`"
	if msgs[0] != want {
		t.Errorf("relayed = %q, want %q", msgs[0], want)
	}
}

func TestChatUnparsableLineSilentlyDropped(t *testing.T) {
	s, public, moderation, _ := newTestSession("badword")
	s.dispatchBlock(context.Background(), []string{"chat no brackets at all"})
	if len(public.Messages()) != 0 || len(moderation.Messages()) != 0 {
		t.Errorf("unparsable chat must produce no sends")
	}
}

func TestChatBannedWordGoesToModeration(t *testing.T) {
	s, public, moderation, _ := newTestSession("badword")
	raw := "chat [12:00] Bob: this has badword in it"
	s.dispatchBlock(context.Background(), []string{raw})
	if len(public.Messages()) != 0 {
		t.Errorf("flagged message must not reach public relay: %v", public.Messages())
	}
	mod := moderation.Messages()
	if len(mod) != 1 {
		t.Fatalf("got %d moderation sends, want 1", len(mod))
	}
	if !strings.Contains(mod[0], "```\n"+raw+"\n```") {
		t.Errorf("moderation notice missing raw line in code block: %q", mod[0])
	}
}

func TestChatBannedWordBypassesNoiseFilters(t *testing.T) {
	// A slash-prefixed message would normally be skipped, but the banned-word
	// check runs first.
	s, public, moderation, _ := newTestSession("badword")
	s.dispatchBlock(context.Background(), []string{"chat [12:00] Bob: /badword"})
	if len(moderation.Messages()) != 1 {
		t.Fatalf("got %d moderation sends, want 1", len(moderation.Messages()))
	}
	if len(public.Messages()) != 0 {
		t.Errorf("flagged command must not reach public relay")
	}
}

func TestChatNoiseFiltersSkip(t *testing.T) {
	s, public, moderation, _ := newTestSession("badword")
	s.dispatchBlock(context.Background(), []string{
		"chat [12:00] Bob: /cmd",
		"chat [12:00] Bob: hi",
		"chat [12:00] Bob: redeem CODE123",
	})
	if len(public.Messages()) != 0 {
		t.Errorf("noise lines must not be relayed: %v", public.Messages())
	}
	if len(moderation.Messages()) != 0 {
		t.Errorf("noise lines without banned words must not be flagged")
	}
}

func TestEmailWellFormed(t *testing.T) {
	s, public, _, _ := newTestSession()
	s.dispatchBlock(context.Background(), []string{
		"email Subject here",
		"\tfirst body line",
		"\tsecond body line",
		"endemail",
		"player Alice",
	})
	msgs := public.Messages()
	if len(msgs) != 1 {
		t.Fatalf("got %d public sends, want 1", len(msgs))
	}
	want := "```\nSubject\nfirst body line\nsecond body line\n```"
	if msgs[0] != want {
		t.Errorf("email relay = %q, want %q", msgs[0], want)
	}
	// terminator consumed, player line after it still dispatched
	if got := s.Snapshot().Population; got != 1 {
		t.Errorf("population = %d, want 1", got)
	}
}

func TestEmailMissingTerminatorStillRelays(t *testing.T) {
	s, public, _, _ := newTestSession()
	s.dispatchBlock(context.Background(), []string{
		"email Subject",
		"\tpartial body",
		"player Alice",
	})
	msgs := public.Messages()
	if len(msgs) != 1 {
		t.Fatalf("got %d public sends, want 1", len(msgs))
	}
	if msgs[0] != "```\nSubject\npartial body\n```" {
		t.Errorf("email relay = %q", msgs[0])
	}
	// the non-tab line after the body is redispatched normally
	if got := s.Snapshot().Population; got != 1 {
		t.Errorf("population = %d, want 1", got)
	}
}

func TestEmailEmptyBody(t *testing.T) {
	s, public, _, _ := newTestSession()
	s.dispatchBlock(context.Background(), []string{"email Notice", "endemail"})
	msgs := public.Messages()
	if len(msgs) != 1 {
		t.Fatalf("got %d public sends, want 1", len(msgs))
	}
	if msgs[0] != "```\nNotice\n```" {
		t.Errorf("email relay = %q", msgs[0])
	}
}

func TestHandleDataRefreshesPresencePerBlock(t *testing.T) {
	s, _, _, presence := newTestSession()
	s.setOnline(true)
	s.handleData(context.Background(), []byte("begin\nplayer a\nplayer b\nend\nbegin\nplayer c\nend\n"))
	acts := presence.Activities()
	if len(acts) != 2 {
		t.Fatalf("got %d presence refreshes, want 2", len(acts))
	}
	if acts[0] != "2 player(s)" || acts[1] != "1 player(s)" {
		t.Errorf("presence = %v", acts)
	}
}

func TestPresenceOfflineReadsZero(t *testing.T) {
	s, _, _, presence := newTestSession()
	s.setPopulation(7)
	s.refreshPresence(context.Background())
	if got := presence.Last(); got != "0 players" {
		t.Errorf("offline presence = %q, want %q", got, "0 players")
	}
}

func TestDebugModeSuppressesSends(t *testing.T) {
	s, public, _, presence := newTestSession()
	s.debug = true
	s.setOnline(true)
	s.handleData(context.Background(), []byte("begin\nchat [12:00] Bob: hello there\nend\n"))
	if len(public.Messages()) != 0 {
		t.Errorf("debug mode must suppress relay sends: %v", public.Messages())
	}
	if len(presence.Activities()) != 0 {
		t.Errorf("debug mode must suppress presence refresh: %v", presence.Activities())
	}
}

func TestParseChatPatterns(t *testing.T) {
	cases := []struct {
		rest string
		ok   bool
		want chatEvent
	}{
		{"[12:00] (Mod) Alice [id1]: hello there", true, chatEvent{"12:00", "Mod", "Alice", "id1", "hello there"}},
		{"[12:00] Bob: hi all", true, chatEvent{"12:00", "", "Bob", "", "hi all"}},
		{"[12:00] (GM) Carol: msg", true, chatEvent{"12:00", "GM", "Carol", "", "msg"}},
		{"[12:00] Dave [abc]: yo", true, chatEvent{"12:00", "", "Dave", "abc", "yo"}},
		{"no pattern here", false, chatEvent{}},
		{"[12:00] missing colon", false, chatEvent{}},
	}
	for _, tc := range cases {
		ev, ok := parseChat(tc.rest)
		if ok != tc.ok {
			t.Errorf("parseChat(%q) ok = %v, want %v", tc.rest, ok, tc.ok)
			continue
		}
		if ok && ev != tc.want {
			t.Errorf("parseChat(%q) = %+v, want %+v", tc.rest, ev, tc.want)
		}
	}
}
