package monitor

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/RagnarLothbrok-Odin/FusionFall-Bot/config"
	"github.com/RagnarLothbrok-Odin/FusionFall-Bot/filter"
	"github.com/RagnarLothbrok-Odin/FusionFall-Bot/testutil"
)

// waitFor polls cond until it returns true or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

func newRunSession(t *testing.T, addr string, words ...string) (*Session, *testutil.RecordingSink, *testutil.RecordingPresence) {
	t.Helper()
	cfg := &config.Config{
		MonitorAddr:    addr,
		ServerName:     "TestServer",
		ReconnectDelay: 30 * time.Millisecond,
	}
	public := &testutil.RecordingSink{}
	presence := &testutil.RecordingPresence{}
	s := NewSession(cfg, filter.New(words), public, &testutil.RecordingSink{}, presence)
	return s, public, presence
}

func TestSessionRelaysOverRealSocket(t *testing.T) {
	upstream := testutil.NewScriptedMonitor(t)
	s, public, presence := newRunSession(t, upstream.Addr())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	conn := <-upstream.Conns
	waitFor(t, time.Second, func() bool { return s.Snapshot().Online }, "session online")

	if _, err := conn.Write([]byte("begin\nplayer Alice\nchat [12:00] Bob: hello there\nend\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	waitFor(t, time.Second, func() bool { return len(public.Messages()) == 1 }, "chat relay")
	if got := public.Messages()[0]; got != "**[12:00]** Bob: `hello there`" {
		t.Errorf("relayed = %q", got)
	}
	waitFor(t, time.Second, func() bool { return presence.Last() == "1 player(s)" }, "presence refresh")
}

func TestSessionGoesOfflineAndReconnects(t *testing.T) {
	upstream := testutil.NewScriptedMonitor(t)
	s, _, presence := newRunSession(t, upstream.Addr())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	conn := <-upstream.Conns
	waitFor(t, time.Second, func() bool { return s.Snapshot().Online }, "first connect")

	_ = conn.Close()
	waitFor(t, time.Second, func() bool { return !s.Snapshot().Online }, "offline after close")
	waitFor(t, time.Second, func() bool { return presence.Last() == "0 players" }, "offline presence refresh")

	// fixed-delay retry brings a second connection
	var conn2 net.Conn
	select {
	case conn2 = <-upstream.Conns:
	case <-time.After(2 * time.Second):
		t.Fatal("no reconnect attempt observed")
	}
	defer func() { _ = conn2.Close() }()
	waitFor(t, time.Second, func() bool { return s.Snapshot().Online }, "online after reconnect")
	if got := s.Snapshot().Attempts; got < 2 {
		t.Errorf("connect attempts = %d, want >= 2", got)
	}
}

func TestBufferSurvivesReconnect(t *testing.T) {
	upstream := testutil.NewScriptedMonitor(t)
	s, _, presence := newRunSession(t, upstream.Addr())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	conn := <-upstream.Conns
	waitFor(t, time.Second, func() bool { return s.Snapshot().Online }, "first connect")

	// half a block, then drop the connection
	if _, err := conn.Write([]byte("begin\nplayer Alice\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	// give the read loop a moment to buffer the lines before dropping the socket
	time.Sleep(50 * time.Millisecond)
	_ = conn.Close()

	conn2 := <-upstream.Conns
	waitFor(t, time.Second, func() bool { return s.Snapshot().Online }, "reconnected")
	if _, err := conn2.Write([]byte("player Bob\nend\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	waitFor(t, time.Second, func() bool { return s.Snapshot().Population == 2 }, "block spanning reconnect")
	waitFor(t, time.Second, func() bool { return presence.Last() == "2 player(s)" }, "presence after spanning block")
}

func TestSessionStopsOnCancel(t *testing.T) {
	upstream := testutil.NewScriptedMonitor(t)
	s, _, _ := newRunSession(t, upstream.Addr())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	<-upstream.Conns
	waitFor(t, time.Second, func() bool { return s.Snapshot().Online }, "online")

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on context cancel")
	}
}

func TestSessionRespectsMaxAttempts(t *testing.T) {
	// grab a port that refuses connections
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	cfg := &config.Config{
		MonitorAddr:    addr,
		ServerName:     "TestServer",
		ReconnectDelay: 10 * time.Millisecond,
		MaxAttempts:    3,
	}
	s := NewSession(cfg, filter.New(nil), &testutil.RecordingSink{}, nil, &testutil.RecordingPresence{})

	done := make(chan struct{})
	go func() {
		s.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after exhausting attempts")
	}
	if got := s.Snapshot().Attempts; got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}
