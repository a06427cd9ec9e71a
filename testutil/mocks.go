// Package testutil provides shared test doubles: an in-memory sink recorder,
// a mock webhook endpoint, and a scripted upstream monitor server.
package testutil

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// RecordingSink captures every Send for later assertions. Safe for
// concurrent use.
type RecordingSink struct {
	mu   sync.Mutex
	msgs []string
}

func (s *RecordingSink) Send(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, text)
	return nil
}

// Messages returns a copy of everything sent so far.
func (s *RecordingSink) Messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.msgs))
	copy(out, s.msgs)
	return out
}

// RecordingPresence captures SetActivity calls.
type RecordingPresence struct {
	mu    sync.Mutex
	texts []string
}

func (p *RecordingPresence) SetActivity(_ context.Context, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.texts = append(p.texts, text)
	return nil
}

// Activities returns a copy of every activity text set so far.
func (p *RecordingPresence) Activities() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.texts))
	copy(out, p.texts)
	return out
}

// Last returns the most recent activity text, or "".
func (p *RecordingPresence) Last() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.texts) == 0 {
		return ""
	}
	return p.texts[len(p.texts)-1]
}

// MockWebhookServer records JSON webhook posts ({"content": ...}).
type MockWebhookServer struct {
	*httptest.Server
	mu       sync.Mutex
	contents []string
	Status   int
}

// NewMockWebhookServer creates a webhook endpoint that answers Status
// (default 204) and records payload contents.
func NewMockWebhookServer(t *testing.T) *MockWebhookServer {
	t.Helper()
	m := &MockWebhookServer{Status: http.StatusNoContent}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Content string `json:"content"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		m.mu.Lock()
		m.contents = append(m.contents, payload.Content)
		status := m.Status
		m.mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(m.Close)
	return m
}

// Contents returns a copy of every recorded webhook payload.
func (m *MockWebhookServer) Contents() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.contents))
	copy(out, m.contents)
	return out
}

// SetStatus changes the response code for subsequent posts.
func (m *MockWebhookServer) SetStatus(code int) {
	m.mu.Lock()
	m.Status = code
	m.mu.Unlock()
}

// ScriptedMonitor is a loopback TCP server standing in for the game-server
// monitor. Tests enqueue connections and write protocol text to them.
type ScriptedMonitor struct {
	Listener net.Listener
	Conns    chan net.Conn
	done     chan struct{}
}

// NewScriptedMonitor listens on an ephemeral loopback port and accepts
// connections until the test ends.
func NewScriptedMonitor(t *testing.T) *ScriptedMonitor {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	m := &ScriptedMonitor{
		Listener: ln,
		Conns:    make(chan net.Conn, 8),
		done:     make(chan struct{}),
	}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			select {
			case m.Conns <- conn:
			case <-m.done:
				_ = conn.Close()
				return
			}
		}
	}()
	t.Cleanup(func() {
		close(m.done)
		_ = ln.Close()
	})
	return m
}

// Addr returns the host:port the monitor listens on.
func (m *ScriptedMonitor) Addr() string { return m.Listener.Addr().String() }
