package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net"
	"sync"
	"time"

	"github.com/RagnarLothbrok-Odin/FusionFall-Bot/config"
	"github.com/RagnarLothbrok-Odin/FusionFall-Bot/filter"
	"github.com/RagnarLothbrok-Odin/FusionFall-Bot/relay"
	"github.com/RagnarLothbrok-Odin/FusionFall-Bot/telemetry"
)

// Session is the long-lived client for one upstream game-server monitor.
// A single goroutine (Run) owns the socket, the line buffer, and all
// dispatching; the mutex only guards the snapshot read by HTTP handlers.
type Session struct {
	cfg        *config.Config
	words      *filter.List
	public     relay.Sink
	moderation relay.Sink
	presence   relay.Presence

	framer framer
	debug  bool

	mu         sync.RWMutex
	online     bool
	population int
	attempts   int
	lastBlock  time.Time
	startedAt  time.Time
}

// NewSession wires a session to its sinks. A nil moderation sink disables
// flagged-content notices; a nil presence falls back to logging.
func NewSession(cfg *config.Config, words *filter.List, public, moderation relay.Sink, presence relay.Presence) *Session {
	if moderation == nil {
		moderation = relay.Discard{}
	}
	if presence == nil {
		presence = relay.LogPresence{}
	}
	return &Session{
		cfg:        cfg,
		words:      words,
		public:     public,
		moderation: moderation,
		presence:   presence,
		debug:      cfg.Debug,
	}
}

// Run connects to the monitor and keeps the connection alive until ctx is
// cancelled, waiting a fixed delay between attempts. Socket failures are
// never fatal: they flip the session offline and arm the next attempt.
func (s *Session) Run(ctx context.Context) {
	s.mu.Lock()
	s.startedAt = time.Now().UTC()
	s.mu.Unlock()

	slog.Info("monitor session starting",
		slog.String("addr", s.cfg.MonitorAddr),
		slog.String("server", s.cfg.ServerName),
		slog.Duration("reconnect_delay", s.cfg.ReconnectDelay),
		slog.Bool("debug", s.debug))

	for {
		if ctx.Err() != nil {
			return
		}
		attempt := s.bumpAttempts()
		if attempt > 1 {
			telemetry.Reconnects.Inc()
		}

		conn, err := s.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("monitor connect failed", slog.Any("err", err), slog.Int("attempt", attempt))
		} else {
			s.setOnline(true)
			slog.Info("monitor connected", slog.String("addr", conn.RemoteAddr().String()))
			s.readLoop(ctx, conn)
			s.setOnline(false)
		}
		if !s.debug {
			s.refreshPresence(ctx)
		}

		if s.cfg.MaxAttempts > 0 && attempt >= s.cfg.MaxAttempts {
			slog.Error("monitor retry budget exhausted", slog.Int("attempts", attempt))
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.retryDelay()):
		}
	}
}

func (s *Session) dial(ctx context.Context) (net.Conn, error) {
	d := net.Dialer{Timeout: 10 * time.Second}
	conn, err := d.DialContext(ctx, "tcp", s.cfg.MonitorAddr)
	if err != nil {
		return nil, fmt.Errorf("dial monitor %s: %w", s.cfg.MonitorAddr, err)
	}
	return conn, nil
}

// readLoop feeds socket reads to the framer until the connection drops or
// ctx is cancelled. A watcher goroutine closes the socket on cancellation so
// the blocking Read returns promptly; the close is idempotent either way.
func (s *Session) readLoop(ctx context.Context, conn net.Conn) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		_ = conn.Close()
	}()

	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			s.handleData(ctx, buf[:n])
		}
		if err != nil {
			switch {
			case ctx.Err() != nil:
				slog.Info("monitor session stopping")
			case errors.Is(err, io.EOF):
				slog.Info("monitor closed connection")
			default:
				slog.Warn("monitor read error", slog.Any("err", err))
			}
			return
		}
	}
}

// handleData runs every block completed by this chunk through the dispatcher
// and refreshes presence once per block. In debug mode blocks are dumped to
// the logger and nothing is sent externally.
func (s *Session) handleData(ctx context.Context, data []byte) {
	for _, block := range s.framer.feed(data) {
		bctx, span := telemetry.StartSpan(ctx, "monitor", "dispatch-block", telemetry.BlockLinesAttr(len(block)))
		telemetry.TimeFunc(telemetry.BlockDispatchDuration, func() {
			s.dispatchBlock(bctx, block)
		})
		telemetry.BlocksProcessed.Inc()
		telemetry.SetSpanSuccess(span)
		span.End()

		if s.debug {
			slog.Info("block dispatched", slog.Int("lines", len(block)), slog.Any("block", block))
			continue
		}
		s.refreshPresence(ctx)
	}
}

// send delivers to a sink unless debug mode suppresses external sends.
// Failures are logged and counted, never retried.
func (s *Session) send(ctx context.Context, sink relay.Sink, text string) {
	if s.debug {
		slog.Debug("send suppressed", slog.String("text", text))
		return
	}
	if err := sink.Send(ctx, text); err != nil {
		telemetry.RelaySendFailures.Inc()
		slog.Warn("sink send failed", slog.Any("err", err))
	}
}

// refreshPresence pushes the population display. Offline always reads as
// zero regardless of the last counted block.
func (s *Session) refreshPresence(ctx context.Context) {
	s.mu.RLock()
	online, pop := s.online, s.population
	s.mu.RUnlock()

	text := "0 players"
	if online {
		text = fmt.Sprintf("%d player(s)", pop)
	}
	if err := s.presence.SetActivity(ctx, text); err != nil {
		slog.Warn("presence update failed", slog.Any("err", err))
	}
}

func (s *Session) retryDelay() time.Duration {
	d := s.cfg.ReconnectDelay
	if s.cfg.Jitter > 0 {
		d += time.Duration(rand.Float64() * s.cfg.Jitter * float64(s.cfg.ReconnectDelay))
	}
	return d
}

func (s *Session) bumpAttempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	return s.attempts
}

func (s *Session) setOnline(online bool) {
	s.mu.Lock()
	s.online = online
	s.mu.Unlock()
	telemetry.UpdateOnlineGauge(online)
}

func (s *Session) setPopulation(n int) {
	s.mu.Lock()
	s.population = n
	s.lastBlock = time.Now().UTC()
	s.mu.Unlock()
	telemetry.SetPopulation(n)
}

// Snapshot is the point-in-time state exposed on /status.
type Snapshot struct {
	ServerName  string    `json:"server_name"`
	MonitorAddr string    `json:"monitor_addr"`
	Online      bool      `json:"online"`
	Population  int       `json:"population"`
	Attempts    int       `json:"connect_attempts"`
	LastBlockAt time.Time `json:"last_block_at"`
	StartedAt   time.Time `json:"started_at"`
}

// Snapshot returns the current session state for the HTTP surface.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		ServerName:  s.cfg.ServerName,
		MonitorAddr: s.cfg.MonitorAddr,
		Online:      s.online,
		Population:  s.population,
		Attempts:    s.attempts,
		LastBlockAt: s.lastBlock,
		StartedAt:   s.startedAt,
	}
}
