// Package relay defines the outbound destinations the monitor session writes
// to: fire-and-forget text sinks (public relay and moderation) and the
// presence display. Implementations wrap whatever chat platform is in front
// of the bot; delivery failures are logged and counted, never retried.
package relay

import (
	"context"
	"log/slog"
)

// Sink accepts formatted text for delivery. Send failures must not affect
// session state; callers log and move on.
type Sink interface {
	Send(ctx context.Context, text string) error
}

// Presence sets the externally visible activity text (e.g. "12 player(s)").
type Presence interface {
	SetActivity(ctx context.Context, text string) error
}

// LogPresence writes activity updates to the logger. It is the default when
// no platform presence integration is wired in.
type LogPresence struct{}

func (LogPresence) SetActivity(_ context.Context, text string) error {
	slog.Info("presence", slog.String("activity", text))
	return nil
}

// Discard is a Sink that drops everything. Used when a destination (e.g. the
// moderation webhook) is not configured.
type Discard struct{}

func (Discard) Send(context.Context, string) error { return nil }
