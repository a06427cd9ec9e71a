// Package config loads environment variables and provides a typed Config used across the service.
// It applies sensible defaults so the binary can run locally with minimal setup.
// For required relay credentials (webhook URL), use ValidateRelayReady.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultMonitorPort is used when MONITOR_ADDR carries no port. The upstream
// game-server monitor listens on 8003 unless reconfigured.
const DefaultMonitorPort = "8003"

type Config struct {
	// Upstream monitor
	MonitorAddr    string
	ServerName     string
	ReconnectDelay time.Duration
	MaxAttempts    int     // 0 = retry forever
	Jitter         float64 // fraction of ReconnectDelay added randomly, 0 disables

	// Relay
	RelayWebhookURL      string
	ModerationWebhookURL string
	BannedWords          []string

	// HTTP
	HTTPAddr string

	// Debug suppresses external sends and dumps blocks to the logger instead.
	Debug bool
}

// Load reads environment variables and applies defaults. It doesn't fail if the
// relay webhook is missing; use ValidateRelayReady() when you require outbound
// sends. A missing moderation webhook disables moderation notices.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.MonitorAddr = os.Getenv("MONITOR_ADDR")
	if cfg.MonitorAddr == "" {
		cfg.MonitorAddr = "127.0.0.1"
	}
	if _, _, err := net.SplitHostPort(cfg.MonitorAddr); err != nil {
		cfg.MonitorAddr = net.JoinHostPort(cfg.MonitorAddr, DefaultMonitorPort)
	}

	cfg.ServerName = os.Getenv("SERVER_NAME")
	if cfg.ServerName == "" {
		cfg.ServerName = "FusionFall"
	}

	cfg.ReconnectDelay = 10 * time.Second
	if v := os.Getenv("MONITOR_RECONNECT_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid MONITOR_RECONNECT_DELAY %q", v)
		}
		cfg.ReconnectDelay = d
	}
	if v := os.Getenv("MONITOR_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid MONITOR_MAX_ATTEMPTS %q", v)
		}
		cfg.MaxAttempts = n
	}
	if v := os.Getenv("MONITOR_RECONNECT_JITTER"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 1 {
			return nil, fmt.Errorf("invalid MONITOR_RECONNECT_JITTER %q (want 0..1)", v)
		}
		cfg.Jitter = f
	}

	cfg.RelayWebhookURL = os.Getenv("RELAY_WEBHOOK_URL")
	cfg.ModerationWebhookURL = os.Getenv("MODERATION_WEBHOOK_URL")

	words, err := loadBannedWords()
	if err != nil {
		return nil, err
	}
	cfg.BannedWords = words

	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	cfg.Debug = os.Getenv("MONITOR_DEBUG") == "1"

	return cfg, nil
}

// loadBannedWords merges BANNED_WORDS (comma-separated) with the optional
// BANNED_WORDS_FILE YAML list. Entries are lowercased and deduplicated.
func loadBannedWords() ([]string, error) {
	seen := map[string]bool{}
	var words []string
	add := func(w string) {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" || seen[w] {
			return
		}
		seen[w] = true
		words = append(words, w)
	}

	for _, w := range strings.Split(os.Getenv("BANNED_WORDS"), ",") {
		add(w)
	}

	if path := os.Getenv("BANNED_WORDS_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read BANNED_WORDS_FILE: %w", err)
		}
		var doc struct {
			Words []string `yaml:"words"`
		}
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("parse BANNED_WORDS_FILE: %w", err)
		}
		for _, w := range doc.Words {
			add(w)
		}
	}

	return words, nil
}

// ValidateRelayReady checks required fields when outbound relaying is enabled.
func (c *Config) ValidateRelayReady() error {
	if c.RelayWebhookURL == "" {
		return fmt.Errorf("missing relay env: require RELAY_WEBHOOK_URL")
	}
	return nil
}
