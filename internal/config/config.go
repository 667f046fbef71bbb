package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	ListenAddr string

	RedisURL    string
	DatabaseURL string

	JoinWindowSec  int
	NoShowGraceSec int

	InitialClockSec int

	SnapshotTTLHours int

	MsgOverrideDir string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ListenAddr:       ":8080",
		JoinWindowSec:    300,
		NoShowGraceSec:   60,
		InitialClockSec:  600,
		SnapshotTTLHours: 24,
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))

	if v := strings.TrimSpace(os.Getenv("JOIN_WINDOW_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.JoinWindowSec = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("NO_SHOW_GRACE_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.NoShowGraceSec = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("INITIAL_CLOCK_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.InitialClockSec = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("SNAPSHOT_TTL_HOURS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SnapshotTTLHours = n
		}
	}

	cfg.MsgOverrideDir = strings.TrimSpace(os.Getenv("MSG_OVERRIDE_DIR"))

	if cfg.JoinWindowSec <= 0 {
		return nil, errors.New("JOIN_WINDOW_SEC must be positive")
	}
	if cfg.InitialClockSec <= 0 {
		return nil, errors.New("INITIAL_CLOCK_SEC must be positive")
	}

	return cfg, nil
}

// JoinWindow returns the configured join window as a duration.
func (c *AppConfig) JoinWindow() time.Duration {
	return time.Duration(c.JoinWindowSec) * time.Second
}

// NoShowGrace returns the grace period applied after the join window closes.
func (c *AppConfig) NoShowGrace() time.Duration {
	return time.Duration(c.NoShowGraceSec) * time.Second
}

// InitialClockMs returns the default per-side clock budget in milliseconds.
func (c *AppConfig) InitialClockMs() int64 {
	return int64(c.InitialClockSec) * 1000
}

// SnapshotTTL bounds how long match snapshots stay in Redis.
func (c *AppConfig) SnapshotTTL() time.Duration {
	return time.Duration(c.SnapshotTTLHours) * time.Hour
}
