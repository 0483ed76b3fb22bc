// Package config resolves agent settings from the environment.
//
// Every setting has a default, and a malformed value falls back to that
// default with a warning instead of failing startup: the agent is meant
// to keep reporting stats even when misconfigured.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Environment variable names understood by the agent. HOSTSTAT_RESTART
// and HOSTSTAT_ID are also written by the supervisor when it re-execs a
// crashed agent (see pkg/supervisor).
const (
	EnvStatInterval    = "HOSTSTAT_STAT_INTERVAL_MS"
	EnvCPUSampleRate   = "HOSTSTAT_CPU_SAMPLE_RATE_MS"
	EnvStatsDir        = "HOSTSTAT_STATS_DIR"
	EnvMaxStatsEntries = "HOSTSTAT_MAX_STATS_ENTRIES"
	EnvStoreBackend    = "HOSTSTAT_STORE"
	EnvDBPath          = "HOSTSTAT_DB_PATH"
	EnvLogLevel        = "HOSTSTAT_LOG_LEVEL"
	EnvNoRestart       = "HOSTSTAT_NO_RESTART"
	EnvID              = "HOSTSTAT_ID"
	EnvSentryDSN       = "SENTRY_DSN"
	EnvClusterName     = "CLUSTER_NAME"
)

// Store backend selectors for EnvStoreBackend.
const (
	StoreDir    = "dir"
	StoreSQLite = "sqlite"
)

// Config is the resolved agent configuration.
type Config struct {
	// ID identifies this agent across crashes and restarts. The supervisor
	// passes it to re-exec'd children through HOSTSTAT_ID, so all attempts
	// of one deployment report under the same identity.
	ID uuid.UUID

	// StatInterval is how often a snapshot is taken and persisted.
	StatInterval time.Duration

	// CPUSampleRate is the window of each two-read CPU measurement. It is
	// spent sleeping inside the snapshot, so it must stay well below
	// StatInterval.
	CPUSampleRate time.Duration

	StatsDir        string
	MaxStatsEntries int

	// StoreBackend selects between StoreDir and StoreSQLite.
	StoreBackend string
	// DBPath is the SQLite database location, used only with StoreSQLite.
	DBPath string

	LogLevel  slog.Level
	NoRestart bool

	SentryDSN   string
	ClusterName string
}

// Default returns the built-in configuration with a freshly generated ID.
func Default() Config {
	return Config{
		ID:              uuid.New(),
		StatInterval:    5000 * time.Millisecond,
		CPUSampleRate:   100 * time.Millisecond,
		StatsDir:        "/tmp/hoststat/stats",
		MaxStatsEntries: 12,
		StoreBackend:    StoreDir,
		DBPath:          "/tmp/hoststat/stats.db",
		LogLevel:        slog.LevelInfo,
	}
}

// FromEnv resolves the configuration from the process environment on top
// of the defaults.
func FromEnv() Config {
	cfg := Default()

	if raw := os.Getenv(EnvID); raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			cfg.ID = id
		} else {
			slog.Warn("invalid agent id in environment, generated a new one",
				"var", EnvID, "value", raw)
		}
	}

	cfg.StatInterval = envDurationMs(EnvStatInterval, cfg.StatInterval)
	cfg.CPUSampleRate = envDurationMs(EnvCPUSampleRate, cfg.CPUSampleRate)

	if dir := os.Getenv(EnvStatsDir); dir != "" {
		cfg.StatsDir = dir
	}
	if raw := os.Getenv(EnvMaxStatsEntries); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			cfg.MaxStatsEntries = n
		} else {
			slog.Warn("invalid max stats entries, using default",
				"var", EnvMaxStatsEntries, "value", raw, "default", cfg.MaxStatsEntries)
		}
	}

	switch backend := os.Getenv(EnvStoreBackend); backend {
	case "":
	case StoreDir, StoreSQLite:
		cfg.StoreBackend = backend
	default:
		slog.Warn("unknown store backend, using default",
			"var", EnvStoreBackend, "value", backend, "default", cfg.StoreBackend)
	}
	if path := os.Getenv(EnvDBPath); path != "" {
		cfg.DBPath = path
	}

	if raw := os.Getenv(EnvLogLevel); raw != "" {
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(raw)); err == nil {
			cfg.LogLevel = lvl
		} else {
			slog.Warn("invalid log level, using default",
				"var", EnvLogLevel, "value", raw, "default", cfg.LogLevel)
		}
	}

	cfg.NoRestart = os.Getenv(EnvNoRestart) != ""
	cfg.SentryDSN = os.Getenv(EnvSentryDSN)
	cfg.ClusterName = os.Getenv(EnvClusterName)

	return cfg
}

// envDurationMs reads an integer-millisecond variable; non-positive or
// malformed values keep the default.
func envDurationMs(name string, def time.Duration) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return def
	}
	ms, err := strconv.Atoi(raw)
	if err != nil || ms <= 0 {
		slog.Warn("invalid duration, using default",
			"var", name, "value", raw, "default", def)
		return def
	}
	return time.Duration(ms) * time.Millisecond
}
