// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults; Load layers file and env.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"runtime"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9090".
	Addr string `koanf:"addr"`

	// QueueSize bounds each ingest queue shard.
	QueueSize int `koanf:"queue_size"`

	// DispatcherCount sets the number of ingest dispatcher shards. Events
	// for one encounter always land on the same shard to preserve stream
	// order.
	DispatcherCount int `koanf:"dispatcher_count"`

	// DedupeSize sets the size of the replay deduplication cache.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxEncounters caps the number of concurrently tracked encounters.
	MaxEncounters int `koanf:"max_encounters"`

	// MaxBatch caps the number of events accepted in one ingest request.
	MaxBatch int `koanf:"max_batch"`

	// PurifyAbilityID identifies the purification ability in removal
	// triggers. Defaults to Purifying Brew.
	PurifyAbilityID int64 `koanf:"purify_ability_id"`

	// ArchivePath is the SQLite file backing the report archive. Empty
	// disables archiving.
	ArchivePath string `koanf:"archive_path"`

	// LivePushIntervalMS sets how often the live websocket hub pushes a
	// fresh projection to connected clients.
	LivePushIntervalMS int `koanf:"live_push_interval_ms"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		Addr:               ":9090",
		QueueSize:          10_000,
		DispatcherCount:    runtime.NumCPU(),
		DedupeSize:         500_000,
		MaxEncounters:      1_000,
		MaxBatch:           5_000,
		PurifyAbilityID:    119582,
		ArchivePath:        "staggerline.db",
		LivePushIntervalMS: 1_000,
	}
}
