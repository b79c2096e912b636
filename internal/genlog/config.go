package genlog

import "time"

// Config holds configuration for a synthetic encounter run.
type Config struct {
	BaseURL       string        // Base URL of the service
	EncounterID   string        // Encounter id to open; empty lets the service pick
	Seed          int64         // Seed for the deterministic generator
	Duration      time.Duration // Simulated encounter length
	SwingPeriod   time.Duration // Boss melee cadence
	TickPeriod    time.Duration // Stagger damage-over-time cadence
	PurifyPeriod  time.Duration // Purifying Brew cadence
	MaxHitPoints  int64         // Simulated brewmaster health pool
	BatchSize     int           // Events per ingest request
	Timeout       time.Duration // HTTP request timeout
	Close         bool          // Close the encounter after verification
	Verbose       bool          // Enable verbose logging
	LogFile       string        // Log file for run output
}

// Stats holds run statistics.
type Stats struct {
	EventsGenerated int
	EventsSubmitted int
	EventsAccepted  int
	EventsDuplicate int
	BatchesSent     int
	PoolPoints      int
	PurifyMarkers   int
	DeathMarkers    int
	StartTime       time.Time
	EndTime         time.Time
	Duration        time.Duration
}
