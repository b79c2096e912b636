package genlog

import "time"

// Ability ids taken from the combat logs the service was built around.
const (
	// PurifyAbilityID is Purifying Brew.
	PurifyAbilityID = 119582

	// StaggerTickAbilityID is the stagger damage-over-time debuff.
	StaggerTickAbilityID = 124255
)

// Defaults for a run.
const (
	DefaultDuration     = 3 * time.Minute
	DefaultSwingPeriod  = 1500 * time.Millisecond
	DefaultTickPeriod   = 500 * time.Millisecond
	DefaultPurifyPeriod = 12 * time.Second
	DefaultMaxHitPoints = 55_000
	DefaultBatchSize    = 500
	DefaultTimeout      = 30 * time.Second

	// SettleDelay is how long to wait after submission before reading the
	// projected series, giving the dispatcher time to drain its queues.
	SettleDelay = 2 * time.Second
)
