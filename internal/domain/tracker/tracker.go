// Package tracker implements the per-encounter event classifier and
// accumulator. A Tracker consumes one participant's combat-log events in
// stream order and folds them into the buffers the series projector reads:
// stagger pool mutations, purification records, health snapshots, and
// deaths.
//
// A Tracker is created once per encounter, fed for the encounter's
// duration, and discarded after projection. The dispatcher guarantees a
// single writer per encounter; a read-write lock lets live projections
// read the buffers while ingestion is still running.
package tracker

import (
	"fmt"
	"sync"

	"github.com/Zaresol/staggerline/internal/domain/model"
)

// DefaultPurifyAbility is the ability id of Purifying Brew, the stagger
// purification action.
const DefaultPurifyAbility int64 = 119582

// StaggerEvent is one pool mutation annotated at insertion time with the
// last known health snapshot. The snapshot is carried forward from the
// most recent Damage/Heal, not necessarily from the same timestamp, and
// is never retroactively corrected.
type StaggerEvent struct {
	Timestamp    int64
	Removal      bool
	NewPooled    *float64 // nil when the log carried no resulting pool level
	HitPoints    int64
	MaxHitPoints int64
}

// PurifyEvent records one purification. PrevTimestamp is the timestamp of
// the stagger event recorded immediately before the purifying removal,
// not the removal's own timestamp: the marker is meant to land on the pool
// peak it drained rather than trail after it on the time axis.
type PurifyEvent struct {
	PrevTimestamp int64
	NewPooled     float64
	Amount        float64
}

// HealthSnapshot is one Damage/Heal record. Zero fields mean the event
// carried no snapshot; filtering happens at projection time.
type HealthSnapshot struct {
	Timestamp    int64
	HitPoints    int64
	MaxHitPoints int64
}

// Tracker accumulates one encounter's events for the tracked participant.
type Tracker struct {
	purifyAbility int64

	mu       sync.RWMutex
	stagger  []StaggerEvent
	purifies []PurifyEvent
	health   []HealthSnapshot
	deaths   []int64

	lastHP    int64
	lastMaxHP int64
}

// Option applies a configuration option to the Tracker.
type Option func(*Tracker)

// WithPurifyAbility overrides the ability id that marks a removal as a
// purification.
func WithPurifyAbility(id int64) Option {
	return func(t *Tracker) {
		if id > 0 {
			t.purifyAbility = id
		}
	}
}

// New creates an empty Tracker.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		purifyAbility: DefaultPurifyAbility,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Ingest classifies a single event and updates the accumulator. Events
// must arrive in stream order, exactly once each.
//
// The only reportable condition is ErrNoPriorStagger: a purifying removal
// with no stagger history. The purify record is skipped but the removal
// itself is still accumulated, so ingestion can continue.
func (t *Tracker) Ingest(e model.Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch e.Kind {
	case model.KindStaggerAdd:
		t.appendStagger(e.Timestamp, false, e.NewPooled)
		return nil

	case model.KindStaggerRemove:
		var err error
		if e.AbilityID == t.purifyAbility {
			// Record the purify before the removal so PrevTimestamp
			// references the pool's last-known peak.
			err = t.recordPurify(e)
		}
		t.appendStagger(e.Timestamp, true, e.NewPooled)
		return err

	case model.KindDamage, model.KindHeal:
		t.recordHealth(e)
		return nil

	case model.KindDeath:
		t.deaths = append(t.deaths, e.Timestamp)
		return nil

	default:
		// Unrecognized kinds are ignored, not treated as an error.
		return nil
	}
}

func (t *Tracker) appendStagger(ts int64, removal bool, pooled *float64) {
	t.stagger = append(t.stagger, StaggerEvent{
		Timestamp:    ts,
		Removal:      removal,
		NewPooled:    pooled,
		HitPoints:    t.lastHP,
		MaxHitPoints: t.lastMaxHP,
	})
}

func (t *Tracker) recordPurify(e model.Event) error {
	if len(t.stagger) == 0 {
		return fmt.Errorf("purify at %dms: %w", e.Timestamp, ErrNoPriorStagger)
	}
	var pooled float64
	if e.NewPooled != nil {
		pooled = *e.NewPooled
	}
	t.purifies = append(t.purifies, PurifyEvent{
		PrevTimestamp: t.stagger[len(t.stagger)-1].Timestamp,
		NewPooled:     pooled,
		Amount:        e.Amount,
	})
	return nil
}

func (t *Tracker) recordHealth(e model.Event) {
	t.health = append(t.health, HealthSnapshot{
		Timestamp:    e.Timestamp,
		HitPoints:    e.HitPoints,
		MaxHitPoints: e.MaxHitPoints,
	})
	// A missing snapshot field never reverts the carried scalar.
	if e.HitPoints != 0 {
		t.lastHP = e.HitPoints
	}
	if e.MaxHitPoints != 0 {
		t.lastMaxHP = e.MaxHitPoints
	}
}

// Snapshot is a consistent view of the accumulated buffers. The buffers
// are append-only, so the slice headers stay valid after the lock is
// released; callers must not modify them.
type Snapshot struct {
	Stagger  []StaggerEvent
	Purifies []PurifyEvent
	Health   []HealthSnapshot
	Deaths   []int64
}

// Snapshot returns a consistent view across all buffers, safe to read
// while ingestion continues.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Snapshot{
		Stagger:  t.stagger,
		Purifies: t.purifies,
		Health:   t.health,
		Deaths:   t.deaths,
	}
}

// Stagger returns the accumulated pool mutations. The returned slice is
// owned by the Tracker; callers must not modify it.
func (t *Tracker) Stagger() []StaggerEvent {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.stagger
}

// Purifies returns the accumulated purification records.
func (t *Tracker) Purifies() []PurifyEvent {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.purifies
}

// Health returns every Damage/Heal snapshot, including those with no
// defined fields.
func (t *Tracker) Health() []HealthSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.health
}

// Deaths returns the timestamps of the participant's deaths.
func (t *Tracker) Deaths() []int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.deaths
}

// LastHP returns the most recently observed non-zero hit points.
func (t *Tracker) LastHP() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastHP
}

// LastMaxHP returns the most recently observed non-zero max hit points.
func (t *Tracker) LastMaxHP() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastMaxHP
}

// EventCount returns the total number of accumulated records, used for
// service stats.
func (t *Tracker) EventCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.stagger) + len(t.health) + len(t.deaths)
}
