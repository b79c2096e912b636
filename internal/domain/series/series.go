// Package series materializes render-ready chart series from a tracker.
//
// Projection is a pure read: it never mutates tracker state and yields
// identical output for identical input, so it can be invoked repeatedly
// while an encounter is still being fed (live charts) or once at the end.
package series

import (
	"github.com/Zaresol/staggerline/internal/domain/tracker"
)

// DefaultMatchTolerance is the nearest-timestamp window, in milliseconds,
// used when correlating a purify marker with a pool point.
const DefaultMatchTolerance int64 = 500

// PoolPoint is one point of the pooled-damage series. Y is nil for
// mutations that carried no resulting pool level; chart consumers render
// nil as a gap. HP and MaxHP are the carried-forward health snapshot at
// the time the mutation was accumulated.
type PoolPoint struct {
	X     int64    `json:"x"`
	Y     *float64 `json:"y"`
	HP    int64    `json:"hp"`
	MaxHP int64    `json:"maxHp"`
}

// Point is one point of the health or max-health series.
type Point struct {
	X int64 `json:"x"`
	Y int64 `json:"y"`
}

// PurifyMarker is one purification, retimed to the pool peak it resolved.
// Y reconstructs the pre-purification pool height by adding the purified
// amount back onto the post-removal level.
type PurifyMarker struct {
	X      int64   `json:"x"`
	Y      float64 `json:"y"`
	Amount float64 `json:"amount"`
}

// DeathMarker is one death of the tracked participant.
type DeathMarker struct {
	X int64 `json:"x"`
}

// Report bundles the derived series handed to chart consumers. The series
// are independent; correspondence between them is established solely by
// comparing X values on the shared encounter-relative time base.
// StartTime calibrates the axis: displayed time is X - StartTime.
type Report struct {
	EncounterID string         `json:"encounter_id,omitempty"`
	StartTime   int64          `json:"start_time"`
	Pool        []PoolPoint    `json:"pool"`
	Health      []Point        `json:"health"`
	MaxHealth   []Point        `json:"max_health"`
	Purifies    []PurifyMarker `json:"purifies"`
	Deaths      []DeathMarker  `json:"deaths"`
}

// Project derives the report from the tracker's accumulated state.
func Project(t *tracker.Tracker, startTime int64) Report {
	snap := t.Snapshot()
	stagger := snap.Stagger
	purifies := snap.Purifies
	health := snap.Health
	deaths := snap.Deaths

	r := Report{
		StartTime: startTime,
		Pool:      make([]PoolPoint, 0, len(stagger)),
		Health:    make([]Point, 0, len(health)),
		MaxHealth: make([]Point, 0, len(health)),
		Purifies:  make([]PurifyMarker, 0, len(purifies)),
		Deaths:    make([]DeathMarker, 0, len(deaths)),
	}

	for _, s := range stagger {
		r.Pool = append(r.Pool, PoolPoint{
			X:     s.Timestamp,
			Y:     s.NewPooled,
			HP:    s.HitPoints,
			MaxHP: s.MaxHitPoints,
		})
	}

	for _, p := range purifies {
		r.Purifies = append(r.Purifies, PurifyMarker{
			X:      p.PrevTimestamp,
			Y:      p.NewPooled + p.Amount,
			Amount: p.Amount,
		})
	}

	for _, h := range health {
		if h.HitPoints != 0 {
			r.Health = append(r.Health, Point{X: h.Timestamp, Y: h.HitPoints})
		}
		if h.MaxHitPoints != 0 {
			r.MaxHealth = append(r.MaxHealth, Point{X: h.Timestamp, Y: h.MaxHitPoints})
		}
	}

	for _, d := range deaths {
		r.Deaths = append(r.Deaths, DeathMarker{X: d})
	}

	return r
}

// PoolPointNear returns the pool point whose X is closest to x within
// tolerance. Tooltip-style consumers use it to correlate a purify marker
// with the pool level it resolved.
func (r Report) PoolPointNear(x, tolerance int64) (PoolPoint, bool) {
	var best PoolPoint
	bestDist := tolerance + 1
	found := false
	for _, p := range r.Pool {
		d := p.X - x
		if d < 0 {
			d = -d
		}
		if d < bestDist {
			best, bestDist, found = p, d, true
		}
	}
	return best, found
}
