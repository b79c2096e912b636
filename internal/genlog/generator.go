package genlog

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/Zaresol/staggerline/pkg/logger"
)

// Stagger simulation tuning. Swing damage varies around a base hit, and
// the brewmaster staggers a fixed share of every hit into the pool.
const (
	baseSwingDamage  = 4000.0
	swingVariance    = 0.35
	staggerShare     = 0.6
	tickShare        = 0.05
	purifyShare      = 0.5
	healChance       = 0.25
	baseHealAmount   = 3000.0
	killWindowShare  = 0.9
	lethalPoolShare  = 1.2
)

// Event is one combat-log record in the service's wire shape.
type Event struct {
	EventID      string   `json:"event_id"`
	Kind         string   `json:"kind"`
	Timestamp    int64    `json:"timestamp"`
	NewPooled    *float64 `json:"new_pooled,omitempty"`
	Amount       float64  `json:"amount,omitempty"`
	AbilityID    int64    `json:"ability_id,omitempty"`
	HitPoints    int64    `json:"hit_points,omitempty"`
	MaxHitPoints int64    `json:"max_hit_points,omitempty"`
}

// generateEncounter simulates a brewmaster tanking a boss for the
// configured duration and returns the resulting event stream in
// timestamp order. The same seed always yields the same stream.
func generateEncounter(ctx context.Context, config *Config, stats *Stats) ([]Event, error) {
	logger.Get().Info(ctx, "generating synthetic encounter",
		logger.Int64("seed", config.Seed),
		logger.String("duration", config.Duration.String()),
	)

	rng := rand.New(rand.NewSource(config.Seed))

	var (
		events []Event
		pooled float64
		hp     = config.MaxHitPoints
		maxHP  = config.MaxHitPoints
		dead   bool
	)

	swing := config.SwingPeriod.Milliseconds()
	tick := config.TickPeriod.Milliseconds()
	purify := config.PurifyPeriod.Milliseconds()
	end := config.Duration.Milliseconds()

	pooledCopy := func() *float64 {
		v := pooled
		return &v
	}
	emit := func(e Event) {
		e.EventID = fmt.Sprintf("gen-%d-%d", config.Seed, len(events))
		events = append(events, e)
	}

	nextSwing, nextTick, nextPurify := swing, tick, purify
	for now := int64(0); now <= end && !dead; {
		now = minInt64(nextSwing, minInt64(nextTick, nextPurify))
		if now > end {
			break
		}

		switch now {
		case nextSwing:
			hit := baseSwingDamage * (1 + swingVariance*(2*rng.Float64()-1))
			staggered := hit * staggerShare
			taken := int64(hit - staggered)
			pooled += staggered
			hp -= taken
			if hp < 0 {
				hp = 0
			}

			emit(Event{
				Kind:      "stagger_add",
				Timestamp: now,
				NewPooled: pooledCopy(),
				Amount:    staggered,
			})
			emit(Event{
				Kind:         "damage",
				Timestamp:    now,
				Amount:       float64(taken),
				HitPoints:    hp,
				MaxHitPoints: maxHP,
			})

			// Deep into the fight an unlucky string of hits can be lethal.
			if hp == 0 || (now > int64(float64(end)*killWindowShare) && pooled > float64(maxHP)*lethalPoolShare) {
				emit(Event{Kind: "death", Timestamp: now + 1})
				dead = true
				break
			}

			if rng.Float64() < healChance {
				heal := int64(baseHealAmount * (0.5 + rng.Float64()))
				hp += heal
				if hp > maxHP {
					hp = maxHP
				}
				emit(Event{
					Kind:         "heal",
					Timestamp:    now + 2,
					Amount:       float64(heal),
					HitPoints:    hp,
					MaxHitPoints: maxHP,
				})
			}
			nextSwing += swing

		case nextTick:
			if pooled > 0 {
				drained := pooled * tickShare
				pooled -= drained
				emit(Event{
					Kind:      "stagger_remove",
					Timestamp: now,
					NewPooled: pooledCopy(),
					Amount:    drained,
					AbilityID: StaggerTickAbilityID,
				})
			}
			nextTick += tick

		case nextPurify:
			if pooled > 0 {
				removed := pooled * purifyShare
				pooled -= removed
				emit(Event{
					Kind:      "stagger_remove",
					Timestamp: now,
					NewPooled: pooledCopy(),
					Amount:    removed,
					AbilityID: PurifyAbilityID,
				})
			}
			nextPurify += purify
		}
	}

	stats.EventsGenerated = len(events)
	logger.Get().Info(ctx, "generated encounter stream",
		logger.Int("events", len(events)),
		logger.Any("death", dead),
	)
	return events, nil
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
