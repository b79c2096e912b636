package genlog

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"
)

func testConfig(seed int64) *Config {
	return &Config{
		Seed:         seed,
		Duration:     30 * time.Second,
		SwingPeriod:  DefaultSwingPeriod,
		TickPeriod:   DefaultTickPeriod,
		PurifyPeriod: DefaultPurifyPeriod,
		MaxHitPoints: DefaultMaxHitPoints,
	}
}

func TestGeneratorDeterminism(t *testing.T) {
	convey.Convey("Given the same seed", t, func() {
		ctx := context.Background()

		convey.Convey("When generating two streams", func() {
			a, err1 := generateEncounter(ctx, testConfig(7), &Stats{})
			b, err2 := generateEncounter(ctx, testConfig(7), &Stats{})

			convey.Convey("Then the streams are identical", func() {
				convey.So(err1, convey.ShouldBeNil)
				convey.So(err2, convey.ShouldBeNil)
				convey.So(len(a), convey.ShouldBeGreaterThan, 0)
				convey.So(reflect.DeepEqual(a, b), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When generating with different seeds", func() {
			a, _ := generateEncounter(ctx, testConfig(7), &Stats{})
			b, _ := generateEncounter(ctx, testConfig(8), &Stats{})

			convey.Convey("Then the streams differ", func() {
				convey.So(reflect.DeepEqual(a, b), convey.ShouldBeFalse)
			})
		})
	})
}

func TestGeneratorStreamShape(t *testing.T) {
	convey.Convey("Given a generated stream", t, func() {
		stats := &Stats{}
		events, err := generateEncounter(context.Background(), testConfig(1), stats)
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("Then timestamps never decrease", func() {
			for i := 1; i < len(events); i++ {
				convey.So(events[i].Timestamp, convey.ShouldBeGreaterThanOrEqualTo, events[i-1].Timestamp)
			}
		})

		convey.Convey("Then event ids are unique", func() {
			seen := map[string]bool{}
			for _, e := range events {
				convey.So(seen[e.EventID], convey.ShouldBeFalse)
				seen[e.EventID] = true
			}
			convey.So(stats.EventsGenerated, convey.ShouldEqual, len(events))
		})

		convey.Convey("Then pool mutations always carry a level", func() {
			for _, e := range events {
				if e.Kind == "stagger_add" || e.Kind == "stagger_remove" {
					convey.So(e.NewPooled, convey.ShouldNotBeNil)
					convey.So(*e.NewPooled, convey.ShouldBeGreaterThanOrEqualTo, 0)
				}
			}
		})

		convey.Convey("Then every removal follows at least one gain", func() {
			gains := 0
			for _, e := range events {
				switch e.Kind {
				case "stagger_add":
					gains++
				case "stagger_remove":
					convey.So(gains, convey.ShouldBeGreaterThan, 0)
				}
			}
		})

		convey.Convey("Then purifies use the purify ability and ticks do not", func() {
			purifies, ticks := 0, 0
			for _, e := range events {
				if e.Kind != "stagger_remove" {
					continue
				}
				switch e.AbilityID {
				case PurifyAbilityID:
					purifies++
				case StaggerTickAbilityID:
					ticks++
				}
			}
			convey.So(purifies+ticks, convey.ShouldBeGreaterThan, 0)
			convey.So(ticks, convey.ShouldBeGreaterThan, purifies)
		})

		convey.Convey("Then health snapshots stay within the maximum", func() {
			for _, e := range events {
				if e.Kind == "damage" || e.Kind == "heal" {
					convey.So(e.HitPoints, convey.ShouldBeLessThanOrEqualTo, e.MaxHitPoints)
					convey.So(e.HitPoints, convey.ShouldBeGreaterThanOrEqualTo, 0)
				}
			}
		})
	})
}
