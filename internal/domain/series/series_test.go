package series_test

import (
	"testing"

	"github.com/Zaresol/staggerline/internal/domain/model"
	"github.com/Zaresol/staggerline/internal/domain/series"
	"github.com/Zaresol/staggerline/internal/domain/tracker"
	"github.com/smartystreets/goconvey/convey"
)

func pooled(v float64) *float64 { return &v }

// feed ingests the stream into a fresh tracker, ignoring the reportable
// no-prior-stagger condition the same way the dispatcher does.
func feed(events []model.Event) *tracker.Tracker {
	tr := tracker.New()
	for _, e := range events {
		_ = tr.Ingest(e)
	}
	return tr
}

func TestProject(t *testing.T) {
	convey.Convey("Given the reference encounter stream", t, func() {
		// StaggerAdd@100, Damage@150(hp=80,max=100),
		// purifying StaggerRemove@200(pooled=5, amount=15), Death@250.
		stream := []model.Event{
			{Kind: model.KindStaggerAdd, Timestamp: 100},
			{Kind: model.KindDamage, Timestamp: 150, HitPoints: 80, MaxHitPoints: 100},
			{Kind: model.KindStaggerRemove, Timestamp: 200, NewPooled: pooled(5), Amount: 15, AbilityID: tracker.DefaultPurifyAbility},
			{Kind: model.KindDeath, Timestamp: 250},
		}

		convey.Convey("When projected", func() {
			r := series.Project(feed(stream), 100)

			convey.Convey("Then the pool series holds both mutations", func() {
				convey.So(r.Pool, convey.ShouldHaveLength, 2)
				convey.So(r.Pool[0].X, convey.ShouldEqual, 100)
				convey.So(r.Pool[0].Y, convey.ShouldBeNil)
				convey.So(r.Pool[1].X, convey.ShouldEqual, 200)
				convey.So(*r.Pool[1].Y, convey.ShouldEqual, 5)
				convey.So(r.Pool[1].HP, convey.ShouldEqual, 80)
				convey.So(r.Pool[1].MaxHP, convey.ShouldEqual, 100)
			})

			convey.Convey("Then the purify marker sits on the prior peak with the reconstructed height", func() {
				convey.So(r.Purifies, convey.ShouldHaveLength, 1)
				convey.So(r.Purifies[0].X, convey.ShouldEqual, 100)
				convey.So(r.Purifies[0].Y, convey.ShouldEqual, 20)
				convey.So(r.Purifies[0].Amount, convey.ShouldEqual, 15)
			})

			convey.Convey("Then health and death series follow the stream", func() {
				convey.So(r.Health, convey.ShouldResemble, []series.Point{{X: 150, Y: 80}})
				convey.So(r.MaxHealth, convey.ShouldResemble, []series.Point{{X: 150, Y: 100}})
				convey.So(r.Deaths, convey.ShouldResemble, []series.DeathMarker{{X: 250}})
				convey.So(r.StartTime, convey.ShouldEqual, 100)
			})
		})

		convey.Convey("When projected twice from two fresh trackers", func() {
			a := series.Project(feed(stream), 100)
			b := series.Project(feed(stream), 100)

			convey.Convey("Then the reports are identical", func() {
				convey.So(b, convey.ShouldResemble, a)
			})
		})

		convey.Convey("When projected repeatedly from the same tracker", func() {
			tr := feed(stream)
			first := series.Project(tr, 100)
			second := series.Project(tr, 100)

			convey.Convey("Then projection does not mutate the tracker", func() {
				convey.So(second, convey.ShouldResemble, first)
				convey.So(tr.Stagger(), convey.ShouldHaveLength, 2)
			})
		})
	})

	convey.Convey("Given a stream with no stagger events", t, func() {
		stream := []model.Event{
			{Kind: model.KindDamage, Timestamp: 10, HitPoints: 70},
			{Kind: model.KindHeal, Timestamp: 20, MaxHitPoints: 110},
			{Kind: model.KindDeath, Timestamp: 30},
		}

		convey.Convey("When projected", func() {
			r := series.Project(feed(stream), 0)

			convey.Convey("Then pool and purify series are empty but present", func() {
				convey.So(r.Pool, convey.ShouldBeEmpty)
				convey.So(r.Pool, convey.ShouldNotBeNil)
				convey.So(r.Purifies, convey.ShouldBeEmpty)
			})

			convey.Convey("Then snapshot-bearing events split into the filtered series", func() {
				convey.So(r.Health, convey.ShouldResemble, []series.Point{{X: 10, Y: 70}})
				convey.So(r.MaxHealth, convey.ShouldResemble, []series.Point{{X: 20, Y: 110}})
			})
		})
	})

	convey.Convey("Given health events with missing snapshot fields", t, func() {
		stream := []model.Event{
			{Kind: model.KindDamage, Timestamp: 10, HitPoints: 80, MaxHitPoints: 100},
			{Kind: model.KindDamage, Timestamp: 20},
			{Kind: model.KindHeal, Timestamp: 30, HitPoints: 90},
		}
		tr := feed(stream)
		r := series.Project(tr, 0)

		convey.Convey("Then each filtered series length plus its exclusions equals the buffer length", func() {
			convey.So(len(tr.Health()), convey.ShouldEqual, 3)
			convey.So(len(r.Health), convey.ShouldEqual, 2)
			convey.So(len(r.MaxHealth), convey.ShouldEqual, 1)
		})
	})

	convey.Convey("Given a removal with a non-purification trigger", t, func() {
		stream := []model.Event{
			{Kind: model.KindStaggerAdd, Timestamp: 100},
			{Kind: model.KindStaggerRemove, Timestamp: 200, NewPooled: pooled(3), Amount: 4, AbilityID: 99},
		}
		r := series.Project(feed(stream), 0)

		convey.Convey("Then the pool grows but no purify marker appears", func() {
			convey.So(r.Pool, convey.ShouldHaveLength, 2)
			convey.So(r.Purifies, convey.ShouldBeEmpty)
		})
	})
}

func TestPoolPointNear(t *testing.T) {
	convey.Convey("Given a projected report", t, func() {
		stream := []model.Event{
			{Kind: model.KindStaggerAdd, Timestamp: 1000},
			{Kind: model.KindStaggerRemove, Timestamp: 2000, NewPooled: pooled(5), Amount: 15, AbilityID: tracker.DefaultPurifyAbility},
		}
		r := series.Project(feed(stream), 0)

		convey.Convey("When looking up near an existing point", func() {
			p, ok := r.PoolPointNear(1200, series.DefaultMatchTolerance)

			convey.Convey("Then the closest point within tolerance is returned", func() {
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(p.X, convey.ShouldEqual, 1000)
			})
		})

		convey.Convey("When every point is outside the tolerance window", func() {
			_, ok := r.PoolPointNear(5000, series.DefaultMatchTolerance)

			convey.Convey("Then no match is reported", func() {
				convey.So(ok, convey.ShouldBeFalse)
			})
		})

		convey.Convey("When a purify marker is correlated back to the pool", func() {
			p, ok := r.PoolPointNear(r.Purifies[0].X, series.DefaultMatchTolerance)

			convey.Convey("Then it lands on the peak the purify resolved", func() {
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(p.X, convey.ShouldEqual, 1000)
			})
		})
	})
}
