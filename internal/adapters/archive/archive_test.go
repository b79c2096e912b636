package archive_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/Zaresol/staggerline/internal/adapters/archive"
	"github.com/Zaresol/staggerline/internal/domain/series"
	"github.com/smartystreets/goconvey/convey"
)

func sampleReport(id string) series.Report {
	y := 5.0
	return series.Report{
		EncounterID: id,
		StartTime:   100,
		Pool: []series.PoolPoint{
			{X: 100, Y: nil},
			{X: 200, Y: &y, HP: 80, MaxHP: 100},
		},
		Health:    []series.Point{{X: 150, Y: 80}},
		MaxHealth: []series.Point{{X: 150, Y: 100}},
		Purifies:  []series.PurifyMarker{{X: 100, Y: 20, Amount: 15}},
		Deaths:    []series.DeathMarker{{X: 250}},
	}
}

func TestArchive(t *testing.T) {
	convey.Convey("Given an archive in a temp directory", t, func() {
		store, err := archive.Open(filepath.Join(t.TempDir(), "archive.db"))
		convey.So(err, convey.ShouldBeNil)
		defer store.Close()
		ctx := context.Background()

		convey.Convey("When saving and loading a report", func() {
			r := sampleReport("enc-1")
			convey.So(store.Save(ctx, r), convey.ShouldBeNil)
			got, err := store.Load(ctx, "enc-1")

			convey.Convey("Then the report round-trips", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(got, convey.ShouldResemble, r)
			})
		})

		convey.Convey("When saving the same encounter twice", func() {
			r := sampleReport("enc-2")
			convey.So(store.Save(ctx, r), convey.ShouldBeNil)
			r.Deaths = append(r.Deaths, series.DeathMarker{X: 500})
			convey.So(store.Save(ctx, r), convey.ShouldBeNil)
			got, err := store.Load(ctx, "enc-2")

			convey.Convey("Then the newer report wins", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(got.Deaths, convey.ShouldHaveLength, 2)
			})
		})

		convey.Convey("When listing reports", func() {
			convey.So(store.Save(ctx, sampleReport("enc-a")), convey.ShouldBeNil)
			convey.So(store.Save(ctx, sampleReport("enc-b")), convey.ShouldBeNil)
			summaries, err := store.List(ctx)

			convey.Convey("Then all rows appear with their counts", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(summaries, convey.ShouldHaveLength, 2)
				for _, s := range summaries {
					convey.So(s.PurifyCount, convey.ShouldEqual, 1)
					convey.So(s.DeathCount, convey.ShouldEqual, 1)
				}
			})
		})

		convey.Convey("When loading an unknown encounter", func() {
			_, err := store.Load(ctx, "ghost")

			convey.Convey("Then it reports not found", func() {
				convey.So(errors.Is(err, archive.ErrNotFound), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When saving a report without an id", func() {
			convey.So(store.Save(ctx, series.Report{}), convey.ShouldNotBeNil)
		})
	})

	convey.Convey("Given an empty path", t, func() {
		_, err := archive.Open("  ")

		convey.Convey("Then opening fails", func() {
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}
