package ws

import (
	"context"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/Zaresol/staggerline/internal/domain/series"
)

// blockingProjector parks inside Series until released, holding the
// broadcast open between its client-set snapshot and the send.
type blockingProjector struct {
	entered chan struct{}
	release chan struct{}
}

func (p *blockingProjector) Series(_ context.Context, id string) (series.Report, error) {
	p.entered <- struct{}{}
	<-p.release
	return series.Report{EncounterID: id}, nil
}

func TestHubDisconnectDuringBroadcast(t *testing.T) {
	convey.Convey("Given a broadcast in flight for a subscribed client", t, func() {
		proj := &blockingProjector{
			entered: make(chan struct{}, 1),
			release: make(chan struct{}),
		}
		hub := New(proj)

		c := &client{
			encounterID: "enc-1",
			send:        make(chan []byte, sendBufSize),
		}
		hub.register(c)

		result := make(chan any, 1)
		go func() {
			defer func() { result <- recover() }()
			hub.broadcast(context.Background())
		}()

		select {
		case <-proj.entered:
		case <-time.After(2 * time.Second):
			t.Fatal("broadcast never reached the projector")
		}

		convey.Convey("When the client disconnects before the send happens", func() {
			hub.unregister(c)
			close(proj.release)

			convey.Convey("Then the broadcast completes without panicking", func() {
				select {
				case r := <-result:
					convey.So(r, convey.ShouldBeNil)
				case <-time.After(2 * time.Second):
					t.Fatal("broadcast did not finish")
				}
				convey.So(hub.Count(), convey.ShouldEqual, 0)
			})
		})
	})
}

func TestHubPushAfterUnregister(t *testing.T) {
	convey.Convey("Given an already-unregistered client", t, func() {
		proj := &blockingProjector{
			entered: make(chan struct{}, 1),
			release: make(chan struct{}),
		}
		hub := New(proj)

		c := &client{
			encounterID: "enc-1",
			send:        make(chan []byte, 1),
		}
		hub.register(c)
		hub.unregister(c)

		convey.Convey("When pushing to it", func() {
			convey.Convey("Then the push is a no-op instead of a panic", func() {
				convey.So(func() {
					hub.push(c, []byte(`{"event":"report"}`))
				}, convey.ShouldNotPanic)
			})
		})
	})
}
