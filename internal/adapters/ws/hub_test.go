package ws_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/smartystreets/goconvey/convey"

	"github.com/Zaresol/staggerline/internal/adapters/repository"
	wsHub "github.com/Zaresol/staggerline/internal/adapters/ws"
	"github.com/Zaresol/staggerline/internal/domain/series"
)

const testInterval = 20 * time.Millisecond

// fakeProjector serves canned reports keyed by encounter id.
type fakeProjector struct {
	mu      sync.Mutex
	reports map[string]series.Report
}

func newFakeProjector(ids ...string) *fakeProjector {
	p := &fakeProjector{reports: map[string]series.Report{}}
	for _, id := range ids {
		p.reports[id] = series.Report{
			EncounterID: id,
			Pool:        []series.PoolPoint{},
			Health:      []series.Point{},
			MaxHealth:   []series.Point{},
			Purifies:    []series.PurifyMarker{},
			Deaths:      []series.DeathMarker{},
		}
	}
	return p
}

func (p *fakeProjector) Series(_ context.Context, id string) (series.Report, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.reports[id]
	if !ok {
		return series.Report{}, repository.ErrNotFound
	}
	return r, nil
}

func (p *fakeProjector) set(id string, r series.Report) {
	p.mu.Lock()
	p.reports[id] = r
	p.mu.Unlock()
}

func (p *fakeProjector) remove(id string) {
	p.mu.Lock()
	delete(p.reports, id)
	p.mu.Unlock()
}

func startHub(t *testing.T, p wsHub.Projector) (string, *wsHub.Hub, context.CancelFunc) {
	t.Helper()

	hub := wsHub.New(p, wsHub.WithPushInterval(testInterval))
	ctx, cancel := context.WithCancel(context.Background())

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/encounters/{id}/live", hub.ServeHTTP)
	srv := httptest.NewServer(mux)
	go hub.Run(ctx)

	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http"), hub, cancel
}

func dial(t *testing.T, wsURL, encounterID string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"/v1/encounters/"+encounterID+"/live", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) wsHub.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var msg wsHub.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return msg
}

func TestHubImmediateReport(t *testing.T) {
	convey.Convey("Given a hub with one open encounter", t, func() {
		proj := newFakeProjector("enc-1")
		wsURL, _, _ := startHub(t, proj)

		convey.Convey("When a client subscribes", func() {
			conn := dial(t, wsURL, "enc-1")
			msg := readEnvelope(t, conn)

			convey.Convey("Then a report arrives before the first tick", func() {
				convey.So(msg.Event, convey.ShouldEqual, "report")
				convey.So(msg.Data, convey.ShouldNotBeNil)
				convey.So(msg.Data.EncounterID, convey.ShouldEqual, "enc-1")
			})
		})
	})
}

func TestHubBroadcastTick(t *testing.T) {
	convey.Convey("Given a subscribed client", t, func() {
		proj := newFakeProjector("enc-1")
		wsURL, _, _ := startHub(t, proj)
		conn := dial(t, wsURL, "enc-1")
		readEnvelope(t, conn)

		convey.Convey("When the encounter state changes", func() {
			proj.set("enc-1", series.Report{
				EncounterID: "enc-1",
				Pool:        []series.PoolPoint{{X: 100}},
				Health:      []series.Point{},
				MaxHealth:   []series.Point{},
				Purifies:    []series.PurifyMarker{},
				Deaths:      []series.DeathMarker{{X: 250}},
			})

			convey.Convey("Then the next tick carries the new projection", func() {
				deadline := time.Now().Add(2 * time.Second)
				var msg wsHub.Message
				for time.Now().Before(deadline) {
					msg = readEnvelope(t, conn)
					if len(msg.Data.Deaths) > 0 {
						break
					}
				}
				convey.So(msg.Event, convey.ShouldEqual, "report")
				convey.So(msg.Data.Deaths, convey.ShouldHaveLength, 1)
				convey.So(msg.Data.Pool, convey.ShouldHaveLength, 1)
			})
		})
	})
}

func TestHubEncounterClosed(t *testing.T) {
	convey.Convey("Given a subscribed client", t, func() {
		proj := newFakeProjector("enc-1")
		wsURL, hub, _ := startHub(t, proj)
		conn := dial(t, wsURL, "enc-1")
		readEnvelope(t, conn)

		convey.Convey("When the encounter is closed", func() {
			proj.remove("enc-1")

			convey.Convey("Then subscribers get a closed event and are dropped", func() {
				deadline := time.Now().Add(2 * time.Second)
				var msg wsHub.Message
				for time.Now().Before(deadline) {
					msg = readEnvelope(t, conn)
					if msg.Event == "closed" {
						break
					}
				}
				convey.So(msg.Event, convey.ShouldEqual, "closed")

				deadline = time.Now().Add(time.Second)
				for time.Now().Before(deadline) && hub.Count() != 0 {
					time.Sleep(5 * time.Millisecond)
				}
				convey.So(hub.Count(), convey.ShouldEqual, 0)
			})
		})
	})
}

func TestHubSubscriberCount(t *testing.T) {
	convey.Convey("Given a hub", t, func() {
		proj := newFakeProjector("enc-1", "enc-2")
		wsURL, hub, _ := startHub(t, proj)

		convey.Convey("When three clients connect across two encounters", func() {
			for _, id := range []string{"enc-1", "enc-1", "enc-2"} {
				conn := dial(t, wsURL, id)
				readEnvelope(t, conn)
			}
			time.Sleep(10 * time.Millisecond)

			convey.Convey("Then all are counted", func() {
				convey.So(hub.Count(), convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When a client disconnects", func() {
			conn := dial(t, wsURL, "enc-1")
			readEnvelope(t, conn)
			time.Sleep(10 * time.Millisecond)
			convey.So(hub.Count(), convey.ShouldEqual, 1)

			conn.Close()
			deadline := time.Now().Add(time.Second)
			for time.Now().Before(deadline) && hub.Count() != 0 {
				time.Sleep(5 * time.Millisecond)
			}

			convey.Convey("Then the count drops back", func() {
				convey.So(hub.Count(), convey.ShouldEqual, 0)
			})
		})
	})
}

func TestHubRejections(t *testing.T) {
	convey.Convey("Given a hub", t, func() {
		proj := newFakeProjector("enc-1")
		wsURL, _, _ := startHub(t, proj)
		httpURL := "http" + strings.TrimPrefix(wsURL, "ws")

		convey.Convey("When subscribing to an unknown encounter", func() {
			resp, err := http.Get(httpURL + "/v1/encounters/nope/live")

			convey.Convey("Then it returns 404", func() {
				convey.So(err, convey.ShouldBeNil)
				defer resp.Body.Close()
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusNotFound)
			})
		})

		convey.Convey("When requesting without upgrade headers", func() {
			resp, err := http.Get(httpURL + "/v1/encounters/enc-1/live")

			convey.Convey("Then it returns 400", func() {
				convey.So(err, convey.ShouldBeNil)
				defer resp.Body.Close()
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusBadRequest)
			})
		})
	})
}

func TestHubShutdown(t *testing.T) {
	convey.Convey("Given a hub with a subscriber", t, func() {
		proj := newFakeProjector("enc-1")
		wsURL, hub, cancel := startHub(t, proj)
		conn := dial(t, wsURL, "enc-1")
		readEnvelope(t, conn)
		time.Sleep(10 * time.Millisecond)

		convey.Convey("When the run context is cancelled", func() {
			cancel()
			deadline := time.Now().Add(time.Second)
			for time.Now().Before(deadline) && hub.Count() != 0 {
				time.Sleep(5 * time.Millisecond)
			}

			convey.Convey("Then all clients are closed", func() {
				convey.So(hub.Count(), convey.ShouldEqual, 0)
			})
		})
	})
}
