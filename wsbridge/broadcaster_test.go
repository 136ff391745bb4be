package wsbridge_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"gridprobe/wsbridge"
)

// dial connects a websocket subscriber to the broadcaster under test.
func dial(server *httptest.Server) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	Expect(err).NotTo(HaveOccurred())
	DeferCleanup(func() { ws.Close() })
	return ws
}

func readEnvelope(ws *websocket.Conn) wsbridge.Envelope {
	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, payload, err := ws.ReadMessage()
	Expect(err).NotTo(HaveOccurred())

	var env wsbridge.Envelope
	Expect(json.Unmarshal(payload, &env)).To(Succeed())
	return env
}

var _ = Describe("Broadcaster", func() {
	var (
		broadcaster *wsbridge.Broadcaster
		server      *httptest.Server
	)

	BeforeEach(func() {
		broadcaster = wsbridge.NewBroadcaster()
		server = httptest.NewServer(broadcaster.Handler())
		DeferCleanup(server.Close)
		DeferCleanup(func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			broadcaster.Stop(ctx)
		})
	})

	It("delivers published events to a subscriber", func() {
		ws := dial(server)
		Eventually(broadcaster.SubscriberCount).Should(Equal(1))

		broadcaster.Publish("iteration_started", map[string]any{"iteration": 1})

		env := readEnvelope(ws)
		Expect(env.Type).To(Equal("iteration_started"))
		Expect(env.TS).NotTo(BeZero())
		Expect(env.Data).To(HaveKeyWithValue("iteration", float64(1)))
	})

	It("fans one event out to every subscriber", func() {
		first := dial(server)
		second := dial(server)
		Eventually(broadcaster.SubscriberCount).Should(Equal(2))

		broadcaster.Publish("run_completed", map[string]any{"iterations": 3})

		Expect(readEnvelope(first).Type).To(Equal("run_completed"))
		Expect(readEnvelope(second).Type).To(Equal("run_completed"))
	})

	It("drops subscribers on stop", func() {
		dial(server)
		Eventually(broadcaster.SubscriberCount).Should(Equal(1))

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		Expect(broadcaster.Stop(ctx)).To(Succeed())
		Expect(broadcaster.SubscriberCount()).To(BeZero())
	})

	It("publishes without subscribers", func() {
		broadcaster.Publish("run_started", map[string]any{"run_id": "r1"})
	})
})

var _ = Describe("WSCompareHandler", func() {
	It("publishes run events with typed payloads", func() {
		broadcaster := wsbridge.NewBroadcaster()
		server := httptest.NewServer(broadcaster.Handler())
		DeferCleanup(server.Close)

		ws := dial(server)
		Eventually(broadcaster.SubscriberCount).Should(Equal(1))

		handler := wsbridge.NewWSCompareHandler(broadcaster)
		handler.RunStarted("run-1", "answer questions", []string{"provider"}, 5)
		handler.RunFailed("run-1", fmt.Errorf("boom"), 2)

		started := readEnvelope(ws)
		Expect(started.Type).To(Equal(wsbridge.EventRunStarted))
		Expect(started.Data).To(HaveKeyWithValue("run_id", "run-1"))
		Expect(started.Data).To(HaveKeyWithValue("max_examples", float64(5)))

		failed := readEnvelope(ws)
		Expect(failed.Type).To(Equal(wsbridge.EventRunFailed))
		Expect(failed.Data).To(HaveKeyWithValue("error", "boom"))
		Expect(failed.Data).To(HaveKeyWithValue("completed_iterations", float64(2)))
	})
})
