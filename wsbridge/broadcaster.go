// Package wsbridge serves live comparison progress over WebSocket.
package wsbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Envelope is the wire format for one progress event.
type Envelope struct {
	Type string    `json:"type"`
	TS   time.Time `json:"ts"`
	Data any       `json:"data"`
}

// Broadcaster accepts websocket subscribers on /ws and fans every published
// event out to all of them. Slow subscribers are dropped rather than
// allowed to stall the run.
type Broadcaster struct {
	server   *http.Server
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]bool
}

type client struct {
	ws   *websocket.Conn
	send chan []byte
}

// NewBroadcaster creates an unstarted broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Local monitoring endpoint; subscribers connect from anywhere.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]bool),
	}
}

// Handler returns the HTTP handler serving the /ws endpoint, so the
// broadcaster can also be mounted on an existing server.
func (b *Broadcaster) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", b.serveWS)
	return mux
}

// Start begins listening on the given port. Returns once the listener is
// bound; serving continues in the background.
func (b *Broadcaster) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	b.server = &http.Server{Handler: b.Handler()}
	go func() {
		if err := b.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Printf("Broadcaster: serve: %v", err)
		}
	}()

	log.Printf("Live progress available at ws://localhost:%d/ws", port)
	return nil
}

// Stop shuts the server down and disconnects all subscribers.
func (b *Broadcaster) Stop(ctx context.Context) error {
	b.mu.Lock()
	for c := range b.clients {
		close(c.send)
		delete(b.clients, c)
	}
	b.mu.Unlock()

	if b.server == nil {
		return nil
	}
	return b.server.Shutdown(ctx)
}

// Publish sends an event to every connected subscriber.
func (b *Broadcaster) Publish(eventType string, data any) {
	payload, err := json.Marshal(Envelope{
		Type: eventType,
		TS:   time.Now().UTC(),
		Data: data,
	})
	if err != nil {
		log.Printf("Broadcaster: marshal event: %v", err)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.clients {
		select {
		case c.send <- payload:
		default:
			// Subscriber cannot keep up; disconnect it.
			close(c.send)
			delete(b.clients, c)
		}
	}
}

// SubscriberCount returns the number of connected subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

func (b *Broadcaster) serveWS(w http.ResponseWriter, r *http.Request) {
	ws, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Broadcaster: upgrade: %v", err)
		return
	}

	c := &client{ws: ws, send: make(chan []byte, 256)}
	b.mu.Lock()
	b.clients[c] = true
	b.mu.Unlock()

	go b.writePump(c)
	go b.readPump(c)
}

// readPump drains the connection so close frames and pongs are processed.
// Subscribers are listen-only; inbound content is discarded.
func (b *Broadcaster) readPump(c *client) {
	defer func() {
		b.unregister(c)
		c.ws.Close()
	}()

	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("Broadcaster: read: %v", err)
			}
			return
		}
	}
}

func (b *Broadcaster) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (b *Broadcaster) unregister(c *client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.clients[c] {
		close(c.send)
		delete(b.clients, c)
	}
}
