// Package wsbridge republishes Event Stream events to a GUI over
// WebSocket (spec.md §6.3's boundary contract, extended per SPEC_FULL §6).
// It is a thin adapter only: one upgraded connection per run, with
// events.Event values written as JSON text frames on the goroutine that
// emits them, no protocol of its own beyond what the Event Stream already
// defines.
package wsbridge

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/ormasoftchile/chromedir/internal/events"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Bridge forwards events.Event values to a single connected WebSocket
// client. Events emitted before a client connects are dropped — this is
// a live tail, not a durable log.
type Bridge struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// New returns an empty Bridge; call Listener to obtain the events.Listener
// to attach to a run, and ServeHTTP to accept the GUI's connection.
func New() *Bridge {
	return &Bridge{}
}

// ServeHTTP upgrades the request to a WebSocket and holds it as the
// bridge's single sink until the client disconnects.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	b.mu.Lock()
	if b.conn != nil {
		b.conn.Close()
	}
	b.conn = conn
	b.mu.Unlock()

	// Drain and discard any client->server traffic so the read side
	// notices a closed connection; the bridge is otherwise one-directional.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				b.mu.Lock()
				if b.conn == conn {
					b.conn = nil
				}
				b.mu.Unlock()
				return
			}
		}
	}()
}

// Listener returns an events.Listener that writes each event to the
// currently connected client, if any. Write failures drop the connection
// silently — a disconnected GUI must never affect the run.
func (b *Bridge) Listener() events.Listener {
	return func(evt events.Event) {
		b.mu.Lock()
		conn := b.conn
		b.mu.Unlock()
		if conn == nil {
			return
		}
		data, err := json.Marshal(evt)
		if err != nil {
			return
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			b.mu.Lock()
			if b.conn == conn {
				b.conn = nil
			}
			b.mu.Unlock()
		}
	}
}
