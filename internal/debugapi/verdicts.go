// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package debugapi

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/meshlayer/overlay/internal/addressing"
	"github.com/meshlayer/overlay/internal/overlaynet"
)

// VerdictHub fans out overlaynet.VerdictEvent notifications to every
// connected websocket client, filtered per-connection to the one
// network id the client subscribed to. It implements
// overlaynet.VerdictObserver.
type VerdictHub struct {
	mu      sync.Mutex
	clients map[addressing.NetworkID]map[*client]struct{}
	upgrader websocket.Upgrader
}

type client struct {
	conn *websocket.Conn
	send chan overlaynet.VerdictEvent
}

// NewVerdictHub returns an empty hub ready to register with
// overlaynet.Deps.Verdicts and to serve websocket connections.
func NewVerdictHub() *VerdictHub {
	return &VerdictHub{
		clients:  make(map[addressing.NetworkID]map[*client]struct{}),
		upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
	}
}

// ObserveVerdict implements overlaynet.VerdictObserver. It must not
// block: the channel send is non-blocking, dropping the event for any
// client whose buffer is full rather than stalling the filter path.
func (h *VerdictHub) ObserveVerdict(ev overlaynet.VerdictEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients[ev.NetworkID] {
		select {
		case c.send <- ev:
		default:
		}
	}
}

func (s *Server) handleVerdictStream(w http.ResponseWriter, r *http.Request) {
	n, ok := s.networkFromPath(w, r)
	if !ok {
		return
	}
	conn, err := s.hub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &client{conn: conn, send: make(chan overlaynet.VerdictEvent, 64)}

	s.hub.mu.Lock()
	if s.hub.clients[n.ID()] == nil {
		s.hub.clients[n.ID()] = make(map[*client]struct{})
	}
	s.hub.clients[n.ID()][c] = struct{}{}
	s.hub.mu.Unlock()

	defer func() {
		s.hub.mu.Lock()
		delete(s.hub.clients[n.ID()], c)
		s.hub.mu.Unlock()
		conn.Close()
	}()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case ev := <-c.send:
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("[debugapi] verdict stream write: %v", err)
				return
			}
		}
	}
}
