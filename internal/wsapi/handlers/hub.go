// Package handlers implements the WebSocket connection hub and upgrade
// handler for internal/wsapi, adapted from the teacher's
// apps/api/internal/handlers package: a client registry, a broadcast
// channel, and per-client read/write pumps, plus an id-indexed lookup
// (absent from the teacher's hub) so a response can be routed to the one
// client that asked for it instead of every connected browser.
package handlers

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

// Client is one connected WebSocket browser session.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	id   string
}

// Hub tracks connected clients by both identity and id, routes per-client
// responses to the one connection that asked for them, and dispatches
// inbound client messages to a caller-supplied handler. Every client owns
// an independent session (ws_handler.go), so the per-client send path is
// what this platform actually uses; Broadcast is kept as a Hub primitive
// for callers that do need every connection reached at once.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]bool
	byId       map[string]*Client
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	onMessage func(clientId string, msgType string, data []byte)
}

// NewHub constructs an empty Hub. Call Run in its own goroutine before use.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		byId:       make(map[string]*Client),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// SetMessageHandler installs the callback invoked for every inbound client
// message, keyed by its protocol.MessageType.
func (h *Hub) SetMessageHandler(handler func(clientId string, msgType string, data []byte)) {
	h.onMessage = handler
}

// Run drives the hub's registration/broadcast loop. It never returns; call
// it in its own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.byId[client.id] = client
			h.mu.Unlock()
			log.Printf("wsapi: client connected: %s", client.id)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				delete(h.byId, client.id)
				close(client.send)
			}
			h.mu.Unlock()
			log.Printf("wsapi: client disconnected: %s", client.id)

		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					h.mu.RUnlock()
					h.mu.Lock()
					close(client.send)
					delete(h.clients, client)
					delete(h.byId, client.id)
					h.mu.Unlock()
					h.mu.RLock()
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast sends a raw message to every connected client.
func (h *Hub) Broadcast(message []byte) {
	h.broadcast <- message
}

// BroadcastJSON marshals v and broadcasts it.
func (h *Hub) BroadcastJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(data)
	return nil
}

// SendToClient delivers message to the single client registered under
// clientId. It is a no-op if that client has already disconnected, and it
// applies the same full-buffer eviction Run's broadcast case does rather
// than blocking the caller on a slow reader.
func (h *Hub) SendToClient(clientId string, message []byte) {
	h.mu.RLock()
	client, ok := h.byId[clientId]
	h.mu.RUnlock()
	if !ok {
		return
	}

	select {
	case client.send <- message:
	default:
		h.mu.Lock()
		if _, stillConnected := h.clients[client]; stillConnected {
			close(client.send)
			delete(h.clients, client)
			delete(h.byId, client.id)
		}
		h.mu.Unlock()
	}
}

// SendJSONToClient marshals v and delivers it to the single client
// registered under clientId.
func (h *Hub) SendJSONToClient(clientId string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.SendToClient(clientId, data)
	return nil
}

// ClientCount reports the number of currently connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("wsapi: read error: %v", err)
			}
			break
		}

		var base struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(message, &base); err != nil {
			log.Printf("wsapi: malformed client message: %v", err)
			continue
		}

		if c.hub.onMessage != nil {
			c.hub.onMessage(c.id, base.Type, message)
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for {
		message, ok := <-c.send
		if !ok {
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}

		w, err := c.conn.NextWriter(websocket.TextMessage)
		if err != nil {
			return
		}
		w.Write(message)

		n := len(c.send)
		for i := 0; i < n; i++ {
			w.Write([]byte("\n"))
			w.Write(<-c.send)
		}

		if err := w.Close(); err != nil {
			return
		}
	}
}
