package server

import (
	"sync"
	"time"

	"github.com/coder/websocket"
)

// Client describes a connected WebSocket peer.
type Client struct {
	Addr        string
	ConnectedAt time.Time
}

// ClientRegistry manages connected WebSocket clients thread-safely
type ClientRegistry struct {
	clients map[*websocket.Conn]Client
	mu      sync.RWMutex
}

// NewClientRegistry creates a new client registry
func NewClientRegistry() *ClientRegistry {
	return &ClientRegistry{
		clients: make(map[*websocket.Conn]Client),
	}
}

// Add registers a new client connection
func (r *ClientRegistry) Add(conn *websocket.Conn, addr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[conn] = Client{Addr: addr, ConnectedAt: time.Now()}
}

// Remove unregisters a client connection
func (r *ClientRegistry) Remove(conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, conn)
}

// Count returns the number of connected clients
func (r *ClientRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Contains checks if a client is registered
func (r *ClientRegistry) Contains(conn *websocket.Conn) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.clients[conn]
	return ok
}

// ForEach executes a function for each connected client. fn runs on a
// snapshot, so it may call back into the registry.
func (r *ClientRegistry) ForEach(fn func(*websocket.Conn, Client)) {
	r.mu.RLock()
	snapshot := make(map[*websocket.Conn]Client, len(r.clients))
	for conn, c := range r.clients {
		snapshot[conn] = c
	}
	r.mu.RUnlock()

	for conn, c := range snapshot {
		fn(conn, c)
	}
}
