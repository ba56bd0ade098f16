package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"slices"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/lcalzada-xor/connd/internal/core/domain"
	"github.com/lcalzada-xor/connd/internal/core/ports"
)

const (
	sendBuffer   = 64
	writeTimeout = 5 * time.Second
)

// Message is the envelope of every frame sent to clients.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type client struct {
	user *domain.User
	send chan []byte
}

// WSManager fans registry and profile changes out to websocket clients. It
// never blocks the notifier: a client whose queue is full loses the frame.
type WSManager struct {
	AllowedOrigins []string

	clients  map[*ws.Conn]*client
	mu       sync.Mutex
	upgrader ws.Upgrader
}

var (
	_ ports.ServiceObserver = (*WSManager)(nil)
	_ ports.ProfileObserver = (*WSManager)(nil)
)

// NewWSManager creates a manager. With no allowed origins only same-host
// browser origins are accepted.
func NewWSManager(allowedOrigins ...string) *WSManager {
	m := &WSManager{
		AllowedOrigins: allowedOrigins,
		clients:        make(map[*ws.Conn]*client),
	}
	m.upgrader = ws.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     m.checkOrigin,
	}
	return m
}

func (m *WSManager) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if slices.Contains(m.AllowedOrigins, origin) {
		return true
	}
	if u, err := url.Parse(origin); err == nil && u.Host == r.Host {
		return true
	}
	log.Printf("[WS] Rejected origin: %s", origin)
	return false
}

// HandleWebSocket upgrades an authenticated request into a change feed.
func (m *WSManager) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	user := domain.CallerFrom(r.Context())
	if user == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WS] Upgrade error: %v", err)
		return
	}

	c := &client{user: user, send: make(chan []byte, sendBuffer)}
	m.mu.Lock()
	m.clients[conn] = c
	m.mu.Unlock()

	log.Printf("[WS] connected: user=%s, role=%s", user.Username, user.Role)

	go m.writePump(conn, c)
	go m.readPump(conn)
}

// readPump discards client frames and detects the close.
func (m *WSManager) readPump(conn *ws.Conn) {
	defer m.drop(conn)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (m *WSManager) writePump(conn *ws.Conn, c *client) {
	for data := range c.send {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(ws.TextMessage, data); err != nil {
			m.drop(conn)
			return
		}
	}
}

func (m *WSManager) drop(conn *ws.Conn) {
	m.mu.Lock()
	c, ok := m.clients[conn]
	if ok {
		delete(m.clients, conn)
		close(c.send)
	}
	m.mu.Unlock()

	if ok {
		conn.Close()
		log.Printf("[WS] disconnected: user=%s", c.user.Username)
	}
}

// Clients returns the number of connected clients.
func (m *WSManager) Clients() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clients)
}

// OnPropertyChanged implements ports.ServiceObserver.
func (m *WSManager) OnPropertyChanged(_ context.Context, change domain.PropertyChange) {
	m.broadcast(Message{Type: "property", Payload: change})
}

// OnProfileChanged implements ports.ProfileObserver.
func (m *WSManager) OnProfileChanged(_ context.Context, path string) {
	m.broadcast(Message{Type: "profile", Payload: map[string]string{"path": path}})
}

func (m *WSManager) broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[WS] JSON marshal error: %v", err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.clients {
		select {
		case c.send <- data:
		default:
			log.Printf("[WS] send queue full for %s, dropping %s", c.user.Username, msg.Type)
		}
	}
}

// Close disconnects every client.
func (m *WSManager) Close() {
	m.mu.Lock()
	conns := make([]*ws.Conn, 0, len(m.clients))
	for conn := range m.clients {
		conns = append(conns, conn)
	}
	m.mu.Unlock()

	for _, conn := range conns {
		m.drop(conn)
	}
}
