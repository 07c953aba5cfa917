package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	sendBuffer   = 16
	readLimit    = 4 << 10
)

// ErrHubClosed is returned by Send after Close.
var ErrHubClosed = errors.New("notify: hub closed")

// Hub broadcasts changes to WebSocket subscribers. A new subscriber first
// receives the latest change, if any. Slow subscribers drop messages
// rather than stall the broadcast.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.Mutex
	clients map[*subscriber]struct{}
	last    []byte
	closed  bool
	wg      sync.WaitGroup
}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (s *subscriber) stop() { s.once.Do(func() { close(s.done) }) }

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger:  logger,
		clients: make(map[*subscriber]struct{}),
	}
}

// Count returns the number of connected subscribers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and subscribes the connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		http.Error(w, "hub closed", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("notify: websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	s := &subscriber{conn: conn, send: make(chan []byte, sendBuffer), done: make(chan struct{})}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[s] = struct{}{}
	if h.last != nil {
		s.send <- h.last
	}
	h.wg.Add(2)
	h.mu.Unlock()

	h.logger.Debug("notify: subscriber connected", "remote", r.RemoteAddr)
	go h.writePump(s)
	go h.readPump(s)
}

// Send broadcasts c to every subscriber.
func (h *Hub) Send(_ context.Context, c Change) error {
	data, err := json.Marshal(envelope{Type: "reviews", Data: c})
	if err != nil {
		return fmt.Errorf("notify: hub marshal: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrHubClosed
	}
	h.last = data
	for s := range h.clients {
		select {
		case s.send <- data:
		default:
			h.logger.Warn("notify: subscriber too slow, dropping change")
		}
	}
	return nil
}

// Close disconnects every subscriber and waits for their goroutines.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	for s := range h.clients {
		s.stop()
	}
	h.mu.Unlock()

	h.wg.Wait()
	return nil
}

func (h *Hub) writePump(s *subscriber) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		s.conn.Close()
		h.wg.Done()
	}()

	for {
		select {
		case <-s.done:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		case msg := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.logger.Debug("notify: websocket write failed", "error", err)
				s.stop()
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.stop()
				return
			}
		}
	}
}

// readPump only watches for disconnects; subscribers have nothing to say.
func (h *Hub) readPump(s *subscriber) {
	defer func() {
		h.mu.Lock()
		delete(h.clients, s)
		h.mu.Unlock()
		s.stop()
		h.wg.Done()
	}()

	s.conn.SetReadLimit(readLimit)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("notify: websocket read failed", "error", err)
			}
			return
		}
	}
}
