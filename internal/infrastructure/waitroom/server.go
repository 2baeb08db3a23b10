// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package waitroom

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/logging"
)

const (
	writeWait = 5 * time.Second
	readLimit = 512
)

// Server upgrades waiting-room requests to WebSocket connections.
type Server struct {
	upgrader  websocket.Upgrader
	hub       *Hub
	pingEvery time.Duration
}

// NewServer creates a Server. checkOrigin may be nil to accept any origin.
func NewServer(hub *Hub, checkOrigin func(r *http.Request) bool) *Server {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Server{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		pingEvery: 15 * time.Second,
	}
}

// HandleWaiting serves GET /rooms/{uid}/waiting. It blocks until the guest
// disconnects.
func (s *Server) HandleWaiting(w http.ResponseWriter, r *http.Request, roomUID string) {
	ctx := r.Context()
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		slog.WarnContext(ctx, "websocket upgrade failed", "room_uid", roomUID, logging.ErrKey, err)
		return
	}

	c := newWsConn(conn, roomUID)
	s.hub.Add(c)
	slog.DebugContext(ctx, "guest waiting", "room_uid", roomUID)

	go s.pingLoop(c)
	s.readLoop(c)

	s.hub.Remove(c)
	_ = c.Close()
}

// readLoop discards client frames; it returns once the connection breaks.
func (s *Server) readLoop(c *wsConn) {
	c.conn.SetReadLimit(readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) pingLoop(c *wsConn) {
	ticker := time.NewTicker(s.pingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			c.mu.Unlock()
			if err != nil {
				return
			}
		case <-c.closed:
			return
		}
	}
}

type wsConn struct {
	conn      *websocket.Conn
	roomUID   string
	mu        sync.Mutex
	closed    chan struct{}
	closeOnce sync.Once
}

func newWsConn(c *websocket.Conn, roomUID string) *wsConn {
	return &wsConn{
		conn:    c,
		roomUID: roomUID,
		closed:  make(chan struct{}),
	}
}

func (c *wsConn) RoomUID() string {
	return c.roomUID
}

func (c *wsConn) Send(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}
