// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package waitroom keeps the WebSocket connections of guests waiting for a
// room's meeting to start and tells them when it does.
package waitroom

import (
	"context"
	"log/slog"
	"sync"

	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/logging"
)

// ActionStarted is sent to waiting guests once the meeting is running.
const ActionStarted = "started"

// Message is the JSON frame pushed to waiting guests.
type Message struct {
	Action string `json:"action"`
}

// Conn is one waiting guest.
type Conn interface {
	Send(msg Message) error
	Close() error
	RoomUID() string
}

// Hub is the set of waiting connections per room.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[Conn]struct{}
}

// Ensure that Hub implements domain.WaitingNotifier
var _ domain.WaitingNotifier = (*Hub)(nil)

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[Conn]struct{})}
}

func (h *Hub) Add(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rs, ok := h.rooms[c.RoomUID()]
	if !ok {
		rs = make(map[Conn]struct{})
		h.rooms[c.RoomUID()] = rs
	}
	rs[c] = struct{}{}
}

func (h *Hub) Remove(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if rs, ok := h.rooms[c.RoomUID()]; ok {
		delete(rs, c)
		if len(rs) == 0 {
			delete(h.rooms, c.RoomUID())
		}
	}
}

// Waiting returns how many connections wait on roomUID.
func (h *Hub) Waiting(roomUID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomUID])
}

// NotifyStarted sends the started action to everyone waiting on roomUID and
// returns how many were reached. Delivery is best-effort.
func (h *Hub) NotifyStarted(ctx context.Context, roomUID string) int {
	h.mu.RLock()
	conns := make([]Conn, 0, len(h.rooms[roomUID]))
	for c := range h.rooms[roomUID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	sent := 0
	for _, c := range conns {
		if err := c.Send(Message{Action: ActionStarted}); err != nil {
			slog.DebugContext(ctx, "failed to notify waiting guest", "room_uid", roomUID, logging.ErrKey, err)
			continue
		}
		sent++
	}
	if sent > 0 {
		slog.InfoContext(ctx, "notified waiting guests", "room_uid", roomUID, "count", sent)
	}
	return sent
}
