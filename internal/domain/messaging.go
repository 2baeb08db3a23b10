// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package domain

import (
	"context"

	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/domain/models"
)

// Message represents a domain message interface
type Message interface {
	Subject() string
	Data() []byte
	Respond(data []byte) error
	HasReply() bool
}

// MessageHandler defines how the service handles incoming messages
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg Message)
	HandlerReady() bool
}

// RoomEventSender publishes room lifecycle events.
type RoomEventSender interface {
	SendRoomSessionStarted(ctx context.Context, data models.RoomSessionStartedMessage) error
	SendRoomDeleted(ctx context.Context, data models.RoomDeletedMessage) error
}

// WaitingNotifier tells guests waiting for a room that its meeting started.
type WaitingNotifier interface {
	NotifyStarted(ctx context.Context, roomUID string) int
}
