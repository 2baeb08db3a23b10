// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package messaging

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/logging"
)

// INatsConn is the subset of *nats.Conn used to publish room events.
type INatsConn interface {
	IsConnected() bool
	Publish(subj string, data []byte) error
}

// MessageBuilder is the builder for the message and sends it to the NATS server.
type MessageBuilder struct {
	NatsConn INatsConn
}

// Ensure that MessageBuilder implements domain.RoomEventSender
var _ domain.RoomEventSender = (*MessageBuilder)(nil)

// NewMessageBuilder creates a new MessageBuilder.
func NewMessageBuilder(natsConn INatsConn) *MessageBuilder {
	return &MessageBuilder{
		NatsConn: natsConn,
	}
}

// publish sends the message to the NATS server.
func (m *MessageBuilder) publish(ctx context.Context, subject string, data []byte) error {
	if !m.NatsConn.IsConnected() {
		slog.WarnContext(ctx, "NATS connection is not connected, message will be buffered", "subject", subject)
	}
	err := m.NatsConn.Publish(subject, data)
	if err != nil {
		slog.ErrorContext(ctx, "error sending message to NATS", logging.ErrKey, err, "subject", subject)
		return err
	}
	slog.DebugContext(ctx, "sent message to NATS", "subject", subject)
	return nil
}

func (m *MessageBuilder) publishJSON(ctx context.Context, subject string, data any) error {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		slog.ErrorContext(ctx, "error marshalling data into JSON", logging.ErrKey, err, "subject", subject)
		return err
	}
	return m.publish(ctx, subject, dataBytes)
}

// SendRoomSessionStarted announces that a room's meeting was started so that
// every replica can release the guests waiting on it.
func (m *MessageBuilder) SendRoomSessionStarted(ctx context.Context, data models.RoomSessionStartedMessage) error {
	return m.publishJSON(ctx, models.RoomSessionStartedSubject, data)
}

// SendRoomDeleted announces that a room was deleted.
func (m *MessageBuilder) SendRoomDeleted(ctx context.Context, data models.RoomDeletedMessage) error {
	return m.publishJSON(ctx, models.RoomDeletedSubject, data)
}

// NatsMessage adapts a *nats.Msg to domain.Message.
type NatsMessage struct {
	Msg *nats.Msg
}

// Ensure that NatsMessage implements domain.Message
var _ domain.Message = (*NatsMessage)(nil)

func (m *NatsMessage) Subject() string {
	return m.Msg.Subject
}

func (m *NatsMessage) Data() []byte {
	return m.Msg.Data
}

func (m *NatsMessage) Respond(data []byte) error {
	return m.Msg.Respond(data)
}

func (m *NatsMessage) HasReply() bool {
	return m.Msg.Reply != ""
}
