// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/service"
)

// RoomHandler handles room-related messages and events.
type RoomHandler struct {
	sessionService   *service.SessionService
	recordingService *service.RecordingService
	waiting          domain.WaitingNotifier
}

// Ensure that RoomHandler implements domain.MessageHandler
var _ domain.MessageHandler = (*RoomHandler)(nil)

func NewRoomHandler(
	sessionService *service.SessionService,
	recordingService *service.RecordingService,
	waiting domain.WaitingNotifier,
) *RoomHandler {
	return &RoomHandler{
		sessionService:   sessionService,
		recordingService: recordingService,
		waiting:          waiting,
	}
}

func (s *RoomHandler) HandlerReady() bool {
	return s.sessionService.ServiceReady() &&
		s.recordingService.ServiceReady() &&
		s.waiting != nil
}

// HandleMessage implements domain.MessageHandler interface
func (s *RoomHandler) HandleMessage(ctx context.Context, msg domain.Message) {
	subject := msg.Subject()
	ctx = logging.AppendCtx(ctx, slog.String("subject", subject))
	slog.DebugContext(ctx, "handling NATS message")

	handlers := map[string]func(ctx context.Context, msg domain.Message) ([]byte, error){
		models.RoomRunningSubject:        s.HandleRoomRunning,
		models.RoomSessionStartedSubject: s.HandleRoomSessionStarted,
		models.RoomDeletedSubject:        s.HandleRoomDeleted,
	}

	handler, ok := handlers[subject]
	if !ok {
		slog.WarnContext(ctx, "unknown subject")
		s.respond(ctx, msg, nil)
		return
	}

	response, err := handler(ctx, msg)
	if err != nil {
		slog.ErrorContext(ctx, "error handling message", logging.ErrKey, err)
		s.respond(ctx, msg, nil)
		return
	}

	if msg.HasReply() {
		s.respond(ctx, msg, response)
		slog.DebugContext(ctx, "responded to NATS message", "response", string(response))
	} else {
		slog.DebugContext(ctx, "handled NATS message (no reply expected)")
	}
}

func (s *RoomHandler) respond(ctx context.Context, msg domain.Message, data []byte) {
	if !msg.HasReply() {
		return
	}
	if err := msg.Respond(data); err != nil {
		slog.ErrorContext(ctx, "error responding to NATS message", logging.ErrKey, err)
	}
}

// HandleRoomRunning answers whether the meeting of the room whose uid is the
// message data is running.
func (s *RoomHandler) HandleRoomRunning(ctx context.Context, msg domain.Message) ([]byte, error) {
	uid := strings.TrimSpace(string(msg.Data()))
	if uid == "" {
		return nil, fmt.Errorf("room uid is required")
	}
	ctx = logging.AppendCtx(ctx, slog.String("room_uid", uid))

	running, err := s.sessionService.RoomStatus(ctx, uid)
	if err != nil {
		return nil, err
	}
	return []byte(strconv.FormatBool(running)), nil
}

// HandleRoomSessionStarted releases the guests waiting on this replica for
// the room that was just started.
func (s *RoomHandler) HandleRoomSessionStarted(ctx context.Context, msg domain.Message) ([]byte, error) {
	var started models.RoomSessionStartedMessage
	if err := json.Unmarshal(msg.Data(), &started); err != nil {
		return nil, fmt.Errorf("error unmarshaling session started message: %w", err)
	}
	if started.RoomUID == "" {
		return nil, fmt.Errorf("room uid is required")
	}
	ctx = logging.AppendCtx(ctx, slog.String("room_uid", started.RoomUID))

	notified := s.waiting.NotifyStarted(ctx, started.RoomUID)
	slog.DebugContext(ctx, "processed session started", "notified", notified)
	return []byte(strconv.Itoa(notified)), nil
}

// HandleRoomDeleted removes the recordings of a deleted room.
func (s *RoomHandler) HandleRoomDeleted(ctx context.Context, msg domain.Message) ([]byte, error) {
	var deleted models.RoomDeletedMessage
	if err := json.Unmarshal(msg.Data(), &deleted); err != nil {
		return nil, fmt.Errorf("error unmarshaling room deleted message: %w", err)
	}
	if deleted.MeetingID == "" {
		slog.WarnContext(ctx, "meeting id is empty in deletion message")
		return nil, fmt.Errorf("meeting id is required")
	}
	ctx = logging.AppendCtx(ctx, slog.String("room_uid", deleted.RoomUID))

	count, err := s.recordingService.DeleteAllRecordings(ctx, deleted.MeetingID)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "cleaned up recordings of deleted room", "recording_count", count)
	return []byte("success"), nil
}
