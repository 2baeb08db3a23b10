// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/logging"
)

// SessionGateway makes sure a room's meeting exists on the conferencing
// server and keeps the room's session statistics.
type SessionGateway struct {
	Conferencing   domain.ConferencingClient
	RoomRepository domain.RoomRepository
	now            func() time.Time
}

// NewSessionGateway creates a new SessionGateway.
func NewSessionGateway(conferencing domain.ConferencingClient, roomRepository domain.RoomRepository) *SessionGateway {
	return &SessionGateway{
		Conferencing:   conferencing,
		RoomRepository: roomRepository,
		now:            time.Now,
	}
}

// ServiceReady checks if the gateway is ready for use.
func (g *SessionGateway) ServiceReady() bool {
	return g.Conferencing != nil && g.RoomRepository != nil
}

// EnsureMeeting creates the room's meeting, or reuses it when it is already
// running. Only a newly created meeting counts as a session.
func (g *SessionGateway) EnsureMeeting(ctx context.Context, room *models.Room, opts models.MeetingOptions) (*domain.MeetingInfo, error) {
	if !g.ServiceReady() {
		slog.ErrorContext(ctx, "session gateway not initialized", logging.PriorityCritical())
		return nil, domain.ErrServiceUnavailable
	}

	if err := opts.Validate(); err != nil {
		slog.WarnContext(ctx, "invalid meeting options", "room_uid", room.UID, logging.ErrKey, err)
		return nil, domain.NewValidationError("invalid meeting options", domain.ErrValidationFailed, err)
	}

	info, err := g.Conferencing.CreateMeeting(ctx, domain.CreateMeetingRequest{
		MeetingID:       room.BBBID,
		Name:            room.Name,
		ModeratorPW:     room.ModeratorPW,
		AttendeePW:      room.AttendeePW,
		Params:          opts.CreateParams(room),
		PresentationURL: room.PresentationURL,
	})
	if err != nil {
		slog.ErrorContext(ctx, "error creating meeting", "room_uid", room.UID, "meeting_id", room.BBBID, logging.ErrKey, err)
		if domain.GetErrorType(err) != domain.ErrorTypeExternalService {
			return nil, domain.NewExternalServiceError("create", "", "", err)
		}
		return nil, err
	}

	if info.Duplicate() {
		slog.DebugContext(ctx, "meeting already running", "room_uid", room.UID, "meeting_id", room.BBBID)
		return info, nil
	}

	// The meeting exists at this point; a failed counter update must not
	// keep the user out of it.
	if err := g.RoomRepository.IncrementSessions(ctx, room.UID, g.now()); err != nil {
		slog.ErrorContext(ctx, "error updating room session statistics", "room_uid", room.UID, logging.ErrKey, err)
	}

	slog.InfoContext(ctx, "meeting created", "room_uid", room.UID, "meeting_id", room.BBBID)
	return info, nil
}
