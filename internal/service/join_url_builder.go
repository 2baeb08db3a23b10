// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"log/slog"

	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/logging"
)

// JoinURLBuilder returns the URL that takes a user into a room's meeting.
type JoinURLBuilder struct {
	Conferencing domain.ConferencingClient
}

// NewJoinURLBuilder creates a new JoinURLBuilder.
func NewJoinURLBuilder(conferencing domain.ConferencingClient) *JoinURLBuilder {
	return &JoinURLBuilder{Conferencing: conferencing}
}

// ServiceReady checks if the builder is ready for use.
func (b *JoinURLBuilder) ServiceReady() bool {
	return b.Conferencing != nil
}

// BuildJoinURL signs a join URL for displayName. Moderators get the moderator
// password, everyone else the attendee password. externalUserID may be empty.
func (b *JoinURLBuilder) BuildJoinURL(
	ctx context.Context,
	room *models.Room,
	displayName string,
	opts models.MeetingOptions,
	externalUserID string,
) (string, error) {
	if !b.ServiceReady() {
		slog.ErrorContext(ctx, "join url builder not initialized", logging.PriorityCritical())
		return "", domain.ErrServiceUnavailable
	}

	password := room.AttendeePW
	if opts.UserIsModerator {
		password = room.ModeratorPW
	}

	joinURL, err := b.Conferencing.JoinMeetingURL(ctx, domain.JoinRequest{
		MeetingID: room.BBBID,
		FullName:  displayName,
		Password:  password,
		UserID:    externalUserID,
	})
	if err != nil {
		slog.ErrorContext(ctx, "error building join url", "room_uid", room.UID, logging.ErrKey, err)
		if domain.GetErrorType(err) != domain.ErrorTypeExternalService {
			return "", domain.NewExternalServiceError("join", "", "", err)
		}
		return "", err
	}
	return joinURL, nil
}
