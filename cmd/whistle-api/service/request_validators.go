// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"strings"
	"unicode/utf8"

	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/domain"
)

const (
	maxRoomNameLength    = 256
	maxDisplayNameLength = 256
	maxRecordingName     = 256
	maxSharedUsers       = 100
	maxInvitationMessage = 2000
)

// ValidateCreateRoomPayload checks the fields the service does not.
func ValidateCreateRoomPayload(payload *CreateRoomPayload) error {
	if payload == nil {
		return domain.NewValidationError("payload is empty", domain.ErrValidationFailed)
	}
	return validateRoomName(payload.Name)
}

// ValidateUpdateRoomPayload rejects empty updates and oversized names.
func ValidateUpdateRoomPayload(payload *UpdateRoomPayload) error {
	if payload == nil {
		return domain.NewValidationError("payload is empty", domain.ErrValidationFailed)
	}
	if payload.Name == nil && payload.Settings == nil && payload.AccessCode == nil && !payload.GenerateAccessCode {
		return domain.NewValidationError("nothing to update", domain.ErrValidationFailed)
	}
	if payload.Name != nil {
		return validateRoomName(*payload.Name)
	}
	return nil
}

// ValidateSharedAccessPayload bounds the shared user list.
func ValidateSharedAccessPayload(payload *SharedAccessPayload) error {
	if payload == nil {
		return domain.NewValidationError("payload is empty", domain.ErrValidationFailed)
	}
	if len(payload.UserIDs) > maxSharedUsers {
		return domain.NewValidationError("too many shared users", domain.ErrValidationFailed)
	}
	for _, id := range payload.UserIDs {
		if strings.TrimSpace(id) == "" {
			return domain.NewValidationError("user ids must not be empty", domain.ErrValidationFailed)
		}
	}
	return nil
}

// ValidateJoinPayload checks the display name length.
func ValidateJoinPayload(payload *JoinPayload) error {
	if payload == nil {
		return domain.NewValidationError("payload is empty", domain.ErrValidationFailed)
	}
	if utf8.RuneCountInString(payload.DisplayName) > maxDisplayNameLength {
		return domain.NewValidationError("display name is too long", domain.ErrValidationFailed)
	}
	return nil
}

// ValidateInvitationsPayload bounds the note sent with invitations.
func ValidateInvitationsPayload(payload *InvitationsPayload) error {
	if payload == nil || len(payload.Emails) == 0 {
		return domain.NewValidationError("at least one email is required", domain.ErrValidationFailed)
	}
	if utf8.RuneCountInString(payload.Message) > maxInvitationMessage {
		return domain.NewValidationError("message is too long", domain.ErrValidationFailed)
	}
	return nil
}

// ValidateUpdateRecordingPayload requires at least one field.
func ValidateUpdateRecordingPayload(payload *UpdateRecordingPayload) error {
	if payload == nil || (payload.Listed == nil && payload.Name == nil && payload.Description == nil) {
		return domain.NewValidationError("nothing to update", domain.ErrValidationFailed)
	}
	if payload.Name != nil && utf8.RuneCountInString(*payload.Name) > maxRecordingName {
		return domain.NewValidationError("recording name is too long", domain.ErrValidationFailed)
	}
	return nil
}

func validateRoomName(name string) error {
	if strings.TrimSpace(name) == "" {
		return domain.NewValidationError("room name is required", domain.ErrValidationFailed)
	}
	if utf8.RuneCountInString(name) > maxRoomNameLength {
		return domain.NewValidationError("room name is too long", domain.ErrValidationFailed)
	}
	return nil
}
