// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package domain

import (
	"context"
)

// EmailService defines the interface for sending emails
type EmailService interface {
	SendRoomInvitation(ctx context.Context, invitation RoomInvitation) error
}

// RoomInvitation contains the data needed to invite someone to a room by email
type RoomInvitation struct {
	RecipientEmail string
	RoomName       string
	InviterName    string
	// InviteURL is the room's invite link. For rooms with an access code it
	// carries a token in place of the code.
	InviteURL string
	// Message is an optional note from the inviter.
	Message string
}
