// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package email

import (
	"context"
	"log/slog"

	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/logging"
)

// NoOpService is a no-operation email service that logs but doesn't send emails
type NoOpService struct{}

// Ensure that NoOpService implements domain.EmailService
var _ domain.EmailService = (*NoOpService)(nil)

// NewNoOpService creates a new no-op email service
func NewNoOpService() *NoOpService {
	return &NoOpService{}
}

// SendRoomInvitation logs the invitation but doesn't send an email
func (s *NoOpService) SendRoomInvitation(ctx context.Context, invitation domain.RoomInvitation) error {
	ctx = logging.AppendCtx(ctx, slog.String("recipient_email", invitation.RecipientEmail))
	ctx = logging.AppendCtx(ctx, slog.String("room_name", invitation.RoomName))

	slog.DebugContext(ctx, "email service disabled, skipping invitation email")
	return nil
}
