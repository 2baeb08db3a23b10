// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package email

import (
	"context"
	"log/slog"

	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/logging"
)

// SMTPService implements the EmailService interface using SMTP
type SMTPService struct {
	config    SMTPConfig
	templates *Templates
}

// Ensure that SMTPService implements domain.EmailService
var _ domain.EmailService = (*SMTPService)(nil)

// SMTPConfig holds the SMTP server configuration
type SMTPConfig struct {
	Host     string
	Port     int
	From     string
	FromName string
	Username string // Optional for authenticated SMTP
	Password string // Optional for authenticated SMTP
}

// NewSMTPService creates a new SMTP email service
func NewSMTPService(config SMTPConfig) (*SMTPService, error) {
	templates, err := NewTemplates()
	if err != nil {
		return nil, err
	}
	if config.FromName == "" {
		config.FromName = "Whistle"
	}
	return &SMTPService{
		config:    config,
		templates: templates,
	}, nil
}

// SendRoomInvitation sends a room invitation email
func (s *SMTPService) SendRoomInvitation(ctx context.Context, invitation domain.RoomInvitation) error {
	ctx = logging.AppendCtx(ctx, slog.String("recipient_email", invitation.RecipientEmail))
	ctx = logging.AppendCtx(ctx, slog.String("room_name", invitation.RoomName))

	rendered, err := s.templates.RenderInvitation(invitation)
	if err != nil {
		slog.ErrorContext(ctx, "failed to render invitation", logging.ErrKey, err)
		return err
	}

	message := buildEmailMessage(invitation.RecipientEmail, rendered, s.config)
	if err := sendEmailMessage(invitation.RecipientEmail, message, s.config); err != nil {
		slog.ErrorContext(ctx, "failed to send invitation email", logging.ErrKey, err)
		return err
	}

	slog.InfoContext(ctx, "invitation email sent successfully")
	return nil
}
