// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-whistle-service/pkg/concurrent"
)

const (
	maxInvitationRecipients = 50
	invitationWorkers       = 4
)

// InvitationService emails a room's invite link to participants.
type InvitationService struct {
	Rooms        *RoomService
	EmailService domain.EmailService
}

// NewInvitationService creates a new InvitationService.
func NewInvitationService(rooms *RoomService, emailService domain.EmailService) *InvitationService {
	return &InvitationService{
		Rooms:        rooms,
		EmailService: emailService,
	}
}

// ServiceReady checks if the service is ready for use.
func (s *InvitationService) ServiceReady() bool {
	return s.Rooms != nil && s.Rooms.ServiceReady() && s.EmailService != nil
}

// SendInvitations emails the room's invite link to every recipient and
// returns the addresses it was sent to. Delivery failures are logged; only
// when no email could be sent is an error returned.
func (s *InvitationService) SendInvitations(ctx context.Context, uid string, requester Requester, baseURL string, recipients []string, message string) ([]string, error) {
	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "service not initialized", logging.PriorityCritical())
		return nil, domain.ErrServiceUnavailable
	}

	addresses, err := parseRecipients(recipients)
	if err != nil {
		return nil, err
	}

	room, err := s.Rooms.GetRoomForMember(ctx, uid, requester)
	if err != nil {
		return nil, err
	}
	link, err := s.Rooms.InviteLink(ctx, uid, requester, baseURL)
	if err != nil {
		return nil, err
	}

	invitation := domain.RoomInvitation{
		RoomName:    room.Name,
		InviterName: inviterName(requester),
		InviteURL:   link,
		Message:     strings.TrimSpace(message),
	}
	pool := concurrent.NewWorkerPool(invitationWorkers)
	results := concurrent.Map(ctx, pool, addresses, func(ctx context.Context, address string) (string, error) {
		inv := invitation
		inv.RecipientEmail = address
		return address, s.EmailService.SendRoomInvitation(ctx, inv)
	})

	delivered := make([]string, 0, len(addresses))
	var errs []error
	for _, result := range results {
		if result.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", result.Value, result.Err))
			continue
		}
		delivered = append(delivered, result.Value)
	}
	if len(errs) > 0 {
		slog.WarnContext(ctx, "failed to send some room invitations", "room_uid", uid, logging.ErrKey, errors.Join(errs...))
	}
	if len(delivered) == 0 {
		return nil, domain.NewInternalError("failed to send room invitations", errors.Join(errs...))
	}
	slog.InfoContext(ctx, "room invitations sent", "room_uid", uid, "count", len(delivered))
	return delivered, nil
}

// parseRecipients validates and deduplicates the recipient addresses.
func parseRecipients(recipients []string) ([]string, error) {
	if len(recipients) == 0 {
		return nil, domain.NewValidationError("at least one recipient is required", domain.ErrValidationFailed)
	}
	if len(recipients) > maxInvitationRecipients {
		return nil, domain.NewValidationError(
			fmt.Sprintf("at most %d recipients are allowed", maxInvitationRecipients), domain.ErrValidationFailed)
	}

	seen := make(map[string]struct{}, len(recipients))
	addresses := make([]string, 0, len(recipients))
	for _, r := range recipients {
		addr, err := mail.ParseAddress(strings.TrimSpace(r))
		if err != nil {
			return nil, domain.NewValidationError(fmt.Sprintf("invalid email address %q", r), domain.ErrValidationFailed)
		}
		key := strings.ToLower(addr.Address)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		addresses = append(addresses, addr.Address)
	}
	return addresses, nil
}

// inviterName is the name shown as the inviter.
func inviterName(requester Requester) string {
	if requester.Name != "" {
		return requester.Name
	}
	return requester.Email
}
