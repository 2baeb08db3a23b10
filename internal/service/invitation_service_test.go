// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/domain/mocks"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/domain/models"
)

func newInvitationFixture(room *models.Room) (*InvitationService, *mocks.MockEmailService) {
	rooms, repo, _, _ := newRoomFixture()
	repo.On("GetRoom", mock.Anything, room.UID).Return(room, nil)
	repo.On("GetRoom", mock.Anything, mock.Anything).Return(nil, domain.NewNotFoundError("room", domain.ErrRoomNotFound))
	mailer := &mocks.MockEmailService{}
	return NewInvitationService(rooms, mailer), mailer
}

func TestInvitationService_SendInvitations(t *testing.T) {
	ctx := context.Background()
	owner := Requester{UserID: "owner-1", Name: "Ada Lovelace"}
	room := &models.Room{UID: "adalovelace", Name: "Engine", OwnerID: "owner-1"}

	t.Run("sent", func(t *testing.T) {
		s, mailer := newInvitationFixture(room)
		mailer.On("SendRoomInvitation", mock.Anything, mock.MatchedBy(func(inv domain.RoomInvitation) bool {
			return inv.RoomName == "Engine" &&
				inv.InviterName == "Ada Lovelace" &&
				inv.InviteURL == "https://whistle.example.org/adalovelace" &&
				inv.Message == "see you"
		})).Return(nil)

		sent, err := s.SendInvitations(ctx, "adalovelace", owner, "https://whistle.example.org",
			[]string{"grace@example.org", "Grace <GRACE@example.org>", " alan@example.org "}, " see you ")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"grace@example.org", "alan@example.org"}, sent)
		mailer.AssertNumberOfCalls(t, "SendRoomInvitation", 2)
	})

	t.Run("partial failure", func(t *testing.T) {
		s, mailer := newInvitationFixture(room)
		mailer.On("SendRoomInvitation", mock.Anything, mock.MatchedBy(func(inv domain.RoomInvitation) bool {
			return inv.RecipientEmail == "bad@example.org"
		})).Return(errors.New("mailbox unavailable"))
		mailer.On("SendRoomInvitation", mock.Anything, mock.Anything).Return(nil)

		sent, err := s.SendInvitations(ctx, "adalovelace", owner, "https://whistle.example.org",
			[]string{"bad@example.org", "grace@example.org"}, "")
		require.NoError(t, err)
		assert.Equal(t, []string{"grace@example.org"}, sent)
	})

	t.Run("all failed", func(t *testing.T) {
		s, mailer := newInvitationFixture(room)
		mailer.On("SendRoomInvitation", mock.Anything, mock.Anything).Return(errors.New("smtp down"))

		_, err := s.SendInvitations(ctx, "adalovelace", owner, "https://whistle.example.org", []string{"grace@example.org"}, "")
		assert.Equal(t, domain.ErrorTypeInternal, domain.GetErrorType(err))
	})

	t.Run("invalid address", func(t *testing.T) {
		s, mailer := newInvitationFixture(room)
		_, err := s.SendInvitations(ctx, "adalovelace", owner, "https://whistle.example.org", []string{"not an address"}, "")
		assert.Equal(t, domain.ErrorTypeValidation, domain.GetErrorType(err))
		mailer.AssertNotCalled(t, "SendRoomInvitation", mock.Anything, mock.Anything)
	})

	t.Run("no recipients", func(t *testing.T) {
		s, _ := newInvitationFixture(room)
		_, err := s.SendInvitations(ctx, "adalovelace", owner, "https://whistle.example.org", nil, "")
		assert.Equal(t, domain.ErrorTypeValidation, domain.GetErrorType(err))
	})

	t.Run("not a member", func(t *testing.T) {
		s, mailer := newInvitationFixture(room)
		_, err := s.SendInvitations(ctx, "adalovelace", Requester{UserID: "someone"}, "https://whistle.example.org",
			[]string{"grace@example.org"}, "")
		assert.Equal(t, domain.ErrorTypeForbidden, domain.GetErrorType(err))
		mailer.AssertNotCalled(t, "SendRoomInvitation", mock.Anything, mock.Anything)
	})

	t.Run("not ready", func(t *testing.T) {
		s := NewInvitationService(nil, nil)
		_, err := s.SendInvitations(ctx, "adalovelace", owner, "", []string{"grace@example.org"}, "")
		assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
	})
}
