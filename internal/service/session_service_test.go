// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/domain/mocks"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/infrastructure/bbb"
)

type sessionFixture struct {
	svc      *SessionService
	fake     *bbb.FakeClient
	rooms    *mocks.MockRoomRepository
	subs     *mocks.MockSubscriptionProvider
	monthly  *mocks.MockMonthlySessionRepository
	events   *mocks.MockRoomEventSender
	room     *models.Room
	fixedNow time.Time
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	f := &sessionFixture{
		fake:     bbb.NewFakeClient(""),
		rooms:    &mocks.MockRoomRepository{},
		subs:     &mocks.MockSubscriptionProvider{},
		monthly:  &mocks.MockMonthlySessionRepository{},
		events:   &mocks.MockRoomEventSender{},
		room:     testRoom(),
		fixedNow: time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC),
	}
	cfg := DefaultServiceConfig()
	cfg.InviteTokenCost = 4
	f.svc = NewSessionService(f.rooms, f.subs, f.monthly, f.fake, f.events, cfg)
	f.svc.now = func() time.Time { return f.fixedNow }

	f.rooms.On("GetRoom", mock.Anything, f.room.UID).Return(f.room, nil).Maybe()
	f.rooms.On("GetRoom", mock.Anything, mock.Anything).Return(nil, domain.NewNotFoundError("room", domain.ErrRoomNotFound)).Maybe()
	f.rooms.On("IncrementSessions", mock.Anything, f.room.UID, mock.Anything).Return(nil).Maybe()
	f.events.On("SendRoomSessionStarted", mock.Anything, mock.Anything).Return(nil).Maybe()
	return f
}

func TestSessionService_StartRoomCommunityOwner(t *testing.T) {
	f := newSessionFixture(t)
	f.subs.On("GetSubscriptionTier", mock.Anything, "owner-1").Return(models.TierCommunity, nil)
	f.monthly.On("ConsumeSession", mock.Anything, "owner-1", "2026-10", models.DefaultCommunityMonthlySessions).Return(9, nil).Once()

	redirect, err := f.svc.StartRoom(context.Background(), f.room.UID, Requester{UserID: "owner-1", Name: "Ada Lovelace"}, testRequest())
	require.NoError(t, err)

	u, err := url.Parse(redirect)
	require.NoError(t, err)
	assert.Equal(t, f.room.ModeratorPW, u.Query().Get("password"))
	assert.Equal(t, "Ada Lovelace", u.Query().Get("fullName"))
	assert.Equal(t, "owner-1", u.Query().Get("userID"))

	created, ok := f.fake.CreateParams(f.room.BBBID)
	require.True(t, ok)
	assert.Equal(t, "20", created.Params["maxParticipants"])
	assert.Equal(t, "false", created.Params["record"])
	assert.Equal(t, "true", created.Params["meta_owner"])

	f.monthly.AssertExpectations(t)
	f.rooms.AssertNumberOfCalls(t, "IncrementSessions", 1)
	f.events.AssertCalled(t, "SendRoomSessionStarted", mock.Anything, models.RoomSessionStartedMessage{
		RoomUID:    f.room.UID,
		MeetingID:  f.room.BBBID,
		StartedBy:  "owner-1",
		StartedAt:  f.fixedNow,
		NewSession: true,
	})
}

func TestSessionService_StartRoomRunningSkipsAllowance(t *testing.T) {
	f := newSessionFixture(t)
	f.subs.On("GetSubscriptionTier", mock.Anything, "owner-1").Return(models.TierCommunity, nil)
	f.monthly.On("ConsumeSession", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(9, nil).Once()

	ctx := context.Background()
	_, err := f.svc.StartRoom(ctx, f.room.UID, Requester{UserID: "owner-1"}, testRequest())
	require.NoError(t, err)
	f.fake.SetRunning(f.room.BBBID, true)

	_, err = f.svc.StartRoom(ctx, f.room.UID, Requester{UserID: "owner-1"}, testRequest())
	require.NoError(t, err)

	f.monthly.AssertNumberOfCalls(t, "ConsumeSession", 1)
	f.rooms.AssertNumberOfCalls(t, "IncrementSessions", 1)
}

func TestSessionService_StartRoomAllowanceExhausted(t *testing.T) {
	f := newSessionFixture(t)
	f.subs.On("GetSubscriptionTier", mock.Anything, "owner-1").Return(models.TierCommunity, nil)
	f.monthly.On("ConsumeSession", mock.Anything, "owner-1", "2026-10", mock.Anything).
		Return(0, domain.NewValidationError("community plan", domain.ErrSessionsExhausted))

	_, err := f.svc.StartRoom(context.Background(), f.room.UID, Requester{UserID: "owner-1"}, testRequest())

	assert.ErrorIs(t, err, domain.ErrSessionsExhausted)
	assert.Zero(t, f.fake.Calls("create"))
}

func TestSessionService_StartRoomProSharedUser(t *testing.T) {
	f := newSessionFixture(t)
	f.room.SharedWith = []string{"friend"}
	f.room.Settings.Recording = false
	f.subs.On("GetSubscriptionTier", mock.Anything, "friend").Return(models.TierPro, nil)

	redirect, err := f.svc.StartRoom(context.Background(), f.room.UID, Requester{UserID: "friend", Name: "Friend"}, testRequest())
	require.NoError(t, err)
	assert.Contains(t, redirect, "password="+f.room.ModeratorPW)

	created, _ := f.fake.CreateParams(f.room.BBBID)
	assert.Equal(t, "true", created.Params["record"])
	assert.Equal(t, "300", created.Params["maxParticipants"])
	assert.Equal(t, "false", created.Params["meta_owner"])
	f.monthly.AssertNotCalled(t, "ConsumeSession", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSessionService_StartRoomRefused(t *testing.T) {
	f := newSessionFixture(t)

	_, err := f.svc.StartRoom(context.Background(), f.room.UID, Requester{}, testRequest())
	assert.Equal(t, domain.ErrorTypeUnauthorized, domain.GetErrorType(err))

	_, err = f.svc.StartRoom(context.Background(), f.room.UID, Requester{UserID: "stranger"}, testRequest())
	assert.Equal(t, domain.ErrorTypeForbidden, domain.GetErrorType(err))

	_, err = f.svc.StartRoom(context.Background(), "nope", Requester{UserID: "owner-1"}, testRequest())
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
	assert.Zero(t, f.fake.Calls("create"))
}

func TestSessionService_JoinRoomWaitsUntilStarted(t *testing.T) {
	f := newSessionFixture(t)
	f.room.Settings.AuthMandatory = false

	res, err := f.svc.JoinRoom(context.Background(), f.room.UID, Requester{}, JoinInput{DisplayName: "Grace"}, testRequest())
	require.NoError(t, err)
	assert.True(t, res.Waiting)
	assert.Empty(t, res.RedirectURL)
	assert.Zero(t, f.fake.Calls("create"))
}

func TestSessionService_JoinRunningMeetingAsGuest(t *testing.T) {
	f := newSessionFixture(t)
	f.room.Settings.AuthMandatory = false
	f.subs.On("GetSubscriptionTier", mock.Anything, "owner-1").Return(models.TierPlus, nil)

	ctx := context.Background()
	_, err := f.svc.StartRoom(ctx, f.room.UID, Requester{UserID: "owner-1"}, testRequest())
	require.NoError(t, err)
	f.fake.SetRunning(f.room.BBBID, true)

	res, err := f.svc.JoinRoom(ctx, f.room.UID, Requester{}, JoinInput{DisplayName: "  Grace "}, testRequest())
	require.NoError(t, err)
	require.False(t, res.Waiting)

	u, err := url.Parse(res.RedirectURL)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, f.room.AttendeePW, q.Get("password"))
	assert.Equal(t, "Grace", q.Get("fullName"))
	assert.True(t, strings.HasPrefix(q.Get("userID"), GuestIDPrefix))

	// Joining a running meeting is not a new session.
	f.rooms.AssertNumberOfCalls(t, "IncrementSessions", 1)
	f.events.AssertNumberOfCalls(t, "SendRoomSessionStarted", 1)
}

func TestSessionService_JoinRoomModerators(t *testing.T) {
	f := newSessionFixture(t)
	f.room.SharedWith = []string{"friend"}
	f.subs.On("GetSubscriptionTier", mock.Anything, "owner-1").Return(models.TierPlus, nil)

	ctx := context.Background()
	res, err := f.svc.JoinRoom(ctx, f.room.UID, Requester{UserID: "owner-1", Name: "Ada"}, JoinInput{}, testRequest())
	require.NoError(t, err)
	assert.Contains(t, res.RedirectURL, "password="+f.room.ModeratorPW)
	assert.Contains(t, res.RedirectURL, "fullName=Ada")

	f.fake.SetRunning(f.room.BBBID, true)
	res, err = f.svc.JoinRoom(ctx, f.room.UID, Requester{UserID: "friend"}, JoinInput{}, testRequest())
	require.NoError(t, err)
	assert.Contains(t, res.RedirectURL, "password="+f.room.ModeratorPW)

	res, err = f.svc.JoinRoom(ctx, f.room.UID, Requester{UserID: "member"}, JoinInput{}, testRequest())
	require.NoError(t, err)
	assert.Contains(t, res.RedirectURL, "password="+f.room.AttendeePW)

	f.room.Settings.JoinModerator = true
	res, err = f.svc.JoinRoom(ctx, f.room.UID, Requester{UserID: "member"}, JoinInput{}, testRequest())
	require.NoError(t, err)
	assert.Contains(t, res.RedirectURL, "password="+f.room.ModeratorPW)
}

func TestSessionService_JoinRoomAccessChecks(t *testing.T) {
	f := newSessionFixture(t)
	f.room.AccessCode = "123456"
	f.subs.On("GetSubscriptionTier", mock.Anything, "owner-1").Return(models.TierPlus, nil)
	ctx := context.Background()

	// The owner never needs the code.
	res, err := f.svc.JoinRoom(ctx, f.room.UID, Requester{UserID: "owner-1"}, JoinInput{}, testRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, res.RedirectURL)
	f.fake.SetRunning(f.room.BBBID, true)

	_, err = f.svc.JoinRoom(ctx, f.room.UID, Requester{}, JoinInput{AccessCode: "123456"}, testRequest())
	assert.Equal(t, domain.ErrorTypeUnauthorized, domain.GetErrorType(err), "sign-in is mandatory by default")

	_, err = f.svc.JoinRoom(ctx, f.room.UID, Requester{UserID: "member"}, JoinInput{AccessCode: "000000"}, testRequest())
	assert.ErrorIs(t, err, domain.ErrInvalidAccessCode)

	res, err = f.svc.JoinRoom(ctx, f.room.UID, Requester{UserID: "member"}, JoinInput{AccessCode: "123456"}, testRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, res.RedirectURL)

	token, err := f.svc.Tokens.Issue("123456")
	require.NoError(t, err)
	res, err = f.svc.JoinRoom(ctx, f.room.UID, Requester{UserID: "member"}, JoinInput{InviteToken: token}, testRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, res.RedirectURL)
}

func TestSessionService_AnyoneCanStart(t *testing.T) {
	f := newSessionFixture(t)
	f.room.Settings.AnyoneCanStart = true
	f.subs.On("GetSubscriptionTier", mock.Anything, "owner-1").Return(models.TierPro, nil)

	res, err := f.svc.JoinRoom(context.Background(), f.room.UID, Requester{UserID: "member"}, JoinInput{}, testRequest())
	require.NoError(t, err)
	assert.False(t, res.Waiting)

	created, ok := f.fake.CreateParams(f.room.BBBID)
	require.True(t, ok)
	assert.Equal(t, "300", created.Params["maxParticipants"], "meeting created under the owner's plan")
	f.events.AssertNumberOfCalls(t, "SendRoomSessionStarted", 1)
}

func TestSessionService_StatusAndMeetings(t *testing.T) {
	f := newSessionFixture(t)
	f.subs.On("GetSubscriptionTier", mock.Anything, "owner-1").Return(models.TierPlus, nil)
	ctx := context.Background()

	running, err := f.svc.RoomStatus(ctx, f.room.UID)
	require.NoError(t, err)
	assert.False(t, running)

	_, err = f.svc.StartRoom(ctx, f.room.UID, Requester{UserID: "owner-1"}, testRequest())
	require.NoError(t, err)
	f.fake.SetRunning(f.room.BBBID, true)

	running, err = f.svc.RoomStatus(ctx, f.room.UID)
	require.NoError(t, err)
	assert.True(t, running)

	meetings, err := f.svc.RunningMeetings(ctx)
	require.NoError(t, err)
	require.Len(t, meetings, 1)
	assert.Equal(t, f.room.BBBID, meetings[0].MeetingID)
	assert.True(t, meetings[0].Running)
}

func TestSessionService_MonthlySessions(t *testing.T) {
	f := newSessionFixture(t)
	f.subs.On("GetSubscriptionTier", mock.Anything, "owner-1").Return(models.TierCommunity, nil)
	f.subs.On("GetSubscriptionTier", mock.Anything, "paid").Return(models.TierPlus, nil)
	f.monthly.On("GetMonthlySessions", mock.Anything, mock.Anything, "2026-10").
		Return(&models.MonthlySessions{Month: "2026-10", Used: 4}, nil)

	_, remaining, err := f.svc.MonthlySessions(context.Background(), "owner-1")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultCommunityMonthlySessions-4, remaining)

	_, remaining, err = f.svc.MonthlySessions(context.Background(), "paid")
	require.NoError(t, err)
	assert.Equal(t, -1, remaining)
}

func TestSessionService_ServiceReady(t *testing.T) {
	f := newSessionFixture(t)
	assert.True(t, f.svc.ServiceReady())

	f.svc.EventSender = nil
	assert.False(t, f.svc.ServiceReady())

	_, err := f.svc.StartRoom(context.Background(), f.room.UID, Requester{UserID: "owner-1"}, testRequest())
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
}

func TestSessionService_TierLookupFailureUsesCommunityRules(t *testing.T) {
	f := newSessionFixture(t)
	f.room.Settings.Recording = true
	f.subs.On("GetSubscriptionTier", mock.Anything, "owner-1").Return(models.TierUnknown, errors.New("billing unreachable"))
	f.monthly.On("ConsumeSession", mock.Anything, "owner-1", "2026-10", models.DefaultCommunityMonthlySessions).Return(9, nil).Once()

	_, err := f.svc.StartRoom(context.Background(), f.room.UID, Requester{UserID: "owner-1"}, testRequest())
	require.NoError(t, err)

	created, ok := f.fake.CreateParams(f.room.BBBID)
	require.True(t, ok)
	assert.Equal(t, "20", created.Params["maxParticipants"])
	assert.Equal(t, "false", created.Params["record"])
	f.monthly.AssertExpectations(t)
}

func TestSessionService_UnrecognizedTierUsesCommunityRules(t *testing.T) {
	f := newSessionFixture(t)
	f.subs.On("GetSubscriptionTier", mock.Anything, "owner-1").Return(models.TierUnknown, nil)
	f.monthly.On("ConsumeSession", mock.Anything, "owner-1", "2026-10", mock.Anything).Return(9, nil).Once()

	_, err := f.svc.StartRoom(context.Background(), f.room.UID, Requester{UserID: "owner-1"}, testRequest())
	require.NoError(t, err)

	created, _ := f.fake.CreateParams(f.room.BBBID)
	assert.Equal(t, "20", created.Params["maxParticipants"])
	f.monthly.AssertExpectations(t)
}

func TestSessionService_StartRoomCreateFailureReleasesSession(t *testing.T) {
	f := newSessionFixture(t)
	f.subs.On("GetSubscriptionTier", mock.Anything, "owner-1").Return(models.TierCommunity, nil)
	f.monthly.On("ConsumeSession", mock.Anything, "owner-1", "2026-10", mock.Anything).Return(9, nil).Once()
	f.monthly.On("ReleaseSession", mock.Anything, "owner-1", "2026-10").Return(nil).Once()
	f.fake.FailNext("create", errors.New("connection refused"))

	_, err := f.svc.StartRoom(context.Background(), f.room.UID, Requester{UserID: "owner-1"}, testRequest())

	assert.Equal(t, domain.ErrorTypeExternalService, domain.GetErrorType(err))
	f.monthly.AssertExpectations(t)
	f.rooms.AssertNotCalled(t, "IncrementSessions", mock.Anything, mock.Anything, mock.Anything)
	f.events.AssertNotCalled(t, "SendRoomSessionStarted", mock.Anything, mock.Anything)
}

func TestSessionService_ExistingMeetingReleasesSession(t *testing.T) {
	f := newSessionFixture(t)
	f.subs.On("GetSubscriptionTier", mock.Anything, "owner-1").Return(models.TierCommunity, nil)
	f.monthly.On("ConsumeSession", mock.Anything, "owner-1", "2026-10", mock.Anything).Return(9, nil).Twice()
	f.monthly.On("ReleaseSession", mock.Anything, "owner-1", "2026-10").Return(nil).Once()
	ctx := context.Background()

	// The meeting exists but nobody has joined yet, so it is not running;
	// the second start reuses it and gives the session back.
	_, err := f.svc.StartRoom(ctx, f.room.UID, Requester{UserID: "owner-1"}, testRequest())
	require.NoError(t, err)
	_, err = f.svc.StartRoom(ctx, f.room.UID, Requester{UserID: "owner-1"}, testRequest())
	require.NoError(t, err)

	f.monthly.AssertExpectations(t)
	f.rooms.AssertNumberOfCalls(t, "IncrementSessions", 1)
}

func TestSessionService_OwnerJoinUsesAllowance(t *testing.T) {
	f := newSessionFixture(t)
	f.subs.On("GetSubscriptionTier", mock.Anything, "owner-1").Return(models.TierCommunity, nil)
	f.monthly.On("ConsumeSession", mock.Anything, "owner-1", "2026-10", mock.Anything).
		Return(0, domain.NewValidationError("community plan", domain.ErrSessionsExhausted)).Once()

	_, err := f.svc.JoinRoom(context.Background(), f.room.UID, Requester{UserID: "owner-1"}, JoinInput{}, testRequest())

	assert.ErrorIs(t, err, domain.ErrSessionsExhausted)
	assert.Zero(t, f.fake.Calls("create"))
	f.monthly.AssertExpectations(t)
}
