// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/logging"
)

const guestDisplayName = "Guest"

// JoinInput is what a participant submits to join a room.
type JoinInput struct {
	DisplayName string
	AccessCode  string
	// InviteToken comes from the pwd parameter of an invite link.
	InviteToken string
}

// JoinResult is the outcome of a join attempt: either a URL to redirect to,
// or Waiting when the meeting has not been started yet.
type JoinResult struct {
	RedirectURL string `json:"redirect_url,omitempty"`
	Waiting     bool   `json:"-"`
}

// SessionService starts and joins room meetings.
type SessionService struct {
	RoomRepository           domain.RoomRepository
	SubscriptionProvider     domain.SubscriptionProvider
	MonthlySessionRepository domain.MonthlySessionRepository
	Conferencing             domain.ConferencingClient
	EventSender              domain.RoomEventSender
	Options                  *OptionsBuilder
	Gateway                  *SessionGateway
	JoinURLs                 *JoinURLBuilder
	Tokens                   *InviteTokens
	Config                   ServiceConfig
	now                      func() time.Time
}

// NewSessionService creates a new SessionService and the builders it drives.
func NewSessionService(
	roomRepository domain.RoomRepository,
	subscriptionProvider domain.SubscriptionProvider,
	monthlySessionRepository domain.MonthlySessionRepository,
	conferencing domain.ConferencingClient,
	eventSender domain.RoomEventSender,
	config ServiceConfig,
) *SessionService {
	tokens := NewInviteTokens(config.InviteTokenCost)
	return &SessionService{
		RoomRepository:           roomRepository,
		SubscriptionProvider:     subscriptionProvider,
		MonthlySessionRepository: monthlySessionRepository,
		Conferencing:             conferencing,
		EventSender:              eventSender,
		Options:                  NewOptionsBuilder(config, tokens),
		Gateway:                  NewSessionGateway(conferencing, roomRepository),
		JoinURLs:                 NewJoinURLBuilder(conferencing),
		Tokens:                   tokens,
		Config:                   config,
		now:                      time.Now,
	}
}

// ServiceReady checks if the service is ready for use.
func (s *SessionService) ServiceReady() bool {
	return s.RoomRepository != nil &&
		s.SubscriptionProvider != nil &&
		s.MonthlySessionRepository != nil &&
		s.Conferencing != nil &&
		s.EventSender != nil &&
		s.Options != nil &&
		s.Gateway != nil && s.Gateway.ServiceReady() &&
		s.JoinURLs != nil && s.JoinURLs.ServiceReady()
}

// StartRoom starts the room's meeting as moderator and returns the URL to
// redirect the requester to. Only the owner and users the room is shared with
// may start it.
func (s *SessionService) StartRoom(ctx context.Context, uid string, requester Requester, req models.RequestContext) (string, error) {
	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "service not initialized", logging.PriorityCritical())
		return "", domain.ErrServiceUnavailable
	}
	if !requester.Authenticated() {
		return "", domain.NewUnauthorizedError("sign in to start a room", domain.ErrUnauthorized)
	}

	room, err := s.RoomRepository.GetRoom(ctx, uid)
	if err != nil {
		return "", err
	}
	owner := room.OwnedBy(requester.UserID)
	if !owner && !room.SharedWithUser(requester.UserID) {
		slog.WarnContext(ctx, "start refused", "room_uid", uid, "user_id", requester.UserID)
		return "", domain.NewForbiddenError("only the owner can start this room", domain.ErrForbidden)
	}

	tier := s.tier(ctx, requester.UserID)
	charge := false
	if tier == models.TierCommunity && owner {
		running, err := s.Conferencing.IsMeetingRunning(ctx, room.BBBID)
		if err != nil {
			slog.ErrorContext(ctx, "error checking meeting status", "room_uid", uid, logging.ErrKey, err)
			return "", err
		}
		charge = !running
	}

	req.RequesterID = requester.UserID
	opts := s.Options.Build(ctx, room, tier, room.Settings, req)
	opts.UserIsModerator = true

	info, err := s.ensureMeeting(ctx, room, opts, charge)
	if err != nil {
		return "", err
	}

	joinURL, err := s.JoinURLs.BuildJoinURL(ctx, room, displayName(requester.Name, requester.UserID), opts, requester.UserID)
	if err != nil {
		return "", err
	}

	s.publishStarted(ctx, room, requester.UserID, info)
	slog.InfoContext(ctx, "room started", "room_uid", uid, "user_id", requester.UserID, "tier", string(tier))
	return joinURL, nil
}

// JoinRoom lets a participant into the room's meeting when it is running, or
// when the requester may start it. Everyone else is told to wait.
func (s *SessionService) JoinRoom(ctx context.Context, uid string, requester Requester, input JoinInput, req models.RequestContext) (*JoinResult, error) {
	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "service not initialized", logging.PriorityCritical())
		return nil, domain.ErrServiceUnavailable
	}

	room, err := s.RoomRepository.GetRoom(ctx, uid)
	if err != nil {
		return nil, err
	}

	owner := room.OwnedBy(requester.UserID)
	shared := room.SharedWithUser(requester.UserID)
	if room.Settings.AuthMandatory && !requester.Authenticated() {
		return nil, domain.NewUnauthorizedError("this room requires signing in", domain.ErrUnauthorized)
	}
	if room.HasAccessCode() && !owner && !shared && !s.accessGranted(room, input) {
		slog.WarnContext(ctx, "invalid access code", "room_uid", uid)
		return nil, domain.NewForbiddenError("invalid access code", domain.ErrInvalidAccessCode)
	}

	running, err := s.Conferencing.IsMeetingRunning(ctx, room.BBBID)
	if err != nil {
		slog.ErrorContext(ctx, "error checking meeting status", "room_uid", uid, logging.ErrKey, err)
		return nil, err
	}
	canStart := owner || s.Config.RoomConfig.SettingWithConfig(room.Settings, models.SettingAnyoneCanStart)
	if !running && !canStart {
		slog.DebugContext(ctx, "meeting not running, requester waits", "room_uid", uid)
		return &JoinResult{Waiting: true}, nil
	}

	// A meeting created through a join belongs to the owner's plan.
	tier := s.tier(ctx, room.OwnerID)
	req.RequesterID = requester.UserID
	opts := s.Options.Build(ctx, room, tier, room.Settings, req)
	opts.UserIsModerator = owner || shared ||
		s.Config.RoomConfig.SettingWithConfig(room.Settings, models.SettingJoinModerator)

	// A join that creates the meeting costs the owner a session like a start.
	info, err := s.ensureMeeting(ctx, room, opts, !running && tier == models.TierCommunity)
	if err != nil {
		return nil, err
	}

	userID := requester.UserID
	name := strings.TrimSpace(input.DisplayName)
	if !requester.Authenticated() {
		userID = NewGuestID()
	} else if name == "" {
		name = requester.Name
	}

	joinURL, err := s.JoinURLs.BuildJoinURL(ctx, room, displayName(name, ""), opts, userID)
	if err != nil {
		return nil, err
	}

	if !info.Duplicate() {
		s.publishStarted(ctx, room, requester.UserID, info)
	}
	return &JoinResult{RedirectURL: joinURL}, nil
}

// RoomStatus reports whether the room's meeting is running.
func (s *SessionService) RoomStatus(ctx context.Context, uid string) (bool, error) {
	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "service not initialized", logging.PriorityCritical())
		return false, domain.ErrServiceUnavailable
	}
	room, err := s.RoomRepository.GetRoom(ctx, uid)
	if err != nil {
		return false, err
	}
	return s.Conferencing.IsMeetingRunning(ctx, room.BBBID)
}

// RunningMeetings lists the meetings currently on the conferencing server.
func (s *SessionService) RunningMeetings(ctx context.Context) ([]domain.RunningMeeting, error) {
	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "service not initialized", logging.PriorityCritical())
		return nil, domain.ErrServiceUnavailable
	}
	meetings, err := s.Conferencing.GetMeetings(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "error listing meetings", logging.ErrKey, err)
		return nil, err
	}
	return meetings, nil
}

// MonthlySessions returns the owner's allowance usage for the current month
// and how many sessions remain. Paid owners report -1 remaining.
func (s *SessionService) MonthlySessions(ctx context.Context, userID string) (*models.MonthlySessions, int, error) {
	month := s.now().UTC().Format("2006-01")
	usage, err := s.MonthlySessionRepository.GetMonthlySessions(ctx, userID, month)
	if err != nil {
		return nil, 0, err
	}
	if s.tier(ctx, userID) != models.TierCommunity || s.Config.CommunityMonthlySessions <= 0 {
		return usage, -1, nil
	}
	return usage, max(s.Config.CommunityMonthlySessions-usage.Used, 0), nil
}

// tier resolves a user's plan. Lookup failures and unrecognized plans are
// logged and treated as community, so billing outages neither block meetings
// nor lift the community limits.
func (s *SessionService) tier(ctx context.Context, userID string) models.SubscriptionTier {
	if userID == "" {
		return models.TierCommunity
	}
	tier, err := s.SubscriptionProvider.GetSubscriptionTier(ctx, userID)
	if err != nil {
		slog.WarnContext(ctx, "failed to resolve subscription tier", "user_id", userID, logging.ErrKey, err)
		return models.TierCommunity
	}
	if tier == models.TierUnknown {
		slog.WarnContext(ctx, "unrecognized subscription tier", "user_id", userID)
		return models.TierCommunity
	}
	return tier
}

// ensureMeeting creates or reuses the room's meeting. With charge set, one
// session of the owner's monthly allowance is reserved before the create
// call and given back when the call fails or the meeting already existed.
func (s *SessionService) ensureMeeting(ctx context.Context, room *models.Room, opts models.MeetingOptions, charge bool) (*domain.MeetingInfo, error) {
	month := s.now().UTC().Format("2006-01")
	reserved := charge && s.Config.CommunityMonthlySessions > 0
	if reserved {
		remaining, err := s.MonthlySessionRepository.ConsumeSession(ctx, room.OwnerID, month, s.Config.CommunityMonthlySessions)
		if err != nil {
			slog.WarnContext(ctx, "monthly session allowance refused start", "user_id", room.OwnerID, "month", month, logging.ErrKey, err)
			return nil, err
		}
		slog.DebugContext(ctx, "monthly session reserved", "user_id", room.OwnerID, "remaining", remaining)
	}

	info, err := s.Gateway.EnsureMeeting(ctx, room, opts)
	if reserved && (err != nil || info.Duplicate()) {
		if releaseErr := s.MonthlySessionRepository.ReleaseSession(ctx, room.OwnerID, month); releaseErr != nil {
			slog.ErrorContext(ctx, "failed to release monthly session", "user_id", room.OwnerID, "month", month, logging.ErrKey, releaseErr)
		}
	}
	if err != nil {
		return nil, err
	}
	return info, nil
}

func (s *SessionService) accessGranted(room *models.Room, input JoinInput) bool {
	if input.AccessCode != "" && input.AccessCode == room.AccessCode {
		return true
	}
	return s.Tokens != nil && s.Tokens.Verify(input.InviteToken, room.AccessCode)
}

func (s *SessionService) publishStarted(ctx context.Context, room *models.Room, startedBy string, info *domain.MeetingInfo) {
	err := s.EventSender.SendRoomSessionStarted(ctx, models.RoomSessionStartedMessage{
		RoomUID:    room.UID,
		MeetingID:  room.BBBID,
		StartedBy:  startedBy,
		StartedAt:  s.now().UTC(),
		NewSession: !info.Duplicate(),
	})
	if err != nil {
		slog.WarnContext(ctx, "failed to publish room session started", "room_uid", room.UID, logging.ErrKey, err)
	}
}

func displayName(name, fallback string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	if fallback != "" {
		return fallback
	}
	return guestDisplayName
}
