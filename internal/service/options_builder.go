// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/logging"
)

const googleCalendarURL = "https://calendar.google.com/calendar/r/eventedit"

// OptionsBuilder composes the meeting options of a join or start request from
// the room, its settings, the subscription tier and the request context.
type OptionsBuilder struct {
	RoomConfig models.RoomConfiguration
	TierLimits models.TierLimits
	Tokens     *InviteTokens
}

// NewOptionsBuilder creates an OptionsBuilder from the service configuration.
func NewOptionsBuilder(config ServiceConfig, tokens *InviteTokens) *OptionsBuilder {
	return &OptionsBuilder{
		RoomConfig: config.RoomConfig,
		TierLimits: config.TierLimits,
		Tokens:     tokens,
	}
}

// Build returns the options for room. It reads nothing but its arguments.
// UserIsModerator is left false; callers decide it.
//
// With TierUnknown no recording override is made and the community cap
// applies. When the site requires recording consent, a meeting is recorded
// only if the requester gave it.
func (b *OptionsBuilder) Build(
	ctx context.Context,
	room *models.Room,
	tier models.SubscriptionTier,
	settings models.RoomSettings,
	req models.RequestContext,
) models.MeetingOptions {
	base := strings.TrimSuffix(req.BaseURL, "/")
	meetingURL := base + room.InvitePath()
	inviteURL := b.inviteURL(ctx, room, meetingURL)

	opts := models.MeetingOptions{
		Record:                   b.RoomConfig.RecordMeeting(settings),
		MuteOnStart:              b.RoomConfig.SettingWithConfig(settings, models.SettingMuteOnStart),
		MaxParticipants:          b.TierLimits.MaxParticipants(tier),
		RequireModeratorApproval: b.RoomConfig.SettingWithConfig(settings, models.SettingRequireModeratorApproval) || settings.AuthLobby,
		ModeratorOnlyMessage:     inviteURL,
		LogoutURL:                meetingURL + "/logout",
		MeetingURL:               meetingURL,
		Host:                     req.Host,
		ListenOnly:               settings.WebinarMode,
		RecordingListed:          b.RoomConfig.DefaultRecordingVisible,
		Owner:                    room.OwnedBy(req.RequesterID),
		OwnerEmail:               room.OwnerEmail,
		AuthMandatory:            settings.AuthMandatory,
		AuthMultiFactor:          settings.AuthMultiFactor,
		AuthLobby:                settings.AuthLobby,
		AuthOneTimeInviteLink:    settings.AuthOneTimeInviteLink,
		BannerMessage:            bannerMessage(room, settings, req, b.RoomConfig.MarketingRoomUID),
		CalendarURL:              calendarURL(room, meetingURL),
	}

	switch tier {
	case models.TierCommunity:
		opts.Record = false
	case models.TierPlus:
		opts.Record = true
		opts.BreakoutRoomsEnabled = true
	case models.TierPro:
		opts.Record = true
		opts.BreakoutRoomsEnabled = true
		opts.LogoURL = room.OwnerBrandImageURL
	}
	if b.RoomConfig.RequireRecordingConsent && !req.RecordingConsent {
		opts.Record = false
	}

	return opts
}

// inviteURL is the room link handed to moderators. Rooms with an access code
// get a token that lets invitees skip the code prompt.
func (b *OptionsBuilder) inviteURL(ctx context.Context, room *models.Room, meetingURL string) string {
	if !room.HasAccessCode() || b.Tokens == nil {
		return meetingURL
	}
	token, err := b.Tokens.Issue(room.AccessCode)
	if err != nil {
		slog.WarnContext(ctx, "failed to issue invite token", "room_uid", room.UID, logging.ErrKey, err)
		return meetingURL
	}
	return meetingURL + "?" + url.Values{"pwd": []string{token}}.Encode()
}

// bannerMessage takes the request's banner from room members only; everyone
// else gets the marketing room banner, if any.
func bannerMessage(room *models.Room, settings models.RoomSettings, req models.RequestContext, marketingRoomUID string) string {
	if req.BannerMessage != "" && (room.OwnedBy(req.RequesterID) || room.SharedWithUser(req.RequesterID)) {
		return req.BannerMessage
	}
	if marketingRoomUID != "" && room.UID == marketingRoomUID {
		return settings.BannerMessage
	}
	return ""
}

// calendarURL links to a prefilled Google Calendar event for the room.
func calendarURL(room *models.Room, meetingURL string) string {
	details := "You have been invited to the session."
	if room.HasAccessCode() {
		details += "\nTo join the session use key: " + room.AccessCode
	}
	q := url.Values{}
	q.Set("text", room.Name)
	q.Set("location", meetingURL)
	q.Set("details", details)
	return googleCalendarURL + "?" + q.Encode()
}
