// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"unicode/utf8"
)

// GuestPolicyAskModerator makes the conferencing server hold guests in a
// lobby until a moderator admits them.
const GuestPolicyAskModerator = "ASK_MODERATOR"

// Metadata tag values sent with every meeting.
const (
	MetaListed       = "gl-listed"
	OriginName       = "WhistleRoom"
	OriginVersion    = "1.0"
	maxMessageLength = 5000
	maxBannerLength  = 1000
)

var metaNamePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*$`)

// RequestContext carries what the inbound request knows about itself. It is
// passed explicitly to the option builders.
type RequestContext struct {
	// BaseURL is the scheme and host of the web application, e.g.
	// https://whistle.example.org
	BaseURL          string
	Host             string
	RequesterID      string
	RequesterName    string
	RecordingConsent bool
	BannerMessage    string
}

// MeetingOptions is the ephemeral set of parameters used to create and join
// a meeting. It is never persisted.
type MeetingOptions struct {
	UserIsModerator          bool
	Record                   bool
	MuteOnStart              bool
	MaxParticipants          int
	RequireModeratorApproval bool
	ModeratorOnlyMessage     string
	LogoutURL                string
	MeetingURL               string
	Host                     string
	LogoURL                  string
	BreakoutRoomsEnabled     bool
	ListenOnly               bool
	RecordingListed          bool
	Owner                    bool
	OwnerEmail               string
	AuthMandatory            bool
	AuthMultiFactor          bool
	AuthLobby                bool
	AuthOneTimeInviteLink    bool
	BannerMessage            string
	CalendarURL              string
	Metadata                 map[string]string
}

// GuestPolicy returns the guest policy to request, or "" for the server
// default.
func (o MeetingOptions) GuestPolicy() string {
	if o.RequireModeratorApproval {
		return GuestPolicyAskModerator
	}
	return ""
}

// Validate reports malformed options.
func (o MeetingOptions) Validate() error {
	var errs []error
	if o.MaxParticipants < 0 {
		errs = append(errs, fmt.Errorf("maxParticipants must not be negative, got %d", o.MaxParticipants))
	}
	if utf8.RuneCountInString(o.ModeratorOnlyMessage) > maxMessageLength {
		errs = append(errs, fmt.Errorf("moderator message exceeds %d characters", maxMessageLength))
	}
	if utf8.RuneCountInString(o.BannerMessage) > maxBannerLength {
		errs = append(errs, fmt.Errorf("banner message exceeds %d characters", maxBannerLength))
	}
	if o.LogoutURL != "" {
		if u, err := url.Parse(o.LogoutURL); err != nil || !u.IsAbs() {
			errs = append(errs, fmt.Errorf("logout URL %q is not an absolute URL", o.LogoutURL))
		}
	}
	for name := range o.Metadata {
		if !metaNamePattern.MatchString(name) {
			errs = append(errs, fmt.Errorf("invalid metadata name %q", name))
		}
	}
	return errors.Join(errs...)
}

// CreateParams renders the create call parameters for room. The meeting id,
// name and passwords are sent separately by the client.
func (o MeetingOptions) CreateParams(room *Room) map[string]string {
	b := strconv.FormatBool
	params := map[string]string{
		"record":                 b(o.Record),
		"logoutURL":              o.LogoutURL,
		"moderatorOnlyMessage":   o.ModeratorOnlyMessage,
		"muteOnStart":            b(o.MuteOnStart),
		"breakoutRoomsEnabled":   b(o.BreakoutRoomsEnabled),
		"lockSettingsDisableMic": b(o.ListenOnly),
		"listenOnlyMode":         b(o.ListenOnly),
		"forceListenOnly":        b(o.ListenOnly),
		"enableListenOnly":       b(o.ListenOnly),
		"lockSettingsLockOnJoin": "true",

		"meta_" + MetaListed:              b(o.RecordingListed),
		"meta_whistle-origin-version":     OriginVersion,
		"meta_whistle-origin":             OriginName,
		"meta_whistle-origin-server-name": o.Host,
		"meta_roomPassword":               room.AttendeePW,
		"meta_inviteMsgPassword":          o.ModeratorOnlyMessage,
		"meta_meetingUrl":                 o.MeetingURL,
		"meta_auth-mandatory":             b(o.AuthMandatory),
		"meta_auth-multi-factor":          b(o.AuthMultiFactor),
		"meta_auth-room-key":              b(room.HasAccessCode()),
		"meta_room-key":                   room.AccessCode,
		"meta_auth-lobby":                 b(o.AuthLobby),
		"meta_auth-onetime":               b(o.AuthOneTimeInviteLink),
		"meta_encrypt-transit":            "true",
		"meta_encrypt-recording":          "true",
		"meta_encrypt-content":            "true",
		"meta_privacy-record-consent":     "true",
		"meta_privacy-data-deletion":      "true",
		"meta_owner":                      b(o.Owner),
		"meta_email":                      o.OwnerEmail,
		"meta_webinar":                    b(o.ListenOnly),
		"meta_google-calendar-url":        o.CalendarURL,
		"meta_banner-message":             o.BannerMessage,
	}
	if o.LogoURL != "" {
		params["logo"] = o.LogoURL
	}
	if policy := o.GuestPolicy(); policy != "" {
		params["guestPolicy"] = policy
	}
	if o.MaxParticipants > 0 {
		params["maxParticipants"] = strconv.Itoa(o.MaxParticipants)
	}
	for name, value := range o.Metadata {
		params["meta_"+name] = value
	}
	return params
}
